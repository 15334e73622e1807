// Package reform parses and validates reform documents: JSON files that
// override policy parameters in specific years, optionally flip a
// parameter's indexed status, and carry provenance metadata in a leading
// comment block. Parsing is all-or-nothing; a document either validates
// completely against the schema or is rejected with a typed error.
package reform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/taxfoundry/policy-cli/internal/model"
)

// indexedSuffix marks a block that flips a parameter's indexed status
// instead of overriding its values.
const indexedSuffix = "-indexed"

// ParseFile reads and parses one reform file.
func ParseFile(path string, s *model.Schema) (*model.ReformDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reform: read %s", path)
	}
	doc, err := Parse(data, s)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = path
			return nil, pe
		}
		return nil, eris.Wrapf(err, "reform: parse %s", path)
	}
	return doc, nil
}

// Parse validates a reform document against the schema and returns its
// structured form. The first violation aborts the parse.
func Parse(data []byte, s *model.Schema) (*model.ReformDocument, error) {
	prov := parseHeader(data)

	body := stripComments(data)
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &ParseError{Msg: "reform document has no JSON body"}
	}

	entries, err := decodeDocument(body)
	if err != nil {
		return nil, err
	}

	// Accept the legacy wrapper {"policy": {...}} around the reform body.
	if len(entries) == 1 && entries[0].key == "policy" {
		if inner, ok := entries[0].val.([]member); ok {
			entries = inner
		}
	}

	overrides := model.NewOverrideSet()
	var flips []model.IndexFlip
	flipSeen := make(map[string]map[int]bool)

	for _, e := range entries {
		if strings.HasSuffix(e.key, indexedSuffix) {
			fs, err := parseFlipBlock(e, s, flipSeen)
			if err != nil {
				return nil, err
			}
			flips = append(flips, fs...)
			continue
		}
		if err := parseParamBlock(e, s, overrides); err != nil {
			return nil, err
		}
	}

	return model.NewReformDocument(prov, overrides, flips), nil
}

// parseParamBlock validates one parameter block: known name, well-formed
// years inside the valid range, values matching the parameter's kind and
// bounds, and no repeated (parameter, year) cells.
func parseParamBlock(e member, s *model.Schema, overrides *model.OverrideSet) error {
	p, err := s.Lookup(e.key)
	if err != nil {
		return err
	}

	cells, ok := e.val.([]member)
	if !ok {
		return &ParseError{Msg: fmt.Sprintf(
			"parameter %s: block must be an object mapping years to values, got %s",
			p.Name, jsonTypeName(e.val))}
	}

	for _, cell := range cells {
		year, err := parseYear(p, cell.key)
		if err != nil {
			return err
		}
		v, err := coerceValue(p, year, cell.val)
		if err != nil {
			return err
		}
		if err := p.Validate(year, v); err != nil {
			return err
		}
		if err := overrides.Add(p.Name, year, v); err != nil {
			return err
		}
	}
	return nil
}

// parseFlipBlock validates one "-indexed" block: the base parameter must
// exist and be indexable, years must be valid, and values must be booleans.
func parseFlipBlock(e member, s *model.Schema, seen map[string]map[int]bool) ([]model.IndexFlip, error) {
	base := strings.TrimSuffix(e.key, indexedSuffix)
	p, err := s.Lookup(base)
	if err != nil {
		return nil, err
	}
	if !p.Indexable {
		return nil, &model.NotIndexableError{Param: p.Name}
	}

	cells, ok := e.val.([]member)
	if !ok {
		return nil, &ParseError{Msg: fmt.Sprintf(
			"parameter %s: indexed block must be an object mapping years to booleans, got %s",
			p.Name, jsonTypeName(e.val))}
	}

	var flips []model.IndexFlip
	for _, cell := range cells {
		year, err := parseYear(p, cell.key)
		if err != nil {
			return nil, err
		}
		indexed, ok := cell.val.(bool)
		if !ok {
			return nil, &model.TypeMismatchError{
				Param: p.Name,
				Year:  year,
				Want:  "boolean",
				Got:   jsonTypeName(cell.val),
			}
		}
		if seen[p.Name] == nil {
			seen[p.Name] = make(map[int]bool)
		}
		if seen[p.Name][year] {
			return nil, &model.DuplicateOverrideError{Param: p.Name, Year: year}
		}
		seen[p.Name][year] = true
		flips = append(flips, model.IndexFlip{Param: p.Name, Year: year, Indexed: indexed})
	}
	return flips, nil
}

func parseYear(p *model.ParameterSpec, key string) (int, error) {
	year, err := strconv.Atoi(key)
	if err != nil {
		return 0, &model.InvalidYearError{Param: p.Name, Raw: key}
	}
	if !p.ValidYears.Contains(year) {
		return 0, &model.InvalidYearError{Param: p.Name, Year: year, Range: p.ValidYears}
	}
	return year, nil
}

// coerceValue shapes a decoded JSON value into a model.Value matching the
// parameter's kind. Bounds and integer checks happen in Validate afterwards.
func coerceValue(p *model.ParameterSpec, year int, raw any) (model.Value, error) {
	want := "scalar number"
	if p.Kind == model.KindBracket {
		want = fmt.Sprintf("array of %d numbers", p.BracketLen)
	}

	switch t := raw.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return model.Value{}, &model.TypeMismatchError{Param: p.Name, Year: year, Want: want, Got: "malformed number"}
		}
		return model.Scalar(f), nil
	case []any:
		fs := make([]float64, 0, len(t))
		for _, el := range t {
			n, ok := el.(json.Number)
			if !ok {
				return model.Value{}, &model.TypeMismatchError{
					Param: p.Name, Year: year, Want: want,
					Got: "array containing " + jsonTypeName(el),
				}
			}
			f, err := n.Float64()
			if err != nil {
				return model.Value{}, &model.TypeMismatchError{Param: p.Name, Year: year, Want: want, Got: "malformed number"}
			}
			fs = append(fs, f)
		}
		return model.Bracket(fs), nil
	default:
		return model.Value{}, &model.TypeMismatchError{Param: p.Name, Year: year, Want: want, Got: jsonTypeName(raw)}
	}
}

// Package schema loads parameter schemas and growth-factor tables from their
// source files and ships embedded current-law defaults.
package schema

import (
	"embed"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/taxfoundry/policy-cli/internal/model"
)

//go:embed data/policy_current_law.yaml data/growfactors.csv
var dataFS embed.FS

// DefaultSchemaFile is the embedded current-law schema's logical name,
// reported where a file path would otherwise appear.
const DefaultSchemaFile = "policy_current_law.yaml"

type fileSchema struct {
	Parameters []fileParam `yaml:"parameters"`
}

type fileParam struct {
	Name       string            `yaml:"name"`
	Title      string            `yaml:"title"`
	Kind       string            `yaml:"kind"`
	Unit       string            `yaml:"unit"`
	Rule       string            `yaml:"rule"`
	Indexable  bool              `yaml:"indexable"`
	Series     string            `yaml:"series"`
	Years      fileYears         `yaml:"years"`
	Bounds     fileBounds        `yaml:"bounds"`
	Integer    bool              `yaml:"integer"`
	BracketLen int               `yaml:"bracket_len"`
	Values     map[int]yaml.Node `yaml:"values"`
}

type fileYears struct {
	First int `yaml:"first"`
	Last  int `yaml:"last"`
}

type fileBounds struct {
	Min     *float64  `yaml:"min"`
	Max     *float64  `yaml:"max"`
	Allowed []float64 `yaml:"allowed"`
}

// Load reads a parameter schema from a YAML file.
func Load(path string) (*model.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: read %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: load %s", path)
	}
	return s, nil
}

// Default returns the embedded current-law schema.
func Default() (*model.Schema, error) {
	data, err := dataFS.ReadFile("data/policy_current_law.yaml")
	if err != nil {
		return nil, eris.Wrap(err, "schema: read embedded defaults")
	}
	return Parse(data)
}

// Parse decodes and validates schema YAML.
func Parse(data []byte) (*model.Schema, error) {
	var raw fileSchema
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "schema: parse yaml")
	}
	if len(raw.Parameters) == 0 {
		return nil, eris.New("schema: no parameters declared")
	}

	params := make([]model.ParameterSpec, 0, len(raw.Parameters))
	seen := make(map[string]bool, len(raw.Parameters))
	for i := range raw.Parameters {
		spec, err := buildParam(&raw.Parameters[i])
		if err != nil {
			return nil, err
		}
		if seen[spec.Name] {
			return nil, eris.Errorf("schema: duplicate parameter %s", spec.Name)
		}
		seen[spec.Name] = true
		params = append(params, spec)
	}
	return model.NewSchema(params), nil
}

func buildParam(raw *fileParam) (model.ParameterSpec, error) {
	var zero model.ParameterSpec
	if raw.Name == "" {
		return zero, eris.New("schema: parameter with empty name")
	}

	kind := model.ValueKind(raw.Kind)
	switch kind {
	case model.KindScalar, model.KindRate, model.KindBracket:
	default:
		return zero, eris.Errorf("schema: parameter %s: unknown kind %q", raw.Name, raw.Kind)
	}

	unit := model.Unit(raw.Unit)
	switch unit {
	case model.UnitUSD, model.UnitFraction, model.UnitCount, model.UnitYear:
	default:
		return zero, eris.Errorf("schema: parameter %s: unknown unit %q", raw.Name, raw.Unit)
	}

	rule := model.IndexRule(raw.Rule)
	switch rule {
	case model.RuleNone, model.RuleWage, model.RulePrice, model.RuleStep:
	default:
		return zero, eris.Errorf("schema: parameter %s: unknown rule %q", raw.Name, raw.Rule)
	}

	if raw.Series != "" && raw.Series != model.SeriesWage && raw.Series != model.SeriesPrice {
		return zero, eris.Errorf("schema: parameter %s: unknown series %q", raw.Name, raw.Series)
	}

	if kind == model.KindBracket && raw.BracketLen <= 0 {
		return zero, eris.Errorf("schema: parameter %s: bracket kind needs bracket_len", raw.Name)
	}
	if kind != model.KindBracket && raw.BracketLen != 0 {
		return zero, eris.Errorf("schema: parameter %s: bracket_len only applies to bracket kind", raw.Name)
	}

	years := model.YearRange{First: raw.Years.First, Last: raw.Years.Last}
	if years.Len() == 0 {
		return zero, eris.Errorf("schema: parameter %s: invalid year range %s", raw.Name, years)
	}
	if len(raw.Values) == 0 {
		return zero, eris.Errorf("schema: parameter %s: no legislated values", raw.Name)
	}

	spec := model.ParameterSpec{
		Name:       raw.Name,
		Title:      raw.Title,
		Kind:       kind,
		Unit:       unit,
		Rule:       rule,
		Indexable:  raw.Indexable || rule.Indexed(),
		Series:     raw.Series,
		ValidYears: years,
		Bounds:     model.Bounds{Min: raw.Bounds.Min, Max: raw.Bounds.Max, Allowed: raw.Bounds.Allowed},
		Integer:    raw.Integer,
		BracketLen: raw.BracketLen,
		Values:     make(map[int]model.Value, len(raw.Values)),
	}

	for year, node := range raw.Values {
		if !years.Contains(year) {
			return zero, eris.Errorf("schema: parameter %s: legislated year %d outside %s", raw.Name, year, years)
		}
		v, err := decodeValue(&node)
		if err != nil {
			return zero, eris.Wrapf(err, "schema: parameter %s year %d", raw.Name, year)
		}
		if err := spec.Validate(year, v); err != nil {
			return zero, eris.Wrapf(err, "schema: parameter %s", raw.Name)
		}
		spec.Values[year] = v
	}
	return spec, nil
}

func decodeValue(node *yaml.Node) (model.Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		var f float64
		if err := node.Decode(&f); err != nil {
			return model.Value{}, fmt.Errorf("value %q is not a number", node.Value)
		}
		return model.Scalar(f), nil
	case yaml.SequenceNode:
		var fs []float64
		if err := node.Decode(&fs); err != nil {
			return model.Value{}, fmt.Errorf("value is not a numeric sequence")
		}
		return model.Bracket(fs), nil
	default:
		return model.Value{}, fmt.Errorf("value must be a number or a sequence of numbers")
	}
}

package reform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// member is one key/value pair of a JSON object, in document order. Values
// are json.Number, bool, string, nil, []any (arrays), or []member (nested
// objects). Duplicate keys are preserved so validation can reject them.
type member struct {
	key string
	val any
}

// ParseError reports a structurally malformed reform document: bad JSON, a
// non-object root, or a block with the wrong shape. Offset is a byte position
// in the source file when one is known.
type ParseError struct {
	Path   string
	Offset int64
	Msg    string
}

func (e *ParseError) Error() string {
	var sb bytes.Buffer
	if e.Path != "" {
		fmt.Fprintf(&sb, "%s: ", e.Path)
	}
	sb.WriteString(e.Msg)
	if e.Offset > 0 {
		fmt.Fprintf(&sb, " (offset %d)", e.Offset)
	}
	return sb.String()
}

// decodeDocument token-walks a JSON object, preserving member order and
// duplicate keys. The root must be a single object with nothing after it.
func decodeDocument(data []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, syntaxError(err, dec)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &ParseError{Offset: dec.InputOffset(), Msg: "reform document root must be a JSON object"}
	}

	ms, err := decodeMembers(dec)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ParseError{Offset: dec.InputOffset(), Msg: "trailing data after reform document"}
	}
	return ms, nil
}

// decodeMembers consumes object members up to and including the closing brace.
func decodeMembers(dec *json.Decoder) ([]member, error) {
	var ms []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, syntaxError(err, dec)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, &ParseError{Offset: dec.InputOffset(), Msg: "object key is not a string"}
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		ms = append(ms, member{key: key, val: val})
	}
	if _, err := dec.Token(); err != nil {
		return nil, syntaxError(err, dec)
	}
	return ms, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, syntaxError(err, dec)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		return decodeMembers(dec)
	case '[':
		var arr []any
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, syntaxError(err, dec)
		}
		return arr, nil
	default:
		return nil, &ParseError{Offset: dec.InputOffset(), Msg: fmt.Sprintf("unexpected delimiter %v", delim)}
	}
}

func syntaxError(err error, dec *json.Decoder) error {
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return &ParseError{Offset: se.Offset, Msg: "malformed json: " + se.Error()}
	}
	if errors.Is(err, io.EOF) {
		return &ParseError{Offset: dec.InputOffset(), Msg: "malformed json: unexpected end of document"}
	}
	return &ParseError{Offset: dec.InputOffset(), Msg: err.Error()}
}

// jsonTypeName describes a decoded value for type-mismatch messages.
func jsonTypeName(v any) string {
	switch t := v.(type) {
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case string:
		return "string"
	case nil:
		return "null"
	case []any:
		return fmt.Sprintf("array of %d elements", len(t))
	case []member:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

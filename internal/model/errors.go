package model

import (
	"fmt"
	"strings"
)

// UnknownParameterError reports a parameter name that is not in the schema.
type UnknownParameterError struct {
	Name string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("unknown parameter %q", e.Name)
}

// InvalidYearError reports a year key that is malformed or outside a
// parameter's valid range. Raw holds the offending key when it could not be
// parsed as an integer; otherwise Year and Range describe the violation.
type InvalidYearError struct {
	Param string
	Raw   string
	Year  int
	Range YearRange
}

func (e *InvalidYearError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("parameter %s: year key %q is not a valid year", e.Param, e.Raw)
	}
	return fmt.Sprintf("parameter %s: year %d outside valid range %s", e.Param, e.Year, e.Range)
}

// TypeMismatchError reports a value whose shape does not match the parameter's
// declared kind.
type TypeMismatchError struct {
	Param string
	Year  int
	Want  string
	Got   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("parameter %s year %d: want %s, got %s", e.Param, e.Year, e.Want, e.Got)
}

// OutOfBoundsError reports a numeric value outside a parameter's declared
// bounds. Index is the bracket element position, or -1 for scalar values.
type OutOfBoundsError struct {
	Param   string
	Year    int
	Index   int
	Value   float64
	Min     *float64
	Max     *float64
	Allowed []float64
}

func (e *OutOfBoundsError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "parameter %s year %d", e.Param, e.Year)
	if e.Index >= 0 {
		fmt.Fprintf(&sb, " element %d", e.Index)
	}
	switch {
	case len(e.Allowed) > 0:
		vals := make([]string, len(e.Allowed))
		for i, a := range e.Allowed {
			vals[i] = formatFloat(a)
		}
		fmt.Fprintf(&sb, ": value %s not in allowed set [%s]", formatFloat(e.Value), strings.Join(vals, ", "))
	case e.Min != nil && e.Value < *e.Min:
		fmt.Fprintf(&sb, ": value %s below minimum %s", formatFloat(e.Value), formatFloat(*e.Min))
	case e.Max != nil && e.Value > *e.Max:
		fmt.Fprintf(&sb, ": value %s above maximum %s", formatFloat(e.Value), formatFloat(*e.Max))
	default:
		fmt.Fprintf(&sb, ": value %s out of bounds", formatFloat(e.Value))
	}
	return sb.String()
}

// DuplicateOverrideError reports a (parameter, year) cell set twice within a
// single reform document.
type DuplicateOverrideError struct {
	Param string
	Year  int
}

func (e *DuplicateOverrideError) Error() string {
	return fmt.Sprintf("parameter %s: duplicate override for year %d", e.Param, e.Year)
}

// IndexingDataMissingError reports a growth-factor lookup for a year with no
// data in the series.
type IndexingDataMissingError struct {
	Series string
	Year   int
}

func (e *IndexingDataMissingError) Error() string {
	return fmt.Sprintf("growth factor series %s has no value for year %d", e.Series, e.Year)
}

// NotIndexableError reports an indexed-status flip on a parameter whose
// schema declares it non-indexable.
type NotIndexableError struct {
	Param string
}

func (e *NotIndexableError) Error() string {
	return fmt.Sprintf("parameter %s is not indexable", e.Param)
}

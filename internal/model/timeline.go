package model

import (
	"encoding/json"
	"fmt"
)

// Timeline is an immutable grid of resolved parameter values over a year
// window. Every parameter carries a value for every year in the window, so
// lookups inside the window are total. The version identifies the inputs the
// timeline was resolved from: the schema and factor digests for a baseline,
// or the cache key for a reformed timeline.
type Timeline struct {
	window  YearRange
	names   []string
	values  map[string][]Value
	version string
}

// NewTimeline builds a timeline. Names fixes parameter order; values must
// hold exactly one series per name, each spanning the full window.
func NewTimeline(window YearRange, names []string, values map[string][]Value, version string) (*Timeline, error) {
	if window.Len() == 0 {
		return nil, fmt.Errorf("timeline window %s is empty", window)
	}
	if len(names) != len(values) {
		return nil, fmt.Errorf("timeline has %d names but %d value series", len(names), len(values))
	}
	for _, name := range names {
		series, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("timeline missing value series for %s", name)
		}
		if len(series) != window.Len() {
			return nil, fmt.Errorf("timeline series %s has %d values, window %s needs %d",
				name, len(series), window, window.Len())
		}
	}
	return &Timeline{window: window, names: names, values: values, version: version}, nil
}

// Window returns the timeline's year span.
func (t *Timeline) Window() YearRange {
	return t.window
}

// Params returns parameter names in timeline order.
func (t *Timeline) Params() []string {
	return t.names
}

// Has reports whether the timeline covers the named parameter.
func (t *Timeline) Has(param string) bool {
	_, ok := t.values[param]
	return ok
}

// Get returns the value of a parameter in a year. It fails only for unknown
// parameters or years outside the window.
func (t *Timeline) Get(param string, year int) (Value, error) {
	series, ok := t.values[param]
	if !ok {
		return Value{}, &UnknownParameterError{Name: param}
	}
	if !t.window.Contains(year) {
		return Value{}, &InvalidYearError{Param: param, Year: year, Range: t.window}
	}
	return series[year-t.window.First], nil
}

// Series returns a copy of a parameter's full value series, first year first.
func (t *Timeline) Series(param string) ([]Value, error) {
	series, ok := t.values[param]
	if !ok {
		return nil, &UnknownParameterError{Name: param}
	}
	out := make([]Value, len(series))
	copy(out, series)
	return out, nil
}

// Version returns the identifier of the inputs this timeline resolves.
func (t *Timeline) Version() string {
	return t.version
}

// Equal reports whether two timelines cover the same window and hold the same
// values. Versions are not compared.
func (t *Timeline) Equal(o *Timeline) bool {
	if o == nil || t.window != o.window || len(t.names) != len(o.names) {
		return false
	}
	for i, name := range t.names {
		if o.names[i] != name {
			return false
		}
		a, b := t.values[name], o.values[name]
		for j := range a {
			if !a[j].Equal(b[j]) {
				return false
			}
		}
	}
	return true
}

type timelineJSON struct {
	Window  YearRange          `json:"window"`
	Version string             `json:"version"`
	Names   []string           `json:"names"`
	Values  map[string][]Value `json:"values"`
}

// MarshalJSON serializes the timeline for storage.
func (t *Timeline) MarshalJSON() ([]byte, error) {
	return json.Marshal(timelineJSON{
		Window:  t.window,
		Version: t.version,
		Names:   t.names,
		Values:  t.values,
	})
}

// UnmarshalJSON reconstructs a stored timeline, revalidating its shape.
func (t *Timeline) UnmarshalJSON(b []byte) error {
	var raw timelineJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	built, err := NewTimeline(raw.Window, raw.Names, raw.Values, raw.Version)
	if err != nil {
		return err
	}
	*t = *built
	return nil
}

package model

import "sort"

// Override is a single reform cell: one parameter set to a value in one year.
type Override struct {
	Param string `json:"param"`
	Year  int    `json:"year"`
	Value Value  `json:"value"`
}

// IndexFlip switches a parameter's indexed status starting in Year. A false
// flip stops indexing from that year forward; a true flip resumes it using
// the parameter's effective series. A later flip on the same parameter
// supersedes an earlier one.
type IndexFlip struct {
	Param   string `json:"param"`
	Year    int    `json:"year"`
	Indexed bool   `json:"indexed"`
}

// OverrideSet accumulates the overrides of one reform document. It preserves
// the order in which parameters first appear and rejects duplicate
// (parameter, year) cells.
type OverrideSet struct {
	order   []string
	byParam map[string]map[int]Value
}

// NewOverrideSet returns an empty set.
func NewOverrideSet() *OverrideSet {
	return &OverrideSet{byParam: make(map[string]map[int]Value)}
}

// Add records an override, returning DuplicateOverrideError if the
// (parameter, year) cell is already set.
func (s *OverrideSet) Add(param string, year int, v Value) error {
	years, ok := s.byParam[param]
	if !ok {
		years = make(map[int]Value)
		s.byParam[param] = years
		s.order = append(s.order, param)
	}
	if _, dup := years[year]; dup {
		return &DuplicateOverrideError{Param: param, Year: year}
	}
	years[year] = v
	return nil
}

// Get returns the override for the cell, if set.
func (s *OverrideSet) Get(param string, year int) (Value, bool) {
	v, ok := s.byParam[param][year]
	return v, ok
}

// Params returns parameter names in first-appearance order.
func (s *OverrideSet) Params() []string {
	return s.order
}

// Years returns the override years for a parameter, ascending.
func (s *OverrideSet) Years(param string) []int {
	cells := s.byParam[param]
	years := make([]int, 0, len(cells))
	for y := range cells {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Len returns the total number of override cells.
func (s *OverrideSet) Len() int {
	n := 0
	for _, cells := range s.byParam {
		n += len(cells)
	}
	return n
}

// Empty reports whether the set has no overrides.
func (s *OverrideSet) Empty() bool {
	return s.Len() == 0
}

// All returns every override, parameters in first-appearance order and years
// ascending within each parameter.
func (s *OverrideSet) All() []Override {
	out := make([]Override, 0, s.Len())
	for _, param := range s.order {
		for _, y := range s.Years(param) {
			out = append(out, Override{Param: param, Year: y, Value: s.byParam[param][y]})
		}
	}
	return out
}

package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// ValueKind classifies the shape of a parameter's value.
type ValueKind string

const (
	KindScalar  ValueKind = "scalar"  // single amount, count, or year
	KindRate    ValueKind = "rate"    // single fractional rate
	KindBracket ValueKind = "bracket" // fixed-length vector, one element per filing status
)

// Unit describes a parameter's unit of measure, used for display and validation.
type Unit string

const (
	UnitUSD      Unit = "usd"
	UnitFraction Unit = "fraction"
	UnitCount    Unit = "count"
	UnitYear     Unit = "year"
)

// IndexRule determines how a parameter's value moves through years with no
// legislated value.
type IndexRule string

const (
	RuleNone  IndexRule = "none"  // value holds flat
	RuleWage  IndexRule = "wage"  // advances by the average wage series
	RulePrice IndexRule = "price" // advances by the chained CPI series
	RuleStep  IndexRule = "step"  // follows the legislated schedule, holding between knots
)

// Growth-factor series names consumed by the indexing rules.
const (
	SeriesWage  = "AWAGE"
	SeriesPrice = "ACPIU"
)

// Indexed reports whether the rule advances values using a growth-factor series.
func (r IndexRule) Indexed() bool {
	return r == RuleWage || r == RulePrice
}

// Series returns the growth-factor series the rule draws from, or "" when the
// rule does not consult growth factors.
func (r IndexRule) Series() string {
	switch r {
	case RuleWage:
		return SeriesWage
	case RulePrice:
		return SeriesPrice
	default:
		return ""
	}
}

// YearRange is an inclusive span of calendar years.
type YearRange struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// Contains reports whether year falls inside the range.
func (yr YearRange) Contains(year int) bool {
	return year >= yr.First && year <= yr.Last
}

// Len returns the number of years in the range.
func (yr YearRange) Len() int {
	if yr.Last < yr.First {
		return 0
	}
	return yr.Last - yr.First + 1
}

func (yr YearRange) String() string {
	return fmt.Sprintf("%d-%d", yr.First, yr.Last)
}

// Bounds constrains the numeric values a parameter may take. Min and Max are
// inclusive; nil means unbounded on that side. Allowed, when non-empty,
// restricts values to an enumerated set and takes precedence over Min/Max.
type Bounds struct {
	Min     *float64  `json:"min,omitempty"`
	Max     *float64  `json:"max,omitempty"`
	Allowed []float64 `json:"allowed,omitempty"`
}

// ParameterSpec declares a single policy parameter: its value shape, unit,
// indexing behavior, valid years, bounds, and the legislated values (knots)
// that seed its baseline timeline.
type ParameterSpec struct {
	Name       string        `json:"name"`
	Title      string        `json:"title,omitempty"`
	Kind       ValueKind     `json:"kind"`
	Unit       Unit          `json:"unit"`
	Rule       IndexRule     `json:"rule"`
	Indexable  bool          `json:"indexable"`
	Series     string        `json:"series,omitempty"` // factor series when a reform turns indexing on
	ValidYears YearRange     `json:"valid_years"`
	Bounds     Bounds        `json:"bounds"`
	Integer    bool          `json:"integer,omitempty"`
	BracketLen int           `json:"bracket_len,omitempty"`
	Values     map[int]Value `json:"values"`
}

// KnotYears returns the years with legislated values, ascending.
func (p *ParameterSpec) KnotYears() []int {
	years := make([]int, 0, len(p.Values))
	for y := range p.Values {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// KnotAt returns the legislated value for year, if one exists.
func (p *ParameterSpec) KnotAt(year int) (Value, bool) {
	v, ok := p.Values[year]
	return v, ok
}

// EffectiveSeries returns the growth-factor series that applies when the
// parameter is indexed: the spec's own Series if set, otherwise the series
// implied by the rule, otherwise the price series.
func (p *ParameterSpec) EffectiveSeries() string {
	if p.Series != "" {
		return p.Series
	}
	if s := p.Rule.Series(); s != "" {
		return s
	}
	return SeriesPrice
}

// Validate checks a candidate value against the parameter's kind, bracket
// length, integer constraint, and bounds. The year is carried into error
// values for reporting only.
func (p *ParameterSpec) Validate(year int, v Value) error {
	if p.Kind == KindBracket {
		if !v.IsBracket() {
			return &TypeMismatchError{
				Param: p.Name,
				Year:  year,
				Want:  fmt.Sprintf("array of %d numbers", p.BracketLen),
				Got:   "scalar number",
			}
		}
		if n := v.Len(); n != p.BracketLen {
			return &TypeMismatchError{
				Param: p.Name,
				Year:  year,
				Want:  fmt.Sprintf("array of %d numbers", p.BracketLen),
				Got:   fmt.Sprintf("array of %d numbers", n),
			}
		}
		for i, f := range v.Bracket() {
			if err := p.checkElem(year, i, f); err != nil {
				return err
			}
		}
		return nil
	}

	if v.IsBracket() {
		return &TypeMismatchError{
			Param: p.Name,
			Year:  year,
			Want:  "scalar number",
			Got:   fmt.Sprintf("array of %d numbers", v.Len()),
		}
	}
	return p.checkElem(year, -1, v.Scalar())
}

func (p *ParameterSpec) checkElem(year, idx int, f float64) error {
	if p.Integer && f != float64(int64(f)) {
		return &TypeMismatchError{
			Param: p.Name,
			Year:  year,
			Want:  "integer",
			Got:   fmt.Sprintf("%g", f),
		}
	}
	if len(p.Bounds.Allowed) > 0 {
		for _, a := range p.Bounds.Allowed {
			if f == a {
				return nil
			}
		}
		return &OutOfBoundsError{Param: p.Name, Year: year, Index: idx, Value: f, Allowed: p.Bounds.Allowed}
	}
	if p.Bounds.Min != nil && f < *p.Bounds.Min {
		return &OutOfBoundsError{Param: p.Name, Year: year, Index: idx, Value: f, Min: p.Bounds.Min, Max: p.Bounds.Max}
	}
	if p.Bounds.Max != nil && f > *p.Bounds.Max {
		return &OutOfBoundsError{Param: p.Name, Year: year, Index: idx, Value: f, Min: p.Bounds.Min, Max: p.Bounds.Max}
	}
	return nil
}

// Schema is an indexed, versioned collection of parameter specifications.
// Parameter order follows the schema source, and the version digest is
// derived from the full content so that identical schemas hash identically.
type Schema struct {
	Params []ParameterSpec

	byName  map[string]*ParameterSpec
	names   []string
	version string
}

// NewSchema creates a Schema with indexed lookups and a content digest.
func NewSchema(params []ParameterSpec) *Schema {
	s := &Schema{
		Params: params,
		byName: make(map[string]*ParameterSpec, len(params)),
		names:  make([]string, 0, len(params)),
	}
	h := sha256.New()
	for i := range s.Params {
		p := &s.Params[i]
		s.byName[p.Name] = p
		s.names = append(s.names, p.Name)

		fmt.Fprintf(h, "%s|%s|%s|%s|%t|%s|%d|%d|%t|%d\n",
			p.Name, p.Kind, p.Unit, p.Rule, p.Indexable, p.EffectiveSeries(),
			p.ValidYears.First, p.ValidYears.Last, p.Integer, p.BracketLen)
		if p.Bounds.Min != nil {
			fmt.Fprintf(h, "min=%g\n", *p.Bounds.Min)
		}
		if p.Bounds.Max != nil {
			fmt.Fprintf(h, "max=%g\n", *p.Bounds.Max)
		}
		for _, a := range p.Bounds.Allowed {
			fmt.Fprintf(h, "allowed=%g\n", a)
		}
		for _, y := range p.KnotYears() {
			fmt.Fprintf(h, "%d=%s\n", y, p.Values[y])
		}
	}
	s.version = hex.EncodeToString(h.Sum(nil))
	return s
}

// Lookup returns the spec for the named parameter.
func (s *Schema) Lookup(name string) (*ParameterSpec, error) {
	p, ok := s.byName[name]
	if !ok {
		return nil, &UnknownParameterError{Name: name}
	}
	return p, nil
}

// Has reports whether the named parameter exists.
func (s *Schema) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Names returns parameter names in schema order.
func (s *Schema) Names() []string {
	return s.names
}

// Len returns the number of parameters.
func (s *Schema) Len() int {
	return len(s.Params)
}

// Version returns the schema's content digest.
func (s *Schema) Version() string {
	return s.version
}

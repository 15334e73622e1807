// Package resolve applies reform documents to a baseline timeline.
//
// Resolution is an explicit fold per parameter over ascending years, carrying
// the most recent override as the anchor. An override becomes that year's
// value and subsequent years advance from it by the parameter's effective
// indexing rule instead of reverting to current law. Step-function parameters
// are the scheduled exception: the first legislated knot after the last
// override year puts the parameter back on its statutory schedule.
// Indexed-status flips switch a parameter between its native series and no
// indexing beginning with the flip year.
package resolve

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/taxfoundry/policy-cli/internal/baseline"
	"github.com/taxfoundry/policy-cli/internal/model"
)

// Resolver turns a baseline plus reform documents into an effective timeline.
// It holds only read-only inputs and is safe for concurrent use.
type Resolver struct {
	schema  *model.Schema
	factors *model.GrowFactors
}

// New builds a resolver over a schema and its growth-factor series.
func New(s *model.Schema, g *model.GrowFactors) *Resolver {
	return &Resolver{schema: s, factors: g}
}

// CacheKey identifies a resolution by its inputs: the baseline version
// followed by the document digests in application order.
func CacheKey(baselineVersion string, docs ...*model.ReformDocument) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n", baselineVersion)
	for _, d := range docs {
		fmt.Fprintf(h, "%s\n", d.Digest())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Resolve applies the documents to base in order and returns a new timeline
// whose version is CacheKey(base.Version(), docs...). Later documents win per
// (parameter, year) cell and per flip cell. Every override year must fall
// inside the baseline window; with no documents the result equals the
// baseline.
func (r *Resolver) Resolve(base *model.Timeline, docs ...*model.ReformDocument) (*model.Timeline, error) {
	m := mergeDocuments(docs)
	if err := r.checkMerged(m, base); err != nil {
		return nil, err
	}

	window := base.Window()
	names := base.Params()
	values := make(map[string][]model.Value, len(names))
	for _, name := range names {
		p, err := r.schema.Lookup(name)
		if err != nil {
			return nil, eris.Wrapf(err, "resolve: baseline parameter %s missing from schema", name)
		}
		series, err := r.resolveSeries(p, base, m.cells[name], m.flips[name])
		if err != nil {
			return nil, err
		}
		values[name] = series
	}

	out, err := model.NewTimeline(window, names, values, CacheKey(base.Version(), docs...))
	if err != nil {
		return nil, eris.Wrap(err, "resolve: assemble timeline")
	}
	zap.L().Debug("reform resolved",
		zap.String("window", window.String()),
		zap.Int("documents", len(docs)),
		zap.Int("parameters", len(names)))
	return out, nil
}

// merged is the left fold of the documents: the winning value per
// (parameter, year) cell and the winning indexed status per flip cell.
type merged struct {
	cells map[string]map[int]model.Value
	flips map[string]map[int]bool
}

func mergeDocuments(docs []*model.ReformDocument) *merged {
	m := &merged{
		cells: make(map[string]map[int]model.Value),
		flips: make(map[string]map[int]bool),
	}
	for _, d := range docs {
		for _, ov := range d.Overrides.All() {
			cells := m.cells[ov.Param]
			if cells == nil {
				cells = make(map[int]model.Value)
				m.cells[ov.Param] = cells
			}
			cells[ov.Year] = ov.Value
		}
		for _, f := range d.Flips {
			flips := m.flips[f.Param]
			if flips == nil {
				flips = make(map[int]bool)
				m.flips[f.Param] = flips
			}
			flips[f.Year] = f.Indexed
		}
	}
	return m
}

// params returns every touched parameter name, sorted for stable errors.
func (m *merged) params() []string {
	seen := make(map[string]bool, len(m.cells))
	names := make([]string, 0, len(m.cells)+len(m.flips))
	for name := range m.cells {
		seen[name] = true
		names = append(names, name)
	}
	for name := range m.flips {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// checkMerged rejects documents that reference parameters outside the schema
// or baseline, and overrides whose year falls outside the baseline window.
// Flips are year-checked only against the schema at parse time: a flip at or
// before the window start governs the whole window, and one past the horizon
// is inert.
func (r *Resolver) checkMerged(m *merged, base *model.Timeline) error {
	window := base.Window()
	for _, name := range m.params() {
		if _, err := r.schema.Lookup(name); err != nil {
			return eris.Wrap(err, "resolve")
		}
		if !base.Has(name) {
			return eris.Errorf("resolve: parameter %s is not in the baseline timeline", name)
		}
		for _, y := range sortedYears(m.cells[name]) {
			if !window.Contains(y) {
				return eris.Wrap(
					&model.InvalidYearError{Param: name, Year: y, Range: window},
					"resolve: override outside resolution window")
			}
		}
	}
	return nil
}

// resolveSeries folds one parameter across the window.
func (r *Resolver) resolveSeries(p *model.ParameterSpec, base *model.Timeline, cells map[int]model.Value, flips map[int]bool) ([]model.Value, error) {
	window := base.Window()
	flipYears := sortedYears(flips)

	out := make([]model.Value, 0, window.Len())
	var (
		cur    model.Value
		active bool // trajectory has departed from the baseline
		lastOv int  // last explicit override year, valid once active without flips
	)
	for y := window.First; y <= window.Last; y++ {
		bv, err := base.Get(p.Name, y)
		if err != nil {
			return nil, eris.Wrapf(err, "resolve: parameter %s", p.Name)
		}

		fy, flipped := latestFlip(flipYears, y)
		indexed := p.Rule.Indexed()
		if flipped {
			indexed = flips[fy]
		}

		ov, hasOverride := cells[y]
		switch {
		case hasOverride:
			cur = ov
			active, lastOv = true, y
		case !active:
			if flipped && y > window.First {
				// The flip takes effect this year: advance last year's
				// baseline value under the flipped status.
				cur, err = r.advance(p, cur, indexed, y)
				if err != nil {
					return nil, err
				}
				active = true
			} else {
				cur = bv
				active = flipped
			}
		default:
			_, knot := p.KnotAt(y)
			if knot && p.Rule == model.RuleStep && !flipped && y > lastOv {
				// Statutory schedule resumes at the next legislated knot.
				cur = bv
				active = false
			} else {
				cur, err = r.advance(p, cur, indexed, y)
				if err != nil {
					return nil, err
				}
			}
		}
		out = append(out, cur)
	}
	return out, nil
}

// advance moves a carried value into year, holding it when unindexed.
func (r *Resolver) advance(p *model.ParameterSpec, v model.Value, indexed bool, year int) (model.Value, error) {
	if !indexed {
		return v, nil
	}
	rate, err := r.factors.Rate(p.EffectiveSeries(), year)
	if err != nil {
		return model.Value{}, eris.Wrapf(err, "resolve: parameter %s", p.Name)
	}
	return baseline.Advance(v, rate), nil
}

// latestFlip returns the most recent flip year at or before y.
func latestFlip(years []int, y int) (int, bool) {
	best, ok := 0, false
	for _, fy := range years {
		if fy > y {
			break
		}
		best, ok = fy, true
	}
	return best, ok
}

func sortedYears[T any](byYear map[int]T) []int {
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

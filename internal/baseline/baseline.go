// Package baseline builds current-law parameter timelines from a schema and
// a growth-factor table. Every parameter is seeded at its legislated values
// and carried across the remaining years by its indexing rule, so the result
// is total over the requested window.
package baseline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/taxfoundry/policy-cli/internal/decimal"
	"github.com/taxfoundry/policy-cli/internal/model"
)

// Version derives the baseline identity from its inputs: schema digest,
// factor digest, and window. Identical inputs always produce identical
// timelines, so the version doubles as a cache key component.
func Version(s *model.Schema, g *model.GrowFactors, window model.YearRange) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s", s.Version(), g.Version(), window)
	return hex.EncodeToString(h.Sum(nil))
}

// Advance moves a value one year forward under a growth rate, element-wise,
// rounding each element to cents.
func Advance(v model.Value, rate float64) model.Value {
	return v.Map(func(f float64) float64 {
		return decimal.Advance(f, rate)
	})
}

// Build resolves the current-law timeline over window.
func Build(s *model.Schema, g *model.GrowFactors, window model.YearRange) (*model.Timeline, error) {
	if window.Len() == 0 {
		return nil, eris.Errorf("baseline: window %s is empty", window)
	}

	values := make(map[string][]model.Value, s.Len())
	for _, name := range s.Names() {
		p, err := s.Lookup(name)
		if err != nil {
			return nil, eris.Wrap(err, "baseline: lookup")
		}
		series, err := buildSeries(p, g, window)
		if err != nil {
			return nil, err
		}
		values[name] = series
	}

	tl, err := model.NewTimeline(window, s.Names(), values, Version(s, g, window))
	if err != nil {
		return nil, eris.Wrap(err, "baseline: assemble timeline")
	}

	zap.L().Debug("baseline built",
		zap.Int("params", s.Len()),
		zap.String("window", window.String()),
	)
	return tl, nil
}

// buildSeries walks one parameter from its first legislated year to the end
// of the window. A legislated knot always wins; between knots the value holds
// or advances per the indexing rule.
func buildSeries(p *model.ParameterSpec, g *model.GrowFactors, window model.YearRange) ([]model.Value, error) {
	if window.First < p.ValidYears.First || window.Last > p.ValidYears.Last {
		return nil, eris.Errorf("baseline: window %s exceeds parameter %s valid years %s",
			window, p.Name, p.ValidYears)
	}

	knots := p.KnotYears()
	if len(knots) == 0 {
		return nil, eris.Errorf("baseline: parameter %s has no legislated values", p.Name)
	}
	start := knots[0]
	if start > window.First {
		return nil, eris.Errorf("baseline: parameter %s has no legislated value at or before %d",
			p.Name, window.First)
	}

	out := make([]model.Value, 0, window.Len())
	var cur model.Value
	for y := start; y <= window.Last; y++ {
		if v, ok := p.KnotAt(y); ok {
			cur = v
		} else if p.Rule.Indexed() {
			rate, err := g.Rate(p.Rule.Series(), y)
			if err != nil {
				return nil, eris.Wrapf(err, "baseline: parameter %s", p.Name)
			}
			cur = Advance(cur, rate)
		}
		if y >= window.First {
			out = append(out, cur)
		}
	}
	return out, nil
}

package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// GrowFactors holds year-over-year growth-factor series used by the indexing
// rules. Rate(series, year) is the factor applied when a value is advanced
// into year from year-1: next = prev * (1 + rate).
type GrowFactors struct {
	series  map[string]map[int]float64
	years   YearRange
	version string
}

// NewGrowFactors builds an indexed, versioned factor table. The year coverage
// is the union across series.
func NewGrowFactors(series map[string]map[int]float64) *GrowFactors {
	g := &GrowFactors{series: make(map[string]map[int]float64, len(series))}

	first, last := 0, 0
	for name, rates := range series {
		s := make(map[int]float64, len(rates))
		for y, r := range rates {
			s[y] = r
			if first == 0 || y < first {
				first = y
			}
			if y > last {
				last = y
			}
		}
		g.series[name] = s
	}
	g.years = YearRange{First: first, Last: last}

	h := sha256.New()
	for _, name := range g.Series() {
		rates := g.series[name]
		years := make([]int, 0, len(rates))
		for y := range rates {
			years = append(years, y)
		}
		sort.Ints(years)
		for _, y := range years {
			fmt.Fprintf(h, "%s|%d|%g\n", name, y, rates[y])
		}
	}
	g.version = hex.EncodeToString(h.Sum(nil))
	return g
}

// Rate returns the growth factor for advancing into year on the named series.
func (g *GrowFactors) Rate(series string, year int) (float64, error) {
	rates, ok := g.series[series]
	if !ok {
		return 0, &IndexingDataMissingError{Series: series, Year: year}
	}
	r, ok := rates[year]
	if !ok {
		return 0, &IndexingDataMissingError{Series: series, Year: year}
	}
	return r, nil
}

// Has reports whether the named series exists.
func (g *GrowFactors) Has(series string) bool {
	_, ok := g.series[series]
	return ok
}

// Series returns the series names, sorted.
func (g *GrowFactors) Series() []string {
	names := make([]string, 0, len(g.series))
	for name := range g.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Years returns the union year coverage across all series.
func (g *GrowFactors) Years() YearRange {
	return g.years
}

// Version returns the factor table's content digest.
func (g *GrowFactors) Version() string {
	return g.version
}

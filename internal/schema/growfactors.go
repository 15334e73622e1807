package schema

import (
	"bytes"
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/taxfoundry/policy-cli/internal/model"
)

// DefaultGrowFactorsFile is the embedded factor table's logical name.
const DefaultGrowFactorsFile = "growfactors.csv"

// LoadGrowFactors reads a growth-factor table from a CSV file. The header
// must carry a YEAR column; every other column is a factor series.
func LoadGrowFactors(path string) (*model.GrowFactors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "growfactors: read %s", path)
	}
	g, err := ParseGrowFactors(data)
	if err != nil {
		return nil, eris.Wrapf(err, "growfactors: load %s", path)
	}
	return g, nil
}

// DefaultGrowFactors returns the embedded factor table.
func DefaultGrowFactors() (*model.GrowFactors, error) {
	data, err := dataFS.ReadFile("data/growfactors.csv")
	if err != nil {
		return nil, eris.Wrap(err, "growfactors: read embedded defaults")
	}
	return ParseGrowFactors(data)
}

// ParseGrowFactors decodes growth-factor CSV.
func ParseGrowFactors(data []byte) (*model.GrowFactors, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1 // ragged rows reported with row context below

	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "growfactors: parse csv")
	}
	if len(rows) < 2 {
		return nil, eris.New("growfactors: csv needs a header and at least one row")
	}

	header := rows[0]
	yearCol := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "YEAR") {
			yearCol = i
			break
		}
	}
	if yearCol < 0 {
		return nil, eris.New("growfactors: csv header has no YEAR column")
	}

	series := make(map[string]map[int]float64, len(header)-1)
	for i, name := range header {
		if i == yearCol {
			continue
		}
		name = strings.ToUpper(strings.TrimSpace(name))
		if name == "" {
			return nil, eris.Errorf("growfactors: empty series name in column %d", i)
		}
		if _, dup := series[name]; dup {
			return nil, eris.Errorf("growfactors: duplicate series %s", name)
		}
		series[name] = make(map[int]float64, len(rows)-1)
	}

	for n, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, eris.Errorf("growfactors: row %d has %d columns, header has %d", n+2, len(row), len(header))
		}
		year, err := strconv.Atoi(strings.TrimSpace(row[yearCol]))
		if err != nil {
			return nil, eris.Errorf("growfactors: row %d: bad year %q", n+2, row[yearCol])
		}
		for i, cell := range row {
			if i == yearCol {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			f, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, eris.Errorf("growfactors: row %d column %s: bad rate %q", n+2, header[i], cell)
			}
			name := strings.ToUpper(strings.TrimSpace(header[i]))
			if _, dup := series[name][year]; dup {
				return nil, eris.Errorf("growfactors: duplicate year %d in series %s", year, name)
			}
			series[name][year] = f
		}
	}
	return model.NewGrowFactors(series), nil
}

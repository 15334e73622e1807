package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxfoundry/policy-cli/internal/model"
)

const minimalYAML = `
parameters:
  - name: NIIT_rt
    title: Net investment income tax rate
    kind: rate
    unit: fraction
    rule: none
    years: {first: 2013, last: 2035}
    bounds: {min: 0, max: 1}
    values:
      2013: 0.038
  - name: NIIT_thd
    kind: bracket
    unit: usd
    rule: none
    indexable: true
    bracket_len: 5
    years: {first: 2013, last: 2035}
    bounds: {min: 0}
    values:
      2013: [200000, 250000, 125000, 200000, 250000]
  - name: SS_Earnings_c
    kind: scalar
    unit: usd
    rule: wage
    years: {first: 2013, last: 2035}
    bounds: {min: 0}
    values:
      2013: 113700
      2020: 137700
`

func TestParse(t *testing.T) {
	t.Parallel()

	s, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"NIIT_rt", "NIIT_thd", "SS_Earnings_c"}, s.Names())

	rt, err := s.Lookup("NIIT_rt")
	require.NoError(t, err)
	assert.Equal(t, model.KindRate, rt.Kind)
	assert.Equal(t, model.RuleNone, rt.Rule)
	assert.False(t, rt.Indexable)
	v, ok := rt.KnotAt(2013)
	require.True(t, ok)
	assert.Equal(t, model.Scalar(0.038), v)

	thd, err := s.Lookup("NIIT_thd")
	require.NoError(t, err)
	assert.Equal(t, model.KindBracket, thd.Kind)
	assert.True(t, thd.Indexable)
	v, ok = thd.KnotAt(2013)
	require.True(t, ok)
	assert.Equal(t, model.Bracket([]float64{200000, 250000, 125000, 200000, 250000}), v)

	cap, err := s.Lookup("SS_Earnings_c")
	require.NoError(t, err)
	assert.Equal(t, model.RuleWage, cap.Rule)
	assert.True(t, cap.Indexable, "wage rule implies indexable")
	assert.Equal(t, []int{2013, 2020}, cap.KnotYears())
}

func TestParseRejectsBadSchemas(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"not yaml", "parameters: [", "parse yaml"},
		{"no parameters", "parameters: []", "no parameters"},
		{"unknown kind", yamlParam("X", "kind", "money"), "unknown kind"},
		{"unknown unit", yamlParam("X", "unit", "eur"), "unknown unit"},
		{"unknown rule", yamlParam("X", "rule", "cpi"), "unknown rule"},
		{"unknown series", yamlParam("X", "series", "AINTS"), "unknown series"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("duplicate name", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`
parameters:
  - name: NIIT_rt
    kind: rate
    unit: fraction
    rule: none
    years: {first: 2013, last: 2035}
    values: {2013: 0.038}
  - name: NIIT_rt
    kind: rate
    unit: fraction
    rule: none
    years: {first: 2013, last: 2035}
    values: {2013: 0.038}
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate parameter NIIT_rt")
	})

	t.Run("bracket without length", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`
parameters:
  - name: NIIT_thd
    kind: bracket
    unit: usd
    rule: none
    years: {first: 2013, last: 2035}
    values: {2013: [1, 2]}
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bracket_len")
	})

	t.Run("knot outside valid years", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`
parameters:
  - name: NIIT_rt
    kind: rate
    unit: fraction
    rule: none
    years: {first: 2013, last: 2035}
    values: {2012: 0.038}
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "legislated year 2012")
	})

	t.Run("knot violates bounds", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`
parameters:
  - name: NIIT_rt
    kind: rate
    unit: fraction
    rule: none
    years: {first: 2013, last: 2035}
    bounds: {min: 0, max: 1}
    values: {2013: 1.5}
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "above maximum")
	})

	t.Run("non-numeric knot", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`
parameters:
  - name: NIIT_rt
    kind: rate
    unit: fraction
    rule: none
    years: {first: 2013, last: 2035}
    values: {2013: lots}
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a number")
	})
}

// yamlParam builds a one-parameter schema with a single field overridden.
func yamlParam(name, field, value string) string {
	fields := map[string]string{
		"kind":   "rate",
		"unit":   "fraction",
		"rule":   "none",
		"series": "",
	}
	fields[field] = value
	doc := `
parameters:
  - name: ` + name + `
    kind: ` + fields["kind"] + `
    unit: ` + fields["unit"] + `
    rule: ` + fields["rule"] + `
`
	if fields["series"] != "" {
		doc += `    series: ` + fields["series"] + "\n"
	}
	doc += `    years: {first: 2013, last: 2035}
    values:
      2013: 0.038
`
	return doc
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultSchema(t *testing.T) {
	t.Parallel()

	s, err := Default()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, s.Len(), 15)

	thd, err := s.Lookup("SS_Earnings_thd")
	require.NoError(t, err)
	assert.Equal(t, model.RuleWage, thd.Rule)
	v, ok := thd.KnotAt(2020)
	require.True(t, ok)
	assert.Equal(t, model.Scalar(137700), v)

	ctc, err := s.Lookup("CTC_c")
	require.NoError(t, err)
	assert.Equal(t, model.RuleStep, ctc.Rule)
	assert.Equal(t, []int{2013, 2018, 2026}, ctc.KnotYears())

	niit, err := s.Lookup("NIIT_rt")
	require.NoError(t, err)
	v, ok = niit.KnotAt(2013)
	require.True(t, ok)
	assert.Equal(t, model.Scalar(0.038), v)

	// The digest must be reproducible across loads.
	again, err := Default()
	require.NoError(t, err)
	assert.Equal(t, s.Version(), again.Version())
}

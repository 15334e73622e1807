package reform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxfoundry/policy-cli/internal/model"
)

func f64(v float64) *float64 { return &v }

func testSchema() *model.Schema {
	years := model.YearRange{First: 2013, Last: 2035}
	return model.NewSchema([]model.ParameterSpec{
		{
			Name: "SS_Earnings_thd", Kind: model.KindScalar, Unit: model.UnitUSD,
			Rule: model.RuleWage, Indexable: true, ValidYears: years,
			Bounds: model.Bounds{Min: f64(0)},
			Values: map[int]model.Value{2013: model.Scalar(113700)},
		},
		{
			Name: "NIIT_rt", Kind: model.KindRate, Unit: model.UnitFraction,
			Rule: model.RuleNone, ValidYears: years,
			Bounds: model.Bounds{Min: f64(0), Max: f64(1)},
			Values: map[int]model.Value{2013: model.Scalar(0.038)},
		},
		{
			Name: "NIIT_thd", Kind: model.KindBracket, Unit: model.UnitUSD,
			Rule: model.RuleNone, Indexable: true, BracketLen: 5, ValidYears: years,
			Bounds: model.Bounds{Min: f64(0)},
			Values: map[int]model.Value{2013: model.Bracket([]float64{200000, 250000, 125000, 200000, 250000})},
		},
		{
			Name: "FICA_ss_trt", Kind: model.KindRate, Unit: model.UnitFraction,
			Rule: model.RuleNone, ValidYears: years,
			Bounds: model.Bounds{Min: f64(0), Max: f64(1)},
			Values: map[int]model.Value{2013: model.Scalar(0.124)},
		},
		{
			Name: "EITC_MinEligAge", Kind: model.KindScalar, Unit: model.UnitYear,
			Rule: model.RuleNone, Integer: true, ValidYears: years,
			Bounds: model.Bounds{Min: f64(0), Max: f64(99)},
			Values: map[int]model.Value{2013: model.Scalar(25)},
		},
	})
}

func TestParseValidDocument(t *testing.T) {
	t.Parallel()

	data := []byte(`// Title: Payroll surtax package
// Reform_File_Author: Jane Analyst
// Reform_Description:
// - Apply OASDI tax above $250,000 (1)
// Reform_Parameter_Map:
// - 1: SS_Earnings_thd
{
    "SS_Earnings_thd": {"2020": 250000},     // new earnings band
    "NIIT_rt": {"2021": 0.1, "2023": 0.12},
    "NIIT_thd": {"2021": [200000, 250000, 125000, 200000, 250000]},
    "SS_Earnings_thd-indexed": {"2021": false}
}
`)

	doc, err := Parse(data, testSchema())
	require.NoError(t, err)

	assert.Equal(t, "Payroll surtax package", doc.Provenance.Title)
	assert.Equal(t, "Jane Analyst", doc.Provenance.Author)
	assert.Equal(t, map[int]string{1: "SS_Earnings_thd"}, doc.Provenance.ParameterMap)

	assert.Equal(t, []string{"SS_Earnings_thd", "NIIT_rt", "NIIT_thd"}, doc.Overrides.Params())
	assert.Equal(t, []int{2021, 2023}, doc.Overrides.Years("NIIT_rt"))

	v, ok := doc.Overrides.Get("SS_Earnings_thd", 2020)
	require.True(t, ok)
	assert.Equal(t, model.Scalar(250000), v)

	v, ok = doc.Overrides.Get("NIIT_thd", 2021)
	require.True(t, ok)
	assert.True(t, v.IsBracket())

	require.Len(t, doc.Flips, 1)
	assert.Equal(t, model.IndexFlip{Param: "SS_Earnings_thd", Year: 2021, Indexed: false}, doc.Flips[0])

	assert.Len(t, doc.Digest(), 64)
	assert.False(t, doc.Empty())
}

func TestParseEmptyReform(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`{}`), testSchema())
	require.NoError(t, err)
	assert.True(t, doc.Empty())
}

func TestParseLegacyPolicyWrapper(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`{"policy": {"NIIT_rt": {"2021": 0.1}}}`), testSchema())
	require.NoError(t, err)

	v, ok := doc.Overrides.Get("NIIT_rt", 2021)
	require.True(t, ok)
	assert.Equal(t, model.Scalar(0.1), v)

	// The wrapper only applies when "policy" is the lone top-level key.
	_, err = Parse([]byte(`{"policy": {"NIIT_rt": {"2021": 0.1}}, "NIIT_rt": {"2022": 0.1}}`), testSchema())
	var unknown *model.UnknownParameterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "policy", unknown.Name)
}

func TestParseMergesRepeatedBlocks(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`{"NIIT_rt": {"2021": 0.1}, "NIIT_rt": {"2022": 0.11}}`), testSchema())
	require.NoError(t, err)
	assert.Equal(t, []int{2021, 2022}, doc.Overrides.Years("NIIT_rt"))
}

func TestParseDigestIsFormattingInsensitive(t *testing.T) {
	t.Parallel()

	a, err := Parse([]byte(`// Title: One
{
    "NIIT_rt": {"2021": 0.1},
    "SS_Earnings_thd": {"2020": 250000}
}`), testSchema())
	require.NoError(t, err)

	b, err := Parse([]byte(`{"SS_Earnings_thd":{"2020":250000},"NIIT_rt":{"2021":0.1}}`), testSchema())
	require.NoError(t, err)

	assert.Equal(t, a.Digest(), b.Digest())
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	s := testSchema()

	t.Run("unknown parameter", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"SS_Earnings_x": {"2020": 1}}`), s)
		var unknown *model.UnknownParameterError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "SS_Earnings_x", unknown.Name)
	})

	t.Run("malformed year key", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"NIIT_rt": {"twenty21": 0.1}}`), s)
		var iy *model.InvalidYearError
		require.ErrorAs(t, err, &iy)
		assert.Equal(t, "twenty21", iy.Raw)
	})

	t.Run("year outside valid range", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"NIIT_rt": {"2050": 0.1}}`), s)
		var iy *model.InvalidYearError
		require.ErrorAs(t, err, &iy)
		assert.Equal(t, 2050, iy.Year)
		assert.Equal(t, model.YearRange{First: 2013, Last: 2035}, iy.Range)
	})

	t.Run("scalar for bracket parameter", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"NIIT_thd": {"2021": 250000}}`), s)
		var tm *model.TypeMismatchError
		require.ErrorAs(t, err, &tm)
		assert.Equal(t, "array of 5 numbers", tm.Want)
	})

	t.Run("bracket for scalar parameter", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"NIIT_rt": {"2021": [0.1]}}`), s)
		var tm *model.TypeMismatchError
		require.ErrorAs(t, err, &tm)
		assert.Equal(t, "scalar number", tm.Want)
	})

	t.Run("bracket wrong length", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"NIIT_thd": {"2021": [1, 2, 3]}}`), s)
		var tm *model.TypeMismatchError
		require.ErrorAs(t, err, &tm)
		assert.Equal(t, "array of 3 numbers", tm.Got)
	})

	t.Run("boolean value", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"NIIT_rt": {"2021": true}}`), s)
		var tm *model.TypeMismatchError
		require.ErrorAs(t, err, &tm)
		assert.Equal(t, "boolean", tm.Got)
	})

	t.Run("string value", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"NIIT_rt": {"2021": "high"}}`), s)
		var tm *model.TypeMismatchError
		require.ErrorAs(t, err, &tm)
		assert.Equal(t, "string", tm.Got)
	})

	t.Run("null value", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"NIIT_rt": {"2021": null}}`), s)
		var tm *model.TypeMismatchError
		require.ErrorAs(t, err, &tm)
		assert.Equal(t, "null", tm.Got)
	})

	t.Run("object value", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"NIIT_rt": {"2021": {"v": 0.1}}}`), s)
		var tm *model.TypeMismatchError
		require.ErrorAs(t, err, &tm)
		assert.Equal(t, "object", tm.Got)
	})

	t.Run("array containing non-numbers", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"NIIT_thd": {"2021": [1, "x", 3, 4, 5]}}`), s)
		var tm *model.TypeMismatchError
		require.ErrorAs(t, err, &tm)
		assert.Equal(t, "array containing string", tm.Got)
	})

	t.Run("value above maximum", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"NIIT_rt": {"2021": 1.5}}`), s)
		var oob *model.OutOfBoundsError
		require.ErrorAs(t, err, &oob)
		assert.Equal(t, 1.5, oob.Value)
	})

	t.Run("non-integer for integer parameter", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"EITC_MinEligAge": {"2021": 25.5}}`), s)
		var tm *model.TypeMismatchError
		require.ErrorAs(t, err, &tm)
		assert.Equal(t, "integer", tm.Want)
	})

	t.Run("duplicate year in one block", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"NIIT_rt": {"2021": 0.1, "2021": 0.2}}`), s)
		var dup *model.DuplicateOverrideError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, 2021, dup.Year)
	})

	t.Run("duplicate cell across repeated blocks", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"NIIT_rt": {"2021": 0.1}, "NIIT_rt": {"2021": 0.2}}`), s)
		var dup *model.DuplicateOverrideError
		require.ErrorAs(t, err, &dup)
	})

	t.Run("flip on non-indexable parameter", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"FICA_ss_trt-indexed": {"2021": true}}`), s)
		var ni *model.NotIndexableError
		require.ErrorAs(t, err, &ni)
		assert.Equal(t, "FICA_ss_trt", ni.Param)
	})

	t.Run("flip on unknown parameter", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"Nope-indexed": {"2021": true}}`), s)
		var unknown *model.UnknownParameterError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "Nope", unknown.Name)
	})

	t.Run("flip value not boolean", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"SS_Earnings_thd-indexed": {"2021": 1}}`), s)
		var tm *model.TypeMismatchError
		require.ErrorAs(t, err, &tm)
		assert.Equal(t, "boolean", tm.Want)
		assert.Equal(t, "number", tm.Got)
	})

	t.Run("duplicate flip cell", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"SS_Earnings_thd-indexed": {"2021": true, "2021": false}}`), s)
		var dup *model.DuplicateOverrideError
		require.ErrorAs(t, err, &dup)
	})

	t.Run("parameter block not an object", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"NIIT_rt": 0.1}`), s)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Contains(t, pe.Msg, "must be an object")
	})

	t.Run("root not an object", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`[1, 2]`), s)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Contains(t, pe.Msg, "root must be a JSON object")
	})

	t.Run("malformed json reports offset", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"NIIT_rt": {`), s)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Positive(t, pe.Offset)
	})

	t.Run("trailing data", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{} {}`), s)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Contains(t, pe.Msg, "trailing data")
	})

	t.Run("comment-only file", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte("// Title: nothing else\n"), s)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Contains(t, pe.Msg, "no JSON body")
	})
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(dir, "surtax.json")
		require.NoError(t, os.WriteFile(path, []byte(`// Title: Surtax
{"NIIT_rt": {"2021": 0.1}}`), 0o644))

		doc, err := ParseFile(path, testSchema())
		require.NoError(t, err)
		assert.Equal(t, "Surtax", doc.Provenance.Title)
	})

	t.Run("parse error carries path", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))

		_, err := ParseFile(path, testSchema())
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, path, pe.Path)
		assert.Contains(t, err.Error(), "broken.json")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := ParseFile(filepath.Join(dir, "missing.json"), testSchema())
		assert.Error(t, err)
	})
}

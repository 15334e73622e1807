package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxfoundry/policy-cli/internal/model"
	"github.com/taxfoundry/policy-cli/internal/schema"
)

func defaultSchema(t *testing.T) *model.Schema {
	t.Helper()
	s, err := schema.Default()
	require.NoError(t, err)
	return s
}

func TestListBuiltins(t *testing.T) {
	t.Parallel()

	r := New(defaultSchema(t))
	entries := r.List()

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
		assert.True(t, e.Builtin, e.ID)
		assert.Empty(t, e.Path, e.ID)
		assert.NotEmpty(t, e.Provenance.Title, e.ID)
		assert.NotEmpty(t, e.Params, e.ID)
	}
	assert.Equal(t, []string{
		"amedt-expansion",
		"ctc-extension",
		"niit-expansion",
		"ptax-cap-repeal",
		"ss-doughnut-hole",
	}, ids)
}

func TestLoadBuiltin(t *testing.T) {
	t.Parallel()

	r := New(defaultSchema(t))

	doc, err := r.Load("ss-doughnut-hole")
	require.NoError(t, err)
	v, ok := doc.Overrides.Get("SS_Earnings_thd", 2020)
	require.True(t, ok)
	assert.Equal(t, model.Scalar(250000), v)

	doc, err = r.Load("ptax-cap-repeal")
	require.NoError(t, err)
	require.Len(t, doc.Flips, 1)
	assert.Equal(t, model.IndexFlip{Param: "SS_Earnings_c", Year: 2021, Indexed: false}, doc.Flips[0])
}

func TestLoadUnknown(t *testing.T) {
	t.Parallel()

	r := New(defaultSchema(t))
	_, err := r.Load("no-such-reform")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "no-such-reform")
	assert.Contains(t, err.Error(), "built-in catalog")
}

func TestDirectoryScan(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("good.json", `// Title: Good reform
{"NIIT_rt": {"2022": 0.05}}`)
	write("bad.json", `{"Not_A_Parameter": {"2022": 1}}`)
	write("notes.txt", "not a reform")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	r := New(defaultSchema(t), dir)
	entries := r.List()

	byID := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	good, ok := byID["good"]
	require.True(t, ok)
	assert.False(t, good.Builtin)
	assert.Equal(t, filepath.Join(dir, "good.json"), good.Path)
	assert.Equal(t, "Good reform", good.Provenance.Title)
	assert.NotContains(t, byID, "bad")
	assert.NotContains(t, byID, "notes")

	doc, err := r.Load("good")
	require.NoError(t, err)
	v, ok := doc.Overrides.Get("NIIT_rt", 2022)
	require.True(t, ok)
	assert.Equal(t, model.Scalar(0.05), v)
}

func TestDirectoryShadowsBuiltin(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "niit-expansion.json"),
		[]byte(`// Title: Local NIIT tweak
{"NIIT_rt": {"2021": 0.2}}`), 0o644))

	r := New(defaultSchema(t), dir)

	var entry Entry
	for _, e := range r.List() {
		if e.ID == "niit-expansion" {
			entry = e
		}
	}
	require.Equal(t, "niit-expansion", entry.ID)
	assert.False(t, entry.Builtin)
	assert.Equal(t, "Local NIIT tweak", entry.Provenance.Title)

	doc, err := r.Load("niit-expansion")
	require.NoError(t, err)
	v, ok := doc.Overrides.Get("NIIT_rt", 2021)
	require.True(t, ok)
	assert.Equal(t, model.Scalar(0.2), v)
}

func TestLaterDirectoryWins(t *testing.T) {
	t.Parallel()

	dirA, dirB := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dirA, "tweak.json"),
		[]byte(`{"NIIT_rt": {"2021": 0.06}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dirB, "tweak.json"),
		[]byte(`{"NIIT_rt": {"2021": 0.07}}`), 0o644))

	r := New(defaultSchema(t), dirA, dirB)
	doc, err := r.Load("tweak")
	require.NoError(t, err)
	v, ok := doc.Overrides.Get("NIIT_rt", 2021)
	require.True(t, ok)
	assert.Equal(t, model.Scalar(0.07), v)
}

package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taxfoundry/policy-cli/internal/config"
	"github.com/taxfoundry/policy-cli/internal/model"
)

// testConfig installs a minimal config so command helpers can run without
// touching viper. The previous config is restored on cleanup.
func testConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{
		Store:  config.StoreConfig{Driver: "none"},
		Window: config.WindowConfig{First: 2018, Last: 2027},
		Batch:  config.BatchConfig{MaxConcurrent: 2},
	}
	t.Cleanup(func() { cfg = prev })
}

// testEngine builds an engine over the built-in schema and growth factors.
func testEngine(t *testing.T) *engine {
	t.Helper()
	testConfig(t)

	eng, err := loadEngine(model.YearRange{First: 2018, Last: 2027})
	require.NoError(t, err)
	return eng
}

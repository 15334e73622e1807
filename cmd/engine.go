package main

import (
	"github.com/taxfoundry/policy-cli/internal/baseline"
	"github.com/taxfoundry/policy-cli/internal/model"
	"github.com/taxfoundry/policy-cli/internal/registry"
	"github.com/taxfoundry/policy-cli/internal/resolve"
	"github.com/taxfoundry/policy-cli/internal/schema"
)

var (
	schemaPath string
	growthPath string
)

// engine bundles the shared read-only state behind every command: the
// parameter schema, growth factors, the current-law baseline over the
// requested window, and the reform catalog.
type engine struct {
	Schema   *model.Schema
	Growth   *model.GrowFactors
	Baseline *model.Timeline
	Resolver *resolve.Resolver
	Registry *registry.Registry
}

func loadEngine(window model.YearRange) (*engine, error) {
	sch, gf, err := loadInputs()
	if err != nil {
		return nil, err
	}

	base, err := baseline.Build(sch, gf, window)
	if err != nil {
		return nil, err
	}

	return &engine{
		Schema:   sch,
		Growth:   gf,
		Baseline: base,
		Resolver: resolve.New(sch, gf),
		Registry: registry.New(sch, cfg.Registry.ReformDirs...),
	}, nil
}

// loadInputs reads the schema and growth factors from --schema/--growfactors
// when given, otherwise from the built-in copies.
func loadInputs() (*model.Schema, *model.GrowFactors, error) {
	var (
		sch *model.Schema
		err error
	)
	if schemaPath != "" {
		sch, err = schema.Load(schemaPath)
	} else {
		sch, err = schema.Default()
	}
	if err != nil {
		return nil, nil, err
	}

	var gf *model.GrowFactors
	if growthPath != "" {
		gf, err = schema.LoadGrowFactors(growthPath)
	} else {
		gf, err = schema.DefaultGrowFactors()
	}
	if err != nil {
		return nil, nil, err
	}

	return sch, gf, nil
}

// resolveWindow applies --first/--last overrides on top of the configured
// resolution window. Zero means "keep the config value".
func resolveWindow(first, last int) model.YearRange {
	w := model.YearRange{First: cfg.Window.First, Last: cfg.Window.Last}
	if first != 0 {
		w.First = first
	}
	if last != 0 {
		w.Last = last
	}
	return w
}

func init() {
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "", "parameter schema YAML (default: built-in)")
	rootCmd.PersistentFlags().StringVar(&growthPath, "growfactors", "", "growth factor CSV (default: built-in)")
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/taxfoundry/policy-cli/internal/model"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Inspect the parameter schema",
	Long:  "Commands for listing schema parameters and showing their baseline timelines.",
}

// -- params list --

var paramsListYear int

var paramsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schema parameters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		window := resolveWindow(0, 0)
		if paramsListYear != 0 && !window.Contains(paramsListYear) {
			return eris.Errorf("year %d is outside the window %s", paramsListYear, window)
		}

		eng, err := loadEngine(window)
		if err != nil {
			return err
		}

		formatParamsList(os.Stdout, eng.Schema, eng.Baseline, paramsListYear)
		return nil
	},
}

// -- params show --

var paramsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one parameter's spec and baseline timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := loadEngine(resolveWindow(0, 0))
		if err != nil {
			return err
		}

		p, err := eng.Schema.Lookup(args[0])
		if err != nil {
			return err
		}

		series, err := eng.Baseline.Series(args[0])
		if err != nil {
			return err
		}
		window := eng.Baseline.Window()
		base := make(map[int]model.Value, len(series))
		for i, v := range series {
			base[window.First+i] = v
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*model.ParameterSpec
			Baseline map[int]model.Value `json:"baseline"`
		}{p, base})
	},
}

// formatParamsList writes a tabular view of the schema to w, with baseline
// values at year when year is non-zero.
func formatParamsList(out io.Writer, s *model.Schema, base *model.Timeline, year int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if year != 0 {
		_, _ = fmt.Fprintf(w, "NAME\tKIND\tUNIT\tRULE\tYEARS\t%d\n", year)
		_, _ = fmt.Fprintf(w, "----\t----\t----\t----\t-----\t----\n")
	} else {
		_, _ = fmt.Fprintln(w, "NAME\tKIND\tUNIT\tRULE\tYEARS")
		_, _ = fmt.Fprintln(w, "----\t----\t----\t----\t-----")
	}

	for _, name := range s.Names() {
		p, err := s.Lookup(name)
		if err != nil {
			continue
		}
		if year != 0 {
			val := ""
			if v, err := base.Get(name, year); err == nil {
				val = v.String()
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", p.Name, p.Kind, p.Unit, p.Rule, p.ValidYears, val)
		} else {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, p.Kind, p.Unit, p.Rule, p.ValidYears)
		}
	}
	_ = w.Flush()
}

func init() {
	paramsListCmd.Flags().IntVar(&paramsListYear, "year", 0, "show baseline values at this year")
	paramsCmd.AddCommand(paramsListCmd)
	paramsCmd.AddCommand(paramsShowCmd)
	rootCmd.AddCommand(paramsCmd)
}

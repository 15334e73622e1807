package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/taxfoundry/policy-cli/internal/model"
	"github.com/taxfoundry/policy-cli/internal/registry"
)

var reformsCmd = &cobra.Command{
	Use:   "reforms",
	Short: "Inspect the reform catalog",
	Long:  "Commands for listing catalogued reform documents and showing their contents.",
}

// -- reforms list --

var reformsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogued reforms",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sch, _, err := loadInputs()
		if err != nil {
			return err
		}

		entries := registry.New(sch, cfg.Registry.ReformDirs...).List()
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No reforms found.")
			return nil
		}

		formatReformsList(os.Stdout, entries)
		return nil
	},
}

// -- reforms show --

var reformsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a reform's provenance, digest, and canonical body",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sch, _, err := loadInputs()
		if err != nil {
			return err
		}

		doc, err := registry.New(sch, cfg.Registry.ReformDirs...).Load(args[0])
		if err != nil {
			return err
		}

		body, err := doc.MarshalJSON()
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			ID         string           `json:"id"`
			Provenance model.Provenance `json:"provenance"`
			Digest     string           `json:"digest"`
			Body       json.RawMessage  `json:"body"`
		}{args[0], doc.Provenance, doc.Digest(), body})
	},
}

// formatReformsList writes a tabular view of the catalog to w.
func formatReformsList(out io.Writer, entries []registry.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tPARAMS\tTITLE")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-----")

	for _, e := range entries {
		source := e.Path
		if e.Builtin {
			source = "builtin"
		}

		title := e.Provenance.Title
		if len(title) > 48 {
			title = title[:45] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.ID, source, len(e.Params), title)
	}
	_ = w.Flush()
}

func init() {
	reformsCmd.AddCommand(reformsListCmd)
	reformsCmd.AddCommand(reformsShowCmd)
	rootCmd.AddCommand(reformsCmd)
}

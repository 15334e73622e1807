package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/taxfoundry/policy-cli/internal/reform"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Validate reform files against the schema",
	Long:  "Parses each file, checks every override against the parameter schema, and reports the first problem per file. Exits non-zero if any file fails.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sch, _, err := loadInputs()
		if err != nil {
			return err
		}

		failed := 0
		for _, path := range args {
			doc, err := reform.ParseFile(path, sch)
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
				continue
			}
			fmt.Printf("%s: ok (%d parameters, %d overrides, digest %.8s)\n",
				path, len(doc.Params()), doc.Overrides.Len(), doc.Digest())
		}

		if failed > 0 {
			return eris.Errorf("%d of %d files failed validation", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

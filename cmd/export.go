package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taxfoundry/policy-cli/internal/export"
	"github.com/taxfoundry/policy-cli/internal/model"
)

var (
	exportFiles  []string
	exportParams []string
	exportFirst  int
	exportLast   int
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export [reform-id]...",
	Short: "Export a resolved timeline to CSV or XLSX",
	Long:  "Resolves reforms like the resolve command and writes the timeline to a file. XLSX workbooks carry a diff-vs-baseline sheet when reforms are applied.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("resolve"); err != nil {
			return err
		}
		if exportOutput == "" {
			return eris.New("--output is required")
		}

		format, err := inferFormat(exportFormat, exportOutput)
		if err != nil {
			return err
		}

		eng, err := loadEngine(resolveWindow(exportFirst, exportLast))
		if err != nil {
			return err
		}

		names, docs, err := loadDocuments(eng, args, exportFiles)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		tl, cached, err := resolveWithCache(ctx, eng, st, names, docs)
		if err != nil {
			return err
		}

		base := eng.Baseline
		if len(exportParams) > 0 {
			tl, err = filterTimeline(tl, exportParams)
			if err != nil {
				return err
			}
			base, err = filterTimeline(base, exportParams)
			if err != nil {
				return err
			}
		}

		f, err := os.Create(exportOutput)
		if err != nil {
			return eris.Wrapf(err, "export: create %s", exportOutput)
		}

		var werr error
		switch format {
		case "csv":
			werr = export.WriteCSV(f, tl)
		case "xlsx":
			// The diff sheet only means something once a reform moved values.
			var diffBase *model.Timeline
			if len(docs) > 0 {
				diffBase = base
			}
			werr = export.WriteXLSX(f, tl, diffBase)
		}
		if werr != nil {
			_ = f.Close()
			return werr
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "export: close %s", exportOutput)
		}

		zap.L().Info("exported",
			zap.String("file", exportOutput),
			zap.String("format", format),
			zap.Strings("reforms", names),
			zap.Bool("cached", cached),
		)
		return nil
	},
}

// inferFormat picks the export format from --format, falling back to the
// output file extension.
func inferFormat(format, output string) (string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(output)) {
		case ".csv":
			format = "csv"
		case ".xlsx":
			format = "xlsx"
		default:
			return "", eris.Errorf("cannot infer format from %q, pass --format", output)
		}
	}
	switch format {
	case "csv", "xlsx":
		return format, nil
	default:
		return "", eris.Errorf("unknown format %q (want csv or xlsx)", format)
	}
}

func init() {
	exportCmd.Flags().StringSliceVar(&exportFiles, "file", nil, "reform file to apply (repeatable, applied after catalog reforms)")
	exportCmd.Flags().StringSliceVar(&exportParams, "params", nil, "limit output to these parameters")
	exportCmd.Flags().IntVar(&exportFirst, "first", 0, "first year of the window (default from config)")
	exportCmd.Flags().IntVar(&exportLast, "last", 0, "last year of the window (default from config)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "output format: csv or xlsx (default: from file extension)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file path")
	rootCmd.AddCommand(exportCmd)
}

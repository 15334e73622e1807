package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/taxfoundry/policy-cli/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the timeline cache",
	Long:  "Commands for summarizing the cache, clearing it, and listing the resolution log.",
}

// -- cache stats --

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the timeline cache",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("cache"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.CacheStats(ctx)
		if err != nil {
			return err
		}

		formatCacheStats(os.Stdout, stats)
		return nil
	},
}

// -- cache clear --

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached timeline",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("cache"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.ClearCache(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Cleared %d cached timelines.\n", n)
		return nil
	},
}

// -- cache log --

var (
	cacheLogReform string
	cacheLogLimit  int
)

var cacheLogCmd = &cobra.Command{
	Use:   "log",
	Short: "List recorded resolutions, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("cache"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rows, err := st.ListResolutions(ctx, store.ResolutionFilter{
			Reform: cacheLogReform,
			Limit:  cacheLogLimit,
		})
		if err != nil {
			return err
		}

		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "No resolutions recorded.")
			return nil
		}

		formatResolutions(os.Stdout, rows)
		return nil
	},
}

// formatCacheStats writes cache totals to w.
func formatCacheStats(out io.Writer, s *store.CacheStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Entries:\t%d\n", s.Entries)
	_, _ = fmt.Fprintf(w, "Bytes:\t%d\n", s.Bytes)
	if !s.Oldest.IsZero() {
		_, _ = fmt.Fprintf(w, "Oldest:\t%s\n", s.Oldest.Format(time.RFC3339))
		_, _ = fmt.Fprintf(w, "Newest:\t%s\n", s.Newest.Format(time.RFC3339))
	}
	_ = w.Flush()
}

// formatResolutions writes a tabular view of the resolution log to w.
func formatResolutions(out io.Writer, rows []store.Resolution) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tREFORMS\tBASELINE\tCREATED")
	_, _ = fmt.Fprintln(w, "---\t-------\t--------\t-------")

	for _, r := range rows {
		reforms := strings.Join(r.Reforms, "+")
		if reforms == "" {
			reforms = "(baseline)"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			truncateKey(r.Key),
			reforms,
			truncateKey(r.Baseline),
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateKey returns the first 8 characters of a digest for compact display.
func truncateKey(k string) string {
	if len(k) > 8 {
		return k[:8]
	}
	return k
}

func init() {
	cacheLogCmd.Flags().StringVar(&cacheLogReform, "reform", "", "only resolutions that applied this reform")
	cacheLogCmd.Flags().IntVar(&cacheLogLimit, "limit", 20, "max rows to list")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheLogCmd)
	rootCmd.AddCommand(cacheCmd)
}

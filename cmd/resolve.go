package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taxfoundry/policy-cli/internal/export"
	"github.com/taxfoundry/policy-cli/internal/model"
	"github.com/taxfoundry/policy-cli/internal/reform"
	"github.com/taxfoundry/policy-cli/internal/resolve"
	"github.com/taxfoundry/policy-cli/internal/store"
)

var (
	resolveFiles  []string
	resolveParams []string
	resolveFirst  int
	resolveLast   int
	resolveFormat string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [reform-id]...",
	Short: "Resolve reforms against the baseline and print the timeline",
	Long:  "Applies catalogued reforms and/or reform files to the current-law baseline. Later documents win where cells collide. With no reforms, prints the baseline itself.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("resolve"); err != nil {
			return err
		}

		eng, err := loadEngine(resolveWindow(resolveFirst, resolveLast))
		if err != nil {
			return err
		}

		names, docs, err := loadDocuments(eng, args, resolveFiles)
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

		zap.L().Info("resolved",
			zap.Strings("reforms", names),
			zap.String("key", tl.Version()),
			zap.Bool("cached", cached),
		)

		if len(resolveParams) > 0 {
			tl, err = filterTimeline(tl, resolveParams)
			if err != nil {
				return err
			}
		}

		switch resolveFormat {
		case "table":
			return export.WriteTable(os.Stdout, tl, eng.Schema)
		case "csv":
			return export.WriteCSV(os.Stdout, tl)
		default:
			return eris.Errorf("unknown format %q (want table or csv)", resolveFormat)
		}
	},
}

// loadDocuments loads registry identifiers then reform files, in argument
// order. The returned names identify each document in the resolution log.
func loadDocuments(eng *engine, ids, files []string) ([]string, []*model.ReformDocument, error) {
	names := make([]string, 0, len(ids)+len(files))
	docs := make([]*model.ReformDocument, 0, len(ids)+len(files))

	for _, id := range ids {
		doc, err := eng.Registry.Load(id)
		if err != nil {
			return nil, nil, err
		}
		names = append(names, id)
		docs = append(docs, doc)
	}

	for _, path := range files {
		doc, err := reform.ParseFile(path, eng.Schema)
		if err != nil {
			return nil, nil, err
		}
		names = append(names, strings.TrimSuffix(filepath.Base(path), ".json"))
		docs = append(docs, doc)
	}

	return names, docs, nil
}

// resolveWithCache resolves docs against the engine's baseline, consulting
// the timeline cache when a store is present. Every successful resolution is
// recorded in the resolution log, cache hit or not. Store failures degrade to
// warnings; only resolution itself can fail.
func resolveWithCache(ctx context.Context, eng *engine, st store.Store, names []string, docs []*model.ReformDocument) (*model.Timeline, bool, error) {
	key := resolve.CacheKey(eng.Baseline.Version(), docs...)

	var tl *model.Timeline
	cached := false
	if st != nil {
		hit, err := st.GetTimeline(ctx, key)
		if err != nil {
			zap.L().Warn("timeline cache lookup failed", zap.Error(err))
		} else if hit != nil {
			tl = hit
			cached = true
		}
	}

	if tl == nil {
		resolved, err := eng.Resolver.Resolve(eng.Baseline, docs...)
		if err != nil {
			return nil, false, err
		}
		tl = resolved
		if st != nil {
			if err := st.PutTimeline(ctx, key, tl); err != nil {
				zap.L().Warn("timeline cache write failed", zap.Error(err))
			}
		}
	}

	if st != nil {
		digests := make([]string, len(docs))
		for i, d := range docs {
			digests[i] = d.Digest()
		}
		if _, err := st.RecordResolution(ctx, store.Resolution{
			Key:      key,
			Baseline: eng.Baseline.Version(),
			Reforms:  names,
			Digests:  digests,
		}); err != nil {
			zap.L().Warn("resolution log write failed", zap.Error(err))
		}
	}

	return tl, cached, nil
}

// filterTimeline narrows a timeline to the named parameters, keeping the
// requested order.
func filterTimeline(tl *model.Timeline, params []string) (*model.Timeline, error) {
	names := make([]string, 0, len(params))
	values := make(map[string][]model.Value, len(params))
	for _, p := range params {
		series, err := tl.Series(p)
		if err != nil {
			return nil, err
		}
		names = append(names, p)
		values[p] = series
	}
	return model.NewTimeline(tl.Window(), names, values, tl.Version())
}

func init() {
	resolveCmd.Flags().StringSliceVar(&resolveFiles, "file", nil, "reform file to apply (repeatable, applied after catalog reforms)")
	resolveCmd.Flags().StringSliceVar(&resolveParams, "params", nil, "limit output to these parameters")
	resolveCmd.Flags().IntVar(&resolveFirst, "first", 0, "first year of the window (default from config)")
	resolveCmd.Flags().IntVar(&resolveLast, "last", 0, "last year of the window (default from config)")
	resolveCmd.Flags().StringVar(&resolveFormat, "format", "table", "output format: table or csv")
	rootCmd.AddCommand(resolveCmd)
}

package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taxfoundry/policy-cli/internal/model"
	"github.com/taxfoundry/policy-cli/internal/store"
)

var (
	batchAll         bool
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch [reform-id]...",
	Short: "Resolve many reforms concurrently, warming the cache",
	Long:  "Resolves each named reform independently against the shared baseline. With --all, resolves every catalogued reform. Failures are logged and skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("resolve"); err != nil {
			return err
		}

		eng, err := loadEngine(resolveWindow(0, 0))
		if err != nil {
			return err
		}

		ids := args
		if batchAll {
			for _, e := range eng.Registry.List() {
				ids = append(ids, e.ID)
			}
		}
		if len(ids) == 0 {
			zap.L().Info("no reforms to resolve")
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		concurrency := batchConcurrency
		if concurrency == 0 {
			concurrency = cfg.Batch.MaxConcurrent
		}

		return processBatch(ctx, eng, st, ids, concurrency)
	},
}

// processBatch resolves ids concurrently. The schema, growth factors, and
// baseline are shared read-only across workers; each resolution is
// independent, so one bad reform never stops the rest.
func processBatch(ctx context.Context, eng *engine, st store.Store, ids []string, concurrency int) error {
	zap.L().Info("processing batch",
		zap.Int("reforms", len(ids)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed, cached atomic.Int64

	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			log := zap.L().With(zap.String("reform", id))

			doc, err := eng.Registry.Load(id)
			if err != nil {
				failed.Add(1)
				log.Error("load failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			tl, hit, err := resolveWithCache(gctx, eng, st, []string{id}, []*model.ReformDocument{doc})
			if err != nil {
				failed.Add(1)
				log.Error("resolve failed", zap.Error(err))
				return nil
			}

			succeeded.Add(1)
			if hit {
				cached.Add(1)
			}
			log.Info("resolved", zap.String("key", tl.Version()), zap.Bool("cached", hit))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int64("cached", cached.Load()),
	)
	return nil
}

func init() {
	batchCmd.Flags().BoolVar(&batchAll, "all", false, "resolve every catalogued reform")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max concurrent resolutions (default from config)")
	rootCmd.AddCommand(batchCmd)
}

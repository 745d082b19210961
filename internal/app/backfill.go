package app

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"crypto-volatility-alerts/internal/storage"
)

// Backfill imports historical prices from the quote source's range
// endpoint. Assets run concurrently, bounded by --workers; appends are
// idempotent so re-running an overlapping range is safe.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	if !opts.From.Before(opts.To) {
		return errors.New("backfill range is empty; check --from/--to")
	}

	targets, err := a.resolveAssets(opts.Asset)
	if err != nil {
		return err
	}

	var store *storage.Store
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: nothing will be written")
	} else {
		var closeStore func()
		store, closeStore, err = a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("database.dsn not configured; cannot backfill")
		}
		defer closeStore()
	}

	quotes := a.newFetcher()

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	var fetched, inserted, skipped atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for _, target := range targets {
		target := target
		group.Go(func() error {
			history, fetchErr := quotes.FetchHistory(groupCtx, target, opts.From.UTC(), opts.To.UTC())
			if fetchErr != nil {
				return fetchErr
			}
			fetched.Add(int64(len(history)))

			if store == nil {
				return nil
			}
			for _, quote := range history {
				wrote, insertErr := store.InsertPriceSample(groupCtx, storage.PriceSample{
					Asset:      quote.Asset,
					Price:      quote.Price,
					ObservedAt: quote.ObservedAt,
				})
				if insertErr != nil {
					return insertErr
				}
				if wrote {
					inserted.Add(1)
				} else {
					skipped.Add(1)
				}
			}
			a.Logger.Info().Str("asset", target.String()).Int("points", len(history)).Msg("asset backfilled")
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	a.Logger.Info().
		Int64("fetched", fetched.Load()).
		Int64("inserted", inserted.Load()).
		Int64("skipped", skipped.Load()).
		Msg("backfill complete")
	return nil
}

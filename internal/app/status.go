package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"crypto-volatility-alerts/internal/storage"
)

// Status prints per-asset freshness and 24h statistics. An asset is
// stale when its newest sample is older than twice the poll interval.
func (a *App) Status(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot report status")
	}
	defer closeStore()

	quoteCache, err := a.openCache(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("latest-quote cache unreachable; reading from database only")
	}
	if quoteCache != nil {
		defer quoteCache.Close()
	}

	assets, err := a.Config.Assets()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	staleAfter := 2 * a.Config.Scheduler.Interval

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Asset\tPrice (USD)\tObserved (UTC)\tAge\tFreshness\t24h Change%\t24h High\t24h Low")

	for _, target := range assets {
		var latest storage.PriceSample
		found := false

		if quoteCache != nil {
			cached, hit, cacheErr := quoteCache.Latest(ctx, target)
			if cacheErr != nil {
				a.Logger.Warn().Err(cacheErr).Str("asset", target.String()).Msg("cache read failed")
			} else if hit {
				latest, found = cached, true
			}
		}
		if !found {
			sample, storeErr := store.LatestSample(ctx, target)
			if storeErr != nil {
				if errors.Is(storeErr, storage.ErrNoSamples) {
					fmt.Fprintf(writer, "%s\t-\t-\t-\tno data\t-\t-\t-\n", target)
					continue
				}
				return storeErr
			}
			latest, found = sample, true
		}

		age := now.Sub(latest.ObservedAt)
		freshness := "fresh"
		if age > staleAfter {
			freshness = "stale"
		}

		stats, statsErr := store.WindowStats(ctx, target, now.Add(-24*time.Hour), now)
		if statsErr != nil {
			return statsErr
		}

		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			target,
			latest.Price.StringFixed(4),
			latest.ObservedAt.UTC().Format(time.RFC3339),
			age.Truncate(time.Second),
			freshness,
			stats.ChangePct().StringFixed(2),
			stats.High.StringFixed(4),
			stats.Low.StringFixed(4),
		)
	}
	return writer.Flush()
}

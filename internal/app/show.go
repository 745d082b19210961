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

// Show prints recent samples, or recent alerts with --alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show samples")
	}
	defer closeStore()

	if opts.Alerts {
		return a.showAlerts(ctx, store, opts.Limit)
	}

	targets, err := a.resolveAssets(opts.Asset)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Observed (UTC)\tAsset\tPrice (USD)")
	rows := 0
	for _, target := range targets {
		samples, err := store.ListRecentSamples(ctx, target, opts.Limit)
		if err != nil {
			return err
		}
		for _, sample := range samples {
			fmt.Fprintf(
				writer,
				"%s\t%s\t%s\n",
				sample.ObservedAt.UTC().Format(time.RFC3339),
				sample.Asset,
				sample.Price.StringFixed(4),
			)
			rows++
		}
	}
	if rows == 0 {
		fmt.Fprintln(os.Stdout, "no samples found")
		return nil
	}
	return writer.Flush()
}

func (a *App) showAlerts(ctx context.Context, store *storage.Store, limit int) error {
	alerts, err := store.ListRecentAlerts(ctx, limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Created (UTC)\tAsset\tDirection\tChange%\tWindow Start\tWindow End")
	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.Asset,
			alert.Direction,
			alert.PctChange.StringFixed(2),
			alert.WindowStart.UTC().Format(time.RFC3339),
			alert.WindowEnd.UTC().Format(time.RFC3339),
		)
	}
	return writer.Flush()
}

package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"crypto-volatility-alerts/internal/app"
)

var (
	backfillAsset   string
	backfillFrom    string
	backfillTo      string
	backfillDryRun  bool
	backfillWorkers int
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Fetch historical prices into the time-series store",
	Long: `Backfill pulls historical market data from the quote source and
appends it to the store. Samples already present for an asset and
timestamp are skipped, so re-running over an overlapping range is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if backfillFrom == "" {
			return errors.New("--from is required")
		}

		from, err := time.Parse(time.RFC3339, backfillFrom)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}

		to := time.Now().UTC()
		if backfillTo != "" {
			to, err = time.Parse(time.RFC3339, backfillTo)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}
		}

		return getApp().Backfill(cmd.Context(), app.BackfillOptions{
			Asset:   backfillAsset,
			From:    from,
			To:      to,
			DryRun:  backfillDryRun,
			Workers: backfillWorkers,
		})
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillAsset, "asset", "", "Limit backfill to one asset (e.g. BTC)")
	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "Start of range, RFC 3339 (required)")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "End of range, RFC 3339 (default: now)")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Fetch and report without writing to the store")
	backfillCmd.Flags().IntVar(&backfillWorkers, "workers", 2, "Concurrent per-asset fetch workers")
}

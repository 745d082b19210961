package cli

import (
	"github.com/spf13/cobra"

	"crypto-volatility-alerts/internal/app"
)

var simulateOpts app.SimulateOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Run the detector and webhook against synthetic prices",
	Long: `Simulate-alert feeds a synthetic baseline/current price pair through
the real volatility detector and, if a spike is detected, delivers it
to the configured webhook. Useful for verifying webhook wiring and
message formatting without waiting for market movement.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SimulateAlert(cmd.Context(), simulateOpts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateOpts.Asset, "asset", "BTC", "Asset symbol for the synthetic samples")
	simulateCmd.Flags().Float64Var(&simulateOpts.Baseline, "baseline", 100, "Synthetic price at the start of the window")
	simulateCmd.Flags().Float64Var(&simulateOpts.Current, "current", 103, "Synthetic price at the end of the window")
}

package cli

import (
	"github.com/spf13/cobra"

	"crypto-volatility-alerts/internal/app"
)

var showOpts app.ShowOptions

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print recent price samples or alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context(), showOpts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showOpts.Asset, "asset", "", "Limit output to one asset (e.g. BTC)")
	showCmd.Flags().IntVar(&showOpts.Limit, "limit", 20, "Maximum rows per asset")
	showCmd.Flags().BoolVar(&showOpts.Alerts, "alerts", false, "Show recent alerts instead of samples")
}

package cli

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the price sampling and alerting service",
	Long: `Run starts the long-running monitoring service: quotes for every
configured asset are fetched on an aligned interval, appended to the
time-series store and checked for volatility spikes. Detected spikes
are delivered to the configured webhook.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context())
	},
}

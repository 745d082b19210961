package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"crypto-volatility-alerts/internal/app"
)

var (
	exportAsset     string
	exportFrom      string
	exportTo        string
	exportCSV       string
	exportPNG       string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored samples to CSV and/or a PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			Asset:     exportAsset,
			CSVPath:   exportCSV,
			PNGPath:   exportPNG,
			MaxPoints: exportMaxPoints,
		}

		from, err := parseTimeFlag(exportFrom)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		opts.From = from

		to, err := parseTimeFlag(exportTo)
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
		opts.To = to

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportAsset, "asset", "", "Asset to export (e.g. BTC, required)")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Start of range, RFC 3339 (default: beginning of data)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "End of range, RFC 3339 (default: now)")
	exportCmd.Flags().StringVar(&exportCSV, "csv", "", "Write samples to this CSV file")
	exportCmd.Flags().StringVar(&exportPNG, "png", "", "Render a price chart to this PNG file")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Downsample to at most this many points (0 = config default)")
}

func parseTimeFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

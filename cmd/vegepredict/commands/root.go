package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	dbURL   string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vegepredict",
	Short: "Vegetable price forecasting pipeline",
	Long: `Vegepredict CLI

Daily vegetable price forecasting: merges market prices with
yield-weighted regional weather, walks a pretrained model across a
7-day horizon per item, backfills realized prices into matured
forecasts, and keeps the per-item status table fresh.

Usage:
  go run ./cmd/vegepredict [command]

Examples:
  go run ./cmd/vegepredict predict run
  go run ./cmd/vegepredict predict list-items
  go run ./cmd/vegepredict merge run --from 2025-08-01
  go run ./cmd/vegepredict reconcile
  go run ./cmd/vegepredict status update --dry-run
  go run ./cmd/vegepredict scheduler start`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "database URL override (default is DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

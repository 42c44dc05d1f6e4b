package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/HKUDS/AI-Trader-sub000/config"
	"github.com/HKUDS/AI-Trader-sub000/util"
)

var rootCmd = &cobra.Command{
	Use:   "aitrader",
	Short: "A settlement and position ledger engine for simulated trading",
	Long: `aitrader keeps portfolio state as an append-only ledger and settles
queued order intents against daily price ranges.

It provides tools for:
  - Initializing portfolios with a starting cash balance
  - Queueing buy/sell order intents for a trading day
  - Running the daily settlement that matches intents against prices
  - Inspecting positions as of any past date
  - Reviewing the full ledger history`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

var cfgFile string

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
}

// loadConfig returns the effective configuration: the --config file
// when given, otherwise defaults with environment overrides applied.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	cfg := config.Default()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))
}

func fail(err error) error {
	fmt.Fprintln(os.Stderr, "error:", err)
	return err
}

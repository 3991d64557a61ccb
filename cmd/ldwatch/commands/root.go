package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/ldwatch/pkg/config"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ldwatch",
	Short: "ldwatch - 계약 준수 평가 엔진",
	Long: `ldwatch Unified CLI

PPA 계약 조항을 계측 데이터와 비교해 위반(breach)과
LD(liquidated damages)를 산정하는 규칙 엔진.

Usage:
  go run ./cmd/ldwatch [command]

Examples:
  go run ./cmd/ldwatch api
  go run ./cmd/ldwatch evaluate --contract <id> --start 2024-01-01 --end 2024-02-01
  go run ./cmd/ldwatch scheduler start
  go run ./cmd/ldwatch rules validate config/rules/solar_ppa.yaml
  go run ./cmd/ldwatch test-db`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig applies the global flags on top of the environment
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if env != "" {
		switch env {
		case "development", "staging", "production":
			cfg.Env = env
		default:
			return nil, fmt.Errorf("--env must be one of: development, staging, production")
		}
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

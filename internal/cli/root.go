// Package cli implements the pvrepo command-line interface: scan, publish,
// and run, each wiring the same collaborators the orchestrator needs.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aosc-dev/pvrepo/internal/config"
	"github.com/aosc-dev/pvrepo/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:   "pvrepo",
	Short: "Signed Debian repository scanner and release generator",
	Long: `pvrepo scans a pool of .deb archives into a relational index and
publishes the Packages/Contents/Release metadata tree clients consume.`,
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "pvrepo.yaml", "path to the repository configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "optional path to a log file, in addition to stderr")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(runCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", cfgFile, err)
	}
	return cfg, nil
}

func initLogging() (func(), error) {
	_, cleanup, err := logging.Init(logging.Config{Level: logLevel, FilePath: logFile})
	if err != nil {
		return nil, err
	}
	return cleanup, nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"memberflow/transfer-bot/config"
)

const programName = "transfer-bot"

var (
	globalFlags = struct {
		debug bool
	}{}
	configFile string
)

func newLogger() (*zap.Logger, error) {
	if globalFlags.debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Account-pool member transfer bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveRun,
	}

	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(transferCommand())
	rootCmd.AddCommand(sessionCommand())
	rootCmd.AddCommand(sweepCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

package main

import (
	"alcyxob/fitness-coach/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "fitness-coach",
	Short: "Training plans, routine executions and diaries backend",
	// bare invocation serves
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory holding config.yaml and .env")
	rootCmd.AddCommand(serveCmd, ensureIndexesCmd, resetCyclesCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the configuration and builds the process logger.
func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return cfg, nil, err
	}
	var log *zap.Logger
	if cfg.Log.Development {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

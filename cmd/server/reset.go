package main

import (
	"alcyxob/fitness-coach/internal/events"
	"alcyxob/fitness-coach/internal/service"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resetAt string

var resetCyclesCmd = &cobra.Command{
	Use:   "reset-cycles",
	Short: "Clear routine completions from earlier weekly cycles and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		now := time.Now()
		if resetAt != "" {
			if now, err = time.Parse(time.RFC3339, resetAt); err != nil {
				return err
			}
		}

		repos, closeFn, err := openRepositories(cmd.Context(), cfg, log, false)
		if err != nil {
			return err
		}
		defer closeFn()

		diaries := service.NewDiaryService(repos.users, repos.diaries, repos.plans, log)
		execution := service.NewExecutionService(repos.users, repos.plans, repos.routines, diaries, events.NewBroker(0, log), log)
		plans, err := execution.ResetCycle(cmd.Context(), now)
		if err != nil {
			return err
		}
		log.Info("reset complete", zap.Int("plans", plans))
		return nil
	},
}

func init() {
	resetCyclesCmd.Flags().StringVar(&resetAt, "at", "", "pretend the current time is this RFC3339 instant")
}

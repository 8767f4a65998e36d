package main

import (
	"alcyxob/fitness-coach/internal/api"
	"alcyxob/fitness-coach/internal/scheduler"
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the weekly cycle reset",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg, log)
		if err != nil {
			log.Error("startup failed", zap.Error(err))
			return err
		}
		defer a.close()

		if cfg.Cycle.ResetEnabled {
			sched, err := scheduler.New(cfg.Cycle.ResetSchedule, a.services.Execution, log)
			if err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()
		}

		gin.SetMode(cfg.Server.Mode)
		server := &http.Server{
			Addr:         cfg.Server.Address,
			Handler:      api.NewRouter(a.services, log),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  120 * time.Second,
			// request contexts end with the process so open event streams close
			BaseContext: func(net.Listener) context.Context { return ctx },
		}

		serveErr := make(chan error, 1)
		go func() {
			log.Info("server starting", zap.String("address", cfg.Server.Address))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			if err != nil {
				log.Error("listen failed", zap.Error(err))
				return err
			}
		case <-ctx.Done():
		}
		log.Info("shutting down server")

		// in-flight requests get 5 seconds
		ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
			return err
		}
		log.Info("server exiting")
		return nil
	},
}

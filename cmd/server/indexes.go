package main

import (
	"alcyxob/fitness-coach/internal/config"
	"alcyxob/fitness-coach/internal/repository/mongo"
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
)

var ensureIndexesCmd = &cobra.Command{
	Use:   "ensure-indexes",
	Short: "Create the MongoDB indexes and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		if cfg.Database.Driver != config.DriverMongo {
			return errors.New("ensure-indexes needs database.driver=mongo")
		}

		dbClient, err := mongo.ConnectDB(cfg.Database.URI)
		if err != nil {
			return err
		}
		defer func() { _ = mongo.DisconnectDB(dbClient) }()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		if err := mongo.EnsureIndexes(ctx, dbClient.Database(cfg.Database.Name)); err != nil {
			return err
		}
		log.Info("indexes ensured")
		return nil
	},
}

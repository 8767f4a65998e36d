package main

import (
	"alcyxob/fitness-coach/internal/api"
	"alcyxob/fitness-coach/internal/config"
	"alcyxob/fitness-coach/internal/events"
	"alcyxob/fitness-coach/internal/repository"
	"alcyxob/fitness-coach/internal/repository/memory"
	"alcyxob/fitness-coach/internal/repository/mongo"
	"alcyxob/fitness-coach/internal/service"
	"alcyxob/fitness-coach/internal/storage"
	"context"
	"time"

	"go.uber.org/zap"
)

type repositories struct {
	users     repository.UserRepository
	exercises repository.ExerciseRepository
	plans     repository.TrainingPlanRepository
	routines  repository.RoutineRepository
	diaries   repository.DiaryRepository
}

// app holds the wired object graph of one process.
type app struct {
	repos    repositories
	services api.Services
	close    func()
}

// openRepositories connects the configured driver. The returned func releases it.
func openRepositories(ctx context.Context, cfg config.Config, log *zap.Logger, ensureIndexes bool) (repositories, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("using in-memory store; data is lost on exit")
		store := memory.NewStore()
		return repositories{
			users:     store.Users,
			exercises: store.Exercises,
			plans:     store.Plans,
			routines:  store.Routines,
			diaries:   store.Diaries,
		}, func() {}, nil
	}

	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		return repositories{}, nil, err
	}
	closeFn := func() {
		log.Info("disconnecting MongoDB")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Error("failed to disconnect MongoDB", zap.Error(err))
		}
	}
	appDB := dbClient.Database(cfg.Database.Name)
	log.Info("database connection established", zap.String("database", cfg.Database.Name))

	if ensureIndexes {
		idxCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		// the single-active-plan index is load bearing, so failures stop startup
		if err := mongo.EnsureIndexes(idxCtx, appDB); err != nil {
			closeFn()
			return repositories{}, nil, err
		}
	}

	return repositories{
		users:     mongo.NewMongoUserRepository(appDB),
		exercises: mongo.NewMongoExerciseRepository(appDB),
		plans:     mongo.NewMongoTrainingPlanRepository(appDB),
		routines:  mongo.NewMongoRoutineRepository(appDB),
		diaries:   mongo.NewMongoDiaryRepository(appDB),
	}, closeFn, nil
}

func buildApp(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	repos, closeFn, err := openRepositories(ctx, cfg, log, true)
	if err != nil {
		return nil, err
	}

	var fileStorage storage.FileStorage
	if cfg.S3.Enabled {
		fileStorage, err = storage.NewS3Storage(ctx, cfg.S3, log)
		if err != nil {
			closeFn()
			return nil, err
		}
	} else {
		log.Info("S3 disabled; diary attachments are unavailable")
	}

	policy, err := service.ParseActivationPolicy(cfg.Routines.ActivationPolicy)
	if err != nil {
		closeFn()
		return nil, err
	}

	broker := events.NewBroker(0, log.Named("events"))
	diaries := service.NewDiaryService(repos.users, repos.diaries, repos.plans, log)
	svc := api.Services{
		Auth:        service.NewAuthService(repos.users, cfg.JWT.Secret, cfg.JWT.Expiration, log),
		Exercises:   service.NewExerciseService(repos.exercises, log),
		Plans:       service.NewPlanService(repos.users, repos.plans, repos.routines, log),
		Routines:    service.NewRoutineService(repos.users, repos.plans, repos.routines, repos.exercises, log),
		Activation:  service.NewActivationService(repos.users, repos.plans, repos.routines, diaries, policy, log),
		Execution:   service.NewExecutionService(repos.users, repos.plans, repos.routines, diaries, broker, log),
		Diaries:     diaries,
		Attachments: service.NewAttachmentService(repos.users, repos.diaries, fileStorage, log),
		Broker:      broker,
	}
	return &app{repos: repos, services: svc, close: closeFn}, nil
}

package mongo

import (
	"alcyxob/fitness-coach/internal/errs"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// Collection names.
const (
	userCollectionName         = "users"
	exerciseCollectionName     = "exercises"
	trainingPlanCollectionName = "training_plans"
	routineCollectionName      = "routines"
	diaryCollectionName        = "training_diaries"
)

// ConnectDB establishes a connection to MongoDB using the provided URI.
// It returns the mongo.Client which can be used to access databases and collections.
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// Ping the primary so an unreachable server fails at startup, not on the first request.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}
	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes of every collection. Call during startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	var all []error
	for name, fn := range map[string]func(context.Context, *mongo.Collection) error{
		userCollectionName:         EnsureUserIndexes,
		exerciseCollectionName:     EnsureExerciseIndexes,
		trainingPlanCollectionName: EnsureTrainingPlanIndexes,
		routineCollectionName:      EnsureRoutineIndexes,
		diaryCollectionName:        EnsureDiaryIndexes,
	} {
		if err := fn(ctx, db.Collection(name)); err != nil {
			all = append(all, fmt.Errorf("indexes for %s: %w", name, err))
		}
	}
	return errors.Join(all...)
}

// translate maps driver errors onto the shared error taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return errs.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", errs.ErrConflict, err)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", errs.ErrTransient, err)
	default:
		return err
	}
}

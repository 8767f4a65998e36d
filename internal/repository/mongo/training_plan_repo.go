// internal/repository/mongo/training_plan_repo.go
package mongo

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/errs"
	"alcyxob/fitness-coach/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoTrainingPlanRepository implements repository.TrainingPlanRepository
type mongoTrainingPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoTrainingPlanRepository creates a new TrainingPlan repository.
func NewMongoTrainingPlanRepository(db *mongo.Database) repository.TrainingPlanRepository {
	return &mongoTrainingPlanRepository{
		collection: db.Collection(trainingPlanCollectionName),
	}
}

// Create inserts a new training plan. The partial unique index on active plans
// turns a second active plan for the same client into errs.ErrConflict.
func (r *mongoTrainingPlanRepository) Create(ctx context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error) {
	if plan.ClientDNI == "" || plan.Name == "" {
		return primitive.NilObjectID, fmt.Errorf("plan requires clientDni and name: %w", errs.ErrValidation)
	}
	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	plan.Version = 1

	result, err := r.collection.InsertOne(ctx, plan)
	if err != nil {
		return primitive.NilObjectID, translate(err)
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted plan ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single training plan by its ID.
func (r *mongoTrainingPlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error) {
	var plan domain.TrainingPlan
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&plan); err != nil {
		return nil, translate(err)
	}
	return &plan, nil
}

// GetActiveByClientDNI retrieves the client's active plan.
func (r *mongoTrainingPlanRepository) GetActiveByClientDNI(ctx context.Context, clientDNI string) (*domain.TrainingPlan, error) {
	var plan domain.TrainingPlan
	filter := bson.M{"clientDni": clientDNI, "isActive": true}
	if err := r.collection.FindOne(ctx, filter).Decode(&plan); err != nil {
		return nil, translate(err)
	}
	return &plan, nil
}

// GetByClientDNI retrieves the plan history of a client, active plan first.
func (r *mongoTrainingPlanRepository) GetByClientDNI(ctx context.Context, clientDNI string) ([]domain.TrainingPlan, error) {
	plans := []domain.TrainingPlan{}
	findOptions := options.Find().SetSort(bson.D{
		{Key: "isActive", Value: -1},
		{Key: "createdAt", Value: -1},
		{Key: "_id", Value: -1},
	})

	cursor, err := r.collection.Find(ctx, bson.M{"clientDni": clientDNI}, findOptions)
	if err != nil {
		return nil, translate(err)
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &plans); err != nil {
		return nil, translate(err)
	}
	return plans, nil
}

// DeactivateForClient flips the client's active plans to inactive.
func (r *mongoTrainingPlanRepository) DeactivateForClient(ctx context.Context, clientDNI string) (int64, error) {
	filter := bson.M{"clientDni": clientDNI, "isActive": true}
	update := bson.M{
		"$set": bson.M{"isActive": false, "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	}
	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, translate(err)
	}
	return result.ModifiedCount, nil
}

// ClaimCycleSignal stamps cycleSignaledFor with the cycle key. Only one
// concurrent caller per key can match the filter, so only one wins.
func (r *mongoTrainingPlanRepository) ClaimCycleSignal(ctx context.Context, planID primitive.ObjectID, cycle string) (bool, error) {
	filter := bson.M{"_id": planID, "cycleSignaledFor": bson.M{"$ne": cycle}}
	update := bson.M{
		"$set": bson.M{"cycleSignaledFor": cycle, "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, translate(err)
	}
	if result.MatchedCount == 1 {
		return true, nil
	}
	// Distinguish "already claimed" from "no such plan".
	if _, err := r.GetByID(ctx, planID); err != nil {
		return false, err
	}
	return false, nil
}

// EnsureTrainingPlanIndexes creates necessary indexes. Call during startup.
func EnsureTrainingPlanIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// At most one active plan per client.
			Keys: bson.D{{Key: "clientDni", Value: 1}},
			Options: options.Index().
				SetName("one_active_plan_per_client").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"isActive": true}),
		},
		{
			Keys:    bson.D{{Key: "clientDni", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// internal/repository/mongo/routine_repo.go
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

// mongoRoutineRepository implements repository.RoutineRepository.
// Sessions are embedded in the routine document so every template edit is a
// single-document atomic update.
type mongoRoutineRepository struct {
	collection *mongo.Collection
}

// NewMongoRoutineRepository creates a new Routine repository.
func NewMongoRoutineRepository(db *mongo.Database) repository.RoutineRepository {
	return &mongoRoutineRepository{
		collection: db.Collection(routineCollectionName),
	}
}

// Create inserts a new routine.
func (r *mongoRoutineRepository) Create(ctx context.Context, routine *domain.Routine) (primitive.ObjectID, error) {
	if routine.PlanID == primitive.NilObjectID || routine.ClientDNI == "" || routine.Name == "" {
		return primitive.NilObjectID, fmt.Errorf("routine requires planId, clientDni, and name: %w", errs.ErrValidation)
	}
	routine.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	routine.CreationDate = now
	routine.UpdatedAt = now
	routine.Version = 1
	if routine.Sessions == nil {
		routine.Sessions = []domain.Session{}
	}

	result, err := r.collection.InsertOne(ctx, routine)
	if err != nil {
		return primitive.NilObjectID, translate(err)
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted routine ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single routine by its ID.
func (r *mongoRoutineRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Routine, error) {
	var routine domain.Routine
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&routine); err != nil {
		return nil, translate(err)
	}
	return &routine, nil
}

// GetByPlanID retrieves the routines of a plan in creation order.
func (r *mongoRoutineRepository) GetByPlanID(ctx context.Context, planID primitive.ObjectID, onlyActive bool) ([]domain.Routine, error) {
	routines := []domain.Routine{}
	filter := bson.M{"planId": planID}
	if onlyActive {
		filter["active"] = true
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "creationDate", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, translate(err)
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &routines); err != nil {
		return nil, translate(err)
	}
	return routines, nil
}

// update runs a versioned FindOneAndUpdate and returns the routine after the write.
// extra narrows the filter (e.g. to a session id); when nothing matches, the
// miss is explained as NotFound or VersionConflict.
func (r *mongoRoutineRepository) update(ctx context.Context, id primitive.ObjectID, extra bson.M, expectedVersion *int64, update bson.M) (*domain.Routine, error) {
	filter := bson.M{"_id": id}
	for k, v := range extra {
		filter[k] = v
	}
	if expectedVersion != nil {
		filter["version"] = *expectedVersion
	}
	set, _ := update["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
	}
	set["updatedAt"] = time.Now().UTC()
	update["$set"] = set
	update["$inc"] = bson.M{"version": 1}

	var routine domain.Routine
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&routine)
	if err == nil {
		return &routine, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, translate(err)
	}

	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if expectedVersion != nil && current.Version != *expectedVersion {
		return nil, errs.ErrVersionConflict
	}
	return nil, errs.ErrNotFound
}

// AddSession appends a session to the routine template.
func (r *mongoRoutineRepository) AddSession(ctx context.Context, routineID primitive.ObjectID, session domain.Session, expectedVersion *int64) (*domain.Routine, error) {
	return r.update(ctx, routineID, nil, expectedVersion, bson.M{
		"$push": bson.M{"sessions": session},
	})
}

// ReplaceSession overwrites the session with the same id in place.
func (r *mongoRoutineRepository) ReplaceSession(ctx context.Context, routineID primitive.ObjectID, session domain.Session, expectedVersion *int64) (*domain.Routine, error) {
	return r.update(ctx, routineID, bson.M{"sessions.id": session.ID}, expectedVersion, bson.M{
		"$set": bson.M{"sessions.$": session},
	})
}

// RemoveSession pulls the session from the template.
func (r *mongoRoutineRepository) RemoveSession(ctx context.Context, routineID, sessionID primitive.ObjectID, expectedVersion *int64) (*domain.Routine, error) {
	return r.update(ctx, routineID, bson.M{"sessions.id": sessionID}, expectedVersion, bson.M{
		"$pull": bson.M{"sessions": bson.M{"id": sessionID}},
	})
}

// SetActive flips the trainer-owned active flag.
func (r *mongoRoutineRepository) SetActive(ctx context.Context, routineID primitive.ObjectID, active bool) (*domain.Routine, error) {
	return r.update(ctx, routineID, nil, nil, bson.M{
		"$set": bson.M{"active": active},
	})
}

// StartExecution records the open diary of the routine.
func (r *mongoRoutineRepository) StartExecution(ctx context.Context, routineID, diaryID primitive.ObjectID, clearCompleted bool) (*domain.Routine, error) {
	update := bson.M{
		"$set": bson.M{"inProgress": true, "currentDiaryId": diaryID},
	}
	if clearCompleted {
		update["$set"].(bson.M)["completed"] = false
		update["$unset"] = bson.M{"completedAt": ""}
	}
	return r.update(ctx, routineID, nil, nil, update)
}

// MarkCompleted performs the completed=false -> true transition at most once
// per cycle. A completion stamped before the cycle start counts as false.
func (r *mongoRoutineRepository) MarkCompleted(ctx context.Context, routineID primitive.ObjectID, at time.Time) (bool, error) {
	now := time.Now().UTC()
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": routineID, "$or": bson.A{
			bson.M{"completed": false},
			bson.M{"completedAt": bson.M{"$lt": domain.CycleStart(at)}},
		}},
		bson.M{
			"$set": bson.M{"completed": true, "completedAt": at.UTC(), "inProgress": false, "updatedAt": now},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return false, translate(err)
	}
	if result.MatchedCount == 1 {
		return true, nil
	}

	// Already completed: only close the execution.
	result, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": routineID},
		bson.M{
			"$set": bson.M{"inProgress": false, "updatedAt": now},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return false, translate(err)
	}
	if result.MatchedCount == 0 {
		return false, repository.ErrNotFound
	}
	return false, nil
}

// ResetCompletedBefore clears completion stamped before cutoff.
func (r *mongoRoutineRepository) ResetCompletedBefore(ctx context.Context, cutoff time.Time) ([]primitive.ObjectID, error) {
	filter := bson.M{"completed": true, "completedAt": bson.M{"$lt": cutoff.UTC()}}

	raw, err := r.collection.Distinct(ctx, "planId", filter)
	if err != nil {
		return nil, translate(err)
	}
	planIDs := make([]primitive.ObjectID, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(primitive.ObjectID); ok {
			planIDs = append(planIDs, id)
		}
	}
	if len(planIDs) == 0 {
		return planIDs, nil
	}

	_, err = r.collection.UpdateMany(ctx, filter, bson.M{
		"$set":   bson.M{"completed": false, "updatedAt": time.Now().UTC()},
		"$unset": bson.M{"completedAt": ""},
		"$inc":   bson.M{"version": 1},
	})
	if err != nil {
		return nil, translate(err)
	}
	return planIDs, nil
}

// EnsureRoutineIndexes creates necessary indexes. Call during startup.
func EnsureRoutineIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "active", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "clientDni", Value: 1}},
			Options: options.Index(),
		},
		{
			// Weekly reset sweep.
			Keys:    bson.D{{Key: "completed", Value: 1}, {Key: "completedAt", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

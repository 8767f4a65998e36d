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

// mongoDiaryRepository implements repository.DiaryRepository.
type mongoDiaryRepository struct {
	collection *mongo.Collection
}

// NewMongoDiaryRepository creates a new TrainingDiary repository.
func NewMongoDiaryRepository(db *mongo.Database) repository.DiaryRepository {
	return &mongoDiaryRepository{
		collection: db.Collection(diaryCollectionName),
	}
}

// Create inserts an empty diary.
func (r *mongoDiaryRepository) Create(ctx context.Context, diary *domain.TrainingDiary) (primitive.ObjectID, error) {
	if diary.ClientDNI == "" {
		return primitive.NilObjectID, fmt.Errorf("diary requires clientDni: %w", errs.ErrValidation)
	}
	diary.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	diary.CreatedAt = now
	diary.UpdatedAt = now
	if diary.Date.IsZero() {
		diary.Date = now
	}
	if diary.Sessions == nil {
		diary.Sessions = []domain.DiaryEntry{}
	}

	result, err := r.collection.InsertOne(ctx, diary)
	if err != nil {
		return primitive.NilObjectID, translate(err)
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted diary ID")
	}
	return insertedID, nil
}

func (r *mongoDiaryRepository) findOne(ctx context.Context, filter bson.M) (*domain.TrainingDiary, error) {
	var diary domain.TrainingDiary
	if err := r.collection.FindOne(ctx, filter).Decode(&diary); err != nil {
		return nil, translate(err)
	}
	return &diary, nil
}

// GetByID retrieves a diary by its ID.
func (r *mongoDiaryRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingDiary, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByEntryID retrieves the diary holding a session entry.
func (r *mongoDiaryRepository) GetByEntryID(ctx context.Context, entryID string) (*domain.TrainingDiary, error) {
	return r.findOne(ctx, bson.M{"sessions.id": entryID})
}

// AppendEntry pushes a performed-session snapshot. With an idempotency key the
// filter excludes diaries already holding that key, so a retry is a no-op.
func (r *mongoDiaryRepository) AppendEntry(ctx context.Context, diaryID primitive.ObjectID, entry domain.DiaryEntry) (bool, error) {
	filter := bson.M{"_id": diaryID}
	if entry.IdempotencyKey != "" {
		filter["sessions.idempotencyKey"] = bson.M{"$ne": entry.IdempotencyKey}
	}
	update := bson.M{
		"$push": bson.M{"sessions": entry},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, translate(err)
	}
	if result.MatchedCount == 1 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, diaryID); err != nil {
		return false, err
	}
	return false, nil
}

// SetObservation replaces the observation text.
func (r *mongoDiaryRepository) SetObservation(ctx context.Context, diaryID primitive.ObjectID, observation string) error {
	return r.updateOne(ctx, bson.M{"_id": diaryID}, bson.M{
		"$set": bson.M{"observation": observation, "updatedAt": time.Now().UTC()},
	})
}

// AppendObservation concatenates text onto the observation in a single
// pipeline update, newline separated when something is already there.
func (r *mongoDiaryRepository) AppendObservation(ctx context.Context, diaryID primitive.ObjectID, observation string) error {
	current := bson.D{{Key: "$ifNull", Value: bson.A{"$observation", ""}}}
	text := bson.D{{Key: "$literal", Value: observation}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "observation", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{current, ""}}},
				text,
				bson.D{{Key: "$concat", Value: bson.A{current, "\n", text}}},
			}}}},
			{Key: "updatedAt", Value: time.Now().UTC()},
		}}},
	}
	return r.updateOne(ctx, bson.M{"_id": diaryID}, pipeline)
}

// DeleteEntry pulls one entry out of the diary.
func (r *mongoDiaryRepository) DeleteEntry(ctx context.Context, diaryID primitive.ObjectID, entryID string) error {
	return r.updateOne(ctx, bson.M{"_id": diaryID, "sessions.id": entryID}, bson.M{
		"$pull": bson.M{"sessions": bson.M{"id": entryID}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
}

// AddAttachment records uploaded file metadata on the diary.
func (r *mongoDiaryRepository) AddAttachment(ctx context.Context, diaryID primitive.ObjectID, attachment domain.Attachment) error {
	return r.updateOne(ctx, bson.M{"_id": diaryID}, bson.M{
		"$push": bson.M{"attachments": attachment},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
}

// Discard deletes a diary whose opening write was not followed through.
func (r *mongoDiaryRepository) Discard(ctx context.Context, diaryID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": diaryID})
	if err != nil {
		return translate(err)
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoDiaryRepository) updateOne(ctx context.Context, filter bson.M, update interface{}) error {
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return translate(err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListByClient returns the client's diaries, newest first.
func (r *mongoDiaryRepository) ListByClient(ctx context.Context, clientDNI string, rng domain.DateRange) ([]domain.TrainingDiary, error) {
	return r.list(ctx, bson.M{"clientDni": clientDNI}, rng)
}

// ListByPlan returns the client's diaries linked to a plan, newest first.
func (r *mongoDiaryRepository) ListByPlan(ctx context.Context, clientDNI string, planID primitive.ObjectID, rng domain.DateRange) ([]domain.TrainingDiary, error) {
	return r.list(ctx, bson.M{"clientDni": clientDNI, "planId": planID}, rng)
}

func (r *mongoDiaryRepository) list(ctx context.Context, filter bson.M, rng domain.DateRange) ([]domain.TrainingDiary, error) {
	dateFilter := bson.M{}
	if !rng.From.IsZero() {
		dateFilter["$gte"] = rng.From.UTC()
	}
	if !rng.To.IsZero() {
		dateFilter["$lte"] = rng.To.UTC()
	}
	if len(dateFilter) > 0 {
		filter["date"] = dateFilter
	}

	diaries := []domain.TrainingDiary{}
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, translate(err)
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &diaries); err != nil {
		return nil, translate(err)
	}
	return diaries, nil
}

// EnsureDiaryIndexes creates necessary indexes. Call during startup.
func EnsureDiaryIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clientDni", Value: 1}, {Key: "date", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "clientDni", Value: 1}, {Key: "planId", Value: 1}, {Key: "date", Value: -1}},
			Options: options.Index(),
		},
		{
			// DELETE /training-diaries/sessions/{entryId} looks entries up directly.
			Keys:    bson.D{{Key: "sessions.id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

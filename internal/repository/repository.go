package repository

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/errs"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is kept as an alias so repository callers can match either name.
var ErrNotFound = errs.ErrNotFound

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByDNI(ctx context.Context, dni string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	SetTrainerForClient(ctx context.Context, clientID, trainerID primitive.ObjectID) error
}

// ExerciseRepository defines the interface for the exercise catalog.
type ExerciseRepository interface {
	Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error)
	List(ctx context.Context) ([]domain.Exercise, error)
}

// TrainingPlanRepository defines the interface for interacting with training plan data.
type TrainingPlanRepository interface {
	// Create inserts the plan. Inserting an active plan while another active plan
	// exists for the same client fails with errs.ErrConflict.
	Create(ctx context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error)
	GetActiveByClientDNI(ctx context.Context, clientDNI string) (*domain.TrainingPlan, error)
	// GetByClientDNI returns every plan of the client, active first, then newest first.
	GetByClientDNI(ctx context.Context, clientDNI string) ([]domain.TrainingPlan, error)
	// DeactivateForClient flips every active plan of the client to inactive and
	// returns how many were changed.
	DeactivateForClient(ctx context.Context, clientDNI string) (int64, error)
	// ClaimCycleSignal records cycle as signaled unless it already is. It
	// reports whether this call won the claim; a new cycle key is always claimable.
	ClaimCycleSignal(ctx context.Context, planID primitive.ObjectID, cycle string) (bool, error)
}

// RoutineRepository defines the interface for routines and their session templates.
// Every mutation bumps Version. A non-nil expectedVersion makes the write
// conditional and fails with errs.ErrVersionConflict on mismatch.
type RoutineRepository interface {
	Create(ctx context.Context, routine *domain.Routine) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Routine, error)
	GetByPlanID(ctx context.Context, planID primitive.ObjectID, onlyActive bool) ([]domain.Routine, error)

	AddSession(ctx context.Context, routineID primitive.ObjectID, session domain.Session, expectedVersion *int64) (*domain.Routine, error)
	ReplaceSession(ctx context.Context, routineID primitive.ObjectID, session domain.Session, expectedVersion *int64) (*domain.Routine, error)
	RemoveSession(ctx context.Context, routineID, sessionID primitive.ObjectID, expectedVersion *int64) (*domain.Routine, error)

	SetActive(ctx context.Context, routineID primitive.ObjectID, active bool) (*domain.Routine, error)
	// StartExecution marks the routine in progress on the given diary. When
	// clearCompleted is set the completed flag is reset (new cycle).
	StartExecution(ctx context.Context, routineID, diaryID primitive.ObjectID, clearCompleted bool) (*domain.Routine, error)
	// MarkCompleted sets completed=true unless the routine is already completed
	// within at's cycle, and reports whether this call performed the
	// transition. In both cases InProgress is cleared.
	MarkCompleted(ctx context.Context, routineID primitive.ObjectID, at time.Time) (bool, error)
	// ResetCompletedBefore clears completed on routines completed before the
	// cutoff and returns the distinct plan ids touched.
	ResetCompletedBefore(ctx context.Context, cutoff time.Time) ([]primitive.ObjectID, error)
}

// DiaryRepository defines the interface for training diaries.
type DiaryRepository interface {
	Create(ctx context.Context, diary *domain.TrainingDiary) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingDiary, error)
	// AppendEntry pushes the entry. If entry.IdempotencyKey is set and an entry
	// with that key already exists, nothing is appended and appended is false.
	AppendEntry(ctx context.Context, diaryID primitive.ObjectID, entry domain.DiaryEntry) (appended bool, err error)
	SetObservation(ctx context.Context, diaryID primitive.ObjectID, observation string) error
	// AppendObservation adds text after the existing observation, newline separated.
	AppendObservation(ctx context.Context, diaryID primitive.ObjectID, observation string) error
	GetByEntryID(ctx context.Context, entryID string) (*domain.TrainingDiary, error)
	DeleteEntry(ctx context.Context, diaryID primitive.ObjectID, entryID string) error
	ListByClient(ctx context.Context, clientDNI string, rng domain.DateRange) ([]domain.TrainingDiary, error)
	ListByPlan(ctx context.Context, clientDNI string, planID primitive.ObjectID, rng domain.DateRange) ([]domain.TrainingDiary, error)
	AddAttachment(ctx context.Context, diaryID primitive.ObjectID, attachment domain.Attachment) error
	// Discard deletes the diary. It only undoes an Open whose follow-up write
	// failed; diaries are never deleted otherwise.
	Discard(ctx context.Context, diaryID primitive.ObjectID) error
}

package service

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/errs"
	"alcyxob/fitness-coach/internal/repository"
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// SessionInput is a full session template line as sent by the trainer.
// A nil ID means a new line.
type SessionInput struct {
	ID              *primitive.ObjectID
	ExerciseID      *primitive.ObjectID
	ExerciseName    string
	Sets            int
	Reps            int
	Weight          *float64
	RestTime        string
	ExpectedVersion *int64
}

// RoutineService is the routine catalog: routines and their session templates.
// Template edits never reach diaries already written.
type RoutineService interface {
	// AddRoutine creates an empty routine on the plan. A nil active defaults to true.
	AddRoutine(ctx context.Context, actor domain.Actor, planID primitive.ObjectID, name string, active *bool) (*domain.Routine, error)
	// AddRoutineForClient resolves the plan from the client's active plan.
	AddRoutineForClient(ctx context.Context, actor domain.Actor, clientDNI, name string, active *bool) (*domain.Routine, error)
	GetRoutine(ctx context.Context, actor domain.Actor, routineID primitive.ObjectID) (*domain.Routine, error)
	AddSession(ctx context.Context, actor domain.Actor, routineID primitive.ObjectID, input SessionInput) (*domain.Routine, *domain.Session, error)
	UpdateSession(ctx context.Context, actor domain.Actor, routineID, sessionID primitive.ObjectID, patch domain.SessionPatch, expectedVersion *int64) (*domain.Routine, *domain.Session, error)
	// UpsertSession replaces the line named by input.ID, or appends when ID is nil.
	UpsertSession(ctx context.Context, actor domain.Actor, routineID primitive.ObjectID, input SessionInput) (*domain.Routine, *domain.Session, error)
	RemoveSession(ctx context.Context, actor domain.Actor, routineID, sessionID primitive.ObjectID, expectedVersion *int64) (*domain.Routine, error)
	DeactivateRoutine(ctx context.Context, actor domain.Actor, routineID primitive.ObjectID) (*domain.Routine, error)
}

type routineService struct {
	access
	planRepo     repository.TrainingPlanRepository
	routineRepo  repository.RoutineRepository
	exerciseRepo repository.ExerciseRepository
	log          *zap.Logger
}

// NewRoutineService creates a new instance of routineService.
func NewRoutineService(
	userRepo repository.UserRepository,
	planRepo repository.TrainingPlanRepository,
	routineRepo repository.RoutineRepository,
	exerciseRepo repository.ExerciseRepository,
	log *zap.Logger,
) RoutineService {
	return &routineService{
		access:       access{users: userRepo},
		planRepo:     planRepo,
		routineRepo:  routineRepo,
		exerciseRepo: exerciseRepo,
		log:          log.Named("routines"),
	}
}

func (s *routineService) AddRoutine(ctx context.Context, actor domain.Actor, planID primitive.ObjectID, name string, active *bool) (*domain.Routine, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, notFoundAs(err, ErrPlanNotFound)
	}
	if _, err := s.trainerFor(ctx, actor, plan.ClientDNI); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("routine name is required")
	}

	routine := &domain.Routine{
		PlanID:    plan.ID,
		TrainerID: actor.UserID,
		ClientDNI: plan.ClientDNI,
		Name:      name,
		Sessions:  []domain.Session{},
		Active:    active == nil || *active,
	}
	routineID, err := s.routineRepo.Create(ctx, routine)
	if err != nil {
		return nil, err
	}
	s.log.Info("routine created",
		zap.String("routineId", routineID.Hex()),
		zap.String("planId", plan.ID.Hex()),
		zap.Bool("active", routine.Active),
	)
	return s.routineRepo.GetByID(ctx, routineID)
}

func (s *routineService) AddRoutineForClient(ctx context.Context, actor domain.Actor, clientDNI, name string, active *bool) (*domain.Routine, error) {
	if _, err := s.trainerFor(ctx, actor, clientDNI); err != nil {
		return nil, err
	}
	plan, err := s.planRepo.GetActiveByClientDNI(ctx, clientDNI)
	if err != nil {
		return nil, notFoundAs(err, ErrActivePlanNotFound)
	}
	return s.AddRoutine(ctx, actor, plan.ID, name, active)
}

func (s *routineService) GetRoutine(ctx context.Context, actor domain.Actor, routineID primitive.ObjectID) (*domain.Routine, error) {
	routine, err := s.routineRepo.GetByID(ctx, routineID)
	if err != nil {
		return nil, notFoundAs(err, ErrRoutineNotFound)
	}
	if err := s.reader(ctx, actor, routine.ClientDNI); err != nil {
		return nil, err
	}
	return routine, nil
}

// editable loads a routine the trainer actor may change.
func (s *routineService) editable(ctx context.Context, actor domain.Actor, routineID primitive.ObjectID) (*domain.Routine, error) {
	routine, err := s.routineRepo.GetByID(ctx, routineID)
	if err != nil {
		return nil, notFoundAs(err, ErrRoutineNotFound)
	}
	if _, err := s.trainerFor(ctx, actor, routine.ClientDNI); err != nil {
		return nil, err
	}
	return routine, nil
}

// resolveExercise fills the exercise name from the catalog when only an id is given.
func (s *routineService) resolveExercise(ctx context.Context, session *domain.Session) error {
	if session.ExerciseID == primitive.NilObjectID || session.ExerciseName != "" {
		return nil
	}
	exercise, err := s.exerciseRepo.GetByID(ctx, session.ExerciseID)
	if err != nil {
		return notFoundAs(err, ErrExerciseNotFound)
	}
	session.ExerciseName = exercise.Name
	return nil
}

func (s *routineService) buildSession(ctx context.Context, input SessionInput) (domain.Session, error) {
	session := domain.Session{
		ExerciseName: strings.TrimSpace(input.ExerciseName),
		Sets:         input.Sets,
		Reps:         input.Reps,
		Weight:       input.Weight,
		RestTime:     strings.TrimSpace(input.RestTime),
	}
	if input.ID != nil {
		session.ID = *input.ID
	} else {
		session.ID = primitive.NewObjectID()
	}
	if input.ExerciseID != nil {
		session.ExerciseID = *input.ExerciseID
	}
	if err := session.Validate(); err != nil {
		return domain.Session{}, validationError("%s", err.Error())
	}
	if err := s.resolveExercise(ctx, &session); err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

func (s *routineService) AddSession(ctx context.Context, actor domain.Actor, routineID primitive.ObjectID, input SessionInput) (*domain.Routine, *domain.Session, error) {
	if _, err := s.editable(ctx, actor, routineID); err != nil {
		return nil, nil, err
	}
	input.ID = nil
	session, err := s.buildSession(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	routine, err := s.routineRepo.AddSession(ctx, routineID, session, input.ExpectedVersion)
	if err != nil {
		return nil, nil, notFoundAs(err, ErrRoutineNotFound)
	}
	return routine, routine.SessionByID(session.ID), nil
}

func (s *routineService) UpdateSession(ctx context.Context, actor domain.Actor, routineID, sessionID primitive.ObjectID, patch domain.SessionPatch, expectedVersion *int64) (*domain.Routine, *domain.Session, error) {
	routine, err := s.editable(ctx, actor, routineID)
	if err != nil {
		return nil, nil, err
	}
	if expectedVersion != nil && *expectedVersion != routine.Version {
		return nil, nil, errs.ErrVersionConflict
	}
	current := routine.SessionByID(sessionID)
	if current == nil {
		return nil, nil, ErrSessionNotFound
	}
	updated := patch.Apply(*current)
	if patch.ExerciseID != nil && patch.ExerciseName == nil {
		updated.ExerciseName = ""
	}
	if err := updated.Validate(); err != nil {
		return nil, nil, validationError("%s", err.Error())
	}
	if err := s.resolveExercise(ctx, &updated); err != nil {
		return nil, nil, err
	}
	// Read-modify-write is guarded by the version we read.
	version := routine.Version
	saved, err := s.routineRepo.ReplaceSession(ctx, routineID, updated, &version)
	if err != nil {
		return nil, nil, notFoundAs(err, ErrSessionNotFound)
	}
	return saved, saved.SessionByID(sessionID), nil
}

func (s *routineService) UpsertSession(ctx context.Context, actor domain.Actor, routineID primitive.ObjectID, input SessionInput) (*domain.Routine, *domain.Session, error) {
	routine, err := s.editable(ctx, actor, routineID)
	if err != nil {
		return nil, nil, err
	}
	session, err := s.buildSession(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	if input.ID == nil || routine.SessionByID(*input.ID) == nil {
		expected := input.ExpectedVersion
		if input.ID != nil && expected == nil {
			// The id was absent at this version; a concurrent PUT may add it.
			version := routine.Version
			expected = &version
		}
		saved, err := s.routineRepo.AddSession(ctx, routineID, session, expected)
		if err != nil {
			return nil, nil, notFoundAs(err, ErrRoutineNotFound)
		}
		return saved, saved.SessionByID(session.ID), nil
	}
	saved, err := s.routineRepo.ReplaceSession(ctx, routineID, session, input.ExpectedVersion)
	if err != nil {
		return nil, nil, notFoundAs(err, ErrSessionNotFound)
	}
	return saved, saved.SessionByID(session.ID), nil
}

func (s *routineService) RemoveSession(ctx context.Context, actor domain.Actor, routineID, sessionID primitive.ObjectID, expectedVersion *int64) (*domain.Routine, error) {
	if _, err := s.editable(ctx, actor, routineID); err != nil {
		return nil, err
	}
	routine, err := s.routineRepo.RemoveSession(ctx, routineID, sessionID, expectedVersion)
	if err != nil {
		if errors.Is(err, errs.ErrVersionConflict) {
			return nil, err
		}
		return nil, notFoundAs(err, ErrSessionNotFound)
	}
	return routine, nil
}

func (s *routineService) DeactivateRoutine(ctx context.Context, actor domain.Actor, routineID primitive.ObjectID) (*domain.Routine, error) {
	if _, err := s.editable(ctx, actor, routineID); err != nil {
		return nil, err
	}
	routine, err := s.routineRepo.SetActive(ctx, routineID, false)
	if err != nil {
		return nil, notFoundAs(err, ErrRoutineNotFound)
	}
	s.log.Info("routine deactivated", zap.String("routineId", routineID.Hex()))
	return routine, nil
}

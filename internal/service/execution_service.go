package service

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/events"
	"alcyxob/fitness-coach/internal/repository"
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// PerformedSession is what the client actually did for one exercise.
// Zero fields are filled from the template line named by SessionID.
type PerformedSession struct {
	SessionID      *primitive.ObjectID
	ExerciseID     *primitive.ObjectID
	ExerciseName   string
	Sets           int
	Reps           int
	Weight         *float64
	IdempotencyKey string
	// UpdateTemplate writes reps and weight back to the template line.
	UpdateTemplate bool
}

// CompletionResult reports the outcome of CompleteRoutine.
type CompletionResult struct {
	Signal domain.SignalKind `json:"signal"`
	// Transitioned is true only for the call that flipped completed to true.
	Transitioned bool `json:"transitioned"`
	// Published is true when this call emitted Signal to subscribers.
	Published bool                `json:"published"`
	DiaryID   *primitive.ObjectID `json:"diaryId,omitempty"`
}

// ExecutionService records what clients perform and closes routines.
type ExecutionService interface {
	RecordSession(ctx context.Context, actor domain.Actor, diaryID primitive.ObjectID, performed PerformedSession) (*domain.DiaryEntry, error)
	CompleteRoutine(ctx context.Context, actor domain.Actor, routineID primitive.ObjectID, observation string) (*CompletionResult, error)
	// ResetCycle clears completions made before the start of now's cycle and
	// returns how many plans were touched.
	ResetCycle(ctx context.Context, now time.Time) (int, error)
}

type executionService struct {
	access
	planRepo    repository.TrainingPlanRepository
	routineRepo repository.RoutineRepository
	diaries     DiaryService
	publisher   events.Publisher
	log         *zap.Logger
	now         func() time.Time
}

// NewExecutionService creates a new instance of executionService.
func NewExecutionService(
	userRepo repository.UserRepository,
	planRepo repository.TrainingPlanRepository,
	routineRepo repository.RoutineRepository,
	diaries DiaryService,
	publisher events.Publisher,
	log *zap.Logger,
) ExecutionService {
	return &executionService{
		access:      access{users: userRepo},
		planRepo:    planRepo,
		routineRepo: routineRepo,
		diaries:     diaries,
		publisher:   publisher,
		log:         log.Named("execution"),
		now:         time.Now,
	}
}

func (s *executionService) RecordSession(ctx context.Context, actor domain.Actor, diaryID primitive.ObjectID, performed PerformedSession) (*domain.DiaryEntry, error) {
	diary, err := s.diaries.Get(ctx, actor, diaryID)
	if err != nil {
		return nil, err
	}
	if err := s.ownerClient(actor, diary.ClientDNI); err != nil {
		return nil, err
	}
	if existing := diary.EntryByKey(performed.IdempotencyKey); existing != nil {
		return existing, nil
	}

	entry := domain.DiaryEntry{
		ID:             uuid.NewString(),
		ExerciseName:   strings.TrimSpace(performed.ExerciseName),
		Sets:           performed.Sets,
		Reps:           performed.Reps,
		Weight:         performed.Weight,
		IdempotencyKey: performed.IdempotencyKey,
		RecordedAt:     s.now().UTC(),
	}
	if performed.ExerciseID != nil {
		entry.ExerciseID = *performed.ExerciseID
	}

	var routine *domain.Routine
	var template *domain.Session
	if performed.SessionID != nil {
		if diary.RoutineID == nil {
			return nil, validationError("diary is not linked to a routine; sessionId cannot be resolved")
		}
		routine, err = s.routineRepo.GetByID(ctx, *diary.RoutineID)
		if err != nil {
			return nil, notFoundAs(err, ErrRoutineNotFound)
		}
		template = routine.SessionByID(*performed.SessionID)
		if template == nil {
			return nil, ErrSessionNotFound
		}
		sessionID := template.ID
		entry.SessionID = &sessionID
		fillFromTemplate(&entry, template)
	} else if performed.UpdateTemplate {
		return nil, validationError("updateTemplate requires sessionId")
	}

	if entry.Sets == 0 {
		entry.Sets = 1
	}
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	// The template is written first so a version conflict leaves the diary untouched.
	if performed.UpdateTemplate {
		updated := *template
		updated.Reps = entry.Reps
		w := *entry.Weight
		updated.Weight = &w
		version := routine.Version
		if _, err := s.routineRepo.ReplaceSession(ctx, routine.ID, updated, &version); err != nil {
			return nil, notFoundAs(err, ErrSessionNotFound)
		}
	}

	stored, _, err := s.diaries.AppendSession(ctx, diaryID, entry)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func fillFromTemplate(entry *domain.DiaryEntry, template *domain.Session) {
	if entry.ExerciseName == "" {
		entry.ExerciseName = template.ExerciseName
	}
	if entry.ExerciseID == primitive.NilObjectID {
		entry.ExerciseID = template.ExerciseID
	}
	if entry.Sets == 0 {
		entry.Sets = template.Sets
	}
	if entry.Reps == 0 {
		entry.Reps = template.Reps
	}
	if entry.Weight == nil && template.Weight != nil {
		w := *template.Weight
		entry.Weight = &w
	}
}

func validateEntry(entry domain.DiaryEntry) error {
	switch {
	case entry.ExerciseName == "":
		return validationError("exerciseName is required")
	case entry.Sets < 0:
		return validationError("sets must be a positive integer, got %d", entry.Sets)
	case entry.Reps <= 0:
		return validationError("reps must be a positive integer, got %d", entry.Reps)
	case entry.Weight == nil:
		return validationError("weight is required")
	case *entry.Weight < 0:
		return validationError("weight must not be negative")
	}
	return nil
}

func (s *executionService) CompleteRoutine(ctx context.Context, actor domain.Actor, routineID primitive.ObjectID, observation string) (*CompletionResult, error) {
	routine, err := s.routineRepo.GetByID(ctx, routineID)
	if err != nil {
		return nil, notFoundAs(err, ErrRoutineNotFound)
	}
	if err := s.ownerClient(actor, routine.ClientDNI); err != nil {
		return nil, err
	}

	if !routine.Active {
		return nil, ErrRoutineInactive
	}

	now := s.now().UTC()
	result := &CompletionResult{Signal: domain.SignalRoutineComplete}
	var opened *primitive.ObjectID
	observation = strings.TrimSpace(observation)
	if observation != "" {
		diaryID, fresh, err := s.observationDiary(ctx, routine)
		if err != nil {
			return nil, err
		}
		if fresh {
			opened = &diaryID
		}
		if err := s.diaries.AppendObservation(ctx, diaryID, observation); err != nil {
			s.discard(ctx, opened)
			return nil, err
		}
		result.DiaryID = &diaryID
	} else if routine.CurrentDiaryID != nil {
		id := *routine.CurrentDiaryID
		result.DiaryID = &id
	}

	result.Transitioned, err = s.routineRepo.MarkCompleted(ctx, routine.ID, now)
	if err != nil {
		s.discard(ctx, opened)
		return nil, notFoundAs(err, ErrRoutineNotFound)
	}

	plan, cycleDone, err := s.cycleComplete(ctx, routine, now)
	if err != nil {
		return nil, err
	}
	if cycleDone {
		result.Signal = domain.SignalCycleComplete
	}

	if !result.Transitioned {
		s.log.Debug("routine already completed", zap.String("routineId", routine.ID.Hex()))
		return result, nil
	}

	kind := domain.SignalRoutineComplete
	if cycleDone {
		claimed, err := s.planRepo.ClaimCycleSignal(ctx, plan.ID, domain.CycleKey(now))
		if err != nil {
			return nil, err
		}
		if claimed {
			kind = domain.SignalCycleComplete
		}
	}
	s.publisher.Publish(domain.Signal{
		Kind:      kind,
		ClientDNI: routine.ClientDNI,
		PlanID:    routine.PlanID,
		RoutineID: routine.ID,
		At:        now,
	})
	result.Published = kind == result.Signal

	s.log.Info("routine completed",
		zap.String("routineId", routine.ID.Hex()),
		zap.String("clientDni", routine.ClientDNI),
		zap.String("signal", string(kind)),
	)
	return result, nil
}

// observationDiary returns the diary that receives the completion note. A
// routine completed without activation gets a diary opened for it, and fresh
// reports that.
func (s *executionService) observationDiary(ctx context.Context, routine *domain.Routine) (id primitive.ObjectID, fresh bool, err error) {
	if routine.CurrentDiaryID != nil {
		return *routine.CurrentDiaryID, false, nil
	}
	diary, err := s.diaries.Open(ctx, routine.ClientDNI, routine.PlanID, routine.ID)
	if err != nil {
		return primitive.NilObjectID, false, err
	}
	return diary.ID, true, nil
}

// discard drops a diary this call opened before a later write failed.
func (s *executionService) discard(ctx context.Context, diaryID *primitive.ObjectID) {
	if diaryID == nil {
		return
	}
	if err := s.diaries.Discard(ctx, *diaryID); err != nil {
		s.log.Warn("failed to discard diary", zap.String("diaryId", diaryID.Hex()), zap.Error(err))
	}
}

// cycleComplete reports whether every active routine of the client's active
// plan, this one included, is completed within now's cycle. A routine of a
// superseded plan never completes a cycle.
func (s *executionService) cycleComplete(ctx context.Context, routine *domain.Routine, now time.Time) (*domain.TrainingPlan, bool, error) {
	plan, err := s.planRepo.GetActiveByClientDNI(ctx, routine.ClientDNI)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if plan.ID != routine.PlanID {
		return plan, false, nil
	}
	siblings, err := s.routineRepo.GetByPlanID(ctx, plan.ID, true)
	if err != nil {
		return nil, false, err
	}
	for _, sibling := range siblings {
		if sibling.ID == routine.ID {
			continue
		}
		if !sibling.CompletedInCycle(now) {
			return plan, false, nil
		}
	}
	return plan, true, nil
}

func (s *executionService) ResetCycle(ctx context.Context, now time.Time) (int, error) {
	cutoff := domain.CycleStart(now)
	planIDs, err := s.routineRepo.ResetCompletedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.log.Info("cycle reset",
		zap.String("cycle", domain.CycleKey(now)),
		zap.Time("cutoff", cutoff),
		zap.Int("plans", len(planIDs)),
	)
	return len(planIDs), nil
}

package service

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/repository"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DiaryService is the diary store. Diaries belong to the client and are
// written only by that client; managing trainers read them.
type DiaryService interface {
	Create(ctx context.Context, actor domain.Actor, clientDNI string) (*domain.TrainingDiary, error)
	Get(ctx context.Context, actor domain.Actor, diaryID primitive.ObjectID) (*domain.TrainingDiary, error)
	// Update replaces the diary observation.
	Update(ctx context.Context, actor domain.Actor, diaryID primitive.ObjectID, observation string) (*domain.TrainingDiary, error)
	// DeleteSessionEntry removes one logged entry; the diary itself stays.
	DeleteSessionEntry(ctx context.Context, actor domain.Actor, entryID string) error
	ListByClient(ctx context.Context, actor domain.Actor, clientDNI string, rng domain.DateRange) ([]domain.TrainingDiary, error)
	// ListByPlan lists diaries linked to the client's active plan.
	ListByPlan(ctx context.Context, actor domain.Actor, clientDNI string, rng domain.DateRange) ([]domain.TrainingDiary, error)

	// Open creates the diary for an activation. Callers have already checked access.
	Open(ctx context.Context, clientDNI string, planID, routineID primitive.ObjectID) (*domain.TrainingDiary, error)
	// AppendSession pushes an entry and returns the stored one. A repeated
	// idempotency key returns the entry recorded first and appended=false.
	AppendSession(ctx context.Context, diaryID primitive.ObjectID, entry domain.DiaryEntry) (stored *domain.DiaryEntry, appended bool, err error)
	AppendObservation(ctx context.Context, diaryID primitive.ObjectID, observation string) error
	// Discard removes a diary opened by Open whose follow-up write failed.
	Discard(ctx context.Context, diaryID primitive.ObjectID) error
}

type diaryService struct {
	access
	diaryRepo repository.DiaryRepository
	planRepo  repository.TrainingPlanRepository
	log       *zap.Logger
	now       func() time.Time
}

// NewDiaryService creates a new instance of diaryService.
func NewDiaryService(
	userRepo repository.UserRepository,
	diaryRepo repository.DiaryRepository,
	planRepo repository.TrainingPlanRepository,
	log *zap.Logger,
) DiaryService {
	return &diaryService{
		access:    access{users: userRepo},
		diaryRepo: diaryRepo,
		planRepo:  planRepo,
		log:       log.Named("diaries"),
		now:       time.Now,
	}
}

func (s *diaryService) Create(ctx context.Context, actor domain.Actor, clientDNI string) (*domain.TrainingDiary, error) {
	if err := s.ownerClient(actor, clientDNI); err != nil {
		return nil, err
	}
	diary := &domain.TrainingDiary{
		ClientDNI: clientDNI,
		Date:      s.now().UTC(),
		Sessions:  []domain.DiaryEntry{},
	}
	plan, err := s.planRepo.GetActiveByClientDNI(ctx, clientDNI)
	switch {
	case err == nil:
		diary.PlanID = &plan.ID
	case !isNotFound(err):
		return nil, err
	}
	return s.create(ctx, diary)
}

func (s *diaryService) Open(ctx context.Context, clientDNI string, planID, routineID primitive.ObjectID) (*domain.TrainingDiary, error) {
	return s.create(ctx, &domain.TrainingDiary{
		ClientDNI: clientDNI,
		PlanID:    &planID,
		RoutineID: &routineID,
		Date:      s.now().UTC(),
		Sessions:  []domain.DiaryEntry{},
	})
}

func (s *diaryService) create(ctx context.Context, diary *domain.TrainingDiary) (*domain.TrainingDiary, error) {
	diaryID, err := s.diaryRepo.Create(ctx, diary)
	if err != nil {
		return nil, err
	}
	s.log.Debug("diary opened", zap.String("diaryId", diaryID.Hex()), zap.String("clientDni", diary.ClientDNI))
	return s.diaryRepo.GetByID(ctx, diaryID)
}

func (s *diaryService) Get(ctx context.Context, actor domain.Actor, diaryID primitive.ObjectID) (*domain.TrainingDiary, error) {
	diary, err := s.diaryRepo.GetByID(ctx, diaryID)
	if err != nil {
		return nil, notFoundAs(err, ErrDiaryNotFound)
	}
	if err := s.reader(ctx, actor, diary.ClientDNI); err != nil {
		return nil, err
	}
	return diary, nil
}

// owned loads a diary the actor may write.
func (s *diaryService) owned(ctx context.Context, actor domain.Actor, diaryID primitive.ObjectID) (*domain.TrainingDiary, error) {
	diary, err := s.diaryRepo.GetByID(ctx, diaryID)
	if err != nil {
		return nil, notFoundAs(err, ErrDiaryNotFound)
	}
	if err := s.ownerClient(actor, diary.ClientDNI); err != nil {
		return nil, err
	}
	return diary, nil
}

func (s *diaryService) Update(ctx context.Context, actor domain.Actor, diaryID primitive.ObjectID, observation string) (*domain.TrainingDiary, error) {
	if _, err := s.owned(ctx, actor, diaryID); err != nil {
		return nil, err
	}
	if err := s.diaryRepo.SetObservation(ctx, diaryID, observation); err != nil {
		return nil, notFoundAs(err, ErrDiaryNotFound)
	}
	return s.diaryRepo.GetByID(ctx, diaryID)
}

func (s *diaryService) DeleteSessionEntry(ctx context.Context, actor domain.Actor, entryID string) error {
	if entryID == "" {
		return validationError("session entry id is required")
	}
	diary, err := s.diaryRepo.GetByEntryID(ctx, entryID)
	if err != nil {
		return notFoundAs(err, ErrDiaryEntryNotFound)
	}
	if err := s.ownerClient(actor, diary.ClientDNI); err != nil {
		return err
	}
	if err := s.diaryRepo.DeleteEntry(ctx, diary.ID, entryID); err != nil {
		return notFoundAs(err, ErrDiaryEntryNotFound)
	}
	return nil
}

func (s *diaryService) ListByClient(ctx context.Context, actor domain.Actor, clientDNI string, rng domain.DateRange) ([]domain.TrainingDiary, error) {
	if err := s.reader(ctx, actor, clientDNI); err != nil {
		return nil, err
	}
	if err := checkRange(rng); err != nil {
		return nil, err
	}
	return s.diaryRepo.ListByClient(ctx, clientDNI, rng)
}

func (s *diaryService) ListByPlan(ctx context.Context, actor domain.Actor, clientDNI string, rng domain.DateRange) ([]domain.TrainingDiary, error) {
	if err := s.reader(ctx, actor, clientDNI); err != nil {
		return nil, err
	}
	if err := checkRange(rng); err != nil {
		return nil, err
	}
	plan, err := s.planRepo.GetActiveByClientDNI(ctx, clientDNI)
	if err != nil {
		return nil, notFoundAs(err, ErrActivePlanNotFound)
	}
	return s.diaryRepo.ListByPlan(ctx, clientDNI, plan.ID, rng)
}

func checkRange(rng domain.DateRange) error {
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.To.Before(rng.From) {
		return validationError("date range end is before its start")
	}
	return nil
}

func (s *diaryService) AppendSession(ctx context.Context, diaryID primitive.ObjectID, entry domain.DiaryEntry) (*domain.DiaryEntry, bool, error) {
	appended, err := s.diaryRepo.AppendEntry(ctx, diaryID, entry)
	if err != nil {
		return nil, false, notFoundAs(err, ErrDiaryNotFound)
	}
	if appended {
		return &entry, true, nil
	}
	diary, err := s.diaryRepo.GetByID(ctx, diaryID)
	if err != nil {
		return nil, false, notFoundAs(err, ErrDiaryNotFound)
	}
	existing := diary.EntryByKey(entry.IdempotencyKey)
	if existing == nil {
		// entry was deleted between the two reads
		return nil, false, ErrDiaryEntryNotFound
	}
	s.log.Debug("duplicate session suppressed", zap.String("diaryId", diaryID.Hex()), zap.String("idempotencyKey", entry.IdempotencyKey))
	return existing, false, nil
}

func (s *diaryService) AppendObservation(ctx context.Context, diaryID primitive.ObjectID, observation string) error {
	return notFoundAs(s.diaryRepo.AppendObservation(ctx, diaryID, observation), ErrDiaryNotFound)
}

func (s *diaryService) Discard(ctx context.Context, diaryID primitive.ObjectID) error {
	if err := s.diaryRepo.Discard(ctx, diaryID); err != nil {
		return notFoundAs(err, ErrDiaryNotFound)
	}
	s.log.Debug("diary discarded", zap.String("diaryId", diaryID.Hex()))
	return nil
}

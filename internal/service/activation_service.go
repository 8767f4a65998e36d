package service

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/repository"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ActivationPolicy decides whether sibling routines of a plan may run at once.
type ActivationPolicy string

const (
	// PolicyParallel lets several routines of the same plan be in progress.
	PolicyParallel ActivationPolicy = "parallel"
	// PolicyExclusive rejects activation while a sibling is in progress.
	PolicyExclusive ActivationPolicy = "exclusive"
)

// ParseActivationPolicy accepts "", "parallel" and "exclusive".
func ParseActivationPolicy(v string) (ActivationPolicy, error) {
	switch ActivationPolicy(v) {
	case "", PolicyParallel:
		return PolicyParallel, nil
	case PolicyExclusive:
		return PolicyExclusive, nil
	}
	return "", fmt.Errorf("unknown activation policy %q", v)
}

// ActivationService starts routine executions.
type ActivationService interface {
	// Activate opens a diary for the routine and returns its id.
	Activate(ctx context.Context, actor domain.Actor, routineID primitive.ObjectID, clientDNI string) (primitive.ObjectID, error)
}

type activationService struct {
	access
	planRepo    repository.TrainingPlanRepository
	routineRepo repository.RoutineRepository
	diaries     DiaryService
	policy      ActivationPolicy
	log         *zap.Logger
	now         func() time.Time
}

// NewActivationService creates a new instance of activationService.
func NewActivationService(
	userRepo repository.UserRepository,
	planRepo repository.TrainingPlanRepository,
	routineRepo repository.RoutineRepository,
	diaries DiaryService,
	policy ActivationPolicy,
	log *zap.Logger,
) ActivationService {
	if policy == "" {
		policy = PolicyParallel
	}
	return &activationService{
		access:      access{users: userRepo},
		planRepo:    planRepo,
		routineRepo: routineRepo,
		diaries:     diaries,
		policy:      policy,
		log:         log.Named("activation"),
		now:         time.Now,
	}
}

func (s *activationService) Activate(ctx context.Context, actor domain.Actor, routineID primitive.ObjectID, clientDNI string) (primitive.ObjectID, error) {
	routine, err := s.routineRepo.GetByID(ctx, routineID)
	if err != nil {
		return primitive.NilObjectID, notFoundAs(err, ErrRoutineNotFound)
	}
	if routine.ClientDNI != clientDNI {
		return primitive.NilObjectID, ErrRoutineNotOwned
	}
	if err := s.reader(ctx, actor, clientDNI); err != nil {
		return primitive.NilObjectID, err
	}

	plan, err := s.planRepo.GetByID(ctx, routine.PlanID)
	if err != nil {
		if isNotFound(err) {
			return primitive.NilObjectID, ErrPlanNotActive
		}
		return primitive.NilObjectID, err
	}
	if !plan.Active || plan.ClientDNI != clientDNI {
		return primitive.NilObjectID, ErrPlanNotActive
	}
	if !routine.Active {
		return primitive.NilObjectID, ErrRoutineInactive
	}

	if s.policy == PolicyExclusive {
		siblings, err := s.routineRepo.GetByPlanID(ctx, plan.ID, true)
		if err != nil {
			return primitive.NilObjectID, err
		}
		for _, sibling := range siblings {
			if sibling.ID != routine.ID && sibling.InProgress {
				return primitive.NilObjectID, ErrSiblingInProgress
			}
		}
	}

	now := s.now()
	// Completed in an earlier cycle: this activation starts the new one.
	newCycle := routine.Completed && !routine.CompletedInCycle(now)

	diary, err := s.diaries.Open(ctx, clientDNI, plan.ID, routine.ID)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if _, err := s.routineRepo.StartExecution(ctx, routine.ID, diary.ID, newCycle); err != nil {
		if derr := s.diaries.Discard(ctx, diary.ID); derr != nil {
			s.log.Warn("failed to discard diary", zap.String("diaryId", diary.ID.Hex()), zap.Error(derr))
		}
		return primitive.NilObjectID, notFoundAs(err, ErrRoutineNotFound)
	}

	s.log.Info("routine activated",
		zap.String("routineId", routine.ID.Hex()),
		zap.String("diaryId", diary.ID.Hex()),
		zap.String("clientDni", clientDNI),
		zap.Bool("newCycle", newCycle),
	)
	return diary.ID, nil
}

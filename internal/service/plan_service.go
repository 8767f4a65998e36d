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

// PlanService is the plan registry: it owns which TrainingPlan is the
// client's active one.
type PlanService interface {
	// CreatePlan supersedes any active plan of the client and returns the new
	// active plan.
	CreatePlan(ctx context.Context, actor domain.Actor, clientDNI, name, description string) (*domain.TrainingPlan, error)
	GetActivePlan(ctx context.Context, actor domain.Actor, clientDNI string) (*domain.TrainingPlan, error)
	// GetHistory returns every plan of the client, active first, then newest.
	GetHistory(ctx context.Context, actor domain.Actor, clientDNI string) ([]domain.TrainingPlan, error)
	GetPlan(ctx context.Context, actor domain.Actor, planID primitive.ObjectID) (*domain.TrainingPlan, error)
	// ListActiveRoutines returns the active routines of the client's active plan.
	ListActiveRoutines(ctx context.Context, actor domain.Actor, clientDNI string) ([]domain.Routine, error)
	ListRoutines(ctx context.Context, actor domain.Actor, planID primitive.ObjectID, onlyActive bool) ([]domain.Routine, error)
}

type planService struct {
	access
	userRepo    repository.UserRepository
	planRepo    repository.TrainingPlanRepository
	routineRepo repository.RoutineRepository
	log         *zap.Logger
}

// NewPlanService creates a new instance of planService.
func NewPlanService(
	userRepo repository.UserRepository,
	planRepo repository.TrainingPlanRepository,
	routineRepo repository.RoutineRepository,
	log *zap.Logger,
) PlanService {
	return &planService{
		access:      access{users: userRepo},
		userRepo:    userRepo,
		planRepo:    planRepo,
		routineRepo: routineRepo,
		log:         log.Named("plans"),
	}
}

func (s *planService) CreatePlan(ctx context.Context, actor domain.Actor, clientDNI, name, description string) (*domain.TrainingPlan, error) {
	client, err := s.trainerFor(ctx, actor, clientDNI)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("plan name is required")
	}

	// First plan for an unassigned client claims them for this trainer.
	if client.TrainerID == nil {
		if err := s.userRepo.SetTrainerForClient(ctx, client.ID, actor.UserID); err != nil {
			return nil, err
		}
	}

	deactivated, err := s.planRepo.DeactivateForClient(ctx, clientDNI)
	if err != nil {
		return nil, err
	}
	plan := &domain.TrainingPlan{
		TrainerID:   actor.UserID,
		ClientDNI:   clientDNI,
		Name:        name,
		Description: description,
		Active:      true,
	}
	planID, err := s.planRepo.Create(ctx, plan)
	if err != nil {
		if errors.Is(err, errs.ErrConflict) {
			s.log.Warn("concurrent plan creation lost", zap.String("clientDni", clientDNI))
			return nil, ErrPlanConflict
		}
		return nil, err
	}
	s.log.Info("training plan created",
		zap.String("planId", planID.Hex()),
		zap.String("clientDni", clientDNI),
		zap.Int64("superseded", deactivated),
	)
	return s.planRepo.GetByID(ctx, planID)
}

func (s *planService) GetActivePlan(ctx context.Context, actor domain.Actor, clientDNI string) (*domain.TrainingPlan, error) {
	if err := s.reader(ctx, actor, clientDNI); err != nil {
		return nil, err
	}
	plan, err := s.planRepo.GetActiveByClientDNI(ctx, clientDNI)
	if err != nil {
		return nil, notFoundAs(err, ErrActivePlanNotFound)
	}
	return plan, nil
}

func (s *planService) GetHistory(ctx context.Context, actor domain.Actor, clientDNI string) ([]domain.TrainingPlan, error) {
	if err := s.reader(ctx, actor, clientDNI); err != nil {
		return nil, err
	}
	return s.planRepo.GetByClientDNI(ctx, clientDNI)
}

func (s *planService) GetPlan(ctx context.Context, actor domain.Actor, planID primitive.ObjectID) (*domain.TrainingPlan, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, notFoundAs(err, ErrPlanNotFound)
	}
	if err := s.reader(ctx, actor, plan.ClientDNI); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *planService) ListActiveRoutines(ctx context.Context, actor domain.Actor, clientDNI string) ([]domain.Routine, error) {
	plan, err := s.GetActivePlan(ctx, actor, clientDNI)
	if err != nil {
		return nil, err
	}
	return s.routineRepo.GetByPlanID(ctx, plan.ID, true)
}

func (s *planService) ListRoutines(ctx context.Context, actor domain.Actor, planID primitive.ObjectID, onlyActive bool) ([]domain.Routine, error) {
	plan, err := s.GetPlan(ctx, actor, planID)
	if err != nil {
		return nil, err
	}
	return s.routineRepo.GetByPlanID(ctx, plan.ID, onlyActive)
}

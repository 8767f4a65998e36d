package service

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/repository"
	"context"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ExerciseService is the exercise catalog routine sessions reference.
type ExerciseService interface {
	CreateExercise(ctx context.Context, actor domain.Actor, name, description, muscleGroup string) (*domain.Exercise, error)
	GetExerciseByID(ctx context.Context, exerciseID primitive.ObjectID) (*domain.Exercise, error)
	ListExercises(ctx context.Context) ([]domain.Exercise, error)
	// SearchExercises ranks catalog entries by closeness to the query,
	// tolerating typos. At most limit results are returned.
	SearchExercises(ctx context.Context, query string, limit int) ([]domain.Exercise, error)
}

type exerciseService struct {
	exerciseRepo repository.ExerciseRepository
	log          *zap.Logger
}

// NewExerciseService creates a new instance of exerciseService.
func NewExerciseService(exerciseRepo repository.ExerciseRepository, log *zap.Logger) ExerciseService {
	return &exerciseService{
		exerciseRepo: exerciseRepo,
		log:          log.Named("exercises"),
	}
}

func (s *exerciseService) CreateExercise(ctx context.Context, actor domain.Actor, name, description, muscleGroup string) (*domain.Exercise, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	if !actor.IsTrainer() {
		return nil, ErrTrainerOnly
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("exercise name is required")
	}

	exercise := &domain.Exercise{
		TrainerID:   actor.UserID,
		Name:        name,
		Description: description,
		MuscleGroup: muscleGroup,
	}
	exerciseID, err := s.exerciseRepo.Create(ctx, exercise)
	if err != nil {
		return nil, err
	}
	s.log.Debug("exercise created", zap.String("exerciseId", exerciseID.Hex()), zap.String("name", name))
	return s.exerciseRepo.GetByID(ctx, exerciseID)
}

func (s *exerciseService) GetExerciseByID(ctx context.Context, exerciseID primitive.ObjectID) (*domain.Exercise, error) {
	exercise, err := s.exerciseRepo.GetByID(ctx, exerciseID)
	if err != nil {
		return nil, notFoundAs(err, ErrExerciseNotFound)
	}
	return exercise, nil
}

func (s *exerciseService) ListExercises(ctx context.Context) ([]domain.Exercise, error) {
	return s.exerciseRepo.List(ctx)
}

type scoredExercise struct {
	exercise domain.Exercise
	score    int
}

func (s *exerciseService) SearchExercises(ctx context.Context, query string, limit int) ([]domain.Exercise, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, validationError("search query is required")
	}
	if limit <= 0 {
		limit = 10
	}
	all, err := s.exerciseRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	// Substring hits score 0. Anything else is scored by edit distance and
	// kept while the distance stays under half the query length.
	threshold := len(query)/2 + 1
	scored := make([]scoredExercise, 0, len(all))
	for _, ex := range all {
		name := strings.ToLower(ex.Name)
		score := 0
		if !strings.Contains(name, query) {
			score = bestDistance(query, name)
			if score >= threshold {
				continue
			}
		}
		scored = append(scored, scoredExercise{exercise: ex, score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score < scored[j].score
		}
		return scored[i].exercise.Name < scored[j].exercise.Name
	})

	out := make([]domain.Exercise, 0, limit)
	for _, se := range scored {
		if len(out) == limit {
			break
		}
		out = append(out, se.exercise)
	}
	return out, nil
}

// bestDistance compares the query to the whole name and to each word of it.
func bestDistance(query, name string) int {
	best := levenshtein.ComputeDistance(query, name)
	for _, word := range strings.Fields(name) {
		if d := levenshtein.ComputeDistance(query, word); d < best {
			best = d
		}
	}
	return best
}

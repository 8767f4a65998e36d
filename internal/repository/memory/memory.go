// Package memory provides in-process repositories. They back the "memory"
// database driver used for local runs and for service and API tests, and they
// honour the same conditional-write semantics as the MongoDB implementations.
package memory

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/errs"
	"alcyxob/fitness-coach/internal/repository"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store bundles one repository per collection.
type Store struct {
	Users     *UserRepository
	Exercises *ExerciseRepository
	Plans     *TrainingPlanRepository
	Routines  *RoutineRepository
	Diaries   *DiaryRepository
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		Users:     &UserRepository{byID: map[primitive.ObjectID]domain.User{}},
		Exercises: &ExerciseRepository{byID: map[primitive.ObjectID]domain.Exercise{}},
		Plans:     &TrainingPlanRepository{byID: map[primitive.ObjectID]domain.TrainingPlan{}},
		Routines:  &RoutineRepository{byID: map[primitive.ObjectID]domain.Routine{}},
		Diaries:   &DiaryRepository{byID: map[primitive.ObjectID]domain.TrainingDiary{}},
	}
}

var (
	_ repository.UserRepository         = (*UserRepository)(nil)
	_ repository.ExerciseRepository     = (*ExerciseRepository)(nil)
	_ repository.TrainingPlanRepository = (*TrainingPlanRepository)(nil)
	_ repository.RoutineRepository      = (*RoutineRepository)(nil)
	_ repository.DiaryRepository        = (*DiaryRepository)(nil)
)

// --- Users ---

type UserRepository struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]domain.User
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.DNI == "" {
		return primitive.NilObjectID, fmt.Errorf("user requires email and dni: %w", errs.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if strings.EqualFold(u.Email, user.Email) || u.DNI == user.DNI {
			return primitive.NilObjectID, fmt.Errorf("user email or dni taken: %w", errs.ErrConflict)
		}
	}
	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	r.byID[user.ID] = *user
	return user.ID, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *UserRepository) GetByDNI(_ context.Context, dni string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.DNI == dni })
}

func (r *UserRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.ID == id })
}

func (r *UserRepository) find(match func(domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if match(u) {
			c := u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r *UserRepository) SetTrainerForClient(_ context.Context, clientID, trainerID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[clientID]
	if !ok || u.Role != domain.RoleClient {
		return errs.ErrNotFound
	}
	t := trainerID
	u.TrainerID = &t
	u.UpdatedAt = time.Now().UTC()
	r.byID[clientID] = u
	return nil
}

// --- Exercises ---

type ExerciseRepository struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]domain.Exercise
}

func (r *ExerciseRepository) Create(_ context.Context, exercise *domain.Exercise) (primitive.ObjectID, error) {
	if exercise.Name == "" {
		return primitive.NilObjectID, fmt.Errorf("exercise name is required: %w", errs.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	exercise.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	exercise.CreatedAt, exercise.UpdatedAt = now, now
	r.byID[exercise.ID] = *exercise
	return exercise.ID, nil
}

func (r *ExerciseRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &e, nil
}

func (r *ExerciseRepository) List(_ context.Context) ([]domain.Exercise, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Exercise, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- Training plans ---

type TrainingPlanRepository struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]domain.TrainingPlan
}

func (r *TrainingPlanRepository) Create(_ context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error) {
	if plan.ClientDNI == "" || plan.Name == "" {
		return primitive.NilObjectID, fmt.Errorf("plan requires clientDni and name: %w", errs.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if plan.Active {
		for _, p := range r.byID {
			if p.ClientDNI == plan.ClientDNI && p.Active {
				return primitive.NilObjectID, fmt.Errorf("client %s already has an active plan: %w", plan.ClientDNI, errs.ErrConflict)
			}
		}
	}
	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt, plan.UpdatedAt = now, now
	plan.Version = 1
	r.byID[plan.ID] = *plan
	return plan.ID, nil
}

func (r *TrainingPlanRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &p, nil
}

func (r *TrainingPlanRepository) GetActiveByClientDNI(_ context.Context, clientDNI string) (*domain.TrainingPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.byID {
		if p.ClientDNI == clientDNI && p.Active {
			c := p
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r *TrainingPlanRepository) GetByClientDNI(_ context.Context, clientDNI string) ([]domain.TrainingPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	plans := []domain.TrainingPlan{}
	for _, p := range r.byID {
		if p.ClientDNI == clientDNI {
			plans = append(plans, p)
		}
	}
	sort.SliceStable(plans, func(i, j int) bool {
		if plans[i].Active != plans[j].Active {
			return plans[i].Active
		}
		if !plans[i].CreatedAt.Equal(plans[j].CreatedAt) {
			return plans[i].CreatedAt.After(plans[j].CreatedAt)
		}
		// ObjectIDs grow with insertion order
		return plans[i].ID.Hex() > plans[j].ID.Hex()
	})
	return plans, nil
}

func (r *TrainingPlanRepository) DeactivateForClient(_ context.Context, clientDNI string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for id, p := range r.byID {
		if p.ClientDNI == clientDNI && p.Active {
			p.Active = false
			p.Version++
			p.UpdatedAt = now
			r.byID[id] = p
			n++
		}
	}
	return n, nil
}

func (r *TrainingPlanRepository) ClaimCycleSignal(_ context.Context, planID primitive.ObjectID, cycle string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[planID]
	if !ok {
		return false, errs.ErrNotFound
	}
	if p.CycleSignaledFor == cycle {
		return false, nil
	}
	p.CycleSignaledFor = cycle
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	r.byID[planID] = p
	return true, nil
}

// --- Routines ---

type RoutineRepository struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]domain.Routine
}

func cloneRoutine(r domain.Routine) domain.Routine {
	r.Sessions = append([]domain.Session(nil), r.Sessions...)
	if r.Sessions == nil {
		r.Sessions = []domain.Session{}
	}
	return r
}

func (r *RoutineRepository) Create(_ context.Context, routine *domain.Routine) (primitive.ObjectID, error) {
	if routine.PlanID == primitive.NilObjectID || routine.ClientDNI == "" || routine.Name == "" {
		return primitive.NilObjectID, fmt.Errorf("routine requires planId, clientDni and name: %w", errs.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	routine.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	routine.CreationDate, routine.UpdatedAt = now, now
	routine.Version = 1
	if routine.Sessions == nil {
		routine.Sessions = []domain.Session{}
	}
	r.byID[routine.ID] = cloneRoutine(*routine)
	return routine.ID, nil
}

func (r *RoutineRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Routine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := cloneRoutine(rt)
	return &c, nil
}

func (r *RoutineRepository) GetByPlanID(_ context.Context, planID primitive.ObjectID, onlyActive bool) ([]domain.Routine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Routine{}
	for _, rt := range r.byID {
		if rt.PlanID != planID || (onlyActive && !rt.Active) {
			continue
		}
		out = append(out, cloneRoutine(rt))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreationDate.Equal(out[j].CreationDate) {
			return out[i].CreationDate.Before(out[j].CreationDate)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out, nil
}

// mutate applies fn to a copy of the routine under the write lock and stores
// the result with a bumped version.
func (r *RoutineRepository) mutate(id primitive.ObjectID, expectedVersion *int64, fn func(*domain.Routine) error) (*domain.Routine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if expectedVersion != nil && rt.Version != *expectedVersion {
		return nil, errs.ErrVersionConflict
	}
	c := cloneRoutine(rt)
	if err := fn(&c); err != nil {
		return nil, err
	}
	c.Version++
	c.UpdatedAt = time.Now().UTC()
	r.byID[id] = c
	out := cloneRoutine(c)
	return &out, nil
}

func (r *RoutineRepository) AddSession(_ context.Context, routineID primitive.ObjectID, session domain.Session, expectedVersion *int64) (*domain.Routine, error) {
	return r.mutate(routineID, expectedVersion, func(rt *domain.Routine) error {
		rt.Sessions = append(rt.Sessions, session)
		return nil
	})
}

func (r *RoutineRepository) ReplaceSession(_ context.Context, routineID primitive.ObjectID, session domain.Session, expectedVersion *int64) (*domain.Routine, error) {
	return r.mutate(routineID, expectedVersion, func(rt *domain.Routine) error {
		existing := rt.SessionByID(session.ID)
		if existing == nil {
			return errs.ErrNotFound
		}
		*existing = session
		return nil
	})
}

func (r *RoutineRepository) RemoveSession(_ context.Context, routineID, sessionID primitive.ObjectID, expectedVersion *int64) (*domain.Routine, error) {
	return r.mutate(routineID, expectedVersion, func(rt *domain.Routine) error {
		for i := range rt.Sessions {
			if rt.Sessions[i].ID == sessionID {
				rt.Sessions = append(rt.Sessions[:i], rt.Sessions[i+1:]...)
				return nil
			}
		}
		return errs.ErrNotFound
	})
}

func (r *RoutineRepository) SetActive(_ context.Context, routineID primitive.ObjectID, active bool) (*domain.Routine, error) {
	return r.mutate(routineID, nil, func(rt *domain.Routine) error {
		rt.Active = active
		return nil
	})
}

func (r *RoutineRepository) StartExecution(_ context.Context, routineID, diaryID primitive.ObjectID, clearCompleted bool) (*domain.Routine, error) {
	return r.mutate(routineID, nil, func(rt *domain.Routine) error {
		d := diaryID
		rt.InProgress = true
		rt.CurrentDiaryID = &d
		if clearCompleted {
			rt.Completed = false
			rt.CompletedAt = nil
		}
		return nil
	})
}

func (r *RoutineRepository) MarkCompleted(_ context.Context, routineID primitive.ObjectID, at time.Time) (bool, error) {
	transitioned := false
	_, err := r.mutate(routineID, nil, func(rt *domain.Routine) error {
		rt.InProgress = false
		if !rt.CompletedInCycle(at) {
			ts := at.UTC()
			rt.Completed = true
			rt.CompletedAt = &ts
			transitioned = true
		}
		return nil
	})
	return transitioned, err
}

func (r *RoutineRepository) ResetCompletedBefore(_ context.Context, cutoff time.Time) ([]primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[primitive.ObjectID]bool{}
	plans := []primitive.ObjectID{}
	now := time.Now().UTC()
	for id, rt := range r.byID {
		if !rt.Completed || rt.CompletedAt == nil || !rt.CompletedAt.Before(cutoff) {
			continue
		}
		rt.Completed = false
		rt.CompletedAt = nil
		rt.Version++
		rt.UpdatedAt = now
		r.byID[id] = rt
		if !seen[rt.PlanID] {
			seen[rt.PlanID] = true
			plans = append(plans, rt.PlanID)
		}
	}
	return plans, nil
}

// --- Diaries ---

type DiaryRepository struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]domain.TrainingDiary
}

func cloneDiary(d domain.TrainingDiary) domain.TrainingDiary {
	d.Sessions = append([]domain.DiaryEntry(nil), d.Sessions...)
	if d.Sessions == nil {
		d.Sessions = []domain.DiaryEntry{}
	}
	d.Attachments = append([]domain.Attachment(nil), d.Attachments...)
	return d
}

func (r *DiaryRepository) Create(_ context.Context, diary *domain.TrainingDiary) (primitive.ObjectID, error) {
	if diary.ClientDNI == "" {
		return primitive.NilObjectID, fmt.Errorf("diary requires clientDni: %w", errs.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	diary.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	diary.CreatedAt, diary.UpdatedAt = now, now
	if diary.Date.IsZero() {
		diary.Date = now
	}
	if diary.Sessions == nil {
		diary.Sessions = []domain.DiaryEntry{}
	}
	r.byID[diary.ID] = cloneDiary(*diary)
	return diary.ID, nil
}

func (r *DiaryRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.TrainingDiary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := cloneDiary(d)
	return &c, nil
}

func (r *DiaryRepository) update(id primitive.ObjectID, fn func(*domain.TrainingDiary) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	c := cloneDiary(d)
	if err := fn(&c); err != nil {
		return err
	}
	c.UpdatedAt = time.Now().UTC()
	r.byID[id] = c
	return nil
}

var errAlreadyRecorded = errors.New("entry already recorded")

func (r *DiaryRepository) AppendEntry(_ context.Context, diaryID primitive.ObjectID, entry domain.DiaryEntry) (bool, error) {
	err := r.update(diaryID, func(d *domain.TrainingDiary) error {
		if d.EntryByKey(entry.IdempotencyKey) != nil {
			return errAlreadyRecorded
		}
		d.Sessions = append(d.Sessions, entry)
		return nil
	})
	if errors.Is(err, errAlreadyRecorded) {
		return false, nil
	}
	return err == nil, err
}

func (r *DiaryRepository) SetObservation(_ context.Context, diaryID primitive.ObjectID, observation string) error {
	return r.update(diaryID, func(d *domain.TrainingDiary) error {
		d.Observation = observation
		return nil
	})
}

func (r *DiaryRepository) AppendObservation(_ context.Context, diaryID primitive.ObjectID, observation string) error {
	return r.update(diaryID, func(d *domain.TrainingDiary) error {
		if d.Observation == "" {
			d.Observation = observation
		} else {
			d.Observation += "\n" + observation
		}
		return nil
	})
}

func (r *DiaryRepository) GetByEntryID(_ context.Context, entryID string) (*domain.TrainingDiary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.byID {
		for _, e := range d.Sessions {
			if e.ID == entryID {
				c := cloneDiary(d)
				return &c, nil
			}
		}
	}
	return nil, errs.ErrNotFound
}

func (r *DiaryRepository) DeleteEntry(_ context.Context, diaryID primitive.ObjectID, entryID string) error {
	return r.update(diaryID, func(d *domain.TrainingDiary) error {
		for i := range d.Sessions {
			if d.Sessions[i].ID == entryID {
				d.Sessions = append(d.Sessions[:i], d.Sessions[i+1:]...)
				return nil
			}
		}
		return errs.ErrNotFound
	})
}

func (r *DiaryRepository) ListByClient(_ context.Context, clientDNI string, rng domain.DateRange) ([]domain.TrainingDiary, error) {
	return r.list(func(d domain.TrainingDiary) bool {
		return d.ClientDNI == clientDNI && rng.Contains(d.Date)
	}), nil
}

func (r *DiaryRepository) ListByPlan(_ context.Context, clientDNI string, planID primitive.ObjectID, rng domain.DateRange) ([]domain.TrainingDiary, error) {
	return r.list(func(d domain.TrainingDiary) bool {
		return d.ClientDNI == clientDNI && d.PlanID != nil && *d.PlanID == planID && rng.Contains(d.Date)
	}), nil
}

// list returns matching diaries, newest first.
func (r *DiaryRepository) list(match func(domain.TrainingDiary) bool) []domain.TrainingDiary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.TrainingDiary{}
	for _, d := range r.byID {
		if match(d) {
			out = append(out, cloneDiary(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out
}

func (r *DiaryRepository) AddAttachment(_ context.Context, diaryID primitive.ObjectID, attachment domain.Attachment) error {
	return r.update(diaryID, func(d *domain.TrainingDiary) error {
		d.Attachments = append(d.Attachments, attachment)
		return nil
	})
}

func (r *DiaryRepository) Discard(_ context.Context, diaryID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[diaryID]; !ok {
		return errs.ErrNotFound
	}
	delete(r.byID, diaryID)
	return nil
}

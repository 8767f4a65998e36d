package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/repository"
	"alcyxob/fitness-coach/internal/repository/memory"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu      sync.Mutex
	signals []domain.Signal
}

func (p *recordingPublisher) Publish(signal domain.Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, signal)
}

func (p *recordingPublisher) kinds() []domain.SignalKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.SignalKind, 0, len(p.signals))
	for _, s := range p.signals {
		out = append(out, s.Kind)
	}
	return out
}

func (p *recordingPublisher) count(kind domain.SignalKind) int {
	n := 0
	for _, k := range p.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

// fixture wires every service over one in-memory store with a trainer, the
// client they manage, a second trainer and an unrelated client.
type fixture struct {
	store *memory.Store
	pub   *recordingPublisher

	trainer      domain.Actor
	otherTrainer domain.Actor
	client       domain.Actor
	otherClient  domain.Actor

	exercises  *exerciseService
	plans      *planService
	routines   *routineService
	diaries    *diaryService
	activation *activationService
	execution  *executionService
}

const (
	clientDNI      = "C-100"
	otherClientDNI = "C-200"
)

func newFixture(t *testing.T, policy ActivationPolicy) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	log := zap.NewNop()

	mkUser := func(email, dni string, role domain.Role) domain.Actor {
		u := &domain.User{Name: email, Email: email, DNI: dni, Role: role}
		id, err := store.Users.Create(ctx, u)
		require.NoError(t, err)
		return domain.Actor{UserID: id, DNI: dni, Role: role}
	}

	f := &fixture{store: store, pub: &recordingPublisher{}}
	f.trainer = mkUser("coach@gym.io", "T-1", domain.RoleTrainer)
	f.otherTrainer = mkUser("rival@gym.io", "T-2", domain.RoleTrainer)
	f.client = mkUser("ana@gym.io", clientDNI, domain.RoleClient)
	f.otherClient = mkUser("bob@gym.io", otherClientDNI, domain.RoleClient)
	require.NoError(t, store.Users.SetTrainerForClient(ctx, f.client.UserID, f.trainer.UserID))

	f.exercises = NewExerciseService(store.Exercises, log).(*exerciseService)
	f.plans = NewPlanService(store.Users, store.Plans, store.Routines, log).(*planService)
	f.routines = NewRoutineService(store.Users, store.Plans, store.Routines, store.Exercises, log).(*routineService)
	f.diaries = NewDiaryService(store.Users, store.Diaries, store.Plans, log).(*diaryService)
	f.activation = NewActivationService(store.Users, store.Plans, store.Routines, f.diaries, policy, log).(*activationService)
	f.execution = NewExecutionService(store.Users, store.Plans, store.Routines, f.diaries, f.pub, log).(*executionService)
	return f
}

// setNow pins the clock of every time-dependent service.
func (f *fixture) setNow(at time.Time) {
	now := func() time.Time { return at }
	f.diaries.now = now
	f.activation.now = now
	f.execution.now = now
}

func (f *fixture) plan(t *testing.T, name string) *domain.TrainingPlan {
	t.Helper()
	p, err := f.plans.CreatePlan(context.Background(), f.trainer, clientDNI, name, "")
	require.NoError(t, err)
	return p
}

func (f *fixture) routine(t *testing.T, plan *domain.TrainingPlan, name string) *domain.Routine {
	t.Helper()
	r, err := f.routines.AddRoutine(context.Background(), f.trainer, plan.ID, name, nil)
	require.NoError(t, err)
	return r
}

func (f *fixture) reload(t *testing.T, routine *domain.Routine) *domain.Routine {
	t.Helper()
	r, err := f.store.Routines.GetByID(context.Background(), routine.ID)
	require.NoError(t, err)
	return r
}

func weight(v float64) *float64 { return &v }

// scriptedRoutines wraps the memory routine store to fail writes or to
// interleave another request at chosen points.
type scriptedRoutines struct {
	*memory.RoutineRepository

	// snapshots are served by GetByID instead of the stored routine.
	snapshots map[primitive.ObjectID]domain.Routine
	// afterGet runs once, after the next successful GetByID.
	afterGet      func(*domain.Routine)
	failStart     error
	failCompleted error
}

var _ repository.RoutineRepository = (*scriptedRoutines)(nil)

func (r *scriptedRoutines) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Routine, error) {
	if snap, ok := r.snapshots[id]; ok {
		return &snap, nil
	}
	rt, err := r.RoutineRepository.GetByID(ctx, id)
	if err == nil && r.afterGet != nil {
		hook := r.afterGet
		r.afterGet = nil
		hook(rt)
	}
	return rt, err
}

func (r *scriptedRoutines) StartExecution(ctx context.Context, routineID, diaryID primitive.ObjectID, clearCompleted bool) (*domain.Routine, error) {
	if r.failStart != nil {
		return nil, r.failStart
	}
	return r.RoutineRepository.StartExecution(ctx, routineID, diaryID, clearCompleted)
}

func (r *scriptedRoutines) MarkCompleted(ctx context.Context, routineID primitive.ObjectID, at time.Time) (bool, error) {
	if r.failCompleted != nil {
		return false, r.failCompleted
	}
	return r.RoutineRepository.MarkCompleted(ctx, routineID, at)
}

// executionOver builds an execution service sharing the fixture's stores
// except for routines.
func (f *fixture) executionOver(routines repository.RoutineRepository, at time.Time) *executionService {
	svc := NewExecutionService(f.store.Users, f.store.Plans, routines, f.diaries, f.pub, zap.NewNop()).(*executionService)
	svc.now = func() time.Time { return at }
	return svc
}

func (f *fixture) clientDiaries(t *testing.T) []domain.TrainingDiary {
	t.Helper()
	diaries, err := f.store.Diaries.ListByClient(context.Background(), clientDNI, domain.DateRange{})
	require.NoError(t, err)
	return diaries
}

func (f *fixture) routinesOver(routines repository.RoutineRepository) RoutineService {
	return NewRoutineService(f.store.Users, f.store.Plans, routines, f.store.Exercises, zap.NewNop())
}

func (f *fixture) activationOver(routines repository.RoutineRepository) ActivationService {
	return NewActivationService(f.store.Users, f.store.Plans, routines, f.diaries, PolicyParallel, zap.NewNop())
}

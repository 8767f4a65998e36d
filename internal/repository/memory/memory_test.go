package memory

import (
	"context"
	"testing"
	"time"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/errs"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newRoutine(t *testing.T, s *Store) *domain.Routine {
	t.Helper()
	rt := &domain.Routine{PlanID: primitive.NewObjectID(), ClientDNI: "C1", Name: "Day 1", Active: true}
	_, err := s.Routines.Create(context.Background(), rt)
	require.NoError(t, err)
	return rt
}

func TestUserRepository_UniqueEmailAndDNI(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()

	_, err := s.Users.Create(ctx, &domain.User{Email: "a@x.io", DNI: "1", Role: domain.RoleClient})
	require.NoError(t, err)

	_, err = s.Users.Create(ctx, &domain.User{Email: "A@x.io", DNI: "2"})
	require.ErrorIs(t, err, errs.ErrConflict)
	_, err = s.Users.Create(ctx, &domain.User{Email: "b@x.io", DNI: "1"})
	require.ErrorIs(t, err, errs.ErrConflict)

	u, err := s.Users.GetByEmail(ctx, "A@X.IO")
	require.NoError(t, err)
	require.Equal(t, "1", u.DNI)

	_, err = s.Users.GetByDNI(ctx, "404")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestTrainingPlanRepository_SingleActive(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()

	first := &domain.TrainingPlan{ClientDNI: "C1", Name: "A", Active: true}
	_, err := s.Plans.Create(ctx, first)
	require.NoError(t, err)
	require.EqualValues(t, 1, first.Version)

	_, err = s.Plans.Create(ctx, &domain.TrainingPlan{ClientDNI: "C1", Name: "B", Active: true})
	require.ErrorIs(t, err, errs.ErrConflict)

	n, err := s.Plans.DeactivateForClient(ctx, "C1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	second := &domain.TrainingPlan{ClientDNI: "C1", Name: "B", Active: true}
	_, err = s.Plans.Create(ctx, second)
	require.NoError(t, err)

	active, err := s.Plans.GetActiveByClientDNI(ctx, "C1")
	require.NoError(t, err)
	require.Equal(t, second.ID, active.ID)

	history, err := s.Plans.GetByClientDNI(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, second.ID, history[0].ID)
	require.False(t, history[1].Active)
}

func TestTrainingPlanRepository_ClaimCycleSignalOncePerCycle(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()

	p := &domain.TrainingPlan{ClientDNI: "C1", Name: "A", Active: true}
	_, err := s.Plans.Create(ctx, p)
	require.NoError(t, err)

	won, err := s.Plans.ClaimCycleSignal(ctx, p.ID, "2026-W43")
	require.NoError(t, err)
	require.True(t, won)
	won, err = s.Plans.ClaimCycleSignal(ctx, p.ID, "2026-W43")
	require.NoError(t, err)
	require.False(t, won)

	won, err = s.Plans.ClaimCycleSignal(ctx, p.ID, "2026-W44")
	require.NoError(t, err)
	require.True(t, won)

	got, err := s.Plans.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "2026-W44", got.CycleSignaledFor)

	_, err = s.Plans.ClaimCycleSignal(ctx, primitive.NewObjectID(), "2026-W44")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRoutineRepository_VersionGuard(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	rt := newRoutine(t, s)
	require.EqualValues(t, 1, rt.Version)

	session := domain.Session{ID: primitive.NewObjectID(), ExerciseName: "Row", Sets: 3, Reps: 10, RestTime: "1:00"}
	v := int64(1)
	updated, err := s.Routines.AddSession(ctx, rt.ID, session, &v)
	require.NoError(t, err)
	require.EqualValues(t, 2, updated.Version)
	require.Len(t, updated.Sessions, 1)

	// Stale writer loses.
	_, err = s.Routines.AddSession(ctx, rt.ID, session, &v)
	require.ErrorIs(t, err, errs.ErrVersionConflict)

	session.Reps = 12
	updated, err = s.Routines.ReplaceSession(ctx, rt.ID, session, nil)
	require.NoError(t, err)
	require.Equal(t, 12, updated.Sessions[0].Reps)

	_, err = s.Routines.RemoveSession(ctx, rt.ID, primitive.NewObjectID(), nil)
	require.ErrorIs(t, err, errs.ErrNotFound)
	updated, err = s.Routines.RemoveSession(ctx, rt.ID, session.ID, nil)
	require.NoError(t, err)
	require.Empty(t, updated.Sessions)
}

func TestRoutineRepository_ReturnsCopies(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	rt := newRoutine(t, s)

	_, err := s.Routines.AddSession(ctx, rt.ID, domain.Session{ID: primitive.NewObjectID(), ExerciseName: "Row", Sets: 1, Reps: 1, RestTime: "1:00"}, nil)
	require.NoError(t, err)

	got, err := s.Routines.GetByID(ctx, rt.ID)
	require.NoError(t, err)
	got.Sessions[0].ExerciseName = "changed"

	again, err := s.Routines.GetByID(ctx, rt.ID)
	require.NoError(t, err)
	require.Equal(t, "Row", again.Sessions[0].ExerciseName)
}

func TestRoutineRepository_MarkCompletedTransitionsOnce(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	rt := newRoutine(t, s)

	_, err := s.Routines.StartExecution(ctx, rt.ID, primitive.NewObjectID(), false)
	require.NoError(t, err)

	at := time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC)
	ok, err := s.Routines.MarkCompleted(ctx, rt.ID, at)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Routines.MarkCompleted(ctx, rt.ID, at.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, ok)

	got, err := s.Routines.GetByID(ctx, rt.ID)
	require.NoError(t, err)
	require.True(t, got.Completed)
	require.False(t, got.InProgress)
	require.Equal(t, at, *got.CompletedAt)

	_, err = s.Routines.StartExecution(ctx, rt.ID, primitive.NewObjectID(), true)
	require.NoError(t, err)
	got, err = s.Routines.GetByID(ctx, rt.ID)
	require.NoError(t, err)
	require.False(t, got.Completed)
	require.Nil(t, got.CompletedAt)
	require.True(t, got.InProgress)
}

func TestRoutineRepository_ResetCompletedBefore(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	old := newRoutine(t, s)
	fresh := newRoutine(t, s)
	idle := newRoutine(t, s)

	cutoff := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	_, err := s.Routines.MarkCompleted(ctx, old.ID, cutoff.Add(-time.Hour))
	require.NoError(t, err)
	_, err = s.Routines.MarkCompleted(ctx, fresh.ID, cutoff.Add(time.Hour))
	require.NoError(t, err)

	plans, err := s.Routines.ResetCompletedBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Equal(t, []primitive.ObjectID{old.PlanID}, plans)

	got, err := s.Routines.GetByID(ctx, old.ID)
	require.NoError(t, err)
	require.False(t, got.Completed)

	got, err = s.Routines.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.True(t, got.Completed)

	got, err = s.Routines.GetByID(ctx, idle.ID)
	require.NoError(t, err)
	require.False(t, got.Completed)
}

func TestDiaryRepository_AppendEntryIdempotent(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()

	d := &domain.TrainingDiary{ClientDNI: "C1"}
	_, err := s.Diaries.Create(ctx, d)
	require.NoError(t, err)

	entry := domain.DiaryEntry{ID: "e1", ExerciseName: "Row", Sets: 1, Reps: 5, IdempotencyKey: "k"}
	ok, err := s.Diaries.AppendEntry(ctx, d.ID, entry)
	require.NoError(t, err)
	require.True(t, ok)

	entry.ID = "e2"
	ok, err = s.Diaries.AppendEntry(ctx, d.ID, entry)
	require.NoError(t, err)
	require.False(t, ok)

	// Entries without a key always append.
	for _, id := range []string{"e3", "e4"} {
		ok, err = s.Diaries.AppendEntry(ctx, d.ID, domain.DiaryEntry{ID: id, ExerciseName: "Row", Sets: 1, Reps: 5})
		require.NoError(t, err)
		require.True(t, ok)
	}

	got, err := s.Diaries.GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, got.Sessions, 3)

	owner, err := s.Diaries.GetByEntryID(ctx, "e3")
	require.NoError(t, err)
	require.Equal(t, d.ID, owner.ID)

	require.NoError(t, s.Diaries.DeleteEntry(ctx, d.ID, "e3"))
	require.ErrorIs(t, s.Diaries.DeleteEntry(ctx, d.ID, "e3"), errs.ErrNotFound)
}

func TestDiaryRepository_Observations(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()

	d := &domain.TrainingDiary{ClientDNI: "C1"}
	_, err := s.Diaries.Create(ctx, d)
	require.NoError(t, err)

	require.NoError(t, s.Diaries.AppendObservation(ctx, d.ID, "felt strong"))
	require.NoError(t, s.Diaries.AppendObservation(ctx, d.ID, "knee ok"))
	got, err := s.Diaries.GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "felt strong\nknee ok", got.Observation)

	require.NoError(t, s.Diaries.SetObservation(ctx, d.ID, "rewritten"))
	got, err = s.Diaries.GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "rewritten", got.Observation)
}

func TestDiaryRepository_ListFilters(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	plan := primitive.NewObjectID()

	day := func(d int) time.Time { return time.Date(2026, 10, d, 9, 0, 0, 0, time.UTC) }
	for i, d := range []*domain.TrainingDiary{
		{ClientDNI: "C1", PlanID: &plan, Date: day(1)},
		{ClientDNI: "C1", Date: day(10)},
		{ClientDNI: "C1", PlanID: &plan, Date: day(20)},
		{ClientDNI: "C2", PlanID: &plan, Date: day(20)},
	} {
		_, err := s.Diaries.Create(ctx, d)
		require.NoError(t, err, i)
	}

	all, err := s.Diaries.ListByClient(ctx, "C1", domain.DateRange{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, day(20), all[0].Date)

	windowed, err := s.Diaries.ListByClient(ctx, "C1", domain.DateRange{From: day(5), To: day(15)})
	require.NoError(t, err)
	require.Len(t, windowed, 1)

	byPlan, err := s.Diaries.ListByPlan(ctx, "C1", plan, domain.DateRange{})
	require.NoError(t, err)
	require.Len(t, byPlan, 2)
}

func TestDiaryRepository_Discard(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()

	d := &domain.TrainingDiary{ClientDNI: "C1"}
	_, err := s.Diaries.Create(ctx, d)
	require.NoError(t, err)

	require.NoError(t, s.Diaries.Discard(ctx, d.ID))
	_, err = s.Diaries.GetByID(ctx, d.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.ErrorIs(t, s.Diaries.Discard(ctx, d.ID), errs.ErrNotFound)
}

package service

import (
	"context"
	"testing"

	"alcyxob/fitness-coach/internal/errs"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseActivationPolicy(t *testing.T) {
	t.Parallel()

	p, err := ParseActivationPolicy("")
	require.NoError(t, err)
	require.Equal(t, PolicyParallel, p)

	p, err = ParseActivationPolicy("exclusive")
	require.NoError(t, err)
	require.Equal(t, PolicyExclusive, p)

	_, err = ParseActivationPolicy("serial")
	require.Error(t, err)
}

func TestActivate_OpensDiaryAndMarksInProgress(t *testing.T) {
	t.Parallel()
	f := newFixture(t, PolicyParallel)
	ctx := context.Background()

	p := f.plan(t, "P1")
	r1 := f.routine(t, p, "R1")

	diaryID, err := f.activation.Activate(ctx, f.client, r1.ID, clientDNI)
	require.NoError(t, err)

	got := f.reload(t, r1)
	require.True(t, got.InProgress)
	require.Equal(t, diaryID, *got.CurrentDiaryID)

	diary, err := f.diaries.Get(ctx, f.client, diaryID)
	require.NoError(t, err)
	require.Equal(t, clientDNI, diary.ClientDNI)
	require.Equal(t, p.ID, *diary.PlanID)
	require.Equal(t, r1.ID, *diary.RoutineID)
	require.Empty(t, diary.Sessions)

	// Each activation opens a fresh diary.
	again, err := f.activation.Activate(ctx, f.client, r1.ID, clientDNI)
	require.NoError(t, err)
	require.NotEqual(t, diaryID, again)
}

func TestActivate_DeactivatedRoutineConflicts(t *testing.T) {
	t.Parallel()
	f := newFixture(t, PolicyParallel)
	ctx := context.Background()

	p := f.plan(t, "P1")
	r3 := f.routine(t, p, "R3")

	deactivated, err := f.routines.DeactivateRoutine(ctx, f.trainer, r3.ID)
	require.NoError(t, err)
	require.False(t, deactivated.Active)
	require.False(t, deactivated.Completed)

	_, err = f.activation.Activate(ctx, f.client, r3.ID, clientDNI)
	require.ErrorIs(t, err, ErrRoutineInactive)
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestActivate_SupersededPlanConflicts(t *testing.T) {
	t.Parallel()
	f := newFixture(t, PolicyParallel)
	ctx := context.Background()

	old := f.plan(t, "P1")
	r1 := f.routine(t, old, "R1")
	f.plan(t, "P2")

	_, err := f.activation.Activate(ctx, f.client, r1.ID, clientDNI)
	require.ErrorIs(t, err, ErrPlanNotActive)
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestActivate_Access(t *testing.T) {
	t.Parallel()
	f := newFixture(t, PolicyParallel)
	ctx := context.Background()

	p := f.plan(t, "P1")
	r1 := f.routine(t, p, "R1")

	_, err := f.activation.Activate(ctx, f.client, primitive.NewObjectID(), clientDNI)
	require.ErrorIs(t, err, ErrRoutineNotFound)

	_, err = f.activation.Activate(ctx, f.otherClient, r1.ID, otherClientDNI)
	require.ErrorIs(t, err, ErrRoutineNotOwned)

	_, err = f.activation.Activate(ctx, f.otherClient, r1.ID, clientDNI)
	require.ErrorIs(t, err, errs.ErrForbidden)

	_, err = f.activation.Activate(ctx, f.otherTrainer, r1.ID, clientDNI)
	require.ErrorIs(t, err, ErrClientNotManaged)

	// The managing trainer may start a routine on the client's behalf.
	_, err = f.activation.Activate(ctx, f.trainer, r1.ID, clientDNI)
	require.NoError(t, err)
}

func TestActivate_ExclusivePolicy(t *testing.T) {
	t.Parallel()
	f := newFixture(t, PolicyExclusive)
	ctx := context.Background()

	p := f.plan(t, "P1")
	r1 := f.routine(t, p, "R1")
	r2 := f.routine(t, p, "R2")

	_, err := f.activation.Activate(ctx, f.client, r1.ID, clientDNI)
	require.NoError(t, err)

	_, err = f.activation.Activate(ctx, f.client, r2.ID, clientDNI)
	require.ErrorIs(t, err, ErrSiblingInProgress)
	require.ErrorIs(t, err, errs.ErrConflict)

	// Restarting the running routine is allowed.
	_, err = f.activation.Activate(ctx, f.client, r1.ID, clientDNI)
	require.NoError(t, err)

	_, err = f.execution.CompleteRoutine(ctx, f.client, r1.ID, "")
	require.NoError(t, err)
	_, err = f.activation.Activate(ctx, f.client, r2.ID, clientDNI)
	require.NoError(t, err)
}

func TestActivate_ParallelPolicy(t *testing.T) {
	t.Parallel()
	f := newFixture(t, PolicyParallel)
	ctx := context.Background()

	p := f.plan(t, "P1")
	r1 := f.routine(t, p, "R1")
	r2 := f.routine(t, p, "R2")

	d1, err := f.activation.Activate(ctx, f.client, r1.ID, clientDNI)
	require.NoError(t, err)
	d2, err := f.activation.Activate(ctx, f.client, r2.ID, clientDNI)
	require.NoError(t, err)
	require.NotEqual(t, d1, d2)
	require.True(t, f.reload(t, r1).InProgress)
	require.True(t, f.reload(t, r2).InProgress)
}

func TestActivate_FailedStartDiscardsDiary(t *testing.T) {
	t.Parallel()
	f := newFixture(t, PolicyParallel)
	ctx := context.Background()

	p := f.plan(t, "P1")
	r1 := f.routine(t, p, "R1")

	svc := f.activationOver(&scriptedRoutines{
		RoutineRepository: f.store.Routines,
		failStart:         errs.ErrTransient,
	})
	_, err := svc.Activate(ctx, f.client, r1.ID, clientDNI)
	require.ErrorIs(t, err, errs.ErrTransient)

	require.Empty(t, f.clientDiaries(t))
	require.False(t, f.reload(t, r1).InProgress)
}

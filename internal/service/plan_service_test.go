package service

import (
	"context"
	"sync"
	"testing"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/errs"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreatePlan_SupersedesActivePlan(t *testing.T) {
	t.Parallel()
	f := newFixture(t, PolicyParallel)
	ctx := context.Background()

	first := f.plan(t, "Base")
	require.True(t, first.Active)
	require.Equal(t, f.trainer.UserID, first.TrainerID)

	second := f.plan(t, "Peak")

	active, err := f.plans.GetActivePlan(ctx, f.client, clientDNI)
	require.NoError(t, err)
	require.Equal(t, second.ID, active.ID)

	history, err := f.plans.GetHistory(ctx, f.trainer, clientDNI)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, second.ID, history[0].ID)
	require.False(t, history[1].Active)
}

func TestCreatePlan_ConcurrentCallsLeaveOneActive(t *testing.T) {
	t.Parallel()
	f := newFixture(t, PolicyParallel)
	ctx := context.Background()

	const callers = 10
	var wg sync.WaitGroup
	failures := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, failures[i] = f.plans.CreatePlan(ctx, f.trainer, clientDNI, "Plan", "")
		}(i)
	}
	wg.Wait()
	for _, err := range failures {
		if err != nil {
			require.ErrorIs(t, err, ErrPlanConflict)
		}
	}

	history, err := f.plans.GetHistory(ctx, f.trainer, clientDNI)
	require.NoError(t, err)
	active := 0
	for _, p := range history {
		if p.Active {
			active++
		}
	}
	require.Equal(t, 1, active)
}

func TestCreatePlan_Access(t *testing.T) {
	t.Parallel()
	f := newFixture(t, PolicyParallel)
	ctx := context.Background()

	_, err := f.plans.CreatePlan(ctx, f.client, clientDNI, "Self-made", "")
	require.ErrorIs(t, err, ErrTrainerOnly)

	_, err = f.plans.CreatePlan(ctx, f.otherTrainer, clientDNI, "Poach", "")
	require.ErrorIs(t, err, ErrClientNotManaged)
	require.ErrorIs(t, err, errs.ErrForbidden)

	_, err = f.plans.CreatePlan(ctx, f.trainer, "missing", "Plan", "")
	require.ErrorIs(t, err, ErrClientNotFound)

	_, err = f.plans.CreatePlan(ctx, f.trainer, f.otherTrainer.DNI, "Plan", "")
	require.ErrorIs(t, err, ErrClientNotFound)

	_, err = f.plans.CreatePlan(ctx, f.trainer, clientDNI, "   ", "")
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestCreatePlan_ClaimsUnassignedClient(t *testing.T) {
	t.Parallel()
	f := newFixture(t, PolicyParallel)
	ctx := context.Background()

	_, err := f.plans.CreatePlan(ctx, f.otherTrainer, otherClientDNI, "Intro", "")
	require.NoError(t, err)

	u, err := f.store.Users.GetByDNI(ctx, otherClientDNI)
	require.NoError(t, err)
	require.Equal(t, f.otherTrainer.UserID, *u.TrainerID)

	_, err = f.plans.CreatePlan(ctx, f.trainer, otherClientDNI, "Intro", "")
	require.ErrorIs(t, err, ErrClientNotManaged)
}

func TestPlanReads(t *testing.T) {
	t.Parallel()
	f := newFixture(t, PolicyParallel)
	ctx := context.Background()

	_, err := f.plans.GetActivePlan(ctx, f.client, clientDNI)
	require.ErrorIs(t, err, ErrActivePlanNotFound)

	p := f.plan(t, "P1")
	r1 := f.routine(t, p, "R1")
	r2 := f.routine(t, p, "R2")
	_, err = f.routines.DeactivateRoutine(ctx, f.trainer, r2.ID)
	require.NoError(t, err)

	routines, err := f.plans.ListActiveRoutines(ctx, f.client, clientDNI)
	require.NoError(t, err)
	require.Len(t, routines, 1)
	require.Equal(t, r1.ID, routines[0].ID)

	routines, err = f.plans.ListRoutines(ctx, f.trainer, p.ID, false)
	require.NoError(t, err)
	require.Len(t, routines, 2)

	got, err := f.plans.GetPlan(ctx, f.client, p.ID)
	require.NoError(t, err)
	require.Equal(t, "P1", got.Name)

	_, err = f.plans.GetPlan(ctx, f.client, primitive.NewObjectID())
	require.ErrorIs(t, err, ErrPlanNotFound)

	_, err = f.plans.GetActivePlan(ctx, f.otherClient, clientDNI)
	require.ErrorIs(t, err, ErrClientOnly)
	_, err = f.plans.GetHistory(ctx, f.otherTrainer, clientDNI)
	require.ErrorIs(t, err, ErrClientNotManaged)
	_, err = f.plans.GetActivePlan(ctx, domain.Actor{}, clientDNI)
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

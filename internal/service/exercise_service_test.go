package service

import (
	"context"
	"testing"

	"alcyxob/fitness-coach/internal/errs"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestExerciseCatalog(t *testing.T) {
	t.Parallel()
	f := newFixture(t, PolicyParallel)
	ctx := context.Background()

	for _, name := range []string{"Bench Press", "Squat", "Deadlift", "Incline Bench Press"} {
		_, err := f.exercises.CreateExercise(ctx, f.trainer, name, "", "")
		require.NoError(t, err)
	}

	_, err := f.exercises.CreateExercise(ctx, f.client, "Curl", "", "Arms")
	require.ErrorIs(t, err, ErrTrainerOnly)
	_, err = f.exercises.CreateExercise(ctx, f.trainer, "  ", "", "")
	require.ErrorIs(t, err, errs.ErrValidation)

	all, err := f.exercises.ListExercises(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)

	got, err := f.exercises.GetExerciseByID(ctx, all[0].ID)
	require.NoError(t, err)
	require.Equal(t, all[0].Name, got.Name)
	_, err = f.exercises.GetExerciseByID(ctx, primitive.NewObjectID())
	require.ErrorIs(t, err, ErrExerciseNotFound)
}

func TestSearchExercises(t *testing.T) {
	t.Parallel()
	f := newFixture(t, PolicyParallel)
	ctx := context.Background()

	for _, name := range []string{"Bench Press", "Squat", "Deadlift", "Incline Bench Press"} {
		_, err := f.exercises.CreateExercise(ctx, f.trainer, name, "", "")
		require.NoError(t, err)
	}

	names := func(query string, limit int) []string {
		t.Helper()
		found, err := f.exercises.SearchExercises(ctx, query, limit)
		require.NoError(t, err)
		out := []string{}
		for _, e := range found {
			out = append(out, e.Name)
		}
		return out
	}

	require.Equal(t, []string{"Bench Press", "Incline Bench Press"}, names("BENCH", 0))
	require.Equal(t, []string{"Bench Press"}, names("bench", 1))
	require.Equal(t, []string{"Squat"}, names("sqat", 0))
	require.Equal(t, []string{"Deadlift"}, names("dedlift", 0))
	require.Empty(t, names("zzzzzz", 0))

	_, err := f.exercises.SearchExercises(ctx, "   ", 5)
	require.ErrorIs(t, err, errs.ErrValidation)
}

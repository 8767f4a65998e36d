package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestValidRestTime(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"1:30", "01:30", "00:00", "59:59", "2:05"} {
		require.True(t, ValidRestTime(v), v)
	}
	for _, v := range []string{"", "90", "1:3", "10:60", "60:00", "1:30:00", "ab:cd", " 1:30"} {
		require.False(t, ValidRestTime(v), v)
	}
}

func TestSession_Validate(t *testing.T) {
	t.Parallel()

	w := 80.0
	neg := -1.0
	valid := Session{ExerciseName: "Press", Sets: 3, Reps: 10, Weight: &w, RestTime: "1:30"}
	require.NoError(t, valid.Validate())

	byID := Session{ExerciseID: primitive.NewObjectID(), Sets: 1, Reps: 1, RestTime: "0:45"}
	require.NoError(t, byID.Validate())

	cases := map[string]func(s *Session){
		"no exercise":     func(s *Session) { s.ExerciseName = "" },
		"zero sets":       func(s *Session) { s.Sets = 0 },
		"negative reps":   func(s *Session) { s.Reps = -2 },
		"negative weight": func(s *Session) { s.Weight = &neg },
		"bad rest":        func(s *Session) { s.RestTime = "1:75" },
	}
	for name, mutate := range cases {
		s := valid
		mutate(&s)
		require.Error(t, s.Validate(), name)
	}
}

func TestSessionPatch_Apply(t *testing.T) {
	t.Parallel()

	w := 60.0
	base := Session{ID: primitive.NewObjectID(), ExerciseName: "Squat", Sets: 3, Reps: 8, Weight: &w, RestTime: "2:00"}

	sets := 5
	rest := "1:00"
	got := SessionPatch{Sets: &sets, RestTime: &rest}.Apply(base)
	require.Equal(t, base.ID, got.ID)
	require.Equal(t, "Squat", got.ExerciseName)
	require.Equal(t, 5, got.Sets)
	require.Equal(t, 8, got.Reps)
	require.Equal(t, "1:00", got.RestTime)
	require.Equal(t, 60.0, *got.Weight)
	require.Equal(t, 3, base.Sets)

	heavier := 70.0
	got = SessionPatch{Weight: &heavier}.Apply(base)
	require.Equal(t, 70.0, *got.Weight)
	heavier = 90
	require.Equal(t, 70.0, *got.Weight)

	got = SessionPatch{ClearWeight: true, Weight: &heavier}.Apply(base)
	require.Nil(t, got.Weight)
}

func TestDateRange_Contains(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 31, 23, 59, 59, 0, time.UTC)

	require.True(t, DateRange{}.Contains(from))
	require.True(t, DateRange{From: from, To: to}.Contains(from))
	require.True(t, DateRange{From: from, To: to}.Contains(to))
	require.False(t, DateRange{From: from}.Contains(from.Add(-time.Second)))
	require.False(t, DateRange{To: to}.Contains(to.Add(time.Second)))
}

func TestTrainingDiary_Lookups(t *testing.T) {
	t.Parallel()

	d := &TrainingDiary{
		Sessions:    []DiaryEntry{{ID: "e1", IdempotencyKey: "k1"}, {ID: "e2"}},
		Attachments: []Attachment{{ID: "a1"}},
	}
	require.Equal(t, "e1", d.EntryByKey("k1").ID)
	require.Nil(t, d.EntryByKey(""))
	require.Nil(t, d.EntryByKey("missing"))
	require.NotNil(t, d.AttachmentByID("a1"))
	require.Nil(t, d.AttachmentByID("a2"))
}

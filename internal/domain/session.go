package domain

import (
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var restTimePattern = regexp.MustCompile(`^[0-5]?\d:[0-5]\d$`)

// Session is one exercise prescription inside a Routine template.
type Session struct {
	ID           primitive.ObjectID `bson:"id" json:"id"`
	ExerciseID   primitive.ObjectID `bson:"exerciseId,omitempty" json:"exerciseId,omitempty"`
	ExerciseName string             `bson:"exerciseName" json:"exerciseName"`
	Sets         int                `bson:"sets" json:"sets"`
	Reps         int                `bson:"reps" json:"reps"`
	Weight       *float64           `bson:"weight,omitempty" json:"weight,omitempty"` // nil = unset
	RestTime     string             `bson:"restTime" json:"restTime"`                 // mm:ss
}

// Validate checks the template fields. Errors are plain; callers wrap them.
func (s *Session) Validate() error {
	if s.ExerciseName == "" && s.ExerciseID == primitive.NilObjectID {
		return fmt.Errorf("exercise is required")
	}
	if s.Sets <= 0 {
		return fmt.Errorf("sets must be a positive integer, got %d", s.Sets)
	}
	if s.Reps <= 0 {
		return fmt.Errorf("reps must be a positive integer, got %d", s.Reps)
	}
	if s.Weight != nil && *s.Weight < 0 {
		return fmt.Errorf("weight must not be negative")
	}
	if !ValidRestTime(s.RestTime) {
		return fmt.Errorf("restTime %q must match mm:ss", s.RestTime)
	}
	return nil
}

// ValidRestTime reports whether v is a mm:ss duration with seconds below 60.
func ValidRestTime(v string) bool {
	return restTimePattern.MatchString(v)
}

// SessionPatch carries the fields a trainer changes on an existing template line.
type SessionPatch struct {
	ExerciseID   *primitive.ObjectID
	ExerciseName *string
	Sets         *int
	Reps         *int
	Weight       *float64
	ClearWeight  bool
	RestTime     *string
}

// Apply returns a copy of s with the patch applied.
func (p SessionPatch) Apply(s Session) Session {
	if p.ExerciseID != nil {
		s.ExerciseID = *p.ExerciseID
	}
	if p.ExerciseName != nil {
		s.ExerciseName = *p.ExerciseName
	}
	if p.Sets != nil {
		s.Sets = *p.Sets
	}
	if p.Reps != nil {
		s.Reps = *p.Reps
	}
	if p.ClearWeight {
		s.Weight = nil
	} else if p.Weight != nil {
		w := *p.Weight
		s.Weight = &w
	}
	if p.RestTime != nil {
		s.RestTime = *p.RestTime
	}
	return s
}

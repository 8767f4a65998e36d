package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TrainingDiary is the execution log opened when a client activates a Routine.
type TrainingDiary struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ClientDNI   string              `bson:"clientDni" json:"clientDni"`
	PlanID      *primitive.ObjectID `bson:"planId,omitempty" json:"planId,omitempty"`
	RoutineID   *primitive.ObjectID `bson:"routineId,omitempty" json:"routineId,omitempty"`
	Date        time.Time           `bson:"date" json:"date"`
	Sessions    []DiaryEntry        `bson:"sessions" json:"sessions"`
	Observation string              `bson:"observation" json:"observation"`
	Attachments []Attachment        `bson:"attachments,omitempty" json:"attachments,omitempty"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// DiaryEntry is a snapshot of one performed session. It is a copy: later edits
// to the routine template never reach it.
type DiaryEntry struct {
	ID             string              `bson:"id" json:"id"`
	SessionID      *primitive.ObjectID `bson:"sessionId,omitempty" json:"sessionId,omitempty"`
	ExerciseID     primitive.ObjectID  `bson:"exerciseId,omitempty" json:"exerciseId,omitempty"`
	ExerciseName   string              `bson:"exerciseName" json:"exerciseName"`
	Sets           int                 `bson:"sets" json:"sets"`
	Reps           int                 `bson:"reps" json:"reps"`
	Weight         *float64            `bson:"weight,omitempty" json:"weight,omitempty"`
	IdempotencyKey string              `bson:"idempotencyKey,omitempty" json:"idempotencyKey,omitempty"`
	RecordedAt     time.Time           `bson:"recordedAt" json:"recordedAt"`
}

// EntryByKey returns the entry recorded under an idempotency key, or nil.
func (d *TrainingDiary) EntryByKey(key string) *DiaryEntry {
	if key == "" {
		return nil
	}
	for i := range d.Sessions {
		if d.Sessions[i].IdempotencyKey == key {
			return &d.Sessions[i]
		}
	}
	return nil
}

// AttachmentByID returns the attachment with the given id, or nil.
func (d *TrainingDiary) AttachmentByID(id string) *Attachment {
	for i := range d.Attachments {
		if d.Attachments[i].ID == id {
			return &d.Attachments[i]
		}
	}
	return nil
}

// DateRange bounds diary listings. Zero bounds are open; both ends are inclusive.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

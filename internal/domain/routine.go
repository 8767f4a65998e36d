package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Routine is a named, ordered collection of Sessions within a TrainingPlan.
//
// Active=false marks the routine retired by the trainer. Completed=true marks it
// finished by the client for the current weekly cycle. The two axes are independent.
type Routine struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID      primitive.ObjectID `bson:"planId" json:"planId"`       // Link back to the plan
	TrainerID   primitive.ObjectID `bson:"trainerId" json:"trainerId"` // Denormalized for easier query/auth
	ClientDNI   string             `bson:"clientDni" json:"clientDni"` // Denormalized
	Name        string             `bson:"name" json:"name"`           // e.g., "Day 1: Upper Body"
	Sessions    []Session          `bson:"sessions" json:"sessions"`
	Active      bool               `bson:"active" json:"active"`
	Completed   bool               `bson:"completed" json:"completed"`
	CompletedAt *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`

	// InProgress is true between activation and completion.
	InProgress     bool                `bson:"inProgress" json:"inProgress"`
	CurrentDiaryID *primitive.ObjectID `bson:"currentDiaryId,omitempty" json:"currentDiaryId,omitempty"`

	Version      int64     `bson:"version" json:"version"`
	CreationDate time.Time `bson:"creationDate" json:"creationDate"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// SessionByID returns the template line with the given id, or nil.
func (r *Routine) SessionByID(id primitive.ObjectID) *Session {
	for i := range r.Sessions {
		if r.Sessions[i].ID == id {
			return &r.Sessions[i]
		}
	}
	return nil
}

// CompletedInCycle reports whether the routine was completed within the cycle containing now.
func (r *Routine) CompletedInCycle(now time.Time) bool {
	if !r.Completed {
		return false
	}
	if r.CompletedAt == nil {
		return true
	}
	return SameCycle(*r.CompletedAt, now)
}

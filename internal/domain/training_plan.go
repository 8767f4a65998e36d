// internal/domain/training_plan.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TrainingPlan represents the program a trainer assigns to a client.
// At most one plan per ClientDNI has Active=true.
type TrainingPlan struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrainerID   primitive.ObjectID `bson:"trainerId" json:"trainerId"` // Who created the plan
	ClientDNI   string             `bson:"clientDni" json:"clientDni"` // Who the plan is for
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Active      bool               `bson:"isActive" json:"active"`
	// CycleSignaledFor is the CycleKey of the last cycle CycleComplete was
	// emitted for. Empty until the first one.
	CycleSignaledFor string    `bson:"cycleSignaledFor,omitempty" json:"cycleSignaledFor,omitempty"`
	Version          int64     `bson:"version" json:"version"`
	CreatedAt        time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time `bson:"updatedAt" json:"updatedAt"`
}

package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SignalKind names the outcome of completing a routine.
type SignalKind string

const (
	SignalRoutineComplete SignalKind = "RoutineComplete"
	SignalCycleComplete   SignalKind = "CycleComplete"
)

// Signal is emitted to subscribers of a client's execution state.
type Signal struct {
	Kind      SignalKind         `json:"kind"`
	ClientDNI string             `json:"clientDni"`
	PlanID    primitive.ObjectID `json:"planId"`
	RoutineID primitive.ObjectID `json:"routineId"`
	At        time.Time          `json:"at"`
}

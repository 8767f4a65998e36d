package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles
const (
	RoleTrainer Role = "trainer"
	RoleClient  Role = "client"
)

// User represents a user in the system (either a Trainer or a Client).
// Clients are addressed across the API by their DNI.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"` // Should be unique
	DNI          string             `bson:"dni" json:"dni"`     // National identity number, unique
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`

	// --- Client-specific ---
	// The Trainer managing this Client, if any.
	TrainerID *primitive.ObjectID `bson:"trainerId,omitempty" json:"trainerId,omitempty"`
}

func (u *User) IsTrainer() bool {
	return u.Role == RoleTrainer
}

func (u *User) IsClient() bool {
	return u.Role == RoleClient
}

// Actor is the authenticated caller of a service operation. It is built from the
// capability token once per request and passed explicitly into every call.
type Actor struct {
	UserID primitive.ObjectID
	DNI    string
	Role   Role
}

func (a Actor) IsTrainer() bool { return a.Role == RoleTrainer }

func (a Actor) IsClient() bool { return a.Role == RoleClient }

package service

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/errs"
	"alcyxob/fitness-coach/internal/repository"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// access answers "may this actor touch that client's data". Trainer-owned
// entities (plans, routines) are written by trainers; diaries are written by
// the client they belong to. Both may read.
type access struct {
	users repository.UserRepository
}

func isNotFound(err error) bool { return errors.Is(err, errs.ErrNotFound) }

func authenticated(actor domain.Actor) error {
	if actor.UserID == primitive.NilObjectID || actor.Role == "" {
		return ErrNotAuthenticated
	}
	return nil
}

// client loads a client user by DNI.
func (a access) client(ctx context.Context, clientDNI string) (*domain.User, error) {
	if clientDNI == "" {
		return nil, validationError("clientDni is required")
	}
	user, err := a.users.GetByDNI(ctx, clientDNI)
	if err != nil {
		return nil, notFoundAs(err, ErrClientNotFound)
	}
	if !user.IsClient() {
		return nil, ErrClientNotFound
	}
	return user, nil
}

// trainerFor checks that a trainer actor may manage the client. A client with
// no trainer yet is claimable by any trainer.
func (a access) trainerFor(ctx context.Context, actor domain.Actor, clientDNI string) (*domain.User, error) {
	if err := authenticated(actor); err != nil {
		return nil, err
	}
	if !actor.IsTrainer() {
		return nil, ErrTrainerOnly
	}
	client, err := a.client(ctx, clientDNI)
	if err != nil {
		return nil, err
	}
	if client.TrainerID != nil && *client.TrainerID != actor.UserID {
		return nil, ErrClientNotManaged
	}
	return client, nil
}

// ownerClient checks that the actor is the client identified by clientDNI.
func (a access) ownerClient(actor domain.Actor, clientDNI string) error {
	if err := authenticated(actor); err != nil {
		return err
	}
	if !actor.IsClient() || actor.DNI != clientDNI {
		return ErrClientOnly
	}
	return nil
}

// reader checks read access: the client themself or a trainer managing them.
func (a access) reader(ctx context.Context, actor domain.Actor, clientDNI string) error {
	if err := authenticated(actor); err != nil {
		return err
	}
	if actor.IsClient() {
		if actor.DNI != clientDNI {
			return ErrClientOnly
		}
		return nil
	}
	_, err := a.trainerFor(ctx, actor, clientDNI)
	return err
}

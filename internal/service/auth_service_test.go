package service

import (
	"context"
	"testing"
	"time"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/errs"
	"alcyxob/fitness-coach/internal/repository/memory"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuth(t *testing.T) (*authService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewAuthService(store.Users, "test-secret", time.Hour, zap.NewNop()).(*authService), store
}

func TestNewAuthService_RequiresSecret(t *testing.T) {
	t.Parallel()
	require.Panics(t, func() {
		NewAuthService(memory.NewStore().Users, "", time.Hour, zap.NewNop())
	})
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()
	s, _ := newAuth(t)
	ctx := context.Background()

	user, err := s.Register(ctx, "Ana", " Ana@Gym.io ", "C-1", "s3cret", domain.RoleClient)
	require.NoError(t, err)
	require.Equal(t, "ana@gym.io", user.Email)
	require.Empty(t, user.PasswordHash)

	_, err = s.Register(ctx, "Ana", "ana@gym.io", "C-2", "x", domain.RoleClient)
	require.ErrorIs(t, err, ErrUserAlreadyExists)
	_, err = s.Register(ctx, "Ana", "other@gym.io", "C-1", "x", domain.RoleClient)
	require.ErrorIs(t, err, errs.ErrConflict)
	_, err = s.Register(ctx, "Ana", "x@gym.io", "C-3", "x", domain.Role("admin"))
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = s.Register(ctx, "", "x@gym.io", "C-3", "x", domain.RoleClient)
	require.ErrorIs(t, err, errs.ErrValidation)

	_, _, err = s.Login(ctx, "ana@gym.io", "wrong")
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	_, _, err = s.Login(ctx, "nobody@gym.io", "s3cret")
	require.ErrorIs(t, err, ErrAuthenticationFailed)

	token, logged, err := s.Login(ctx, "ANA@gym.io", "s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, user.ID, logged.ID)

	actor, err := s.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, domain.Actor{UserID: user.ID, DNI: "C-1", Role: domain.RoleClient}, actor)

	me, err := s.Me(ctx, actor)
	require.NoError(t, err)
	require.Equal(t, "Ana", me.Name)
	require.Empty(t, me.PasswordHash)
}

func TestParseToken_Rejects(t *testing.T) {
	t.Parallel()
	s, _ := newAuth(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "Coach", "coach@gym.io", "T-1", "pw", domain.RoleTrainer)
	require.NoError(t, err)

	_, err = s.ParseToken("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	other := NewAuthService(s.userRepo, "another-secret", time.Hour, zap.NewNop())
	foreign, _, err := other.Login(ctx, "coach@gym.io", "pw")
	require.NoError(t, err)
	_, err = s.ParseToken(foreign)
	require.ErrorIs(t, err, ErrInvalidToken)

	s.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := s.Login(ctx, "coach@gym.io", "pw")
	require.NoError(t, err)
	_, err = s.ParseToken(expired)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestLinkClient(t *testing.T) {
	t.Parallel()
	f := newFixture(t, PolicyParallel)
	s := NewAuthService(f.store.Users, "test-secret", time.Hour, zap.NewNop())
	ctx := context.Background()

	linked, err := s.LinkClient(ctx, f.otherTrainer, otherClientDNI)
	require.NoError(t, err)
	require.Equal(t, f.otherTrainer.UserID, *linked.TrainerID)

	// Linking again is a no-op for the same trainer.
	_, err = s.LinkClient(ctx, f.otherTrainer, otherClientDNI)
	require.NoError(t, err)

	_, err = s.LinkClient(ctx, f.trainer, otherClientDNI)
	require.ErrorIs(t, err, ErrClientNotManaged)
	_, err = s.LinkClient(ctx, f.client, otherClientDNI)
	require.ErrorIs(t, err, ErrTrainerOnly)

	require.NoError(t, s.CanRead(ctx, f.otherTrainer, otherClientDNI))
	require.NoError(t, s.CanRead(ctx, f.otherClient, otherClientDNI))
	require.ErrorIs(t, s.CanRead(ctx, f.client, otherClientDNI), errs.ErrForbidden)
}

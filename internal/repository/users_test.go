package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/astrogeo/backend/internal/errs"
	"github.com/astrogeo/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create(t *testing.T) {
	f := newFixture(t)

	u, err := f.repos.User.Create(f.ctx, "alice", "alice@example.com", credential(t), ptr("Alice A."))
	require.NoError(t, err)

	assert.NotZero(t, u.ID)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsAdmin)
	assert.Nil(t, u.UpdatedAt)
	assert.Nil(t, u.LastLogin)
	assert.True(t, u.CreatedAt.Equal(f.clock.Now()))

	stored, err := f.repos.User.GetByID(f.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Username)
	require.NotNil(t, stored.FullName)
	assert.Equal(t, "Alice A.", *stored.FullName)
	assert.True(t, stored.IsActive)
}

func TestUserRepository_DuplicateUsernameAndEmail(t *testing.T) {
	f := newFixture(t)
	f.user(t, "alice")

	_, err := f.repos.User.Create(f.ctx, "alice", "other@example.com", credential(t), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrDuplicateKey))
	var appErr *errs.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "username", appErr.Field)

	_, err = f.repos.User.Create(f.ctx, "alice2", "alice@example.com", credential(t), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrDuplicateKey))
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "email", appErr.Field)
}

func TestUserRepository_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.repos.User.Create(f.ctx, "", "a@example.com", credential(t), nil)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = f.repos.User.Create(f.ctx, "bob", "not-an-email", credential(t), nil)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = f.repos.User.Create(f.ctx, "bob", "bob@example.com", "plaintext", nil)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	var count int64
	require.NoError(t, f.db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUserRepository_Lookups(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	got, err := f.repos.User.FindByUsername(f.ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alice.ID, got.ID)

	got, err = f.repos.User.FindByEmail(f.ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alice.ID, got.ID)

	got, err = f.repos.User.FindByUsername(f.ctx, "nobody")
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = f.repos.User.GetByID(f.ctx, 9999)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepository_UpdateAlwaysAdvancesUpdatedAt(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")

	f.clock.Advance(time.Minute)
	first, err := f.repos.User.Update(f.ctx, u.ID, models.UserUpdate{})
	require.NoError(t, err)
	require.NotNil(t, first.UpdatedAt)
	assert.True(t, first.UpdatedAt.Equal(f.clock.Now()))
	assert.Equal(t, "alice", first.Username)

	// Same visible values, later clock.
	f.clock.Advance(time.Minute)
	second, err := f.repos.User.Update(f.ctx, u.ID, models.UserUpdate{Username: ptr("alice")})
	require.NoError(t, err)
	require.NotNil(t, second.UpdatedAt)
	assert.True(t, second.UpdatedAt.After(*first.UpdatedAt))

	// Frozen clock: never moves backwards.
	third, err := f.repos.User.Update(f.ctx, u.ID, models.UserUpdate{FullName: ptr("Alice")})
	require.NoError(t, err)
	assert.False(t, third.UpdatedAt.Before(*second.UpdatedAt))
	require.NotNil(t, third.FullName)
	assert.Equal(t, "Alice", *third.FullName)
}

func TestUserRepository_UpdateConflictsAndMissing(t *testing.T) {
	f := newFixture(t)
	f.user(t, "alice")
	bob := f.user(t, "bob")

	_, err := f.repos.User.Update(f.ctx, bob.ID, models.UserUpdate{Username: ptr("alice")})
	assert.ErrorIs(t, err, errs.ErrDuplicateKey)

	_, err = f.repos.User.Update(f.ctx, 9999, models.UserUpdate{FullName: ptr("x")})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.repos.User.Update(f.ctx, bob.ID, models.UserUpdate{HashedPassword: ptr("plaintext")})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestUserRepository_TouchLastLogin(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")

	at := time.Date(2025, 1, 20, 8, 30, 0, 0, time.UTC)
	f.clock.Advance(time.Hour)
	require.NoError(t, f.repos.User.TouchLastLogin(f.ctx, u.ID, at))

	got, err := f.repos.User.GetByID(f.ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.True(t, got.LastLogin.Equal(at))
	require.NotNil(t, got.UpdatedAt)
	assert.True(t, got.UpdatedAt.Equal(f.clock.Now()))

	assert.ErrorIs(t, f.repos.User.TouchLastLogin(f.ctx, 9999, at), errs.ErrNotFound)
}

func TestUserRepository_DeactivateAndListActive(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")

	deactivated, err := f.repos.User.Deactivate(f.ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)
	assert.NotNil(t, deactivated.UpdatedAt)

	active, err := f.repos.User.ListActive(f.ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, alice.ID, active[0].ID)
	assert.Equal(t, carol.ID, active[1].ID)

	// The row itself is kept.
	_, err = f.repos.User.GetByID(f.ctx, bob.ID)
	assert.NoError(t, err)
}

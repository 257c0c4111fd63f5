//go:build integration

package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/razikuljoni/crud-express/internal/domain"
	"github.com/razikuljoni/crud-express/pkg/database"
)

func setupRepository(t *testing.T) *UserRepository {
	t.Helper()
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := database.DefaultMongoConfig()
	cfg.URI = uri
	cfg.Database = "crud_express_test"
	conn := database.NewMongoConnector(cfg, nil)
	t.Cleanup(func() { _ = conn.Close(context.Background()) })

	db, err := conn.Connect(ctx)
	require.NoError(t, err)

	repo := NewUserRepository(db)
	require.NoError(t, repo.EnsureIndexes(ctx))
	return repo
}

func TestUserRepository_Integration(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	alice := sampleUser()
	alice.ID = ""
	require.NoError(t, repo.Create(ctx, alice))
	require.Len(t, alice.ID, 24)

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
	assert.Nil(t, got.LastLogin)

	got, err = repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Down the rabbit hole", *got.Intro)

	t.Run("duplicate username", func(t *testing.T) {
		dup := sampleUser()
		dup.ID = ""
		dup.Email = "other@example.com"
		assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrDuplicateUsername)
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup := sampleUser()
		dup.ID = ""
		dup.Username = "alice2"
		assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrDuplicateEmail)
	})

	t.Run("update", func(t *testing.T) {
		updated, err := repo.Update(ctx, alice.ID, domain.UserUpdate{FirstName: ptr("Alicia")})
		require.NoError(t, err)
		assert.Equal(t, "Alicia", updated.FirstName)
		assert.Equal(t, "alice", updated.Username)
	})

	t.Run("last login", func(t *testing.T) {
		at := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, repo.UpdateLastLogin(ctx, alice.ID, at))
		got, err := repo.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastLogin)
		assert.True(t, at.Equal(*got.LastLogin))
	})

	t.Run("list", func(t *testing.T) {
		bob := sampleUser()
		bob.ID = ""
		bob.Username = "bob"
		bob.Email = "bob@example.com"
		bob.RoleID = 1
		bob.RegisteredAt = alice.RegisteredAt.Add(time.Hour)
		require.NoError(t, repo.Create(ctx, bob))

		users, total, err := repo.List(ctx, domain.UserFilter{Limit: 10})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		require.Len(t, users, 2)
		assert.Equal(t, "bob", users[0].Username)

		role := 1
		users, total, err = repo.List(ctx, domain.UserFilter{RoleID: &role, Limit: 10})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		assert.Equal(t, "bob", users[0].Username)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, alice.ID))
		_, err := repo.GetByID(ctx, alice.ID)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, alice.ID), domain.ErrUserNotFound)
	})
}

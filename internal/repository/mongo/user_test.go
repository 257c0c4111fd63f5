package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/razikuljoni/crud-express/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func sampleUser() *domain.User {
	return &domain.User{
		ID:           "65f1c0a2b4e5d6f7a8b9c0d1",
		RoleID:       2,
		FirstName:    "Alice",
		LastName:     "Liddell",
		Username:     "alice",
		Mobile:       "+8801712345678",
		Email:        "alice@example.com",
		PasswordHash: "$2a$04$hash",
		RegisteredAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Intro:        ptr("Down the rabbit hole"),
	}
}

func TestUserDocument_StoredFieldNames(t *testing.T) {
	doc, err := toDocument(sampleUser())
	require.NoError(t, err)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	for _, key := range []string{"_id", "roleId", "firstName", "middleName", "lastName", "username",
		"mobile", "email", "passwordHash", "registeredAt", "lastLogin", "intro", "profile"} {
		assert.Contains(t, m, key)
	}
	assert.Nil(t, m["lastLogin"])
	assert.IsType(t, bson.ObjectID{}, m["_id"])

	var decoded userDocument
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	assert.Equal(t, sampleUser(), decoded.toDomain())
}

func TestToDocument_InvalidID(t *testing.T) {
	u := sampleUser()
	u.ID = "not-an-object-id"
	_, err := toDocument(u)
	assert.Error(t, err)
}

func TestSetDocument(t *testing.T) {
	set := setDocument(domain.UserUpdate{
		RoleID:   ptr(3),
		Username: ptr("alice_l"),
		Profile:  ptr("Curiouser"),
	})
	assert.Equal(t, bson.D{
		{Key: "roleId", Value: 3},
		{Key: "username", Value: "alice_l"},
		{Key: "profile", Value: "Curiouser"},
	}, set)
	assert.Empty(t, setDocument(domain.UserUpdate{}))
}

func TestListFilter(t *testing.T) {
	assert.Equal(t, bson.D{}, listFilter(domain.UserFilter{Limit: 10}))
	assert.Equal(t, bson.D{{Key: "roleId", Value: 2}}, listFilter(domain.UserFilter{RoleID: ptr(2), Limit: 10}))
}

func TestDuplicateError(t *testing.T) {
	dup := func(index string) error {
		return mongo.WriteException{WriteErrors: []mongo.WriteError{{
			Code:    11000,
			Message: "E11000 duplicate key error collection: crud-express.users index: " + index + " dup key: { x: 1 }",
		}}}
	}

	assert.ErrorIs(t, duplicateError(dup(usernameIndex)), domain.ErrDuplicateUsername)
	assert.ErrorIs(t, duplicateError(dup(emailIndex)), domain.ErrDuplicateEmail)
	assert.NoError(t, duplicateError(dup("_id_")))
	assert.NoError(t, duplicateError(errors.New("server selection timeout")))

	cmdErr := mongo.CommandError{Code: 11000, Message: "E11000 duplicate key error index: " + emailIndex}
	assert.ErrorIs(t, duplicateError(cmdErr), domain.ErrDuplicateEmail)
}

func TestIndexModels(t *testing.T) {
	models := indexModels()
	require.Len(t, models, 5)
	assert.Equal(t, bson.D{{Key: "username", Value: 1}}, models[0].Keys)
	assert.Equal(t, bson.D{{Key: "email", Value: 1}}, models[1].Keys)
}

func TestUserRepository_InvalidIDsMatchNothing(t *testing.T) {
	repo := &UserRepository{}
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "xyz")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = repo.Update(ctx, "xyz", domain.UserUpdate{FirstName: ptr("Bob")})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "xyz"), domain.ErrUserNotFound)
	assert.ErrorIs(t, repo.UpdateLastLogin(ctx, "xyz", time.Now()), domain.ErrUserNotFound)
}

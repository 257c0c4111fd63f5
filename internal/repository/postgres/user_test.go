package postgres

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razikuljoni/crud-express/internal/domain"
	"github.com/razikuljoni/crud-express/pkg/database"
)

func newUserTestFixture(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewUserRepository(mock), mock
}

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

func userRows(users ...*domain.User) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"id", "role_id", "first_name", "middle_name", "last_name", "username", "mobile", "email",
		"password_hash", "registered_at", "last_login", "intro", "profile",
	})
	for _, u := range users {
		rows.AddRow(u.ID, u.RoleID, u.FirstName, u.MiddleName, u.LastName, u.Username, u.Mobile, u.Email,
			u.PasswordHash, u.RegisteredAt, u.LastLogin, u.Intro, u.Profile)
	}
	return rows
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraint}
}

func TestUserRepository_Create(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	u := sampleUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(u.ID, u.RoleID, u.FirstName, u.MiddleName, u.LastName, u.Username, u.Mobile, u.Email,
			u.PasswordHash, u.RegisteredAt, u.LastLogin, u.Intro, u.Profile).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_AssignsID(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	u := sampleUser()
	u.ID = ""

	mock.ExpectExec("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), u))
	assert.Regexp(t, `^[0-9a-f]{24}$`, u.ID)
}

func TestUserRepository_Create_UniqueViolation(t *testing.T) {
	tests := []struct {
		constraint string
		want       error
	}{
		{usernameConstraint, domain.ErrDuplicateUsername},
		{emailConstraint, domain.ErrDuplicateEmail},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			repo, mock := newUserTestFixture(t)
			mock.ExpectExec("INSERT INTO users").
				WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
					pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
					pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
				WillReturnError(uniqueViolation(tt.constraint))

			err := repo.Create(context.Background(), sampleUser())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUserRepository_Create_OtherError(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	mock.ExpectExec("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset by peer"))

	err := repo.Create(context.Background(), sampleUser())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrDuplicateUsername)
	assert.Contains(t, err.Error(), "insert user")
}

func TestUserRepository_Getters(t *testing.T) {
	u := sampleUser()
	tests := []struct {
		name   string
		column string
		arg    string
		call   func(*UserRepository) (*domain.User, error)
	}{
		{"by id", "id", u.ID, func(r *UserRepository) (*domain.User, error) { return r.GetByID(context.Background(), u.ID) }},
		{"by username", "username", "alice", func(r *UserRepository) (*domain.User, error) {
			return r.GetByUsername(context.Background(), "alice")
		}},
		{"by email", "email", "alice@example.com", func(r *UserRepository) (*domain.User, error) {
			return r.GetByEmail(context.Background(), "alice@example.com")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newUserTestFixture(t)
			mock.ExpectQuery(`FROM users WHERE ` + tt.column + ` = \$1`).
				WithArgs(tt.arg).
				WillReturnRows(userRows(u))

			got, err := tt.call(repo)
			require.NoError(t, err)
			assert.Equal(t, u, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	mock.ExpectQuery("FROM users WHERE id").
		WithArgs("65f1c0a2b4e5d6f7a8b9c0ff").
		WillReturnRows(userRows())

	_, err := repo.GetByID(context.Background(), "65f1c0a2b4e5d6f7a8b9c0ff")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_Update(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	updated := sampleUser()
	updated.Email = "alice@wonderland.example"
	updated.RoleID = 3

	mock.ExpectQuery(`UPDATE users SET role_id = \$1, email = \$2 WHERE id = \$3 RETURNING`).
		WithArgs(3, "alice@wonderland.example", updated.ID).
		WillReturnRows(userRows(updated))

	got, err := repo.Update(context.Background(), updated.ID, domain.UserUpdate{
		RoleID: ptr(3),
		Email:  ptr("alice@wonderland.example"),
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@wonderland.example", got.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Update_Empty(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	u := sampleUser()
	mock.ExpectQuery("FROM users WHERE id").WithArgs(u.ID).WillReturnRows(userRows(u))

	got, err := repo.Update(context.Background(), u.ID, domain.UserUpdate{})
	require.NoError(t, err)
	assert.Equal(t, u, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Update_Errors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		repo, mock := newUserTestFixture(t)
		mock.ExpectQuery("UPDATE users").
			WithArgs("Bob", "65f1c0a2b4e5d6f7a8b9c0ff").
			WillReturnRows(userRows())

		_, err := repo.Update(context.Background(), "65f1c0a2b4e5d6f7a8b9c0ff", domain.UserUpdate{FirstName: ptr("Bob")})
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("duplicate username", func(t *testing.T) {
		repo, mock := newUserTestFixture(t)
		mock.ExpectQuery("UPDATE users").
			WithArgs("bob", "65f1c0a2b4e5d6f7a8b9c0d1").
			WillReturnError(uniqueViolation(usernameConstraint))

		_, err := repo.Update(context.Background(), "65f1c0a2b4e5d6f7a8b9c0d1", domain.UserUpdate{Username: ptr("bob")})
		assert.ErrorIs(t, err, domain.ErrDuplicateUsername)
	})
}

func TestUserRepository_UpdateLastLogin(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	at := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE users SET last_login").
		WithArgs(at, "65f1c0a2b4e5d6f7a8b9c0d1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.UpdateLastLogin(context.Background(), "65f1c0a2b4e5d6f7a8b9c0d1", at))

	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("$2a$12$new", "65f1c0a2b4e5d6f7a8b9c0d1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err := repo.UpdatePasswordHash(context.Background(), "65f1c0a2b4e5d6f7a8b9c0d1", "$2a$12$new")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Delete(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	mock.ExpectExec("DELETE FROM users").
		WithArgs("65f1c0a2b4e5d6f7a8b9c0d1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.Delete(context.Background(), "65f1c0a2b4e5d6f7a8b9c0d1"))

	mock.ExpectExec("DELETE FROM users").
		WithArgs("65f1c0a2b4e5d6f7a8b9c0d1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "65f1c0a2b4e5d6f7a8b9c0d1"), domain.ErrUserNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_List(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	a, b := sampleUser(), sampleUser()
	b.ID, b.Username, b.Email = "65f1c0a2b4e5d6f7a8b9c0d2", "bob", "bob@example.com"

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE role_id = \$1`).
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectQuery(`WHERE role_id = \$1 ORDER BY registered_at DESC, id DESC LIMIT \$2 OFFSET \$3`).
		WithArgs(2, 10, 10).
		WillReturnRows(userRows(a, b))

	users, total, err := repo.List(context.Background(), domain.UserFilter{RoleID: ptr(2), Offset: 10, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, users, 2)
	assert.Equal(t, "bob", users[1].Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_List_NoFilter(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users$`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(`LIMIT \$1 OFFSET \$2`).
		WithArgs(10, 0).
		WillReturnRows(userRows())

	users, total, err := repo.List(context.Background(), domain.UserFilter{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, users)
	assert.NotNil(t, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrations_Embedded(t *testing.T) {
	content, err := fsReadFile("0001_create_users.up.sql")
	require.NoError(t, err)
	assert.Contains(t, content, "CONSTRAINT "+usernameConstraint+" UNIQUE (username)")
	assert.Contains(t, content, "CONSTRAINT "+emailConstraint+" UNIQUE (email)")
}

func fsReadFile(name string) (string, error) {
	b, err := fs.ReadFile(Migrations(), name)
	return string(b), err
}

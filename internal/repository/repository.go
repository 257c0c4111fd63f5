package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/razikuljoni/crud-express/internal/domain"
)

// UserRepository is the user directory. Implementations enforce username
// and email uniqueness with unique indexes and report violations as
// domain.ErrDuplicateUsername or domain.ErrDuplicateEmail. Missing records
// are reported as domain.ErrUserNotFound.
type UserRepository interface {
	// Create stores user, assigning a new ID when user.ID is empty.
	Create(ctx context.Context, user *domain.User) error

	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update applies upd to the user with id and returns the stored result.
	// An empty update returns the current record.
	Update(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error)

	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	Delete(ctx context.Context, id string) error

	// List returns one page of users and the total number matching filter.
	List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int64, error)
}

// NewID returns a 24 character hex identifier. Both directories use the
// same format so ids are portable between them.
func NewID() string {
	return bson.NewObjectID().Hex()
}

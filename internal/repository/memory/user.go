package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/razikuljoni/crud-express/internal/domain"
	"github.com/razikuljoni/crud-express/internal/repository"
)

// UserRepository is an in-memory user directory. Username and email
// uniqueness is enforced under the write lock, matching the unique indexes
// of the persistent directories. Thread-safe via sync.RWMutex.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

var _ repository.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates an empty in-memory directory.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]domain.User)}
}

// Create stores a copy of u.
func (r *UserRepository) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.ID == "" {
		u.ID = repository.NewID()
	}
	if err := r.checkUnique("", u.Username, u.Email); err != nil {
		return err
	}
	r.users[u.ID] = *u
	return nil
}

func (r *UserRepository) checkUnique(selfID, username, email string) error {
	for id, existing := range r.users {
		if id == selfID {
			continue
		}
		if existing.Username == username {
			return domain.ErrDuplicateUsername
		}
		if existing.Email == email {
			return domain.ErrDuplicateEmail
		}
	}
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *UserRepository) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(&u) {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// Update applies upd and returns a copy of the result.
func (r *UserRepository) Update(_ context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	upd.Apply(&u)
	if err := r.checkUnique(id, u.Username, u.Email); err != nil {
		return nil, err
	}
	r.users[id] = u
	return &u, nil
}

func (r *UserRepository) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return r.modify(id, func(u *domain.User) {
		at := at.UTC()
		u.LastLogin = &at
	})
}

func (r *UserRepository) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return r.modify(id, func(u *domain.User) { u.PasswordHash = hash })
}

func (r *UserRepository) modify(id string, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(&u)
	r.users[id] = u
	return nil
}

func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

// List returns a page of users, newest registration first.
func (r *UserRepository) List(_ context.Context, filter domain.UserFilter) ([]domain.User, int64, error) {
	r.mu.RLock()
	matched := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		if filter.RoleID != nil && u.RoleID != *filter.RoleID {
			continue
		}
		matched = append(matched, u)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].RegisteredAt.Equal(matched[j].RegisteredAt) {
			return matched[i].RegisteredAt.After(matched[j].RegisteredAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := min(max(filter.Offset, 0), len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(matched))
	}
	return matched[start:end], total, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/razikuljoni/crud-express/internal/domain"
	"github.com/razikuljoni/crud-express/internal/repository"
	"github.com/razikuljoni/crud-express/pkg/database"
)

const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

const userColumns = `id, role_id, first_name, middle_name, last_name, username, mobile, email,
		password_hash, registered_at, last_login, intro, profile`

// UserRepository is the PostgreSQL user directory.
type UserRepository struct {
	db database.DBTX
}

var _ repository.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a PostgreSQL-backed user directory.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	if u.ID == "" {
		u.ID = repository.NewID()
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "InsertUser", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		u.ID,
		u.RoleID,
		u.FirstName,
		u.MiddleName,
		u.LastName,
		u.Username,
		u.Mobile,
		u.Email,
		u.PasswordHash,
		u.RegisteredAt,
		u.LastLogin,
		u.Intro,
		u.Profile,
	)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID returns the user with id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getBy(ctx, "GetUserByID", "id", id)
}

// GetByUsername returns the user with username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getBy(ctx, "GetUserByUsername", "username", username)
}

// GetByEmail returns the user with email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, "GetUserByEmail", "email", email)
}

func (r *UserRepository) getBy(ctx context.Context, operation, column, value string) (_ *domain.User, err error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, operation, query)
	defer func() { end(err) }()

	u, err := scanUser(r.db.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	return u, nil
}

// Update applies the set fields of upd and returns the updated row.
func (r *UserRepository) Update(ctx context.Context, id string, upd domain.UserUpdate) (_ *domain.User, err error) {
	if upd.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	sets, args := updateAssignments(upd)
	args = append(args, id)
	query := `UPDATE users SET ` + strings.Join(sets, ", ") +
		fmt.Sprintf(` WHERE id = $%d RETURNING `, len(args)) + userColumns

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "UpdateUser", query)
	defer func() { end(err) }()

	u, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		if dup := duplicateError(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func updateAssignments(upd domain.UserUpdate) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.RoleID != nil {
		add("role_id", *upd.RoleID)
	}
	if upd.FirstName != nil {
		add("first_name", *upd.FirstName)
	}
	if upd.MiddleName != nil {
		add("middle_name", *upd.MiddleName)
	}
	if upd.LastName != nil {
		add("last_name", *upd.LastName)
	}
	if upd.Username != nil {
		add("username", *upd.Username)
	}
	if upd.Mobile != nil {
		add("mobile", *upd.Mobile)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Intro != nil {
		add("intro", *upd.Intro)
	}
	if upd.Profile != nil {
		add("profile", *upd.Profile)
	}
	return sets, args
}

// UpdateLastLogin records a successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, "UpdateLastLogin", `UPDATE users SET last_login = $1 WHERE id = $2`, at, id)
}

// UpdatePasswordHash replaces the stored digest.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.execOne(ctx, "UpdatePasswordHash", `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
}

// Delete removes the user with id.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "DeleteUser", `DELETE FROM users WHERE id = $1`, id)
}

func (r *UserRepository) execOne(ctx context.Context, operation, query string, args ...any) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, operation, query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", strings.ToLower(operation), err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// List returns a page of users, newest registration first.
func (r *UserRepository) List(ctx context.Context, filter domain.UserFilter) (_ []domain.User, _ int64, err error) {
	where, args := "", []any{}
	if filter.RoleID != nil {
		where = " WHERE role_id = $1"
		args = append(args, *filter.RoleID)
	}

	countQuery := `SELECT COUNT(*) FROM users` + where
	listQuery := `SELECT ` + userColumns + ` FROM users` + where +
		fmt.Sprintf(` ORDER BY registered_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "ListUsers", listQuery)
	defer func() { end(err) }()

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.db.Query(ctx, listQuery, append(args, filter.Limit, max(filter.Offset, 0))...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, filter.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}
	return users, total, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.RoleID,
		&u.FirstName,
		&u.MiddleName,
		&u.LastName,
		&u.Username,
		&u.Mobile,
		&u.Email,
		&u.PasswordHash,
		&u.RegisteredAt,
		&u.LastLogin,
		&u.Intro,
		&u.Profile,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// duplicateError maps a unique violation on the username or email
// constraint to the matching domain error. It returns nil for anything else.
func duplicateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case usernameConstraint:
		return domain.ErrDuplicateUsername
	case emailConstraint:
		return domain.ErrDuplicateEmail
	default:
		return nil
	}
}

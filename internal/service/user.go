package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/razikuljoni/crud-express/internal/domain"
	"github.com/razikuljoni/crud-express/internal/repository"
	"github.com/razikuljoni/crud-express/pkg/middleware"
	"github.com/razikuljoni/crud-express/pkg/pagination"
)

// PasswordHasher hashes and verifies credentials. *auth.Hasher implements it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
	NeedsRehash(digest string) bool
	DummyDigest() string
}

// TokenIssuer signs session tokens. *auth.TokenService implements it.
type TokenIssuer interface {
	Issue(identity middleware.Identity) (string, error)
}

// EventPublisher publishes user domain events. *event.Producer implements it.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishUserUpdated(ctx context.Context, user *domain.User, fields []string) error
	PublishUserDeleted(ctx context.Context, userID string) error
}

// Outcome label values for the identity counters.
const (
	outcomeSuccess           = "success"
	outcomeDuplicateUsername = "duplicate_username"
	outcomeDuplicateEmail    = "duplicate_email"
	outcomeInvalid           = "invalid_credentials"
	outcomeError             = "error"
)

type serviceMetrics struct {
	registrations *prometheus.CounterVec
	logins        *prometheus.CounterVec
}

func newServiceMetrics(reg prometheus.Registerer) *serviceMetrics {
	factory := promauto.With(reg)
	return &serviceMetrics{
		registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crud_express",
			Name:      "registrations_total",
			Help:      "Registration attempts by outcome",
		}, []string{"outcome"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crud_express",
			Name:      "logins_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
	}
}

// UserService implements registration, login and account management.
type UserService struct {
	repo    repository.UserRepository
	hasher  PasswordHasher
	tokens  TokenIssuer
	events  EventPublisher
	metrics *serviceMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewUserService creates a new user service. events may be nil, in which
// case no domain events are published. reg may be nil.
func NewUserService(
	repo repository.UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	events EventPublisher,
	reg prometheus.Registerer,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		repo:    repo,
		hasher:  hasher,
		tokens:  tokens,
		events:  events,
		metrics: newServiceMetrics(reg),
		logger:  logger,
		now:     time.Now,
	}
}

// RegisterInput holds the normalized registration fields.
type RegisterInput struct {
	RoleID     int     `json:"roleId"`
	FirstName  string  `json:"firstName"`
	MiddleName *string `json:"middleName"`
	LastName   string  `json:"lastName"`
	Username   string  `json:"username"`
	Mobile     string  `json:"mobile"`
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	Intro      *string `json:"intro"`
	Profile    *string `json:"profile"`
}

// LoginInput holds the login credentials.
type LoginInput struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token string
	User  *domain.User
}

// ListInput selects a page of users.
type ListInput struct {
	Page   int  `json:"page"`
	Limit  int  `json:"limit"`
	RoleID *int `json:"roleId"`
}

// Register creates an account. Username and email are checked up front for
// a precise error; the directory's unique indexes still decide races, and
// report them with the same errors.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	user, err := s.register(ctx, in)
	s.metrics.registrations.WithLabelValues(registerOutcome(err)).Inc()
	return user, err
}

func (s *UserService) register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if err := s.ensureAvailable(ctx, "", &in.Username, &in.Email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           repository.NewID(),
		RoleID:       in.RoleID,
		FirstName:    in.FirstName,
		MiddleName:   in.MiddleName,
		LastName:     in.LastName,
		Username:     in.Username,
		Mobile:       in.Mobile,
		Email:        in.Email,
		PasswordHash: hash,
		RegisteredAt: s.now().UTC(),
		Intro:        in.Intro,
		Profile:      in.Profile,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if isDuplicate(err) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishUserRegistered(ctx, user); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish user.registered event",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// ensureAvailable reports a duplicate when username or email (if non-nil)
// already belong to a user other than selfID.
func (s *UserService) ensureAvailable(ctx context.Context, selfID string, username, email *string) error {
	if username != nil {
		existing, err := s.repo.GetByUsername(ctx, *username)
		switch {
		case err == nil && existing.ID != selfID:
			return domain.ErrDuplicateUsername
		case err != nil && !errors.Is(err, domain.ErrUserNotFound):
			return fmt.Errorf("check username: %w", err)
		}
	}
	if email != nil {
		existing, err := s.repo.GetByEmail(ctx, *email)
		switch {
		case err == nil && existing.ID != selfID:
			return domain.ErrDuplicateEmail
		case err != nil && !errors.Is(err, domain.ErrUserNotFound):
			return fmt.Errorf("check email: %w", err)
		}
	}
	return nil
}

// Login authenticates by username or email. Unknown identifiers and wrong
// passwords both yield domain.ErrInvalidCredentials, and both cost one
// hash verification.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	res, err := s.login(ctx, in)
	outcome := outcomeSuccess
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		outcome = outcomeInvalid
	case err != nil:
		outcome = outcomeError
	}
	s.metrics.logins.WithLabelValues(outcome).Inc()
	return res, err
}

func (s *UserService) login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, err := s.findByIdentifier(ctx, in.UsernameOrEmail)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.hasher.Verify(in.Password, s.hasher.DummyDigest())
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		s.logger.InfoContext(ctx, "login rejected", slog.String("user_id", user.ID))
		return nil, domain.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.ID, in.Password)
	}

	now := s.now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	user.LastLogin = &now

	token, err := s.tokens.Issue(middleware.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		RoleID:   user.RoleID,
	})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return &LoginResult{Token: token, User: user}, nil
}

// findByIdentifier looks the identifier up as a username first, then as an
// email.
func (s *UserService) findByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	user, err := s.repo.GetByUsername(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("get user by username: %w", err)
	}

	user, err = s.repo.GetByEmail(ctx, strings.ToLower(identifier))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return nil, err
}

// rehash upgrades a digest produced with outdated parameters. Failures are
// logged; the login still succeeds.
func (s *UserService) rehash(ctx context.Context, userID, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.repo.UpdatePasswordHash(ctx, userID, hash)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.InfoContext(ctx, "password rehashed", slog.String("user_id", userID))
}

// GetByID returns the user with id.
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Update applies upd to the user with id. A changed username or email is
// checked for availability first.
func (s *UserService) Update(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.IsEmpty() {
		return current, nil
	}

	var username, email *string
	if upd.Username != nil && *upd.Username != current.Username {
		username = upd.Username
	}
	if upd.Email != nil && *upd.Email != current.Email {
		email = upd.Email
	}
	if err := s.ensureAvailable(ctx, id, username, email); err != nil {
		return nil, err
	}

	user, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		if isDuplicate(err) || errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	fields := upd.Fields()
	if s.events != nil {
		if err := s.events.PublishUserUpdated(ctx, user, fields); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish user.updated event",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "user updated",
		slog.String("user_id", user.ID),
		slog.Any("fields", fields),
	)
	return user, nil
}

// List returns a page of users, newest registration first.
func (s *UserService) List(ctx context.Context, in ListInput) ([]domain.User, pagination.Meta, error) {
	params := pagination.New(in.Page, in.Limit)

	users, total, err := s.repo.List(ctx, domain.UserFilter{
		RoleID: in.RoleID,
		Offset: params.Offset,
		Limit:  params.Limit,
	})
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("list users: %w", err)
	}
	return users, pagination.NewMeta(int(total), params), nil
}

// Delete removes the user with id.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("delete user: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishUserDeleted(ctx, id); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish user.deleted event",
				slog.String("user_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "user deleted", slog.String("user_id", id))
	return nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, domain.ErrDuplicateUsername) || errors.Is(err, domain.ErrDuplicateEmail)
}

func registerOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, domain.ErrDuplicateUsername):
		return outcomeDuplicateUsername
	case errors.Is(err, domain.ErrDuplicateEmail):
		return outcomeDuplicateEmail
	default:
		return outcomeError
	}
}

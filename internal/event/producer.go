package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/razikuljoni/crud-express/internal/domain"
	pkgkafka "github.com/razikuljoni/crud-express/pkg/kafka"
	"github.com/razikuljoni/crud-express/pkg/logger"
)

// Kafka topic constants for user domain events.
const (
	TopicUserRegistered = "crud-express.user.registered"
	TopicUserUpdated    = "crud-express.user.updated"
	TopicUserDeleted    = "crud-express.user.deleted"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from this service.
const SourceIdentityService = "crud-express"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID        string `json:"id"`
	RoleID    int    `json:"role_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UserUpdatedData is the payload for a user.updated event. Fields lists the
// attributes the update changed.
type UserUpdatedData struct {
	ID       string   `json:"id"`
	RoleID   int      `json:"role_id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Fields   []string `json:"fields"`
}

// UserDeletedData is the payload for a user.deleted event.
type UserDeletedData struct {
	ID string `json:"id"`
}

// Publisher is the bus the producer writes to. *pkgkafka.Producer
// implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes user domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the identity service.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserRegistered, user.ID, UserRegisteredData{
		ID:        user.ID,
		RoleID:    user.RoleID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}

// PublishUserUpdated publishes a user.updated event.
func (p *Producer) PublishUserUpdated(ctx context.Context, user *domain.User, fields []string) error {
	return p.publish(ctx, TopicUserUpdated, user.ID, UserUpdatedData{
		ID:       user.ID,
		RoleID:   user.RoleID,
		Username: user.Username,
		Email:    user.Email,
		Fields:   fields,
	})
}

// PublishUserDeleted publishes a user.deleted event.
func (p *Producer) PublishUserDeleted(ctx context.Context, userID string) error {
	return p.publish(ctx, TopicUserDeleted, userID, UserDeletedData{ID: userID})
}

func (p *Producer) publish(ctx context.Context, topic, userID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, userID, AggregateTypeUser, SourceIdentityService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("user_id", userID),
	)
	return nil
}

package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razikuljoni/crud-express/internal/domain"
	pkgkafka "github.com/razikuljoni/crud-express/pkg/kafka"
	"github.com/razikuljoni/crud-express/pkg/logger"
)

type published struct {
	topic string
	event *pkgkafka.Event
}

type recordingPublisher struct {
	sent []published
	err  error
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, event *pkgkafka.Event) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, published{topic: topic, event: event})
	return nil
}

func newTestProducer() (*Producer, *recordingPublisher) {
	pub := &recordingPublisher{}
	return NewProducer(pub, slog.New(slog.NewTextHandler(io.Discard, nil))), pub
}

func testUser() *domain.User {
	return &domain.User{
		ID:        "65f1c0a2b4e5d6f7a8b9c0d1",
		RoleID:    2,
		FirstName: "Alice",
		LastName:  "Liddell",
		Username:  "alice",
		Email:     "alice@example.com",
	}
}

func TestPublishUserRegistered(t *testing.T) {
	p, pub := newTestProducer()
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")

	require.NoError(t, p.PublishUserRegistered(ctx, testUser()))
	require.Len(t, pub.sent, 1)

	sent := pub.sent[0]
	assert.Equal(t, TopicUserRegistered, sent.topic)
	assert.Equal(t, TopicUserRegistered, sent.event.EventType)
	assert.Equal(t, "65f1c0a2b4e5d6f7a8b9c0d1", sent.event.AggregateID)
	assert.Equal(t, AggregateTypeUser, sent.event.AggregateType)
	assert.Equal(t, SourceIdentityService, sent.event.Source)
	assert.Equal(t, "corr-1", sent.event.CorrelationID)

	var data UserRegisteredData
	require.NoError(t, sent.event.UnmarshalData(&data))
	assert.Equal(t, "alice", data.Username)
	assert.Equal(t, 2, data.RoleID)
	assert.NotContains(t, string(sent.event.Data), "password")
}

func TestPublishUserUpdated(t *testing.T) {
	p, pub := newTestProducer()

	require.NoError(t, p.PublishUserUpdated(context.Background(), testUser(), []string{"firstName", "email"}))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, TopicUserUpdated, pub.sent[0].topic)
	assert.Empty(t, pub.sent[0].event.CorrelationID)

	var data UserUpdatedData
	require.NoError(t, pub.sent[0].event.UnmarshalData(&data))
	assert.Equal(t, []string{"firstName", "email"}, data.Fields)
}

func TestPublishUserDeleted(t *testing.T) {
	p, pub := newTestProducer()

	require.NoError(t, p.PublishUserDeleted(context.Background(), "65f1c0a2b4e5d6f7a8b9c0d1"))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, TopicUserDeleted, pub.sent[0].topic)
	assert.JSONEq(t, `{"id":"65f1c0a2b4e5d6f7a8b9c0d1"}`, string(pub.sent[0].event.Data))
}

func TestPublish_Error(t *testing.T) {
	p, pub := newTestProducer()
	pub.err = errors.New("leader not available")

	err := p.PublishUserDeleted(context.Background(), "65f1c0a2b4e5d6f7a8b9c0d1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish crud-express.user.deleted event")
	assert.ErrorIs(t, err, pub.err)
}

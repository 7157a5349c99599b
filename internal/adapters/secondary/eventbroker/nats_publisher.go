package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jupiterclapton/cenackle-feed/internal/core/ports"
)

const (
	SubjectFollowChanged = "graph.follow.changed"
	SubjectCacheFlush    = "feed.cache.flush"
)

// msgPublisher is the part of *nats.Conn the publisher needs.
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

type NatsPublisher struct {
	nc     msgPublisher
	origin string
}

// NewNatsPublisher stamps every event with origin so the emitting replica
// can skip its own messages.
func NewNatsPublisher(nc msgPublisher, origin string) *NatsPublisher {
	return &NatsPublisher{nc: nc, origin: origin}
}

var _ ports.EventPublisher = (*NatsPublisher)(nil)

// FollowChangedEvent is the payload of graph.follow.changed.
type FollowChangedEvent struct {
	ID         string    `json:"id"`
	Origin     string    `json:"origin"`
	FollowerID int64     `json:"follower_id"`
	AuthorID   int64     `json:"author_id"`
	Following  bool      `json:"following"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CacheFlushEvent is the payload of feed.cache.flush.
type CacheFlushEvent struct {
	ID         string    `json:"id"`
	Origin     string    `json:"origin"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (p *NatsPublisher) PublishFollowChanged(ctx context.Context, followerID, authorID int64, following bool) error {
	event := FollowChangedEvent{
		ID:         uuid.NewString(),
		Origin:     p.origin,
		FollowerID: followerID,
		AuthorID:   authorID,
		Following:  following,
		OccurredAt: time.Now().UTC(),
	}
	return p.publish(ctx, SubjectFollowChanged, event.ID, event)
}

func (p *NatsPublisher) PublishCacheFlush(ctx context.Context) error {
	event := CacheFlushEvent{
		ID:         uuid.NewString(),
		Origin:     p.origin,
		OccurredAt: time.Now().UTC(),
	}
	return p.publish(ctx, SubjectCacheFlush, event.ID, event)
}

func (p *NatsPublisher) publish(ctx context.Context, subject, eventID string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling error: %w", err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	// Carries the caller's trace into the consumers.
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	slog.Debug("📢 Publishing event", "subject", subject, "event_id", eventID)

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Package events applies cache invalidations announced by other replicas.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jupiterclapton/cenackle-feed/internal/core/ports"
)

const handleTimeout = 5 * time.Second

type EventHandler struct {
	invalidator ports.CacheInvalidator
	origin      string
}

// NewEventHandler ignores events stamped with origin, the id this replica
// publishes under.
func NewEventHandler(invalidator ports.CacheInvalidator, origin string) *EventHandler {
	return &EventHandler{invalidator: invalidator, origin: origin}
}

type followChangedEvent struct {
	ID         string `json:"id"`
	Origin     string `json:"origin"`
	FollowerID int64  `json:"follower_id"`
	AuthorID   int64  `json:"author_id"`
	Following  bool   `json:"following"`
}

type cacheFlushEvent struct {
	ID     string `json:"id"`
	Origin string `json:"origin"`
}

func (h *EventHandler) HandleFollowChanged(msg *nats.Msg) {
	ctx, span := startSpan(msg, "process_follow_changed")
	defer span.End()

	var event followChangedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		span.RecordError(err)
		slog.Error("❌ Invalid event format", "subject", msg.Subject, "error", err)
		return
	}
	span.SetAttributes(
		attribute.String("event.id", event.ID),
		attribute.Int64("follow.follower_id", event.FollowerID),
	)

	if event.Origin == h.origin {
		return
	}

	slog.Debug("📨 Follow change received", "event_id", event.ID, "follower_id", event.FollowerID, "following", event.Following)

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()
	h.invalidator.InvalidateFollowFeed(ctx, event.FollowerID)
}

func (h *EventHandler) HandleCacheFlush(msg *nats.Msg) {
	ctx, span := startSpan(msg, "process_cache_flush")
	defer span.End()

	var event cacheFlushEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		span.RecordError(err)
		slog.Error("❌ Invalid event format", "subject", msg.Subject, "error", err)
		return
	}
	if event.Origin == h.origin {
		return
	}

	slog.Info("📨 Cache flush received", "event_id", event.ID, "origin", event.Origin)

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()
	h.invalidator.InvalidateAll(ctx)
}

// startSpan continues the publisher's trace from the NATS headers.
func startSpan(msg *nats.Msg, name string) (context.Context, trace.Span) {
	ctx := context.Background()
	if msg.Header != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(msg.Header))
	}
	return otel.Tracer("feed-service").Start(ctx, name, trace.WithSpanKind(trace.SpanKindConsumer))
}

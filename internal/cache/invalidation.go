package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultInvalidationChannel is the pub/sub channel shared by all replicas.
const DefaultInvalidationChannel = "ledger_cache:invalidate"

// InvalidationMessage is the payload broadcast on a manual refresh.
// An empty Kind means every dataset kind.
type InvalidationMessage struct {
	Origin string `json:"origin"`
	Kind   string `json:"kind,omitempty"`
}

// InvalidationBus fans manual refreshes out to every replica through Redis pub/sub,
// so a refresh on one process clears the in-memory caches of its peers too.
type InvalidationBus struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *slog.Logger
}

// NewInvalidationBus creates a bus publishing on channel. An empty channel uses the default.
func NewInvalidationBus(client *redis.Client, channel string, logger *slog.Logger) *InvalidationBus {
	if channel == "" {
		channel = DefaultInvalidationChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InvalidationBus{
		client:  client,
		channel: channel,
		origin:  uuid.New().String(),
		logger:  logger.With("component", "invalidation_bus"),
	}
}

// Origin returns the identifier this process stamps on its own messages.
func (b *InvalidationBus) Origin() string {
	return b.origin
}

// Publish broadcasts an invalidation for kind ("" for all).
func (b *InvalidationBus) Publish(ctx context.Context, kind string) error {
	data, err := json.Marshal(InvalidationMessage{Origin: b.origin, Kind: kind})
	if err != nil {
		return fmt.Errorf("failed to encode invalidation: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

// Listen delivers invalidations from other replicas to handle until ctx is done.
// Messages published by this process are skipped, as are undecodable payloads.
// ready, when non-nil, is closed once the subscription is confirmed.
func (b *InvalidationBus) Listen(ctx context.Context, ready chan<- struct{}, handle func(kind string)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var inv InvalidationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
				b.logger.Warn("Dropping malformed invalidation", "error", err.Error())
				continue
			}
			if inv.Origin == b.origin {
				continue
			}
			b.logger.Debug("Applying remote invalidation", "origin", inv.Origin, "kind", inv.Kind)
			handle(inv.Kind)
		}
	}
}

// Package redisbridge tells other service instances that a feed scope changed,
// so each can reload and republish its own snapshot.
package redisbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"wedding-manager/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type notification struct {
	Origin string `json:"origin"`
	Scope  string `json:"scope"`
}

type Bridge struct {
	Client  *redis.Client
	Channel string
	Logger  *logger.Logger

	origin string
	ready  chan struct{}
}

func NewBridge(client *redis.Client, channel string, log *logger.Logger) *Bridge {
	return &Bridge{
		Client:  client,
		Channel: channel,
		Logger:  log,
		origin:  uuid.NewString(),
		ready:   make(chan struct{}),
	}
}

// Notify announces that scope changed on this instance.
func (b *Bridge) Notify(ctx context.Context, scope string) error {
	payload, err := json.Marshal(notification{Origin: b.origin, Scope: scope})
	if err != nil {
		return fmt.Errorf("failed to marshal feed notification: %w", err)
	}
	if err := b.Client.Publish(ctx, b.Channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish feed notification: %w", err)
	}
	return nil
}

// Ready is closed once Run has an active subscription.
func (b *Bridge) Ready() <-chan struct{} {
	return b.ready
}

// Run subscribes to the channel and calls onChange for every scope changed by
// another instance. It blocks until ctx is done.
func (b *Bridge) Run(ctx context.Context, onChange func(scope string)) error {
	pubsub := b.Client.Subscribe(ctx, b.Channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.Channel, err)
	}
	close(b.ready)
	b.Logger.Info("REDIS", fmt.Sprintf("Subscribed to feed channel %s", b.Channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var n notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				b.Logger.Warn("REDIS", fmt.Sprintf("Ignoring malformed feed notification: %v", err))
				continue
			}
			if n.Origin == b.origin {
				continue
			}
			b.Logger.Debug("REDIS", fmt.Sprintf("Feed scope %s changed on %s", n.Scope, n.Origin))
			onChange(n.Scope)
		}
	}
}

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sb-works/collab-backend/internal/logging"
)

const roomChannelPrefix = "collab:room:" // Pub/Sub channel per project: collab:room:{project_id}

// RedisBus relays events over Redis Pub/Sub, one channel per project.
type RedisBus struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client, log: logging.With("relay")}
}

func roomChannel(projectID string) string {
	return roomChannelPrefix + projectID
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, roomChannel(ev.ProjectID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Event, error) {
	sub := b.client.PSubscribe(ctx, roomChannelPrefix+"*")
	// wait for the subscription to be confirmed so no publish is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan Event, 256)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed event")
					continue
				}
				if ev.ProjectID == "" {
					ev.ProjectID = strings.TrimPrefix(msg.Channel, roomChannelPrefix)
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

var _ Bus = (*RedisBus)(nil)

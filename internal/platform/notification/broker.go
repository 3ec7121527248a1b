package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smiledesk/dental/internal/platform/websocket"
)

// Channel is the Redis pub/sub channel deliveries travel on.
const Channel = "dental:notifications"

// Delivery addresses a websocket message to one user.
type Delivery struct {
	UserID  uuid.UUID         `json:"userId"`
	Message websocket.Message `json:"message"`
}

// Publisher hands a delivery to whatever reaches the user's sockets.
type Publisher interface {
	Publish(ctx context.Context, d Delivery) error
}

// LocalPublisher writes straight into this instance's hub.
type LocalPublisher struct {
	hub *websocket.Hub
}

func NewLocalPublisher(hub *websocket.Hub) *LocalPublisher {
	return &LocalPublisher{hub: hub}
}

func (p *LocalPublisher) Publish(_ context.Context, d Delivery) error {
	p.hub.SendToUser(d.UserID, d.Message)
	return nil
}

// RedisBroker publishes deliveries on Redis so that whichever instance holds
// the user's socket can relay it. Every instance runs Run to relay into its
// own hub.
type RedisBroker struct {
	client  *redis.Client
	hub     *websocket.Hub
	channel string
	logger  zerolog.Logger
}

func NewRedisBroker(client *redis.Client, hub *websocket.Hub, logger zerolog.Logger) *RedisBroker {
	return &RedisBroker{client: client, hub: hub, channel: Channel, logger: logger}
}

// NewRedisClient parses a redis:// URL and checks connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 10 * time.Second
	opts.MaxRetries = 3

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (b *RedisBroker) Publish(ctx context.Context, d Delivery) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish delivery: %w", err)
	}
	return nil
}

// Run subscribes to the channel and relays every delivery into the local hub
// until ctx is cancelled.
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info().Str("channel", b.channel).Msg("relaying notifications from redis")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.relay(msg.Payload)
		}
	}
}

func (b *RedisBroker) relay(payload string) {
	var d Delivery
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		b.logger.Warn().Err(err).Msg("discarding malformed delivery")
		return
	}
	b.hub.SendToUser(d.UserID, d.Message)
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/assassingame/internal/model"
)

// DefaultChannelPrefix namespaces game channels, e.g. "assassin:game:ABCD1234"
const DefaultChannelPrefix = "assassin:game:"

// RedisConfig holds Redis connection settings for event fan-out
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL           string
	PoolSize      int
	MinIdleConns  int
	ChannelPrefix string
}

// DefaultRedisConfig returns sensible defaults
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		URL:           "redis://localhost:6379",
		PoolSize:      10,
		MinIdleConns:  2,
		ChannelPrefix: DefaultChannelPrefix,
	}
}

// NewRedisClient connects and verifies the connection
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// wireEvent is the JSON shape on the channel; the payload is relayed untouched
type wireEvent struct {
	Type      model.EventType `json:"type"`
	GameCode  model.GameCode  `json:"game_code"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// RedisPublisher publishes events to a per-game Redis channel so every
// server instance can relay them to its own subscribers
type RedisPublisher struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// Ensure RedisPublisher implements Publisher
var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher on an existing client
func NewRedisPublisher(client *redis.Client, prefix string, logger *slog.Logger) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisPublisher{
		client: client,
		prefix: prefix,
		logger: logger.With(slog.String("component", "events.redis")),
	}
}

// Publish sends the event, logging failures
func (p *RedisPublisher) Publish(ctx context.Context, event model.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode event", slog.String("error", err.Error()))
		return
	}
	if err := p.client.Publish(ctx, p.prefix+string(event.GameCode), data).Err(); err != nil {
		p.logger.Error("failed to publish event",
			slog.String("game_code", string(event.GameCode)),
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()))
	}
}

// Relay pattern-subscribes to every game channel and hands events to a local publisher
type Relay struct {
	client *redis.Client
	prefix string
	target Publisher
	logger *slog.Logger
	ready  chan struct{}
}

// NewRelay creates a relay feeding target
func NewRelay(client *redis.Client, prefix string, target Publisher, logger *slog.Logger) *Relay {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Relay{
		client: client,
		prefix: prefix,
		target: target,
		logger: logger.With(slog.String("component", "events.relay")),
		ready:  make(chan struct{}),
	}
}

// Ready is closed once the subscription is confirmed
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Run relays messages until ctx is cancelled
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, r.prefix+"*")
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe to game events: %w", err)
	}
	close(r.ready)
	r.logger.Info("event relay subscribed", slog.String("pattern", r.prefix+"*"))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.relay(ctx, msg)
		}
	}
}

func (r *Relay) relay(ctx context.Context, msg *redis.Message) {
	var wire wireEvent
	if err := json.Unmarshal([]byte(msg.Payload), &wire); err != nil {
		r.logger.Warn("discarding malformed event",
			slog.String("channel", msg.Channel),
			slog.String("error", err.Error()))
		return
	}
	if wire.GameCode == "" {
		wire.GameCode = model.GameCode(strings.TrimPrefix(msg.Channel, r.prefix))
	}
	event := model.Event{
		Type:      wire.Type,
		GameCode:  wire.GameCode,
		Timestamp: wire.Timestamp,
	}
	if len(wire.Payload) > 0 {
		event.Payload = wire.Payload
	}
	r.target.Publish(ctx, event)
}

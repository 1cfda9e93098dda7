package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/habedi/tokenflow/auth"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisConfig holds the Redis connection used to share changes between processes.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	Channel      string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns the default Redis feed configuration.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		Channel:      "tokenflow:storage",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Redis is an auth.ChangeFeed backed by Redis pub/sub. Every process subscribed to the same
// channel receives the changes of all the others.
type Redis struct {
	client    *redis.Client
	pubsub    *redis.PubSub
	channel   string
	origin    string
	listeners listeners
	done      chan struct{}
}

// NewRedis connects to Redis and subscribes to the configured channel.
func NewRedis(ctx context.Context, config *RedisConfig) (*Redis, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	channel := config.Channel
	if channel == "" {
		channel = DefaultRedisConfig().Channel
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(pingCtx); err != nil {
		_ = pubsub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	r := &Redis{
		client:  client,
		pubsub:  pubsub,
		channel: channel,
		origin:  uuid.NewString(),
		done:    make(chan struct{}),
	}
	go r.loop()

	log.Info().Str("addr", config.Addr).Str("channel", channel).Msg("Connected to Redis change feed")
	return r, nil
}

// ID returns the origin identifier stamped on changes published by this process.
func (r *Redis) ID() string { return r.origin }

func (r *Redis) Subscribe(key string, fn func(auth.Change)) (unsubscribe func()) {
	return r.listeners.add(key, fn)
}

func (r *Redis) Publish(ctx context.Context, c auth.Change) error {
	c.Origin = r.origin
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish change for %s: %w", c.Key, err)
	}
	return nil
}

func (r *Redis) loop() {
	defer close(r.done)
	for msg := range r.pubsub.Channel() {
		r.handle(msg.Payload)
	}
}

// handle decodes one pub/sub payload and dispatches it unless this process published it.
func (r *Redis) handle(payload string) {
	var c auth.Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		log.Warn().Err(err).Msg("Ignoring malformed change message")
		return
	}
	if c.Origin == r.origin || c.Key == "" {
		return
	}
	r.listeners.dispatch(c)
}

// Close unsubscribes and closes the Redis connection.
func (r *Redis) Close() error {
	err := r.pubsub.Close()
	if r.done != nil {
		<-r.done
	}
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

package subscriber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/soltixdb/tagwatch/internal/logging"
)

// RedisConfig holds the Redis Streams settings
type RedisConfig struct {
	URL      string // Redis URL or host:port
	Password string
	DB       int
	Stream   string // Stream key prefix, matching the queue publisher (default: "tagwatch")
}

// RedisSubscriber implements Subscriber for Redis Streams consumer groups
type RedisSubscriber struct {
	client        *redis.Client
	prefix        string
	cfg           Config
	log           *logging.Logger
	subscriptions map[string]redisSubscription
	mu            sync.Mutex
}

type redisSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedisSubscriber connects to Redis and verifies the connection
func NewRedisSubscriber(rcfg RedisConfig, cfg Config, logger *logging.Logger) (*RedisSubscriber, error) {
	opts, err := redis.ParseURL(rcfg.URL)
	if err != nil {
		opts = &redis.Options{
			Addr:     rcfg.URL,
			Password: rcfg.Password,
			DB:       rcfg.DB,
		}
	}
	opts.PoolSize = 10
	opts.MinIdleConns = 2

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisSubscriberWithClient(client, rcfg.Stream, cfg, logger), nil
}

func newRedisSubscriberWithClient(client *redis.Client, prefix string, cfg Config, logger *logging.Logger) *RedisSubscriber {
	if prefix == "" {
		prefix = "tagwatch"
	}
	return &RedisSubscriber{
		client:        client,
		prefix:        prefix,
		cfg:           cfg.withDefaults(),
		log:           logger.With("component", "subscriber.redis"),
		subscriptions: make(map[string]redisSubscription),
	}
}

// Subscribe joins the consumer group of the subject's stream
func (s *RedisSubscriber) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streamName(subject)
	if _, exists := s.subscriptions[stream]; exists {
		return fmt.Errorf("already subscribed to stream: %s", stream)
	}

	err := s.client.XGroupCreateMkStream(ctx, stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := redisSubscription{cancel: cancel, done: make(chan struct{})}
	s.subscriptions[stream] = sub

	go s.consume(subCtx, sub.done, stream, subject, handler)

	s.log.Info("Subscribed to Redis stream", "stream", stream, "group", s.cfg.Group, "consumer", s.cfg.Consumer)
	return nil
}

func (s *RedisSubscriber) consume(ctx context.Context, done chan struct{}, stream, subject string, handler MessageHandler) {
	defer close(done)
	for ctx.Err() == nil {
		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.cfg.Group,
			Consumer: s.cfg.Consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			s.log.Error("Failed to read from stream", "stream", stream, "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, st := range streams {
			for _, message := range st.Messages {
				s.handle(ctx, stream, subject, message, handler)
			}
		}
	}
}

// handle delivers one entry and acknowledges it once it is processed or
// its attempts are exhausted
func (s *RedisSubscriber) handle(ctx context.Context, stream, subject string, message redis.XMessage, handler MessageHandler) {
	data, ok := message.Values["data"].(string)
	if !ok {
		s.log.Warn("Invalid message format", "stream", stream, "id", message.ID)
	} else if err := deliver(ctx, s.log, handler, subject, []byte(data), s.cfg.MaxDeliver); err != nil {
		if ctx.Err() != nil {
			// Left pending for the next consumer start
			return
		}
		s.log.Error("Dropping message after failed deliveries", "stream", stream, "id", message.ID, "error", err)
	}

	if err := s.client.XAck(context.Background(), stream, s.cfg.Group, message.ID).Err(); err != nil {
		s.log.Error("Failed to ACK message", "stream", stream, "id", message.ID, "error", err)
	}
}

// streamName maps a subject to the stream key the queue publisher writes
func (s *RedisSubscriber) streamName(subject string) string {
	return fmt.Sprintf("%s:%s", s.prefix, subject)
}

// Unsubscribe stops consuming the subject's stream
func (s *RedisSubscriber) Unsubscribe(subject string) error {
	s.mu.Lock()
	stream := s.streamName(subject)
	sub, exists := s.subscriptions[stream]
	delete(s.subscriptions, stream)
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("not subscribed to stream: %s", stream)
	}

	sub.cancel()
	<-sub.done
	s.log.Info("Unsubscribed from Redis stream", "stream", stream)
	return nil
}

// Close stops all consumers and closes the client
func (s *RedisSubscriber) Close() error {
	s.mu.Lock()
	subs := s.subscriptions
	s.subscriptions = make(map[string]redisSubscription)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		<-sub.done
	}

	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	s.log.Info("Redis subscriber closed")
	return nil
}

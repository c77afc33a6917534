package subscriber

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/soltixdb/tagwatch/internal/logging"
)

func getRedisURL() string {
	if url := os.Getenv("REDIS_URL"); url != "" {
		return url
	}
	return "redis://localhost:6379"
}

func TestRedisSubscriber_StreamName(t *testing.T) {
	s := newRedisSubscriberWithClient(nil, "", Config{}, logging.NewNop())
	if got := s.streamName("tagwatch.jobs"); got != "tagwatch:tagwatch.jobs" {
		t.Errorf("unexpected stream name %q", got)
	}

	s = newRedisSubscriberWithClient(nil, "plant", Config{}, logging.NewNop())
	if got := s.streamName("jobs"); got != "plant:jobs" {
		t.Errorf("unexpected stream name %q", got)
	}
}

func TestRedisSubscriber_Consume(t *testing.T) {
	sub, err := NewRedisSubscriber(RedisConfig{URL: getRedisURL(), Stream: "test-tagwatch"}, Config{MaxDeliver: 2}, logging.NewNop())
	if err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	stream := sub.streamName("jobs")
	client := sub.client
	ctx := context.Background()
	_ = client.Del(ctx, stream).Err()
	t.Cleanup(func() {
		_ = sub.Close()
	})

	rec := newRecorder(1)
	if err := sub.Subscribe(ctx, "jobs", rec.handle); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"data": "job"},
	}).Err(); err != nil {
		t.Fatalf("XAdd failed: %v", err)
	}

	rec.next(t)
	rec.next(t)

	if err := sub.Unsubscribe("jobs"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	pending, err := client.XPending(ctx, stream, sub.cfg.Group).Result()
	if err != nil {
		t.Fatalf("XPending failed: %v", err)
	}
	if pending.Count != 0 {
		t.Errorf("expected no pending entries, got %d", pending.Count)
	}
	_ = client.Del(ctx, stream).Err()
}

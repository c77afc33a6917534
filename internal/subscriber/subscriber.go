// Package subscriber consumes analysis jobs from the same brokers the queue
// package publishes to. Instances sharing a consumer group split the jobs
// between them; a job whose handler fails is redelivered up to MaxDeliver
// times and then dropped.
package subscriber

import (
	"context"
	"time"

	"github.com/soltixdb/tagwatch/internal/logging"
)

// MessageHandler processes one message. A non-nil error asks for redelivery.
type MessageHandler func(ctx context.Context, subject string, data []byte) error

// Subscriber defines the interface for message subscription
type Subscriber interface {
	// Subscribe subscribes to a subject/topic with the given handler
	Subscribe(ctx context.Context, subject string, handler MessageHandler) error

	// Unsubscribe unsubscribes from a subject/topic
	Unsubscribe(subject string) error

	// Close closes the subscriber and releases resources
	Close() error
}

// Config holds common subscriber configuration
type Config struct {
	// Group is the consumer group shared by competing consumers
	Group string

	// Consumer names this instance within the group
	Consumer string

	// MaxDeliver is the number of delivery attempts per message
	MaxDeliver int
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Group:      "tagwatch-analyzer",
		Consumer:   "analyzer",
		MaxDeliver: 3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Group == "" {
		c.Group = d.Group
	}
	if c.Consumer == "" {
		c.Consumer = d.Consumer
	}
	if c.MaxDeliver < 1 {
		c.MaxDeliver = d.MaxDeliver
	}
	return c
}

// redeliverDelay is the pause between in-process delivery attempts
var redeliverDelay = 200 * time.Millisecond

// deliver runs handler until it succeeds or attempts are exhausted. It
// returns the last handler error.
func deliver(ctx context.Context, log *logging.Logger, handler MessageHandler, subject string, data []byte, attempts int) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = handler(ctx, subject, data); err == nil {
			return nil
		}
		log.Warn("Message handler failed",
			"subject", subject,
			"attempt", attempt,
			"max_deliver", attempts,
			"error", err)

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(redeliverDelay):
		}
	}
	return err
}

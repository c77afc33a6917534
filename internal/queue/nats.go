package queue

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSConfig represents NATS JetStream configuration
type NATSConfig struct {
	URL      string
	Username string
	Password string
	Stream   string   // Stream name (default: "tagwatch")
	Subjects []string // Subjects captured by the stream (default: "tagwatch.>")
}

// NATSPublisher implements Publisher using NATS JetStream
type NATSPublisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	stream string
}

// newNATSPublisher connects and makes sure the configured stream exists
func newNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	var opts []nats.Option
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	p, err := newNATSPublisherWithConn(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

// newNATSPublisherWithConn wraps an existing connection (used in tests)
func newNATSPublisherWithConn(conn *nats.Conn, cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.Stream == "" {
		cfg.Stream = "tagwatch"
	}
	if len(cfg.Subjects) == 0 {
		cfg.Subjects = []string{"tagwatch.>"}
	}

	// Create JetStream context
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	streamName := sanitizeStreamName(cfg.Stream)
	if _, err := js.StreamInfo(streamName); err != nil {
		// Stream doesn't exist, create it
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     streamName,
			Subjects: cfg.Subjects,
			Storage:  nats.FileStorage,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}
	}

	return &NATSPublisher{
		conn:   conn,
		js:     js,
		stream: streamName,
	}, nil
}

// Publish publishes a message and waits for the JetStream ack
func (p *NATSPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	return nil
}

// PublishBatch queues every message asynchronously, then waits for the acks
func (p *NATSPublisher) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	// Collect all pending futures
	futures := make([]nats.PubAckFuture, 0, len(messages))

	// Publish all messages asynchronously (non-blocking)
	for _, msg := range messages {
		future, err := p.js.PublishAsync(msg.Subject, msg.Data)
		if err != nil {
			// If we fail to queue a message, continue with others
			continue
		}
		futures = append(futures, future)
	}

	// Wait for all pending messages with timeout from context
	select {
	case <-p.js.PublishAsyncComplete():
	case <-ctx.Done():
		return 0, fmt.Errorf("timeout waiting for batch publish: %w", ctx.Err())
	}

	successCount := 0
	var lastErr error
	for _, future := range futures {
		select {
		case <-future.Ok():
			successCount++
		case err := <-future.Err():
			lastErr = err
		}
	}

	if lastErr != nil && successCount == 0 {
		return 0, fmt.Errorf("failed to publish batch: %w", lastErr)
	}
	return successCount, nil
}

// Stream returns the JetStream stream name
func (p *NATSPublisher) Stream() string {
	return p.stream
}

// Close closes the NATS connection
func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// sanitizeStreamName replaces invalid characters for stream names
// Stream names can only contain: A-Z, a-z, 0-9, dash (-) and underscore (_)
func sanitizeStreamName(name string) string {
	result := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}
	return string(result)
}

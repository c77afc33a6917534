package queue

import (
	"context"
	"fmt"
	"sync"
)

// memoryCapacity is the per-subject buffer of the in-memory publisher
const memoryCapacity = 10000

// MemoryPublisher implements Publisher using in-memory channels.
// This is useful for testing and development without external dependencies
type MemoryPublisher struct {
	channels map[string]chan []byte
	closed   bool
	mu       sync.Mutex
}

// NewMemoryPublisher creates a new in-memory publisher
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{
		channels: make(map[string]chan []byte),
	}
}

// channel returns existing channel or creates new one
func (p *MemoryPublisher) channel(subject string) chan []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ch, exists := p.channels[subject]; exists {
		return ch
	}

	ch := make(chan []byte, memoryCapacity)
	p.channels[subject] = ch
	return ch
}

// Publish buffers a copy of data under subject
func (p *MemoryPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return fmt.Errorf("publisher closed")
	}

	ch := p.channel(subject)

	// Make a copy of data to avoid race conditions
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	select {
	case ch <- dataCopy:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("channel full for subject: %s", subject)
	}
}

// PublishBatch publishes multiple messages
func (p *MemoryPublisher) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	successCount := 0
	var lastErr error

	for _, msg := range messages {
		if err := p.Publish(ctx, msg.Subject, msg.Data); err != nil {
			lastErr = err
			continue
		}
		successCount++
	}

	if lastErr != nil && successCount == 0 {
		return 0, fmt.Errorf("failed to publish batch: %w", lastErr)
	}
	return successCount, nil
}

// Drain removes and returns every buffered message for subject
func (p *MemoryPublisher) Drain(subject string) [][]byte {
	ch := p.channel(subject)

	var out [][]byte
	for {
		select {
		case data := <-ch:
			out = append(out, data)
		default:
			return out
		}
	}
}

// Subjects lists subjects that have received at least one message
func (p *MemoryPublisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	subjects := make([]string, 0, len(p.channels))
	for s, ch := range p.channels {
		if len(ch) > 0 {
			subjects = append(subjects, s)
		}
	}
	return subjects
}

// Close rejects further publishes
func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

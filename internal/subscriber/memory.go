package subscriber

import (
	"context"
	"fmt"
	"sync"

	"github.com/soltixdb/tagwatch/internal/logging"
)

// memoryCapacity is the per-subject buffer of the in-memory subscriber
const memoryCapacity = 1000

type memorySubscription struct {
	cancel context.CancelFunc
	ch     chan []byte
	done   chan struct{}
}

// MemorySubscriber implements Subscriber over in-process channels. Messages
// arrive through Deliver; it is used in tests and single-process setups.
type MemorySubscriber struct {
	cfg           Config
	log           *logging.Logger
	subscriptions map[string]*memorySubscription
	mu            sync.Mutex
}

// NewMemorySubscriber creates a new in-memory subscriber
func NewMemorySubscriber(cfg Config, logger *logging.Logger) *MemorySubscriber {
	return &MemorySubscriber{
		cfg:           cfg.withDefaults(),
		log:           logger.With("component", "subscriber.memory"),
		subscriptions: make(map[string]*memorySubscription),
	}
}

// Subscribe subscribes to a subject with the given handler
func (s *MemorySubscriber) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &memorySubscription{
		cancel: cancel,
		ch:     make(chan []byte, memoryCapacity),
		done:   make(chan struct{}),
	}
	s.subscriptions[subject] = sub

	go s.consume(subCtx, sub, subject, handler)

	s.log.Info("Subscribed to in-memory subject", "subject", subject)
	return nil
}

// Deliver queues a copy of data for the subject's subscriber
func (s *MemorySubscriber) Deliver(subject string, data []byte) error {
	s.mu.Lock()
	sub, exists := s.subscriptions[subject]
	s.mu.Unlock()
	if !exists {
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	select {
	case sub.ch <- dataCopy:
		return nil
	default:
		return fmt.Errorf("channel full for subject: %s", subject)
	}
}

func (s *MemorySubscriber) consume(ctx context.Context, sub *memorySubscription, subject string, handler MessageHandler) {
	defer close(sub.done)
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-sub.ch:
			if err := deliver(ctx, s.log, handler, subject, data, s.cfg.MaxDeliver); err != nil {
				s.log.Error("Dropping message after failed deliveries", "subject", subject, "error", err)
			}
		}
	}
}

// Unsubscribe stops the subject's consumer and waits for it to exit
func (s *MemorySubscriber) Unsubscribe(subject string) error {
	s.mu.Lock()
	sub, exists := s.subscriptions[subject]
	delete(s.subscriptions, subject)
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}

	sub.cancel()
	<-sub.done
	s.log.Info("Unsubscribed from in-memory subject", "subject", subject)
	return nil
}

// Close closes all subscriptions
func (s *MemorySubscriber) Close() error {
	s.mu.Lock()
	subs := s.subscriptions
	s.subscriptions = make(map[string]*memorySubscription)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		<-sub.done
	}

	s.log.Info("Memory subscriber closed")
	return nil
}

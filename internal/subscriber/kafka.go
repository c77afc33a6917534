package subscriber

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/soltixdb/tagwatch/internal/logging"
)

// KafkaSubscriber implements Subscriber with Kafka consumer groups. Subjects
// map to topics of the same name.
type KafkaSubscriber struct {
	brokers []string
	cfg     Config
	log     *logging.Logger
	readers map[string]*kafkaSubscription
	mu      sync.Mutex
}

type kafkaSubscription struct {
	reader *kafka.Reader
	cancel context.CancelFunc
	done   chan struct{}
}

// NewKafkaSubscriber creates a new Kafka subscriber
func NewKafkaSubscriber(brokers []string, cfg Config, logger *logging.Logger) (*KafkaSubscriber, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}

	return &KafkaSubscriber{
		brokers: brokers,
		cfg:     cfg.withDefaults(),
		log:     logger.With("component", "subscriber.kafka"),
		readers: make(map[string]*kafkaSubscription),
	}, nil
}

// readerConfig builds the group reader configuration for a topic
func (s *KafkaSubscriber) readerConfig(topic string) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:           s.brokers,
		GroupID:           s.cfg.Group,
		Topic:             topic,
		MinBytes:          1,
		MaxBytes:          10e6, // 10MB
		MaxWait:           time.Second,
		StartOffset:       kafka.FirstOffset,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
		RebalanceTimeout:  60 * time.Second,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			s.log.Debug(fmt.Sprintf(msg, args...))
		}),
	}
}

// Subscribe starts a group reader for the subject's topic
func (s *KafkaSubscriber) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.readers[subject]; exists {
		return fmt.Errorf("already subscribed to topic: %s", subject)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &kafkaSubscription{
		reader: kafka.NewReader(s.readerConfig(subject)),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.readers[subject] = sub

	go s.consume(subCtx, sub, subject, handler)

	s.log.Info("Subscribed to Kafka topic", "topic", subject, "group", s.cfg.Group)
	return nil
}

func (s *KafkaSubscriber) consume(ctx context.Context, sub *kafkaSubscription, subject string, handler MessageHandler) {
	defer close(sub.done)
	for {
		msg, err := sub.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error("Failed to fetch message", "topic", subject, "error", err)
			time.Sleep(time.Second)
			continue
		}

		if err := deliver(ctx, s.log, handler, subject, msg.Value, s.cfg.MaxDeliver); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error("Dropping message after failed deliveries", "topic", subject, "offset", msg.Offset, "error", err)
		}

		if err := sub.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			s.log.Error("Failed to commit message", "topic", subject, "offset", msg.Offset, "error", err)
		}
	}
}

// Unsubscribe stops and closes the subject's reader
func (s *KafkaSubscriber) Unsubscribe(subject string) error {
	s.mu.Lock()
	sub, exists := s.readers[subject]
	delete(s.readers, subject)
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("not subscribed to topic: %s", subject)
	}

	s.log.Info("Unsubscribed from Kafka topic", "topic", subject)
	return s.stop(sub)
}

func (s *KafkaSubscriber) stop(sub *kafkaSubscription) error {
	sub.cancel()
	<-sub.done
	return sub.reader.Close()
}

// Close closes all readers
func (s *KafkaSubscriber) Close() error {
	s.mu.Lock()
	subs := s.readers
	s.readers = make(map[string]*kafkaSubscription)
	s.mu.Unlock()

	var lastErr error
	for topic, sub := range subs {
		if err := s.stop(sub); err != nil {
			s.log.Warn("Failed to close reader", "topic", topic, "error", err)
			lastErr = err
		}
	}

	s.log.Info("Kafka subscriber closed")
	return lastErr
}

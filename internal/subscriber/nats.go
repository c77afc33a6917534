package subscriber

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/soltixdb/tagwatch/internal/logging"
)

// NATSConfig holds the NATS connection settings
type NATSConfig struct {
	URL      string
	Username string
	Password string
}

// NATSSubscriber implements Subscriber for NATS JetStream. Consumers are
// durable queue subscriptions, so instances in one group share the work.
type NATSSubscriber struct {
	conn          *nats.Conn
	js            nats.JetStreamContext
	cfg           Config
	log           *logging.Logger
	subscriptions map[string]*nats.Subscription
	mu            sync.Mutex
}

// NewNATSSubscriber connects to NATS and opens a JetStream context
func NewNATSSubscriber(ncfg NATSConfig, cfg Config, logger *logging.Logger) (*NATSSubscriber, error) {
	cfg = cfg.withDefaults()
	log := logger.With("component", "subscriber.nats")

	opts := []nats.Option{
		nats.Name(fmt.Sprintf("tagwatch-%s", cfg.Consumer)),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if ncfg.Username != "" {
		opts = append(opts, nats.UserInfo(ncfg.Username, ncfg.Password))
	}

	conn, err := nats.Connect(ncfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NATSSubscriber{
		conn:          conn,
		js:            js,
		cfg:           cfg,
		log:           log,
		subscriptions: make(map[string]*nats.Subscription),
	}, nil
}

// Subscribe subscribes to a subject with the given handler
func (s *NATSSubscriber) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	if err := s.ensureStream(subject); err != nil {
		return err
	}

	durable := consumerName(s.cfg.Group, subject)

	sub, err := s.js.QueueSubscribe(subject, durable, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			_ = msg.Nak()
			return
		}

		if err := handler(ctx, msg.Subject, msg.Data); err != nil {
			s.log.Warn("Failed to handle message",
				"subject", msg.Subject,
				"error", err,
				"data_preview", string(msg.Data[:min(100, len(msg.Data))]))
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxAckPending(100),
		nats.AckWait(30*time.Second),
		nats.MaxDeliver(s.cfg.MaxDeliver),
		nats.DeliverAll(),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	s.subscriptions[subject] = sub
	s.log.Info("Subscribed to subject", "subject", subject, "durable", durable)
	return nil
}

// ensureStream reuses the stream that captures subject, or creates a work
// queue stream for it
func (s *NATSSubscriber) ensureStream(subject string) error {
	if name, err := s.js.StreamNameBySubject(subject); err == nil && name != "" {
		return nil
	}

	stream := streamName(subject)
	_, err := s.js.AddStream(&nats.StreamConfig{
		Name:      stream,
		Subjects:  []string{subject},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
		Replicas:  1,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("failed to create stream %s: %w", stream, err)
	}
	return nil
}

// streamName derives a stream name for subject. Stream names cannot contain
// dots or wildcards.
func streamName(subject string) string {
	return "JOBS_" + sanitizeName(subject)
}

// consumerName derives a durable consumer name shared by a group
func consumerName(group, subject string) string {
	return sanitizeName(group + "_" + subject)
}

func sanitizeName(name string) string {
	r := strings.NewReplacer(".", "_", "*", "all", ">", "all", " ", "_")
	return r.Replace(name)
}

// Unsubscribe drains the subject's subscription
func (s *NATSSubscriber) Unsubscribe(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.subscriptions[subject]
	if !exists {
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}

	if err := sub.Drain(); err != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %w", subject, err)
	}

	delete(s.subscriptions, subject)
	s.log.Info("Unsubscribed from subject", "subject", subject)
	return nil
}

// Close drains all subscriptions and closes the connection
func (s *NATSSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for subject, sub := range s.subscriptions {
		if err := sub.Drain(); err != nil {
			s.log.Warn("Failed to drain subscription", "subject", subject, "error", err)
		}
	}
	s.subscriptions = make(map[string]*nats.Subscription)

	s.conn.Close()
	s.log.Info("NATS subscriber closed")
	return nil
}

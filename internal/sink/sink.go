// Package sink pushes derived datapoints back to a series store, creating the
// series on first use.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/config"
	"github.com/soltixdb/tagwatch/internal/logging"
	"github.com/soltixdb/tagwatch/internal/queue"
	"github.com/soltixdb/tagwatch/internal/registry"
	"github.com/soltixdb/tagwatch/internal/source"
	"github.com/soltixdb/tagwatch/internal/utils"
)

// DatapointWriter persists datapoints for one series
type DatapointWriter interface {
	WriteDatapoints(ctx context.Context, externalID string, points analytics.TimeSeriesData) (int, error)
}

// PushResult summarizes a push
type PushResult struct {
	ExternalID string `json:"external_id"`
	Created    bool   `json:"created"`
	Written    int    `json:"written"`
	Skipped    int    `json:"skipped"`
}

// Pusher writes table columns to series
type Pusher struct {
	logger   *logging.Logger
	registry registry.Registry
	writer   DatapointWriter
}

// NewPusher creates a Pusher
func NewPusher(reg registry.Registry, w DatapointWriter, logger *logging.Logger) *Pusher {
	if logger == nil {
		logger = logging.Global()
	}
	return &Pusher{logger: logger, registry: reg, writer: w}
}

// Push writes the non-null cells of the value column to spec
func (p *Pusher) Push(ctx context.Context, spec registry.SeriesSpec, t *analytics.Table) (*PushResult, error) {
	return p.PushColumn(ctx, spec, t, analytics.DefaultValueColumn)
}

// PushColumn ensures spec exists, then writes the non-null cells of col
func (p *Pusher) PushColumn(ctx context.Context, spec registry.SeriesSpec, t *analytics.Table, col string) (*PushResult, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: no table to push", analytics.ErrInvalidConfig)
	}
	points, err := t.Points(col)
	if err != nil {
		return nil, err
	}

	stored, created, err := p.registry.EnsureSeries(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure series %s: %w", spec.ExternalID, err)
	}
	if created {
		p.logger.Info("Created series",
			"external_id", stored.ExternalID,
			"unit", stored.Unit)
	}

	written, err := p.writer.WriteDatapoints(ctx, stored.ExternalID, points)
	if err != nil {
		return nil, fmt.Errorf("failed to write datapoints to %s: %w", stored.ExternalID, err)
	}

	result := &PushResult{
		ExternalID: stored.ExternalID,
		Created:    created,
		Written:    written,
		Skipped:    t.Len() - len(points),
	}
	p.logger.Info("Pushed datapoints",
		"external_id", result.ExternalID,
		"column", col,
		"written", result.Written,
		"skipped", result.Skipped)
	return result, nil
}

// Datapoint is the wire form of one pushed value
type Datapoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Message is the payload published for a batch of datapoints
type Message struct {
	ExternalID string      `json:"external_id"`
	Datapoints []Datapoint `json:"datapoints"`
}

// QueueWriter publishes datapoints as JSON batches to <prefix>.<external_id>
type QueueWriter struct {
	publisher queue.Publisher
	prefix    string
	batchSize int
}

// NewQueueWriter creates a QueueWriter
func NewQueueWriter(p queue.Publisher, prefix string, batchSize int) *QueueWriter {
	if prefix == "" {
		prefix = "tagwatch.datapoints"
	}
	if batchSize <= 0 {
		batchSize = utils.DefaultBatchSize
	}
	if batchSize > utils.MaxBatchSize {
		batchSize = utils.MaxBatchSize
	}
	return &QueueWriter{publisher: p, prefix: prefix, batchSize: batchSize}
}

// Subject returns the subject datapoints for externalID are published to
func (w *QueueWriter) Subject(externalID string) string {
	r := strings.NewReplacer(" ", "_", "*", "_", ">", "_")
	return w.prefix + "." + r.Replace(externalID)
}

// WriteDatapoints implements DatapointWriter
func (w *QueueWriter) WriteDatapoints(ctx context.Context, externalID string, points analytics.TimeSeriesData) (int, error) {
	subject := w.Subject(externalID)
	messages := make([]queue.BatchMessage, 0, len(points)/w.batchSize+1)

	for start := 0; start < len(points); start += w.batchSize {
		end := start + w.batchSize
		if end > len(points) {
			end = len(points)
		}
		msg := Message{ExternalID: externalID, Datapoints: make([]Datapoint, 0, end-start)}
		for _, p := range points[start:end] {
			msg.Datapoints = append(msg.Datapoints, Datapoint{Timestamp: p.Time.UTC(), Value: p.Value})
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal datapoints: %w", err)
		}
		messages = append(messages, queue.BatchMessage{Subject: subject, Data: data})
	}

	if len(messages) == 0 {
		return 0, nil
	}

	published, err := w.publisher.PublishBatch(ctx, messages)
	if err != nil {
		return 0, err
	}
	if published < len(messages) {
		return 0, fmt.Errorf("published %d of %d batches to %s", published, len(messages), subject)
	}
	return len(points), nil
}

// Close closes the publisher
func (w *QueueWriter) Close() error {
	return w.publisher.Close()
}

// New builds the Pusher selected by cfg.Sink. It returns nil for sink type
// none. The returned close function releases the writer and registry.
func New(cfg *config.Config, logger *logging.Logger) (*Pusher, func() error, error) {
	kind := utils.SinkType(strings.ToLower(cfg.Sink.Type))
	if kind == "" || kind == utils.SinkTypeNone {
		return nil, func() error { return nil }, nil
	}

	reg, err := registry.New(cfg.Registry, cfg.Etcd)
	if err != nil {
		return nil, nil, err
	}

	var (
		writer  DatapointWriter
		closeFn func() error
	)
	switch kind {
	case utils.SinkTypeQueue:
		pub, err := queue.NewPublisher(cfg.Queue)
		if err != nil {
			_ = reg.Close()
			return nil, nil, err
		}
		qw := NewQueueWriter(pub, cfg.Sink.SubjectPrefix, cfg.Sink.BatchSize)
		writer, closeFn = qw, qw.Close
	case utils.SinkTypeSQL:
		store, err := source.OpenSQLStore(cfg.Source, logger)
		if err != nil {
			_ = reg.Close()
			return nil, nil, err
		}
		writer, closeFn = store, store.Close
	default:
		_ = reg.Close()
		return nil, nil, fmt.Errorf("unsupported sink type: %s (supported: none, queue, sql)", cfg.Sink.Type)
	}

	closeAll := func() error {
		err := closeFn()
		if rerr := reg.Close(); err == nil {
			err = rerr
		}
		return err
	}
	return NewPusher(reg, writer, logger), closeAll, nil
}

// Package jobs runs tag analyses requested over the message queue and
// publishes each outcome to a result subject.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/soltixdb/tagwatch/internal/config"
	"github.com/soltixdb/tagwatch/internal/logging"
	"github.com/soltixdb/tagwatch/internal/models"
	"github.com/soltixdb/tagwatch/internal/queue"
	"github.com/soltixdb/tagwatch/internal/services"
	"github.com/soltixdb/tagwatch/internal/subscriber"
)

// Analyzer runs one tag analysis
type Analyzer interface {
	AnalyzeTag(ctx context.Context, tag string, req *models.TagAnalyzeRequest) (*models.AnalyzeResponse, error)
}

// Worker consumes JobRequests and publishes JobResults
type Worker struct {
	analyzer Analyzer
	sub      subscriber.Subscriber
	pub      queue.Publisher
	cfg      config.JobsConfig
	logger   *logging.Logger
	now      func() time.Time
}

// NewWorker creates a worker. Nothing is consumed until Start.
func NewWorker(
	analyzer Analyzer,
	sub subscriber.Subscriber,
	pub queue.Publisher,
	cfg config.JobsConfig,
	logger *logging.Logger,
) *Worker {
	return &Worker{
		analyzer: analyzer,
		sub:      sub,
		pub:      pub,
		cfg:      cfg,
		logger:   logger.With("component", "jobs"),
		now:      time.Now,
	}
}

// Start subscribes to the jobs subject. Consumption stops when ctx is done
// or Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.sub.Subscribe(ctx, w.cfg.Subject, w.Handle); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", w.cfg.Subject, err)
	}
	w.logger.Info("Job worker started",
		"subject", w.cfg.Subject,
		"result_subject", w.cfg.ResultSubject,
		"timeout", w.cfg.Timeout)
	return nil
}

// Stop unsubscribes from the jobs subject
func (w *Worker) Stop() error {
	return w.sub.Unsubscribe(w.cfg.Subject)
}

// Handle processes one job message. Analysis failures are published as
// error results; only a failed publish or shutdown asks for redelivery.
func (w *Worker) Handle(ctx context.Context, _ string, data []byte) error {
	result := w.process(ctx, data)
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result for job %s: %w", result.ID, err)
	}
	if err := w.pub.Publish(ctx, w.cfg.ResultSubject, payload); err != nil {
		return fmt.Errorf("failed to publish result for job %s: %w", result.ID, err)
	}
	return nil
}

func (w *Worker) process(ctx context.Context, data []byte) *models.JobResult {
	var req models.JobRequest
	if err := json.Unmarshal(data, &req); err != nil {
		w.logger.Warn("Discarding malformed job", "error", err)
		return w.failed(uuid.NewString(), "", services.NewServiceError(services.CodeInvalidJSON, "invalid job payload: "+err.Error()))
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	log := w.logger.With("job_id", req.ID, "tag", req.Tag)

	if err := req.Validate(); err != nil {
		log.Warn("Rejecting invalid job", "error", err)
		return w.failed(req.ID, req.Tag, services.NewServiceError(services.CodeInvalidRequest, err.Error()))
	}

	jobCtx := logging.WithTag(ctx, req.Tag)
	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, w.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := w.analyzer.AnalyzeTag(jobCtx, req.Tag, &req.TagAnalyzeRequest)
	if err != nil {
		svcErr := services.FromError(err, services.CodePipelineFailed)
		log.Warn("Job failed", "code", svcErr.Code, "error", err)
		return w.failed(req.ID, req.Tag, svcErr)
	}

	log.Info("Job completed",
		"rows", resp.Summary.Rows,
		"returned", len(resp.Rows),
		"duration", time.Since(start))

	return &models.JobResult{
		ID:          req.ID,
		Tag:         req.Tag,
		Status:      models.JobStatusOK,
		Result:      resp,
		CompletedAt: w.now().UTC().Format(time.RFC3339Nano),
	}
}

func (w *Worker) failed(id, tag string, err *services.ServiceError) *models.JobResult {
	return &models.JobResult{
		ID:     id,
		Tag:    tag,
		Status: models.JobStatusError,
		Error: &models.ErrorDetail{
			Code:    err.Code,
			Message: err.Message,
			Details: err.Details,
		},
		CompletedAt: w.now().UTC().Format(time.RFC3339Nano),
	}
}

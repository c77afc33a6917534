package models

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Job result states
const (
	JobStatusOK    = "ok"
	JobStatusError = "error"
)

// JobRequest is a tag analysis read from the jobs subject. ID is echoed in
// the result and generated when absent.
type JobRequest struct {
	ID  string `json:"id,omitempty"`
	Tag string `json:"tag"`
	TagAnalyzeRequest
}

// Validate checks the request shape
func (r *JobRequest) Validate() error {
	if strings.TrimSpace(r.Tag) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "tag is required")
	}
	return r.TagAnalyzeRequest.Validate()
}

// JobResult is published to the result subject when a job finishes
type JobResult struct {
	ID          string           `json:"id"`
	Tag         string           `json:"tag,omitempty"`
	Status      string           `json:"status"`
	Result      *AnalyzeResponse `json:"result,omitempty"`
	Error       *ErrorDetail     `json:"error,omitempty"`
	CompletedAt string           `json:"completed_at"`
}

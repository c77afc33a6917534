package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/tagwatch/internal/logging"
	"github.com/soltixdb/tagwatch/internal/models"
	"github.com/soltixdb/tagwatch/internal/services"
)

// APIVersion is reported by the health endpoint
const APIVersion = "1.0.0"

// Handler contains all HTTP handlers
type Handler struct {
	logger   *logging.Logger
	analysis *services.AnalysisService
}

// New creates a new handler instance
func New(logger *logging.Logger, analysis *services.AnalysisService) *Handler {
	return &Handler{
		logger:   logger,
		analysis: analysis,
	}
}

// parseBody decodes the JSON body into v and runs its Validate method. A
// non-nil response is the error to send back.
func parseBody(c *fiber.Ctx, v interface{ Validate() error }) (int, *models.ErrorResponse) {
	if err := c.BodyParser(v); err != nil {
		return fiber.StatusBadRequest, &models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeInvalidJSON,
				Message: "Invalid JSON body: " + err.Error(),
			},
		}
	}
	if err := v.Validate(); err != nil {
		status := fiber.StatusBadRequest
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
		return status, &models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeInvalidRequest,
				Message: err.Error(),
			},
		}
	}
	return fiber.StatusOK, nil
}

// respondError writes a service error with its mapped status
func (h *Handler) respondError(c *fiber.Ctx, err error) error {
	svcErr := services.FromError(err, services.CodePipelineFailed)
	return c.Status(services.HTTPStatus(svcErr.Code)).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    svcErr.Code,
			Message: svcErr.Message,
			Path:    c.Path(),
			Details: svcErr.Details,
		},
	})
}

package handlers

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/tagwatch/internal/models"
	"github.com/soltixdb/tagwatch/internal/services"
)

// Analyze handles POST /v1/analyze
func (h *Handler) Analyze(c *fiber.Ctx) error {
	var req models.AnalyzeRequest
	if status, errResp := parseBody(c, &req); errResp != nil {
		return c.Status(status).JSON(errResp)
	}

	resp, err := h.analysis.Analyze(c.UserContext(), &req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(resp)
}

// AnalyzeTag handles POST /v1/tags/:tag/analyze
func (h *Handler) AnalyzeTag(c *fiber.Ctx) error {
	tag, err := url.PathUnescape(c.Params("tag"))
	if err != nil || strings.TrimSpace(tag) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeInvalidRequest,
				Message: "tag is required",
			},
		})
	}

	var req models.TagAnalyzeRequest
	if len(c.Body()) > 0 {
		if status, errResp := parseBody(c, &req); errResp != nil {
			return c.Status(status).JSON(errResp)
		}
	}

	resp, err := h.analysis.AnalyzeTag(c.UserContext(), tag, &req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(resp)
}

// Outliers handles POST /v1/outliers
func (h *Handler) Outliers(c *fiber.Ctx) error {
	var req models.SeriesRequest
	if status, errResp := parseBody(c, &req); errResp != nil {
		return c.Status(status).JSON(errResp)
	}

	resp, err := h.analysis.Outliers(c.UserContext(), &req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(resp)
}

// Describe handles POST /v1/describe
func (h *Handler) Describe(c *fiber.Ctx) error {
	var req models.SeriesRequest
	if status, errResp := parseBody(c, &req); errResp != nil {
		return c.Status(status).JSON(errResp)
	}

	resp, err := h.analysis.Describe(c.UserContext(), &req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(resp)
}

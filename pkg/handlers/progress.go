package handlers

import (
	"technobug/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type ProgressHandler struct {
	service services.ProgressService
}

func NewProgress(service services.ProgressService) *ProgressHandler {
	return &ProgressHandler{service: service}
}

// POST /visit/:page
func (h *ProgressHandler) Visit(c *fiber.Ctx) error {
	if err := h.service.RecordVisit(c.UserContext(), actor(c).ID, c.Params("page")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success"})
}

// GET /user_progress
func (h *ProgressHandler) Progress(c *fiber.Ctx) error {
	p, err := h.service.Progress(c.UserContext(), actor(c).ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status":              "success",
		"progress_percentage": p.Percentage,
		"activity_points":     p.ActivityPoints,
		"resources_count":     p.ResourcesCount,
		"engagement_score":    p.EngagementScore,
		"details":             p.Details,
		"suggestions":         p.Suggestions,
	})
}

package handlers

import (
	"technobug/pkg/catalog"
	"technobug/pkg/models"
	"technobug/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type MaterialsHandler struct {
	service services.MaterialsService
}

func NewMaterials(service services.MaterialsService) *MaterialsHandler {
	return &MaterialsHandler{service: service}
}

// List returns a handler serving the catalog for the given kinds as a bare
// JSON array, the shape the study pages fetch. Optional category and q query
// parameters narrow the list.
func (h *MaterialsHandler) List(kinds ...models.MaterialKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := h.service.List(c.UserContext(), kinds...)
		if err != nil {
			return fail(c, err)
		}

		f := catalog.Filter{Category: c.Query("category"), Term: c.Query("q")}
		if f.Category == "" && f.Term == "" {
			return c.JSON(items)
		}
		visible := make([]models.Material, 0, len(items))
		for _, m := range items {
			if f.Visible(catalog.CardFromMaterial(m)) {
				visible = append(visible, m)
			}
		}
		return c.JSON(visible)
	}
}

// POST /materials (admin)
func (h *MaterialsHandler) Create(c *fiber.Ctx) error {
	var m models.Material
	if err := c.BodyParser(&m); err != nil {
		return badRequest(c, "JSON inválido")
	}
	created, err := h.service.Create(c.UserContext(), m)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"status": "success", "material": created})
}

// POST /materials/:id/view
func (h *MaterialsHandler) View(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "ID inválido")
	}
	if err := h.service.RecordView(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success"})
}

// POST /materials/:id/download
func (h *MaterialsHandler) Download(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "ID inválido")
	}
	if err := h.service.RecordDownload(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success"})
}

// GET /search?q=
func (h *MaterialsHandler) Search(c *fiber.Ctx) error {
	results, err := h.service.Search(c.UserContext(), c.Query("q"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(results)
}

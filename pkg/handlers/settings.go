package handlers

import (
	"technobug/pkg/cache"
	"technobug/pkg/settings"

	"github.com/gofiber/fiber/v2"
)

type SettingsHandler struct {
	redis *cache.Redis
}

func NewSettings(redis *cache.Redis) *SettingsHandler {
	return &SettingsHandler{redis: redis}
}

type preferences struct {
	Theme          *string `json:"theme"`
	ActiveCategory *string `json:"activeCategory"`
}

// GET /settings
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	store := settings.NewRedis(h.redis, actor(c).ID)
	ctx := c.UserContext()
	return c.JSON(fiber.Map{
		"status":                "success",
		settings.Theme:          settings.GetOr(ctx, store, settings.Theme, "light"),
		settings.ActiveCategory: settings.GetOr(ctx, store, settings.ActiveCategory, "Todos"),
	})
}

// POST /settings  {"theme": "dark", "activeCategory": "Redes"}
func (h *SettingsHandler) Set(c *fiber.Ctx) error {
	var req preferences
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	if req.Theme != nil && *req.Theme != "light" && *req.Theme != "dark" {
		return badRequest(c, "Tema inválido")
	}

	store := settings.NewRedis(h.redis, actor(c).ID)
	ctx := c.UserContext()
	if req.Theme != nil {
		if err := store.Set(ctx, settings.Theme, *req.Theme); err != nil {
			return fail(c, err)
		}
	}
	if req.ActiveCategory != nil {
		if err := store.Set(ctx, settings.ActiveCategory, *req.ActiveCategory); err != nil {
			return fail(c, err)
		}
	}
	return c.JSON(fiber.Map{"status": "success", "message": "Preferências salvas"})
}

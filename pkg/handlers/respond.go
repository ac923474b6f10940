package handlers

import (
	"strconv"

	"technobug/pkg/apperr"
	"technobug/pkg/models"

	"github.com/gofiber/fiber/v2"
)

func fail(c *fiber.Ctx, err error) error {
	return c.Status(apperr.Status(err)).JSON(fiber.Map{"status": "error", "message": apperr.Message(err)})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(400).JSON(fiber.Map{"status": "error", "message": message})
}

func paramID(c *fiber.Ctx, name string) (int, bool) {
	id, err := strconv.Atoi(c.Params(name))
	return id, err == nil && id > 0
}

// actor rebuilds the requesting user from the token claims set by the auth
// middleware.
func actor(c *fiber.Ctx) models.User {
	id, _ := c.Locals("user_id").(int)
	uuid, _ := c.Locals("user_uuid").(string)
	username, _ := c.Locals("username").(string)
	isAdmin, _ := c.Locals("is_admin").(bool)
	isModerator, _ := c.Locals("is_moderator").(bool)
	return models.User{ID: id, UUID: uuid, Username: username, IsAdmin: isAdmin, IsModerator: isModerator}
}

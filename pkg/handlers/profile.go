package handlers

import (
	"technobug/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type ProfileHandler struct {
	service services.ProfileService
}

func NewProfile(service services.ProfileService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// POST /update_username  {"username": "..."}
func (h *ProfileHandler) UpdateUsername(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username" form:"username"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Requisição inválida")
	}
	if err := h.service.UpdateUsername(actor(c).ID, req.Username); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "message": "Nome de usuário atualizado com sucesso!", "username": req.Username})
}

// POST /update_profile_pic  (multipart: profile_pic)
func (h *ProfileHandler) UpdateProfilePic(c *fiber.Ctx) error {
	file, err := c.FormFile("profile_pic")
	if err != nil {
		return badRequest(c, "Nenhuma imagem enviada")
	}

	src, err := file.Open()
	if err != nil {
		return badRequest(c, "Erro ao ler arquivo")
	}
	defer src.Close()

	url, err := h.service.UpdateProfilePic(actor(c).ID, file.Filename, file.Header.Get("Content-Type"), file.Size, src)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status":      "success",
		"message":     "Foto de perfil atualizada com sucesso!",
		"new_url":     url,
		"profile_pic": url,
	})
}

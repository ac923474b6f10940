package handlers

import (
	"time"

	"technobug/pkg/models"
	"technobug/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	service services.AuthService
	secure  bool
}

func NewAuth(service services.AuthService, secure bool) *AuthHandler {
	return &AuthHandler{service: service, secure: secure}
}

func (ah *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	res, err := ah.service.Register(req, c.Get("User-Agent"), c.IP())
	if err != nil {
		return fail(c, err)
	}
	ah.setCookies(c, res)
	return c.Status(201).JSON(res)
}

func (ah *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	res, err := ah.service.Login(req, c.Get("User-Agent"), c.IP())
	if err != nil {
		return fail(c, err)
	}
	ah.setCookies(c, res)
	return c.JSON(res)
}

func refreshTokenFrom(c *fiber.Ctx) string {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.BodyParser(&req)
	if req.RefreshToken != "" {
		return req.RefreshToken
	}
	return c.Cookies("refresh_token")
}

func (ah *AuthHandler) Refresh(c *fiber.Ctx) error {
	token := refreshTokenFrom(c)
	if token == "" {
		return badRequest(c, "Refresh token não informado")
	}
	res, err := ah.service.Refresh(token)
	if err != nil {
		ah.clearCookies(c)
		return fail(c, err)
	}
	ah.setCookies(c, res)
	return c.JSON(res)
}

func (ah *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := ah.service.Me(actor(c).ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

func (ah *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := ah.service.Logout(refreshTokenFrom(c), actor(c).ID); err != nil {
		return fail(c, err)
	}
	ah.clearCookies(c)
	return c.JSON(fiber.Map{"status": "ok"})
}

func (ah *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	if err := ah.service.LogoutAll(actor(c).ID); err != nil {
		return fail(c, err)
	}
	ah.clearCookies(c)
	return c.JSON(fiber.Map{"status": "ok", "message": "Todas as sessões encerradas"})
}

func (ah *AuthHandler) setCookies(c *fiber.Ctx, res models.AuthResponse) {
	c.Cookie(&fiber.Cookie{
		Name: "access_token", Value: res.AccessToken, Expires: time.Now().Add(time.Duration(res.ExpiresIn) * time.Second),
		HTTPOnly: true, Secure: ah.secure, SameSite: "Lax", Path: "/",
	})
	c.Cookie(&fiber.Cookie{
		Name: "refresh_token", Value: res.RefreshToken, Expires: time.Now().Add(30 * 24 * time.Hour),
		HTTPOnly: true, Secure: ah.secure, SameSite: "Lax", Path: "/",
	})
}

func (ah *AuthHandler) clearCookies(c *fiber.Ctx) {
	for _, name := range []string{"access_token", "refresh_token"} {
		c.Cookie(&fiber.Cookie{
			Name: name, Value: "", Expires: time.Now().Add(-1 * time.Hour),
			HTTPOnly: true, Path: "/",
		})
	}
}

package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by access tokens.
type Claims struct {
	UserID      int    `json:"user_id"`
	UUID        string `json:"uuid"`
	Username    string `json:"username"`
	IsAdmin     bool   `json:"is_admin"`
	IsModerator bool   `json:"is_moderator"`
	jwt.RegisteredClaims
}

func tokenFrom(c *fiber.Ctx) string {
	if auth := c.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return auth[7:]
	}
	if tok := c.Cookies("access_token"); tok != "" {
		return tok
	}
	// browsers cannot set headers on websocket upgrades
	return c.Query("token")
}

func parse(secret, tokenStr string) (*Claims, bool) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.UserID <= 0 {
		return nil, false
	}
	return claims, true
}

func setLocals(c *fiber.Ctx, claims *Claims) {
	c.Locals("user_id", claims.UserID)
	c.Locals("user_uuid", claims.UUID)
	c.Locals("username", claims.Username)
	c.Locals("is_admin", claims.IsAdmin)
	c.Locals("is_moderator", claims.IsModerator)
}

// Auth rejects requests without a valid access token.
func Auth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := tokenFrom(c)
		if tokenStr == "" {
			return c.Status(401).JSON(fiber.Map{"status": "error", "message": "Faça login para continuar"})
		}
		claims, ok := parse(secret, tokenStr)
		if !ok {
			return c.Status(401).JSON(fiber.Map{"status": "error", "message": "Sessão inválida ou expirada"})
		}
		setLocals(c, claims)
		return c.Next()
	}
}

// OptionalAuth fills the user locals when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenStr := tokenFrom(c); tokenStr != "" {
			if claims, ok := parse(secret, tokenStr); ok {
				setLocals(c, claims)
			}
		}
		return c.Next()
	}
}

func Admin(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if isAdmin, _ := c.Locals("is_admin").(bool); isAdmin {
			return c.Next()
		}
		if c.Get("X-Admin-Key") != key {
			return c.Status(403).JSON(fiber.Map{"status": "error", "message": "Acesso negado: chave administrativa inválida"})
		}
		return c.Next()
	}
}

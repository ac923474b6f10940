package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, key string, claims Claims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func whoami(c *fiber.Ctx) error {
	id, _ := c.Locals("user_id").(int)
	admin, _ := c.Locals("is_admin").(bool)
	return c.JSON(fiber.Map{"user_id": id, "is_admin": admin})
}

func TestAuthAcceptsBearerAndCookie(t *testing.T) {
	app := fiber.New()
	app.Get("/me", Auth(secret), whoami)
	tok := sign(t, secret, Claims{UserID: 4, UUID: "u-4", Username: "ana"})

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(4), body["user_id"])

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Cookie", "access_token="+tok)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestAuthRejects(t *testing.T) {
	app := fiber.New()
	app.Get("/me", Auth(secret), whoami)

	resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, "other", Claims{UserID: 1}))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	expired := Claims{UserID: 1}
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, secret, expired))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestOptionalAuthLetsAnonymousThrough(t *testing.T) {
	app := fiber.New()
	app.Get("/feed", OptionalAuth(secret), whoami)

	resp, err := app.Test(httptest.NewRequest("GET", "/feed", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(0), body["user_id"])
}

func TestAdmin(t *testing.T) {
	app := fiber.New()
	app.Post("/materials", OptionalAuth(secret), Admin("k"), whoami)

	req := httptest.NewRequest("POST", "/materials", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)

	req = httptest.NewRequest("POST", "/materials", nil)
	req.Header.Set("X-Admin-Key", "k")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	req = httptest.NewRequest("POST", "/materials", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, secret, Claims{UserID: 1, IsAdmin: true}))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestWriteLimiter(t *testing.T) {
	app := fiber.New()
	app.Use(WriteLimiter(2, time.Minute))
	app.All("/x", func(c *fiber.Ctx) error { return c.SendStatus(200) })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/x", nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	}
	resp, err := app.Test(httptest.NewRequest("POST", "/x", nil))
	require.NoError(t, err)
	assert.Equal(t, 429, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/x", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestOptionalAuthReadsQueryToken(t *testing.T) {
	app := fiber.New()
	app.Get("/ws", OptionalAuth(secret), whoami)
	tok := sign(t, secret, Claims{UserID: 9, Username: "caio"})

	resp, err := app.Test(httptest.NewRequest("GET", "/ws?token="+tok, nil))
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(9), body["user_id"])
}

package server

import (
	"technobug/pkg/apperr"
	"technobug/pkg/config"
	"technobug/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func NewApp(name string, cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:           name,
		ReduceMemoryUsage: true,
		BodyLimit:         8 * 1024 * 1024,
		ErrorHandler:      errorHandler,
	})

	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(cors.New(middleware.CORSConfig(cfg.AllowedOrigins)))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": name})
	})

	return app
}

// errorHandler keeps unhandled errors in the {status, message} shape the
// pages read.
func errorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(fiber.Map{"status": "error", "message": fe.Message})
	}
	return c.Status(apperr.Status(err)).JSON(fiber.Map{"status": "error", "message": apperr.Message(err)})
}

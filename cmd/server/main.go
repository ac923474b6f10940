package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"technobug/pkg/broker"
	"technobug/pkg/cache"
	"technobug/pkg/config"
	"technobug/pkg/database"
	"technobug/pkg/handlers"
	"technobug/pkg/hub"
	"technobug/pkg/middleware"
	"technobug/pkg/models"
	"technobug/pkg/repository"
	"technobug/pkg/server"
	"technobug/pkg/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func main() {
	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[PORTAL] Database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("[PORTAL] Migrations: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("[PORTAL] Connecting to Redis...")
	redis, err := cache.Open(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[PORTAL] Redis: %v", err)
	}
	defer redis.Close()
	log.Println("[PORTAL] Redis connected")

	wsHub := hub.New()
	events := broker.New(redis.Client())
	events.On(broker.Wildcard, wsHub.Deliver)
	if err := events.Subscribe(); err != nil {
		log.Fatalf("[PORTAL] Broker: %v", err)
	}
	defer events.Close()

	authRepo := repository.NewAuthRepository(db)
	socialRepo := repository.NewSocialRepository(db)
	materialsRepo := repository.NewMaterialsRepository(db)
	progressRepo := repository.NewProgressRepository(db)

	authSvc := services.NewAuthService(authRepo, cfg.JWTSecret)
	socialSvc := services.NewSocialService(socialRepo, redis, events)
	profileSvc := services.NewProfileService(authRepo, authSvc, cfg.UploadDir, cfg.UploadURL)
	materialsSvc := services.NewMaterialsService(materialsRepo, socialRepo, redis)
	progressSvc := services.NewProgressService(progressRepo)

	go cleanExpiredSessions(ctx, authSvc)

	auth := handlers.NewAuth(authSvc, cfg.Production)
	social := handlers.NewSocial(socialSvc)
	profile := handlers.NewProfile(profileSvc)
	materials := handlers.NewMaterials(materialsSvc)
	progress := handlers.NewProgress(progressSvc)
	prefs := handlers.NewSettings(redis)

	app := server.NewApp("technobug", cfg)
	app.Static(cfg.UploadURL, cfg.UploadDir)

	requireAuth := middleware.Auth(cfg.JWTSecret)
	optionalAuth := middleware.OptionalAuth(cfg.JWTSecret)
	writes := middleware.WriteLimiter(30, time.Minute)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", ipLimiter(5), auth.Register)
	authGroup.Post("/login", ipLimiter(10), auth.Login)
	authGroup.Post("/refresh", auth.Refresh)
	authGroup.Post("/logout", optionalAuth, auth.Logout)
	authGroup.Get("/me", requireAuth, auth.Me)
	authGroup.Post("/logout-all", requireAuth, auth.LogoutAll)

	app.Get("/hub/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"clients":       wsHub.ClientCount(),
			"authenticated": wsHub.AuthenticatedCount(),
		})
	})
	app.Get("/ws", optionalAuth, wsHub.Handler())

	// ── Feed and threads (public read) ──
	app.Get("/posts", optionalAuth, social.Feed)
	app.Get("/posts/:id", optionalAuth, social.Thread)
	app.Get("/get_post_likes/:id", optionalAuth, social.GetPostLikes)
	app.Get("/get_comment_likes/:id", optionalAuth, social.GetCommentLikes)

	// ── Interactions (auth) ──
	member := func(h fiber.Handler) []fiber.Handler {
		return []fiber.Handler{requireAuth, writes, h}
	}
	app.Post("/posts", member(social.CreatePost)...)
	app.Post("/comment/:postId", member(social.Comment)...)
	app.Post("/reply/:commentId", member(social.Reply)...)
	app.Post("/edit_comment/:id", member(social.EditComment)...)
	app.Post("/edit_reply/:id", member(social.EditReply)...)
	app.Post("/like_post/:id", member(social.LikePost)...)
	app.Post("/like_comment/:id", member(social.LikeComment)...)
	for _, method := range []string{fiber.MethodPost, fiber.MethodDelete} {
		app.Add(method, "/delete_post/:id", member(social.DeletePost)...)
		app.Add(method, "/delete_comment/:id", member(social.DeleteComment)...)
		app.Add(method, "/delete_reply/:id", member(social.DeleteReply)...)
	}

	// ── Profile and progress (auth) ──
	app.Post("/update_username", member(profile.UpdateUsername)...)
	app.Post("/update_profile_pic", member(profile.UpdateProfilePic)...)
	app.Post("/visit/:page", member(progress.Visit)...)
	app.Get("/user_progress", requireAuth, progress.Progress)
	app.Get("/settings", requireAuth, prefs.Get)
	app.Post("/settings", member(prefs.Set)...)

	// ── Study materials (public read, admin write) ──
	app.Get("/data/pdfs.json", materials.List(models.KindPDF))
	app.Get("/data/pdfs_slides.json", materials.List(models.KindPDF, models.KindSlide))
	app.Get("/data/videos.json", materials.List(models.KindVideo))
	app.Get("/data/codes.json", materials.List(models.KindCode))
	app.Get("/search", materials.Search)
	app.Post("/materials", optionalAuth, middleware.Admin(cfg.AdminKey), materials.Create)
	app.Post("/materials/:id/view", writes, materials.View)
	app.Post("/materials/:id/download", writes, materials.Download)

	go func() {
		<-ctx.Done()
		log.Println("[PORTAL] Shutting down...")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	addr := "0.0.0.0:" + cfg.Port
	log.Printf("[PORTAL] WebSocket: ws://<domain>/ws")
	log.Printf("[PORTAL] Server starting on %s", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("[PORTAL] Failed to start: %v", err)
	}
}

func ipLimiter(max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	})
}

func cleanExpiredSessions(ctx context.Context, auth services.AuthService) {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := auth.PurgeExpired(); err != nil {
				log.Printf("[PORTAL] Session cleanup: %v", err)
			} else if n > 0 {
				log.Printf("[PORTAL] Removed %d expired sessions", n)
			}
		}
	}
}

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"shortreel-backend/internal/analytics"
	"shortreel-backend/internal/cache"
	"shortreel-backend/internal/config"
	"shortreel-backend/internal/database"
	"shortreel-backend/internal/handler"
	"shortreel-backend/internal/middleware"
	"shortreel-backend/internal/repository"
	"shortreel-backend/internal/service"
)

func main() {
	// Structured logging
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.DB)
	if err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to Redis (non-fatal if unavailable)
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		slog.Warn("Redis unavailable, running on local cache only", "error", err)
	}

	// Initialize layers
	store := cache.New(rdb)
	tracker := analytics.NewTracker(db)

	titleRepo := repository.NewTitleRepository(db)
	episodeRepo := repository.NewEpisodeRepository(db)
	userRepo := repository.NewUserRepository(db)
	watchRepo := repository.NewWatchRepository(db)

	ranker := service.NewRanker(cfg.Scoring, nil)
	prefetchSvc := service.NewPrefetchService(episodeRepo, watchRepo, store, cfg.Prefetch)
	watchSvc := service.NewWatchService(watchRepo, episodeRepo, titleRepo, userRepo, store, tracker, cfg.Feed)
	feedSvc := service.NewFeedService(titleRepo, episodeRepo, userRepo, watchRepo,
		store, tracker, ranker, prefetchSvc, cfg.Cache)
	userSvc := service.NewUserService(userRepo, store, tracker)
	adminSvc := service.NewAdminService(titleRepo, episodeRepo, store)

	feedH := handler.NewFeedHandler(feedSvc, watchSvc, prefetchSvc)
	contentH := handler.NewContentHandler(feedSvc)
	watchH := handler.NewWatchHandler(watchSvc)
	userH := handler.NewUserHandler(userSvc)
	adminH := handler.NewAdminHandler(adminSvc)
	analyticsH := handler.NewAnalyticsHandler(tracker)
	healthH := handler.NewHealthHandler(db, rdb)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "ShortReel Backend",
		ServerHeader: "ShortReel",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			slog.Error("unhandled error", "error", err, "status", code)
			return c.Status(code).JSON(handler.Response{Success: false, Error: err.Error()})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())
	app.Use(middleware.NewRateLimiter(rdb, cfg.RateLimit).Handler())

	// API routes
	api := app.Group("/api")
	api.Get("/health", healthH.Health)

	feed := api.Group("/feed")
	feed.Get("/random", feedH.GetRandomFeed)
	feed.Post("/personalized", feedH.GetPersonalizedFeed)
	feed.Get("/trending", feedH.GetTrending)
	feed.Get("/featured", feedH.GetFeatured)
	feed.Get("/editors-picks", feedH.GetEditorsPicks)
	feed.Get("/popular/:genre", feedH.GetPopularByGenre)
	feed.Get("/continue/:userId", feedH.GetContinueWatching)
	feed.Get("/search", feedH.Search)
	feed.Get("/prefetch/:userId/:titleId", feedH.GetSmartPrefetch)

	content := api.Group("/content")
	content.Get("/:titleId", contentH.GetTitle)
	content.Get("/:titleId/episodes", contentH.GetEpisodes)
	content.Get("/:titleId/similar", contentH.GetSimilar)

	episodes := api.Group("/episodes")
	episodes.Get("/:episodeId", contentH.GetEpisode)
	episodes.Post("/:episodeId/start", watchH.StartWatching)
	episodes.Put("/:episodeId/progress", watchH.UpdateProgress)
	episodes.Post("/:episodeId/complete", watchH.MarkCompleted)
	episodes.Post("/:episodeId/like", watchH.ToggleLike)
	episodes.Post("/:episodeId/share", watchH.Share)

	watchlist := api.Group("/watchlist")
	watchlist.Get("/:userId", watchH.GetWatchlist)
	watchlist.Post("/:userId/:titleId/rate", watchH.Rate)
	watchlist.Delete("/:userId/clear", watchH.ClearHistory)

	users := api.Group("/users")
	users.Get("/:userId", userH.GetProfile)
	users.Put("/:userId/preferences", userH.UpdatePreferences)
	users.Post("/:userId/swipe", userH.RecordSwipe)

	api.Post("/analytics/track", analyticsH.Track)

	admin := api.Group("/admin", middleware.AdminAuth(cfg.JWTSecret))
	admin.Put("/titles", adminH.SaveTitle)
	admin.Put("/episodes", adminH.SaveEpisode)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	addr := ":" + cfg.Port
	slog.Info("starting shortreel backend", "addr", addr)
	if err := app.Listen(addr); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	// Drain buffered analytics before exit
	tracker.Close()
}

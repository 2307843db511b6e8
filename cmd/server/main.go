package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/clipnote/api/internal/archive"
	"github.com/clipnote/api/internal/config"
	"github.com/clipnote/api/internal/dispatch"
	"github.com/clipnote/api/internal/engine"
	"github.com/clipnote/api/internal/handler"
	"github.com/clipnote/api/internal/middleware"
	"github.com/clipnote/api/internal/service"
	"github.com/clipnote/api/internal/storage"
	"github.com/clipnote/api/internal/worker"
	ws "github.com/clipnote/api/internal/websocket"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Error("failed to create upload directories", "error", err)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis not available", "error", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	dispatcher := dispatch.NewAsynqDispatcher(redisOpt)
	defer dispatcher.Close()

	validate := validator.New()

	hub := ws.NewHub(log)
	go hub.Run()

	paths := archive.Paths{
		VideoDir:      cfg.Storage.VideoDir,
		SubtitleDir:   cfg.Storage.SubtitleDir,
		ScreenshotDir: cfg.Storage.ScreenshotDir,
		ExportDir:     cfg.Storage.ExportDir,
		APIPrefix:     cfg.Server.APIPrefix,
	}
	packer := archive.NewPacker(db, paths)
	unpacker := archive.NewUnpacker(db, paths)
	ffmpeg := engine.NewFFmpegEngine()

	authService := service.NewAuthService(db)
	storeService := service.NewStoreService(db)
	uploadService := service.NewUploadService(cfg)
	jobService := service.NewJobService(db, dispatcher, cfg, log)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, cfg.JWT.Expiration)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	authHandler := handler.NewAuthHandler(authService, authMiddleware, validate)
	storeHandler := handler.NewStoreHandler(storeService, validate)
	uploadHandler := handler.NewUploadHandler(uploadService)
	jobHandler := handler.NewJobHandler(jobService, validate)
	exportHandler := handler.NewExportHandler(jobService, uploadService, validate)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    512 * 1024 * 1024, // video uploads
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.Origins, ","),
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	prefix := strings.TrimSuffix(cfg.Server.APIPrefix, "/")

	// Auth routes are the only unauthenticated part of the API.
	app.Post(prefix+"/signup", authHandler.Signup)
	app.Post(prefix+"/token", authHandler.Login)

	api := app.Group(prefix, authMiddleware.Authenticate())

	api.Get("/renew-token", authHandler.RenewToken)

	// Uploaded assets are served back under the same URLs the upload
	// endpoints return.
	api.Static("/uploads", cfg.Storage.DataDir+"/uploads")

	api.Post("/save-store", storeHandler.Save)
	api.Post("/load-store", storeHandler.Load)

	api.Post("/upload-video", rateLimiter.UploadLimit(cfg.RateLimit.UploadsPerHour), uploadHandler.Video)
	api.Post("/upload-subtitles/:projectid?", rateLimiter.UploadLimit(cfg.RateLimit.UploadsPerHour), uploadHandler.Subtitles)

	jobs := rateLimiter.JobLimit(cfg.RateLimit.JobsPerHour)
	api.Post("/get-video-info", jobs, jobHandler.VideoInfo)
	api.Post("/shotboundary-detection", jobs, jobHandler.ShotDetection)
	api.Post("/screenshots-generation", jobs, jobHandler.Screenshots)
	api.Get("/get-jobs/:projectid?", jobHandler.List)
	api.Get("/get-result/:jobid", jobHandler.Result)
	api.Get("/terminate-job/:jobid", jobHandler.Terminate)

	exports := rateLimiter.ExportLimit(cfg.RateLimit.ExportsPerHour)
	api.Post("/export-screenshots", exports, exportHandler.Screenshots)
	api.Post("/export-project", exports, exportHandler.Project)
	api.Post("/import-project", exports, exportHandler.Import)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID, err := strconv.ParseInt(c.Params("jobId"), 10, 64)
		if err != nil {
			c.Close()
			return
		}
		hub.HandleConnection(c, jobID)
	}))

	go startWorkerServer(redisOpt, db, ffmpeg, packer, unpacker, hub, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Info("server starting", "addr", addr)
	if err := app.Listen(addr); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func startWorkerServer(redisOpt asynq.RedisClientOpt, db *storage.DB, eng engine.Engine,
	packer *archive.Packer, unpacker *archive.Unpacker, hub *ws.Hub, log *slog.Logger) {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 4,
		Queues: map[string]int{
			dispatch.QueueDefault: 1,
		},
	})

	mux := asynq.NewServeMux()
	worker.New(db, eng, packer, unpacker, hub, log).Register(mux)

	if err := srv.Run(mux); err != nil {
		log.Error("asynq worker error", "error", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}

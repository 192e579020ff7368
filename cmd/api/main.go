package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"staff-tracker/configs"
	v1 "staff-tracker/internal/api/v1"
	"staff-tracker/internal/api/v1/handlers"
	"staff-tracker/internal/blobstore"
	"staff-tracker/internal/cache"
	"staff-tracker/internal/config"
	"staff-tracker/internal/middleware"
	"staff-tracker/internal/notify"
	"staff-tracker/internal/repository"
	"staff-tracker/internal/service/auth"
	"staff-tracker/internal/service/files"
	"staff-tracker/internal/service/tasks"
	"staff-tracker/internal/session"
	"staff-tracker/internal/websocket"
	"staff-tracker/pkg/database"
	"staff-tracker/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"
)

func main() {
	cfg := configs.LoadConfig()

	logger.InitLoggers(cfg.LogDir)
	defer logger.SyncLoggers()
	logger.SystemLogger.Info("Starting application", zap.String("time", time.Now().Format(time.RFC3339)))

	if err := cfg.CheckJWTSecret(); err != nil {
		logger.ErrorLogger.Error("Unsafe configuration", zap.Error(err))
		log.Fatalf("Unsafe configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.DB = database.ConnectDB(cfg)
	defer config.DB.Close()
	logger.SystemLogger.Info("Database connected")

	if err := repository.CreateTableIfNotExists(config.DB); err != nil {
		logger.ErrorLogger.Error("Creating schema", zap.Error(err))
		log.Fatalf("Could not create schema: %v", err)
	}

	if seed, err := cfg.BootstrapAdminEnabled(); err != nil {
		logger.ErrorLogger.Error("Skipping bootstrap admin", zap.Error(err))
	} else if seed {
		_, err := repository.CreateAdminUser(config.DB, strings.ToLower(cfg.BootstrapAdminEmail),
			cfg.BootstrapAdminName, cfg.BootstrapAdminIndexCode, cfg.BootstrapAdminPassword)
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			logger.SystemLogger.Info("Bootstrap admin already exists")
		case err != nil:
			logger.ErrorLogger.Error("Creating bootstrap admin", zap.Error(err))
		}
	}

	var taskCache *cache.TaskCache
	if !cfg.RedisCacheDisabled {
		config.RedisClient = database.ConnectRedis(ctx, cfg)
		defer config.RedisClient.Close()
		taskCache = cache.NewTaskCache(config.RedisClient)
	}

	repoStore, err := blobstore.NewDiskStore(cfg.RepositoryDir)
	if err != nil {
		log.Fatalf("Could not open repository store: %v", err)
	}
	pictureStore, err := blobstore.NewDiskStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("Could not open upload store: %v", err)
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)

	accounts := repository.NewAccounts(config.DB)
	mailer := notify.NewSMTPMailer(cfg.SMTPServer, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	if !mailer.Configured() {
		logger.SystemLogger.Warn("SMTP not configured, completion emails will fail")
	}
	notifier := notify.NewTaskNotifier(accounts.Admins, accounts.Users, mailer, hub)

	policy := auth.DefaultPolicy()
	policy.MaxFailedAttempts = cfg.MaxFailedLogins
	policy.LockoutDuration = cfg.LockoutDuration
	policy.PasswordMaxAge = cfg.PasswordMaxAge

	h := &handlers.Handler{
		Auth:        auth.NewService(accounts, accounts.Users, policy),
		Tasks:       tasks.NewService(config.DB, accounts.Admins, tasks.WithCache(taskCache), tasks.WithNotifier(notifier)),
		Files:       files.NewService(config.DB, repoStore, pictureStore, accounts.Users),
		Users:       accounts.Users,
		Admins:      accounts.Admins,
		Sessions:    session.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		CommitDedup: cfg.CommitDedup,
	}

	app := fiber.New(fiber.Config{BodyLimit: 64 << 20})

	// Middleware
	app.Use(middleware.ErrorHandler())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))
	app.Static("/uploads", cfg.UploadDir)

	v1.RegisterRoutes(app, h, hub)

	go func() {
		<-ctx.Done()
		logger.SystemLogger.Info("Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.ErrorLogger.Error("Shutdown failed", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.AppPort)
	logger.SystemLogger.Info("Application ready", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.ErrorLogger.Error("Application failed to start", zap.Error(err))
	}
}

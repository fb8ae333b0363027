package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"footscan-backend/internal/config"
	"footscan-backend/internal/database"
	"footscan-backend/internal/handlers"
	"footscan-backend/internal/logger"
	"footscan-backend/internal/middleware"
	"footscan-backend/internal/services"
	"footscan-backend/internal/sessionlock"
	"footscan-backend/internal/supabase"
	"footscan-backend/internal/vision"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Run migrations
	migrator, err := database.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("Failed to initialize migrator", zap.Error(err))
	}
	if err := migrator.Run(); err != nil {
		migrator.Close()
		zapLogger.Fatal("Migration failed", zap.Error(err))
	}
	migrator.Close()

	// Database client
	dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("Failed to initialize database client", zap.Error(err))
	}
	defer dbClient.Close()

	// Supabase clients
	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		zapLogger.Fatal("Failed to initialize Supabase client", zap.Error(err))
	}

	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket)
	if err != nil {
		zapLogger.Fatal("Failed to initialize storage client", zap.Error(err))
	}

	realtimeClient := supabase.NewRealtimeClient(supabaseClient)

	// Vision service client
	visionClient := vision.NewClient(cfg.VisionAPIBaseURL, cfg.VisionAPIKey)

	// Per-session lock: Redis when configured, in-process otherwise
	var locker sessionlock.Locker
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		locker = sessionlock.NewRedisLocker(redisClient, 30*time.Second)
		zapLogger.Info("Using Redis session locking", zap.String("addr", cfg.RedisAddr))
	} else {
		locker = sessionlock.NewLocalLocker()
		zapLogger.Info("REDIS_ADDR not set, using in-process session locking")
	}

	// Measurement orchestration
	measurementService := services.NewMeasurementService(
		dbClient, storageClient, visionClient, realtimeClient, locker, zapLogger)

	sessionsHandler := handlers.NewSessionsHandler(measurementService)
	analyzeHandler := handlers.NewAnalyzeHandler(measurementService)

	// Setup router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Health check (no auth)
	router.GET("/health", handlers.HealthHandler)

	// API routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	api.POST("/measurement-sessions", sessionsHandler.CreateSession)
	api.GET("/measurement-sessions", sessionsHandler.ListSessions)
	api.GET("/measurement-sessions/:session_id", sessionsHandler.GetSession)
	api.POST("/measurement-sessions/:session_id/photos/:photo_number/analyze", analyzeHandler.AnalyzePhoto)

	zapLogger.Info("Server starting", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		zapLogger.Fatal("Failed to start server", zap.Error(err))
	}
}

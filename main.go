package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/config"
	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/handler"
	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/middleware"
	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/pkg/logger"
	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/service"
)

func main() {
	// Load .env before config so env overrides pick it up
	if err := godotenv.Load(); err == nil {
		slog.Info(".env file loaded")
	}

	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	// Initialize the review store
	var store service.ReviewStore
	switch cfg.Store.Backend {
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mongoStore, err := service.NewMongoStore(ctx, &cfg.Store)
		cancel()
		if err != nil {
			slog.Error("failed to initialize mongo store", "error", err)
			os.Exit(1)
		}
		store = mongoStore
		slog.Info("review store initialized", "backend", "mongo", "database", cfg.Store.Database)
	default:
		store = service.NewMemoryStore(&cfg.Store)
		slog.Info("review store initialized", "backend", "memory", "max_reviews", cfg.Store.MaxReviews)
	}

	// Initialize the processing pipeline
	limiter := service.NewRateLimiter(cfg.RateLimit.Requests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)
	providers := service.NewProviderChain(&cfg.Provider)
	broadcaster := service.NewStatusBroadcaster()
	processor := service.NewReviewProcessor(store, limiter, providers, broadcaster, &cfg.Provider)
	stats := service.NewStatsAggregator(store)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	reviewHandler := handler.NewReviewHandler(processor, store, stats)
	eventsHandler := handler.NewEventsHandler(store, broadcaster)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	// Add custom middleware
	router.Use(middleware.RequestID())     // Request ID for tracing
	router.Use(middleware.Recovery())      // Panic recovery
	router.Use(middleware.RequestLogger()) // Access logging
	router.Use(corsMiddleware())           // CORS

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)

		// Reviews work anonymously; a valid token attaches the user
		reviews := api.Group("/reviews")
		reviews.Use(middleware.OptionalAuth(&cfg.Auth))
		{
			reviews.POST("", reviewHandler.Create)
			reviews.GET("", reviewHandler.List)
			reviews.GET("/stats", reviewHandler.Stats)
			reviews.GET("/:id", reviewHandler.Get)
			reviews.GET("/:id/events", eventsHandler.Subscribe)
		}
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Let in-flight reviews reach a terminal state before exiting
	done := make(chan struct{})
	go func() {
		processor.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		slog.Warn("shutdown timed out waiting for in-flight reviews")
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

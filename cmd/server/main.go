package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/reelboard/backend/internal/api"
	"github.com/reelboard/backend/internal/captioner"
	"github.com/reelboard/backend/internal/config"
	"github.com/reelboard/backend/internal/history"
	"github.com/reelboard/backend/internal/pipeline"
	"github.com/reelboard/backend/internal/planner"
	"github.com/reelboard/backend/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if level, err := logrus.ParseLevel(cfg.Advanced.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Initialize storage
	var store storage.Store
	if cfg.UseS3() {
		store, err = storage.NewS3Store(ctx, cfg.Storage.S3Bucket, cfg.Storage.S3Region)
	} else {
		baseURL := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
		store, err = storage.NewLocalStore(cfg.GetUploadDir(), baseURL)
	}
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	// Connect Postgres and migrate
	historyStore, err := history.Open(cfg.DatabaseURL)
	if err != nil {
		fmt.Printf("Failed to initialize history store: %v\n", err)
		os.Exit(1)
	}

	// Ordering model (OpenAI-compatible) and caption model (Ark)
	orderingModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.OrderingAPIKey,
		Model:   cfg.Generation.OrderingModel,
		BaseURL: cfg.Generation.OrderingBaseURL,
	})
	if err != nil {
		fmt.Printf("Failed to create ordering model: %v\n", err)
		os.Exit(1)
	}

	captionModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		APIKey: cfg.CaptionAPIKey,
		Model:  cfg.Generation.CaptionModel,
	})
	if err != nil {
		fmt.Printf("Failed to create caption model: %v\n", err)
		os.Exit(1)
	}

	plnr, err := planner.New(orderingModel)
	if err != nil {
		fmt.Printf("Failed to initialize planner: %v\n", err)
		os.Exit(1)
	}
	capt := captioner.New(captionModel, cfg.Generation.CaptionMaxRetries)

	orch := pipeline.New(plnr, capt, historyStore, pipeline.Config{
		Concurrency:  cfg.Generation.CaptionConcurrency,
		SubmitDelay:  time.Duration(cfg.Generation.SubmitDelayMs) * time.Millisecond,
		InlineImages: cfg.Generation.InlineImages,
	})

	h := api.NewHandler(store, plnr, capt, orch, historyStore, cfg.Generation.FramesPerSlideshow)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler

	// Configure middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			return c.Request().URL.Path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			// Batch generation streams for the lifetime of a run.
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/generate") ||
				strings.Contains(path, "/upload") ||
				c.Request().Header.Get("Accept") == "text/event-stream"
		},
		ErrorMessage: "Request timeout",
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	// API Routes
	apiGroup := e.Group("/api")

	apiGroup.GET("/health", h.HandleHealth)

	// File management
	apiGroup.POST("/files/upload", h.HandleUploadFiles)
	apiGroup.GET("/files/recent", h.HandleRecentFiles)
	apiGroup.GET("/files/:id", h.HandleGetFile)
	apiGroup.DELETE("/files/:id", h.HandleDeleteFile)

	// Slideshow generation
	apiGroup.POST("/slideshows/order", h.HandleOrder)
	apiGroup.POST("/slideshows/caption", h.HandleCaption)
	apiGroup.POST("/slideshows/generate", h.HandleGenerate)

	// History
	apiGroup.GET("/history", h.HandleHistoryList)
	apiGroup.GET("/history/:id", h.HandleHistoryDetail)
	apiGroup.GET("/history/:id/msgpack", h.HandleHistoryDetailMsgpack)

	// Serve locally stored uploads
	if !cfg.UseS3() {
		e.Static("/uploads", cfg.GetUploadDir())
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	logrus.WithFields(logrus.Fields{
		"version":   Version,
		"buildTime": BuildTime,
		"addr":      cfg.GetServerAddr(),
		"storage":   storageMode(cfg),
	}).Info("server starting")

	e.Logger.Fatal(e.StartServer(s))
}

func storageMode(cfg *config.AppConfig) string {
	if cfg.UseS3() {
		return "s3:" + cfg.Storage.S3Bucket
	}
	return "local:" + cfg.GetUploadDir()
}

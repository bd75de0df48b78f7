package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pyqtest-server-go/ai"
	"pyqtest-server-go/config"
	"pyqtest-server-go/db"
	"pyqtest-server-go/grading"
	"pyqtest-server-go/handlers"
	"pyqtest-server-go/logger"
	"pyqtest-server-go/middleware"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Redis Client
	redisClient, err := db.InitializeRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal("failed to connect to Redis", "addr", cfg.RedisAddr, "error", err)
	}
	defer redisClient.Close()
	log.Info("connected to Redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)

	store := db.NewRedisService(redisClient, log.With("component", "store"))

	if cfg.Seed {
		if _, err := store.SeedIfEmpty(ctx); err != nil {
			log.Warn("failed to seed sample data", "error", err)
		}
	}

	var (
		comparer  grading.AnswerComparer
		extractor handlers.QuestionExtractor
	)
	gradingOpts := []grading.Option{
		grading.WithWorkers(cfg.GradingWorkers),
		grading.WithLogger(log.With("component", "grading")),
	}
	if cfg.AIEnabled() {
		client := ai.NewClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AITimeout, log.With("component", "ai"))
		comparer, extractor = client, client
		if cfg.GradingAIFallback {
			gradingOpts = append(gradingOpts, grading.WithComparer(client))
		}
		log.Info("AI functions enabled", "base_url", cfg.AIBaseURL, "grading_fallback", cfg.GradingAIFallback)
	} else {
		log.Info("AI functions disabled, grading is lexical only")
	}
	grader := grading.New(gradingOpts...)

	apiHandler := handlers.NewAPIHandler(store, grader, comparer, extractor, log.With("component", "http"))

	if cfg.LogMode == "prod" || cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.CORS(cfg.CORSOrigins), middleware.RequestLogger(log))
	apiHandler.RegisterRoutes(router.Group("/api"))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("starting server", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("failed to run server", "error", err)
	}
	log.Info("server stopped")
}

package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/double-tu/youtube-subtitle-proxy/internal/cache"
	"github.com/double-tu/youtube-subtitle-proxy/internal/config"
	"github.com/double-tu/youtube-subtitle-proxy/internal/fetcher"
	"github.com/double-tu/youtube-subtitle-proxy/internal/handler"
	"github.com/double-tu/youtube-subtitle-proxy/internal/lifecycle"
	"github.com/double-tu/youtube-subtitle-proxy/internal/middleware"
	"github.com/double-tu/youtube-subtitle-proxy/internal/segmenter"
	"github.com/double-tu/youtube-subtitle-proxy/internal/store"
	"github.com/double-tu/youtube-subtitle-proxy/internal/translator"
	"github.com/double-tu/youtube-subtitle-proxy/internal/worker"
)

func main() {
	cfg := config.Load()

	// Initialize store (creating tables if absent).
	st, err := store.Connect(cfg.StorePath)
	if err != nil {
		log.Fatalf("Failed to connect to store: %v", err)
	}
	if err := store.Migrate(st); err != nil {
		log.Fatalf("Failed to migrate store: %v", err)
	}

	jobTTL := time.Duration(cfg.CacheTTLHours) * time.Hour

	// Warm the LRU empty. Its TTL equals the job-row TTL, counted from when an
	// entry enters memory rather than from the row's creation.
	c, err := cache.New(st, cfg.LRUMaxItems, jobTTL)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}

	f := fetcher.New(cfg.UpstreamFetchTimeout, cfg.SRV3OverlapGapMs)

	llmClient := translator.NewOpenAIClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)
	tr := translator.New(llmClient, translator.Config{
		SummaryEnabled:     cfg.SummaryEnabled,
		SummaryChunkChars:  cfg.SummaryChunkChars,
		GlossaryEnabled:    cfg.GlossaryEnabled,
		GlossaryChunkChars: cfg.GlossaryChunkChars,
		ContextEnabled:     cfg.ContextEnabled,
		BatchSize:          cfg.ContextBatchSize,
		PrecedingLines:     cfg.PrecedingLines,
		FollowingLines:     cfg.FollowingLines,
		Concurrency:        cfg.ContextConcurrency,
		BatchRetries:       cfg.ContextBatchRetries,
		MaxTokens:          cfg.ContextMaxTokens,
		SimpleConcurrency:  cfg.ContextConcurrency,
		SimpleWaveDelayMs:  200,
	})

	segParams := segmenter.Params{
		MinDurationMs:  cfg.SegmentMinDurationMs,
		MaxDurationMs:  cfg.SegmentMaxDurationMs,
		GapThresholdMs: cfg.SegmentGapMs,
		MaxChars:       cfg.SegmentMaxChars,
		MaxWords:       cfg.SegmentMaxWords,
		OverlapGapMs:   int64(cfg.SRV3OverlapGapMs),
	}

	pool := worker.New(st, c, f, tr, worker.Config{
		Concurrency:  cfg.QueueConcurrency,
		MaxRetries:   cfg.MaxRetries,
		RetryBaseMs:  cfg.RetryBaseMs,
		SegParams:    segParams,
		OverlapGapMs: cfg.SRV3OverlapGapMs,
	})

	subtitleHandler := handler.New(st, c, f, pool, jobTTL, cfg.SRV3OverlapGapMs)
	healthHandler := handler.NewHealth(st, c)

	cleanup := lifecycle.NewCleanup(st, time.Duration(cfg.CleanupIntervalMs)*time.Millisecond)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool.Start(ctx)
	go cleanup.Start(ctx)
	go pool.StartRetryScanner(ctx, time.Duration(cfg.RetryBaseMs)*time.Millisecond, cfg.QueueConcurrency*4)

	r := gin.Default()
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")
	{
		api.GET("/subtitle", subtitleHandler.Get)
		api.GET("/timedtext", subtitleHandler.Get)
	}

	adminGroup := r.Group("/admin", middleware.AdminAuth(cfg.AdminToken))
	adminGroup.GET("/stats", healthHandler.AdminStats)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("youtube-subtitle-proxy starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutdown signal received, draining")

	cleanup.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	pool.Stop()

	if err := st.Close(); err != nil {
		log.Printf("store close error: %v", err)
	}

	log.Println("shutdown complete")
}

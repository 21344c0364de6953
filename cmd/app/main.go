// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gemini-chat-gateway/internal/config"
	"gemini-chat-gateway/internal/domain/ports/adapter"
	"gemini-chat-gateway/internal/domain/ports/repository"
	aiAdapters "gemini-chat-gateway/internal/infra/adapters/ai"
	pg "gemini-chat-gateway/internal/infra/db/postgres"
	"gemini-chat-gateway/internal/infra/logging"
	"gemini-chat-gateway/internal/infra/metrics"
	red "gemini-chat-gateway/internal/infra/redis"
	"gemini-chat-gateway/internal/infra/web"
	"gemini-chat-gateway/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI allowed, verbose logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}
	metrics.MustRegister()
	core := cfg.Core()

	// ---- Record store ----
	var (
		repo   repository.RecordRepository
		locker repository.Locker
	)
	var redisClient *red.Client
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
	}
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		pgRepo := pg.NewRecordRepo(pool)
		if err := pgRepo.Migrate(ctx); err != nil {
			log.Fatalf("postgres migrate: %v", err)
		}
		repo = pgRepo
	default:
		repo = red.NewRecordRepo(redisClient)
	}
	if cfg.Storage.PerKeyLock {
		locker = red.NewLocker(redisClient)
	}

	// ---- AI adapter ----
	var ai adapter.AIServiceAdapter
	if cfg.AI.GeminiKey != "" {
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.MaxOutputTokens)
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: Gemini")
	} else {
		ai = aiAdapters.NewNoopAIAdapter()
		logger.Warn().Msg("AI adapter: noop (dev mode, no gemini key)")
	}

	// ---- Use cases ----
	records := usecase.NewRecordStore(repo, locker, core, logger)
	stateUC := usecase.NewStateUseCase(records, core, logger)
	chatUC := usecase.NewChatUseCase(records, ai, core, cfg.AI.GeminiKey, logger)
	convUC := usecase.NewConversationUseCase(records, logger)
	redeemUC := usecase.NewRedeemUseCase(records, core, logger)

	// ---- Web ----
	var limiter *red.RateLimiter
	if redisClient != nil && cfg.RateLimit.ChatPerMinute > 0 {
		limiter = red.NewRateLimiter(redisClient)
	}
	sessions := web.NewSessionManager(cfg.Session)
	server := web.NewServer(stateUC, chatUC, convUC, redeemUC, sessions, limiter, cfg.RateLimit.ChatPerMinute, logger)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Routes(),
	}
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finboard/internal/auth"
	"finboard/internal/cache"
	"finboard/internal/cli"
	"finboard/internal/dashboard"
	apphttp "finboard/internal/http"
	"finboard/internal/log"
	"finboard/internal/metrics"
	"finboard/internal/session"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	be := cli.InitBackend(context.Background(), logger, cfg)

	tokens := auth.ParseStatic(cfg.AuthTokens)
	if cfg.AuthTokens == "" {
		logger.Warn("AUTH_TOKENS is empty, every API request will be rejected")
	}

	registry := session.NewRegistry(be.Store, tokens, session.Config{
		CacheTTL:     cfg.CacheTTL,
		CacheQuota:   cfg.CacheQuotaBytes,
		FetchTimeout: cfg.FetchTimeout,
		Logger:       logger,
	}, cfg.SessionIdleTimeout)

	cacheManager := cache.NewManager(logger)
	cacheManager.Register(registry)
	cacheManager.StartCleanup(time.Minute)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:     ":" + cfg.Port,
		Registry: registry,
		Builder:  dashboard.NewBuilder(metrics.DefaultCalculators(), nil),
		Ping:     be.Ping,
		Logger:   logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if err := be.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
	})

	go func() {
		logger.Info("Starting finboard server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"cache_ttl", cfg.CacheTTL.String(),
			log.FieldOperation, log.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

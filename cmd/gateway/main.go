package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/vnmchuo/quill/config"
	"github.com/vnmchuo/quill/internal/attachment"
	"github.com/vnmchuo/quill/internal/billing"
	"github.com/vnmchuo/quill/internal/logger"
	"github.com/vnmchuo/quill/internal/pricing"
	"github.com/vnmchuo/quill/internal/profile"
	"github.com/vnmchuo/quill/internal/prompt"
	"github.com/vnmchuo/quill/internal/provider"
	"github.com/vnmchuo/quill/internal/provider/openai"
	"github.com/vnmchuo/quill/internal/proxy"
	"github.com/vnmchuo/quill/internal/telemetry"
	"github.com/vnmchuo/quill/pkg/ratelimit"
)

const serviceName = "quill"

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	// 2. Init logging
	log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	ctx = logger.WithLogger(ctx, log)

	// 3. Init telemetry
	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, cfg)
	if err != nil {
		fatal(ctx, "failed to init tracer", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error(ctx, "failed to shutdown tracer provider", err)
		}
	}()

	// 4. Open profile store and document storage
	disk := attachment.NewDisk(filepath.Join(cfg.DataDir, "profiles"))
	profiles, err := profile.Open(ctx, filepath.Join(cfg.DataDir, "profiles.json"), disk)
	if err != nil {
		fatal(ctx, "failed to open profile store", err)
	}
	docs := attachment.NewManager(profiles, disk, cfg.MaxUploadBytes)

	// 5. Init usage ledger
	table, err := pricing.LoadFile(cfg.PricingFile)
	if err != nil {
		fatal(ctx, "failed to load pricing", err)
	}
	ledger := billing.NewLedger(table)

	// 6. Init rate limiter
	var limiter *ratelimit.Limiter
	switch {
	case cfg.DefaultRateLimitTPM == 0:
		logger.Info(ctx, "rate limiting disabled")
	case cfg.RedisAddr != "":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			fatal(ctx, "failed to ping redis", err)
		}
		logger.Info(ctx, "redis connected", "addr", cfg.RedisAddr)
		limiter = ratelimit.NewLimiter(rdb, cfg.DefaultRateLimitTPM)
	default:
		limiter = ratelimit.NewLocalLimiter(cfg.DefaultRateLimitTPM)
	}

	// 7. Init provider and router
	providers := []provider.Provider{
		openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL),
	}
	router := proxy.NewRouter(providers)

	// 8. Init handler
	handler := proxy.NewHandler(proxy.Deps{
		Router:    router,
		Ledger:    ledger,
		Profiles:  profiles,
		Docs:      docs,
		Assembler: prompt.NewAssembler(docs),
		Limiter:   limiter,
		Tracer:    otel.GetTracerProvider().Tracer(serviceName),

		MaxUploadFiles: int(cfg.MaxUploadFiles),
	})

	// 9. Init Chi router
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(proxy.RequestLogger(log))
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	handler.Mount(r)

	// 10. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info(ctx, "quill starting", "port", cfg.Port, "data_dir", cfg.DataDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(ctx, "server error", err)
		}
	}()

	<-quit
	logger.Info(ctx, "shutting down gracefully")
	ledger.Report(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "forced shutdown", err)
		return
	}
	logger.Info(ctx, "server stopped")
}

func fatal(ctx context.Context, msg string, err error) {
	logger.Error(ctx, msg, err)
	os.Exit(1)
}

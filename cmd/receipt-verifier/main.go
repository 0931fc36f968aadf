package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	receipts "github.com/x402-foundation/receipt-verifier"
	"github.com/x402-foundation/receipt-verifier/config"
	receipthttp "github.com/x402-foundation/receipt-verifier/http"
	echorouter "github.com/x402-foundation/receipt-verifier/http/echo"
	ginrouter "github.com/x402-foundation/receipt-verifier/http/gin"
	"github.com/x402-foundation/receipt-verifier/mcp"
	"github.com/x402-foundation/receipt-verifier/spsp"
	"github.com/x402-foundation/receipt-verifier/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("receipt verifier stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if cfg.SeedGenerated {
		logger.Warn("RECEIPT_SEED not set, using a random seed; receipts will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Progress Store
	// ========================================================================

	progress, closeStore, err := newProgressStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// ========================================================================
	// Verifier with Logging Hooks
	// ========================================================================

	verifier, err := receipts.NewVerifier(cfg.Receipts(), progress, receipts.WithLogger(logger))
	if err != nil {
		return err
	}

	verifier.OnAfterVerify(func(ctx receipts.VerifyResultContext) error {
		logger.DebugContext(ctx.Ctx, "receipt accepted",
			"nonce", ctx.Result.Nonce,
			"streamId", ctx.Result.StreamID,
			"totalReceived", ctx.Result.TotalReceived,
			"previous", ctx.Previous,
			"duration", ctx.Duration,
		)
		return nil
	})

	// ========================================================================
	// HTTP Server
	// ========================================================================

	opts := []receipthttp.Option{
		receipthttp.WithLogger(logger),
		receipthttp.WithSPSP(spsp.NewProxy(verifier, &spsp.ProxyConfig{
			DefaultEndpoint: cfg.SPSPEndpoint,
			Timeout:         cfg.SPSPTimeout,
			Logger:          logger,
		})),
		receipthttp.WithMCP(mcp.Handler(mcp.NewServer(verifier, &mcp.ServerConfig{Logger: logger}))),
	}

	var handler http.Handler
	switch cfg.HTTPFramework {
	case config.FrameworkEcho:
		handler = echorouter.NewRouter(verifier, opts...)
	default:
		gin.SetMode(gin.ReleaseMode)
		handler = ginrouter.NewRouter(verifier, opts...)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("receipt verifier listening",
			"addr", srv.Addr,
			"framework", cfg.HTTPFramework,
			"store", storeName(cfg),
			"receiptTTL", cfg.ReceiptTTL,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newProgressStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (receipts.ProgressStore, func(), error) {
	if cfg.RedisURI == "" {
		return store.NewInMemoryStore(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURI)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", config.EnvRedisURI, err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("redis close failed", "error", err)
		}
	}
	return store.NewRedisStore(client, store.WithKeyPrefix(cfg.RedisKeyPrefix)), closeFn, nil
}

func storeName(cfg *config.Config) string {
	if cfg.RedisURI == "" {
		return "memory"
	}
	return "redis"
}

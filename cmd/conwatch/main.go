package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/conwatch/conwatch/internal/api"
	"github.com/conwatch/conwatch/internal/auth"
	"github.com/conwatch/conwatch/internal/catalog"
	"github.com/conwatch/conwatch/internal/czml"
	"github.com/conwatch/conwatch/internal/metadata"
	"github.com/conwatch/conwatch/internal/observability"
	"github.com/conwatch/conwatch/internal/playback"
	"github.com/conwatch/conwatch/internal/stream"
	"github.com/conwatch/conwatch/internal/tle"
	"github.com/conwatch/conwatch/internal/view"
)

// cachedPackets serves trajectory packets from the newest CZML snapshot
// on disk, as written by the czmlgen tool.
type cachedPackets struct {
	cache *tle.Cache
}

func (c cachedPackets) Packets(ctx context.Context) ([]czml.Packet, error) {
	data, _, err := c.cache.LoadLatest()
	if err != nil {
		return nil, err
	}
	return czml.Parse(bytes.NewReader(data))
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("CONWATCH_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), logger)
	if err != nil {
		logger.Error("tracing initialization failed", "error", err)
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), tracingShutdown, logger)

	feedURL := os.Getenv("CONWATCH_FEED_URL")
	if feedURL == "" {
		logger.Error("CONWATCH_FEED_URL is required")
		os.Exit(1)
	}

	orch := view.NewOrchestrator(view.Options{
		Logger:           logger,
		Catalog:          catalog.NewFetcher(feedURL, logger),
		Packets:          loadPacketSource(logger),
		SceneAccessToken: os.Getenv("CONWATCH_SCENE_ACCESS_TOKEN"),
	})
	defer orch.Close()

	if strings.EqualFold(os.Getenv("CONWATCH_PLAYBACK_BOUNDARY"), "loop") {
		orch.Clock().SetBoundary(playback.Loop)
	}

	streamHandler := stream.NewHandler(orch, loadStreamConfig(logger), logger)
	reference := metadata.NewProvider(os.Getenv("CONWATCH_REFERENCE_URL"), logger)

	srv := api.NewServer(api.Options{
		Addr:            addr,
		Logger:          logger,
		Auth:            authCfg,
		Orchestrator:    orch,
		Stream:          streamHandler,
		Reference:       reference,
		ExportRecipient: os.Getenv("CONWATCH_EXPORT_RECIPIENT"),
	})

	if err := orch.Start(ctx); err != nil {
		logger.Warn("initial catalog load failed, serving degraded until a refresh succeeds", "error", err)
	}

	// Periodic catalog refresh.
	if interval := loadRefreshInterval(logger); interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := orch.RefreshCatalog(ctx); err != nil {
						logger.Warn("scheduled catalog refresh failed", "error", err)
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "feed_url", feedURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("CONWATCH_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("CONWATCH_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("CONWATCH_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("CONWATCH_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

// loadPacketSource picks where trajectory packets come from: a remote
// CZML document when CONWATCH_TRAJECTORY_URL is set, otherwise the
// newest snapshot in the local czmlgen cache.
func loadPacketSource(logger *slog.Logger) view.PacketSource {
	if url := os.Getenv("CONWATCH_TRAJECTORY_URL"); url != "" {
		logger.Info("trajectory source", "url", url)
		return czml.NewFetcher(url)
	}

	dir := os.Getenv("CONWATCH_CZML_CACHE_DIR")
	if dir == "" {
		dir = "/tmp/conwatch/czml"
	}
	logger.Info("trajectory source", "cache_dir", dir)
	return cachedPackets{cache: tle.NewCache(dir, "czml", "json", 5)}
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		KeepaliveInterval:  30 * time.Second,
	}

	if v := os.Getenv("CONWATCH_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid CONWATCH_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("CONWATCH_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid CONWATCH_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("CONWATCH_STREAM_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid CONWATCH_STREAM_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg
}

func loadRefreshInterval(logger *slog.Logger) time.Duration {
	interval := 5 * time.Minute
	if v := os.Getenv("CONWATCH_REFRESH_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid CONWATCH_REFRESH_INTERVAL value, using default", "value", v, "default", 300)
		} else {
			interval = time.Duration(n) * time.Second
		}
	}
	if interval == 0 {
		logger.Info("scheduled catalog refresh disabled")
	}
	return interval
}

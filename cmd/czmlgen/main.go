// Command czmlgen fetches two-line element sets, propagates orbits and
// writes the resulting CZML trajectory document. The output lands in the
// snapshot cache the conwatch server reads from, and optionally on stdout.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/conwatch/conwatch/internal/propagate"
	"github.com/conwatch/conwatch/internal/tle"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	tleDir := envOr("CONWATCH_TLE_CACHE_DIR", "/tmp/conwatch/tle")
	czmlDir := envOr("CONWATCH_CZML_CACHE_DIR", "/tmp/conwatch/czml")
	tleCache := tle.NewCache(tleDir, "tle", "txt", 5)
	czmlCache := tle.NewCache(czmlDir, "czml", "json", 5)

	data, fetchedAt, err := loadElements(ctx, logger, tleCache)
	if err != nil {
		logger.Error("could not obtain TLE data", "error", err)
		os.Exit(1)
	}

	entries, err := tle.Parse(bytes.NewReader(data), logger)
	if err != nil {
		logger.Error("parsing TLE data failed", "error", err)
		os.Exit(1)
	}
	if max := loadMaxSatellites(logger); max > 0 && len(entries) > max {
		entries = entries[:max]
	}
	logger.Info("propagating satellites", "count", len(entries), "elements_age", time.Since(fetchedAt).Round(time.Second).String())

	gen := propagate.NewGenerator(loadGeneratorConfig(logger), logger)
	packets, err := gen.Generate(ctx, entries, time.Now().UTC())
	if err != nil {
		logger.Error("trajectory generation failed", "error", err)
		os.Exit(1)
	}

	doc, err := json.Marshal(packets)
	if err != nil {
		logger.Error("encoding CZML document failed", "error", err)
		os.Exit(1)
	}

	if err := czmlCache.Write(doc, time.Now()); err != nil {
		logger.Error("writing CZML snapshot failed", "dir", czmlDir, "error", err)
		os.Exit(1)
	}
	logger.Info("CZML snapshot written", "dir", czmlDir, "packets", len(packets), "bytes", len(doc))

	if strings.EqualFold(os.Getenv("CONWATCH_CZML_STDOUT"), "true") {
		os.Stdout.Write(doc)
		os.Stdout.Write([]byte("\n"))
	}
}

// loadElements fetches fresh elements when fetching is enabled, falling
// back to the newest cached snapshot on failure.
func loadElements(ctx context.Context, logger *slog.Logger, cache *tle.Cache) ([]byte, time.Time, error) {
	fetchEnabled := true
	if v := os.Getenv("CONWATCH_ENABLE_TLE_FETCH"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid CONWATCH_ENABLE_TLE_FETCH value, defaulting to true", "value", v)
		} else {
			fetchEnabled = enabled
		}
	}

	if fetchEnabled {
		var extras []string
		for _, u := range strings.Split(os.Getenv("CONWATCH_TLE_EXTRA_URLS"), ",") {
			if u = strings.TrimSpace(u); u != "" {
				extras = append(extras, u)
			}
		}

		fetcher := tle.NewFetcher(os.Getenv("CONWATCH_TLE_SOURCE_URL"), logger, extras...)
		data, err := fetcher.Fetch(ctx)
		if err == nil {
			now := time.Now()
			if err := cache.Write(data, now); err != nil {
				logger.Warn("caching TLE snapshot failed", "error", err)
			}
			return data, now, nil
		}
		logger.Warn("TLE fetch failed, trying cache", "error", err)
	}

	return cache.LoadLatest()
}

func loadGeneratorConfig(logger *slog.Logger) propagate.Config {
	cfg := propagate.Config{
		Workers: runtime.NumCPU(),
		Step:    5 * time.Minute,
		Horizon: 24 * time.Hour,
	}

	if v := os.Getenv("CONWATCH_PROP_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid CONWATCH_PROP_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}

	if v := os.Getenv("CONWATCH_PROP_STEP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid CONWATCH_PROP_STEP value, using default", "value", v, "default", 300)
		} else {
			cfg.Step = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("CONWATCH_PROP_HORIZON"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid CONWATCH_PROP_HORIZON value, using default", "value", v, "default", 86400)
		} else {
			cfg.Horizon = time.Duration(n) * time.Second
		}
	}

	logger.Info("generator config",
		"workers", cfg.Workers,
		"step_seconds", cfg.Step.Seconds(),
		"horizon_seconds", cfg.Horizon.Seconds(),
	)

	return cfg
}

func loadMaxSatellites(logger *slog.Logger) int {
	v := os.Getenv("CONWATCH_MAX_SATELLITES")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid CONWATCH_MAX_SATELLITES value, propagating all", "value", v)
		return 0
	}
	return n
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

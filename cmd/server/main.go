package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lmittmann/tint"
	"github.com/tendant/chi-demo/app"

	"github.com/tendant/simple-media/pkg/simplemedia/api"
	"github.com/tendant/simple-media/pkg/simplemedia/config"
	"github.com/tendant/simple-media/pkg/simplemedia/sitemap"
)

func newLogger(cfg *config.ServerConfig) *slog.Logger {
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
}

func loadConfig(path string) (*config.ServerConfig, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func main() {
	configPath := flag.String("config", "", "optional YAML config file; environment variables override it")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx := context.Background()
	comps, err := cfg.Build(ctx, config.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to build media service", "err", err)
		os.Exit(1)
	}
	defer comps.Close()

	// Publish once at startup so a fresh public root has a sitemap.
	if err := comps.Sitemap.Regenerate(ctx); err != nil {
		logger.Warn("Initial sitemap generation failed", "err", err)
	}

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	api.NewHandlers(comps.Service, comps.Invalidator, comps.Registry, logger).Mount(server.R, logger,
		api.WithCORS(cfg.CORSOrigins...),
		api.WithCacheMaxAge(cfg.APICacheMaxAge),
	)
	routesPublic(server.R, cfg)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.R,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("simple-media server starting",
			"port", cfg.Port,
			"env", cfg.Environment,
			"database", cfg.DatabaseType,
			"storage", cfg.Storage.Type,
			"cache", cfg.CacheType,
			"fallback", cfg.FallbackEnabled(),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
	}
}

// routesPublic serves the published sitemap and, with the fallback adapter,
// the public storage link.
func routesPublic(r *chi.Mux, cfg *config.ServerConfig) {
	r.Get("/"+sitemap.ObjectKey, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		http.ServeFile(w, r, filepath.Join(cfg.PublicRoot, sitemap.ObjectKey))
	})
	if cfg.FallbackEnabled() {
		fs := http.StripPrefix("/storage/", http.FileServer(http.Dir(filepath.Join(cfg.PublicRoot, "storage"))))
		r.Get("/storage/*", fs.ServeHTTP)
	}
}

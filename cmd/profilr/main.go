package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/profilr/api"
	"github.com/use-agent/profilr/cache"
	"github.com/use-agent/profilr/config"
	"github.com/use-agent/profilr/diag"
	"github.com/use-agent/profilr/logging"
	"github.com/use-agent/profilr/scraper"
	"github.com/use-agent/profilr/store"
	"github.com/use-agent/profilr/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	logFile := logging.Setup(cfg.Log, os.Stdout)
	defer logFile.Close()
	slog.Info("profilr starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"extractMode", cfg.Scraper.ExtractMode,
	)

	// ── 3. Open the browser session ─────────────────────────────────
	sess, err := scraper.Open(cfg.Browser, cfg.Session, cfg.Scraper)
	if err != nil {
		slog.Error("failed to open browser session", "error", err)
		os.Exit(1)
	}
	defer sess.Close()

	// ── 4. Diagnostics, storage, scraper ────────────────────────────
	sink, err := diag.New(cfg.Diagnostics)
	if err != nil {
		slog.Error("failed to initialise diagnostics", "error", err)
		os.Exit(1)
	}
	if sink != nil {
		slog.Info("diagnostic snapshots enabled", "dir", sink.Dir())
	}

	st, err := store.NewFileStore(cfg.Storage.ProfilesDir)
	if err != nil {
		slog.Error("failed to initialise profile store", "error", err)
		os.Exit(1)
	}

	sc := scraper.New(sess, cfg, scraper.WithSink(sink))

	// A failed login check leaves the server up in degraded state so
	// operators can see it on /health.
	if !sess.HasToken() {
		slog.Warn("no session cookie: profile pages will hit the auth wall")
	} else if err := sc.VerifyLogin(context.Background()); err != nil {
		slog.Warn("login check failed", "error", err)
	} else {
		slog.Info("login check passed")
	}

	// ── 5. Cache and webhooks ───────────────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries)
	defer cc.Close()

	wh := webhook.New(cfg.Webhook)
	defer wh.Close()

	// ── 6. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(sc, sess, st, cfg, cc, wh, startTime)

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// A scrape in flight can take a navigation timeout plus humanized pauses.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Scraper.NavigationTimeout+15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Deferred closes stop webhooks and the cache, then kill Chrome.
	slog.Info("profilr stopped")
}

// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/meridianhealth/meridian-site/internal/cache"
	"github.com/meridianhealth/meridian-site/internal/config"
	"github.com/meridianhealth/meridian-site/internal/content"
	"github.com/meridianhealth/meridian-site/internal/editing"
	"github.com/meridianhealth/meridian-site/internal/handler"
	"github.com/meridianhealth/meridian-site/internal/logging"
	"github.com/meridianhealth/meridian-site/internal/middleware"
	"github.com/meridianhealth/meridian-site/internal/render"
	"github.com/meridianhealth/meridian-site/internal/session"
	"github.com/meridianhealth/meridian-site/internal/store"
	"github.com/meridianhealth/meridian-site/web"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Meridian Health marketing site\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MERIDIAN_SESSION_SECRET  Session encryption key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MERIDIAN_BACKEND_URL     Content API base URL (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MERIDIAN_DB_PATH         SQLite database path (default: ./data/meridian.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MERIDIAN_SERVER_PORT     Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MERIDIAN_ENV             Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MERIDIAN_REDIS_URL       Redis URL for distributed caching (optional)\n")
	}
	flag.Parse()

	if *showVersion {
		_, _ = fmt.Printf("meridian %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Ensure data directory exists
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	// Initialize database
	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Upgrade logger to also write WARN and ERROR logs to the Event Log database
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	eventLogHandler := logging.NewEventLogHandler(textHandler, db)
	logger = slog.New(eventLogHandler)
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	// Initialize session manager
	sessionManager := session.New(db, cfg.IsDevelopment())
	slog.Info("session manager initialized")

	// Content backend client
	client, err := content.NewClient(content.ClientOptions{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout(),
	})
	if err != nil {
		return fmt.Errorf("creating content client: %w", err)
	}
	slog.Info("content backend client initialized", "url", cfg.BackendURL)

	// Cache backend: Redis when configured, in-process memory otherwise
	cacher, err := cache.New(cache.Config{
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CachePrefix,
		DefaultTTL:      cfg.SectionCacheTTL(),
		MaxSize:         cfg.CacheMaxSize,
		CleanupInterval: time.Minute,
	})
	if err != nil {
		slog.Warn("cache backend unavailable, falling back to memory", "error", err)
		cacher = cache.NewSimpleMemoryCache(cfg.SectionCacheTTL())
	}
	defer func() {
		if err := cacher.Close(); err != nil {
			slog.Error("error closing cache", "error", err)
		}
	}()
	if cfg.UseRedisCache() {
		slog.Info("cache initialized", "backend", "redis", "url", cfg.RedisURL)
	} else {
		slog.Info("cache initialized", "backend", "memory")
	}

	// Session store resolves access tokens to identities through the backend
	sessionStore := session.NewStore(session.StoreOptions{
		Manager:     sessionManager,
		Client:      client,
		Backing:     cacher,
		IdentityTTL: cfg.IdentityCacheTTL(),
		Logger:      logger,
	})

	// Auth event log feed
	events, unsubscribe := sessionStore.Subscribe()
	defer unsubscribe()
	go func() {
		for ev := range events {
			slog.Info("session event", "category", "auth", "type", string(ev.Type), "identity_id", ev.IdentityID)
		}
	}()

	// Section cache fronting the backend page reads
	sections := cache.NewSectionCache(cacher, cfg.SectionCacheTTL(),
		func(ctx context.Context, pageID string) ([]content.Section, error) {
			return client.ListSections(ctx, "", pageID)
		})

	// Inline editing
	editMode := editing.NewModeController()
	notifier := editing.NewNotifier()
	editor := editing.NewEditor(editing.EditorOptions{
		Client:        client,
		Sections:      sections,
		Notifier:      notifier,
		Logger:        logger,
		DraftLifetime: cfg.DraftLifetime(),
	})
	slog.Info("inline editing initialized", "draft_lifetime", cfg.DraftLifetime())

	// Rate limiter for auth and editing endpoints
	// 10 requests per second with burst of 20 per IP
	rateLimiter := middleware.NewGlobalRateLimiter(10.0, 20)

	// Background maintenance
	queries := store.New(db)
	sched := cron.New()
	if _, err := sched.AddFunc("@every 10m", func() {
		if n := editor.PruneExpired(time.Now()); n > 0 {
			slog.Info("pruned abandoned drafts", "count", n)
		}

		// Drop per-session editing state whose session no longer exists.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		tokens, err := queries.ListSessionTokens(ctx)
		if err != nil {
			slog.Warn("listing session tokens failed", "error", err.Error())
			return
		}
		live := make(map[string]struct{}, len(tokens))
		for _, token := range tokens {
			live[token] = struct{}{}
		}
		if n := editMode.PruneExcept(live) + notifier.PruneExcept(live); n > 0 {
			slog.Info("pruned stale session state", "count", n)
		}
	}); err != nil {
		return fmt.Errorf("scheduling draft pruning: %w", err)
	}
	if _, err := sched.AddFunc("@every 5m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		sessionStore.RevalidateCached(ctx)
	}); err != nil {
		return fmt.Errorf("scheduling identity revalidation: %w", err)
	}
	if _, err := sched.AddFunc("@hourly", func() {
		if rateLimiter.Prune(10000) {
			slog.Info("rate limiter cache cleared")
		}
		if provider, ok := cacher.(cache.StatsProvider); ok {
			stats := provider.Stats()
			slog.Info("cache stats",
				"hits", stats.Hits, "misses", stats.Misses,
				"items", stats.Items, "hit_rate", stats.HitRate)
			provider.ResetStats()
		}
	}); err != nil {
		return fmt.Errorf("scheduling rate limiter pruning: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	// Initialize template renderer
	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		return fmt.Errorf("getting templates fs: %w", err)
	}
	renderer, err := render.New(render.Config{
		TemplatesFS:    templatesFS,
		SessionManager: sessionManager,
		IsDev:          cfg.IsDevelopment(),
	})
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}
	slog.Info("template renderer initialized")

	// Initialize handlers
	frontendHandler := handler.NewFrontendHandler(renderer, sections)
	editingHandler := handler.NewEditingHandler(sessionStore, editMode, editor, notifier, sections)
	authHandler := handler.NewAuthHandler(sessionStore, renderer, editMode, editor)
	consentHandler := handler.NewConsentHandler(!cfg.IsDevelopment())
	healthHandler := handler.NewHealthHandler(db, cacher)

	// Create router
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)

	securityConfig := middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())
	r.Use(middleware.SecurityHeaders(securityConfig))
	r.Use(middleware.RequestPath)

	r.Use(sessionManager.LoadAndSave)
	r.Use(middleware.LoadIdentity(sessionStore))
	r.Use(middleware.EditMode(sessionStore, editMode))

	csrfConfig := middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment())
	r.Use(middleware.CSRF(csrfConfig))

	// Public pages
	r.Get("/", frontendHandler.Home)
	r.Get("/pricing", frontendHandler.Pricing)
	r.Get("/privacy", frontendHandler.Privacy)
	r.Get("/terms", frontendHandler.Terms)
	r.Get("/health", healthHandler.Health)
	r.Post("/consent", consentHandler.Save)

	// Auth
	r.Get("/login", authHandler.LoginForm)
	r.With(rateLimiter.HTMLMiddleware()).Post("/login", authHandler.Login)
	r.Post("/logout", authHandler.Logout)

	// Inline editing API, staff only
	// Entering edit mode needs a resolved identity, not a particular
	// permission; the backend authorizes the writes themselves.
	r.Route("/admin/editing", func(r chi.Router) {
		r.Use(middleware.Auth())
		r.Use(rateLimiter.Middleware())

		r.Post("/toggle", editingHandler.Toggle)
		r.Post("/begin", editingHandler.Begin)
		r.Post("/draft", editingHandler.Draft)
		r.Post("/save", editingHandler.Save)
		r.Post("/save-image", editingHandler.SaveImage)
		r.Post("/cancel", editingHandler.Cancel)
		r.Post("/exit", editingHandler.Exit)
		r.Get("/notifications", editingHandler.Notifications)
	})

	// Static assets
	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		return fmt.Errorf("getting static fs: %w", err)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

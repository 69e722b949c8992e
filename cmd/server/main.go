package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/storage/redis/v3"

	"livesub/internal/batch"
	"livesub/internal/config"
	"livesub/internal/db"
	"livesub/internal/jobs"
	"livesub/internal/keywords"
	"livesub/internal/metrics"
	"livesub/internal/middleware"
	"livesub/internal/server"
	"livesub/internal/session"
	"livesub/internal/substitute"
	"livesub/internal/validation"
)

func main() {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	cfg := config.Load()
	setupLogging(cfg)

	// Load YAML config (optional)
	yamlCfg, err := config.LoadYAMLConfig()
	if err != nil {
		log.Fatalf("Failed to load config file: %v", err)
	}

	// Initialize database (optional)
	var database *db.DB
	if cfg.HasDatabase() {
		database, err = db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		slog.Info("migrations completed successfully")

		if cfg.IsDev() {
			seedDevKeywords(ctx, database)
		}
	}

	// Metrics: the hit recorder and collector need the database
	if database != nil {
		metrics.Init(database)
	} else {
		metrics.Init(nil)
	}

	// Redis (optional) backs the shared keyword cache and the rate limiter
	var storage fiber.Storage
	storeOpts := []keywords.Option{keywords.WithTTL(cfg.KeywordsTTL)}
	if cfg.RedisURL != "" {
		rdb := redis.New(redis.Config{URL: cfg.RedisURL})
		defer rdb.Close()
		storage = rdb
		storeOpts = append(storeOpts, keywords.WithSharedCache(rdb))
		slog.Info("using redis for shared keyword cache and rate limiting")
	}

	store := keywords.NewStore(buildSource(ctx, cfg, yamlCfg, database), storeOpts...)
	if _, err := store.Get(ctx); err != nil {
		slog.Warn("keyword mapping not loaded at startup", "error", err)
	}
	if cfg.KeywordsRefresh > 0 {
		go store.Run(ctx, cfg.KeywordsRefresh)
	}

	batchOpts := []batch.Option{
		batch.WithChunkSize(cfg.BatchSize),
		batch.WithIdler(batch.DelayIdler(cfg.BatchIdle)),
	}
	scheduler := batch.New(store, batchOpts...)

	sessions := session.NewManager(store, scheduler, session.Options{
		InputDelay:     cfg.InputDelay,
		ScrollDelay:    cfg.ScrollDelay,
		RescanInterval: cfg.RescanInterval,
		MaxSessions:    cfg.MaxSessions,
	})
	defer sessions.CloseAll()

	reaper := jobs.NewSessionReaper(sessions, time.Minute, cfg.SessionTTL, nil)
	go reaper.Start(ctx)

	auth, err := middleware.NewAuthMiddleware(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
	if err != nil {
		log.Fatalf("Failed to initialize OIDC: %v", err)
	}

	defaultMode, err := substitute.ParseMode(yamlCfg.DefaultMode())
	if err != nil {
		log.Fatalf("Invalid default mode: %v", err)
	}

	srv := server.New(cfg, storage)
	deps := server.Deps{
		Keywords:    store,
		Sessions:    sessions,
		Auth:        auth,
		DefaultMode: defaultMode,
		BatchOpts:   batchOpts,
	}
	if database != nil {
		deps.Pairs = database
	}
	srv.RegisterRoutes(deps)

	// Graceful shutdown
	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	slog.Info("server started", "addr", cfg.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	stop()
	if err := srv.Shutdown(); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	slog.Info("server exited")
}

func setupLogging(cfg *config.Config) {
	var handler slog.Handler
	if cfg.IsDev() {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	slog.SetDefault(slog.New(handler))
}

// buildSource assembles the keyword source: the remote URL, any extra
// sources from the config file and the local file are tried in order, the
// first that loads wins, and stored pairs plus inline overrides are laid on
// top.
func buildSource(ctx context.Context, cfg *config.Config, yamlCfg *config.YAMLConfig, database *db.DB) keywords.Source {
	var chain keywords.ChainSource

	if cfg.KeywordsURL != "" {
		creds := keywords.ClientCredentials{
			ClientID:     cfg.KeywordsOAuthClientID,
			ClientSecret: cfg.KeywordsOAuthClientSecret,
			TokenURL:     cfg.KeywordsOAuthTokenURL,
			Scopes:       cfg.OAuthScopes(),
		}
		var client *http.Client
		if creds.Enabled() {
			client = creds.HTTPClient(ctx)
		}
		chain = append(chain, keywords.NewHTTPSource(cfg.KeywordsURL, client))
	}
	for _, s := range yamlCfg.GetSourcesByType("url") {
		if valid, msg := validation.ValidateURL(s.Location); !valid {
			slog.Warn("skipping keyword source", "location", s.Location, "reason", msg)
			continue
		}
		chain = append(chain, keywords.NewHTTPSource(s.Location, nil))
	}
	for _, s := range yamlCfg.GetSourcesByType("file") {
		chain = append(chain, keywords.NewFileSource(s.Location))
	}
	chain = append(chain, keywords.NewFileSource(cfg.KeywordsFile))

	layered := keywords.LayeredSource{Base: chain}
	if database != nil {
		layered.Layers = append(layered.Layers, keywords.NewDBSource(database))
	}
	if yamlCfg != nil && len(yamlCfg.Keywords) > 0 {
		layered.Layers = append(layered.Layers, keywords.StaticSource(yamlCfg.Keywords))
	}
	return layered
}

// seedDevKeywords stores the bundled mapping so the admin pair routes have
// data to show in development.
func seedDevKeywords(ctx context.Context, database *db.DB) {
	km, err := keywords.NewFileSource("").Load(ctx)
	if err != nil {
		slog.Warn("failed to load bundled keywords for seeding", "error", err)
		return
	}
	if err := database.SeedKeywordPairs(ctx, km); err != nil {
		slog.Warn("failed to seed keyword pairs", "error", err)
		return
	}
	slog.Info("seeded development keyword pairs", "count", len(km))
}

// Command starline is the main entry point for the Starline voice call server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/starlinehq/starline/internal/call"
	"github.com/starlinehq/starline/internal/config"
	"github.com/starlinehq/starline/internal/health"
	"github.com/starlinehq/starline/internal/httpapi"
	"github.com/starlinehq/starline/internal/observe"
	"github.com/starlinehq/starline/internal/persona"
	"github.com/starlinehq/starline/internal/profile"
	"github.com/starlinehq/starline/pkg/live/gemini"
)

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "starline: config file %q not found — copy configs/starline.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "starline: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("starline starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Persona catalogue ─────────────────────────────────────────────────────
	seed, err := persona.LoadFile(cfg.Personas.SeedFile)
	if err != nil {
		slog.Error("failed to load persona seed file", "path", cfg.Personas.SeedFile, "err", err)
		return 1
	}
	catalog, err := persona.NewCatalog(seed)
	if err != nil {
		slog.Error("invalid persona seed file", "path", cfg.Personas.SeedFile, "err", err)
		return 1
	}

	// ── Stores ────────────────────────────────────────────────────────────────
	var (
		profiles profile.Store
		studio   persona.Store
		checkers []health.Checker
	)
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			slog.Error("failed to open database pool", "err", err)
			return 1
		}
		defer pool.Close()

		store := persona.NewPostgresStore(pool)
		if err := migrate(ctx, pool, store, seed); err != nil {
			slog.Error("database migration failed", "err", err)
			return 1
		}
		// Studio-created personas win over seed entries with the same ID.
		stored, err := store.List(ctx, "")
		if err != nil {
			slog.Error("failed to load stored personas", "err", err)
			return 1
		}
		for i := range stored {
			if err := catalog.Put(stored[i]); err != nil {
				slog.Warn("skipping invalid stored persona", "id", stored[i].ID, "err", err)
			}
		}
		studio = store
		profiles = profile.NewPostgresStore(pool)
		checkers = append(checkers, health.Checker{
			Name:  "database",
			Check: pool.Ping,
		})
		slog.Info("profile store ready", "backend", "postgres")
	} else {
		profiles = profile.NewMemStore()
		slog.Info("profile store ready", "backend", "memory")
	}

	// ── Call manager ──────────────────────────────────────────────────────────
	var dialerOpts []gemini.Option
	if cfg.Gemini.BaseURL != "" {
		dialerOpts = append(dialerOpts, gemini.WithBaseURL(cfg.Gemini.BaseURL))
	}
	manager, err := call.NewManager(call.Config{
		Dialer:   gemini.NewDialer(dialerOpts...),
		APIKey:   cfg.Gemini.APIKey,
		Model:    cfg.Gemini.Model,
		Language: cfg.LanguageOrDefault(),
		Capture:  cfg.CaptureConfig(),
	})
	if err != nil {
		slog.Error("failed to initialise call manager", "err", err)
		return 1
	}
	defer manager.Close()

	// ── HTTP gateway ──────────────────────────────────────────────────────────
	gateway := httpapi.New(httpapi.Config{
		Catalog:  catalog,
		Profiles: profiles,
		Calls:    manager,
		Health:   health.New(checkers...),
		Studio:   studio,
	})

	printStartupSummary(cfg, len(seed))

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           gateway.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")

		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// migrate prepares the persona and profile tables and refreshes the seed
// catalogue so the database mirrors the YAML file on every start.
func migrate(ctx context.Context, pool *pgxpool.Pool, personas *persona.PostgresStore, seed []persona.Persona) error {
	if err := personas.Migrate(ctx); err != nil {
		return err
	}
	for i := range seed {
		if err := personas.Upsert(ctx, &seed[i]); err != nil {
			return err
		}
	}
	return profile.NewPostgresStore(pool).Migrate(ctx)
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, personaCount int) {
	model := cfg.Gemini.Model
	if model == "" {
		model = "(backend default)"
	}
	db := "(in-memory)"
	if cfg.Database.URL != "" {
		db = "postgres"
	}
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Starline — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Model", model)
	printRow("Language", string(cfg.LanguageOrDefault()))
	printRow("Personas", fmt.Sprintf("%d", personaCount))
	printRow("Profile store", db)
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-15s : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/bookbot/internal/api"
	"github.com/starford/bookbot/internal/bookservice"
	"github.com/starford/bookbot/internal/catalog"
	"github.com/starford/bookbot/internal/embedding"
	"github.com/starford/bookbot/internal/fingerprint"
	"github.com/starford/bookbot/internal/indexcache"
	"github.com/starford/bookbot/internal/llm"
	"github.com/starford/bookbot/internal/mcpserver"
	"github.com/starford/bookbot/internal/session"
	"github.com/starford/bookbot/internal/sse"
	"github.com/starford/bookbot/internal/storage"
)

// core is the part of the application shared by the HTTP and MCP front ends.
type core struct {
	logger *slog.Logger
	store  storage.Provider
	db     *catalog.DB
	svc    *bookservice.Service
}

func (c *core) Close() {
	if err := c.db.Close(); err != nil {
		c.logger.Warn("catalog close failed", slog.String("error", err.Error()))
	}
}

func setup(ctx context.Context, opts []Option, events bookservice.Events) (*application, *core, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("cache_dir", cfg.Cache.Dir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("provider", cfg.LLM.Provider),
		slog.String("chat_model", cfg.LLM.ChatModel),
		slog.String("embedding_model", cfg.LLM.EmbeddingModel),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create cache dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Cache.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create catalog dir: %w", err)
	}
	db, err := catalog.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init catalog: %w", err)
	}

	if err := catalog.Reconcile(ctx, db, store, logger, nil); err != nil {
		logger.Warn("initial reconcile failed", slog.String("error", err.Error()))
	}

	cache := indexcache.New(store,
		indexcache.WithLogger(logger),
		indexcache.WithRecorder(db),
		indexcache.WithEmbeddingModel(cfg.LLM.EmbeddingModel),
	)

	models := bookservice.Models{
		Embedder: func(cred string) (embedding.Embedder, error) {
			return embedding.New(cfg.LLM.Embedding(cred))
		},
		Generator: func(cred string) (llm.Generator, error) {
			return llm.New(cfg.LLM.Chat(cred))
		},
	}
	if app.models != nil {
		models = *app.models
	}

	svcOpts := []bookservice.Option{
		bookservice.WithLogger(logger),
		bookservice.WithCatalog(db),
	}
	if events != nil {
		svcOpts = append(svcOpts, bookservice.WithEvents(events))
	}
	svc := bookservice.New(cache, models, bookservice.Config{
		ChunkSize:         cfg.Splitter.ChunkSize,
		ChunkOverlap:      cfg.Splitter.ChunkOverlap,
		TopK:              cfg.Retrieval.TopK,
		Temperature:       &cfg.LLM.Temperature,
		RefusalMarkers:    cfg.Answer.RefusalMarkers,
		EmbedBatchSize:    cfg.LLM.EmbedBatchSize,
		EmbedRate:         cfg.LLM.EmbedRate,
		RequireCredential: cfg.LLM.CredentialRequired(),
	}, svcOpts...)

	return app, &core{logger: logger, store: store, db: db, svc: svc}, nil
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	// SSE broker.
	broker := sse.NewBroker(500 * time.Millisecond)
	defer broker.Close()

	app, c, err := setup(ctx, opts, broker)
	if err != nil {
		return err
	}
	defer c.Close()

	cfg := app.config
	logger := c.logger

	sessions := session.NewManager(cfg.Session.TTL, cfg.Answer.DefaultMaxTokens, logger)

	apiRouter := api.NewRouter(c.svc, sessions, broker, api.RouterConfig{
		AuthEnabled:    cfg.Auth.AuthEnabled(),
		Token:          cfg.Auth.Token,
		MaxUploadBytes: cfg.Upload.MaxBytes,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := c.db.AllFingerprints(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"catalog unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// The page gets its session cookie up front so the UI and API agree on it.
	r.With(api.SessionMiddleware(sessions)).Get("/", api.UIHandler().ServeHTTP)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Keep the catalog in step with the cache directory.
	g.Go(func() error {
		return catalog.Watch(gCtx, c.db, c.store, logger, func(kind string, fp fingerprint.Fingerprint) {
			broker.Publish(sse.Event{
				Type: sse.EventCatalogChanged,
				Data: map[string]string{"change": kind, "fingerprint": fp.String()},
			})
		})
	})

	// Drop idle sessions.
	g.Go(func() error {
		return sessions.Run(gCtx)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Unblocks the watcher and the session sweeper.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown requested")

// RunMCP serves the MCP tools over stdio with a single session. Logs go to
// stderr unless WithLogOutput says otherwise, since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app, c, err := setup(ctx, opts, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	cfg := app.config
	sess := session.New("mcp", cfg.Answer.DefaultMaxTokens)
	srv := mcpserver.New(c.svc, sess, cfg.LLM.APIKey, mcpserver.WithMaxBytes(cfg.Upload.MaxBytes))

	c.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tniemenmaa/dota-fantasy-league/internal/auth"
	"github.com/tniemenmaa/dota-fantasy-league/internal/config"
	"github.com/tniemenmaa/dota-fantasy-league/internal/log"
	"github.com/tniemenmaa/dota-fantasy-league/internal/metrics"
	"github.com/tniemenmaa/dota-fantasy-league/internal/server"
	"github.com/tniemenmaa/dota-fantasy-league/internal/session"
	"github.com/tniemenmaa/dota-fantasy-league/internal/steam"
	"github.com/tniemenmaa/dota-fantasy-league/internal/storage"
)

const shutdownTimeout = 30 * time.Second

// FantasyLeague represents the complete login service
type FantasyLeague struct {
	config     config.Config
	handler    http.Handler
	httpServer *server.HTTPServer
	storage    storage.Storage
}

// NewFantasyLeague creates the service with all dependencies built
func NewFantasyLeague(ctx context.Context, cfg config.Config) (*FantasyLeague, error) {
	log.LogInfoWithFields("fantasyleague", "Building login service", map[string]any{
		"baseURL":       cfg.Server.BaseURL,
		"storage":       cfg.Storage.Kind,
		"personaLookup": cfg.Steam.APIKey != "",
	})

	store, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	handlers, err := setupSteamLogin(cfg, store, m)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to setup Steam login: %w", err)
	}

	handler := buildHTTPHandler(cfg, handlers, registry, m)

	return &FantasyLeague{
		config:     cfg,
		handler:    handler,
		httpServer: server.NewHTTPServer(handler, cfg.Server.Addr),
		storage:    store,
	}, nil
}

// Run starts the HTTP server and blocks until a signal or a server error
func (f *FantasyLeague) Run() error {
	log.LogInfoWithFields("fantasyleague", "Starting login service", map[string]any{
		"addr": f.config.Server.Addr,
	})

	errChan := make(chan error, 1)
	go func() {
		if err := f.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("fantasyleague", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("fantasyleague", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("fantasyleague", "Starting graceful shutdown", map[string]any{
		"reason":  shutdownReason,
		"timeout": shutdownTimeout.String(),
	})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := f.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("fantasyleague", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	if err := f.storage.Close(); err != nil {
		log.LogWarnWithFields("fantasyleague", "Failed to close storage", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("fantasyleague", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return nil
}

// setupStorage creates the user directory backend
func setupStorage(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	if cfg.Storage.Kind == config.StorageKindFirestore {
		log.LogInfoWithFields("storage", "Using Firestore storage", map[string]any{
			"project":    cfg.Storage.GCPProject,
			"database":   cfg.Storage.FirestoreDatabase,
			"collection": cfg.Storage.FirestoreCollection,
		})
		firestoreStorage, err := storage.NewFirestoreStorage(
			ctx,
			cfg.Storage.GCPProject,
			cfg.Storage.FirestoreDatabase,
			cfg.Storage.FirestoreCollection,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Firestore storage: %w", err)
		}
		return firestoreStorage, nil
	}

	log.LogInfoWithFields("storage", "Using in-memory storage", map[string]any{})
	return storage.NewMemoryStorage(), nil
}

// setupSteamLogin derives both purpose keys from the one master key and wires the flow
func setupSteamLogin(cfg config.Config, store storage.Storage, m *metrics.Metrics) (*server.SteamHandlers, error) {
	masterKey := []byte(cfg.Session.EncryptionKey)

	codec, err := session.NewStateCodec(masterKey)
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewManager(masterKey, cfg.Session.TTL)
	if err != nil {
		return nil, err
	}

	verifier := steam.NewOpenIDVerifier(cfg.Steam.VerificationEndpoint, cfg.Steam.VerifyTimeout)
	personas := steam.NewWebAPIClient(steam.WebAPIConfig{
		APIKey:    string(cfg.Steam.APIKey),
		BaseURL:   cfg.Steam.WebAPIBaseURL,
		Timeout:   cfg.Steam.PersonaTimeout,
		CacheTTL:  cfg.Steam.PersonaCacheTTL,
		CacheSize: cfg.Steam.PersonaCacheSize,
		Metrics:   m,
	})

	login := auth.NewSteamLogin(codec, verifier, personas, cfg.Steam.OpenIDEndpoint, m)
	return server.NewSteamHandlers(login, sessions, store, cfg.Server.BaseURL, m), nil
}

// buildHTTPHandler creates the complete HTTP handler with all routing and middleware
func buildHTTPHandler(cfg config.Config, handlers *server.SteamHandlers, gatherer prometheus.Gatherer, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	corsMiddleware := server.NewCORSMiddleware(cfg.Server.AllowedOrigins)
	authLogger := server.NewLoggerMiddleware("auth")
	authRecover := server.NewRecoverMiddleware("auth")

	mux.Handle("GET /health", server.NewHealthHandler())
	mux.Handle("GET /metrics", metrics.Handler(gatherer))

	// OPTIONS is routed so CORS preflights are answered
	route := func(path string, h http.HandlerFunc) {
		chained := server.ChainMiddleware(h,
			server.NewMetricsMiddleware(m, path),
			corsMiddleware,
			authLogger,
			authRecover,
		)
		mux.Handle("GET "+path, chained)
		mux.Handle("OPTIONS "+path, chained)
	}

	route("/auth/signin/steam", handlers.SignInHandler)
	route(auth.CallbackPath, handlers.CallbackHandler)
	route("/auth/me", handlers.MeHandler)
	route("/auth/signout", handlers.SignOutHandler)

	return mux
}

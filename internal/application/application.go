package application

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/box-simulator/internal/api"
	"github.com/eugenenazirov/box-simulator/internal/config"
	"github.com/eugenenazirov/box-simulator/internal/metrics"
	"github.com/eugenenazirov/box-simulator/internal/packer"
	"github.com/eugenenazirov/box-simulator/internal/sheet"
	"github.com/eugenenazirov/box-simulator/internal/simulation"
	"github.com/eugenenazirov/box-simulator/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage storage.Storage
	closer  io.Closer
	service *simulation.Service
	metrics *metrics.Metrics
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	store, closer, err := OpenStorage(cfg)
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	service := simulation.New(packer.New(), store, logger,
		simulation.WithMetrics(m),
		simulation.WithDefaults(simulation.Defaults{
			IgnoreArm:            cfg.IgnoreArm,
			ConvertPackageToUnit: cfg.ConvertPackageToUnit,
		}),
	)
	if err := service.EnsureLimits(cfg.Limits); err != nil {
		closeQuietly(closer)
		return nil, fmt.Errorf("failed to apply default box limits: %w", err)
	}

	handler := api.NewHandler(service,
		api.WithMaxUploadBytes(cfg.MaxUploadBytes),
		api.WithReadOptions(sheet.ReadOptions{Sheet: cfg.SheetName, Encoding: cfg.CSVEncoding}),
	)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithMetrics(m),
	)

	return &App{
		storage: store,
		closer:  closer,
		service: service,
		metrics: m,
		handler: handler,
		router:  apiRouter,
		logger:  logger,
		server:  NewServer(cfg, BuildRootHandler(apiRouter, m.Handler())),
	}, nil
}

// OpenStorage builds the run store selected by cfg. The returned closer is
// nil for stores that hold no external resources.
func OpenStorage(cfg config.Config) (storage.Storage, io.Closer, error) {
	switch cfg.StorageDriver {
	case config.StorageSQLite:
		store, err := storage.OpenSQLite(cfg.SQLiteDSN, cfg.RunRetention)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return store, store, nil
	case config.StorageMemory, "":
		return storage.NewMemoryStorage(cfg.RunRetention), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// BuildRootHandler routes API requests and exposes metrics.
func BuildRootHandler(apiHandler, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("GET /metrics", metricsHandler)
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/api/health", http.StatusTemporaryRedirect)
	}))
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Close releases the storage backend.
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

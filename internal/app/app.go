package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"taskManager/internal/config"
	"taskManager/internal/handlers"
	"taskManager/internal/logger"
	"taskManager/internal/middleware"
	"taskManager/internal/repository/task/cached"
	"taskManager/internal/service"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config     *config.Config
	server     *http.Server
	router     http.Handler
	repository service.TaskRepository
	service    *service.TaskService
	shutdowns  []func() // run in reverse order on shutdown
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

func (a *App) Init(ctx context.Context) (*App, error) {
	if err := logger.Init(a.config.IsDevelopment()); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("App: flushing logs")
		logger.Sync()
	})

	store, repoType, err := OpenStore(ctx, a.config)
	if err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("init store: %w", err)
	}
	a.shutdowns = append(a.shutdowns, store.Close)
	a.repository = store

	if a.config.Redis.Addr != "" {
		cache, err := a.initCache(ctx, store)
		if err != nil {
			a.Shutdown()
			return nil, fmt.Errorf("init cache: %w", err)
		}
		a.shutdowns = append(a.shutdowns, cache.Close)
		a.repository = cache
	}

	svc := service.NewTaskService(a.repository, repoType)
	a.service = &svc

	handler := handlers.NewTaskHandler(a.service, string(repoType))
	a.router = NewRouter(handler, a.config)

	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           otelhttp.NewHandler(a.router, handlers.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("App: initialised",
		zap.String("addr", a.server.Addr),
		zap.String("store", string(repoType)),
		zap.Bool("cache", a.config.Redis.Addr != ""),
		zap.String("environment", a.config.Environment))
	return a, nil
}

func (a *App) initCache(ctx context.Context, store Store) (*cached.Storage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     a.config.Redis.Addr,
		Password: a.config.Redis.Password,
		DB:       a.config.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", a.config.Redis.Addr, err)
	}

	logger.Info("App: redis cache enabled",
		zap.String("addr", a.config.Redis.Addr),
		zap.Duration("ttl", a.config.Redis.TTL))
	return cached.New(store, client, a.config.Redis.Prefix, a.config.Redis.TTL), nil
}

// NewRouter builds the full middleware stack around the task API.
func NewRouter(handler *handlers.TaskHandler, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{middleware.RequestIdHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Recover)
	if cfg.Server.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	}
	r.Use(middleware.RateLimit(cfg.RateLimit.RPM))

	handler.Register(r)
	return r
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves until ctx is cancelled or the listener fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("App: server started", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("App: shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})

	err := g.Wait()
	a.Shutdown()
	return err
}

func (a *App) Shutdown() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	a.shutdowns = nil
}

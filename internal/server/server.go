package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cvdreamjob/apiserver/config"
	"github.com/cvdreamjob/apiserver/internal/auth"
	"github.com/cvdreamjob/apiserver/internal/db"
	"github.com/cvdreamjob/apiserver/internal/handlers"
	"github.com/cvdreamjob/apiserver/internal/logging"
	"github.com/cvdreamjob/apiserver/internal/mq"
	"github.com/cvdreamjob/apiserver/internal/services"
	"github.com/cvdreamjob/apiserver/internal/storage"
	"github.com/cvdreamjob/apiserver/internal/store"
)

// Backend constructors, replaced in tests.
var (
	openBroker  = mq.Open
	openStorage = storage.Open
)

// Deps are the collaborators the router is built from. Objects and Events
// are optional.
type Deps struct {
	Logger   *slog.Logger
	Store    *store.Store
	Hasher   services.PasswordHasher
	Resolver auth.Resolver
	Objects  services.ObjectStore
	Events   services.EventPublisher
	Channel  string
	Timeout  time.Duration
	// RatePerMinute <= 0 disables the mutation rate limit.
	RatePerMinute int
	RateBurst     int
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	objects    *storage.Storage
	logger     *slog.Logger
}

// New constructs a Server and everything it owns from cfg.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	broker, err := openBroker(ctx, cfg.MQ)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}

	objects, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		if broker != nil {
			_ = broker.Close()
		}
		_ = pool.Close()
		return nil, err
	}

	st := store.New(pool)

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is empty; bearer JWTs are disabled")
	}
	var cookieOpts []auth.StoreOption
	if cfg.SessionSecret != "" {
		cookieOpts = append(cookieOpts, auth.WithCookieSecret(cfg.SessionSecret))
	}

	deps := Deps{
		Logger:        logger,
		Store:         st,
		Hasher:        services.NewBcryptHasher(cfg.BcryptCost),
		Resolver:      auth.Chain(auth.NewTokenResolver(cfg.JWTSecret), auth.NewStoreResolver(st.Sessions(), cookieOpts...)),
		Channel:       cfg.MQ.Channel,
		Timeout:       cfg.Database.StatementTimeout,
		RatePerMinute: cfg.RateLimit.PerMinute,
		RateBurst:     cfg.RateLimit.Burst,
	}
	// Leave the interfaces nil when a backend is not configured.
	if objects != nil {
		deps.Objects = objects
	}
	if broker != nil {
		deps.Events = broker
	}

	router := NewRouter(deps)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server configured",
		"port", port,
		"db_driver", cfg.Database.Driver,
		"storage_backend", cfg.Storage.Backend,
		"mq_backend", cfg.MQ.Backend,
	)

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         pool,
		mq:         broker,
		objects:    objects,
		logger:     logger,
	}, nil
}

// NewRouter wires middleware, services and routes.
func NewRouter(deps Deps) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var avatars *services.AvatarService
	opts := []services.ProfileOption{services.WithTimeout(deps.Timeout)}
	if deps.Objects != nil {
		avatars = services.NewAvatarService(deps.Objects)
		opts = append(opts, services.WithAvatarCleanup(avatars))
	}
	if deps.Events != nil {
		opts = append(opts, services.WithEvents(deps.Events, deps.Channel))
	}
	profiles := services.NewProfileService(deps.Store, deps.Hasher, opts...)

	var limit func(http.Handler) http.Handler
	if deps.RatePerMinute > 0 {
		limit = handlers.NewUserRateLimiter(deps.RatePerMinute, deps.RateBurst).Middleware
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.HTTPMiddleware(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Get("/readyz", handlers.Readyz(deps.Store))
	router.Route("/profile", func(r chi.Router) {
		handlers.ProfileRouter(r, profiles, avatars, handlers.RequireSession(deps.Resolver), limit)
	})
	if avatars != nil {
		router.Route("/avatars", func(r chi.Router) {
			handlers.AvatarRouter(r, avatars)
		})
	}
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the broker, the object
// store and the pool.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		err = errors.Join(err, s.mq.Close())
	}
	if s.objects != nil {
		err = errors.Join(err, s.objects.Close())
	}
	if s.db != nil {
		err = errors.Join(err, s.db.Close())
	}
	return err
}

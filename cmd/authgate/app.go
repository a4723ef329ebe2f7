package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mohamedseffine/01Blog/internal/db"
	"github.com/Mohamedseffine/01Blog/internal/handlers"
	"github.com/Mohamedseffine/01Blog/internal/logger"
	"github.com/Mohamedseffine/01Blog/internal/ratelimit"
	"github.com/Mohamedseffine/01Blog/internal/repository"
	"github.com/Mohamedseffine/01Blog/internal/repository/memory"
	"github.com/Mohamedseffine/01Blog/internal/repository/postgres"
	"github.com/Mohamedseffine/01Blog/internal/service/auth"
	"github.com/Mohamedseffine/01Blog/internal/service/auth/tokenmanager"
	"github.com/Mohamedseffine/01Blog/internal/service/user"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger logger.Logger
	// Release connections after server stopped
	closers []func()
}

func NewServerApp(ctx context.Context, c *Config) (_ *ServerApp, err error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	app := &ServerApp{ListenAddr: c.ListenAddr, logger: logger}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	storage, err := app.newStorage(ctx, c)
	if err != nil {
		return nil, err
	}

	buckets, err := app.newBucketStore(c)
	if err != nil {
		return nil, err
	}

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
		Issuer:     c.TokenIssuer,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	userService := user.NewService(user.DefaultHasher, storage)
	authService, err := auth.NewService(auth.Config{
		Hasher:              user.DefaultHasher,
		Logger:              logger,
		RefreshCookieSecure: c.CookieSecure,
	}, tokenManager, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	if c.AdminUsername != "" {
		admin, created, err := userService.EnsureAdmin(ctx, c.AdminUsername, c.AdminEmail, c.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("error while seeding admin. Err: %w", err)
		}
		logger.Info("admin account ensured", "username", admin.Username, "created", created)
	}

	app.Handler = handlers.NewRouter(
		authService,
		userService,
		ratelimit.NewController(ratelimit.DefaultPolicy(), buckets),
		logger,
	)

	return app, nil
}

// Postgres if database configured, process memory otherwise
func (s *ServerApp) newStorage(ctx context.Context, c *Config) (repository.Storage, error) {
	if c.DatabaseDSN == "" {
		s.logger.Warn("database is not configured, accounts are kept in memory")
		return memory.NewStorage(), nil
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	s.closers = append(s.closers, pool.Close)

	return postgres.NewStorage(pool), nil
}

// Redis buckets guarded by memory ones if redis configured, memory buckets otherwise
func (s *ServerApp) newBucketStore(c *Config) (ratelimit.BucketStore, error) {
	local, err := ratelimit.NewMemoryStore(ratelimit.MemoryConfig{MaxBuckets: c.RateLimitBuckets})
	if err != nil {
		return nil, fmt.Errorf("error while creating rate limit buckets. Err: %w", err)
	}
	if c.RedisAddr == "" {
		return local, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	s.closers = append(s.closers, func() { _ = rdb.Close() })

	return ratelimit.NewFallbackStore(
		ratelimit.NewRedisStore(rdb, ratelimit.RedisConfig{}),
		local,
		ratelimit.FallbackConfig{Logger: s.logger},
	), nil
}

func (s *ServerApp) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}

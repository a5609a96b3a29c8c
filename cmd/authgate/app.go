package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/authgate/internal/cache"
	"github.com/nkiryanov/authgate/internal/db"
	"github.com/nkiryanov/authgate/internal/failover"
	"github.com/nkiryanov/authgate/internal/handlers"
	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/repository/postgres"
	"github.com/nkiryanov/authgate/internal/service/auth"
	"github.com/nkiryanov/authgate/internal/service/auth/bruteforce"
	"github.com/nkiryanov/authgate/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authgate/internal/service/ratelimit"
	"github.com/nkiryanov/authgate/internal/service/user"
)

const (
	shutdownTimeout = 5 * time.Second
	sweepInterval   = time.Minute
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger logger.Logger
	memory *bruteforce.MemoryStore
	hits   *ratelimit.MemoryStore
	pool   *pgxpool.Pool
	redis  *redis.Client
}

func NewServerApp(ctx context.Context, c *Config) (app *ServerApp, err error) {
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger. Err: %w", err)
	}

	if err := logger.InitSentry(c.SentryDSN, c.Environment); err != nil {
		return nil, fmt.Errorf("error while initializing sentry. Err: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	defer func() {
		if err != nil {
			pool.Close()
		}
	}()

	redisClient, err := cache.Connect(ctx, c.RedisURL, l)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
	}
	defer func() {
		if err != nil {
			redisClient.Close() // nolint:errcheck
		}
	}()

	// Login guard: shared redis counters, memory while redis is down
	redisStore := bruteforce.NewRedisStore(redisClient)
	memoryStore := bruteforce.NewMemoryStore(nil)
	guard, err := bruteforce.NewGuard(
		bruteforce.NewFailover(redisStore, memoryStore, failover.DefaultPingTimeout, l),
		bruteforce.Policy{MaxAttempts: c.MaxLoginAttempts, LockoutDuration: c.LockoutDuration},
		l,
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating login guard. Err: %w", err)
	}

	// Per-client rate limits on the same redis
	hitsStore := ratelimit.NewMemoryStore(nil)
	limiter, err := ratelimit.NewLimiter(
		ratelimit.NewFailover(ratelimit.NewRedisStore(redisClient, nil), hitsStore, failover.DefaultPingTimeout, l),
		ratelimit.Policy{Auth: c.RateLimitAuth, Write: c.RateLimitWrite, Global: c.RateLimitGlobal},
		l,
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating rate limiter. Err: %w", err)
	}

	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	userService := user.NewService(auth.DefaultHasher, postgres.NewStorage(pool))
	authService, err := auth.NewAuthService(tokenManager, guard, userService, l)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	mux := handlers.NewRouter(
		authService,
		userService,
		auth.NewGate(tokenManager, userService),
		limiter,
		handlers.HealthChecks{Database: pool, Cache: redisStore},
		l,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     l,
		memory:     memoryStore,
		hits:       hitsStore,
		pool:       pool,
		redis:      redisClient,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go s.memory.Run(srvCtx, sweepInterval)
	go s.hits.Run(srvCtx, sweepInterval)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
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

// Close releases connections, call after Run returns
func (s *ServerApp) Close() {
	s.pool.Close()
	if err := s.redis.Close(); err != nil {
		s.logger.Warn("error while closing redis client", "error", err)
	}
	logger.FlushSentry()
}

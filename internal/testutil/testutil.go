// Package testutil starts backing services for tests: postgres in a container,
// redis in process.
package testutil

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/nkiryanov/authgate/internal/db"
)

const (
	postgresImage   = "postgres:17-alpine"
	postgresStartup = 2 * time.Minute
)

// Free tcp port on loopback. Nothing listens on it once returned
func RandomPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	port := ln.Addr().(*net.TCPAddr).Port
	return port, ln.Close()
}

// Migrated database of a running container
type Postgres struct {
	DSN  string
	Pool *pgxpool.Pool
}

// StartPostgres runs postgres container with the users schema applied.
// Container and pool are released when the test ends.
// Test is skipped if docker is not available.
func StartPostgres(t *testing.T) *Postgres {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), postgresStartup)
	defer cancel()

	container, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("authgate"),
		postgres.WithUsername("authgate"),
		postgres.WithPassword("authgate"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "postgres container should start")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "postgres container should report its dsn")

	pool, err := db.ConnectAndMigrate(ctx, dsn)
	require.NoError(t, err, "users schema should be applied")
	t.Cleanup(pool.Close)

	return &Postgres{DSN: dsn, Pool: pool}
}

// InTx runs fn in a transaction that is rolled back afterwards,
// so every subtest sees an empty users table.
func (p *Postgres) InTx(t *testing.T, fn func(tx pgx.Tx)) {
	t.Helper()

	tx, err := p.Pool.Begin(t.Context())
	require.NoError(t, err)
	defer func() {
		require.NoError(t, tx.Rollback(context.WithoutCancel(t.Context())))
	}()

	fn(tx)
}

// StartRedis runs in-process redis and a client connected to it.
// Close the server to simulate an outage; Restart brings it back on the same address.
func StartRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

// Redis url of the server for code configured by url
func RedisURL(mr *miniredis.Miniredis) string {
	return fmt.Sprintf("redis://%s/0", mr.Addr())
}

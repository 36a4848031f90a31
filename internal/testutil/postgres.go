// Package testutil provides shared testing infrastructure, following the
// pattern of packages like net/http/httptest.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/arcalabs/arca/db"
	"github.com/arcalabs/arca/internal/log"
)

// TestDB wraps a disposable PostgreSQL instance with pgvector and the
// project schema applied.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB starts a pgvector-enabled PostgreSQL container, runs the
// embedded migrations, and returns a ready connection pool plus a cleanup
// function. Tests are skipped when ARCA_INTEGRATION_TESTS is unset so the
// default `go test ./...` run needs no Docker daemon.
func SetupTestDB(t *testing.T) (*TestDB, func()) {
	t.Helper()

	if os.Getenv("ARCA_INTEGRATION_TESTS") == "" {
		t.Skip("set ARCA_INTEGRATION_TESTS=1 to run container-backed tests")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("arca_test"),
		postgres.WithUsername("arca_test"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("starting PostgreSQL container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("getting connection string: %v", err)
	}

	if err := db.Migrate(connStr, log.NewNop()); err != nil {
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("running migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("creating connection pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("pinging database: %v", err)
	}

	tdb := &TestDB{Container: pgContainer, Pool: pool, ConnStr: connStr}
	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(context.Background())
	}
	return tdb, cleanup
}

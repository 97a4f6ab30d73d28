package database

import (
	"context"
	stdsql "database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestClient creates a test database client with CI/local environment detection.
// In CI (when CI_DATABASE_URL is set): connects to an external PostgreSQL service container.
// In local dev: spins up a testcontainer with PostgreSQL.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	connStr := os.Getenv("CI_DATABASE_URL")

	if connStr != "" {
		t.Log("Using external PostgreSQL from CI_DATABASE_URL")
	} else {
		t.Log("Using testcontainers for PostgreSQL")
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		require.NoError(t, err)

		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})

		connStr, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	db, err := stdsql.Open("pgx", connStr)
	require.NoError(t, err)

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, runMigrations(db, "test"))

	client := NewClientFromDB(db)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func TestClientConnectionPool(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	err := client.DB().PingContext(ctx)
	require.NoError(t, err)

	health, err := Health(ctx, client.DB())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Greater(t, health.MaxOpenConns, 0)
}

func TestMigrationsCreateSchema(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	// Running migrations again must be a no-op
	require.NoError(t, runMigrations(client.DB(), "test"))

	for _, table := range []string{"sessions", "messages", "tool_calls", "llm_calls"} {
		var count int
		err := client.DB().QueryRowContext(ctx,
			`SELECT COUNT(*) FROM information_schema.tables WHERE table_name = $1`,
			table,
		).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
}

func TestSessionDeleteCascades(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	db := client.DB()

	_, err := db.ExecContext(ctx, `INSERT INTO sessions (id) VALUES ('cascade-test')`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx,
		`INSERT INTO messages (session_id, position, role, content) VALUES ('cascade-test', 0, 'system', 'prompt')`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx,
		`INSERT INTO tool_calls (session_id, tool_name, success) VALUES ('cascade-test', 'ping_gateway', true)`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx,
		`INSERT INTO llm_calls (session_id, provider, model) VALUES ('cascade-test', 'local-default', 'llama3.1:8b')`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `DELETE FROM sessions WHERE id = 'cascade-test'`)
	require.NoError(t, err)

	for _, table := range []string{"messages", "tool_calls", "llm_calls"} {
		var count int
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+table+` WHERE session_id = 'cascade-test'`).Scan(&count)
		require.NoError(t, err)
		assert.Zero(t, count, "rows in %s should cascade away", table)
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{
		Host:     "db.internal",
		Port:     5433,
		User:     "netmedic",
		Password: "secret",
		Database: "diagnostics",
		SSLMode:  "require",
	}

	assert.Equal(t,
		"host=db.internal port=5433 user=netmedic password=secret dbname=diagnostics sslmode=require",
		cfg.DSN())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "10.0.0.5")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_USER", "svc")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "history")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")

	cfg, err := LoadConfigFromEnv()

	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.Host)
	assert.Equal(t, 5433, cfg.Port)
	assert.Equal(t, "svc", cfg.User)
	assert.Equal(t, "pw", cfg.Password)
	assert.Equal(t, "history", cfg.Database)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 20, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.True(t, Enabled())
}

func TestLoadConfigFromEnvInvalidPort(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")

	_, err := LoadConfigFromEnv()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid DB_PORT")
}

func TestEnabledWithoutHost(t *testing.T) {
	t.Setenv("DB_HOST", "")
	assert.False(t, Enabled())
}

package pgstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/internal/storage/storagetest"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/fulltext-engine/pkg/resilience"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	if os.Getenv("TEST_POSTGRES_HOST") == "" {
		t.Skip("skipping: TEST_POSTGRES_HOST not set")
	}
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	db, err := postgres.New(config.PostgresConfig{
		Host:            os.Getenv("TEST_POSTGRES_HOST"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "fulltext_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "fulltext"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func freshTables(t *testing.T, client *postgres.Client) Tables {
	t.Helper()
	db := client.DB
	tables := TablesFor(fmt.Sprintf("fts_test_%d", time.Now().UnixNano()))
	require.NoError(t, Migrate(context.Background(), client, tables))
	require.NoError(t, Migrate(context.Background(), client, tables), "migrations are idempotent")
	t.Cleanup(func() {
		db.Exec("DROP TABLE IF EXISTS " + pq.QuoteIdentifier(tables.Terms))
		db.Exec("DROP TABLE IF EXISTS " + pq.QuoteIdentifier(tables.Content))
	})
	return tables
}

func TestTermStore(t *testing.T) {
	client := skipIfNoPostgres(t)
	tables := freshTables(t, client)
	storagetest.RunTermStore(t, NewTermStore(client.DB, tables.Terms, resilience.RetryConfig{MaxAttempts: 1}))
}

func TestContentStore(t *testing.T) {
	client := skipIfNoPostgres(t)
	tables := freshTables(t, client)
	storagetest.RunContentStore(t, NewContentStore(client.DB, tables.Content, resilience.RetryConfig{MaxAttempts: 1}))
}

func TestSchemaQuotesIdentifiers(t *testing.T) {
	ddl := strings.Join(Schema(TablesFor(`odd"name`)), ";\n")
	assert.Contains(t, ddl, `"odd""name_terms"`)
	assert.Contains(t, ddl, `"odd""name_content"`)
	assert.Contains(t, ddl, "UNIQUE (term, segment)")
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bad conn", fmt.Errorf("exec: %w", driver.ErrBadConn), true},
		{"connection failure", &pq.Error{Code: "08006"}, true},
		{"serialization", &pq.Error{Code: "40001"}, true},
		{"admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"no rows", sql.ErrNoRows, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pq.Error{Code: "23505"})))
}

func TestDoStopsOnPermanentError(t *testing.T) {
	b := base{retry: resilience.RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}}
	calls := 0
	err := b.do(context.Background(), "op", func() error {
		calls++
		return sql.ErrNoRows
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.Equal(t, 1, calls)

	calls = 0
	err = b.do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return driver.ErrBadConn
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

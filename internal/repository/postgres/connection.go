package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryConfig holds shared dependencies for repository implementations.
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names, so dev/test/prod can
// share one database.
type TableNames struct {
	Sessions string
	Messages string
}

// NewTableNames creates table names with the given prefix.
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Sessions: fmt.Sprintf("%ssessions", prefix),
		Messages: fmt.Sprintf("%smessages", prefix),
	}
}

// CreateConnectionPool creates a pgx connection pool with PgBouncer
// compatibility. Supabase's transaction pooler (port 6543) rejects prepared
// statements, so cache_describe mode is selected automatically there; an
// explicit default_query_exec_mode in the connection string takes precedence.
//
// Table prefixes interpolated with fmt.Sprintf are safe alongside prepared
// statements: the SQL text is fixed before it reaches the database, and each
// prefix yields its own statement.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/repositories"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Threads  string
	Messages string
	Memories string
	Profiles string
}

// NewTableNames creates table names with the given prefix.
// Profiles are owned by the auth/profile service and are not prefixed.
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Threads:  fmt.Sprintf("%sthreads", prefix),
		Messages: fmt.Sprintf("%smessages", prefix),
		Memories: fmt.Sprintf("%smemories", prefix),
		Profiles: "profiles",
	}
}

// CreateConnectionPool creates a pgx pool.
//
// Supabase's transaction pooler (port 6543) does not support prepared
// statements, so for that port the pool switches to QueryExecModeCacheDescribe,
// which keeps the extended protocol (needed to encode map[string]interface{}
// as JSONB and pgvector values) without server-side prepared statements.
// An explicit default_query_exec_mode in the URL takes precedence.
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

// GetExecutor returns the transaction stored in ctx, or the pool when there is none.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.TxFrom(ctx); tx != nil {
		return tx
	}
	return pool
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the orchestration tables if they don't exist.
// dimensions must match the embedding model's vector size.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames, tablePrefix string, dimensions int) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS ` + tables.Threads + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL,
			tool_id TEXT,
			title TEXT NOT NULL DEFAULT '',
			has_custom_title BOOLEAN NOT NULL DEFAULT FALSE,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS ` + tables.Messages + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			thread_id UUID NOT NULL REFERENCES ` + tables.Threads + `(id) ON DELETE CASCADE,
			user_id UUID NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('system', 'user', 'assistant', 'function')),
			content TEXT NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL,
			thread_id UUID,
			content TEXT NOT NULL,
			memory_type TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, tables.Memories, dimensions),
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `threads_user_updated ON ` + tables.Threads + `(user_id, updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `messages_thread_created ON ` + tables.Messages + `(thread_id, created_at)`,
		// One reconciled workflow result per thread
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + tablePrefix + `messages_workflow_result ON ` + tables.Messages +
			`(thread_id) WHERE metadata ? 'workflowResultFor'`,
		// and one failure notice per submission attempt
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + tablePrefix + `messages_workflow_failure ON ` + tables.Messages +
			`((metadata->>'workflowFailureFor')) WHERE metadata ? 'workflowFailureFor'`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `memories_user ON ` + tables.Memories + `(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `memories_embedding ON ` + tables.Memories +
			` USING hnsw (embedding vector_cosine_ops)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// DropSchema drops the orchestration tables (children first).
func DropSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	for _, table := range []string{tables.Memories, tables.Messages, tables.Threads} {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}

package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	models "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	chatRepo "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/repositories/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/repository/postgres"
)

// PostgresMemoryRepository stores memories with a pgvector embedding column
type PostgresMemoryRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewMemoryRepository creates a new PostgresMemoryRepository
func NewMemoryRepository(config *postgres.RepositoryConfig) chatRepo.MemoryRepository {
	return &PostgresMemoryRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// CreateMemory inserts a memory row
func (r *PostgresMemoryRepository) CreateMemory(ctx context.Context, memory *models.Memory) error {
	if len(memory.Embedding) == 0 {
		return errors.New("memory embedding is empty")
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, thread_id, content, memory_type, embedding)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, r.tables.Memories)

	var threadID *string
	if memory.ThreadID != "" {
		threadID = &memory.ThreadID
	}

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		memory.UserID,
		threadID,
		memory.Content,
		string(memory.Type),
		pgvector.NewVector(memory.Embedding),
	).Scan(&memory.ID, &memory.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "failed to insert memory")
	}

	return nil
}

// SearchMemories ranks the user's memories by cosine similarity to vector.
// The <=> operator is cosine distance, so ascending order is most similar first.
func (r *PostgresMemoryRepository) SearchMemories(ctx context.Context, userID string, vector []float32, k int) ([]models.ScoredMemory, error) {
	if k <= 0 {
		k = 5
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, COALESCE(thread_id::text, ''), content, memory_type, embedding, created_at,
			1 - (embedding <=> $1) AS score
		FROM %s
		WHERE user_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`, r.tables.Memories)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, pgvector.NewVector(vector), userID, k)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search memories")
	}
	defer rows.Close()

	results := []models.ScoredMemory{}
	for rows.Next() {
		var m models.ScoredMemory
		var memoryType string
		var embedding pgvector.Vector
		if err := rows.Scan(
			&m.ID,
			&m.UserID,
			&m.ThreadID,
			&m.Content,
			&memoryType,
			&embedding,
			&m.CreatedAt,
			&m.Score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan memory")
		}
		m.Type = models.MemoryType(memoryType)
		m.Embedding = embedding.Slice()
		results = append(results, m)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate memories")
	}

	return results, nil
}

// DeleteUserMemories removes every memory of userID
func (r *PostgresMemoryRepository) DeleteUserMemories(ctx context.Context, userID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, r.tables.Memories)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, userID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete memories")
	}

	return result.RowsAffected(), nil
}

package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	models "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	chatRepo "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/repositories/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/repository/postgres"
)

// PostgresThreadRepository implements chatRepo.ThreadRepository
type PostgresThreadRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewThreadRepository creates a new PostgresThreadRepository
func NewThreadRepository(config *postgres.RepositoryConfig) chatRepo.ThreadRepository {
	return &PostgresThreadRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

const threadColumns = `id, user_id, tool_id, title, has_custom_title, metadata, created_at, updated_at`

// CreateThread inserts a new thread. A caller-supplied ID is kept so the
// client-minted chat id becomes the thread id; an empty ID is generated.
func (r *PostgresThreadRepository) CreateThread(ctx context.Context, thread *models.Thread) error {
	if thread.Metadata == nil {
		thread.Metadata = map[string]interface{}{}
	}

	var id *string
	if thread.ID != "" {
		id = &thread.ID
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, tool_id, title, has_custom_title, metadata)
		VALUES (COALESCE($1::uuid, uuid_generate_v4()), $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, r.tables.Threads)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		id,
		thread.UserID,
		thread.ToolID,
		thread.Title,
		thread.HasCustomTitle,
		thread.Metadata,
	).Scan(&thread.ID, &thread.CreatedAt, &thread.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return &domain.ConflictError{
				Message:      "thread already exists",
				ResourceType: "thread",
				ResourceID:   thread.ID,
			}
		}
		return fmt.Errorf("create thread: %w", err)
	}

	return nil
}

// GetThread retrieves a thread owned by userID
func (r *PostgresThreadRepository) GetThread(ctx context.Context, threadID, userID string) (*models.Thread, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND user_id = $2`, threadColumns, r.tables.Threads)
	return r.getOne(ctx, threadID, query, threadID, userID)
}

// GetThreadByIDOnly retrieves a thread by id without owner scoping
func (r *PostgresThreadRepository) GetThreadByIDOnly(ctx context.Context, threadID string) (*models.Thread, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, threadColumns, r.tables.Threads)
	return r.getOne(ctx, threadID, query, threadID)
}

func (r *PostgresThreadRepository) getOne(ctx context.Context, threadID, query string, args ...interface{}) (*models.Thread, error) {
	var t models.Thread
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, args...).Scan(
		&t.ID,
		&t.UserID,
		&t.ToolID,
		&t.Title,
		&t.HasCustomTitle,
		&t.Metadata,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return &t, nil
}

// ListThreads returns a user's threads, most recently updated first
func (r *PostgresThreadRepository) ListThreads(ctx context.Context, userID string) ([]models.Thread, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1 ORDER BY updated_at DESC`, threadColumns, r.tables.Threads)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	threads := []models.Thread{}
	for rows.Next() {
		var t models.Thread
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.ToolID,
			&t.Title,
			&t.HasCustomTitle,
			&t.Metadata,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}

	return threads, nil
}

// UpdateTitle sets a thread's title
func (r *PostgresThreadRepository) UpdateTitle(ctx context.Context, threadID, userID, title string, custom bool) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, has_custom_title = $2, updated_at = NOW()
		WHERE id = $3 AND user_id = $4
	`, r.tables.Threads)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, title, custom, threadID, userID)
	if err != nil {
		return fmt.Errorf("update thread title: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	return nil
}

// MergeMetadata applies metadata || patch in a single statement so concurrent
// writers never lose each other's keys. The questionsAnswered guard makes
// progress monotonic even if two turns race.
func (r *PostgresThreadRepository) MergeMetadata(ctx context.Context, threadID string, patch map[string]interface{}) error {
	var guard *int
	if n, ok := models.MetaInt(patch[models.MetaQuestionsAnswered]); ok {
		guard = &n
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET metadata = COALESCE(metadata, '{}'::jsonb) || $2::jsonb, updated_at = NOW()
		WHERE id = $1
		  AND ($3::int IS NULL OR COALESCE((metadata->>'questionsAnswered')::int, 0) <= $3::int)
	`, r.tables.Threads)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, threadID, patch, guard)
	if err != nil {
		return fmt.Errorf("merge thread metadata: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	// Distinguish a missing thread from a rejected (stale) progress write
	var exists bool
	existsQuery := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, r.tables.Threads)
	if err := executor.QueryRow(ctx, existsQuery, threadID).Scan(&exists); err != nil {
		return fmt.Errorf("check thread: %w", err)
	}
	if !exists {
		return fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}

	r.logger.Warn("stale progress write rejected", "thread_id", threadID, "questions_answered", *guard)
	return &domain.ConflictError{
		Message:      "thread progress has moved on",
		ResourceType: "thread",
		ResourceID:   threadID,
	}
}

// DeleteThread deletes a thread; messages cascade
func (r *PostgresThreadRepository) DeleteThread(ctx context.Context, threadID, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, r.tables.Threads)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, threadID, userID)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	return nil
}

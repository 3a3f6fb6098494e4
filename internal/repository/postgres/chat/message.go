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

// PostgresMessageRepository implements chatRepo.MessageRepository
type PostgresMessageRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewMessageRepository creates a new PostgresMessageRepository
func NewMessageRepository(config *postgres.RepositoryConfig) chatRepo.MessageRepository {
	return &PostgresMessageRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// CreateMessage appends a message to its thread and bumps the thread's updated_at
func (r *PostgresMessageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (thread_id, user_id, role, content, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		msg.ThreadID,
		msg.UserID,
		string(msg.Role),
		msg.Content,
		msg.Metadata,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return &domain.ConflictError{
				Message:      "message already exists",
				ResourceType: "message",
				ResourceID:   msg.ThreadID,
			}
		}
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("thread %s: %w", msg.ThreadID, domain.ErrNotFound)
		}
		return fmt.Errorf("create message: %w", err)
	}

	touch := fmt.Sprintf(`UPDATE %s SET updated_at = NOW() WHERE id = $1`, r.tables.Threads)
	if _, err := executor.Exec(ctx, touch, msg.ThreadID); err != nil {
		r.logger.Warn("failed to touch thread", "thread_id", msg.ThreadID, "error", err)
	}

	return nil
}

// ListMessages returns a thread's messages oldest first
func (r *PostgresMessageRepository) ListMessages(ctx context.Context, threadID string) ([]models.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, thread_id, user_id, role, content, metadata, created_at
		FROM %s
		WHERE thread_id = $1
		ORDER BY created_at ASC, id ASC
	`, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		var role string
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.UserID, &role, &m.Content, &m.Metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = models.Role(role)
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// FindByMetadata returns the first message whose metadata key equals value
func (r *PostgresMessageRepository) FindByMetadata(ctx context.Context, threadID, key, value string) (*models.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, thread_id, user_id, role, content, metadata, created_at
		FROM %s
		WHERE thread_id = $1 AND metadata->>$2 = $3
		ORDER BY created_at ASC
		LIMIT 1
	`, r.tables.Messages)

	var m models.Message
	var role string
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, threadID, key, value).Scan(
		&m.ID, &m.ThreadID, &m.UserID, &role, &m.Content, &m.Metadata, &m.CreatedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("message with %s=%s: %w", key, value, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	m.Role = models.Role(role)
	return &m, nil
}

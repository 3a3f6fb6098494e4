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

// PostgresProfileRepository reads the profiles table maintained by the app
type PostgresProfileRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewProfileRepository creates a new PostgresProfileRepository
func NewProfileRepository(config *postgres.RepositoryConfig) chatRepo.ProfileRepository {
	return &PostgresProfileRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// GetProfile retrieves the profile for userID
func (r *PostgresProfileRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	query := fmt.Sprintf(`
		SELECT user_id,
			COALESCE(full_name, ''),
			COALESCE(occupation, ''),
			COALESCE(business_name, ''),
			COALESCE(target_audience, ''),
			COALESCE(desired_mrr, ''),
			COALESCE(desired_hours, '')
		FROM %s
		WHERE user_id = $1
	`, r.tables.Profiles)

	var p models.Profile
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.FullName,
		&p.Occupation,
		&p.BusinessName,
		&p.TargetAudience,
		&p.DesiredMRR,
		&p.DesiredHours,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("profile %s: %w", userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &p, nil
}

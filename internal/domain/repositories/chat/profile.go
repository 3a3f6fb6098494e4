package chat

import (
	"context"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
)

// ProfileRepository reads user profiles. Profiles are owned by another
// service; this core never writes them.
type ProfileRepository interface {
	// GetProfile returns domain.ErrNotFound when the user has no profile
	GetProfile(ctx context.Context, userID string) (*chat.Profile, error)
}

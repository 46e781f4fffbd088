package repositories

import (
	"context"

	"github.com/kaaltube/backend/internal/models"
)

// SearchRepository defines full-text search over videos and channels plus
// typeahead prefix suggestions.
type SearchRepository interface {
	SearchVideos(ctx context.Context, query string, limit int) ([]models.VideoSearchHit, error)
	// SearchChannels annotates each hit with the viewer's subscription state
	// when viewerID is non-empty.
	SearchChannels(ctx context.Context, query, viewerID string, limit int) ([]models.ChannelSearchHit, error)
	SuggestChannels(ctx context.Context, prefix string, limit int) ([]models.Suggestion, error)
	SuggestVideos(ctx context.Context, prefix string, limit int) ([]models.Suggestion, error)
}

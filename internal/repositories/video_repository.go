package repositories

import (
	"context"

	"github.com/kaaltube/backend/internal/models"
)

// VideoRepository defines persistence for video metadata and the per-user
// watch history set.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	FindByIDWithOwner(ctx context.Context, id string) (models.VideoWithOwner, error)
	ListPublished(ctx context.Context, limit int) ([]models.VideoWithOwner, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Video, error)
	SetPublished(ctx context.Context, id string, published bool) error
	Update(ctx context.Context, id, title, description, thumbnail string) error
	Delete(ctx context.Context, id string) error

	// RecordView counts a view at most once per viewer. It reports whether
	// this call was the first view.
	RecordView(ctx context.Context, videoID, viewerID string) (bool, error)

	UpsertWatchHistory(ctx context.Context, userID, videoID string) error
	ListWatchHistory(ctx context.Context, userID string) ([]models.VideoWithOwner, error)
	RemoveWatchHistory(ctx context.Context, userID, videoID string) error
}

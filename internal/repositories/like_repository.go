package repositories

import (
	"context"

	"github.com/kaaltube/backend/internal/models"
)

// LikeRepository defines persistence for likes on videos and comments. The
// toggles keep the denormalized counters on the liked row in step with the
// like rows themselves.
type LikeRepository interface {
	ToggleVideoLike(ctx context.Context, videoID, userID string) (liked bool, err error)
	RemoveVideoLike(ctx context.Context, videoID, userID string) error
	ListLikedVideos(ctx context.Context, userID string, limit int) ([]models.VideoWithOwner, error)
	ToggleCommentLike(ctx context.Context, commentID, userID string) (liked bool, err error)
}

package repositories

import (
	"context"

	"github.com/kaaltube/backend/internal/models"
)

// CommentRepository defines persistence for video comments.
type CommentRepository interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	// ListForVideo returns comments newest-first with owner profiles. When
	// viewerID is non-empty each row carries the viewer's like state.
	ListForVideo(ctx context.Context, videoID, viewerID string) ([]models.CommentWithOwner, error)
	Update(ctx context.Context, id, content string) (models.Comment, error)
	Delete(ctx context.Context, id string) error
}

package handlers

import (
	"context"
	"io"
	"time"

	"github.com/kaaltube/backend/internal/media"
	"github.com/kaaltube/backend/internal/models"
)

// UserStore captures the persistence operations required by the account handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateProfile(ctx context.Context, userID, fullName, username, email string) error
	SetAvatar(ctx context.Context, userID, assetID string) error
	SetCoverImage(ctx context.Context, userID, assetID string) error
}

// TokenIssuer mints and revokes the access/refresh pair for a user.
type TokenIssuer interface {
	Issue(ctx context.Context, userID string) (models.TokenPair, error)
	VerifyAccess(token string) (string, error)
	Rotate(ctx context.Context, refreshToken string) (models.TokenPair, error)
	Revoke(ctx context.Context, userID string) error
}

// OTPManager drives the email verification flow.
type OTPManager interface {
	Issue(ctx context.Context, user models.User) error
	Verify(ctx context.Context, emailAddr, code string) error
	Resend(ctx context.Context, emailAddr string) error
}

// VideoStore captures persistence for video metadata and watch history.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	FindByIDWithOwner(ctx context.Context, id string) (models.VideoWithOwner, error)
	ListPublished(ctx context.Context, limit int) ([]models.VideoWithOwner, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Video, error)
	SetPublished(ctx context.Context, id string, published bool) error
	Update(ctx context.Context, id, title, description, thumbnail string) error
	Delete(ctx context.Context, id string) error
	RecordView(ctx context.Context, videoID, viewerID string) (bool, error)
	UpsertWatchHistory(ctx context.Context, userID, videoID string) error
	ListWatchHistory(ctx context.Context, userID string) ([]models.VideoWithOwner, error)
	RemoveWatchHistory(ctx context.Context, userID, videoID string) error
}

// CommentStore captures persistence for the comment handlers.
type CommentStore interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	ListForVideo(ctx context.Context, videoID, viewerID string) ([]models.CommentWithOwner, error)
	Update(ctx context.Context, id, content string) (models.Comment, error)
	Delete(ctx context.Context, id string) error
}

// LikeStore captures persistence for the like handlers.
type LikeStore interface {
	ToggleVideoLike(ctx context.Context, videoID, userID string) (bool, error)
	ListLikedVideos(ctx context.Context, userID string, limit int) ([]models.VideoWithOwner, error)
	ToggleCommentLike(ctx context.Context, commentID, userID string) (bool, error)
	RemoveVideoLike(ctx context.Context, videoID, userID string) error
}

// SubscriptionStore captures persistence for the subscription handlers.
type SubscriptionStore interface {
	Subscribe(ctx context.Context, subscriberID, channelID string) error
	Unsubscribe(ctx context.Context, subscriberID, channelID string) error
	ListChannels(ctx context.Context, subscriberID string) ([]models.OwnerSummary, error)
	IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error)
	ChannelStats(ctx context.Context, channelID string) (models.ChannelStats, error)
	FindChannel(ctx context.Context, channelID string) (models.OwnerSummary, error)
}

// SearchStore captures full-text search and typeahead queries.
type SearchStore interface {
	SearchVideos(ctx context.Context, query string, limit int) ([]models.VideoSearchHit, error)
	SearchChannels(ctx context.Context, query, viewerID string, limit int) ([]models.ChannelSearchHit, error)
	SuggestChannels(ctx context.Context, prefix string, limit int) ([]models.Suggestion, error)
	SuggestVideos(ctx context.Context, prefix string, limit int) ([]models.Suggestion, error)
}

// AssetUploader persists uploaded media bytes under a storage key.
type AssetUploader interface {
	Save(ctx context.Context, key string, r io.Reader) (string, error)
}

// AssetCleaner schedules background deletion of replaced or orphaned assets.
type AssetCleaner interface {
	Enqueue(ctx context.Context, kind media.Kind, assetID string) error
}

func nowOrDefault(nowFunc func() time.Time) time.Time {
	if nowFunc != nil {
		return nowFunc()
	}
	return time.Now().UTC()
}

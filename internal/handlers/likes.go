package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kaaltube/backend/internal/api"
	"github.com/kaaltube/backend/internal/logging"
	"github.com/kaaltube/backend/internal/media"
	"github.com/kaaltube/backend/internal/middleware"
	"github.com/kaaltube/backend/internal/repositories"
)

// LikeHandler implements like toggles for videos and comments.
type LikeHandler struct {
	Likes    LikeStore
	Videos   VideoStore
	Comments CommentStore
	CDN      media.CDN
}

type likeResponse struct {
	Liked bool `json:"liked"`
}

// ToggleVideo handles POST /api/v1/likes/toggle/v/{videoID}.
func (h LikeHandler) ToggleVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Unauthenticated("authentication required"))
		return
	}

	videoID := chi.URLParam(r, "videoID")
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			api.WriteError(ctx, w, api.NotFound("video not found"))
			return
		}
		logging.FromContext(ctx).Error("like toggle video lookup failed", "error", err, "videoId", videoID)
		api.WriteError(ctx, w, err)
		return
	}

	liked, err := h.Likes.ToggleVideoLike(ctx, videoID, user.ID)
	if err != nil {
		logging.FromContext(ctx).Error("video like toggle failed", "error", err, "videoId", videoID)
		api.WriteError(ctx, w, err)
		return
	}

	message := "like removed"
	if liked {
		message = "video liked"
	}
	api.WriteData(ctx, w, http.StatusOK, likeResponse{Liked: liked}, message)
}

// ToggleComment handles POST /api/v1/likes/toggle/c/{commentID}.
func (h LikeHandler) ToggleComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Unauthenticated("authentication required"))
		return
	}

	commentID := chi.URLParam(r, "commentID")
	if _, err := h.Comments.FindByID(ctx, commentID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			api.WriteError(ctx, w, api.NotFound("comment not found"))
			return
		}
		logging.FromContext(ctx).Error("like toggle comment lookup failed", "error", err, "commentId", commentID)
		api.WriteError(ctx, w, err)
		return
	}

	liked, err := h.Likes.ToggleCommentLike(ctx, commentID, user.ID)
	if err != nil {
		logging.FromContext(ctx).Error("comment like toggle failed", "error", err, "commentId", commentID)
		api.WriteError(ctx, w, err)
		return
	}

	message := "like removed"
	if liked {
		message = "comment liked"
	}
	api.WriteData(ctx, w, http.StatusOK, likeResponse{Liked: liked}, message)
}

// RemoveVideo handles DELETE /api/v1/likes/v/{videoID}. Unlike the toggle it
// never re-adds a like, so clients can prune their liked list idempotently.
func (h LikeHandler) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Unauthenticated("authentication required"))
		return
	}

	videoID := chi.URLParam(r, "videoID")
	if err := h.Likes.RemoveVideoLike(ctx, videoID, user.ID); err != nil {
		logging.FromContext(ctx).Error("video like removal failed", "error", err, "videoId", videoID)
		api.WriteError(ctx, w, err)
		return
	}

	api.WriteData(ctx, w, http.StatusOK, likeResponse{Liked: false}, "like removed")
}

// LikedVideos handles GET /api/v1/likes/videos.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Unauthenticated("authentication required"))
		return
	}

	videos, err := h.Likes.ListLikedVideos(ctx, user.ID, likedVideosLimit)
	if err != nil {
		logging.FromContext(ctx).Error("liked videos query failed", "error", err, "userId", user.ID)
		api.WriteError(ctx, w, err)
		return
	}

	presenter := VideoHandler{CDN: h.CDN}
	api.WriteData(ctx, w, http.StatusOK, presenter.presentList(videos), "liked videos")
}

package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kaaltube/backend/internal/api"
	"github.com/kaaltube/backend/internal/logging"
	"github.com/kaaltube/backend/internal/media"
	"github.com/kaaltube/backend/internal/middleware"
	"github.com/kaaltube/backend/internal/models"
	"github.com/kaaltube/backend/internal/repositories"
)

// CommentHandler implements comment CRUD endpoints.
type CommentHandler struct {
	Comments CommentStore
	Videos   VideoStore
	CDN      media.CDN
	NowFunc  func() time.Time
}

type commentResponse struct {
	ID        string         `json:"id"`
	VideoID   string         `json:"videoId"`
	Content   string         `json:"content"`
	Likes     int64          `json:"likes"`
	Edited    bool           `json:"edited"`
	EditedAt  *time.Time     `json:"editedAt,omitempty"`
	IsLiked   bool           `json:"isLiked"`
	CreatedAt time.Time      `json:"createdAt"`
	Owner     *ownerResponse `json:"owner,omitempty"`
}

func (h CommentHandler) present(comment models.Comment) commentResponse {
	return commentResponse{
		ID:        comment.ID,
		VideoID:   comment.VideoID,
		Content:   comment.Content,
		Likes:     comment.Likes,
		Edited:    comment.Edited,
		EditedAt:  comment.EditedAt,
		CreatedAt: comment.CreatedAt,
	}
}

func (h CommentHandler) presentWithOwner(comment models.CommentWithOwner) commentResponse {
	resp := h.present(comment.Comment)
	resp.IsLiked = comment.IsLiked
	resp.Owner = &ownerResponse{
		ID:       comment.Owner.ID,
		Username: comment.Owner.Username,
		FullName: comment.Owner.FullName,
		Avatar:   h.CDN.AvatarURL(comment.Owner.Avatar),
	}
	return resp
}

// List handles GET /api/v1/comments/{videoID}. Anonymous callers get the same
// list without like state.
func (h CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID := chi.URLParam(r, "videoID")
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			api.WriteError(ctx, w, api.NotFound("video not found"))
			return
		}
		logging.FromContext(ctx).Error("comment list video lookup failed", "error", err, "videoId", videoID)
		api.WriteError(ctx, w, err)
		return
	}

	viewerID := ""
	if viewer, ok := middleware.CurrentUser(ctx); ok {
		viewerID = viewer.ID
	}

	comments, err := h.Comments.ListForVideo(ctx, videoID, viewerID)
	if err != nil {
		logging.FromContext(ctx).Error("comment list failed", "error", err, "videoId", videoID)
		api.WriteError(ctx, w, err)
		return
	}

	out := make([]commentResponse, 0, len(comments))
	for _, comment := range comments {
		out = append(out, h.presentWithOwner(comment))
	}
	api.WriteData(ctx, w, http.StatusOK, out, "comments")
}

type commentRequest struct {
	Content string `json:"content"`
}

// Create handles POST /api/v1/comments/{videoID}.
func (h CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Unauthenticated("authentication required"))
		return
	}

	var req commentRequest
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(ctx, w, err)
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		api.WriteError(ctx, w, api.BadRequest("content is required"))
		return
	}

	videoID := chi.URLParam(r, "videoID")
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			api.WriteError(ctx, w, api.NotFound("video not found"))
			return
		}
		logging.FromContext(ctx).Error("comment create video lookup failed", "error", err, "videoId", videoID)
		api.WriteError(ctx, w, err)
		return
	}

	comment := models.Comment{
		ID:        uuid.NewString(),
		VideoID:   videoID,
		OwnerID:   user.ID,
		Content:   content,
		CreatedAt: nowOrDefault(h.NowFunc),
	}

	if err := h.Comments.Create(ctx, comment); err != nil {
		logging.FromContext(ctx).Error("comment create failed", "error", err, "videoId", videoID)
		api.WriteError(ctx, w, err)
		return
	}

	api.WriteData(ctx, w, http.StatusCreated, h.present(comment), "comment added")
}

// Update handles PATCH /api/v1/comments/c/{commentID} behind the ownership gate.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resource, ok := middleware.Resource(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Forbidden("you do not have access to this resource"))
		return
	}
	comment, ok := resource.(models.Comment)
	if !ok {
		api.WriteError(ctx, w, api.Forbidden("you do not have access to this resource"))
		return
	}

	var req commentRequest
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(ctx, w, err)
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		api.WriteError(ctx, w, api.BadRequest("content is required"))
		return
	}
	if content == comment.Content {
		api.WriteError(ctx, w, api.BadRequest("content is unchanged"))
		return
	}

	updated, err := h.Comments.Update(ctx, comment.ID, content)
	if err != nil {
		logging.FromContext(ctx).Error("comment update failed", "error", err, "commentId", comment.ID)
		api.WriteError(ctx, w, err)
		return
	}

	api.WriteData(ctx, w, http.StatusOK, h.present(updated), "comment updated")
}

// Delete handles DELETE /api/v1/comments/c/{commentID} behind the ownership gate.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resource, ok := middleware.Resource(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Forbidden("you do not have access to this resource"))
		return
	}
	comment, ok := resource.(models.Comment)
	if !ok {
		api.WriteError(ctx, w, api.Forbidden("you do not have access to this resource"))
		return
	}

	if err := h.Comments.Delete(ctx, comment.ID); err != nil {
		logging.FromContext(ctx).Error("comment delete failed", "error", err, "commentId", comment.ID)
		api.WriteError(ctx, w, err)
		return
	}

	api.WriteData(ctx, w, http.StatusOK, nil, "comment deleted")
}

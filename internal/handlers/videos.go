package handlers

import (
	"context"
	"errors"
	"fmt"
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

const (
	feedLimit        = 50
	likedVideosLimit = 50

	// Multipart parse ceiling for video uploads; larger bodies spill to disk.
	uploadMemoryLimit = 32 << 20
)

// VideoHandler implements video publishing, playback metadata and watch
// history endpoints.
type VideoHandler struct {
	Videos  VideoStore
	Assets  AssetUploader
	Cleaner AssetCleaner
	CDN     media.CDN
	NowFunc func() time.Time
}

type videoResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	VideoURL    string         `json:"videoUrl"`
	Thumbnail   string         `json:"thumbnail"`
	Views       int64          `json:"views"`
	Likes       int64          `json:"likes"`
	Published   bool           `json:"published"`
	CreatedAt   time.Time      `json:"createdAt"`
	Owner       *ownerResponse `json:"owner,omitempty"`
}

type ownerResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar"`
}

func (h VideoHandler) present(video models.Video) videoResponse {
	return videoResponse{
		ID:          video.ID,
		Title:       video.Title,
		Description: video.Description,
		VideoURL:    h.CDN.VideoURL(video.AssetID),
		Thumbnail:   h.CDN.ImageURL(video.Thumbnail),
		Views:       video.Views,
		Likes:       video.Likes,
		Published:   video.Published,
		CreatedAt:   video.CreatedAt,
	}
}

func (h VideoHandler) presentWithOwner(video models.VideoWithOwner) videoResponse {
	resp := h.present(video.Video)
	resp.Owner = &ownerResponse{
		ID:       video.Owner.ID,
		Username: video.Owner.Username,
		FullName: video.Owner.FullName,
		Avatar:   h.CDN.AvatarURL(video.Owner.Avatar),
	}
	return resp
}

func (h VideoHandler) presentList(videos []models.VideoWithOwner) []videoResponse {
	out := make([]videoResponse, 0, len(videos))
	for _, video := range videos {
		out = append(out, h.presentWithOwner(video))
	}
	return out
}

// Upload handles POST /api/v1/videos: a multipart upload with the video
// file, thumbnail image, title and description. Videos start unpublished
// until the owner toggles them live.
func (h VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Unauthenticated("authentication required"))
		return
	}

	if h.Assets == nil {
		api.WriteError(ctx, w, &api.Error{Status: http.StatusServiceUnavailable, Message: "media storage is not configured"})
		return
	}

	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		api.WriteError(ctx, w, api.BadRequest("invalid multipart body"))
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" {
		api.WriteError(ctx, w, api.BadRequest("title is required"))
		return
	}

	videoFile, _, err := r.FormFile("videoFile")
	if err != nil {
		api.WriteError(ctx, w, api.BadRequest("video file is required"))
		return
	}
	defer videoFile.Close()

	thumbFile, _, err := r.FormFile("thumbnail")
	if err != nil {
		api.WriteError(ctx, w, api.BadRequest("thumbnail is required"))
		return
	}
	defer thumbFile.Close()

	ctx, span := logging.StartSpan(ctx, "video.upload")
	defer span.End()

	videoID := uuid.NewString()
	assetID := fmt.Sprintf("%s/%s", user.ID, videoID)
	thumbID := fmt.Sprintf("%s/%s-thumb", user.ID, videoID)

	if _, err := h.Assets.Save(ctx, fmt.Sprintf("%s/%s", media.KindVideo, assetID), videoFile); err != nil {
		logger.Error("video upload failed", "error", err, "userId", user.ID)
		api.WriteError(ctx, w, err)
		return
	}

	if _, err := h.Assets.Save(ctx, fmt.Sprintf("%s/%s", media.KindImage, thumbID), thumbFile); err != nil {
		logger.Error("thumbnail upload failed", "error", err, "userId", user.ID)
		h.cleanup(ctx, media.KindVideo, assetID)
		api.WriteError(ctx, w, err)
		return
	}

	now := nowOrDefault(h.NowFunc)
	video := models.Video{
		ID:          videoID,
		OwnerID:     user.ID,
		AssetID:     assetID,
		Thumbnail:   thumbID,
		Title:       title,
		Description: description,
		Published:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		logger.Error("video upload failed to persist", "error", err, "videoId", videoID)
		h.cleanup(ctx, media.KindVideo, assetID)
		h.cleanup(ctx, media.KindImage, thumbID)
		api.WriteError(ctx, w, err)
		return
	}

	api.WriteData(ctx, w, http.StatusCreated, h.present(video), "video uploaded")
}

// Feed handles GET /api/v1/videos.
func (h VideoHandler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videos, err := h.Videos.ListPublished(ctx, feedLimit)
	if err != nil {
		logging.FromContext(ctx).Error("feed query failed", "error", err)
		api.WriteError(ctx, w, err)
		return
	}

	api.WriteData(ctx, w, http.StatusOK, h.presentList(videos), "videos")
}

// Get handles GET /api/v1/videos/{videoID}. Authenticated viewers are counted
// once per video and have the video added to their watch history.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	videoID := chi.URLParam(r, "videoID")
	video, err := h.Videos.FindByIDWithOwner(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			api.WriteError(ctx, w, api.NotFound("video not found"))
			return
		}
		logger.Error("video lookup failed", "error", err, "videoId", videoID)
		api.WriteError(ctx, w, err)
		return
	}

	if viewer, ok := middleware.CurrentUser(ctx); ok {
		counted, err := h.Videos.RecordView(ctx, video.ID, viewer.ID)
		if err != nil {
			logger.Warn("failed to record view", "error", err, "videoId", video.ID)
		} else if counted {
			video.Views++
		}
		if err := h.Videos.UpsertWatchHistory(ctx, viewer.ID, video.ID); err != nil {
			logger.Warn("failed to record watch history", "error", err, "videoId", video.ID)
		}
	}

	api.WriteData(ctx, w, http.StatusOK, h.presentWithOwner(video), "video")
}

// Mine handles GET /api/v1/videos/mine, listing the caller's own videos
// including unpublished ones.
func (h VideoHandler) Mine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Unauthenticated("authentication required"))
		return
	}

	videos, err := h.Videos.ListByOwner(ctx, user.ID)
	if err != nil {
		logging.FromContext(ctx).Error("own videos query failed", "error", err, "userId", user.ID)
		api.WriteError(ctx, w, err)
		return
	}

	out := make([]videoResponse, 0, len(videos))
	for _, video := range videos {
		out = append(out, h.present(video))
	}
	api.WriteData(ctx, w, http.StatusOK, out, "your videos")
}

type updateVideoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Update handles PATCH /api/v1/videos/{videoID}. Runs behind the ownership
// gate, which has already loaded the video.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger := logging.FromContext(ctx)

	video, ok := ownedVideo(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Forbidden("you do not have access to this resource"))
		return
	}

	var title, description string
	thumbnail := video.Thumbnail
	replacedThumb := ""

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
			api.WriteError(ctx, w, api.BadRequest("invalid multipart body"))
			return
		}
		title = strings.TrimSpace(r.FormValue("title"))
		description = strings.TrimSpace(r.FormValue("description"))

		if thumbFile, _, err := r.FormFile("thumbnail"); err == nil {
			defer thumbFile.Close()
			if h.Assets == nil {
				api.WriteError(ctx, w, &api.Error{Status: http.StatusServiceUnavailable, Message: "media storage is not configured"})
				return
			}
			newThumb := fmt.Sprintf("%s/%s-thumb", video.OwnerID, uuid.NewString())
			if _, err := h.Assets.Save(ctx, fmt.Sprintf("%s/%s", media.KindImage, newThumb), thumbFile); err != nil {
				logger.Error("thumbnail upload failed", "error", err, "videoId", video.ID)
				api.WriteError(ctx, w, err)
				return
			}
			replacedThumb = video.Thumbnail
			thumbnail = newThumb
		}
	} else {
		var req updateVideoRequest
		if err := api.Decode(r, &req); err != nil {
			api.WriteError(ctx, w, err)
			return
		}
		title = strings.TrimSpace(req.Title)
		description = strings.TrimSpace(req.Description)
	}

	if title == "" {
		title = video.Title
	}
	if description == "" {
		description = video.Description
	}

	if err := h.Videos.Update(ctx, video.ID, title, description, thumbnail); err != nil {
		logger.Error("video update failed", "error", err, "videoId", video.ID)
		api.WriteError(ctx, w, err)
		return
	}

	if replacedThumb != "" {
		h.cleanup(ctx, media.KindImage, replacedThumb)
	}

	video.Title = title
	video.Description = description
	video.Thumbnail = thumbnail
	api.WriteData(ctx, w, http.StatusOK, h.present(video), "video updated")
}

// TogglePublish handles PATCH /api/v1/videos/toggle/{videoID} behind the
// ownership gate.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, ok := ownedVideo(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Forbidden("you do not have access to this resource"))
		return
	}

	next := !video.Published
	if err := h.Videos.SetPublished(ctx, video.ID, next); err != nil {
		logging.FromContext(ctx).Error("publish toggle failed", "error", err, "videoId", video.ID)
		api.WriteError(ctx, w, err)
		return
	}

	video.Published = next
	api.WriteData(ctx, w, http.StatusOK, h.present(video), "publish state updated")
}

// Delete handles DELETE /api/v1/videos/{videoID} behind the ownership gate.
// Stored media assets are cleaned up in the background.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, ok := ownedVideo(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Forbidden("you do not have access to this resource"))
		return
	}

	if err := h.Videos.Delete(ctx, video.ID); err != nil {
		logging.FromContext(ctx).Error("video delete failed", "error", err, "videoId", video.ID)
		api.WriteError(ctx, w, err)
		return
	}

	h.cleanup(ctx, media.KindVideo, video.AssetID)
	h.cleanup(ctx, media.KindImage, video.Thumbnail)

	api.WriteData(ctx, w, http.StatusOK, nil, "video deleted")
}

// WatchHistory handles GET /api/v1/users/history.
func (h VideoHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Unauthenticated("authentication required"))
		return
	}

	videos, err := h.Videos.ListWatchHistory(ctx, user.ID)
	if err != nil {
		logging.FromContext(ctx).Error("watch history query failed", "error", err, "userId", user.ID)
		api.WriteError(ctx, w, err)
		return
	}

	api.WriteData(ctx, w, http.StatusOK, h.presentList(videos), "watch history")
}

// RemoveFromHistory handles DELETE /api/v1/users/history/{videoID}.
func (h VideoHandler) RemoveFromHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Unauthenticated("authentication required"))
		return
	}

	videoID := chi.URLParam(r, "videoID")
	if err := h.Videos.RemoveWatchHistory(ctx, user.ID, videoID); err != nil {
		logging.FromContext(ctx).Error("watch history delete failed", "error", err, "videoId", videoID)
		api.WriteError(ctx, w, err)
		return
	}

	api.WriteData(ctx, w, http.StatusOK, nil, "removed from history")
}

func (h VideoHandler) cleanup(ctx context.Context, kind media.Kind, assetID string) {
	if h.Cleaner == nil || assetID == "" {
		return
	}
	if err := h.Cleaner.Enqueue(ctx, kind, assetID); err != nil {
		logging.FromContext(ctx).Warn("failed to schedule asset cleanup", "error", err, "assetId", assetID)
	}
}

// ownedVideo pulls the video loaded by the ownership gate out of the context.
func ownedVideo(ctx context.Context) (models.Video, bool) {
	resource, ok := middleware.Resource(ctx)
	if !ok {
		return models.Video{}, false
	}
	video, ok := resource.(models.Video)
	return video, ok
}

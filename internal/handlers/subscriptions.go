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

// SubscriptionHandler implements channel subscriptions and channel pages.
type SubscriptionHandler struct {
	Subscriptions SubscriptionStore
	Videos        VideoStore
	CDN           media.CDN
}

type channelResponse struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	FullName     string `json:"fullName"`
	Avatar       string `json:"avatar"`
	Subscribers  int64  `json:"subscribers"`
	Videos       int64  `json:"videos"`
	IsSubscribed bool   `json:"isSubscribed"`
	IsOwner      bool   `json:"isOwner"`
}

// Toggle handles POST /api/v1/subscriptions/c/{channelID}: subscribe when not
// subscribed, unsubscribe otherwise.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Unauthenticated("authentication required"))
		return
	}

	channelID := chi.URLParam(r, "channelID")
	if channelID == user.ID {
		api.WriteError(ctx, w, api.BadRequest("you cannot subscribe to your own channel"))
		return
	}

	if _, err := h.Subscriptions.FindChannel(ctx, channelID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			api.WriteError(ctx, w, api.NotFound("channel not found"))
			return
		}
		logger.Error("subscription channel lookup failed", "error", err, "channelId", channelID)
		api.WriteError(ctx, w, err)
		return
	}

	subscribed, err := h.Subscriptions.IsSubscribed(ctx, user.ID, channelID)
	if err != nil {
		logger.Error("subscription state query failed", "error", err, "channelId", channelID)
		api.WriteError(ctx, w, err)
		return
	}

	if subscribed {
		err = h.Subscriptions.Unsubscribe(ctx, user.ID, channelID)
	} else {
		err = h.Subscriptions.Subscribe(ctx, user.ID, channelID)
	}
	if err != nil {
		logger.Error("subscription toggle failed", "error", err, "channelId", channelID)
		api.WriteError(ctx, w, err)
		return
	}

	message := "subscribed"
	if subscribed {
		message = "unsubscribed"
	}
	api.WriteData(ctx, w, http.StatusOK, map[string]bool{"subscribed": !subscribed}, message)
}

// Subscribed handles GET /api/v1/subscriptions, listing the caller's channels.
func (h SubscriptionHandler) Subscribed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Unauthenticated("authentication required"))
		return
	}

	channels, err := h.Subscriptions.ListChannels(ctx, user.ID)
	if err != nil {
		logging.FromContext(ctx).Error("subscriptions query failed", "error", err, "userId", user.ID)
		api.WriteError(ctx, w, err)
		return
	}

	out := make([]ownerResponse, 0, len(channels))
	for _, channel := range channels {
		out = append(out, ownerResponse{
			ID:       channel.ID,
			Username: channel.Username,
			FullName: channel.FullName,
			Avatar:   h.CDN.AvatarURL(channel.Avatar),
		})
	}
	api.WriteData(ctx, w, http.StatusOK, out, "subscribed channels")
}

// Channel handles GET /api/v1/channels/{channelID}: the channel's public
// profile, aggregates, published videos and the caller's subscription state.
func (h SubscriptionHandler) Channel(w http.ResponseWriter, r *http.Request) {
	h.writeChannelPage(w, r, chi.URLParam(r, "channelID"))
}

// OwnChannel handles GET /api/v1/channels/me: the caller's channel summary.
func (h SubscriptionHandler) OwnChannel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Unauthenticated("authentication required"))
		return
	}
	h.writeChannelPage(w, r, user.ID)
}

func (h SubscriptionHandler) writeChannelPage(w http.ResponseWriter, r *http.Request, channelID string) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	channel, err := h.Subscriptions.FindChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			api.WriteError(ctx, w, api.NotFound("channel not found"))
			return
		}
		logger.Error("channel lookup failed", "error", err, "channelId", channelID)
		api.WriteError(ctx, w, err)
		return
	}

	stats, err := h.Subscriptions.ChannelStats(ctx, channelID)
	if err != nil {
		logger.Error("channel stats query failed", "error", err, "channelId", channelID)
		api.WriteError(ctx, w, err)
		return
	}

	isSubscribed := false
	isOwner := false
	if viewer, ok := middleware.CurrentUser(ctx); ok {
		isOwner = viewer.ID == channelID
		if !isOwner {
			isSubscribed, err = h.Subscriptions.IsSubscribed(ctx, viewer.ID, channelID)
			if err != nil {
				logger.Warn("channel subscription state query failed", "error", err, "channelId", channelID)
			}
		}
	}

	videos, err := h.Videos.ListByOwner(ctx, channelID)
	if err != nil {
		logger.Error("channel videos query failed", "error", err, "channelId", channelID)
		api.WriteError(ctx, w, err)
		return
	}

	presenter := VideoHandler{CDN: h.CDN}
	published := make([]videoResponse, 0, len(videos))
	for _, video := range videos {
		if !video.Published {
			continue
		}
		published = append(published, presenter.present(video))
	}

	api.WriteData(ctx, w, http.StatusOK, map[string]any{
		"channel": channelResponse{
			ID:           channel.ID,
			Username:     channel.Username,
			FullName:     channel.FullName,
			Avatar:       h.CDN.AvatarURL(channel.Avatar),
			Subscribers:  stats.Subscribers,
			Videos:       stats.Videos,
			IsSubscribed: isSubscribed,
			IsOwner:      isOwner,
		},
		"videos": published,
	}, "channel")
}


package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/kaaltube/backend/internal/api"
	"github.com/kaaltube/backend/internal/logging"
	"github.com/kaaltube/backend/internal/media"
	"github.com/kaaltube/backend/internal/middleware"
)

const (
	searchResultLimit = 25

	suggestMinChars      = 2
	suggestChannelLimit  = 4
	suggestVideoLimit    = 6
	suggestCombinedLimit = 8
)

// SearchHandler implements full-text search and typeahead suggestions.
type SearchHandler struct {
	Search SearchStore
	CDN    media.CDN
}

type searchHit struct {
	Type      string         `json:"type"`
	Relevance float64        `json:"relevance"`
	Video     *videoResponse `json:"video,omitempty"`
	Channel   *channelHit    `json:"channel,omitempty"`
}

type channelHit struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	FullName     string `json:"fullName"`
	Avatar       string `json:"avatar"`
	Subscribers  int64  `json:"subscribers"`
	IsSubscribed bool   `json:"isSubscribed"`
}

type suggestionResponse struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

// Query handles GET /api/v1/search?query=. Video and channel hits are merged
// into a single relevance-ordered list.
func (h SearchHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		api.WriteError(ctx, w, api.BadRequest("query is required"))
		return
	}

	viewerID := ""
	if viewer, ok := middleware.CurrentUser(ctx); ok {
		viewerID = viewer.ID
	}

	videoHits, err := h.Search.SearchVideos(ctx, query, searchResultLimit)
	if err != nil {
		logger.Error("video search failed", "error", err, "query", query)
		api.WriteError(ctx, w, err)
		return
	}

	channelHits, err := h.Search.SearchChannels(ctx, query, viewerID, searchResultLimit)
	if err != nil {
		logger.Error("channel search failed", "error", err, "query", query)
		api.WriteError(ctx, w, err)
		return
	}

	presenter := VideoHandler{CDN: h.CDN}
	hits := make([]searchHit, 0, len(videoHits)+len(channelHits))
	for _, hit := range videoHits {
		video := presenter.presentWithOwner(hit.VideoWithOwner)
		hits = append(hits, searchHit{Type: "video", Relevance: hit.Relevance, Video: &video})
	}
	for _, hit := range channelHits {
		hits = append(hits, searchHit{Type: "channel", Relevance: hit.Relevance, Channel: &channelHit{
			ID:           hit.ID,
			Username:     hit.Username,
			FullName:     hit.FullName,
			Avatar:       h.CDN.AvatarURL(hit.Avatar),
			Subscribers:  hit.Subscribers,
			IsSubscribed: hit.IsSubscribed,
		}})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Relevance > hits[j].Relevance })
	if len(hits) > searchResultLimit {
		hits = hits[:searchResultLimit]
	}

	api.WriteData(ctx, w, http.StatusOK, hits, "search results")
}

// Suggest handles GET /api/v1/search/suggestions?query=. Queries shorter than
// two characters yield an empty list.
func (h SearchHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	prefix := strings.TrimSpace(r.URL.Query().Get("query"))
	if len(prefix) < suggestMinChars {
		api.WriteData(ctx, w, http.StatusOK, []suggestionResponse{}, "suggestions")
		return
	}

	channels, err := h.Search.SuggestChannels(ctx, prefix, suggestChannelLimit)
	if err != nil {
		logger.Error("channel suggestions failed", "error", err, "prefix", prefix)
		api.WriteError(ctx, w, err)
		return
	}

	videos, err := h.Search.SuggestVideos(ctx, prefix, suggestVideoLimit)
	if err != nil {
		logger.Error("video suggestions failed", "error", err, "prefix", prefix)
		api.WriteError(ctx, w, err)
		return
	}

	merged := append(channels, videos...)
	if len(merged) > suggestCombinedLimit {
		merged = merged[:suggestCombinedLimit]
	}

	suggestions := make([]suggestionResponse, 0, len(merged))
	for _, s := range merged {
		suggestions = append(suggestions, suggestionResponse(s))
	}
	api.WriteData(ctx, w, http.StatusOK, suggestions, "suggestions")
}

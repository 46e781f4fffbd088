package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kaaltube/backend/internal/api"
	"github.com/kaaltube/backend/internal/media"
	"github.com/kaaltube/backend/internal/middleware"
	"github.com/kaaltube/backend/internal/models"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Tokens        TokenIssuer
	OTP           OTPManager
	Videos        VideoStore
	Comments      CommentStore
	Likes         LikeStore
	Subscriptions SubscriptionStore
	Search        SearchStore
	Assets        AssetUploader
	Cleaner       AssetCleaner
	CDN           media.CDN
	AuthLimiter   RateLimiter
	NowFunc       func() time.Time
}

// NewRouter wires HTTP handlers into a chi router under /api/v1.
func NewRouter(deps Dependencies) http.Handler {
	health := HealthHandler{Started: nowOrDefault(deps.NowFunc), NowFunc: deps.NowFunc}
	users := UserHandler{
		Users:   deps.Users,
		Tokens:  deps.Tokens,
		OTP:     deps.OTP,
		Assets:  deps.Assets,
		Cleaner: deps.Cleaner,
		CDN:     deps.CDN,
		Limiter: deps.AuthLimiter,
		NowFunc: deps.NowFunc,
	}
	videos := VideoHandler{
		Videos:  deps.Videos,
		Assets:  deps.Assets,
		Cleaner: deps.Cleaner,
		CDN:     deps.CDN,
		NowFunc: deps.NowFunc,
	}
	comments := CommentHandler{Comments: deps.Comments, Videos: deps.Videos, CDN: deps.CDN, NowFunc: deps.NowFunc}
	likes := LikeHandler{Likes: deps.Likes, Videos: deps.Videos, Comments: deps.Comments, CDN: deps.CDN}
	subscriptions := SubscriptionHandler{Subscriptions: deps.Subscriptions, Videos: deps.Videos, CDN: deps.CDN}
	search := SearchHandler{Search: deps.Search, CDN: deps.CDN}

	session := middleware.SessionConfig{
		Tokens:      deps.Tokens,
		Users:       userResolver{deps.Users},
		ErrorWriter: api.WriteError,
	}
	requireUser := middleware.RequireUser(session)
	optionalUser := middleware.OptionalUser(session)

	ownVideo := middleware.RequireOwnership(videoLoader(deps.Videos), "videoID", api.WriteError)
	ownComment := middleware.RequireOwnership(commentLoader(deps.Comments), "commentID", api.WriteError)

	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthcheck", health.Handle)

		r.Route("/users", func(r chi.Router) {
			r.Post("/register", users.Register)
			r.Post("/verify-otp", users.VerifyOTP)
			r.Post("/resend-otp", users.ResendOTP)
			r.Post("/login", users.Login)
			r.Post("/refresh-token", users.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(requireUser)
				r.Post("/logout", users.Logout)
				r.Get("/me", users.Me)
				r.Post("/change-password", users.ChangePassword)
				r.Patch("/update-account", users.UpdateAccount)
				r.Patch("/avatar", users.UpdateAvatar)
				r.Patch("/cover-image", users.UpdateCoverImage)
				r.Get("/history", videos.WatchHistory)
				r.Delete("/history/{videoID}", videos.RemoveFromHistory)
			})
		})

		r.Route("/videos", func(r chi.Router) {
			r.Get("/", videos.Feed)
			r.With(optionalUser).Get("/{videoID}", videos.Get)

			r.Group(func(r chi.Router) {
				r.Use(requireUser)
				r.Post("/", videos.Upload)
				r.Get("/mine", videos.Mine)
				r.With(ownVideo).Patch("/{videoID}", videos.Update)
				r.With(ownVideo).Patch("/toggle/{videoID}", videos.TogglePublish)
				r.With(ownVideo).Delete("/{videoID}", videos.Delete)
			})
		})

		r.Route("/comments", func(r chi.Router) {
			r.With(optionalUser).Get("/{videoID}", comments.List)

			r.Group(func(r chi.Router) {
				r.Use(requireUser)
				r.Post("/{videoID}", comments.Create)
				r.With(ownComment).Patch("/c/{commentID}", comments.Update)
				r.With(ownComment).Delete("/c/{commentID}", comments.Delete)
			})
		})

		r.Route("/likes", func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/toggle/v/{videoID}", likes.ToggleVideo)
			r.Post("/toggle/c/{commentID}", likes.ToggleComment)
			r.Delete("/v/{videoID}", likes.RemoveVideo)
			r.Get("/videos", likes.LikedVideos)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/", subscriptions.Subscribed)
			r.Post("/c/{channelID}", subscriptions.Toggle)
		})

		r.With(requireUser).Get("/channels/me", subscriptions.OwnChannel)
		r.With(optionalUser).Get("/channels/{channelID}", subscriptions.Channel)

		r.Route("/search", func(r chi.Router) {
			r.Use(optionalUser)
			r.Get("/", search.Query)
			r.Get("/suggestions", search.Suggest)
		})
	})

	return r
}

// userResolver adapts the handler-facing UserStore to the session middleware.
type userResolver struct {
	users UserStore
}

func (u userResolver) FindByID(ctx context.Context, id string) (models.User, error) {
	return u.users.FindByID(ctx, id)
}

func videoLoader(videos VideoStore) middleware.ResourceLoader {
	return func(ctx context.Context, id string) (middleware.Owned, error) {
		video, err := videos.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return video, nil
	}
}

func commentLoader(comments CommentStore) middleware.ResourceLoader {
	return func(ctx context.Context, id string) (middleware.Owned, error) {
		comment, err := comments.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return comment, nil
	}
}

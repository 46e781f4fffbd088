package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kaaltube/backend/internal/api"
	"github.com/kaaltube/backend/internal/auth"
	"github.com/kaaltube/backend/internal/models"
)

const (
	// AccessCookie is the cookie carrying the short-lived access token.
	AccessCookie = "accessToken"
	// RefreshCookie is the cookie carrying the long-lived refresh token.
	RefreshCookie = "refreshToken"
)

type userCtxKey struct{}

// WithUser attaches an authenticated user to the context.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, user)
}

// CurrentUser returns the authenticated user attached by the session
// middleware, if any.
func CurrentUser(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userCtxKey{}).(models.User)
	return user, ok
}

// TokenManager captures the token operations the session middleware needs.
type TokenManager interface {
	VerifyAccess(token string) (string, error)
	Rotate(ctx context.Context, refreshToken string) (models.TokenPair, error)
}

// UserResolver loads the account referenced by a verified token.
type UserResolver interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// SessionConfig wires the session middleware's collaborators.
type SessionConfig struct {
	Tokens TokenManager
	Users  UserResolver

	// ErrorWriter renders a failure response. Required for RequireUser.
	ErrorWriter func(ctx context.Context, w http.ResponseWriter, err error)
}

// RequireUser authenticates the request from its token cookies. Expired
// access tokens are refreshed transparently: when the refresh cookie holds
// the account's current token a new pair is minted and both cookies are
// reissued before the request proceeds.
func RequireUser(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveSession(w, r, cfg, true)
			if err != nil {
				cfg.ErrorWriter(r.Context(), w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// OptionalUser attaches the caller's identity when a valid access cookie is
// present and lets the request through anonymously otherwise. It never
// refreshes tokens or writes a response.
func OptionalUser(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveSession(w, r, cfg, false)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func resolveSession(w http.ResponseWriter, r *http.Request, cfg SessionConfig, allowRefresh bool) (models.User, error) {
	accessCookie, err := r.Cookie(AccessCookie)
	if err != nil || accessCookie.Value == "" {
		return models.User{}, api.Unauthenticated("authentication required")
	}

	userID, err := cfg.Tokens.VerifyAccess(accessCookie.Value)
	if err == nil {
		return loadSessionUser(r.Context(), cfg, userID)
	}

	if !allowRefresh || !errors.Is(err, auth.ErrTokenExpired) {
		return models.User{}, api.Unauthenticated("invalid access token")
	}

	refreshCookie, err := r.Cookie(RefreshCookie)
	if err != nil || refreshCookie.Value == "" {
		return models.User{}, api.NotFound("refresh token missing")
	}

	pair, err := cfg.Tokens.Rotate(r.Context(), refreshCookie.Value)
	if err != nil {
		if errors.Is(err, auth.ErrRefreshSuperseded) {
			return models.User{}, api.Forbidden("refresh token is no longer valid")
		}
		return models.User{}, api.Unauthenticated("session expired")
	}

	SetSessionCookies(w, pair)

	userID, err = cfg.Tokens.VerifyAccess(pair.AccessToken)
	if err != nil {
		return models.User{}, api.Unauthenticated("invalid access token")
	}
	return loadSessionUser(r.Context(), cfg, userID)
}

func loadSessionUser(ctx context.Context, cfg SessionConfig, userID string) (models.User, error) {
	user, err := cfg.Users.FindByID(ctx, userID)
	if err != nil {
		return models.User{}, api.NotFound("account no longer exists")
	}
	return user.Sanitized(), nil
}

// SetSessionCookies writes both token cookies. The attributes allow the
// browser client to send them on cross-site requests.
func SetSessionCookies(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, sessionCookie(AccessCookie, pair.AccessToken, pair.AccessExpiresAt))
	http.SetCookie(w, sessionCookie(RefreshCookie, pair.RefreshToken, pair.RefreshExpiresAt))
}

// ClearSessionCookies expires both token cookies.
func ClearSessionCookies(w http.ResponseWriter) {
	expired := time.Unix(0, 0)
	http.SetCookie(w, sessionCookie(AccessCookie, "", expired))
	http.SetCookie(w, sessionCookie(RefreshCookie, "", expired))
}

func sessionCookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kaaltube/backend/internal/api"
	"github.com/kaaltube/backend/internal/auth"
	"github.com/kaaltube/backend/internal/logging"
	"github.com/kaaltube/backend/internal/media"
	"github.com/kaaltube/backend/internal/middleware"
	"github.com/kaaltube/backend/internal/models"
	"github.com/kaaltube/backend/internal/repositories"
)

// UserHandler implements account lifecycle endpoints: registration, email
// verification, login/logout and profile management.
type UserHandler struct {
	Users   UserStore
	Tokens  TokenIssuer
	OTP     OTPManager
	Assets  AssetUploader
	Cleaner AssetCleaner
	CDN     media.CDN
	Limiter RateLimiter
	NowFunc func() time.Time
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

type userResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FullName   string `json:"fullName"`
	Avatar     string `json:"avatar"`
	CoverImage string `json:"coverImage"`
	Verified   bool   `json:"verified"`
}

func (h UserHandler) present(user models.User) userResponse {
	return userResponse{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		FullName:   user.FullName,
		Avatar:     h.CDN.AvatarURL(user.Avatar),
		CoverImage: h.CDN.ImageURL(user.CoverImage),
		Verified:   user.Verified,
	}
}

// Register handles POST /api/v1/users/register.
func (h UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "register") {
		api.WriteError(ctx, w, &api.Error{Status: http.StatusTooManyRequests, Message: "too many requests, slow down"})
		return
	}

	var req registerRequest
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(ctx, w, err)
		return
	}

	req.Username = strings.TrimSpace(strings.ToLower(req.Username))
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)

	if req.Username == "" || req.Email == "" || req.FullName == "" || req.Password == "" {
		api.WriteError(ctx, w, api.BadRequest("username, email, full name and password are required"))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		api.WriteError(ctx, w, api.BadRequest("invalid email address"))
		return
	}
	if len(req.Password) < 8 {
		api.WriteError(ctx, w, api.BadRequest("password must be at least 8 characters"))
		return
	}

	if _, err := h.Users.FindByUsernameOrEmail(ctx, req.Username, req.Email); err == nil {
		api.WriteError(ctx, w, api.Conflict("an account with that username or email already exists"))
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("register lookup failed", "error", err)
		api.WriteError(ctx, w, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("register failed to hash password", "error", err)
		api.WriteError(ctx, w, err)
		return
	}

	now := nowOrDefault(h.NowFunc)
	user := models.User{
		ID:        uuid.NewString(),
		Username:  req.Username,
		Email:     req.Email,
		FullName:  req.FullName,
		Password:  string(hashed),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			api.WriteError(ctx, w, api.Conflict("an account with that username or email already exists"))
			return
		}
		logger.Error("register failed to create account", "error", err)
		api.WriteError(ctx, w, err)
		return
	}

	if err := h.OTP.Issue(ctx, user); err != nil {
		// The account exists; the user can request a resend.
		logger.Error("register failed to dispatch verification code", "error", err, "userId", user.ID)
	}

	api.WriteData(ctx, w, http.StatusCreated, h.present(user),
		"account created, check your email for a verification code")
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyOTP handles POST /api/v1/users/verify-otp.
func (h UserHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyOTPRequest
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(ctx, w, err)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Code = strings.TrimSpace(req.Code)
	if req.Email == "" || req.Code == "" {
		api.WriteError(ctx, w, api.BadRequest("email and code are required"))
		return
	}

	if err := h.OTP.Verify(ctx, req.Email, req.Code); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			api.WriteError(ctx, w, api.NotFound("account not found"))
		case errors.Is(err, auth.ErrOTPNotIssued):
			api.WriteError(ctx, w, api.BadRequest("no verification code has been issued"))
		case errors.Is(err, auth.ErrOTPExpired):
			api.WriteError(ctx, w, api.BadRequest("verification code has expired, request a new one"))
		case errors.Is(err, auth.ErrOTPMismatch):
			api.WriteError(ctx, w, api.BadRequest("incorrect verification code"))
		default:
			logging.FromContext(ctx).Error("otp verification failed", "error", err)
			api.WriteError(ctx, w, err)
		}
		return
	}

	api.WriteData(ctx, w, http.StatusOK, nil, "email verified")
}

type resendOTPRequest struct {
	Email string `json:"email"`
}

// ResendOTP handles POST /api/v1/users/resend-otp.
func (h UserHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !allowRequest(h.Limiter, r, "otp") {
		api.WriteError(ctx, w, &api.Error{Status: http.StatusTooManyRequests, Message: "too many requests, slow down"})
		return
	}

	var req resendOTPRequest
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(ctx, w, err)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		api.WriteError(ctx, w, api.BadRequest("email is required"))
		return
	}

	if err := h.OTP.Resend(ctx, req.Email); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			api.WriteError(ctx, w, api.NotFound("account not found"))
		case errors.Is(err, auth.ErrAlreadyVerified):
			api.WriteError(ctx, w, api.BadRequest("account is already verified"))
		default:
			logging.FromContext(ctx).Error("otp resend failed", "error", err)
			api.WriteError(ctx, w, err)
		}
		return
	}

	api.WriteData(ctx, w, http.StatusOK, nil, "verification code sent")
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/users/login. A successful login sets both token
// cookies and replaces any prior session for the account.
func (h UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		api.WriteError(ctx, w, &api.Error{Status: http.StatusTooManyRequests, Message: "too many requests, slow down"})
		return
	}

	var req loginRequest
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(ctx, w, err)
		return
	}

	req.Username = strings.TrimSpace(strings.ToLower(req.Username))
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if (req.Username == "" && req.Email == "") || req.Password == "" {
		api.WriteError(ctx, w, api.BadRequest("username or email and password are required"))
		return
	}

	user, err := h.Users.FindByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			api.WriteError(ctx, w, api.NotFound("user does not exist"))
			return
		}
		logger.Error("login lookup failed", "error", err)
		api.WriteError(ctx, w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		api.WriteError(ctx, w, api.Unauthenticated("invalid credentials"))
		return
	}

	if !user.Verified {
		api.WriteError(ctx, w, api.Forbidden("please verify your email before logging in"))
		return
	}

	pair, err := h.Tokens.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("login failed to issue tokens", "error", err, "userId", user.ID)
		api.WriteError(ctx, w, err)
		return
	}

	middleware.SetSessionCookies(w, pair)
	api.WriteData(ctx, w, http.StatusOK, h.present(user), "logged in")
}

// Logout handles POST /api/v1/users/logout. Requires an authenticated session.
func (h UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Unauthenticated("authentication required"))
		return
	}

	if err := h.Tokens.Revoke(ctx, user.ID); err != nil {
		logging.FromContext(ctx).Error("logout failed to revoke session", "error", err, "userId", user.ID)
		api.WriteError(ctx, w, err)
		return
	}

	middleware.ClearSessionCookies(w)
	api.WriteData(ctx, w, http.StatusOK, nil, "logged out")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh handles POST /api/v1/users/refresh-token. The refresh token is read
// from the cookie, falling back to the request body for non-browser clients.
func (h UserHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	presented := ""
	if cookie, err := r.Cookie(middleware.RefreshCookie); err == nil {
		presented = cookie.Value
	}
	if presented == "" {
		var req refreshRequest
		if err := api.Decode(r, &req); err == nil {
			presented = strings.TrimSpace(req.RefreshToken)
		}
	}
	if presented == "" {
		api.WriteError(ctx, w, api.Unauthenticated("refresh token is required"))
		return
	}

	pair, err := h.Tokens.Rotate(ctx, presented)
	if err != nil {
		if errors.Is(err, auth.ErrRefreshSuperseded) {
			api.WriteError(ctx, w, api.Forbidden("refresh token is no longer valid"))
			return
		}
		api.WriteError(ctx, w, api.Unauthenticated("unable to refresh session"))
		return
	}

	middleware.SetSessionCookies(w, pair)
	api.WriteData(ctx, w, http.StatusOK, nil, "session refreshed")
}

// Me handles GET /api/v1/users/me.
func (h UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Unauthenticated("authentication required"))
		return
	}

	api.WriteData(ctx, w, http.StatusOK, h.present(user), "current user")
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ChangePassword handles POST /api/v1/users/change-password.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Unauthenticated("authentication required"))
		return
	}

	var req changePasswordRequest
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(ctx, w, err)
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		api.WriteError(ctx, w, api.BadRequest("old and new passwords are required"))
		return
	}
	if len(req.NewPassword) < 8 {
		api.WriteError(ctx, w, api.BadRequest("password must be at least 8 characters"))
		return
	}

	// The context user is sanitized; reload for the stored hash.
	user, err := h.Users.FindByID(ctx, current.ID)
	if err != nil {
		api.WriteError(ctx, w, api.NotFound("account not found"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		api.WriteError(ctx, w, api.BadRequest("incorrect password"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		logging.FromContext(ctx).Error("change password failed to hash", "error", err)
		api.WriteError(ctx, w, err)
		return
	}

	if err := h.Users.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		logging.FromContext(ctx).Error("change password failed to persist", "error", err, "userId", user.ID)
		api.WriteError(ctx, w, err)
		return
	}

	api.WriteData(ctx, w, http.StatusOK, nil, "password changed")
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UpdateAccount handles PATCH /api/v1/users/update-account. Empty fields keep
// their current values.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		api.WriteError(ctx, w, api.Unauthenticated("authentication required"))
		return
	}

	var req updateAccountRequest
	if err := api.Decode(r, &req); err != nil {
		api.WriteError(ctx, w, err)
		return
	}

	fullName := strings.TrimSpace(req.FullName)
	username := strings.TrimSpace(strings.ToLower(req.Username))
	emailAddr := strings.TrimSpace(strings.ToLower(req.Email))

	if fullName == "" {
		fullName = current.FullName
	}
	if username == "" {
		username = current.Username
	}
	if emailAddr == "" {
		emailAddr = current.Email
	} else if _, err := mail.ParseAddress(emailAddr); err != nil {
		api.WriteError(ctx, w, api.BadRequest("invalid email address"))
		return
	}

	if err := h.Users.UpdateProfile(ctx, current.ID, fullName, username, emailAddr); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			api.WriteError(ctx, w, api.Conflict("that username or email is already taken"))
			return
		}
		logging.FromContext(ctx).Error("update account failed", "error", err, "userId", current.ID)
		api.WriteError(ctx, w, err)
		return
	}

	current.FullName = fullName
	current.Username = username
	current.Email = emailAddr
	api.WriteData(ctx, w, http.StatusOK, h.present(current), "account updated")
}

// UpdateAvatar handles PATCH /api/v1/users/avatar with a multipart image.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", func(user models.User) string { return user.Avatar },
		h.Users.SetAvatar)
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image with a multipart image.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", func(user models.User) string { return user.CoverImage },
		h.Users.SetCoverImage)
}

func (h UserHandler) updateImage(w http.ResponseWriter, r *http.Request, field string,
	currentAsset func(models.User) string, persist func(ctx context.Context, userID, assetID string) error) {
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

	file, _, err := r.FormFile(field)
	if err != nil {
		api.WriteError(ctx, w, api.BadRequest(fmt.Sprintf("%s file is required", field)))
		return
	}
	defer file.Close()

	assetID := fmt.Sprintf("%s/%s", user.ID, uuid.NewString())
	if _, err := h.Assets.Save(ctx, fmt.Sprintf("%s/%s", media.KindImage, assetID), file); err != nil {
		logger.Error("image upload failed", "error", err, "field", field, "userId", user.ID)
		api.WriteError(ctx, w, err)
		return
	}

	previous := currentAsset(user)
	if err := persist(ctx, user.ID, assetID); err != nil {
		logger.Error("image update failed to persist", "error", err, "field", field, "userId", user.ID)
		api.WriteError(ctx, w, err)
		return
	}

	if previous != "" && h.Cleaner != nil {
		if err := h.Cleaner.Enqueue(ctx, media.KindImage, previous); err != nil {
			logger.Warn("failed to schedule old asset cleanup", "error", err, "assetId", previous)
		}
	}

	api.WriteData(ctx, w, http.StatusOK, map[string]string{
		field: h.CDN.ImageURL(assetID),
	}, field+" updated")
}

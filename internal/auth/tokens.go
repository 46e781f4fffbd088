package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kaaltube/backend/internal/models"
)

var (
	// ErrTokenInvalid indicates a credential that failed signature or claim checks.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired indicates a structurally valid credential past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrUserNotFound indicates the account encoded in a token no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrRefreshSuperseded indicates reuse of a refresh token that has been rotated out.
	ErrRefreshSuperseded = errors.New("refresh token superseded")
)

// UserStore captures the persistence operations the token service needs.
// SetRefreshToken overwrites the single stored value without touching the
// rest of the record.
type UserStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	SetRefreshToken(ctx context.Context, userID, token string) error
}

// TokenService issues and rotates the access/refresh token pair. Each tier is
// signed with its own secret so a leaked access key cannot forge refresh
// tokens.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration

	users UserStore

	NowFunc func() time.Time
}

// NewTokenService constructs a TokenService backed by the provided user store.
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, users UserStore) *TokenService {
	if users == nil {
		panic("auth: user store must not be nil")
	}
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		users:         users,
	}
}

// Issue creates a new token pair for the user and persists the refresh token
// as the account's single current value, overwriting any prior session.
func (s *TokenService) Issue(ctx context.Context, userID string) (models.TokenPair, error) {
	if userID == "" {
		return models.TokenPair{}, errors.New("user id must be provided")
	}

	now := s.now()

	accessToken, accessExpiry, err := s.sign(s.accessSecret, userID, now, s.accessTTL)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, refreshExpiry, err := s.sign(s.refreshSecret, userID, now, s.refreshTTL)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.users.SetRefreshToken(ctx, userID, refreshToken); err != nil {
		return models.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return models.TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// VerifyAccess validates an access token and returns the embedded user id.
func (s *TokenService) VerifyAccess(token string) (string, error) {
	return s.verify(s.accessSecret, token)
}

// Rotate exchanges a presented refresh token for a fresh pair. Reuse of a
// superseded token is detected by comparing against the account's stored
// current value and reported as ErrRefreshSuperseded.
func (s *TokenService) Rotate(ctx context.Context, presented string) (models.TokenPair, error) {
	if presented == "" {
		return models.TokenPair{}, ErrTokenInvalid
	}

	userID, err := s.verify(s.refreshSecret, presented)
	if err != nil {
		return models.TokenPair{}, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return models.TokenPair{}, ErrUserNotFound
	}

	if user.RefreshToken != presented {
		return models.TokenPair{}, ErrRefreshSuperseded
	}

	return s.Issue(ctx, user.ID)
}

// Revoke clears the account's stored refresh token.
func (s *TokenService) Revoke(ctx context.Context, userID string) error {
	return s.users.SetRefreshToken(ctx, userID, "")
}

func (s *TokenService) sign(secret []byte, userID string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiry := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiry),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiry, nil
}

func (s *TokenService) verify(secret []byte, token string) (string, error) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	if _, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}

	if claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}

func (s *TokenService) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}

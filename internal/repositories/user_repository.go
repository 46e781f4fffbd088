package repositories

import (
	"context"
	"time"

	"github.com/kaaltube/backend/internal/models"
)

// UserRepository defines the data access contract for accounts.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error)
	SetRefreshToken(ctx context.Context, userID, token string) error
	SaveOTP(ctx context.Context, userID, otpHash string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateProfile(ctx context.Context, userID, fullName, username, email string) error
	SetAvatar(ctx context.Context, userID, assetID string) error
	SetCoverImage(ctx context.Context, userID, assetID string) error
}

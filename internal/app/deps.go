package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kaaltube/backend/internal/auth"
	"github.com/kaaltube/backend/internal/config"
	"github.com/kaaltube/backend/internal/db"
	"github.com/kaaltube/backend/internal/email"
	"github.com/kaaltube/backend/internal/handlers"
	"github.com/kaaltube/backend/internal/media"
	"github.com/kaaltube/backend/internal/middleware"
	"github.com/kaaltube/backend/internal/repositories"
)

// dependencies bundles the handler wiring with the background workers that
// need an orderly shutdown.
type dependencies struct {
	Handlers handlers.Dependencies
	Cleaner  *media.Cleaner
}

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The media store is optional: without a bucket configured, uploads
// fail and cleanups are skipped, but everything else keeps working.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (dependencies, error) {
	users := repositories.NewPostgresUserRepository(pool)

	tokens := auth.NewTokenService(
		cfg.Tokens.AccessSecret, cfg.Tokens.RefreshSecret,
		cfg.Tokens.AccessTTL, cfg.Tokens.RefreshTTL,
		users,
	)

	var mailer email.Sender = email.Timeout{
		Base: &email.SMTPSender{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.FromAddress,
			FromName: cfg.Mail.FromName,
		},
		After: cfg.Mail.SendTimeout,
	}
	otp := auth.NewOTPService(users, mailer)

	deps := dependencies{}
	var uploader handlers.AssetUploader
	var cleaner handlers.AssetCleaner
	if cfg.ObjectStore.Bucket != "" {
		store, err := media.NewS3Store(ctx, cfg.ObjectStore)
		if err != nil {
			return dependencies{}, fmt.Errorf("configure media store: %w", err)
		}
		deps.Cleaner = media.NewCleaner(store, media.CleanerConfig{}, logger)
		uploader = store
		cleaner = deps.Cleaner
	}

	deps.Handlers = handlers.Dependencies{
		Users:         users,
		Tokens:        tokens,
		OTP:           otp,
		Videos:        repositories.NewPostgresVideoRepository(pool),
		Comments:      repositories.NewPostgresCommentRepository(pool),
		Likes:         repositories.NewPostgresLikeRepository(pool),
		Subscriptions: repositories.NewPostgresSubscriptionRepository(pool),
		Search:        repositories.NewPostgresSearchRepository(pool),
		Assets:        uploader,
		Cleaner:       cleaner,
		CDN:           media.NewCDN(cfg.CDN.BaseURL, cfg.CDN.ImageTransforms),
		AuthLimiter:   middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute),
	}
	return deps, nil
}

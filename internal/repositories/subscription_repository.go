package repositories

import (
	"context"

	"github.com/kaaltube/backend/internal/models"
)

// SubscriptionRepository defines persistence for channel subscriptions and
// the channel-page aggregates built on top of them.
type SubscriptionRepository interface {
	Subscribe(ctx context.Context, subscriberID, channelID string) error
	Unsubscribe(ctx context.Context, subscriberID, channelID string) error
	ListChannels(ctx context.Context, subscriberID string) ([]models.OwnerSummary, error)
	IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error)
	ChannelStats(ctx context.Context, channelID string) (models.ChannelStats, error)
	FindChannel(ctx context.Context, channelID string) (models.OwnerSummary, error)
}

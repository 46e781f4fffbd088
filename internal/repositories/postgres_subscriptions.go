package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kaaltube/backend/internal/db"
	"github.com/kaaltube/backend/internal/models"
)

// PostgresSubscriptionRepository provides PostgreSQL-backed persistence for
// channel subscriptions.
type PostgresSubscriptionRepository struct {
	pool db.Pool
}

// NewPostgresSubscriptionRepository constructs a subscription repository
// backed by PostgreSQL.
func NewPostgresSubscriptionRepository(pool db.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Subscribe records the subscriber following the channel. Subscribing twice
// is a no-op; a missing channel maps to ErrNotFound.
func (r *PostgresSubscriptionRepository) Subscribe(ctx context.Context, subscriberID, channelID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO subscriptions (subscriber_id, channel_id, created_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (subscriber_id, channel_id) DO NOTHING
    `, subscriberID, channelID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// Unsubscribe removes the link. Unsubscribing from a channel the user never
// followed is a no-op.
func (r *PostgresSubscriptionRepository) Unsubscribe(ctx context.Context, subscriberID, channelID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        DELETE FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2
    `, subscriberID, channelID); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// ListChannels returns the channels the user follows, most recently followed
// first.
func (r *PostgresSubscriptionRepository) ListChannels(ctx context.Context, subscriberID string) ([]models.OwnerSummary, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT u.id, u.username, u.full_name, u.avatar
        FROM subscriptions s
        JOIN users u ON u.id = s.channel_id
        WHERE s.subscriber_id = $1
        ORDER BY s.created_at DESC
    `, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var channels []models.OwnerSummary
	for rows.Next() {
		var channel models.OwnerSummary
		if err := rows.Scan(&channel.ID, &channel.Username, &channel.FullName, &channel.Avatar); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, channel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return channels, nil
}

// IsSubscribed reports whether the subscriber follows the channel.
func (r *PostgresSubscriptionRepository) IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var subscribed bool
	err = conn.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2
        )
    `, subscriberID, channelID).Scan(&subscribed)
	if err != nil {
		return false, fmt.Errorf("select subscription: %w", err)
	}
	return subscribed, nil
}

// ChannelStats returns the aggregate counters for a channel page.
func (r *PostgresSubscriptionRepository) ChannelStats(ctx context.Context, channelID string) (models.ChannelStats, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ChannelStats{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var stats models.ChannelStats
	err = conn.QueryRow(ctx, `
        SELECT
            (SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1),
            (SELECT COUNT(*) FROM videos WHERE owner_id = $1 AND published)
    `, channelID).Scan(&stats.Subscribers, &stats.Videos)
	if err != nil {
		return models.ChannelStats{}, fmt.Errorf("select channel stats: %w", err)
	}
	return stats, nil
}

// FindChannel resolves a channel's public profile.
func (r *PostgresSubscriptionRepository) FindChannel(ctx context.Context, channelID string) (models.OwnerSummary, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.OwnerSummary{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var channel models.OwnerSummary
	err = conn.QueryRow(ctx, `
        SELECT id, username, full_name, avatar FROM users WHERE id = $1
    `, channelID).Scan(&channel.ID, &channel.Username, &channel.FullName, &channel.Avatar)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.OwnerSummary{}, ErrNotFound
		}
		return models.OwnerSummary{}, fmt.Errorf("select channel: %w", err)
	}
	return channel, nil
}

var _ SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)

package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/kaaltube/backend/internal/db"
	"github.com/kaaltube/backend/internal/models"
)

// PostgresSearchRepository provides full-text search over published videos
// and channels using PostgreSQL tsvector ranking, plus ILIKE prefix matching
// for typeahead suggestions.
type PostgresSearchRepository struct {
	pool db.Pool
}

// NewPostgresSearchRepository constructs a search repository backed by PostgreSQL.
func NewPostgresSearchRepository(pool db.Pool) *PostgresSearchRepository {
	return &PostgresSearchRepository{pool: pool}
}

// SearchVideos ranks published videos against the query. Title matches weigh
// more than description matches.
func (r *PostgresSearchRepository) SearchVideos(ctx context.Context, query string, limit int) ([]models.VideoSearchHit, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+videoWithOwnerColumns+`,
               ts_rank(
                   setweight(to_tsvector('english', v.title), 'A') ||
                   setweight(to_tsvector('english', v.description), 'B'),
                   plainto_tsquery('english', $1)
               ) AS relevance
        FROM videos v
        JOIN users u ON u.id = v.owner_id
        WHERE v.published
          AND (setweight(to_tsvector('english', v.title), 'A') ||
               setweight(to_tsvector('english', v.description), 'B')) @@ plainto_tsquery('english', $1)
        ORDER BY relevance DESC, v.created_at DESC
        LIMIT $2
    `, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query video search: %w", err)
	}
	defer rows.Close()

	var hits []models.VideoSearchHit
	for rows.Next() {
		var hit models.VideoSearchHit
		if err := rows.Scan(&hit.ID, &hit.OwnerID, &hit.AssetID, &hit.Thumbnail, &hit.Title,
			&hit.Description, &hit.Views, &hit.Likes, &hit.Published,
			&hit.CreatedAt, &hit.UpdatedAt,
			&hit.Owner.ID, &hit.Owner.Username, &hit.Owner.FullName, &hit.Owner.Avatar,
			&hit.Relevance); err != nil {
			return nil, fmt.Errorf("scan video hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video search: %w", err)
	}
	return hits, nil
}

// SearchChannels ranks channels whose username or display name matches the
// query. Channel hits are boosted above same-score video hits by the caller,
// so the relevance returned here is the raw rank scaled by 1.2.
func (r *PostgresSearchRepository) SearchChannels(ctx context.Context, query, viewerID string, limit int) ([]models.ChannelSearchHit, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT u.id, u.username, u.full_name, u.avatar,
               (SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id),
               CASE WHEN $2 = '' THEN FALSE
                    ELSE EXISTS (
                        SELECT 1 FROM subscriptions s
                        WHERE s.channel_id = u.id AND s.subscriber_id = $2
                    )
               END,
               ts_rank(
                   setweight(to_tsvector('simple', u.username), 'A') ||
                   setweight(to_tsvector('simple', u.full_name), 'B'),
                   plainto_tsquery('simple', $1)
               ) * 1.2 AS relevance
        FROM users u
        WHERE (setweight(to_tsvector('simple', u.username), 'A') ||
               setweight(to_tsvector('simple', u.full_name), 'B')) @@ plainto_tsquery('simple', $1)
        ORDER BY relevance DESC, u.created_at ASC
        LIMIT $3
    `, query, viewerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query channel search: %w", err)
	}
	defer rows.Close()

	var hits []models.ChannelSearchHit
	for rows.Next() {
		var hit models.ChannelSearchHit
		if err := rows.Scan(&hit.ID, &hit.Username, &hit.FullName, &hit.Avatar,
			&hit.Subscribers, &hit.IsSubscribed, &hit.Relevance); err != nil {
			return nil, fmt.Errorf("scan channel hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel search: %w", err)
	}
	return hits, nil
}

// escapeLikePrefix neutralizes LIKE wildcards so a prefix of "%" or "_"
// matches literally instead of matching every row.
func escapeLikePrefix(prefix string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
}

// SuggestChannels returns typeahead entries for channels whose username or
// display name starts with the prefix.
func (r *PostgresSearchRepository) SuggestChannels(ctx context.Context, prefix string, limit int) ([]models.Suggestion, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT username, full_name
        FROM users
        WHERE username ILIKE $1 || '%' OR full_name ILIKE $1 || '%'
        ORDER BY username ASC
        LIMIT $2
    `, escapeLikePrefix(prefix), limit)
	if err != nil {
		return nil, fmt.Errorf("query channel suggestions: %w", err)
	}
	defer rows.Close()

	var suggestions []models.Suggestion
	for rows.Next() {
		var username, fullName string
		if err := rows.Scan(&username, &fullName); err != nil {
			return nil, fmt.Errorf("scan channel suggestion: %w", err)
		}
		suggestions = append(suggestions, models.Suggestion{
			Type:  "channel",
			Text:  username,
			Label: fullName,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel suggestions: %w", err)
	}
	return suggestions, nil
}

// SuggestVideos returns typeahead entries for published videos whose title
// starts with the prefix.
func (r *PostgresSearchRepository) SuggestVideos(ctx context.Context, prefix string, limit int) ([]models.Suggestion, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT title, description
        FROM videos
        WHERE published AND title ILIKE $1 || '%'
        ORDER BY views DESC
        LIMIT $2
    `, escapeLikePrefix(prefix), limit)
	if err != nil {
		return nil, fmt.Errorf("query video suggestions: %w", err)
	}
	defer rows.Close()

	var suggestions []models.Suggestion
	for rows.Next() {
		var title, description string
		if err := rows.Scan(&title, &description); err != nil {
			return nil, fmt.Errorf("scan video suggestion: %w", err)
		}
		suggestions = append(suggestions, models.Suggestion{
			Type:        "video",
			Text:        title,
			Description: description,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video suggestions: %w", err)
	}
	return suggestions, nil
}

var _ SearchRepository = (*PostgresSearchRepository)(nil)

package repositories

import (
	"context"
	"fmt"

	"github.com/kaaltube/backend/internal/db"
	"github.com/kaaltube/backend/internal/models"
)

// PostgresLikeRepository provides PostgreSQL-backed persistence for likes.
// Every mutation runs in a transaction so the denormalized counter on the
// liked row cannot drift from the like rows.
type PostgresLikeRepository struct {
	pool db.Pool
}

// NewPostgresLikeRepository constructs a like repository backed by PostgreSQL.
func NewPostgresLikeRepository(pool db.Pool) *PostgresLikeRepository {
	return &PostgresLikeRepository{pool: pool}
}

// ToggleVideoLike flips the caller's like on the video and reports the
// resulting state.
func (r *PostgresLikeRepository) ToggleVideoLike(ctx context.Context, videoID, userID string) (bool, error) {
	return r.toggle(ctx, toggleSpec{
		insert:    `INSERT INTO video_likes (video_id, user_id, created_at) VALUES ($1, $2, NOW()) ON CONFLICT (video_id, user_id) DO NOTHING`,
		remove:    `DELETE FROM video_likes WHERE video_id = $1 AND user_id = $2`,
		increment: `UPDATE videos SET likes = likes + 1 WHERE id = $1`,
		decrement: `UPDATE videos SET likes = GREATEST(likes - 1, 0) WHERE id = $1`,
	}, videoID, userID)
}

// RemoveVideoLike clears the caller's like if present. Missing likes are not
// an error.
func (r *PostgresLikeRepository) RemoveVideoLike(ctx context.Context, videoID, userID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin like transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM video_likes WHERE video_id = $1 AND user_id = $2`, videoID, userID)
	if err != nil {
		return fmt.Errorf("delete video like: %w", err)
	}
	if tag.RowsAffected() > 0 {
		if _, err := tx.Exec(ctx, `UPDATE videos SET likes = GREATEST(likes - 1, 0) WHERE id = $1`, videoID); err != nil {
			return fmt.Errorf("decrement video likes: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit like transaction: %w", err)
	}
	return nil
}

// ListLikedVideos returns the videos the user has liked, most recently liked
// first.
func (r *PostgresLikeRepository) ListLikedVideos(ctx context.Context, userID string, limit int) ([]models.VideoWithOwner, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+videoWithOwnerColumns+`
        FROM video_likes vl
        JOIN videos v ON v.id = vl.video_id
        JOIN users u ON u.id = v.owner_id
        WHERE vl.user_id = $1
        ORDER BY vl.created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query liked videos: %w", err)
	}
	defer rows.Close()

	var videos []models.VideoWithOwner
	for rows.Next() {
		video, err := scanVideoWithOwner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan liked video: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate liked videos: %w", err)
	}
	return videos, nil
}

// ToggleCommentLike flips the caller's like on the comment and reports the
// resulting state.
func (r *PostgresLikeRepository) ToggleCommentLike(ctx context.Context, commentID, userID string) (bool, error) {
	return r.toggle(ctx, toggleSpec{
		insert:    `INSERT INTO comment_likes (comment_id, user_id, created_at) VALUES ($1, $2, NOW()) ON CONFLICT (comment_id, user_id) DO NOTHING`,
		remove:    `DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2`,
		increment: `UPDATE comments SET likes = likes + 1 WHERE id = $1`,
		decrement: `UPDATE comments SET likes = GREATEST(likes - 1, 0) WHERE id = $1`,
	}, commentID, userID)
}

type toggleSpec struct {
	insert    string
	remove    string
	increment string
	decrement string
}

func (r *PostgresLikeRepository) toggle(ctx context.Context, spec toggleSpec, targetID, userID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin like transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, spec.insert, targetID, userID)
	if err != nil {
		return false, fmt.Errorf("insert like: %w", err)
	}

	liked := tag.RowsAffected() > 0
	if liked {
		if _, err := tx.Exec(ctx, spec.increment, targetID); err != nil {
			return false, fmt.Errorf("increment likes: %w", err)
		}
	} else {
		if _, err := tx.Exec(ctx, spec.remove, targetID, userID); err != nil {
			return false, fmt.Errorf("delete like: %w", err)
		}
		if _, err := tx.Exec(ctx, spec.decrement, targetID); err != nil {
			return false, fmt.Errorf("decrement likes: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit like transaction: %w", err)
	}
	return liked, nil
}

var _ LikeRepository = (*PostgresLikeRepository)(nil)

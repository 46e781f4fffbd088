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

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

const videoColumns = `v.id, v.owner_id, v.asset_id, v.thumbnail, v.title, v.description,
        v.views, v.likes, v.published, v.created_at, v.updated_at`

const videoWithOwnerColumns = videoColumns + `, u.id, u.username, u.full_name, u.avatar`

// Create stores a new video metadata record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, owner_id, asset_id, thumbnail, title, description,
                views, likes, published, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, video.ID, video.OwnerID, video.AssetID, video.Thumbnail, video.Title, video.Description,
		video.Views, video.Likes, video.Published, video.CreatedAt, video.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// FindByID fetches a bare video row.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos v WHERE v.id = $1`, id)

	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}
	return video, nil
}

// FindByIDWithOwner fetches a video joined with its owner's public profile.
func (r *PostgresVideoRepository) FindByIDWithOwner(ctx context.Context, id string) (models.VideoWithOwner, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.VideoWithOwner{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+videoWithOwnerColumns+`
        FROM videos v
        JOIN users u ON u.id = v.owner_id
        WHERE v.id = $1
    `, id)

	video, err := scanVideoWithOwner(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.VideoWithOwner{}, ErrNotFound
		}
		return models.VideoWithOwner{}, fmt.Errorf("select video with owner: %w", err)
	}
	return video, nil
}

// ListPublished returns the latest published videos with owner profiles.
func (r *PostgresVideoRepository) ListPublished(ctx context.Context, limit int) ([]models.VideoWithOwner, error) {
	return r.listWithOwner(ctx, `
        SELECT `+videoWithOwnerColumns+`
        FROM videos v
        JOIN users u ON u.id = v.owner_id
        WHERE v.published
        ORDER BY v.created_at DESC
        LIMIT $1
    `, limit)
}

// ListByOwner returns every video belonging to the owner, newest first.
func (r *PostgresVideoRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+videoColumns+`
        FROM videos v
        WHERE v.owner_id = $1
        ORDER BY v.created_at DESC
    `, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query owner videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owner videos: %w", err)
	}
	return videos, nil
}

// SetPublished updates the publish flag.
func (r *PostgresVideoRepository) SetPublished(ctx context.Context, id string, published bool) error {
	return r.exec(ctx, `
        UPDATE videos SET published = $2, updated_at = NOW() WHERE id = $1
    `, id, published)
}

// Update modifies the mutable metadata fields.
func (r *PostgresVideoRepository) Update(ctx context.Context, id, title, description, thumbnail string) error {
	return r.exec(ctx, `
        UPDATE videos SET title = $2, description = $3, thumbnail = $4, updated_at = NOW() WHERE id = $1
    `, id, title, description, thumbnail)
}

// Delete removes the video. Views, likes, comments and watch history rows go
// with it via foreign key cascade.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
}

// RecordView counts a view once per viewer, bumping the denormalized counter
// only on first sight.
func (r *PostgresVideoRepository) RecordView(ctx context.Context, videoID, viewerID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin view transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
        INSERT INTO views (video_id, viewer_id, created_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (video_id, viewer_id) DO NOTHING
    `, videoID, viewerID)
	if err != nil {
		return false, fmt.Errorf("insert view: %w", err)
	}

	counted := tag.RowsAffected() > 0
	if counted {
		if _, err := tx.Exec(ctx, `UPDATE videos SET views = views + 1 WHERE id = $1`, videoID); err != nil {
			return false, fmt.Errorf("increment views: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit view transaction: %w", err)
	}
	return counted, nil
}

// UpsertWatchHistory appends the video to the user's history, bumping it to
// the front when already present (the history behaves as an ordered set).
func (r *PostgresVideoRepository) UpsertWatchHistory(ctx context.Context, userID, videoID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO watch_history (user_id, video_id, watched_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (user_id, video_id) DO UPDATE SET watched_at = NOW()
    `, userID, videoID)
	if err != nil {
		return fmt.Errorf("upsert watch history: %w", err)
	}
	return nil
}

// ListWatchHistory returns watched videos most recently watched first.
func (r *PostgresVideoRepository) ListWatchHistory(ctx context.Context, userID string) ([]models.VideoWithOwner, error) {
	return r.listWithOwner(ctx, `
        SELECT `+videoWithOwnerColumns+`
        FROM watch_history wh
        JOIN videos v ON v.id = wh.video_id
        JOIN users u ON u.id = v.owner_id
        WHERE wh.user_id = $1
        ORDER BY wh.watched_at DESC
    `, userID)
}

// RemoveWatchHistory deletes a single history entry.
func (r *PostgresVideoRepository) RemoveWatchHistory(ctx context.Context, userID, videoID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        DELETE FROM watch_history WHERE user_id = $1 AND video_id = $2
    `, userID, videoID); err != nil {
		return fmt.Errorf("delete watch history: %w", err)
	}
	return nil
}

func (r *PostgresVideoRepository) listWithOwner(ctx context.Context, query string, args ...any) ([]models.VideoWithOwner, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.VideoWithOwner
	for rows.Next() {
		video, err := scanVideoWithOwner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}
	return videos, nil
}

func (r *PostgresVideoRepository) exec(ctx context.Context, query string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanVideo(row pgx.Row) (models.Video, error) {
	var video models.Video
	err := row.Scan(&video.ID, &video.OwnerID, &video.AssetID, &video.Thumbnail, &video.Title,
		&video.Description, &video.Views, &video.Likes, &video.Published,
		&video.CreatedAt, &video.UpdatedAt)
	return video, err
}

func scanVideoWithOwner(row pgx.Row) (models.VideoWithOwner, error) {
	var video models.VideoWithOwner
	err := row.Scan(&video.ID, &video.OwnerID, &video.AssetID, &video.Thumbnail, &video.Title,
		&video.Description, &video.Views, &video.Likes, &video.Published,
		&video.CreatedAt, &video.UpdatedAt,
		&video.Owner.ID, &video.Owner.Username, &video.Owner.FullName, &video.Owner.Avatar)
	return video, err
}

var _ VideoRepository = (*PostgresVideoRepository)(nil)

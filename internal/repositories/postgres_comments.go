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

// PostgresCommentRepository provides PostgreSQL-backed persistence for comments.
type PostgresCommentRepository struct {
	pool db.Pool
}

// NewPostgresCommentRepository constructs a comment repository backed by PostgreSQL.
func NewPostgresCommentRepository(pool db.Pool) *PostgresCommentRepository {
	return &PostgresCommentRepository{pool: pool}
}

const commentColumns = `c.id, c.video_id, c.owner_id, c.content, c.likes, c.edited, c.edited_at, c.created_at`

// Create stores a new comment.
func (r *PostgresCommentRepository) Create(ctx context.Context, comment models.Comment) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO comments (id, video_id, owner_id, content, likes, edited, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, comment.ID, comment.VideoID, comment.OwnerID, comment.Content, comment.Likes,
		comment.Edited, comment.CreatedAt)
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
		return fmt.Errorf("insert comment: %w", err)
	}

	return nil
}

// FindByID fetches a single comment.
func (r *PostgresCommentRepository) FindByID(ctx context.Context, id string) (models.Comment, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Comment{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments c WHERE c.id = $1`, id)

	comment, err := scanComment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Comment{}, ErrNotFound
		}
		return models.Comment{}, fmt.Errorf("select comment: %w", err)
	}
	return comment, nil
}

// ListForVideo returns the video's comments newest-first. Each row carries the
// owner's public profile and, when viewerID is non-empty, whether the viewer
// has liked it.
func (r *PostgresCommentRepository) ListForVideo(ctx context.Context, videoID, viewerID string) ([]models.CommentWithOwner, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+commentColumns+`,
               u.id, u.username, u.full_name, u.avatar,
               CASE WHEN $2 = '' THEN FALSE
                    ELSE EXISTS (
                        SELECT 1 FROM comment_likes cl
                        WHERE cl.comment_id = c.id AND cl.user_id = $2
                    )
               END
        FROM comments c
        JOIN users u ON u.id = c.owner_id
        WHERE c.video_id = $1
        ORDER BY c.created_at DESC
    `, videoID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []models.CommentWithOwner
	for rows.Next() {
		var comment models.CommentWithOwner
		if err := rows.Scan(&comment.ID, &comment.VideoID, &comment.OwnerID, &comment.Content,
			&comment.Likes, &comment.Edited, &comment.EditedAt, &comment.CreatedAt,
			&comment.Owner.ID, &comment.Owner.Username, &comment.Owner.FullName, &comment.Owner.Avatar,
			&comment.IsLiked); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

// Update replaces the comment body and flags it as edited, returning the
// stored row.
func (r *PostgresCommentRepository) Update(ctx context.Context, id, content string) (models.Comment, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Comment{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE comments
        SET content = $2, edited = TRUE, edited_at = NOW()
        WHERE id = $1
        RETURNING id, video_id, owner_id, content, likes, edited, edited_at, created_at
    `, id, content)

	var comment models.Comment
	if err := row.Scan(&comment.ID, &comment.VideoID, &comment.OwnerID, &comment.Content,
		&comment.Likes, &comment.Edited, &comment.EditedAt, &comment.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Comment{}, ErrNotFound
		}
		return models.Comment{}, fmt.Errorf("update comment: %w", err)
	}
	return comment, nil
}

// Delete removes the comment and its like rows via cascade.
func (r *PostgresCommentRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanComment(row pgx.Row) (models.Comment, error) {
	var comment models.Comment
	err := row.Scan(&comment.ID, &comment.VideoID, &comment.OwnerID, &comment.Content,
		&comment.Likes, &comment.Edited, &comment.EditedAt, &comment.CreatedAt)
	return comment, err
}

var _ CommentRepository = (*PostgresCommentRepository)(nil)

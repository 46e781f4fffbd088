package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kaaltube/backend/internal/db"
	"github.com/kaaltube/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for accounts.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, username, email, full_name, password_hash, avatar, cover_image,
        verified, otp_hash, otp_expires_at, refresh_token, created_at, updated_at`

// Create persists a new account record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, email, full_name, password_hash, avatar, cover_image,
                verified, otp_hash, otp_expires_at, refresh_token, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `, user.ID, user.Username, user.Email, user.FullName, user.Password, user.Avatar, user.CoverImage,
		user.Verified, user.OTPHash, user.OTPExpiresAt, user.RefreshToken, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByID fetches an account by its identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByEmail fetches an account by its email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// FindByUsernameOrEmail fetches the account matching either identifier.
func (r *PostgresUserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error) {
	return r.findOne(ctx, `
        SELECT `+userColumns+`
        FROM users
        WHERE (username = $1 AND $1 <> '') OR (email = $2 AND $2 <> '')
        LIMIT 1
    `, username, email)
}

// SetRefreshToken overwrites the account's single stored refresh token. An
// empty token clears it.
func (r *PostgresUserRepository) SetRefreshToken(ctx context.Context, userID, token string) error {
	return r.exec(ctx, `UPDATE users SET refresh_token = $2 WHERE id = $1`, userID, token)
}

// SaveOTP overwrites the live verification code hash and its expiry.
func (r *PostgresUserRepository) SaveOTP(ctx context.Context, userID, otpHash string, expiresAt time.Time) error {
	return r.exec(ctx, `
        UPDATE users SET otp_hash = $2, otp_expires_at = $3 WHERE id = $1
    `, userID, otpHash, expiresAt.UTC())
}

// MarkVerified flips the verification flag and clears the consumed code.
func (r *PostgresUserRepository) MarkVerified(ctx context.Context, userID string) error {
	return r.exec(ctx, `
        UPDATE users SET verified = TRUE, otp_hash = '', otp_expires_at = NULL WHERE id = $1
    `, userID)
}

// UpdatePassword replaces the stored password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return r.exec(ctx, `
        UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1
    `, userID, passwordHash)
}

// UpdateProfile modifies the mutable profile fields.
func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, userID, fullName, username, email string) error {
	return r.exec(ctx, `
        UPDATE users SET full_name = $2, username = $3, email = $4, updated_at = NOW() WHERE id = $1
    `, userID, fullName, username, email)
}

// SetAvatar replaces the avatar asset reference.
func (r *PostgresUserRepository) SetAvatar(ctx context.Context, userID, assetID string) error {
	return r.exec(ctx, `UPDATE users SET avatar = $2, updated_at = NOW() WHERE id = $1`, userID, assetID)
}

// SetCoverImage replaces the cover image asset reference.
func (r *PostgresUserRepository) SetCoverImage(ctx context.Context, userID, assetID string) error {
	return r.exec(ctx, `UPDATE users SET cover_image = $2, updated_at = NOW() WHERE id = $1`, userID, assetID)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, query string, args ...any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, query, args...)

	var (
		user      models.User
		otpExpiry sql.NullTime
	)
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.Password,
		&user.Avatar, &user.CoverImage, &user.Verified, &user.OTPHash, &otpExpiry,
		&user.RefreshToken, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}

	if otpExpiry.Valid {
		t := otpExpiry.Time.UTC()
		user.OTPExpiresAt = &t
	}
	return user, nil
}

func (r *PostgresUserRepository) exec(ctx context.Context, query string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)

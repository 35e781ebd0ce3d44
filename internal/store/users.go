package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/models"
)

const userColumns = `id, username, email, password_hash, role, is_active, created_at`

func scanUser(row interface{ Scan(...interface{}) error }, u *models.User) error {
	return row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt)
}

func CreateUser(ctx context.Context, db *sql.DB, username, email, passwordHash string) (*models.User, error) {
	if username == "" {
		return nil, database.Validation("username", "username is required")
	}
	if email == "" {
		return nil, database.Validation("email", "email is required")
	}

	user := &models.User{}
	query := `
		INSERT INTO users (username, email, password_hash, role, is_active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())
		RETURNING ` + userColumns

	err := scanUser(db.QueryRowContext(ctx, query, username, email, passwordHash, models.RoleUser), user)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, database.Validation("email", "already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, db *sql.DB, id int64) (*models.User, error) {
	user := &models.User{}

	err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id), user)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*models.User, error) {
	user := &models.User{}

	err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email), user)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return user, nil
}

func CreateRefreshToken(ctx context.Context, db *sql.DB, userID int64, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	rt := &models.RefreshToken{}
	query := `
		INSERT INTO refresh_tokens (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, token, user_id, expires_at, created_at`

	err := db.QueryRowContext(ctx, query, token, userID, expiresAt).Scan(
		&rt.ID, &rt.Token, &rt.UserID, &rt.ExpiresAt, &rt.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	return rt, nil
}

// RotateRefreshToken atomically swaps a valid refresh token for a new one and
// returns the owning user. Expired or unknown tokens fail; so does a token
// whose user has been deactivated.
func RotateRefreshToken(ctx context.Context, db *sql.DB, oldToken, newToken string, expiresAt time.Time) (*models.User, error) {
	var user *models.User

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		// Lock the row so a concurrent refresh with the same token blocks
		// here and then fails the lookup instead of minting a second pair.
		var userID int64
		var tokenExpiry time.Time
		err := tx.QueryRowContext(ctx,
			`SELECT user_id, expires_at FROM refresh_tokens WHERE token = $1 FOR UPDATE`,
			oldToken).Scan(&userID, &tokenExpiry)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrTokenNotFound
			}
			return fmt.Errorf("get refresh token: %w", err)
		}

		if tokenExpiry.Before(time.Now()) {
			return database.ErrTokenExpired
		}

		user = &models.User{}
		err = scanUser(tx.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`, userID), user)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrUserNotFound
			}
			return fmt.Errorf("get user: %w", err)
		}
		if !user.IsActive {
			return database.ErrUserInactive
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM refresh_tokens WHERE token = $1`, oldToken)
		if err != nil {
			return fmt.Errorf("delete refresh token: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return database.ErrTokenNotFound
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO refresh_tokens (token, user_id, expires_at, created_at)
			 VALUES ($1, $2, $3, NOW())`,
			newToken, userID, expiresAt); err != nil {
			return fmt.Errorf("insert refresh token: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// DeleteRefreshToken is idempotent: deleting a token that no longer exists is
// not an error, matching logout semantics.
func DeleteRefreshToken(ctx context.Context, db *sql.DB, token string) error {
	if _, err := db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

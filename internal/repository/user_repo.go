package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"finrep-server/internal/model"
)

const userColumns = `id, username, email, name_first, name_last, password_hash, role_id, disabled,
	failed_login_attempts, last_failed_login_at, locked_until,
	oauth_google_id, oauth_microsoft_id, oauth_facebook_id,
	otp_secret, otp_verified, otp_nonce, otp_nonce_expires,
	last_login_at, last_login_ip, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.NameFirst, &u.NameLast, &u.PasswordHash, &u.RoleID, &u.Disabled,
		&u.FailedLoginAttempts, &u.LastFailedLoginAt, &u.LockedUntil,
		&u.OAuthGoogleID, &u.OAuthMicrosoftID, &u.OAuthFacebookID,
		&u.OTPSecret, &u.OTPVerified, &u.OTPNonce, &u.OTPNonceExpires,
		&u.LastLoginAt, &u.LastLoginIP, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`,
		strings.TrimSpace(username)))
}

// FindByLinkage resolves a local user from a (provider, external id) pair.
// linkageColumn guards against injecting arbitrary column names.
func (r *UserRepository) FindByLinkage(ctx context.Context, provider string, externalID string) (model.User, error) {
	column, err := linkageColumn(provider)
	if err != nil {
		return model.User{}, err
	}

	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, externalID))
}

func (r *UserRepository) FindByOTPNonce(ctx context.Context, nonce string) (model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE otp_nonce = $1`, nonce))
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(username) = lower($1))`,
		strings.TrimSpace(username)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) Create(ctx context.Context, u model.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, name_first, name_last, password_hash, role_id,
		                    otp_secret, otp_verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Username, u.Email, u.NameFirst, u.NameLast, u.PasswordHash, u.RoleID,
		u.OTPSecret, u.OTPVerified, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, roleID int, email *string, nameFirst *string, nameLast *string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET role_id = $2, email = $3, name_first = $4, name_last = $5, updated_at = $6
		 WHERE id = $1`,
		userID, roleID, email, nameFirst, nameLast, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SetDisabled(ctx context.Context, userID string, disabled bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET disabled = $2, updated_at = $3 WHERE id = $1`,
		userID, disabled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set user disabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// RecordLoginFailure bumps the consecutive-failure counter in a single
// statement so concurrent attempts cannot tear the count. A failure older
// than the window restarts the streak at 1. Returns the new count.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, userID string, window time.Duration) (int, error) {
	var attempts int
	err := r.pool.QueryRow(ctx,
		`UPDATE users SET
		     failed_login_attempts = CASE
		         WHEN last_failed_login_at IS NULL OR last_failed_login_at < now() - $2::interval
		         THEN 1
		         ELSE failed_login_attempts + 1
		     END,
		     last_failed_login_at = now(),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING failed_login_attempts`,
		userID, window).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, model.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("record login failure: %w", err)
	}
	return attempts, nil
}

func (r *UserRepository) LockAccount(ctx context.Context, userID string, until time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET locked_until = $2, updated_at = $3 WHERE id = $1`,
		userID, until, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	return nil
}

// RecordLoginSuccess resets the failure streak and stamps last-login
// metadata in one statement.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, userID string, ip string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET
		     failed_login_attempts = 0,
		     last_failed_login_at = NULL,
		     locked_until = NULL,
		     last_login_at = now(),
		     last_login_ip = $2,
		     updated_at = now()
		 WHERE id = $1`,
		userID, nullable(ip))
	if err != nil {
		return fmt.Errorf("record login success: %w", err)
	}
	return nil
}

func (r *UserRepository) SetOTPNonce(ctx context.Context, userID string, nonce string, expires time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET otp_nonce = $2, otp_nonce_expires = $3, updated_at = now() WHERE id = $1`,
		userID, nonce, expires)
	if err != nil {
		return fmt.Errorf("set otp nonce: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// ClearOTPNonce consumes a nonce. The WHERE clause makes redemption
// single-use: the first caller wins, later callers see false.
func (r *UserRepository) ClearOTPNonce(ctx context.Context, userID string, nonce string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET otp_nonce = NULL, otp_nonce_expires = NULL, updated_at = now()
		 WHERE id = $1 AND otp_nonce = $2`,
		userID, nonce)
	if err != nil {
		return false, fmt.Errorf("clear otp nonce: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *UserRepository) SetLinkage(ctx context.Context, userID string, provider string, externalID string) error {
	column, err := linkageColumn(provider)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET `+column+` = $2, updated_at = now() WHERE id = $1`,
		userID, externalID)
	if err != nil {
		return fmt.Errorf("set %s linkage: %w", provider, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) ClearLinkage(ctx context.Context, userID string, provider string) error {
	column, err := linkageColumn(provider)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET `+column+` = NULL, updated_at = now() WHERE id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("clear %s linkage: %w", provider, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func linkageColumn(provider string) (string, error) {
	switch provider {
	case model.ProviderGoogle:
		return "oauth_google_id", nil
	case model.ProviderMicrosoft:
		return "oauth_microsoft_id", nil
	case model.ProviderFacebook:
		return "oauth_facebook_id", nil
	}
	return "", fmt.Errorf("unknown oauth provider %q: %w", provider, model.ErrProviderNotConfigured)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

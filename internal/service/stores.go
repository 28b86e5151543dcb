package service

import (
	"context"
	"time"

	"finrep-server/internal/event"
	"finrep-server/internal/model"
)

// The services talk to persistence through these interfaces. The pgx
// repositories implement them in production; the in-memory stores in
// internal/repository back the tests.

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	FindByLinkage(ctx context.Context, provider string, externalID string) (model.User, error)
	FindByOTPNonce(ctx context.Context, nonce string) (model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, u model.User) error
	UpdateProfile(ctx context.Context, userID string, roleID int, email *string, nameFirst *string, nameLast *string) error
	SetDisabled(ctx context.Context, userID string, disabled bool) error
	RecordLoginFailure(ctx context.Context, userID string, window time.Duration) (int, error)
	LockAccount(ctx context.Context, userID string, until time.Time) error
	RecordLoginSuccess(ctx context.Context, userID string, ip string) error
	SetOTPNonce(ctx context.Context, userID string, nonce string, expires time.Time) error
	ClearOTPNonce(ctx context.Context, userID string, nonce string) (bool, error)
	SetLinkage(ctx context.Context, userID string, provider string, externalID string) error
	ClearLinkage(ctx context.Context, userID string, provider string) error
	List(ctx context.Context) ([]model.User, error)
}

type RoleStore interface {
	FindByID(ctx context.Context, id int) (model.Role, error)
	List(ctx context.Context) ([]model.Role, error)
}

type TokenStore interface {
	Store(ctx context.Context, token string, userID string, expiresAt time.Time) error
	Validate(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

type AuditStore interface {
	Insert(ctx context.Context, e event.Event) error
	List(ctx context.Context, limit int) ([]event.Event, error)
}

package event

import "time"

type Type string

const (
	TypeLoginSucceeded Type = "auth.login_succeeded"
	TypeLoginFailed    Type = "auth.login_failed"
	TypeLockoutWarning Type = "auth.lockout_warning"
	TypeAccountLocked  Type = "auth.account_locked"
	TypeTokenRefreshed Type = "auth.token_refreshed"
	TypeUserCreated    Type = "user.created"
	TypeUserInvited    Type = "user.invited"
	TypeUserDisabled   Type = "user.disabled"
	TypeOAuthLinked    Type = "oauth.linked"
	TypeOAuthUnlinked  Type = "oauth.unlinked"
)

// Event is a fact about an account that already happened. Payload values
// are small string maps so subscribers can persist them verbatim.
type Event struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	UserID     string            `json:"user_id,omitempty"`
	ClientIP   string            `json:"client_ip,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}

package model

import "time"

// OAuth provider names accepted by the linkage columns and the /oauth routes.
const (
	ProviderGoogle    = "google"
	ProviderMicrosoft = "microsoft"
	ProviderFacebook  = "facebook"
)

type User struct {
	ID           string  `json:"id"`
	Username     string  `json:"username"`
	Email        *string `json:"email,omitempty"`
	NameFirst    *string `json:"name_first,omitempty"`
	NameLast     *string `json:"name_last,omitempty"`
	PasswordHash string  `json:"-"`
	RoleID       int     `json:"role_id"`
	Disabled     bool    `json:"disabled"`

	FailedLoginAttempts int        `json:"-"`
	LastFailedLoginAt   *time.Time `json:"-"`
	LockedUntil         *time.Time `json:"-"`

	OAuthGoogleID    *string `json:"-"`
	OAuthMicrosoftID *string `json:"-"`
	OAuthFacebookID  *string `json:"-"`

	OTPSecret       *string    `json:"-"`
	OTPVerified     bool       `json:"-"`
	OTPNonce        *string    `json:"-"`
	OTPNonceExpires *time.Time `json:"-"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP *string    `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LinkageID returns the external identity id linked for the given provider,
// or nil when the provider is unknown or not linked.
func (u *User) LinkageID(provider string) *string {
	switch provider {
	case ProviderGoogle:
		return u.OAuthGoogleID
	case ProviderMicrosoft:
		return u.OAuthMicrosoftID
	case ProviderFacebook:
		return u.OAuthFacebookID
	}
	return nil
}

// CredentialCount reports how many independent ways this user can sign in:
// a password plus one per linked OAuth provider.
func (u *User) CredentialCount() int {
	count := 0
	if u.PasswordHash != "" {
		count++
	}
	for _, id := range []*string{u.OAuthGoogleID, u.OAuthMicrosoftID, u.OAuthFacebookID} {
		if id != nil && *id != "" {
			count++
		}
	}
	return count
}

// MFAEnabled reports whether login must go through the OTP challenge.
func (u *User) MFAEnabled() bool {
	return u.OTPSecret != nil && *u.OTPSecret != "" && u.OTPVerified
}

// UserPublic is the user shape returned by the API; it never carries
// credential material or lockout internals.
type UserPublic struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       *string    `json:"email,omitempty"`
	NameFirst   *string    `json:"name_first,omitempty"`
	NameLast    *string    `json:"name_last,omitempty"`
	RoleID      int        `json:"role_id"`
	Disabled    bool       `json:"disabled"`
	MFAEnabled  bool       `json:"mfa_enabled"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (u *User) Public() UserPublic {
	return UserPublic{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		NameFirst:   u.NameFirst,
		NameLast:    u.NameLast,
		RoleID:      u.RoleID,
		Disabled:    u.Disabled,
		MFAEnabled:  u.MFAEnabled(),
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

package model

import "errors"

var (
	// Credential verification
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountDisabled    = errors.New("account disabled")

	// Token verification
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenWrongKind = errors.New("token wrong kind")
	ErrTokenRevoked   = errors.New("token revoked")

	// OAuth bridge
	ErrProviderUnavailable   = errors.New("identity provider unavailable")
	ErrProviderNotConfigured = errors.New("identity provider not configured")
	ErrLinkageConflict       = errors.New("identity already linked to another account")
	ErrNotLinked             = errors.New("identity not linked to any account")
	ErrLastCredential        = errors.New("cannot remove the only remaining credential")

	// MFA
	ErrOTPRequired  = errors.New("otp verification required")
	ErrInvalidOTP   = errors.New("invalid otp code")
	ErrNonceExpired = errors.New("otp nonce expired")

	// Users and roles
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrRoleNotFound      = errors.New("role not found")

	// Authorization
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Generic
	ErrInvalidInput = errors.New("invalid input")
)

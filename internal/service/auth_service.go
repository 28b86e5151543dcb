package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"finrep-server/internal/event"
	"finrep-server/internal/mfa"
	"finrep-server/internal/model"
	"finrep-server/internal/token"
)

// dummyHash is a bcrypt hash of a random string nobody knows. It is
// compared against when the username does not resolve so the response
// timing of "no such user" matches "wrong password".
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// AuthConfig carries the credential-verifier tunables out of the process
// configuration.
type AuthConfig struct {
	LockoutThreshold int
	NotifyThreshold  int
	LockoutWindow    time.Duration
	LockoutDuration  time.Duration
	MFANonceTTL      time.Duration
}

// AuthService is the credential verifier and token lifecycle manager:
// username/password authentication with per-account lockout, the OTP
// challenge for MFA-enabled accounts, and issue/refresh/revoke of the
// bearer tokens.
type AuthService struct {
	users  UserStore
	tokens TokenStore
	issuer *token.Issuer
	bus    event.Bus
	cfg    AuthConfig
	now    func() time.Time
}

func NewAuthService(users UserStore, tokens TokenStore, issuer *token.Issuer, bus event.Bus, cfg AuthConfig) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		issuer: issuer,
		bus:    bus,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate checks a username/password pair and maintains the lockout
// counters. Unknown usernames and wrong passwords both come back as
// ErrInvalidCredentials so callers cannot enumerate accounts.
func (s *AuthService) Authenticate(ctx context.Context, username string, password string, clientIP string) (model.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			// Burn the same bcrypt work as the real comparison.
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			s.publish(event.TypeLoginFailed, "", clientIP, map[string]string{"reason": "unknown username"})
			return model.User{}, model.ErrInvalidCredentials
		}
		return model.User{}, err
	}

	if user.Disabled {
		s.publish(event.TypeLoginFailed, user.ID, clientIP, map[string]string{"reason": "account disabled"})
		return model.User{}, model.ErrAccountDisabled
	}

	if user.LockedUntil != nil && s.now().Before(*user.LockedUntil) {
		s.publish(event.TypeLoginFailed, user.ID, clientIP, map[string]string{"reason": "account locked"})
		return model.User{}, model.ErrAccountLocked
	}

	if user.PasswordHash == "" {
		// OAuth-only account; password login is not a credential here.
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		s.publish(event.TypeLoginFailed, user.ID, clientIP, map[string]string{"reason": "no password credential"})
		return model.User{}, model.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.User{}, s.recordFailure(ctx, user, clientIP)
	}

	if err := s.users.RecordLoginSuccess(ctx, user.ID, clientIP); err != nil {
		return model.User{}, err
	}
	s.publish(event.TypeLoginSucceeded, user.ID, clientIP, nil)

	return user, nil
}

func (s *AuthService) recordFailure(ctx context.Context, user model.User, clientIP string) error {
	attempts, err := s.users.RecordLoginFailure(ctx, user.ID, s.cfg.LockoutWindow)
	if err != nil {
		return err
	}

	details := map[string]string{"reason": "wrong password", "attempts": strconv.Itoa(attempts)}
	s.publish(event.TypeLoginFailed, user.ID, clientIP, details)

	if attempts == s.cfg.NotifyThreshold {
		s.publish(event.TypeLockoutWarning, user.ID, clientIP, map[string]string{"attempts": strconv.Itoa(attempts)})
	}

	if attempts >= s.cfg.LockoutThreshold {
		until := s.now().Add(s.cfg.LockoutDuration)
		if err := s.users.LockAccount(ctx, user.ID, until); err != nil {
			slog.Error("failed to lock account", "user_id", user.ID, "error", err)
		}
		s.publish(event.TypeAccountLocked, user.ID, clientIP, map[string]string{
			"until": until.Format(time.RFC3339),
		})
	}

	return model.ErrInvalidCredentials
}

// Login runs the full POST /auth/login flow. MFA-enabled accounts get an
// OTP nonce instead of tokens; everyone else gets an access token, plus a
// refresh token when rememberMe is set.
func (s *AuthService) Login(ctx context.Context, username string, password string, clientIP string, rememberMe bool) (model.LoginResult, error) {
	user, err := s.Authenticate(ctx, username, password, clientIP)
	if err != nil {
		return model.LoginResult{}, err
	}

	if user.MFAEnabled() {
		nonce := uuid.NewString()
		expires := s.now().Add(s.cfg.MFANonceTTL)
		if err := s.users.SetOTPNonce(ctx, user.ID, nonce, expires); err != nil {
			return model.LoginResult{}, err
		}

		return model.LoginResult{
			OTPNonce: nonce,
			Message:  "Multi-factor authentication is enabled. Provide your OTP code to continue.",
		}, nil
	}

	tokens, err := s.TokensForUser(ctx, user, rememberMe)
	if err != nil {
		return model.LoginResult{}, err
	}
	return model.LoginResult{Tokens: &tokens}, nil
}

// VerifyOTP redeems a login nonce with a TOTP code. A nonce is single-use:
// redemption consumes it atomically, and expiry invalidates it. A wrong
// code leaves the nonce alive for a retry within its TTL.
func (s *AuthService) VerifyOTP(ctx context.Context, nonce string, code string, clientIP string, rememberMe bool) (model.TokenPair, error) {
	user, err := s.users.FindByOTPNonce(ctx, nonce)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.TokenPair{}, model.ErrNonceExpired
		}
		return model.TokenPair{}, err
	}

	if user.OTPNonceExpires == nil || s.now().After(*user.OTPNonceExpires) {
		_, _ = s.users.ClearOTPNonce(ctx, user.ID, nonce)
		return model.TokenPair{}, model.ErrNonceExpired
	}

	if user.Disabled {
		return model.TokenPair{}, model.ErrAccountDisabled
	}

	if user.OTPSecret == nil || !mfa.Validate(*user.OTPSecret, code, s.now()) {
		s.publish(event.TypeLoginFailed, user.ID, clientIP, map[string]string{"reason": "invalid otp"})
		return model.TokenPair{}, model.ErrInvalidOTP
	}

	consumed, err := s.users.ClearOTPNonce(ctx, user.ID, nonce)
	if err != nil {
		return model.TokenPair{}, err
	}
	if !consumed {
		// Another request redeemed the nonce first.
		return model.TokenPair{}, model.ErrNonceExpired
	}

	if err := s.users.RecordLoginSuccess(ctx, user.ID, clientIP); err != nil {
		return model.TokenPair{}, err
	}
	s.publish(event.TypeLoginSucceeded, user.ID, clientIP, map[string]string{"mfa": "true"})

	return s.TokensForUser(ctx, user, rememberMe)
}

// Refresh trades a refresh token for a fresh pair, rotating the refresh
// token. The subject must still exist and be enabled: disabling or
// deleting an account invalidates all of its outstanding refresh tokens.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	claims, err := s.issuer.Verify(refreshToken, token.KindRefresh)
	if err != nil {
		return model.TokenPair{}, err
	}

	ownerID, err := s.tokens.Validate(ctx, refreshToken)
	if err != nil {
		return model.TokenPair{}, err
	}
	if ownerID != claims.UserID {
		return model.TokenPair{}, model.ErrTokenRevoked
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			_ = s.tokens.Revoke(ctx, refreshToken)
			return model.TokenPair{}, model.ErrTokenRevoked
		}
		return model.TokenPair{}, err
	}
	if user.Disabled {
		_ = s.tokens.RevokeAllForUser(ctx, user.ID)
		return model.TokenPair{}, model.ErrAccountDisabled
	}

	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		return model.TokenPair{}, err
	}

	s.publish(event.TypeTokenRefreshed, user.ID, "", nil)
	return s.TokensForUser(ctx, user, true)
}

// Logout revokes a refresh token. Access tokens are stateless and simply
// age out.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.tokens.Revoke(ctx, refreshToken)
}

// ValidateAccessToken is the verifier used by the auth middleware.
func (s *AuthService) ValidateAccessToken(raw string) (*model.AuthClaims, error) {
	claims, err := s.issuer.Verify(raw, token.KindAccess)
	if err != nil {
		return nil, err
	}

	return &model.AuthClaims{
		UserID:  claims.UserID,
		TokenID: claims.TokenID,
		Kind:    string(claims.Kind),
	}, nil
}

// TokensForUser issues an access token for the user, plus a stored
// refresh token when withRefresh is set. Also used by the OAuth bridge
// after a federated login.
func (s *AuthService) TokensForUser(ctx context.Context, user model.User, withRefresh bool) (model.TokenPair, error) {
	access, _, err := s.issuer.Issue(user.ID, token.KindAccess)
	if err != nil {
		return model.TokenPair{}, err
	}

	pair := model.TokenPair{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.issuer.TTL(token.KindAccess).Seconds()),
		User:        user.Public(),
	}

	if withRefresh {
		refresh, expiresAt, err := s.issuer.Issue(user.ID, token.KindRefresh)
		if err != nil {
			return model.TokenPair{}, err
		}
		if err := s.tokens.Store(ctx, refresh, user.ID, expiresAt); err != nil {
			return model.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
		}
		pair.RefreshToken = refresh
	}

	return pair, nil
}

func (s *AuthService) publish(kind event.Type, userID string, clientIP string, details map[string]string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.Event{
		Type:       kind,
		UserID:     userID,
		ClientIP:   clientIP,
		Details:    details,
		OccurredAt: s.now(),
	})
}

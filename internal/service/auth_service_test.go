package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"finrep-server/internal/event"
	"finrep-server/internal/mfa"
	"finrep-server/internal/model"
	"finrep-server/internal/repository"
	"finrep-server/internal/token"
)

const (
	testPassword  = "Sup3rSecret"
	testOTPSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
)

func testAuthConfig() AuthConfig {
	return AuthConfig{
		LockoutThreshold: 5,
		NotifyThreshold:  3,
		LockoutWindow:    15 * time.Minute,
		LockoutDuration:  30 * time.Minute,
		MFANonceTTL:      5 * time.Minute,
	}
}

func testIssuer(t *testing.T) *token.Issuer {
	t.Helper()

	signing := make([]byte, 32)
	encryption := make([]byte, 32)
	for i := range signing {
		signing[i] = byte(i + 1)
		encryption[i] = byte(200 - i)
	}

	issuer, err := token.NewIssuer(signing, encryption, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	return issuer
}

type authFixture struct {
	svc    *AuthService
	users  *repository.MemoryUserStore
	tokens *repository.MemoryTokenStore
	bus    event.Bus
	events <-chan event.Event
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	users := repository.NewMemoryUserStore()
	tokens := repository.NewMemoryTokenStore()
	bus := event.NewBus()
	events, cancel := bus.Subscribe()
	t.Cleanup(cancel)

	return &authFixture{
		svc:    NewAuthService(users, tokens, testIssuer(t), bus, testAuthConfig()),
		users:  users,
		tokens: tokens,
		bus:    bus,
		events: events,
	}
}

func (f *authFixture) addUser(t *testing.T, mutate func(*model.User)) model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	u := model.User{
		ID:           uuid.NewString(),
		Username:     "jsmith",
		PasswordHash: string(hash),
		RoleID:       3,
	}
	if mutate != nil {
		mutate(&u)
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *authFixture) drainEvents(t *testing.T) []event.Event {
	t.Helper()

	var got []event.Event
	for {
		select {
		case e := <-f.events:
			got = append(got, e)
		case <-time.After(50 * time.Millisecond):
			return got
		}
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.addUser(t, nil)

		got, err := f.svc.Authenticate(ctx, "jsmith", testPassword, "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		stored, err := f.users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored.LastLoginAt)
		require.NotNil(t, stored.LastLoginIP)
		assert.Equal(t, "10.0.0.1", *stored.LastLoginIP)
	})

	t.Run("username lookup is case insensitive", func(t *testing.T) {
		f := newAuthFixture(t)
		f.addUser(t, nil)

		_, err := f.svc.Authenticate(ctx, "JSmith", testPassword, "10.0.0.1")
		assert.NoError(t, err)
	})

	t.Run("unknown username", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.svc.Authenticate(ctx, "ghost", testPassword, "10.0.0.1")
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newAuthFixture(t)
		f.addUser(t, nil)

		_, err := f.svc.Authenticate(ctx, "jsmith", "not-the-password", "10.0.0.1")
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("disabled account", func(t *testing.T) {
		f := newAuthFixture(t)
		f.addUser(t, func(u *model.User) { u.Disabled = true })

		_, err := f.svc.Authenticate(ctx, "jsmith", testPassword, "10.0.0.1")
		assert.ErrorIs(t, err, model.ErrAccountDisabled)
	})

	t.Run("oauth only account has no password credential", func(t *testing.T) {
		f := newAuthFixture(t)
		googleID := "g-123"
		f.addUser(t, func(u *model.User) {
			u.PasswordHash = ""
			u.OAuthGoogleID = &googleID
		})

		_, err := f.svc.Authenticate(ctx, "jsmith", testPassword, "10.0.0.1")
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("success resets the failure counter", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.addUser(t, nil)

		for i := 0; i < 3; i++ {
			_, err := f.svc.Authenticate(ctx, "jsmith", "wrong", "10.0.0.1")
			require.ErrorIs(t, err, model.ErrInvalidCredentials)
		}
		_, err := f.svc.Authenticate(ctx, "jsmith", testPassword, "10.0.0.1")
		require.NoError(t, err)

		stored, err := f.users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Zero(t, stored.FailedLoginAttempts)
	})
}

func TestAuthenticateLockout(t *testing.T) {
	ctx := context.Background()

	t.Run("locks after threshold failures", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.addUser(t, nil)

		for i := 0; i < f.svc.cfg.LockoutThreshold; i++ {
			_, err := f.svc.Authenticate(ctx, "jsmith", "wrong", "10.0.0.1")
			require.ErrorIs(t, err, model.ErrInvalidCredentials)
		}

		stored, err := f.users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.LockedUntil)
		assert.True(t, stored.LockedUntil.After(time.Now()))

		// Even the right password is refused while locked.
		_, err = f.svc.Authenticate(ctx, "jsmith", testPassword, "10.0.0.1")
		assert.ErrorIs(t, err, model.ErrAccountLocked)
	})

	t.Run("expired lock admits the right password", func(t *testing.T) {
		f := newAuthFixture(t)
		past := time.Now().UTC().Add(-time.Minute)
		f.addUser(t, func(u *model.User) {
			u.FailedLoginAttempts = 5
			u.LockedUntil = &past
		})

		_, err := f.svc.Authenticate(ctx, "jsmith", testPassword, "10.0.0.1")
		assert.NoError(t, err)
	})

	t.Run("publishes warning and lock events", func(t *testing.T) {
		f := newAuthFixture(t)
		f.addUser(t, nil)

		for i := 0; i < f.svc.cfg.LockoutThreshold; i++ {
			_, _ = f.svc.Authenticate(ctx, "jsmith", "wrong", "10.0.0.1")
		}

		var warnings, locks int
		for _, e := range f.drainEvents(t) {
			switch e.Type {
			case event.TypeLockoutWarning:
				warnings++
			case event.TypeAccountLocked:
				locks++
			}
		}
		assert.Equal(t, 1, warnings)
		assert.Equal(t, 1, locks)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("issues access token only by default", func(t *testing.T) {
		f := newAuthFixture(t)
		f.addUser(t, nil)

		res, err := f.svc.Login(ctx, "jsmith", testPassword, "10.0.0.1", false)
		require.NoError(t, err)
		require.NotNil(t, res.Tokens)
		assert.NotEmpty(t, res.Tokens.AccessToken)
		assert.Empty(t, res.Tokens.RefreshToken)
		assert.Equal(t, "Bearer", res.Tokens.TokenType)
	})

	t.Run("remember me adds a refresh token", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.addUser(t, nil)

		res, err := f.svc.Login(ctx, "jsmith", testPassword, "10.0.0.1", true)
		require.NoError(t, err)
		require.NotNil(t, res.Tokens)
		require.NotEmpty(t, res.Tokens.RefreshToken)

		ownerID, err := f.tokens.Validate(ctx, res.Tokens.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, u.ID, ownerID)
	})

	t.Run("mfa account gets a nonce instead of tokens", func(t *testing.T) {
		f := newAuthFixture(t)
		secret := testOTPSecret
		f.addUser(t, func(u *model.User) {
			u.OTPSecret = &secret
			u.OTPVerified = true
		})

		res, err := f.svc.Login(ctx, "jsmith", testPassword, "10.0.0.1", true)
		require.NoError(t, err)
		assert.Nil(t, res.Tokens)
		assert.NotEmpty(t, res.OTPNonce)
	})

	t.Run("unverified otp secret does not trigger mfa", func(t *testing.T) {
		f := newAuthFixture(t)
		secret := testOTPSecret
		f.addUser(t, func(u *model.User) {
			u.OTPSecret = &secret
			u.OTPVerified = false
		})

		res, err := f.svc.Login(ctx, "jsmith", testPassword, "10.0.0.1", false)
		require.NoError(t, err)
		assert.NotNil(t, res.Tokens)
	})
}

func TestVerifyOTP(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*authFixture, string) {
		f := newAuthFixture(t)
		secret := testOTPSecret
		f.addUser(t, func(u *model.User) {
			u.OTPSecret = &secret
			u.OTPVerified = true
		})

		res, err := f.svc.Login(ctx, "jsmith", testPassword, "10.0.0.1", false)
		require.NoError(t, err)
		require.NotEmpty(t, res.OTPNonce)
		return f, res.OTPNonce
	}

	validCode := func(t *testing.T) string {
		code, err := mfa.GenerateCode(testOTPSecret, time.Now())
		require.NoError(t, err)
		return code
	}

	t.Run("valid code redeems the nonce", func(t *testing.T) {
		f, nonce := setup(t)

		pair, err := f.svc.VerifyOTP(ctx, nonce, validCode(t), "10.0.0.1", true)
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
	})

	t.Run("nonce is single use", func(t *testing.T) {
		f, nonce := setup(t)

		_, err := f.svc.VerifyOTP(ctx, nonce, validCode(t), "10.0.0.1", false)
		require.NoError(t, err)

		_, err = f.svc.VerifyOTP(ctx, nonce, validCode(t), "10.0.0.1", false)
		assert.ErrorIs(t, err, model.ErrNonceExpired)
	})

	t.Run("wrong code keeps the nonce alive", func(t *testing.T) {
		f, nonce := setup(t)

		_, err := f.svc.VerifyOTP(ctx, nonce, "000000", "10.0.0.1", false)
		require.ErrorIs(t, err, model.ErrInvalidOTP)

		_, err = f.svc.VerifyOTP(ctx, nonce, validCode(t), "10.0.0.1", false)
		assert.NoError(t, err)
	})

	t.Run("unknown nonce", func(t *testing.T) {
		f, _ := setup(t)

		_, err := f.svc.VerifyOTP(ctx, "not-a-nonce", validCode(t), "10.0.0.1", false)
		assert.ErrorIs(t, err, model.ErrNonceExpired)
	})

	t.Run("expired nonce", func(t *testing.T) {
		f, nonce := setup(t)
		f.svc.now = func() time.Time { return time.Now().UTC().Add(10 * time.Minute) }

		_, err := f.svc.VerifyOTP(ctx, nonce, validCode(t), "10.0.0.1", false)
		assert.ErrorIs(t, err, model.ErrNonceExpired)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	login := func(t *testing.T, f *authFixture) model.TokenPair {
		res, err := f.svc.Login(ctx, "jsmith", testPassword, "10.0.0.1", true)
		require.NoError(t, err)
		require.NotNil(t, res.Tokens)
		return *res.Tokens
	}

	t.Run("rotates the refresh token", func(t *testing.T) {
		f := newAuthFixture(t)
		f.addUser(t, nil)
		pair := login(t, f)

		next, err := f.svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, next.AccessToken)
		require.NotEmpty(t, next.RefreshToken)
		assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

		// The old token is spent.
		_, err = f.svc.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, model.ErrTokenRevoked)

		// The rotated one works.
		_, err = f.svc.Refresh(ctx, next.RefreshToken)
		assert.NoError(t, err)
	})

	t.Run("rejects an access token", func(t *testing.T) {
		f := newAuthFixture(t)
		f.addUser(t, nil)
		pair := login(t, f)

		_, err := f.svc.Refresh(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, model.ErrTokenWrongKind)
	})

	t.Run("rejects a revoked token", func(t *testing.T) {
		f := newAuthFixture(t)
		f.addUser(t, nil)
		pair := login(t, f)

		require.NoError(t, f.svc.Logout(ctx, pair.RefreshToken))

		_, err := f.svc.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, model.ErrTokenRevoked)
	})

	t.Run("disabled account revokes everything", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.addUser(t, nil)
		pair := login(t, f)

		require.NoError(t, f.users.SetDisabled(ctx, u.ID, true))

		_, err := f.svc.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, model.ErrAccountDisabled)
	})

	t.Run("garbage input", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.svc.Refresh(ctx, "garbage")
		assert.ErrorIs(t, err, model.ErrTokenMalformed)
	})
}

func TestValidateAccessToken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	u := f.addUser(t, nil)

	res, err := f.svc.Login(ctx, "jsmith", testPassword, "10.0.0.1", false)
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)

	claims, err := f.svc.ValidateAccessToken(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.NotEmpty(t, claims.TokenID)
	assert.Equal(t, string(token.KindAccess), claims.Kind)

	_, err = f.svc.ValidateAccessToken("garbage")
	assert.ErrorIs(t, err, model.ErrTokenMalformed)
}

package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrep-server/internal/event"
	"finrep-server/internal/model"
	"finrep-server/internal/oauth"
	"finrep-server/internal/repository"
)

// stubProvider stands in for a configured identity provider. The code
// doubles as the external profile ID it resolves to.
type stubProvider struct {
	name string
	fail error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) AuthorizationURL(state string) string {
	return "https://idp.example.com/authorize?state=" + state
}

func (p *stubProvider) ExchangeCode(_ context.Context, code string) (oauth.Profile, error) {
	if p.fail != nil {
		return oauth.Profile{}, p.fail
	}
	return oauth.Profile{ID: code, Email: "person@example.com", Name: "Test Person"}, nil
}

type oauthFixture struct {
	svc   *OAuthService
	users *repository.MemoryUserStore
	auth  *AuthService
}

func newOAuthFixture(t *testing.T, providers ...oauth.Provider) *oauthFixture {
	t.Helper()

	users := repository.NewMemoryUserStore()
	tokens := repository.NewMemoryTokenStore()
	bus := event.NewBus()
	auth := NewAuthService(users, tokens, testIssuer(t), bus, testAuthConfig())

	if providers == nil {
		providers = []oauth.Provider{&stubProvider{name: model.ProviderGoogle}}
	}

	return &oauthFixture{
		svc:   NewOAuthService(providers, users, auth, bus),
		users: users,
		auth:  auth,
	}
}

func (f *oauthFixture) addLinkedUser(t *testing.T, externalID string) model.User {
	t.Helper()

	u := model.User{
		ID:            uuid.NewString(),
		Username:      "linked",
		OAuthGoogleID: &externalID,
		RoleID:        3,
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func TestOAuthAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("linked identity gets a token pair", func(t *testing.T) {
		f := newOAuthFixture(t)
		u := f.addLinkedUser(t, "ext-42")

		pair, err := f.svc.Authenticate(ctx, model.ProviderGoogle, "ext-42", "10.0.0.1")
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.Equal(t, u.ID, pair.User.ID)
	})

	t.Run("unlinked identity", func(t *testing.T) {
		f := newOAuthFixture(t)

		_, err := f.svc.Authenticate(ctx, model.ProviderGoogle, "ext-42", "10.0.0.1")
		assert.ErrorIs(t, err, model.ErrNotLinked)
	})

	t.Run("disabled linked account", func(t *testing.T) {
		f := newOAuthFixture(t)
		u := f.addLinkedUser(t, "ext-42")
		require.NoError(t, f.users.SetDisabled(ctx, u.ID, true))

		_, err := f.svc.Authenticate(ctx, model.ProviderGoogle, "ext-42", "10.0.0.1")
		assert.ErrorIs(t, err, model.ErrAccountDisabled)
	})

	t.Run("unconfigured provider", func(t *testing.T) {
		f := newOAuthFixture(t)

		_, err := f.svc.Authenticate(ctx, model.ProviderFacebook, "ext-42", "10.0.0.1")
		assert.ErrorIs(t, err, model.ErrProviderNotConfigured)
	})

	t.Run("exchange failure surfaces as provider unavailable", func(t *testing.T) {
		f := newOAuthFixture(t, &stubProvider{name: model.ProviderGoogle, fail: model.ErrProviderUnavailable})

		_, err := f.svc.Authenticate(ctx, model.ProviderGoogle, "ext-42", "10.0.0.1")
		assert.ErrorIs(t, err, model.ErrProviderUnavailable)
	})
}

func TestOAuthLink(t *testing.T) {
	ctx := context.Background()

	addPasswordUser := func(t *testing.T, f *oauthFixture) model.User {
		t.Helper()
		u := model.User{ID: uuid.NewString(), Username: "plain", PasswordHash: "x", RoleID: 3}
		require.NoError(t, f.users.Create(ctx, u))
		return u
	}

	t.Run("links a free identity", func(t *testing.T) {
		f := newOAuthFixture(t)
		u := addPasswordUser(t, f)

		require.NoError(t, f.svc.Link(ctx, model.ProviderGoogle, u.ID, "ext-1"))

		stored, err := f.users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.OAuthGoogleID)
		assert.Equal(t, "ext-1", *stored.OAuthGoogleID)
	})

	t.Run("relinking the same identity is a no-op", func(t *testing.T) {
		f := newOAuthFixture(t)
		u := addPasswordUser(t, f)

		require.NoError(t, f.svc.Link(ctx, model.ProviderGoogle, u.ID, "ext-1"))
		assert.NoError(t, f.svc.Link(ctx, model.ProviderGoogle, u.ID, "ext-1"))
	})

	t.Run("identity held by another account conflicts", func(t *testing.T) {
		f := newOAuthFixture(t)
		f.addLinkedUser(t, "ext-1")
		u := addPasswordUser(t, f)

		err := f.svc.Link(ctx, model.ProviderGoogle, u.ID, "ext-1")
		assert.ErrorIs(t, err, model.ErrLinkageConflict)
	})
}

func TestOAuthUnlink(t *testing.T) {
	ctx := context.Background()

	t.Run("unlinks when another credential remains", func(t *testing.T) {
		f := newOAuthFixture(t)
		ext := "ext-1"
		u := model.User{ID: uuid.NewString(), Username: "both", PasswordHash: "x", OAuthGoogleID: &ext, RoleID: 3}
		require.NoError(t, f.users.Create(ctx, u))

		require.NoError(t, f.svc.Unlink(ctx, model.ProviderGoogle, u.ID))

		stored, err := f.users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.OAuthGoogleID)
	})

	t.Run("refuses to remove the last credential", func(t *testing.T) {
		f := newOAuthFixture(t)
		u := f.addLinkedUser(t, "ext-1")

		err := f.svc.Unlink(ctx, model.ProviderGoogle, u.ID)
		assert.ErrorIs(t, err, model.ErrLastCredential)
	})

	t.Run("not linked", func(t *testing.T) {
		f := newOAuthFixture(t)
		u := model.User{ID: uuid.NewString(), Username: "plain", PasswordHash: "x", RoleID: 3}
		require.NoError(t, f.users.Create(ctx, u))

		err := f.svc.Unlink(ctx, model.ProviderGoogle, u.ID)
		assert.ErrorIs(t, err, model.ErrNotLinked)
	})
}

func TestAuthorizationURL(t *testing.T) {
	f := newOAuthFixture(t)

	url, err := f.svc.AuthorizationURL(model.ProviderGoogle, "xyz")
	require.NoError(t, err)
	assert.Contains(t, url, "state=xyz")

	_, err = f.svc.AuthorizationURL(model.ProviderMicrosoft, "xyz")
	assert.ErrorIs(t, err, model.ErrProviderNotConfigured)
}

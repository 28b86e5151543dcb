package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"finrep-server/internal/model"
)

// fakeIdP stands in for a provider's token and profile endpoints.
func fakeIdP(t *testing.T, profileStatus int, profile any) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		if r.FormValue("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer provider-access-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(profileStatus)
		_ = json.NewEncoder(w).Encode(profile)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testProvider(server *httptest.Server) *provider {
	base := NewGoogle(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.example.com/oauth/google/callback",
		Timeout:      5 * time.Second,
	}).(*provider)

	base.conf.Endpoint = oauth2.Endpoint{
		AuthURL:  server.URL + "/authorize",
		TokenURL: server.URL + "/token",
	}
	base.profileURL = server.URL + "/profile"
	return base
}

func TestExchangeCode_Success(t *testing.T) {
	server := fakeIdP(t, http.StatusOK, map[string]string{
		"id":    "ext-123",
		"email": "user@example.com",
		"name":  "Example User",
	})

	p := testProvider(server)
	profile, err := p.ExchangeCode(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, Profile{ID: "ext-123", Email: "user@example.com", Name: "Example User"}, profile)
}

func TestExchangeCode_BadCode(t *testing.T) {
	server := fakeIdP(t, http.StatusOK, map[string]string{"id": "ext-123"})

	p := testProvider(server)
	_, err := p.ExchangeCode(context.Background(), "bad-code")
	assert.ErrorIs(t, err, model.ErrProviderUnavailable)
}

func TestExchangeCode_ProfileEndpointError(t *testing.T) {
	server := fakeIdP(t, http.StatusInternalServerError, map[string]string{})

	p := testProvider(server)
	_, err := p.ExchangeCode(context.Background(), "good-code")
	assert.ErrorIs(t, err, model.ErrProviderUnavailable)
}

func TestExchangeCode_MissingExternalID(t *testing.T) {
	server := fakeIdP(t, http.StatusOK, map[string]string{"email": "user@example.com"})

	p := testProvider(server)
	_, err := p.ExchangeCode(context.Background(), "good-code")
	assert.ErrorIs(t, err, model.ErrProviderUnavailable)
}

func TestExchangeCode_UnreachableProvider(t *testing.T) {
	server := fakeIdP(t, http.StatusOK, map[string]string{"id": "ext-123"})
	p := testProvider(server)
	server.Close()

	_, err := p.ExchangeCode(context.Background(), "good-code")
	assert.ErrorIs(t, err, model.ErrProviderUnavailable)
}

func TestAuthorizationURL(t *testing.T) {
	google := NewGoogle(Config{
		ClientID:    "client-id",
		RedirectURI: "https://app.example.com/oauth/google/callback",
		Timeout:     5 * time.Second,
	})

	url := google.AuthorizationURL("state-token")
	assert.Contains(t, url, "accounts.google.com")
	assert.Contains(t, url, "client_id=client-id")
	assert.Contains(t, url, "state=state-token")
	assert.Contains(t, url, "access_type=offline")
}

func TestMicrosoft_TenantEndpoint(t *testing.T) {
	ms := NewMicrosoft(Config{
		ClientID:    "client-id",
		RedirectURI: "https://app.example.com/oauth/microsoft/callback",
		Tenant:      "contoso.example",
		Timeout:     5 * time.Second,
	})

	assert.Contains(t, ms.AuthorizationURL("s"), "login.microsoftonline.com/contoso.example/")
	assert.Equal(t, model.ProviderMicrosoft, ms.Name())
}

func TestProviderNames(t *testing.T) {
	cfg := Config{ClientID: "id", ClientSecret: "secret", RedirectURI: "https://x/cb", Timeout: time.Second}
	assert.Equal(t, model.ProviderGoogle, NewGoogle(cfg).Name())
	assert.Equal(t, model.ProviderFacebook, NewFacebook(cfg).Name())
}

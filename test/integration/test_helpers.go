//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"finrep-server/internal/config"
	"finrep-server/internal/event"
	"finrep-server/internal/handler"
	"finrep-server/internal/middleware"
	"finrep-server/internal/model"
	"finrep-server/internal/oauth"
	"finrep-server/internal/repository"
	"finrep-server/internal/router"
	"finrep-server/internal/service"
	"finrep-server/internal/token"
)

const (
	adminUsername = "superadmin"
	adminPassword = "Admin123x"
)

// stubProvider plays the identity provider. The authorization code is
// echoed back as the external profile id.
type stubProvider struct {
	name string
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) AuthorizationURL(state string) string {
	return "https://idp.example.com/authorize?state=" + state
}

func (p *stubProvider) ExchangeCode(_ context.Context, code string) (oauth.Profile, error) {
	if code == "bad-code" {
		return oauth.Profile{}, model.ErrProviderUnavailable
	}
	return oauth.Profile{ID: code, Email: "sso@example.com", Name: "SSO User"}, nil
}

type env struct {
	server *httptest.Server
	users  *repository.MemoryUserStore
	roles  *repository.MemoryRoleStore
	tokens *repository.MemoryTokenStore
	audit  *repository.MemoryAuditStore
}

func newTestServer(t *testing.T) *env {
	t.Helper()

	users := repository.NewMemoryUserStore()
	roles := repository.NewMemoryRoleStore()
	tokens := repository.NewMemoryTokenStore()
	audit := repository.NewMemoryAuditStore()
	require.NoError(t, roles.Seed(context.Background(), model.SeedRoles()))

	signing := bytes.Repeat([]byte{0x11}, 32)
	encryption := bytes.Repeat([]byte{0x22}, 32)
	issuer, err := token.NewIssuer(signing, encryption, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	bus := event.NewBus()
	authService := service.NewAuthService(users, tokens, issuer, bus, service.AuthConfig{
		LockoutThreshold: 5,
		NotifyThreshold:  3,
		LockoutWindow:    15 * time.Minute,
		LockoutDuration:  30 * time.Minute,
		MFANonceTTL:      5 * time.Minute,
	})
	permissionService := service.NewPermissionService(users, roles)
	userService := service.NewUserService(users, roles, tokens, permissionService, bus, bcrypt.MinCost)
	oauthService := service.NewOAuthService([]oauth.Provider{&stubProvider{name: model.ProviderGoogle}}, users, authService, bus)
	auditService := service.NewAuditService(audit, bus, permissionService)

	auditCtx, auditCancel := context.WithCancel(context.Background())
	t.Cleanup(auditCancel)
	go auditService.Run(auditCtx)

	cfg := &config.Config{
		ServerPort:       "8080",
		RequestTimeout:   30 * time.Second,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     10000,
		AuthRateLimitRPM: 10000,
	}

	authMiddleware := middleware.NewAuthMiddleware(authService, permissionService)
	appRouter := router.New(
		cfg,
		authMiddleware,
		handler.NewAuthHandler(authService, userService),
		handler.NewOAuthHandler(oauthService),
		handler.NewUserHandler(userService),
		handler.NewRoleHandler(roles),
		handler.NewAuditHandler(auditService),
		func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
	)

	server := httptest.NewServer(appRouter)
	t.Cleanup(server.Close)

	e := &env{server: server, users: users, roles: roles, tokens: tokens, audit: audit}
	e.seedUser(t, adminUsername, adminPassword, 1, nil)
	return e
}

func (e *env) seedUser(t *testing.T, username string, password string, roleID int, mutate func(*model.User)) model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	u := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		RoleID:       roleID,
	}
	if mutate != nil {
		mutate(&u)
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

type tokenData struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int64            `json:"expires_in"`
	User         model.UserPublic `json:"user"`
}

func login(t *testing.T, e *env, username string, password string, rememberMe bool) (tokenData, *http.Response) {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"username":    username,
		"password":    password,
		"remember_me": rememberMe,
	})
	require.NoError(t, err)

	resp, err := http.Post(e.server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var parsed struct {
		Success bool      `json:"success"`
		Data    tokenData `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return parsed.Data, resp
}

func mustLogin(t *testing.T, e *env, username string, password string, rememberMe bool) tokenData {
	t.Helper()

	data, resp := login(t, e, username, password, rememberMe)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, data.AccessToken)
	return data
}

func doAuthJSONRequest(t *testing.T, method string, url string, body []byte, accessToken string) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader([]byte{})
	} else {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func doAuthRequest(t *testing.T, method string, url string, accessToken string) *http.Response {
	t.Helper()
	return doAuthJSONRequest(t, method, url, nil, accessToken)
}

func decodeData(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	var parsed struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.True(t, parsed.Success)
	require.NoError(t, json.Unmarshal(parsed.Data, out))
}

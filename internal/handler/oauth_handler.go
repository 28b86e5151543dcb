package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"finrep-server/internal/middleware"
	"finrep-server/internal/service"
	"finrep-server/pkg/apierror"
)

type OAuthHandler struct {
	oauth *service.OAuthService
}

func NewOAuthHandler(oauth *service.OAuthService) *OAuthHandler {
	return &OAuthHandler{oauth: oauth}
}

// Login redirects the browser to the provider's consent screen.
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider := providerParam(r)

	url, err := h.oauth.AuthorizationURL(provider, uuid.NewString())
	if err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback completes the provider round trip and signs the user in.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := providerParam(r)

	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, apierror.New("BAD_REQUEST", "code query parameter is required", "code", http.StatusBadRequest))
		return
	}

	tokens, err := h.oauth.Authenticate(r.Context(), provider, code, middleware.ClientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens)
}

// Link attaches the provider identity from the callback code to the
// authenticated account.
func (h *OAuthHandler) Link(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	provider := providerParam(r)
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, apierror.New("BAD_REQUEST", "code query parameter is required", "code", http.StatusBadRequest))
		return
	}

	if err := h.oauth.Link(r.Context(), provider, claims.UserID, code); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"linked": true, "provider": provider})
}

func (h *OAuthHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	provider := providerParam(r)
	if err := h.oauth.Unlink(r.Context(), provider, claims.UserID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"linked": false, "provider": provider})
}

// Providers lists configured provider names for the login page.
func (h *OAuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{"providers": h.oauth.ConfiguredProviders()})
}

func providerParam(r *http.Request) string {
	return strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
}

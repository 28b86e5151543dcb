package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"finrep-server/internal/middleware"
	"finrep-server/internal/model"
	"finrep-server/internal/service"
	"finrep-server/pkg/apierror"
)

type AuthHandler struct {
	auth  *service.AuthService
	users *service.UserService
}

func NewAuthHandler(auth *service.AuthService, users *service.UserService) *AuthHandler {
	return &AuthHandler{auth: auth, users: users}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	result, err := h.auth.Login(r.Context(), payload.Username, payload.Password, middleware.ClientIP(r), payload.RememberMe)
	if err != nil {
		writeError(w, err)
		return
	}

	if result.OTPNonce != "" {
		writeSuccess(w, http.StatusOK, map[string]any{
			"otp_required": true,
			"otp_nonce":    result.OTPNonce,
			"message":      result.Message,
		})
		return
	}

	writeSuccess(w, http.StatusOK, result.Tokens)
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	payload.Nonce = strings.TrimSpace(payload.Nonce)
	payload.Code = strings.TrimSpace(payload.Code)
	if payload.Nonce == "" || payload.Code == "" {
		writeError(w, apierror.New("BAD_REQUEST", "otp_nonce and code are required", "", http.StatusBadRequest))
		return
	}

	tokens, err := h.auth.VerifyOTP(r.Context(), payload.Nonce, payload.Code, middleware.ClientIP(r), payload.RememberMe)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	payload.RefreshToken = strings.TrimSpace(payload.RefreshToken)
	if payload.RefreshToken == "" {
		writeError(w, apierror.New("BAD_REQUEST", "refresh_token is required", "refresh_token", http.StatusBadRequest))
		return
	}

	tokens, err := h.auth.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	if err := h.auth.Logout(r.Context(), strings.TrimSpace(payload.RefreshToken)); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"logged_out": true})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	user, err := h.users.Get(r.Context(), claims.UserID, claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user.Public())
}

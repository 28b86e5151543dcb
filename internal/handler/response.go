package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"finrep-server/internal/model"
	"finrep-server/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.Is(err, model.ErrInvalidCredentials) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Invalid credentials"
	} else if errors.Is(err, model.ErrAccountLocked) {
		status = http.StatusLocked
		body.Code = "ACCOUNT_LOCKED"
		body.Message = "Account temporarily locked after repeated failed logins"
	} else if errors.Is(err, model.ErrAccountDisabled) {
		status = http.StatusForbidden
		body.Code = "ACCOUNT_DISABLED"
		body.Message = "Account is disabled"
	} else if errors.Is(err, model.ErrTokenExpired) || errors.Is(err, model.ErrTokenMalformed) ||
		errors.Is(err, model.ErrTokenWrongKind) || errors.Is(err, model.ErrTokenRevoked) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Invalid or expired token"
	} else if errors.Is(err, model.ErrOTPRequired) {
		status = http.StatusUnauthorized
		body.Code = "OTP_REQUIRED"
		body.Message = "One-time code required"
	} else if errors.Is(err, model.ErrInvalidOTP) {
		status = http.StatusUnauthorized
		body.Code = "INVALID_OTP"
		body.Message = "Invalid one-time code"
	} else if errors.Is(err, model.ErrNonceExpired) {
		status = http.StatusUnauthorized
		body.Code = "NONCE_EXPIRED"
		body.Message = "Login challenge expired, sign in again"
	} else if errors.Is(err, model.ErrProviderNotConfigured) {
		status = http.StatusNotImplemented
		body.Code = "PROVIDER_NOT_CONFIGURED"
		body.Message = "Identity provider is not configured"
	} else if errors.Is(err, model.ErrProviderUnavailable) {
		status = http.StatusBadGateway
		body.Code = "PROVIDER_UNAVAILABLE"
		body.Message = "Identity provider did not respond"
	} else if errors.Is(err, model.ErrNotLinked) {
		status = http.StatusForbidden
		body.Code = "NOT_LINKED"
		body.Message = "Identity is not linked to an account"
	} else if errors.Is(err, model.ErrLinkageConflict) {
		status = http.StatusConflict
		body.Code = "CONFLICT"
		body.Message = "Identity is already linked to another account"
	} else if errors.Is(err, model.ErrLastCredential) {
		status = http.StatusConflict
		body.Code = "LAST_CREDENTIAL"
		body.Message = "Cannot remove the account's only credential"
	} else if errors.Is(err, model.ErrUserNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "User not found"
	} else if errors.Is(err, model.ErrUserAlreadyExists) {
		status = http.StatusConflict
		body.Code = "ALREADY_EXISTS"
		body.Message = "User already exists"
	} else if errors.Is(err, model.ErrRoleNotFound) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Role does not exist"
	} else if errors.Is(err, model.ErrUnauthorized) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Authentication required"
	} else if errors.Is(err, model.ErrForbidden) {
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Access denied"
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		body.Details = err.Error()
	} else {
		// Log unclassified errors so they are visible in container logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

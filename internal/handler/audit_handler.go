package handler

import (
	"net/http"
	"strconv"

	"finrep-server/internal/middleware"
	"finrep-server/internal/service"
	"finrep-server/pkg/apierror"
)

type AuditHandler struct {
	audit *service.AuditService
}

func NewAuditHandler(audit *service.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, apierror.New("BAD_REQUEST", "limit must be a positive integer", "limit", http.StatusBadRequest))
			return
		}
		limit = parsed
	}

	events, err := h.audit.List(r.Context(), claims.UserID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"events": events, "total": len(events)})
}

package handler

import (
	"net/http"

	"finrep-server/internal/model"
	"finrep-server/internal/service"
)

type RoleHandler struct {
	roles service.RoleStore
}

func NewRoleHandler(roles service.RoleStore) *RoleHandler {
	return &RoleHandler{roles: roles}
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.RoleList{Roles: roles, Total: len(roles)})
}

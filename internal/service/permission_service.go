package service

import (
	"context"
	"errors"

	"finrep-server/internal/model"
)

// PermissionService answers "may this user do X". Roles carry a flat
// permission list, and role IDs double as rank: the lower the ID, the
// more privileged the role. Nobody may manage an account above their own
// rank.
type PermissionService struct {
	users UserStore
	roles RoleStore
}

func NewPermissionService(users UserStore, roles RoleStore) *PermissionService {
	return &PermissionService{users: users, roles: roles}
}

// HasPermission reports whether the user's role grants the permission.
// Disabled accounts hold no permissions regardless of role.
func (s *PermissionService) HasPermission(ctx context.Context, userID string, permission string) (bool, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if user.Disabled {
		return false, nil
	}

	role, err := s.roles.FindByID(ctx, user.RoleID)
	if err != nil {
		if errors.Is(err, model.ErrRoleNotFound) {
			return false, nil
		}
		return false, err
	}

	return role.HasPermission(permission), nil
}

// Require is HasPermission folded into an error: ErrForbidden when the
// permission is missing.
func (s *PermissionService) Require(ctx context.Context, userID string, permission string) error {
	ok, err := s.HasPermission(ctx, userID, permission)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrForbidden
	}
	return nil
}

// CanManageRole reports whether the actor outranks (or matches) the
// target role. An administrator may not create a superintendent.
func (s *PermissionService) CanManageRole(ctx context.Context, actorID string, targetRoleID int) (bool, error) {
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		return false, err
	}
	return targetRoleID >= actor.RoleID, nil
}

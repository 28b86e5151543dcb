package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"finrep-server/internal/event"
	"finrep-server/internal/model"
)

const (
	usernameMinLen = 4
	usernameMaxLen = 21

	passwordMinLen       = 8
	generatedPasswordLen = 12
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// UserService covers the administrative account lifecycle: create,
// invite, update, and disable. Every operation runs through the
// permission gate and the role-rank check before touching state.
type UserService struct {
	users  UserStore
	roles  RoleStore
	tokens TokenStore
	perms  *PermissionService
	bus    event.Bus

	bcryptCost int
}

func NewUserService(users UserStore, roles RoleStore, tokens TokenStore, perms *PermissionService, bus event.Bus, bcryptCost int) *UserService {
	return &UserService{
		users:      users,
		roles:      roles,
		tokens:     tokens,
		perms:      perms,
		bus:        bus,
		bcryptCost: bcryptCost,
	}
}

// Create provisions an account with a caller-chosen password. The gate
// order is fixed: permission, then role existence, then rank, then
// username availability.
func (s *UserService) Create(ctx context.Context, actorID string, req model.CreateUserRequest) (model.User, error) {
	if err := s.perms.Require(ctx, actorID, model.PermUsersCreate); err != nil {
		return model.User{}, err
	}
	if err := s.gateRole(ctx, actorID, req.RoleID); err != nil {
		return model.User{}, err
	}

	if err := ValidateUsername(req.Username); err != nil {
		return model.User{}, err
	}
	if err := ValidatePassword(req.Password); err != nil {
		return model.User{}, err
	}

	return s.insert(ctx, actorID, req, req.Password, event.TypeUserCreated)
}

// Invite provisions an account with a generated password, returned once
// for the administrator to hand over out of band.
func (s *UserService) Invite(ctx context.Context, actorID string, req model.InviteUserRequest) (model.InviteUserResponse, error) {
	if err := s.perms.Require(ctx, actorID, model.PermUsersCreate); err != nil {
		return model.InviteUserResponse{}, err
	}
	if err := s.gateRole(ctx, actorID, req.RoleID); err != nil {
		return model.InviteUserResponse{}, err
	}

	if err := ValidateUsername(req.Username); err != nil {
		return model.InviteUserResponse{}, err
	}

	password, err := generatePassword(generatedPasswordLen)
	if err != nil {
		return model.InviteUserResponse{}, fmt.Errorf("generate password: %w", err)
	}

	email := req.Email
	created := model.CreateUserRequest{
		Username:  req.Username,
		RoleID:    req.RoleID,
		Email:     &email,
		NameFirst: req.NameFirst,
		NameLast:  req.NameLast,
	}
	user, err := s.insert(ctx, actorID, created, password, event.TypeUserInvited)
	if err != nil {
		return model.InviteUserResponse{}, err
	}

	return model.InviteUserResponse{User: user.Public(), GeneratedPassword: password}, nil
}

func (s *UserService) insert(ctx context.Context, actorID string, req model.CreateUserRequest, password string, kind event.Type) (model.User, error) {
	exists, err := s.users.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return model.User{}, err
	}
	if exists {
		return model.User{}, model.ErrUserAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		NameFirst:    req.NameFirst,
		NameLast:     req.NameLast,
		PasswordHash: string(hash),
		RoleID:       req.RoleID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return model.User{}, err
	}

	s.publish(kind, user.ID, map[string]string{"actor": actorID, "username": user.Username})
	return user, nil
}

func (s *UserService) Get(ctx context.Context, actorID string, userID string) (model.User, error) {
	if actorID != userID {
		if err := s.perms.Require(ctx, actorID, model.PermUsersRead); err != nil {
			return model.User{}, err
		}
	}
	return s.users.FindByID(ctx, userID)
}

func (s *UserService) List(ctx context.Context, actorID string) ([]model.User, error) {
	if err := s.perms.Require(ctx, actorID, model.PermUsersRead); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

// Update changes profile fields and, when requested, reassigns the role.
// Rank is checked twice on a role change: against the target's current
// role and against the new one, so an administrator can neither demote a
// superintendent nor promote anyone to superintendent.
func (s *UserService) Update(ctx context.Context, actorID string, userID string, req model.UpdateUserRequest) (model.User, error) {
	if err := s.perms.Require(ctx, actorID, model.PermUsersUpdate); err != nil {
		return model.User{}, err
	}

	target, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}

	if ok, err := s.perms.CanManageRole(ctx, actorID, target.RoleID); err != nil {
		return model.User{}, err
	} else if !ok {
		return model.User{}, model.ErrForbidden
	}

	roleID := target.RoleID
	if req.RoleID != nil && *req.RoleID != target.RoleID {
		if err := s.gateRole(ctx, actorID, *req.RoleID); err != nil {
			return model.User{}, err
		}
		roleID = *req.RoleID
	}

	email := target.Email
	if req.Email != nil {
		email = req.Email
	}
	nameFirst := target.NameFirst
	if req.NameFirst != nil {
		nameFirst = req.NameFirst
	}
	nameLast := target.NameLast
	if req.NameLast != nil {
		nameLast = req.NameLast
	}

	if err := s.users.UpdateProfile(ctx, userID, roleID, email, nameFirst, nameLast); err != nil {
		return model.User{}, err
	}
	return s.users.FindByID(ctx, userID)
}

// Delete disables the account and revokes its refresh tokens. Accounts
// are never removed: the audit trail keys on user ids.
func (s *UserService) Delete(ctx context.Context, actorID string, userID string) error {
	if err := s.perms.Require(ctx, actorID, model.PermUsersDelete); err != nil {
		return err
	}
	if actorID == userID {
		return model.ErrForbidden
	}

	target, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if ok, err := s.perms.CanManageRole(ctx, actorID, target.RoleID); err != nil {
		return err
	} else if !ok {
		return model.ErrForbidden
	}

	if err := s.users.SetDisabled(ctx, userID, true); err != nil {
		return err
	}
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}

	s.publish(event.TypeUserDisabled, userID, map[string]string{"actor": actorID})
	return nil
}

func (s *UserService) gateRole(ctx context.Context, actorID string, roleID int) error {
	if _, err := s.roles.FindByID(ctx, roleID); err != nil {
		return err
	}

	ok, err := s.perms.CanManageRole(ctx, actorID, roleID)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrForbidden
	}
	return nil
}

func (s *UserService) publish(kind event.Type, userID string, details map[string]string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.Event{Type: kind, UserID: userID, Details: details})
}

// ValidateUsername enforces the account naming rules: 4 to 21
// characters, letters, digits, underscore, and hyphen only.
func ValidateUsername(username string) error {
	if len(username) < usernameMinLen || len(username) > usernameMaxLen {
		return fmt.Errorf("%w: username must be between %d and %d characters", model.ErrInvalidInput, usernameMinLen, usernameMaxLen)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: username may only contain letters, digits, underscores, and hyphens", model.ErrInvalidInput)
	}
	return nil
}

// ValidatePassword enforces the password policy: at least 8 characters
// with a digit, a lowercase letter, and an uppercase letter.
func ValidatePassword(password string) error {
	if len(password) < passwordMinLen {
		return fmt.Errorf("%w: password must be at least %d characters", model.ErrInvalidInput, passwordMinLen)
	}

	var hasDigit, hasLower, hasUpper bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		}
	}
	if !hasDigit || !hasLower || !hasUpper {
		return fmt.Errorf("%w: password must contain a digit, a lowercase letter, and an uppercase letter", model.ErrInvalidInput)
	}
	return nil
}

// generatePassword builds a random password that satisfies the policy by
// construction: one guaranteed character from each required class, the
// rest drawn from the full alphabet, then shuffled.
func generatePassword(length int) (string, error) {
	const (
		digits   = "23456789"
		lowers   = "abcdefghjkmnpqrstuvwxyz"
		uppers   = "ABCDEFGHJKMNPQRSTUVWXYZ"
		alphabet = digits + lowers + uppers
	)

	pick := func(set string) (byte, error) {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
		if err != nil {
			return 0, err
		}
		return set[n.Int64()], nil
	}

	buf := make([]byte, 0, length)
	for _, set := range []string{digits, lowers, uppers} {
		c, err := pick(set)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for len(buf) < length {
		c, err := pick(alphabet)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	for i := len(buf) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		j := n.Int64()
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf), nil
}

package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"finrep-server/internal/event"
	"finrep-server/internal/model"
)

// In-process implementations of the store interfaces. They back the unit
// and integration test suites; production wiring uses the pgx
// repositories.

type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]model.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: map[string]model.User{}}
}

func (s *MemoryUserStore) FindByID(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s *MemoryUserStore) FindByUsername(_ context.Context, username string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	for _, u := range s.users {
		if strings.ToLower(u.Username) == username {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *MemoryUserStore) FindByLinkage(_ context.Context, provider string, externalID string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if id := u.LinkageID(provider); id != nil && *id == externalID {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *MemoryUserStore) FindByOTPNonce(_ context.Context, nonce string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.OTPNonce != nil && *u.OTPNonce == nonce {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *MemoryUserStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := s.FindByUsername(ctx, username)
	return err == nil, nil
}

func (s *MemoryUserStore) Create(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.ID] = u
	return nil
}

func (s *MemoryUserStore) UpdateProfile(_ context.Context, userID string, roleID int, email *string, nameFirst *string, nameLast *string) error {
	return s.mutate(userID, func(u *model.User) {
		u.RoleID = roleID
		u.Email = email
		u.NameFirst = nameFirst
		u.NameLast = nameLast
	})
}

func (s *MemoryUserStore) SetDisabled(_ context.Context, userID string, disabled bool) error {
	return s.mutate(userID, func(u *model.User) {
		u.Disabled = disabled
	})
}

func (s *MemoryUserStore) RecordLoginFailure(_ context.Context, userID string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return 0, model.ErrUserNotFound
	}

	now := time.Now().UTC()
	if u.LastFailedLoginAt == nil || u.LastFailedLoginAt.Before(now.Add(-window)) {
		u.FailedLoginAttempts = 1
	} else {
		u.FailedLoginAttempts++
	}
	u.LastFailedLoginAt = &now
	s.users[userID] = u
	return u.FailedLoginAttempts, nil
}

func (s *MemoryUserStore) LockAccount(_ context.Context, userID string, until time.Time) error {
	return s.mutate(userID, func(u *model.User) {
		u.LockedUntil = &until
	})
}

func (s *MemoryUserStore) RecordLoginSuccess(_ context.Context, userID string, ip string) error {
	now := time.Now().UTC()
	return s.mutate(userID, func(u *model.User) {
		u.FailedLoginAttempts = 0
		u.LastFailedLoginAt = nil
		u.LockedUntil = nil
		u.LastLoginAt = &now
		if ip != "" {
			u.LastLoginIP = &ip
		}
	})
}

func (s *MemoryUserStore) SetOTPNonce(_ context.Context, userID string, nonce string, expires time.Time) error {
	return s.mutate(userID, func(u *model.User) {
		u.OTPNonce = &nonce
		u.OTPNonceExpires = &expires
	})
}

func (s *MemoryUserStore) ClearOTPNonce(_ context.Context, userID string, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok || u.OTPNonce == nil || *u.OTPNonce != nonce {
		return false, nil
	}
	u.OTPNonce = nil
	u.OTPNonceExpires = nil
	s.users[userID] = u
	return true, nil
}

func (s *MemoryUserStore) SetLinkage(_ context.Context, userID string, provider string, externalID string) error {
	return s.mutate(userID, func(u *model.User) {
		setLinkage(u, provider, &externalID)
	})
}

func (s *MemoryUserStore) ClearLinkage(_ context.Context, userID string, provider string) error {
	return s.mutate(userID, func(u *model.User) {
		setLinkage(u, provider, nil)
	})
}

func (s *MemoryUserStore) List(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *MemoryUserStore) mutate(userID string, fn func(*model.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return nil
}

func setLinkage(u *model.User, provider string, id *string) {
	switch provider {
	case model.ProviderGoogle:
		u.OAuthGoogleID = id
	case model.ProviderMicrosoft:
		u.OAuthMicrosoftID = id
	case model.ProviderFacebook:
		u.OAuthFacebookID = id
	}
}

type MemoryRoleStore struct {
	mu    sync.Mutex
	roles map[int]model.Role
}

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{roles: map[int]model.Role{}}
}

func (s *MemoryRoleStore) FindByID(_ context.Context, id int) (model.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[id]
	if !ok {
		return model.Role{}, model.ErrRoleNotFound
	}
	return role, nil
}

func (s *MemoryRoleStore) List(_ context.Context) ([]model.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roles := make([]model.Role, 0, len(s.roles))
	for _, r := range s.roles {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

func (s *MemoryRoleStore) Seed(_ context.Context, roles []model.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range roles {
		s.roles[r.ID] = r
	}
	return nil
}

type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]memoryToken
}

type memoryToken struct {
	userID    string
	expiresAt time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: map[string]memoryToken{}}
}

func (s *MemoryTokenStore) Store(_ context.Context, token string, userID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[token] = memoryToken{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *MemoryTokenStore) Validate(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tokens[token]
	if !ok || entry.expiresAt.Before(time.Now()) {
		return "", model.ErrTokenRevoked
	}
	return entry.userID, nil
}

func (s *MemoryTokenStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, token)
	return nil
}

func (s *MemoryTokenStore) RevokeAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, entry := range s.tokens {
		if entry.userID == userID {
			delete(s.tokens, token)
		}
	}
	return nil
}

type MemoryAuditStore struct {
	mu     sync.Mutex
	events []event.Event
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (s *MemoryAuditStore) Insert(_ context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, e)
	return nil
}

func (s *MemoryAuditStore) List(_ context.Context, limit int) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]event.Event, len(s.events))
	copy(events, s.events)
	sort.Slice(events, func(i, j int) bool { return events[i].OccurredAt.After(events[j].OccurredAt) })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

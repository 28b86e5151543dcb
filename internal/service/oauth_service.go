package service

import (
	"context"
	"errors"

	"finrep-server/internal/event"
	"finrep-server/internal/model"
	"finrep-server/internal/oauth"
)

// OAuthService bridges federated identity providers onto local accounts.
// It never creates accounts: a federated login only succeeds when an
// administrator (or the user) has linked the external identity first.
type OAuthService struct {
	providers map[string]oauth.Provider
	users     UserStore
	auth      *AuthService
	bus       event.Bus
}

func NewOAuthService(providers []oauth.Provider, users UserStore, auth *AuthService, bus event.Bus) *OAuthService {
	byName := make(map[string]oauth.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &OAuthService{providers: byName, users: users, auth: auth, bus: bus}
}

// Provider resolves a provider by name. Unknown names and providers left
// unconfigured both come back as ErrProviderNotConfigured.
func (s *OAuthService) Provider(name string) (oauth.Provider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, model.ErrProviderNotConfigured
	}
	return p, nil
}

func (s *OAuthService) AuthorizationURL(name string, state string) (string, error) {
	p, err := s.Provider(name)
	if err != nil {
		return "", err
	}
	return p.AuthorizationURL(state), nil
}

// Authenticate completes the callback leg: exchanges the authorization
// code, resolves the linked account, and issues a full token pair.
func (s *OAuthService) Authenticate(ctx context.Context, name string, code string, clientIP string) (model.TokenPair, error) {
	p, err := s.Provider(name)
	if err != nil {
		return model.TokenPair{}, err
	}

	profile, err := p.ExchangeCode(ctx, code)
	if err != nil {
		return model.TokenPair{}, err
	}

	user, err := s.users.FindByLinkage(ctx, name, profile.ID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			s.publish(event.TypeLoginFailed, "", clientIP, map[string]string{
				"reason":   "identity not linked",
				"provider": name,
			})
			return model.TokenPair{}, model.ErrNotLinked
		}
		return model.TokenPair{}, err
	}

	if user.Disabled {
		s.publish(event.TypeLoginFailed, user.ID, clientIP, map[string]string{
			"reason":   "account disabled",
			"provider": name,
		})
		return model.TokenPair{}, model.ErrAccountDisabled
	}

	if err := s.users.RecordLoginSuccess(ctx, user.ID, clientIP); err != nil {
		return model.TokenPair{}, err
	}
	s.publish(event.TypeLoginSucceeded, user.ID, clientIP, map[string]string{"provider": name})

	return s.auth.TokensForUser(ctx, user, true)
}

// Link attaches an external identity to an existing account. Linking the
// same identity to the same account again is a no-op; an identity already
// attached elsewhere is a conflict.
func (s *OAuthService) Link(ctx context.Context, name string, userID string, code string) error {
	p, err := s.Provider(name)
	if err != nil {
		return err
	}

	profile, err := p.ExchangeCode(ctx, code)
	if err != nil {
		return err
	}

	existing, err := s.users.FindByLinkage(ctx, name, profile.ID)
	switch {
	case err == nil && existing.ID == userID:
		return nil
	case err == nil:
		return model.ErrLinkageConflict
	case !errors.Is(err, model.ErrUserNotFound):
		return err
	}

	if err := s.users.SetLinkage(ctx, userID, name, profile.ID); err != nil {
		return err
	}

	s.publish(event.TypeOAuthLinked, userID, "", map[string]string{"provider": name})
	return nil
}

// Unlink detaches an external identity. It refuses when the identity is
// the account's only way in.
func (s *OAuthService) Unlink(ctx context.Context, name string, userID string) error {
	if _, err := s.Provider(name); err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.LinkageID(name) == nil {
		return model.ErrNotLinked
	}
	if user.CredentialCount() <= 1 {
		return model.ErrLastCredential
	}

	if err := s.users.ClearLinkage(ctx, userID, name); err != nil {
		return err
	}

	s.publish(event.TypeOAuthUnlinked, userID, "", map[string]string{"provider": name})
	return nil
}

// ConfiguredProviders lists provider names with working configuration,
// for the login page to render buttons from.
func (s *OAuthService) ConfiguredProviders() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	return names
}

func (s *OAuthService) publish(kind event.Type, userID string, clientIP string, details map[string]string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.Event{
		Type:     kind,
		UserID:   userID,
		ClientIP: clientIP,
		Details:  details,
	})
}

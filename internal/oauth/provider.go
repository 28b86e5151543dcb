// Package oauth holds the identity-provider adapters used for federated
// login. Each provider wraps an oauth2.Config for the code exchange and a
// profile endpoint for user info; adding a provider means adding one
// variant, callers only see the Provider interface.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"finrep-server/internal/model"
)

// Profile is the minimal external identity the bridge needs: a stable id
// for linkage plus display fields.
type Profile struct {
	ID    string
	Email string
	Name  string
}

type Provider interface {
	Name() string
	AuthorizationURL(state string) string
	// ExchangeCode trades an authorization code for the external profile.
	// Network failures and non-2xx provider responses surface as
	// model.ErrProviderUnavailable.
	ExchangeCode(ctx context.Context, code string) (Profile, error)
}

// Config is the per-provider client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Tenant       string // Microsoft only
	Timeout      time.Duration
}

type provider struct {
	name        string
	conf        *oauth2.Config
	profileURL  string
	timeout     time.Duration
	mapProfile  func(body []byte) (Profile, error)
	extraParams []oauth2.AuthCodeOption
}

func (p *provider) Name() string { return p.name }

func (p *provider) AuthorizationURL(state string) string {
	return p.conf.AuthCodeURL(state, p.extraParams...)
}

func (p *provider) ExchangeCode(ctx context.Context, code string) (Profile, error) {
	timeout := p.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return Profile{}, providerErr(p.name, "code exchange", err)
	}

	client := p.conf.Client(ctx, tok)
	resp, err := client.Get(p.profileURL)
	if err != nil {
		return Profile{}, providerErr(p.name, "profile fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, providerErr(p.name, "profile fetch",
			fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Profile{}, providerErr(p.name, "profile read", err)
	}

	profile, err := p.mapProfile(body)
	if err != nil {
		return Profile{}, providerErr(p.name, "profile decode", err)
	}
	if profile.ID == "" {
		return Profile{}, providerErr(p.name, "profile decode", errors.New("missing external id"))
	}

	return profile, nil
}

func providerErr(name string, stage string, err error) error {
	return fmt.Errorf("%s %s: %v: %w", name, stage, err, model.ErrProviderUnavailable)
}

// NewGoogle builds the Google variant. Scopes follow the standard OpenID
// profile set; access_type=offline matches the original authorization URL.
func NewGoogle(cfg Config) Provider {
	return &provider{
		name: model.ProviderGoogle,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/auth",
				TokenURL: "https://accounts.google.com/o/oauth2/token",
			},
		},
		profileURL:  "https://www.googleapis.com/oauth2/v1/userinfo",
		timeout:     cfg.Timeout,
		extraParams: []oauth2.AuthCodeOption{oauth2.AccessTypeOffline},
		mapProfile: func(body []byte) (Profile, error) {
			var v struct {
				ID    string `json:"id"`
				Email string `json:"email"`
				Name  string `json:"name"`
			}
			if err := json.Unmarshal(body, &v); err != nil {
				return Profile{}, err
			}
			return Profile{ID: v.ID, Email: v.Email, Name: v.Name}, nil
		},
	}
}

// NewMicrosoft builds the Microsoft variant for the given tenant.
func NewMicrosoft(cfg Config) Provider {
	tenant := cfg.Tenant
	if tenant == "" {
		tenant = "common"
	}
	base := "https://login.microsoftonline.com/" + url.PathEscape(tenant) + "/oauth2/v2.0"

	return &provider{
		name: model.ProviderMicrosoft,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"openid", "profile", "email", "User.Read"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/authorize",
				TokenURL: base + "/token",
			},
		},
		profileURL: "https://graph.microsoft.com/v1.0/me",
		timeout:    cfg.Timeout,
		mapProfile: func(body []byte) (Profile, error) {
			var v struct {
				ID                string `json:"id"`
				Mail              string `json:"mail"`
				UserPrincipalName string `json:"userPrincipalName"`
				DisplayName       string `json:"displayName"`
			}
			if err := json.Unmarshal(body, &v); err != nil {
				return Profile{}, err
			}
			email := v.Mail
			if email == "" {
				email = v.UserPrincipalName
			}
			return Profile{ID: v.ID, Email: email, Name: v.DisplayName}, nil
		},
	}
}

// NewFacebook builds the Facebook variant against the v21.0 Graph API.
func NewFacebook(cfg Config) Provider {
	return &provider{
		name: model.ProviderFacebook,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://www.facebook.com/v21.0/dialog/oauth",
				TokenURL: "https://graph.facebook.com/v21.0/oauth/access_token",
			},
		},
		profileURL: "https://graph.facebook.com/me?fields=id,name,email",
		timeout:    cfg.Timeout,
		mapProfile: func(body []byte) (Profile, error) {
			var v struct {
				ID    string `json:"id"`
				Email string `json:"email"`
				Name  string `json:"name"`
			}
			if err := json.Unmarshal(body, &v); err != nil {
				return Profile{}, err
			}
			return Profile{ID: v.ID, Email: v.Email, Name: v.Name}, nil
		},
	}
}

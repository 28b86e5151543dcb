package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PlaceholderKey is the value shipped in .env.example. Startup refuses to
// run with it so a deployment can never sign tokens with a public secret.
const PlaceholderKey = "UPDATE_THIS_VALUE"

// keyHexLen is the required length of the hex-encoded key material:
// 64 hex characters decode to 32 bytes, enough for HMAC-SHA256 signing
// and exactly the AES-256 key size for payload encryption.
const keyHexLen = 64

type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Tenant       string // Microsoft only
}

// Configured reports whether the provider has everything it needs to run.
// A half-configured provider stays disabled rather than running with
// defaults.
func (c OAuthProviderConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	SigningKey    []byte
	EncryptionKey []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	BcryptCost       int
	LockoutThreshold int
	NotifyThreshold  int
	LockoutWindow    time.Duration
	LockoutDuration  time.Duration
	MFANonceTTL      time.Duration

	ProviderTimeout time.Duration
	OAuthGoogle     OAuthProviderConfig
	OAuthMicrosoft  OAuthProviderConfig
	OAuthFacebook   OAuthProviderConfig

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 15*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 2)),

		AccessTTL:  getDuration("AUTH_ACCESS_TTL", 30*time.Minute),
		RefreshTTL: getDuration("AUTH_REFRESH_TTL", 168*time.Hour),

		BcryptCost:       getInt("AUTH_BCRYPT_COST", 12),
		LockoutThreshold: getInt("AUTH_LOCKOUT_THRESHOLD", 5),
		NotifyThreshold:  getInt("AUTH_NOTIFY_THRESHOLD", 3),
		LockoutWindow:    getDuration("AUTH_LOCKOUT_WINDOW", 15*time.Minute),
		LockoutDuration:  getDuration("AUTH_LOCKOUT_DURATION", 15*time.Minute),
		MFANonceTTL:      getDuration("AUTH_MFA_NONCE_TTL", 5*time.Minute),

		ProviderTimeout: getDuration("OAUTH_PROVIDER_TIMEOUT", 10*time.Second),
		OAuthGoogle: OAuthProviderConfig{
			ClientID:     strings.TrimSpace(os.Getenv("OAUTH_GOOGLE_CLIENT_ID")),
			ClientSecret: strings.TrimSpace(os.Getenv("OAUTH_GOOGLE_CLIENT_SECRET")),
			RedirectURI:  strings.TrimSpace(os.Getenv("OAUTH_GOOGLE_REDIRECT_URI")),
		},
		OAuthMicrosoft: OAuthProviderConfig{
			ClientID:     strings.TrimSpace(os.Getenv("OAUTH_MICROSOFT_CLIENT_ID")),
			ClientSecret: strings.TrimSpace(os.Getenv("OAUTH_MICROSOFT_CLIENT_SECRET")),
			RedirectURI:  strings.TrimSpace(os.Getenv("OAUTH_MICROSOFT_REDIRECT_URI")),
			Tenant:       getEnv("OAUTH_MICROSOFT_TENANT", "common"),
		},
		OAuthFacebook: OAuthProviderConfig{
			ClientID:     strings.TrimSpace(os.Getenv("OAUTH_FACEBOOK_CLIENT_ID")),
			ClientSecret: strings.TrimSpace(os.Getenv("OAUTH_FACEBOOK_CLIENT_SECRET")),
			RedirectURI:  strings.TrimSpace(os.Getenv("OAUTH_FACEBOOK_REDIRECT_URI")),
		},

		CORSOrigins:      splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:     getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM: getInt("AUTH_RATE_LIMIT_RPM", 10),
	}

	signing, err := decodeKey("AUTH_SIGNING_KEY", os.Getenv("AUTH_SIGNING_KEY"))
	if err != nil {
		return nil, err
	}
	encryption, err := decodeKey("AUTH_ENCRYPTION_KEY", os.Getenv("AUTH_ENCRYPTION_KEY"))
	if err != nil {
		return nil, err
	}
	cfg.SigningKey = signing
	cfg.EncryptionKey = encryption

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// decodeKey validates one piece of secret key material: present, not the
// shipped placeholder, exactly keyHexLen hex characters.
func decodeKey(name string, raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	if raw == PlaceholderKey {
		return nil, fmt.Errorf("%s is still set to the placeholder value", name)
	}
	if len(raw) != keyHexLen {
		return nil, fmt.Errorf("%s must be %d hex characters, got %d", name, keyHexLen, len(raw))
	}

	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid hex: %w", name, err)
	}

	return key, nil
}

func (c *Config) Validate() error {
	if len(c.SigningKey) == 0 || len(c.EncryptionKey) == 0 {
		return fmt.Errorf("signing and encryption keys are required")
	}

	if string(c.SigningKey) == string(c.EncryptionKey) {
		return fmt.Errorf("AUTH_SIGNING_KEY and AUTH_ENCRYPTION_KEY must differ")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}

	if c.RefreshTTL <= c.AccessTTL {
		return fmt.Errorf("AUTH_REFRESH_TTL must exceed AUTH_ACCESS_TTL")
	}

	if c.BcryptCost < 10 || c.BcryptCost > 31 {
		return fmt.Errorf("AUTH_BCRYPT_COST must be between 10 and 31")
	}

	if c.LockoutThreshold <= 0 {
		return fmt.Errorf("AUTH_LOCKOUT_THRESHOLD must be positive")
	}

	if c.NotifyThreshold <= 0 || c.NotifyThreshold > c.LockoutThreshold {
		return fmt.Errorf("AUTH_NOTIFY_THRESHOLD must be positive and at most the lockout threshold")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("OAUTH_PROVIDER_TIMEOUT must be positive")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}

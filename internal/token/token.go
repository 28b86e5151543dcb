// Package token issues and verifies the bearer credentials used by the
// API: short-lived access tokens and longer-lived refresh tokens. A token
// is an HS256-signed JWT whose compact form is then sealed with
// AES-256-GCM, so payloads are confidential as well as tamper-evident.
package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"finrep-server/internal/model"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the verified payload of a token.
type Claims struct {
	UserID    string
	TokenID   string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type jwtClaims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

type Issuer struct {
	signingKey []byte
	aead       cipher.AEAD
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewIssuer builds an issuer from the two independent keys. The encryption
// key must be exactly 32 bytes (AES-256); config validation guarantees the
// keys differ before this point.
func NewIssuer(signingKey []byte, encryptionKey []byte, accessTTL time.Duration, refreshTTL time.Duration) (*Issuer, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("signing key is empty")
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init AES-GCM: %w", err)
	}

	return &Issuer{
		signingKey: signingKey,
		aead:       aead,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// TTL returns the configured lifetime for the given token kind.
func (i *Issuer) TTL(kind Kind) time.Duration {
	if kind == KindRefresh {
		return i.refreshTTL
	}
	return i.accessTTL
}

// Issue creates a token for the subject. The jti is random so a revocation
// list can be added later without changing the wire format.
func (i *Issuer) Issue(userID string, kind Kind) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(i.TTL(kind))

	claims := jwtClaims{
		Kind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	sealed, err := i.seal([]byte(signed))
	if err != nil {
		return "", time.Time{}, err
	}

	return sealed, expiresAt, nil
}

// Verify decrypts and validates a token, enforcing the expected kind.
// Every failure is mapped to one of the model token errors; anything that
// cannot be decrypted or parsed fails closed as malformed.
func (i *Issuer) Verify(raw string, expected Kind) (*Claims, error) {
	signed, err := i.open(raw)
	if err != nil {
		return nil, model.ErrTokenMalformed
	}

	parsed, err := jwt.ParseWithClaims(string(signed), &jwtClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.ErrTokenExpired
		}
		return nil, model.ErrTokenMalformed
	}

	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, model.ErrTokenMalformed
	}

	if Kind(claims.Kind) != expected {
		return nil, model.ErrTokenWrongKind
	}

	return &Claims{
		UserID:    claims.Subject,
		TokenID:   claims.ID,
		Kind:      Kind(claims.Kind),
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (i *Issuer) seal(plaintext []byte) (string, error) {
	nonce := make([]byte, i.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := i.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (i *Issuer) open(raw string) ([]byte, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}

	if len(sealed) < i.aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}

	nonce, ciphertext := sealed[:i.aead.NonceSize()], sealed[i.aead.NonceSize():]
	return i.aead.Open(nil, nonce, ciphertext, nil)
}

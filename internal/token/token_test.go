package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrep-server/internal/model"
)

var (
	testSigningKey    = []byte("0123456789abcdef0123456789abcdef")
	testEncryptionKey = []byte("fedcba9876543210fedcba9876543210")
)

func newTestIssuer(t *testing.T, accessTTL time.Duration, refreshTTL time.Duration) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(testSigningKey, testEncryptionKey, accessTTL, refreshTTL)
	require.NoError(t, err)
	return issuer
}

func TestNewIssuer_RejectsBadKeys(t *testing.T) {
	_, err := NewIssuer(nil, testEncryptionKey, time.Minute, time.Hour)
	assert.Error(t, err)

	// AES-256 requires a 32-byte key.
	_, err = NewIssuer(testSigningKey, []byte("short"), time.Minute, time.Hour)
	assert.Error(t, err)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, 15*time.Minute, 24*time.Hour)

	for _, kind := range []Kind{KindAccess, KindRefresh} {
		raw, expiresAt, err := issuer.Issue("user-1", kind)
		require.NoError(t, err)
		require.NotEmpty(t, raw)
		assert.WithinDuration(t, time.Now().Add(issuer.TTL(kind)), expiresAt, 5*time.Second)

		claims, err := issuer.Verify(raw, kind)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, kind, claims.Kind)
		assert.NotEmpty(t, claims.TokenID)
	}
}

func TestVerify_UniqueTokenIDs(t *testing.T) {
	issuer := newTestIssuer(t, 15*time.Minute, 24*time.Hour)

	first, _, err := issuer.Issue("user-1", KindAccess)
	require.NoError(t, err)
	second, _, err := issuer.Issue("user-1", KindAccess)
	require.NoError(t, err)

	firstClaims, err := issuer.Verify(first, KindAccess)
	require.NoError(t, err)
	secondClaims, err := issuer.Verify(second, KindAccess)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.TokenID, secondClaims.TokenID)
}

func TestVerify_Expired(t *testing.T) {
	issuer := newTestIssuer(t, -time.Minute, 24*time.Hour)

	raw, _, err := issuer.Issue("user-1", KindAccess)
	require.NoError(t, err)

	_, err = issuer.Verify(raw, KindAccess)
	assert.ErrorIs(t, err, model.ErrTokenExpired)
}

func TestVerify_WrongKind(t *testing.T) {
	issuer := newTestIssuer(t, 15*time.Minute, 24*time.Hour)

	refresh, _, err := issuer.Issue("user-1", KindRefresh)
	require.NoError(t, err)
	_, err = issuer.Verify(refresh, KindAccess)
	assert.ErrorIs(t, err, model.ErrTokenWrongKind)

	access, _, err := issuer.Issue("user-1", KindAccess)
	require.NoError(t, err)
	_, err = issuer.Verify(access, KindRefresh)
	assert.ErrorIs(t, err, model.ErrTokenWrongKind)
}

func TestVerify_Malformed(t *testing.T) {
	issuer := newTestIssuer(t, 15*time.Minute, 24*time.Hour)

	for _, raw := range []string{
		"",
		"not-base64!!!",
		base64.RawURLEncoding.EncodeToString([]byte("short")),
		base64.RawURLEncoding.EncodeToString(make([]byte, 64)),
	} {
		_, err := issuer.Verify(raw, KindAccess)
		assert.ErrorIs(t, err, model.ErrTokenMalformed, "input %q", raw)
	}
}

func TestVerify_TamperedCiphertext(t *testing.T) {
	issuer := newTestIssuer(t, 15*time.Minute, 24*time.Hour)

	raw, _, err := issuer.Issue("user-1", KindAccess)
	require.NoError(t, err)

	sealed, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0x01
	tampered := base64.RawURLEncoding.EncodeToString(sealed)

	_, err = issuer.Verify(tampered, KindAccess)
	assert.ErrorIs(t, err, model.ErrTokenMalformed)
}

func TestVerify_DifferentKeysRejected(t *testing.T) {
	issuer := newTestIssuer(t, 15*time.Minute, 24*time.Hour)

	other, err := NewIssuer([]byte("another-signing-key-entirely!!!!"), []byte("another-encryption-key-32-bytes!"), 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	raw, _, err := issuer.Issue("user-1", KindAccess)
	require.NoError(t, err)

	// A verifier with different key material cannot even decrypt it.
	_, err = other.Verify(raw, KindAccess)
	assert.ErrorIs(t, err, model.ErrTokenMalformed)
}

package mfa

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rfcSecret is the RFC 6238 test secret "12345678901234567890" in base32.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestGenerateCode_RFCVectors(t *testing.T) {
	// Appendix B of RFC 6238, truncated to 6 digits.
	tests := []struct {
		unix int64
		want string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
	}

	for _, tc := range tests {
		code, err := GenerateCode(rfcSecret, time.Unix(tc.unix, 0).UTC())
		require.NoError(t, err)
		assert.Equal(t, tc.want, code, "t=%d", tc.unix)
	}
}

func TestValidate_AcceptsSkew(t *testing.T) {
	now := time.Unix(1111111109, 0).UTC()

	current, err := GenerateCode(rfcSecret, now)
	require.NoError(t, err)
	previous, err := GenerateCode(rfcSecret, now.Add(-30*time.Second))
	require.NoError(t, err)
	next, err := GenerateCode(rfcSecret, now.Add(30*time.Second))
	require.NoError(t, err)

	assert.True(t, Validate(rfcSecret, current, now))
	assert.True(t, Validate(rfcSecret, previous, now))
	assert.True(t, Validate(rfcSecret, next, now))
}

func TestValidate_RejectsStaleAndBadCodes(t *testing.T) {
	now := time.Unix(1111111109, 0).UTC()

	stale, err := GenerateCode(rfcSecret, now.Add(-5*time.Minute))
	require.NoError(t, err)

	assert.False(t, Validate(rfcSecret, stale, now))
	assert.False(t, Validate(rfcSecret, "000000", now))
	assert.False(t, Validate(rfcSecret, "12345", now))
	assert.False(t, Validate(rfcSecret, "", now))
}

func TestValidate_BadSecret(t *testing.T) {
	assert.False(t, Validate("not-base32!!", "123456", time.Now()))
	assert.False(t, Validate("", "123456", time.Now()))
}

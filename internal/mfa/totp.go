// Package mfa implements RFC 6238 time-based one-time passwords for the
// login OTP challenge. Codes are 6 digits over a 30 second step, and
// verification accepts one step of clock skew in either direction.
package mfa

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

const (
	digits   = 6
	stepSecs = 30
	skew     = 1
)

// GenerateCode computes the TOTP code for the base32-encoded secret at the
// given time.
func GenerateCode(secret string, at time.Time) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}

	counter := uint64(at.Unix() / stepSecs)
	return hotp(key, counter), nil
}

// Validate checks a submitted code against the secret, allowing one time
// step of skew. Comparison is constant-time.
func Validate(secret string, code string, at time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != digits {
		return false
	}

	key, err := decodeSecret(secret)
	if err != nil {
		return false
	}

	counter := at.Unix() / stepSecs
	for offset := int64(-skew); offset <= skew; offset++ {
		expected := hotp(key, uint64(counter+offset))
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return true
		}
	}

	return false
}

func decodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.TrimRight(normalized, "="))
	if err != nil {
		return nil, fmt.Errorf("decode otp secret: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("otp secret is empty")
	}
	return key, nil
}

// hotp is RFC 4226 dynamic truncation over HMAC-SHA1.
func hotp(key []byte, counter uint64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%06d", value%1000000)
}

package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIssueDecodeRoundTrip(t *testing.T) {
	c := NewCodec("test-secret", 60*time.Second)
	now := time.Date(2025, 3, 10, 7, 30, 0, 0, time.UTC)

	raw, err := c.Issue("student-1", now)
	assert.NoError(t, err)
	assert.NotEmpty(t, raw)

	p, err := c.Decode(raw, now.Add(10*time.Second))
	assert.NoError(t, err)
	assert.Equal(t, "student-1", p.StudentID)
	assert.Equal(t, now.UnixMilli(), p.IssuedAt)
}

func TestFreshnessBoundary(t *testing.T) {
	c := NewCodec("test-secret", 60*time.Second)
	now := time.Date(2025, 3, 10, 7, 30, 0, 0, time.UTC)
	raw, err := c.Issue("student-1", now)
	assert.NoError(t, err)

	_, err = c.Decode(raw, now.Add(59*time.Second))
	assert.NoError(t, err)

	// Age equal to the window is still inside it.
	_, err = c.Decode(raw, now.Add(60*time.Second))
	assert.NoError(t, err)

	p, err := c.Decode(raw, now.Add(61*time.Second))
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, "student-1", p.StudentID)
}

func TestExpiredIsNotMalformed(t *testing.T) {
	c := NewCodec("test-secret", 60*time.Second)
	now := time.Now()
	raw, _ := c.Issue("student-1", now)

	_, err := c.Decode(raw, now.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrExpired)
	assert.NotErrorIs(t, err, ErrMalformed)
}

func TestTamperedTokenRejected(t *testing.T) {
	c := NewCodec("test-secret", 60*time.Second)
	now := time.Now()
	raw, err := c.Issue("student-1", now)
	assert.NoError(t, err)

	sealed, err := base64.RawURLEncoding.DecodeString(raw)
	assert.NoError(t, err)

	for i := range sealed {
		flipped := make([]byte, len(sealed))
		copy(flipped, sealed)
		flipped[i] ^= 0x01
		_, err := c.Decode(base64.RawURLEncoding.EncodeToString(flipped), now)
		assert.ErrorIs(t, err, ErrMalformed, "byte %d", i)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	issuer := NewCodec("secret-a", 60*time.Second)
	verifier := NewCodec("secret-b", 60*time.Second)
	now := time.Now()

	raw, _ := issuer.Issue("student-1", now)
	_, err := verifier.Decode(raw, now)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestGarbageInput(t *testing.T) {
	c := NewCodec("test-secret", 60*time.Second)
	for _, raw := range []string{"", "not base64 !!!", "aGVsbG8", base64.RawURLEncoding.EncodeToString([]byte("short"))} {
		_, err := c.Decode(raw, time.Now())
		assert.ErrorIs(t, err, ErrMalformed, "input %q", raw)
	}
}

func TestDefaultWindow(t *testing.T) {
	c := NewCodec("test-secret", 0)
	assert.Equal(t, 60*time.Second, c.Window())
}

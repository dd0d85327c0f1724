package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"time"
)

var (
	// ErrMalformed means the token could not be decrypted or parsed. The
	// ciphertext is authenticated, so any tampering lands here as well.
	ErrMalformed = errors.New("token malformed")
	// ErrExpired means the token decrypted fine but its issue timestamp is
	// older than the freshness window.
	ErrExpired = errors.New("token expired")
)

// Payload is what a proof-of-presence token carries. Tokens are ephemeral
// and never persisted.
type Payload struct {
	StudentID string `json:"sid"`
	IssuedAt  int64  `json:"ts"` // unix milliseconds
}

// Codec issues and verifies short-lived QR tokens. The secret and freshness
// window are injected so both are swappable in tests.
type Codec struct {
	key    [32]byte
	window time.Duration
}

// NewCodec derives a 256-bit AES key from the secret. The window bounds how
// long an issued token stays scannable.
func NewCodec(secret string, window time.Duration) *Codec {
	if window <= 0 {
		window = 60 * time.Second
	}
	return &Codec{key: sha256.Sum256([]byte(secret)), window: window}
}

// Window returns the configured freshness window.
func (c *Codec) Window() time.Duration { return c.window }

// Issue encrypts {studentID, now} into an opaque base64 token. Pure apart
// from the random nonce; no server-side state is kept.
func (c *Codec) Issue(studentID string, now time.Time) (string, error) {
	plain, err := json.Marshal(Payload{StudentID: studentID, IssuedAt: now.UnixMilli()})
	if err != nil {
		return "", err
	}
	gcm, err := c.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, plain, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode decrypts a token and checks freshness against now. Decryption or
// parse failures return ErrMalformed; a stale-but-genuine token returns
// ErrExpired together with the decoded payload. now is the server receive
// time; client clocks are never trusted here.
func (c *Codec) Decode(raw string, now time.Time) (Payload, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return Payload{}, ErrMalformed
	}
	gcm, err := c.aead()
	if err != nil {
		return Payload{}, err
	}
	if len(sealed) < gcm.NonceSize() {
		return Payload{}, ErrMalformed
	}
	plain, err := gcm.Open(nil, sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():], nil)
	if err != nil {
		return Payload{}, ErrMalformed
	}
	var p Payload
	if err := json.Unmarshal(plain, &p); err != nil || p.StudentID == "" {
		return Payload{}, ErrMalformed
	}
	if now.Sub(time.UnixMilli(p.IssuedAt)) > c.window {
		return p, ErrExpired
	}
	return p, nil
}

func (c *Codec) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

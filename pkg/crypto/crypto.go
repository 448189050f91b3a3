// Package crypto holds the two primitives the forum keys off the server
// secret: randomized encryption for stored text and deterministic encryption
// for pseudonymous lookup keys.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// DecryptionFailed is returned by Decrypt instead of an error.
const DecryptionFailed = "[Decryption failed]"

var ErrEmptySecret = errors.New("encryption secret is empty")

type Cipher struct {
	content cipher.AEAD
	det     cipher.AEAD
	macKey  []byte
}

// New derives one sub-key per primitive from secret.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	contentKey, err := deriveKey(secret, "forum/content")
	if err != nil {
		return nil, err
	}
	detKey, err := deriveKey(secret, "forum/deterministic")
	if err != nil {
		return nil, err
	}
	macKey, err := deriveKey(secret, "forum/deterministic-nonce")
	if err != nil {
		return nil, err
	}

	content, err := chacha20poly1305.NewX(contentKey)
	if err != nil {
		return nil, fmt.Errorf("init content cipher: %w", err)
	}
	block, err := aes.NewCipher(detKey)
	if err != nil {
		return nil, fmt.Errorf("init deterministic cipher: %w", err)
	}
	det, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init deterministic cipher: %w", err)
	}

	return &Cipher{content: content, det: det, macKey: macKey}, nil
}

func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", info, err)
	}
	return key, nil
}

// Encrypt returns base64(nonce|ciphertext) under a fresh random nonce.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.content.NonceSize(), c.content.NonceSize()+len(plaintext)+c.content.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := c.content.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt never fails: corrupt input or a wrong key yields DecryptionFailed.
func (c *Cipher) Decrypt(encoded string) string {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) < c.content.NonceSize()+c.content.Overhead() {
		return DecryptionFailed
	}
	n := c.content.NonceSize()
	plain, err := c.content.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return DecryptionFailed
	}
	return string(plain)
}

func (c *Cipher) sealDeterministic(plaintext string) []byte {
	mac := hmac.New(sha256.New, c.macKey)
	mac.Write([]byte(plaintext))
	nonce := mac.Sum(nil)[:c.det.NonceSize()]
	return c.det.Seal(nonce, nonce, []byte(plaintext), nil)
}

// DeterministicEncrypt yields the same output for the same input. Use it for
// lookup keys only, never to protect displayed content.
func (c *Cipher) DeterministicEncrypt(plaintext string) string {
	return base64.StdEncoding.EncodeToString(c.sealDeterministic(plaintext))
}

// DeriveUserID maps an email to a stable id that is safe as a store path
// segment. Case and surrounding whitespace of the email are ignored.
func (c *Cipher) DeriveUserID(email string) string {
	return base64.RawURLEncoding.EncodeToString(c.sealDeterministic(NormalizeEmail(email)))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Package sealer encrypts small secrets with a key derived from the master
// password.
package sealer

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize длина соли в байтах
	SaltSize = 16
	// Iterations число итераций PBKDF2
	Iterations = 210000
)

var (
	// ErrCiphertextTooShort is returned for sealed text shorter than a nonce
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	// ErrInvalidKey is returned for keys of the wrong length
	ErrInvalidKey = errors.New("invalid key length")
)

// NewSalt returns a random salt encoded as base64
func NewSalt() (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}

// DeriveKey derives the sealing key from password and a salt made by NewSalt
func DeriveKey(password, salt string) ([]byte, error) {
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return nil, err
	}
	return pbkdf2.Key([]byte(password), rawSalt, Iterations, chacha20poly1305.KeySize, sha256.New), nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext)
func Seal(plaintext, key []byte) (string, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts text produced by Seal
func Open(sealed string, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, err
	}

	nonceSize := aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return aead.Open(nil, nonce, ciphertext, nil)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	return chacha20poly1305.New(key)
}

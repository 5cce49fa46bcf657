package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
)

// SecretBox seals credential material with AES-GCM. The key lives in a
// 0600 file inside the workspace; losing it only costs a re-entry of the
// API credentials.
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox loads the workspace key, generating one on first use.
func NewSecretBox(workDir string) (*SecretBox, error) {
	keyPath := filepath.Join(workDir, "secret.key")

	key, err := os.ReadFile(keyPath)
	if os.IsNotExist(err) {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate key: %w", err)
		}
		if err := os.WriteFile(keyPath, key, 0600); err != nil {
			return nil, fmt.Errorf("failed to persist key: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("corrupt key file %s: %d bytes", keyPath, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &SecretBox{aead: aead}, nil
}

// Seal encrypts plain, prefixing the random nonce.
func (b *SecretBox) Seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return b.aead.Seal(nonce, nonce, plain, nil), nil
}

// Open decrypts a sealed value.
func (b *SecretBox) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < b.aead.NonceSize() {
		return nil, fmt.Errorf("sealed value too short")
	}
	nonce, ciphertext := sealed[:b.aead.NonceSize()], sealed[b.aead.NonceSize():]
	return b.aead.Open(nil, nonce, ciphertext, nil)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// TOKEN VAULT
// =============================================================================

const (
	vaultFileName = "tokens.json"
	keyFileName   = "vault.key"

	// pbkdf2Iterations for key derivation from the machine key file.
	pbkdf2Iterations = 100_000
	keyLen           = 32
	saltLen          = 16
)

// TokenVault stores per-endpoint API tokens encrypted at rest (PBKDF2-derived
// key, AES-GCM). Tokens never appear in the settings file or in logs.
type TokenVault struct {
	mu   sync.RWMutex
	dir  string
	gcm  cipher.AEAD
	salt []byte
	data map[string]string // endpoint ID -> base64(nonce||ciphertext)
}

// vaultFile is the on-disk shape.
type vaultFile struct {
	Salt   string            `json:"salt"`
	Tokens map[string]string `json:"tokens"`
}

// OpenTokenVault loads (or initializes) the vault in dir. The key material
// lives in a separate 0600 key file; losing it makes stored tokens
// unrecoverable, which is the intended failure mode.
func OpenTokenVault(dir string) (*TokenVault, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	secret, err := loadOrCreateKeyFile(filepath.Join(dir, keyFileName))
	if err != nil {
		return nil, err
	}

	v := &TokenVault{dir: dir, data: make(map[string]string)}

	salt := make([]byte, saltLen)
	raw, err := os.ReadFile(v.path())
	switch {
	case err == nil:
		var vf vaultFile
		if err := json.Unmarshal(raw, &vf); err != nil {
			return nil, fmt.Errorf("failed to parse token vault: %w", err)
		}
		salt, err = base64.StdEncoding.DecodeString(vf.Salt)
		if err != nil {
			return nil, fmt.Errorf("failed to decode vault salt: %w", err)
		}
		if vf.Tokens != nil {
			v.data = vf.Tokens
		}
	case os.IsNotExist(err):
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read token vault: %w", err)
	}

	key := pbkdf2.Key(secret, salt, pbkdf2Iterations, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	v.gcm, err = cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	v.salt = salt
	return v, nil
}

func (v *TokenVault) path() string {
	return filepath.Join(v.dir, vaultFileName)
}

// GetToken returns the decrypted token for an endpoint, or false when none
// is stored (or the ciphertext fails to authenticate).
func (v *TokenVault) GetToken(endpointID string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	enc, ok := v.data[endpointID]
	if !ok {
		return "", false
	}
	blob, err := base64.StdEncoding.DecodeString(enc)
	if err != nil || len(blob) < v.gcm.NonceSize() {
		return "", false
	}
	nonce, ciphertext := blob[:v.gcm.NonceSize()], blob[v.gcm.NonceSize():]
	plain, err := v.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", false
	}
	return string(plain), true
}

// SetToken encrypts and stores a token for an endpoint, persisting the vault.
// An empty token removes the entry.
func (v *TokenVault) SetToken(endpointID, token string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if token == "" {
		delete(v.data, endpointID)
		return v.saveLocked()
	}

	nonce := make([]byte, v.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := v.gcm.Seal(nonce, nonce, []byte(token), nil)
	v.data[endpointID] = base64.StdEncoding.EncodeToString(sealed)
	return v.saveLocked()
}

// DeleteToken removes a stored token. No-op when absent.
func (v *TokenVault) DeleteToken(endpointID string) error {
	return v.SetToken(endpointID, "")
}

// saveLocked writes the vault file atomically. Caller must hold the lock.
func (v *TokenVault) saveLocked() error {
	vf := vaultFile{
		Salt:   base64.StdEncoding.EncodeToString(v.salt),
		Tokens: v.data,
	}
	raw, err := json.MarshalIndent(vf, "", "  ")
	if err != nil {
		return err
	}
	tmp := v.path() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write token vault: %w", err)
	}
	return os.Rename(tmp, v.path())
}

// loadOrCreateKeyFile reads the machine key file, generating it on first use.
func loadOrCreateKeyFile(path string) ([]byte, error) {
	secret, err := os.ReadFile(path)
	if err == nil && len(secret) >= keyLen {
		return secret, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	secret = make([]byte, keyLen)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := os.WriteFile(path, secret, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	return secret, nil
}

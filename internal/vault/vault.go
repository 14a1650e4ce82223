// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package vault implements the machine-bound token vault (spec §4.1): a
// single remote credential is sealed with AES-256-GCM under a key derived
// from stable host-identifying material, so the ciphertext is inert if the
// data directory is copied to another machine.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"os/user"

	"photolens/internal/apperr"
)

// appTag salts the key derivation so the vault key is specific to this
// application even on a shared machine.
const appTag = "photolens-token-vault-v1"

// Vault seals and opens a single credential using a key derived from the
// current OS user and hostname.
type Vault struct {
	key [32]byte
}

// New derives the vault key from the current OS user name and hostname.
func New() (*Vault, error) {
	key, err := deriveKey()
	if err != nil {
		return nil, err
	}
	return &Vault{key: key}, nil
}

func deriveKey() ([32]byte, error) {
	var key [32]byte
	u, err := user.Current()
	if err != nil {
		return key, fmt.Errorf("vault: resolve current user: %w", err)
	}
	host, err := os.Hostname()
	if err != nil {
		return key, fmt.Errorf("vault: resolve hostname: %w", err)
	}
	key = sha256.Sum256([]byte(u.Username + "\x00" + host + "\x00" + appTag))
	return key, nil
}

// Encrypt seals plaintext with AES-256-GCM under a fresh random 96-bit
// nonce, returning base64(nonce ‖ ciphertext ‖ tag).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return "", fmt.Errorf("vault: build cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("vault: build GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault: generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an opaque string produced by Encrypt. It fails closed with
// a distinguishable apperr.KindDecryptFailed error whenever the
// authentication tag doesn't verify — in particular when the ciphertext was
// sealed under a different host's key.
func (v *Vault) Decrypt(opaque string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(opaque)
	if err != nil {
		return "", apperr.Wrap(apperr.KindDecryptFailed, "credential sealed on a different host", err)
	}
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return "", fmt.Errorf("vault: build cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("vault: build GCM: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return "", apperr.New(apperr.KindDecryptFailed, "credential sealed on a different host")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.KindDecryptFailed, "credential sealed on a different host", err)
	}
	return string(plaintext), nil
}

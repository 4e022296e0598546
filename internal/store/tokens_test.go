// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenVaultRoundTrip(t *testing.T) {
	dir := t.TempDir()
	v, err := OpenTokenVault(dir)
	require.NoError(t, err)

	require.NoError(t, v.SetToken("ep-1", "sk-secret-123"))

	got, ok := v.GetToken("ep-1")
	require.True(t, ok)
	assert.Equal(t, "sk-secret-123", got)

	// Survives reopening with the same key file.
	v2, err := OpenTokenVault(dir)
	require.NoError(t, err)
	got, ok = v2.GetToken("ep-1")
	require.True(t, ok)
	assert.Equal(t, "sk-secret-123", got)
}

func TestTokenVaultMissingToken(t *testing.T) {
	v, err := OpenTokenVault(t.TempDir())
	require.NoError(t, err)

	_, ok := v.GetToken("nope")
	assert.False(t, ok)
}

func TestTokenVaultDelete(t *testing.T) {
	v, err := OpenTokenVault(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, v.SetToken("ep-1", "tok"))
	require.NoError(t, v.DeleteToken("ep-1"))

	_, ok := v.GetToken("ep-1")
	assert.False(t, ok)
}

func TestTokenVaultCiphertextOnDisk(t *testing.T) {
	dir := t.TempDir()
	v, err := OpenTokenVault(dir)
	require.NoError(t, err)
	require.NoError(t, v.SetToken("ep-1", "sk-plaintext-should-not-appear"))

	raw, err := os.ReadFile(filepath.Join(dir, vaultFileName))
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "sk-plaintext-should-not-appear"))
}

func TestTokenVaultWrongKeyFailsClosed(t *testing.T) {
	dir := t.TempDir()
	v, err := OpenTokenVault(dir)
	require.NoError(t, err)
	require.NoError(t, v.SetToken("ep-1", "tok"))

	// Replace the key file: stored tokens must become unreadable, not
	// garbage.
	require.NoError(t, os.WriteFile(filepath.Join(dir, keyFileName), make([]byte, keyLen), 0o600))
	v2, err := OpenTokenVault(dir)
	require.NoError(t, err)

	_, ok := v2.GetToken("ep-1")
	assert.False(t, ok)
}

package appkey

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate_EnvironmentWins(t *testing.T) {
	key := strings.Repeat("a", 32)
	t.Setenv("N8N_ENCRYPTION_KEY", key)
	m := NewManager(t.TempDir(), zerolog.Nop())

	info := m.Locate()
	require.NotNil(t, info)
	assert.Equal(t, SourceEnvironment, info.Source)
	assert.Equal(t, key, info.Key)
	assert.True(t, info.Valid)
	assert.Equal(t, "aaaaaaaa...aaaaaaaa", info.Masked)
}

func TestLocate_LocalFile(t *testing.T) {
	t.Setenv("N8N_ENCRYPTION_KEY", "")
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	key := strings.Repeat("b", 32)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".n8n_encryption_key"), []byte(key+"\n"), 0o600))
	m := NewManager(dir, zerolog.Nop())

	info := m.Locate()
	require.NotNil(t, info)
	assert.Equal(t, SourceLocalFile, info.Source)
	assert.Equal(t, key, info.Key)
}

func TestLocate_UserConfigFile(t *testing.T) {
	t.Setenv("N8N_ENCRYPTION_KEY", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".n8n"), 0o700))
	key := strings.Repeat("c", 32)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".n8n", "config"),
		[]byte(`{"encryptionKey":"`+key+`"}`), 0o600))
	m := NewManager(t.TempDir(), zerolog.Nop())

	info := m.Locate()
	require.NotNil(t, info)
	assert.Equal(t, SourceConfigFile, info.Source)
	assert.Equal(t, key, info.Key)
}

func TestLocate_NothingFound(t *testing.T) {
	t.Setenv("N8N_ENCRYPTION_KEY", "")
	t.Setenv("HOME", t.TempDir())
	m := NewManager(t.TempDir(), zerolog.Nop())

	assert.Nil(t, m.Locate())
}

func TestGenerate_ValidHexKey(t *testing.T) {
	m := NewManager(t.TempDir(), zerolog.Nop())

	key, err := m.Generate()
	require.NoError(t, err)
	assert.Len(t, key, 32)
	_, err = hex.DecodeString(key)
	assert.NoError(t, err)

	other, err := m.Generate()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestSave_PersistsWithTightPermissions(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, zerolog.Nop())
	key := strings.Repeat("d", 32)

	p, err := m.Save(key)
	require.NoError(t, err)
	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, key, string(data))
}

func TestSave_RejectsBadLength(t *testing.T) {
	m := NewManager(t.TempDir(), zerolog.Nop())

	_, err := m.Save("short")
	assert.ErrorContains(t, err, "invalid key length")
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****", Mask("abcd"))
	assert.Equal(t, strings.Repeat("*", 16), Mask(strings.Repeat("x", 16)))
	assert.Equal(t, "12345678...87654321", Mask("12345678abc87654321"))
}

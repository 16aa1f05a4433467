package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCache_SetGet(t *testing.T) {
	fc := NewFileCache[[]byte](filepath.Join(t.TempDir(), "tiles"), 0)
	key := fc.GenerateKey("google_satellite", 12, 2150, 1390)

	_, ok := fc.Get(key)
	assert.False(t, ok)

	require.NoError(t, fc.Set(key, []byte{0x89, 'P', 'N', 'G'}))
	got, ok := fc.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, got)
}

func TestFileCache_GenerateKeyIsStable(t *testing.T) {
	fc := NewFileCache[string](t.TempDir(), 0)
	assert.Equal(t, fc.GenerateKey("a", 1), fc.GenerateKey("a", 1))
	assert.NotEqual(t, fc.GenerateKey("a", 1), fc.GenerateKey("a", 2))
}

func TestFileCache_Expires(t *testing.T) {
	fc := NewFileCache[string](t.TempDir(), time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fc.now = func() time.Time { return now }

	require.NoError(t, fc.Set("k", "v"))
	_, ok := fc.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = fc.Get("k")
	assert.False(t, ok)
}

func TestFileCache_TamperedEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	fc := NewFileCache[string](dir, 0)
	require.NoError(t, fc.Set("k", "v"))

	path := filepath.Join(dir, "k.json")
	require.FileExists(t, path)
	require.NoError(t, os.WriteFile(path, []byte(`{"data":"w","created_at":"2024-01-01T00:00:00Z","checksum":"x"}`), 0644))

	_, ok := fc.Get("k")
	assert.False(t, ok)
}

package uploads

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(dir, zap.NewNop())
	require.NoError(t, err)
	return store, dir
}

func TestSaveGeneratesUniqueKeys(t *testing.T) {
	store, dir := newTestStore(t)

	// Two clients uploading the same filename must never share a path.
	key1, err := store.Save("retina.png", []byte("first"))
	require.NoError(t, err)
	key2, err := store.Save("retina.png", []byte("second"))
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)

	data1, err := os.ReadFile(filepath.Join(dir, key1))
	require.NoError(t, err)
	data2, err := os.ReadFile(filepath.Join(dir, key2))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data1))
	assert.Equal(t, "second", string(data2))
}

func TestSaveKeepsSanitizedExtension(t *testing.T) {
	store, _ := newTestStore(t)

	key, err := store.Save("My Fundus Photo.JPG", []byte("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.NotContains(t, key, " ")
}

func TestSaveDropsHostileFilename(t *testing.T) {
	store, dir := newTestStore(t)

	key, err := store.Save("../../etc/passwd", []byte("x"))
	require.NoError(t, err)

	assert.NotContains(t, key, "/")
	assert.NotContains(t, key, "..")
	// The file lands inside the upload dir regardless of the client name.
	assert.Equal(t, dir, filepath.Dir(store.Path(key)))
}

func TestPathConfinedToDir(t *testing.T) {
	store, dir := newTestStore(t)
	assert.Equal(t, filepath.Join(dir, "passwd"), store.Path("../../passwd"))
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	_, err := NewStore(dir, zap.NewNop())
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

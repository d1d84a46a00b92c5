package media

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	store, err := NewLocalStorage(t.TempDir(), 3200)
	require.NoError(t, err)
	return store
}

func assetExists(t *testing.T, store *LocalStorage, rel string) bool {
	t.Helper()
	_, err := store.ReadFile(rel)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	require.NoError(t, err)
	return true
}

func TestDerivativePath(t *testing.T) {
	store := newTestStorage(t)

	p, err := store.DerivativePath(666, mustRatio(t, "1x1"), 300, "jpg")
	require.NoError(t, err)
	assert.Equal(t, "666/1x1/300.jpg", p)

	p, err = store.DerivativePath(666666, mustRatio(t, "16x9"), 3200, "png")
	require.NoError(t, err)
	assert.Equal(t, "6666/66/16x9/3200.png", p)

	p, err = store.DerivativePath(42, mustRatio(t, OriginalToken), 600, "jpg")
	require.NoError(t, err)
	assert.Equal(t, "42/original/600.jpg", p)
}

func TestDerivativePathRejectsOversize(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.DerivativePath(666, mustRatio(t, "1x1"), 3201, "jpg")
	require.ErrorIs(t, err, ErrOversizeRequest)

	_, err = store.DerivativePath(666, mustRatio(t, "1x1"), 0, "jpg")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrOversizeRequest)
}

func TestAssetPath(t *testing.T) {
	store := newTestStorage(t)

	assert.Equal(t, "6666/66/src/photo.jpg", store.AssetPath(666666, AssetTypeSource, "photo.jpg"))
	assert.Equal(t, "666/src/passwd", store.AssetPath(666, AssetTypeSource, "../../etc/passwd"))
	assert.Equal(t, "666/src/source", store.AssetPath(666, AssetTypeSource, ""))
	assert.Equal(t, "666/optimized.png", store.AssetPath(666, AssetTypeOptimized, "optimized.png"))
	assert.Equal(t, "666/animated/original.gif", store.AssetPath(666, AssetTypeAnimated, AnimatedGIFName))
}

func TestSaveAndRead(t *testing.T) {
	store := newTestStorage(t)

	rel, err := store.Save("666/1x1/300.jpg", strings.NewReader("first"))
	require.NoError(t, err)
	assert.Equal(t, "666/1x1/300.jpg", rel)

	_, err = store.Save("666/1x1/300.jpg", strings.NewReader("second"))
	require.NoError(t, err)

	data, err := store.ReadFile(rel)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	assert.True(t, assetExists(t, store, rel))

	// no temp files are left next to the target
	entries, err := os.ReadDir(filepath.Join(store.BasePath(), "666", "1x1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, store.Delete(rel))
	assert.False(t, assetExists(t, store, rel))

	// deleting twice is fine
	require.NoError(t, store.Delete(rel))
}

func TestGetFullPathRejectsTraversal(t *testing.T) {
	store := newTestStorage(t)

	for _, p := range []string{"../outside.jpg", "666/../../outside.jpg", "", "."} {
		_, err := store.GetFullPath(p)
		assert.Error(t, err, p)
	}

	_, err := store.Save("../escape.txt", strings.NewReader("x"))
	assert.Error(t, err)
}

func seedFiles(t *testing.T, store *LocalStorage, paths ...string) {
	t.Helper()
	for _, p := range paths {
		_, err := store.Save(p, strings.NewReader(p))
		require.NoError(t, err)
	}
}

func TestClearCrops(t *testing.T) {
	store := newTestStorage(t)
	seedFiles(t, store,
		"1234/1x1/100.jpg",
		"1234/1x1/200.jpg",
		"1234/16x9/100.jpg",
		"1234/original/100.jpg",
		"1234/src/photo.jpg",
		"1234/optimized.jpg",
		// a longer id nested under the same shard prefix
		"1234/5/1x1/100.jpg",
	)

	require.NoError(t, store.ClearCrops(1234, "1x1"))

	for p, want := range map[string]bool{
		"1234/1x1/100.jpg":      false,
		"1234/1x1/200.jpg":      false,
		"1234/16x9/100.jpg":     true,
		"1234/original/100.jpg": true,
		"1234/5/1x1/100.jpg":    true,
	} {
		assert.Equal(t, want, assetExists(t, store, p), p)
	}

	require.NoError(t, store.ClearCrops(1234))

	for p, want := range map[string]bool{
		"1234/16x9/100.jpg":     false,
		"1234/original/100.jpg": false,
		"1234/src/photo.jpg":    true,
		"1234/optimized.jpg":    true,
		"1234/5/1x1/100.jpg":    true,
	} {
		assert.Equal(t, want, assetExists(t, store, p), p)
	}

	assert.ErrorIs(t, store.ClearCrops(1234, "../src"), ErrInvalidRatio)
}

func TestClearCropsMissingImage(t *testing.T) {
	store := newTestStorage(t)
	assert.NoError(t, store.ClearCrops(987))
}

func TestRenditions(t *testing.T) {
	store := newTestStorage(t)
	seedFiles(t, store,
		"77/1x1/1000.jpg",
		"77/1x1/200.jpg",
		"77/1x1/30.png",
		"77/16x9/600.jpg",
		"77/src/photo.jpg",
		"77/optimized.jpg",
	)

	renditions, err := store.Renditions(77)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"1x1/30.png",
		"1x1/200.jpg",
		"1x1/1000.jpg",
		"16x9/600.jpg",
	}, renditions)

	empty, err := store.Renditions(78)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

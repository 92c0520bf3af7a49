package resource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathForURLIsDeterministicAndSharded(t *testing.T) {
	r := NewRegistry(t.TempDir())
	p1 := r.PathForURL("https://example.invalid/a.glb")
	p2 := r.PathForURL("https://example.invalid/a.glb")
	assert.Equal(t, p1, p2)
	assert.Equal(t, filepath.Ext(p1), ".glb")
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry(t.TempDir())
	first := r.Register("https://example.invalid/a.glb", 1)
	second := r.Register("https://example.invalid/a.glb", 2)
	assert.Same(t, first, second)
	assert.Equal(t, uint64(1), second.OwnerUserID)
}

func TestBeginTransferTransitionsNotPresentToTransferring(t *testing.T) {
	r := NewRegistry(t.TempDir())
	r.Register("https://example.invalid/a.glb", 1)
	require.NoError(t, r.BeginTransfer("https://example.invalid/a.glb"))
	res, ok := r.Get("https://example.invalid/a.glb")
	require.True(t, ok)
	assert.Equal(t, Transferring, res.State)
}

func TestBeginTransferFailsForUnregisteredURL(t *testing.T) {
	r := NewRegistry(t.TempDir())
	assert.Error(t, r.BeginTransfer("https://example.invalid/never-registered.glb"))
}

func TestBeginTransferFailsWhenNotNotPresent(t *testing.T) {
	r := NewRegistry(t.TempDir())
	r.Register("https://example.invalid/a.glb", 1)
	require.NoError(t, r.BeginTransfer("https://example.invalid/a.glb"))
	assert.Error(t, r.BeginTransfer("https://example.invalid/a.glb"))
}

func TestCopyLocalFileToResourceDirMarksPresent(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(filepath.Join(dir, "store"))

	local := filepath.Join(dir, "upload.glb")
	require.NoError(t, os.WriteFile(local, []byte("binary model data"), 0o644))

	url := "https://example.invalid/upload.glb"
	r.Register(url, 1)
	require.NoError(t, r.CopyLocalFileToResourceDir(local, url))

	res, ok := r.Get(url)
	require.True(t, ok)
	assert.Equal(t, Present, res.State)
	data, err := os.ReadFile(res.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "binary model data", string(data))
}

func TestCopyLocalFileToResourceDirIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(filepath.Join(dir, "store"))
	local := filepath.Join(dir, "upload.glb")
	require.NoError(t, os.WriteFile(local, []byte("v1"), 0o644))

	url := "https://example.invalid/upload.glb"
	r.Register(url, 1)
	require.NoError(t, r.CopyLocalFileToResourceDir(local, url))
	require.NoError(t, r.CopyLocalFileToResourceDir(local, url))

	res, ok := r.Get(url)
	require.True(t, ok)
	assert.Equal(t, Present, res.State)
}

func TestCopyLocalFileToResourceDirFailsOnMissingSource(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(filepath.Join(dir, "store"))
	url := "https://example.invalid/missing.glb"
	r.Register(url, 1)

	err := r.CopyLocalFileToResourceDir(filepath.Join(dir, "does-not-exist.glb"), url)
	assert.Error(t, err)

	res, ok := r.Get(url)
	require.True(t, ok)
	assert.Equal(t, NotPresent, res.State)
}

func TestRequestDownloadOnlySucceedsWhenPresent(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(filepath.Join(dir, "store"))
	url := "https://example.invalid/a.glb"
	r.Register(url, 1)

	_, err := r.RequestDownload(url)
	assert.Error(t, err)

	local := filepath.Join(dir, "a.glb")
	require.NoError(t, os.WriteFile(local, []byte("data"), 0o644))
	require.NoError(t, r.CopyLocalFileToResourceDir(local, url))

	res, err := r.RequestDownload(url)
	require.NoError(t, err)
	assert.Equal(t, Present, res.State)
}

func TestAllAndLoadAllRoundTrip(t *testing.T) {
	r := NewRegistry(t.TempDir())
	r.Register("https://example.invalid/a.glb", 1)
	r.Register("https://example.invalid/b.glb", 2)
	all := r.All()
	assert.Len(t, all, 2)

	r2 := NewRegistry(t.TempDir())
	r2.LoadAll(all)
	assert.Len(t, r2.All(), 2)
}

func TestExtOf(t *testing.T) {
	assert.Equal(t, ".glb", ExtOf("model.GLB"))
	assert.Equal(t, "", ExtOf("no-extension"))
}

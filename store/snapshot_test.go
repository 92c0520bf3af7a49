package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyberspace/metrics"
	"cyberspace/resource"
	"cyberspace/world"
)

func TestLoadMissingSnapshotReturnsNilNil(t *testing.T) {
	dir := t.TempDir()
	st := New(dir, false)
	snap, err := st.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSaveLoadRoundTripUncompressed(t *testing.T) {
	dir := t.TempDir()
	st := New(dir, false)
	w := world.New(metrics.NewRecorder(nil))
	reg := resource.NewRegistry(dir)

	_, err := w.ApplyObjectCreate(world.Object{Type: world.ObjectGeneric, OwnerUserID: 1}, world.InvalidUID)
	require.NoError(t, err)
	w.ApplyAvatarCreate(world.Avatar{OwnerUserID: 1, Name: "alice"})
	w.ApplyParcelCreate(world.Parcel{})
	w.CreateUser("alice", "hash", "alice@example.invalid")
	reg.Register("https://example.invalid/a.glb", 1)

	require.NoError(t, st.Save(w, reg))

	snap, err := st.Load()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Len(t, snap.Objects, 1)
	assert.Len(t, snap.Avatars, 1)
	assert.Len(t, snap.Parcels, 1)
	assert.Len(t, snap.Users, 1)
	assert.Len(t, snap.Resources, 1)
}

func TestSaveLoadRoundTripCompressed(t *testing.T) {
	dir := t.TempDir()
	st := New(dir, true)
	w := world.New(metrics.NewRecorder(nil))
	reg := resource.NewRegistry(dir)

	_, err := w.ApplyObjectCreate(world.Object{Type: world.ObjectGeneric}, world.InvalidUID)
	require.NoError(t, err)

	require.NoError(t, st.Save(w, reg))

	raw, err := os.ReadFile(st.Path())
	require.NoError(t, err)
	assert.Equal(t, "CYZ1", string(raw[:4]))

	snap, err := st.Load()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Len(t, snap.Objects, 1)
}

func TestSaveIsAtomicRenameNotPartialWrite(t *testing.T) {
	dir := t.TempDir()
	st := New(dir, false)
	w := world.New(metrics.NewRecorder(nil))
	reg := resource.NewRegistry(dir)

	require.NoError(t, st.Save(w, reg))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestLoadRejectsUnrecognizedMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server_state.bin")
	require.NoError(t, os.WriteFile(path, []byte("XXXXgarbage"), 0o644))

	st := New(dir, false)
	_, err := st.Load()
	assert.Error(t, err)
}

func TestGenerateBootstrapParcelsIsDeterministic(t *testing.T) {
	a := GenerateBootstrapParcels()
	b := GenerateBootstrapParcels()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
		assert.Equal(t, a[i].Verts, b[i].Verts)
	}
	assert.NotEmpty(t, a)
}

func TestLoadBootstrapWorldFallsBackToGeneratedWhenNoOverrideFile(t *testing.T) {
	dir := t.TempDir()
	parcels, err := LoadBootstrapWorld(dir)
	require.NoError(t, err)
	assert.Equal(t, len(GenerateBootstrapParcels()), len(parcels))
}

func TestLoadBootstrapWorldReadsYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
parcels:
  - id: 1
    owner_user_id: 7
    all_writeable: true
    verts: [[0,0],[10,0],[10,10],[0,10]]
    zbounds_min: -1
    zbounds_max: 5
    description: hand-authored plot
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bootstrap_world.yaml"), []byte(yamlContent), 0o644))

	parcels, err := LoadBootstrapWorld(dir)
	require.NoError(t, err)
	require.Len(t, parcels, 1)
	assert.Equal(t, world.ParcelID(1), parcels[0].ID)
	assert.Equal(t, world.UserID(7), parcels[0].OwnerUserID)
	assert.True(t, parcels[0].AllWriteable)
	assert.Equal(t, "hand-authored plot", parcels[0].Description)
}

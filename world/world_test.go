package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyberspace/metrics"
	"cyberspace/wire"
)

func newTestWorld() *World {
	return New(metrics.NewRecorder(nil))
}

func TestApplyObjectCreateThenDrainIsJustCreated(t *testing.T) {
	w := newTestWorld()
	uid, err := w.ApplyObjectCreate(Object{Type: ObjectGeneric, OwnerUserID: 1}, InvalidUID)
	require.NoError(t, err)
	assert.NotEqual(t, InvalidUID, uid)

	dirty := w.DrainDirtyObjects()
	require.Len(t, dirty, 1)
	assert.Equal(t, JustCreated, dirty[0].Lifecycle)

	ob, ok := w.GetObject(uid)
	require.True(t, ok)
	assert.Equal(t, Alive, ob.Lifecycle, "drain transitions JustCreated to Alive after the snapshot is taken")
}

func TestCreateThenDestroyInSameWindowDrainsBothCreatedAndDead(t *testing.T) {
	w := newTestWorld()
	uid, err := w.ApplyObjectCreate(Object{Type: ObjectGeneric, OwnerUserID: 1}, InvalidUID)
	require.NoError(t, err)

	require.NoError(t, w.ApplyObjectDestroy(uid))

	dirty := w.DrainDirtyObjects()
	require.Len(t, dirty, 2, "a create and destroy in the same dirty window must drain as two snapshots")
	assert.Equal(t, JustCreated, dirty[0].Lifecycle, "the created snapshot must come first")
	assert.Equal(t, Dead, dirty[1].Lifecycle, "the destroyed snapshot must come second")
	assert.Equal(t, uid, dirty[0].UID)
	assert.Equal(t, uid, dirty[1].UID)

	_, ok := w.GetObject(uid)
	assert.False(t, ok, "the object must be removed from the map once both snapshots are drained")
}

func TestAvatarCreateThenDestroyInSameWindowDrainsBothCreatedAndDead(t *testing.T) {
	w := newTestWorld()
	uid := w.ApplyAvatarCreate(Avatar{OwnerUserID: 1})

	require.NoError(t, w.ApplyAvatarDestroy(uid))

	dirty := w.DrainDirtyAvatars()
	require.Len(t, dirty, 2)
	assert.Equal(t, JustCreated, dirty[0].Lifecycle)
	assert.Equal(t, Dead, dirty[1].Lifecycle)

	_, ok := w.GetAvatar(uid)
	assert.False(t, ok)
}

func TestApplyObjectCreateWithExistingRequestedUIDFails(t *testing.T) {
	w := newTestWorld()
	uid, err := w.ApplyObjectCreate(Object{Type: ObjectGeneric}, InvalidUID)
	require.NoError(t, err)

	_, err = w.ApplyObjectCreate(Object{Type: ObjectGeneric}, uid)
	assert.Error(t, err)
}

func TestApplyObjectUpdateTransformOnlySetsTransformDirty(t *testing.T) {
	w := newTestWorld()
	uid, err := w.ApplyObjectCreate(Object{Type: ObjectGeneric}, InvalidUID)
	require.NoError(t, err)
	w.DrainDirtyObjects()

	transform := Transform{Angle: 2}
	require.NoError(t, w.ApplyObjectUpdate(uid, ObjectPatch{Transform: &transform}))

	dirty := w.DrainDirtyObjects()
	require.Len(t, dirty, 1)
	assert.True(t, dirty[0].FromRemoteTransformDirty)
	assert.False(t, dirty[0].FromRemoteOtherDirty)
}

func TestApplyObjectUpdateOtherFieldSetsOtherDirty(t *testing.T) {
	w := newTestWorld()
	uid, err := w.ApplyObjectCreate(Object{Type: ObjectGeneric}, InvalidUID)
	require.NoError(t, err)
	w.DrainDirtyObjects()

	model := "https://example.invalid/new.glb"
	require.NoError(t, w.ApplyObjectUpdate(uid, ObjectPatch{ModelURL: &model}))

	dirty := w.DrainDirtyObjects()
	require.Len(t, dirty, 1)
	assert.True(t, dirty[0].FromRemoteOtherDirty)
}

func TestApplyObjectUpdateUnknownUIDFails(t *testing.T) {
	w := newTestWorld()
	transform := Transform{}
	err := w.ApplyObjectUpdate(UID(999), ObjectPatch{Transform: &transform})
	assert.Error(t, err)
}

func TestApplyObjectDestroyRemovesFromMapAfterDrain(t *testing.T) {
	w := newTestWorld()
	uid, err := w.ApplyObjectCreate(Object{Type: ObjectGeneric}, InvalidUID)
	require.NoError(t, err)
	w.DrainDirtyObjects()

	require.NoError(t, w.ApplyObjectDestroy(uid))

	dirty := w.DrainDirtyObjects()
	require.Len(t, dirty, 1)
	assert.Equal(t, Dead, dirty[0].Lifecycle)

	_, ok := w.GetObject(uid)
	assert.False(t, ok)
}

func TestApplyObjectDestroyTwiceFails(t *testing.T) {
	w := newTestWorld()
	uid, err := w.ApplyObjectCreate(Object{Type: ObjectGeneric}, InvalidUID)
	require.NoError(t, err)
	require.NoError(t, w.ApplyObjectDestroy(uid))
	assert.Error(t, w.ApplyObjectDestroy(uid))
}

func TestAvatarLifecycle(t *testing.T) {
	w := newTestWorld()
	uid := w.ApplyAvatarCreate(Avatar{OwnerUserID: 1, Name: "alice"})

	dirty := w.DrainDirtyAvatars()
	require.Len(t, dirty, 1)
	assert.Equal(t, JustCreated, dirty[0].Lifecycle)

	require.NoError(t, w.ApplyAvatarTransformUpdate(uid, [3]float64{1, 2, 3}, [3]float32{0, 1, 0}))
	dirty = w.DrainDirtyAvatars()
	require.Len(t, dirty, 1)
	assert.True(t, dirty[0].TransformDirty)

	require.NoError(t, w.ApplyAvatarFullUpdate(uid, "alice2", "https://example.invalid/m.glb", InvalidUID))
	dirty = w.DrainDirtyAvatars()
	require.Len(t, dirty, 1)
	assert.True(t, dirty[0].OtherDirty)
	assert.Equal(t, "alice2", dirty[0].Name)

	require.NoError(t, w.ApplyAvatarDestroy(uid))
	dirty = w.DrainDirtyAvatars()
	require.Len(t, dirty, 1)
	assert.Equal(t, Dead, dirty[0].Lifecycle)
	_, ok := w.GetAvatar(uid)
	assert.False(t, ok)
}

func TestDrainDirtyObjectsClearsDirtySetEvenWithNothingDirty(t *testing.T) {
	w := newTestWorld()
	assert.Empty(t, w.DrainDirtyObjects())
	assert.Empty(t, w.DrainDirtyAvatars())
}

func TestChangedSinceCheckpoint(t *testing.T) {
	w := newTestWorld()
	assert.False(t, w.ChangedSinceCheckpoint())
	_, err := w.ApplyObjectCreate(Object{Type: ObjectGeneric}, InvalidUID)
	require.NoError(t, err)
	assert.True(t, w.ChangedSinceCheckpoint())
	w.ClearChangedSinceCheckpoint()
	assert.False(t, w.ChangedSinceCheckpoint())
}

func TestParcelContainsPointInPolygon(t *testing.T) {
	w := newTestWorld()
	id := w.ApplyParcelCreate(Parcel{
		Verts: [4]wire.Vec2F64{
			{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10},
		},
	})
	p, ok := w.GetParcel(id)
	require.True(t, ok)
	assert.True(t, p.Contains(5, 5))
	assert.False(t, p.Contains(50, 50))
}

func TestUserCreateAndLookup(t *testing.T) {
	w := newTestWorld()
	id := w.CreateUser("alice", "hash", "alice@example.invalid")
	u, ok := w.UserByName("alice")
	require.True(t, ok)
	assert.Equal(t, id, u.ID)
	_, ok = w.UserByName("nobody")
	assert.False(t, ok)
}

func TestLoadSnapshotReplacesContentsWholesale(t *testing.T) {
	w := newTestWorld()
	_, err := w.ApplyObjectCreate(Object{Type: ObjectGeneric}, InvalidUID)
	require.NoError(t, err)

	w.LoadSnapshot(
		[]Object{{UID: 100, Type: ObjectGeneric}},
		nil, nil, nil,
	)
	objs := w.AllObjects()
	require.Len(t, objs, 1)
	assert.Equal(t, UID(100), objs[0].UID)
}

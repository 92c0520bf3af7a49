package main

import (
	"fmt"
	"os"

	"cyberspace/auth"
	"cyberspace/config"
	"cyberspace/metrics"
	"cyberspace/resource"
	"cyberspace/store"
	"cyberspace/wire"
	"cyberspace/world"
)

// runSelfTests exercises the invariants the wire codec, world model and
// durable store make contractual promises about, without opening any
// socket. It is what `--test` runs in place of serving.
func runSelfTests(cfg *config.Config) error {
	if err := testWireRoundTrip(); err != nil {
		return fmt.Errorf("wire round-trip: %w", err)
	}
	if err := testWorldMutationAndDirtyDrain(); err != nil {
		return fmt.Errorf("world mutation: %w", err)
	}
	if err := testPermissionRule(); err != nil {
		return fmt.Errorf("permission rule: %w", err)
	}
	if err := testAuthRoundTrip(); err != nil {
		return fmt.Errorf("auth round-trip: %w", err)
	}
	if err := testSnapshotRoundTrip(cfg); err != nil {
		return fmt.Errorf("snapshot round-trip: %w", err)
	}
	return nil
}

func testWireRoundTrip() error {
	want := world.ObjectCreateRequest{
		Type: world.ObjectGeneric,
		Transform: world.Transform{
			Pos:   wire.Vec3F64{X: 1, Y: 2, Z: 3},
			Axis:  wire.Vec3F32{X: 0, Y: 1, Z: 0},
			Angle: 1.5,
			Scale: wire.Vec3F32{X: 1, Y: 1, Z: 1},
		},
		ModelURL: "https://example.invalid/model.glb",
		Content:  "CryptoVoxels Parcel #42",
	}
	pkt := world.EncodeObjectCreateRequest(want)
	r := wire.NewReader(pkt.Bytes[4:]) // strip the u32 kind, already consumed by a session reader before decoding
	got, err := world.DecodeObjectCreateRequest(r)
	if err != nil {
		return err
	}
	if got.ModelURL != want.ModelURL || got.Content != want.Content || got.Transform.Angle != want.Transform.Angle {
		return fmt.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
	return nil
}

func testWorldMutationAndDirtyDrain() error {
	rec := metrics.NewRecorder(nil)
	w := world.New(rec)

	uid, err := w.ApplyObjectCreate(world.Object{Type: world.ObjectGeneric, OwnerUserID: 1}, world.InvalidUID)
	if err != nil {
		return err
	}
	dirty := w.DrainDirtyObjects()
	if len(dirty) != 1 || dirty[0].Lifecycle != world.JustCreated {
		return fmt.Errorf("expected one JustCreated object after create, got %+v", dirty)
	}

	if err := w.ApplyObjectDestroy(uid); err != nil {
		return err
	}
	dirty = w.DrainDirtyObjects()
	if len(dirty) != 1 || dirty[0].Lifecycle != world.Dead {
		return fmt.Errorf("expected one Dead object after destroy, got %+v", dirty)
	}
	if _, ok := w.GetObject(uid); ok {
		return fmt.Errorf("destroyed object uid %d still present after drain", uid)
	}
	return nil
}

func testPermissionRule() error {
	rec := metrics.NewRecorder(nil)
	w := world.New(rec)

	owner := world.UserID(1)
	other := world.UserID(2)
	uid, err := w.ApplyObjectCreate(world.Object{Type: world.ObjectGeneric, OwnerUserID: owner}, world.InvalidUID)
	if err != nil {
		return err
	}
	ob, _ := w.GetObject(uid)
	if !w.CheckObjectMutation(owner, &ob) {
		return fmt.Errorf("owner should always be permitted to mutate")
	}
	if w.CheckObjectMutation(other, &ob) {
		return fmt.Errorf("non-owner with no parcel relationship should be denied")
	}
	return nil
}

func testAuthRoundTrip() error {
	rec := metrics.NewRecorder(nil)
	w := world.New(rec)
	mgr := auth.NewManager(w)

	if _, err := mgr.Register("selftest-user", "correct horse battery staple", "selftest@example.invalid"); err != nil {
		return err
	}
	if _, err := mgr.Authenticate("selftest-user", "correct horse battery staple"); err != nil {
		return fmt.Errorf("authenticate with correct password: %w", err)
	}
	if _, err := mgr.Authenticate("selftest-user", "wrong password"); err == nil {
		return fmt.Errorf("authenticate with wrong password unexpectedly succeeded")
	}
	return nil
}

func testSnapshotRoundTrip(cfg *config.Config) error {
	dir, err := os.MkdirTemp("", "cyberspace-selftest-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	rec := metrics.NewRecorder(nil)
	w := world.New(rec)
	reg := resource.NewRegistry(dir)
	if _, err := w.ApplyObjectCreate(world.Object{Type: world.ObjectGeneric, OwnerUserID: 1}, world.InvalidUID); err != nil {
		return err
	}

	st := store.New(dir, cfg.SnapshotCompress)
	if err := st.Save(w, reg); err != nil {
		return err
	}
	snap, err := st.Load()
	if err != nil {
		return err
	}
	if snap == nil || len(snap.Objects) != 1 {
		return fmt.Errorf("expected one object in reloaded snapshot, got %v", snap)
	}
	return nil
}

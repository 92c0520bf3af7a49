// Package store implements crash-safe snapshot checkpointing: serializing
// the entire world model to a single file, atomically, and loading it back
// at startup. The on-disk format is independent of (and versioned
// separately from) the stream wire format in package wire.
package store

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pierrec/lz4/v3"

	"cyberspace/apperr"
	"cyberspace/resource"
	"cyberspace/wire"
	"cyberspace/world"
)

// snapshotVersion is the format version of the body produced by encodeBody.
// Unknown future versions fail the load with a versioned error; the decoder
// only ever needs to understand versions <= snapshotVersion, defaulting
// fields introduced by a later version when reading an older one.
const snapshotVersion uint32 = 1

// resourceRecordVersion mirrors the original resource serialization's
// per-entity version field: local_path was added at v2, state at v3. This
// implementation always writes the current version, but the reader gates on
// the version actually found so an older snapshot (without those fields)
// still loads with zero-valued defaults.
const resourceRecordVersion uint32 = 3

var (
	magicUncompressed = [4]byte{'C', 'Y', 'W', '1'}
	magicLZ4          = [4]byte{'C', 'Y', 'Z', '1'}
)

// Store owns the snapshot file path and whether checkpoints are
// LZ4-compressed.
type Store struct {
	path    string
	compress bool
}

func New(stateDir string, compress bool) *Store {
	return &Store{
		path:     filepath.Join(stateDir, "server_state.bin"),
		compress: compress,
	}
}

func (s *Store) Path() string { return s.path }

// Save serializes w and reg into a temporary file in the same directory as
// the canonical path, then atomically renames it over the canonical path —
// a checkpoint write failure leaves the previous snapshot untouched.
func (s *Store) Save(w *world.World, reg *resource.Registry) error {
	body, err := encodeBody(w, reg)
	if err != nil {
		return apperr.Newf(apperr.PersistenceFailure, "encode snapshot: %v", err)
	}

	var fileBuf bytes.Buffer
	if s.compress {
		fileBuf.Write(magicLZ4[:])
		zw := lz4.NewWriter(&fileBuf)
		if _, err := zw.Write(body); err != nil {
			return apperr.Newf(apperr.PersistenceFailure, "compress snapshot: %v", err)
		}
		if err := zw.Close(); err != nil {
			return apperr.Newf(apperr.PersistenceFailure, "finalize compressed snapshot: %v", err)
		}
	} else {
		fileBuf.Write(magicUncompressed[:])
		fileBuf.Write(body)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Newf(apperr.PersistenceFailure, "create state dir: %v", err)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".server_state.%s.tmp", uuid.NewString()))
	if err := os.WriteFile(tmp, fileBuf.Bytes(), 0o644); err != nil {
		return apperr.Newf(apperr.PersistenceFailure, "write temp snapshot: %v", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return apperr.Newf(apperr.PersistenceFailure, "rename snapshot into place: %v", err)
	}
	return nil
}

// Load reads the snapshot file. A missing file is not an error: it reports
// (nil, nil) and the caller is expected to fall back to bootstrap
// generation.
func (s *Store) Load() (*Snapshot, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.Newf(apperr.IOFailure, "read snapshot: %v", err)
	}
	if len(raw) < 4 {
		return nil, apperr.New(apperr.Malformed, "snapshot file too small to contain a header")
	}

	var magic [4]byte
	copy(magic[:], raw[:4])
	body := raw[4:]

	switch magic {
	case magicLZ4:
		zr := lz4.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(zr)
		if err != nil {
			return nil, apperr.Newf(apperr.Malformed, "decompress snapshot: %v", err)
		}
		body = decompressed
	case magicUncompressed:
		// body already holds the raw payload.
	default:
		return nil, apperr.New(apperr.Malformed, "unrecognized snapshot magic")
	}

	return decodeBody(body)
}

// Snapshot is the deserialized content of a loaded snapshot file.
type Snapshot struct {
	Objects   []world.Object
	Parcels   []world.Parcel
	Avatars   []world.Avatar
	Users     []world.User
	Resources []resource.Resource

	MaxUID     uint64
	MaxUserID  uint64
	MaxParcel  uint64
}

func encodeBody(w *world.World, reg *resource.Registry) ([]byte, error) {
	buf := wire.GetBuffer()
	defer wire.PutBuffer(buf)
	wr := wire.NewWriter(buf)

	wr.U32(snapshotVersion)

	maxUID, maxUserID, maxParcel := w.Watermarks()
	wr.U64(maxUID)
	wr.U64(maxUserID)
	wr.U64(maxParcel)

	objects := w.AllObjects()
	wr.U32(uint32(len(objects)))
	for i := range objects {
		world.EncodeObjectSnapshot(wr, &objects[i])
	}

	parcels := w.AllParcels()
	wr.U32(uint32(len(parcels)))
	for i := range parcels {
		world.EncodeParcelSnapshot(wr, &parcels[i])
	}

	avatars := w.AllAvatars()
	wr.U32(uint32(len(avatars)))
	for i := range avatars {
		world.EncodeAvatarSnapshot(wr, &avatars[i])
	}

	users := w.AllUsers()
	wr.U32(uint32(len(users)))
	for i := range users {
		world.EncodeUserSnapshot(wr, &users[i])
	}

	var resources []resource.Resource
	if reg != nil {
		resources = reg.All()
	}
	wr.U32(uint32(len(resources)))
	for i := range resources {
		encodeResourceSnapshot(wr, &resources[i])
	}

	out := make([]byte, len(wr.Bytes()))
	copy(out, wr.Bytes())
	return out, nil
}

func decodeBody(body []byte) (*Snapshot, error) {
	r := wire.NewReader(body)

	version, err := r.U32()
	if err != nil {
		return nil, apperr.Newf(apperr.Malformed, "read snapshot version: %v", err)
	}
	if version > snapshotVersion {
		return nil, apperr.Newf(apperr.Malformed, "snapshot version %d is newer than supported %d", version, snapshotVersion)
	}

	snap := &Snapshot{}
	if snap.MaxUID, err = r.U64(); err != nil {
		return nil, apperr.Newf(apperr.Malformed, "%v", err)
	}
	if snap.MaxUserID, err = r.U64(); err != nil {
		return nil, apperr.Newf(apperr.Malformed, "%v", err)
	}
	if snap.MaxParcel, err = r.U64(); err != nil {
		return nil, apperr.Newf(apperr.Malformed, "%v", err)
	}

	objCount, err := r.VecCount()
	if err != nil {
		return nil, apperr.Newf(apperr.Malformed, "%v", err)
	}
	snap.Objects = make([]world.Object, 0, objCount)
	for i := uint32(0); i < objCount; i++ {
		ob, err := world.DecodeObjectSnapshot(r, version)
		if err != nil {
			return nil, apperr.Newf(apperr.Malformed, "object %d: %v", i, err)
		}
		snap.Objects = append(snap.Objects, ob)
	}

	parcelCount, err := r.VecCount()
	if err != nil {
		return nil, apperr.Newf(apperr.Malformed, "%v", err)
	}
	snap.Parcels = make([]world.Parcel, 0, parcelCount)
	for i := uint32(0); i < parcelCount; i++ {
		p, err := world.DecodeParcelSnapshot(r, version)
		if err != nil {
			return nil, apperr.Newf(apperr.Malformed, "parcel %d: %v", i, err)
		}
		snap.Parcels = append(snap.Parcels, p)
	}

	avatarCount, err := r.VecCount()
	if err != nil {
		return nil, apperr.Newf(apperr.Malformed, "%v", err)
	}
	snap.Avatars = make([]world.Avatar, 0, avatarCount)
	for i := uint32(0); i < avatarCount; i++ {
		av, err := world.DecodeAvatarSnapshot(r, version)
		if err != nil {
			return nil, apperr.Newf(apperr.Malformed, "avatar %d: %v", i, err)
		}
		snap.Avatars = append(snap.Avatars, av)
	}

	userCount, err := r.VecCount()
	if err != nil {
		return nil, apperr.Newf(apperr.Malformed, "%v", err)
	}
	snap.Users = make([]world.User, 0, userCount)
	for i := uint32(0); i < userCount; i++ {
		u, err := world.DecodeUserSnapshot(r, version)
		if err != nil {
			return nil, apperr.Newf(apperr.Malformed, "user %d: %v", i, err)
		}
		snap.Users = append(snap.Users, u)
	}

	resCount, err := r.VecCount()
	if err != nil {
		return nil, apperr.Newf(apperr.Malformed, "%v", err)
	}
	snap.Resources = make([]resource.Resource, 0, resCount)
	for i := uint32(0); i < resCount; i++ {
		res, err := decodeResourceSnapshot(r)
		if err != nil {
			return nil, apperr.Newf(apperr.Malformed, "resource %d: %v", i, err)
		}
		snap.Resources = append(snap.Resources, res)
	}

	return snap, nil
}

package world

import (
	"sync"
	"time"

	"cyberspace/apperr"
	"cyberspace/metrics"
)

// World is the single in-memory authoritative model. WorldMutex (mu) guards
// every map below, the two dirty sets, the next-identifier counter and the
// changed-since-checkpoint flag. No I/O or blocking call may occur while mu
// is held — the critical section is purely in-memory and bounded.
//
// The resource registry is deliberately NOT one of these maps: per the
// concurrency model it carries its own finer-grained lock and must never be
// reached while mu is held (see resource.Registry; lock ordering is
// WorldMutex -> SessionOutboundMutex -> ResourceRegistryMutex).
type World struct {
	mu sync.Mutex

	objects map[UID]*Object
	parcels map[ParcelID]*Parcel
	avatars map[UID]*Avatar
	users   map[UserID]*User

	dirtyObjects map[UID]struct{}
	dirtyAvatars map[UID]struct{}

	nextUID    uint64
	nextUserID uint64
	nextParcel uint64

	changedSinceCheckpoint bool

	Metrics *metrics.Recorder
}

func New(rec *metrics.Recorder) *World {
	return &World{
		objects:      make(map[UID]*Object),
		parcels:      make(map[ParcelID]*Parcel),
		avatars:      make(map[UID]*Avatar),
		users:        make(map[UserID]*User),
		dirtyObjects: make(map[UID]struct{}),
		dirtyAvatars: make(map[UID]struct{}),
		Metrics:      rec,
	}
}

func (w *World) allocUID() UID {
	w.nextUID++
	return UID(w.nextUID)
}

// RestoreIdentifierWatermarks is called once at snapshot load so newly
// allocated identifiers never collide with ones persisted to disk.
func (w *World) RestoreIdentifierWatermarks(maxUID uint64, maxUserID uint64, maxParcel uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if maxUID > w.nextUID {
		w.nextUID = maxUID
	}
	if maxUserID > w.nextUserID {
		w.nextUserID = maxUserID
	}
	if maxParcel > w.nextParcel {
		w.nextParcel = maxParcel
	}
}

func (w *World) Watermarks() (maxUID, maxUserID, maxParcel uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextUID, w.nextUserID, w.nextParcel
}

func (w *World) markChanged() { w.changedSinceCheckpoint = true }

// ChangedSinceCheckpoint reports and does not clear the checkpoint-dirty
// flag.
func (w *World) ChangedSinceCheckpoint() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changedSinceCheckpoint
}

func (w *World) ClearChangedSinceCheckpoint() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changedSinceCheckpoint = false
}

// ---- Objects ----

// ObjectPatch carries only the fields a caller wants to change.
// Transform-only patches set only TransformDirty; any of the other fields
// being non-nil sets OtherDirty instead (other_dirty wins on broadcast).
type ObjectPatch struct {
	Transform  *Transform
	ModelURL   *string
	Materials  []Material
	VoxelGroup []VoxelCell
	Content    *string
}

func (p *ObjectPatch) touchesOther() bool {
	return p.ModelURL != nil || p.Materials != nil || p.VoxelGroup != nil || p.Content != nil
}

// ApplyObjectCreate assigns a new uid (or validates a caller-supplied one
// for the ingestion path), inserts the object as JustCreated/other_dirty,
// and marks the world changed.
func (w *World) ApplyObjectCreate(ob Object, requestedUID UID) (UID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var uid UID
	if requestedUID != InvalidUID {
		if _, exists := w.objects[requestedUID]; exists {
			return InvalidUID, apperr.Newf(apperr.NotFound, "object uid %d already exists", requestedUID)
		}
		uid = requestedUID
		if uint64(uid) > w.nextUID {
			w.nextUID = uint64(uid)
		}
	} else {
		uid = w.allocUID()
	}

	ob.UID = uid
	ob.Lifecycle = JustCreated
	ob.FromRemoteOtherDirty = true
	ob.createdThisWindow = true
	if ob.CreatedTime.IsZero() {
		ob.CreatedTime = time.Now()
	}
	w.objects[uid] = &ob
	w.dirtyObjects[uid] = struct{}{}
	w.markChanged()
	w.Metrics.IncObjectCreated()
	return uid, nil
}

// ApplyObjectUpdate merges patch into the existing object and sets the
// appropriate dirty flag. Fails with NotFound if uid is unknown.
func (w *World) ApplyObjectUpdate(uid UID, patch ObjectPatch) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ob, ok := w.objects[uid]
	if !ok || ob.Lifecycle == Dead {
		return apperr.Newf(apperr.NotFound, "object uid %d not found", uid)
	}

	if patch.Transform != nil {
		ob.Transform = *patch.Transform
	}
	if patch.ModelURL != nil {
		ob.ModelURL = *patch.ModelURL
	}
	if patch.Materials != nil {
		ob.Materials = patch.Materials
	}
	if patch.VoxelGroup != nil {
		ob.VoxelGroup = patch.VoxelGroup
	}
	if patch.Content != nil {
		ob.Content = *patch.Content
	}

	if patch.touchesOther() {
		ob.FromRemoteOtherDirty = true
	} else if patch.Transform != nil {
		ob.FromRemoteTransformDirty = true
	}
	w.dirtyObjects[uid] = struct{}{}
	w.markChanged()
	return nil
}

// ApplyObjectDestroy marks the object Dead and other_dirty; actual removal
// from the map happens in DrainDirtyObjects, which hands the tick loop the
// Dead snapshot that its destroy packet is built from.
func (w *World) ApplyObjectDestroy(uid UID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ob, ok := w.objects[uid]
	if !ok || ob.Lifecycle == Dead {
		return apperr.Newf(apperr.NotFound, "object uid %d not found", uid)
	}
	ob.Lifecycle = Dead
	ob.FromRemoteOtherDirty = true
	w.dirtyObjects[uid] = struct{}{}
	w.markChanged()
	return nil
}

// GetObject returns a value-copy snapshot of the object, for permission
// checks and read access outside the mutation interface.
func (w *World) GetObject(uid UID) (Object, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ob, ok := w.objects[uid]
	if !ok {
		return Object{}, false
	}
	return *ob, true
}

// DrainDirtyObjects returns value-copy snapshots of every dirty object and
// clears the dirty set and per-object dirty flags. Dead objects are removed
// from the map after being included in the drained batch.
func (w *World) DrainDirtyObjects() []Object {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Object, 0, len(w.dirtyObjects))
	for uid := range w.dirtyObjects {
		ob, ok := w.objects[uid]
		if !ok {
			continue
		}
		if ob.Lifecycle == Dead {
			if ob.createdThisWindow {
				created := *ob
				created.Lifecycle = JustCreated
				out = append(out, created)
			}
			out = append(out, *ob)
			delete(w.objects, uid)
			w.Metrics.IncObjectDestroyed()
			continue
		}
		snap := *ob
		out = append(out, snap)
		if ob.Lifecycle == JustCreated {
			ob.Lifecycle = Alive
		}
		ob.FromRemoteOtherDirty = false
		ob.FromRemoteTransformDirty = false
		ob.createdThisWindow = false
	}
	w.Metrics.SetDirtyObjects(len(w.dirtyObjects))
	w.dirtyObjects = make(map[UID]struct{})
	return out
}

// ---- Avatars ----

// ApplyAvatarCreate inserts a new avatar as JustCreated/other_dirty. Avatars
// are always server-allocated (tied to a session), so there is no
// caller-supplied-uid path like objects have for ingestion.
func (w *World) ApplyAvatarCreate(av Avatar) UID {
	w.mu.Lock()
	defer w.mu.Unlock()

	uid := w.allocUID()
	av.UID = uid
	av.Lifecycle = JustCreated
	av.OtherDirty = true
	av.createdThisWindow = true
	w.avatars[uid] = &av
	w.dirtyAvatars[uid] = struct{}{}
	w.markChanged()
	return uid
}

func (w *World) ApplyAvatarTransformUpdate(uid UID, pos [3]float64, rot [3]float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	av, ok := w.avatars[uid]
	if !ok || av.Lifecycle == Dead {
		return apperr.Newf(apperr.NotFound, "avatar uid %d not found", uid)
	}
	av.Pos.X, av.Pos.Y, av.Pos.Z = pos[0], pos[1], pos[2]
	av.Rotation.X, av.Rotation.Y, av.Rotation.Z = rot[0], rot[1], rot[2]
	av.TransformDirty = true
	w.dirtyAvatars[uid] = struct{}{}
	w.markChanged()
	return nil
}

func (w *World) ApplyAvatarFullUpdate(uid UID, name, modelURL string, selected UID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	av, ok := w.avatars[uid]
	if !ok || av.Lifecycle == Dead {
		return apperr.Newf(apperr.NotFound, "avatar uid %d not found", uid)
	}
	av.Name = name
	av.ModelURL = modelURL
	av.SelectedObjectUID = selected
	av.OtherDirty = true
	w.dirtyAvatars[uid] = struct{}{}
	w.markChanged()
	return nil
}

// ApplyAvatarDestroy is how a session's Closing state reaps its own avatar.
func (w *World) ApplyAvatarDestroy(uid UID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	av, ok := w.avatars[uid]
	if !ok || av.Lifecycle == Dead {
		return apperr.Newf(apperr.NotFound, "avatar uid %d not found", uid)
	}
	av.Lifecycle = Dead
	av.OtherDirty = true
	w.dirtyAvatars[uid] = struct{}{}
	w.markChanged()
	return nil
}

func (w *World) GetAvatar(uid UID) (Avatar, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	av, ok := w.avatars[uid]
	if !ok {
		return Avatar{}, false
	}
	return *av, true
}

// DrainDirtyAvatars mirrors DrainDirtyObjects.
func (w *World) DrainDirtyAvatars() []Avatar {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Avatar, 0, len(w.dirtyAvatars))
	for uid := range w.dirtyAvatars {
		av, ok := w.avatars[uid]
		if !ok {
			continue
		}
		if av.Lifecycle == Dead {
			if av.createdThisWindow {
				created := *av
				created.Lifecycle = JustCreated
				out = append(out, created)
			}
			out = append(out, *av)
			delete(w.avatars, uid)
			continue
		}
		snap := *av
		out = append(out, snap)
		if av.Lifecycle == JustCreated {
			av.Lifecycle = Alive
		}
		av.OtherDirty = false
		av.TransformDirty = false
		av.createdThisWindow = false
	}
	w.Metrics.SetDirtyAvatars(len(w.dirtyAvatars))
	w.dirtyAvatars = make(map[UID]struct{})
	return out
}

// ---- Parcels ----

func (w *World) ApplyParcelCreate(p Parcel) ParcelID {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextParcel++
	id := ParcelID(w.nextParcel)
	p.ID = id
	p.Lifecycle = JustCreated
	p.FromRemoteOtherDirty = true
	if p.CreatedTime.IsZero() {
		p.CreatedTime = time.Now()
	}
	w.parcels[id] = &p
	w.markChanged()
	return id
}

func (w *World) GetParcel(id ParcelID) (Parcel, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.parcels[id]
	if !ok {
		return Parcel{}, false
	}
	return *p, true
}

// ParcelContaining returns the first parcel (by map iteration) whose
// footprint contains the given ground-plane point. CheckObjectMutation does
// not use it: it scans every parcel containing the object itself.
func (w *World) ParcelContaining(x, y float64) (Parcel, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.parcels {
		if p.Contains(x, y) {
			return *p, true
		}
	}
	return Parcel{}, false
}

func (w *World) AllParcels() []Parcel {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Parcel, 0, len(w.parcels))
	for _, p := range w.parcels {
		out = append(out, *p)
	}
	return out
}

// ---- Users ----

func (w *World) CreateUser(name, passwordHash, email string) UserID {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextUserID++
	id := UserID(w.nextUserID)
	w.users[id] = &User{
		ID:                   id,
		Name:                 name,
		PasswordHashWithSalt: passwordHash,
		Email:                email,
		CreatedTime:          time.Now(),
	}
	w.markChanged()
	return id
}

func (w *World) UserByName(name string) (User, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, u := range w.users {
		if u.Name == name {
			return *u, true
		}
	}
	return User{}, false
}

func (w *World) AllUsers() []User {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]User, 0, len(w.users))
	for _, u := range w.users {
		out = append(out, *u)
	}
	return out
}

func (w *World) AllObjects() []Object {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Object, 0, len(w.objects))
	for _, o := range w.objects {
		out = append(out, *o)
	}
	return out
}

func (w *World) AllAvatars() []Avatar {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Avatar, 0, len(w.avatars))
	for _, a := range w.avatars {
		out = append(out, *a)
	}
	return out
}

// LoadSnapshot replaces the world's contents wholesale. Used only at
// startup, before the tick loop and listener are running, so no
// mutual-exclusion subtlety applies beyond the mutex itself.
func (w *World) LoadSnapshot(objects []Object, parcels []Parcel, avatars []Avatar, users []User) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.objects = make(map[UID]*Object, len(objects))
	for i := range objects {
		o := objects[i]
		w.objects[o.UID] = &o
	}
	w.parcels = make(map[ParcelID]*Parcel, len(parcels))
	for i := range parcels {
		p := parcels[i]
		w.parcels[p.ID] = &p
	}
	w.avatars = make(map[UID]*Avatar, len(avatars))
	for i := range avatars {
		a := avatars[i]
		w.avatars[a.UID] = &a
	}
	w.users = make(map[UserID]*User, len(users))
	for i := range users {
		u := users[i]
		w.users[u.ID] = &u
	}
}

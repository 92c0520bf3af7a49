// Package world implements the in-memory authoritative world model: the
// object, parcel, avatar and user maps, their dirty-flag replication state,
// and the single coarse mutex that guards all of it.
package world

import (
	"time"

	"cyberspace/wire"
)

// UID identifies an object or avatar instance. UserID and ParcelID identify
// users and parcels. All three are 64-bit opaque values allocated
// monotonically by the world; zero is the reserved "invalid" sentinel.
type UID uint64
type UserID uint64
type ParcelID uint64

const (
	InvalidUID     UID     = 0
	InvalidUserID  UserID  = 0
	InvalidParcelID ParcelID = 0
)

// LifecycleState is the replication lifecycle shared by objects and avatars.
type LifecycleState int

const (
	JustCreated LifecycleState = iota
	Alive
	Dead
)

func (s LifecycleState) String() string {
	switch s {
	case JustCreated:
		return "JustCreated"
	case Alive:
		return "Alive"
	case Dead:
		return "Dead"
	default:
		return "Unknown"
	}
}

// ObjectType enumerates the kinds of placeable world object.
type ObjectType int

const (
	ObjectGeneric ObjectType = iota
	ObjectVoxelGroup
	ObjectHypercard
)

// Material mirrors a single material slot on an object's mesh or voxel group.
type Material struct {
	ColourRGB        wire.Vec3F32
	ColourTextureURL string
	Roughness        float32
	Metallic         float32
	Opacity          float32
	TexMatrix        [4]float32 // 2x2 texture transform, row-major
}

// VoxelCell is one entry of an object's voxel group: a grid position and the
// index into Object.Materials it uses.
type VoxelCell struct {
	Pos           wire.Vec3I32
	MaterialIndex uint32
}

// Transform is an object's placement: position, axis-angle rotation, scale.
type Transform struct {
	Pos   wire.Vec3F64
	Axis  wire.Vec3F32
	Angle float32
	Scale wire.Vec3F32
}

// Object is a placeable world entity.
type Object struct {
	UID         UID
	Type        ObjectType
	OwnerUserID UserID
	CreatedTime time.Time
	Transform   Transform
	ModelURL    string
	Materials   []Material
	VoxelGroup  []VoxelCell // nil unless Type == ObjectVoxelGroup
	Content     string

	Lifecycle                LifecycleState
	FromRemoteOtherDirty     bool
	FromRemoteTransformDirty bool

	// createdThisWindow is set when the object enters the world and
	// survives until the next drain, even across an intervening destroy, so
	// a create-then-destroy within one dirty window still yields a Created
	// packet before the Destroyed packet instead of silently dropping it.
	createdThisWindow bool
}

// Parcel is a land area with access control for object placement.
type Parcel struct {
	ID            ParcelID
	OwnerUserID   UserID
	AdminUserIDs  []UserID
	WriterUserIDs []UserID
	AllWriteable  bool
	Verts         [4]wire.Vec2F64
	ZBoundsMin    float64
	ZBoundsMax    float64
	CreatedTime   time.Time
	Description   string

	Lifecycle            LifecycleState
	FromRemoteOtherDirty bool
}

// Contains reports whether the (x,y) ground-plane point falls within the
// parcel footprint, via a standard even-odd point-in-polygon test over the
// 4 vertices.
func (p *Parcel) Contains(x, y float64) bool {
	inside := false
	for i, j := 0, 3; i < 4; j, i = i, i+1 {
		vi, vj := p.Verts[i], p.Verts[j]
		if ((vi.Y > y) != (vj.Y > y)) &&
			(x < (vj.X-vi.X)*(y-vi.Y)/(vj.Y-vi.Y)+vi.X) {
			inside = !inside
		}
	}
	return inside
}

// Avatar is a connected user's presence in the world, session-bound.
type Avatar struct {
	UID               UID
	OwnerUserID       UserID
	Name              string
	ModelURL          string
	Pos               wire.Vec3F64
	Rotation          wire.Vec3F32
	SelectedObjectUID UID

	Lifecycle       LifecycleState
	OtherDirty      bool
	TransformDirty  bool

	// createdThisWindow mirrors Object.createdThisWindow.
	createdThisWindow bool
}

// User is a registered account.
type User struct {
	ID                   UserID
	Name                 string
	PasswordHashWithSalt string // bcrypt hash; self-salting
	Email                string
	CreatedTime          time.Time
}

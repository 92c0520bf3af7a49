package world

import (
	"time"

	"cyberspace/wire"
)

func unixSeconds(sec float64) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

// Packet is a framed, ready-to-write buffer: the u32 kind followed by its
// payload. Session writers copy Bytes directly onto the socket.
type Packet struct {
	Kind  uint32
	Bytes []byte
}

func encodeObjectRecord(w *wire.Writer, ob *Object) {
	w.U64(uint64(ob.UID))
	w.U64(uint64(ob.OwnerUserID))
	w.F64(float64(ob.CreatedTime.Unix()))
	encodeObjectCore(w, ob)
}

// encodeObjectCore writes the fields shared by a full Object record and a
// client create request: everything except uid/owner/created-time, which
// only the server ever assigns.
func encodeObjectCore(w *wire.Writer, ob *Object) {
	w.U32(uint32(ob.Type))
	ob.Transform.Pos.WriteTo(w)
	ob.Transform.Axis.WriteTo(w)
	w.F32(ob.Transform.Angle)
	ob.Transform.Scale.WriteTo(w)
	w.String(ob.ModelURL)
	w.U32(uint32(len(ob.Materials)))
	for _, m := range ob.Materials {
		m.ColourRGB.WriteTo(w)
		w.String(m.ColourTextureURL)
		w.F32(m.Roughness)
		w.F32(m.Metallic)
		w.F32(m.Opacity)
		for _, v := range m.TexMatrix {
			w.F32(v)
		}
	}
	w.Bool(ob.Type == ObjectVoxelGroup)
	if ob.Type == ObjectVoxelGroup {
		w.U32(uint32(len(ob.VoxelGroup)))
		for _, c := range ob.VoxelGroup {
			c.Pos.WriteTo(w)
			w.U32(c.MaterialIndex)
		}
	}
	w.String(ob.Content)
}

func decodeObjectRecord(r *wire.Reader) (Object, error) {
	var ob Object
	uid, err := r.U64()
	if err != nil {
		return ob, err
	}
	ob.UID = UID(uid)
	owner, err := r.U64()
	if err != nil {
		return ob, err
	}
	ob.OwnerUserID = UserID(owner)
	ct, err := r.F64()
	if err != nil {
		return ob, err
	}
	ob.CreatedTime = unixSeconds(ct)
	if err := decodeObjectCore(r, &ob); err != nil {
		return ob, err
	}
	return ob, nil
}

// decodeObjectCore reads the fields shared by a full Object record and a
// client create request.
func decodeObjectCore(r *wire.Reader, ob *Object) error {
	typ, err := r.U32()
	if err != nil {
		return err
	}
	ob.Type = ObjectType(typ)
	pos, err := wire.ReadVec3F64(r)
	if err != nil {
		return err
	}
	axis, err := wire.ReadVec3F32(r)
	if err != nil {
		return err
	}
	angle, err := r.F32()
	if err != nil {
		return err
	}
	scale, err := wire.ReadVec3F32(r)
	if err != nil {
		return err
	}
	ob.Transform = Transform{Pos: pos, Axis: axis, Angle: angle, Scale: scale}
	modelURL, err := r.StringCapped(wire.MaxURLLen)
	if err != nil {
		return err
	}
	ob.ModelURL = modelURL
	matCount, err := r.VecCount()
	if err != nil {
		return err
	}
	ob.Materials = make([]Material, 0, matCount)
	for i := uint32(0); i < matCount; i++ {
		var m Material
		colour, err := wire.ReadVec3F32(r)
		if err != nil {
			return err
		}
		m.ColourRGB = colour
		tex, err := r.StringCapped(wire.MaxURLLen)
		if err != nil {
			return err
		}
		m.ColourTextureURL = tex
		if m.Roughness, err = r.F32(); err != nil {
			return err
		}
		if m.Metallic, err = r.F32(); err != nil {
			return err
		}
		if m.Opacity, err = r.F32(); err != nil {
			return err
		}
		for j := range m.TexMatrix {
			if m.TexMatrix[j], err = r.F32(); err != nil {
				return err
			}
		}
		ob.Materials = append(ob.Materials, m)
	}
	hasVoxels, err := r.Bool()
	if err != nil {
		return err
	}
	if hasVoxels {
		vCount, err := r.VecCount()
		if err != nil {
			return err
		}
		ob.VoxelGroup = make([]VoxelCell, 0, vCount)
		for i := uint32(0); i < vCount; i++ {
			p, err := wire.ReadVec3I32(r)
			if err != nil {
				return err
			}
			idx, err := r.U32()
			if err != nil {
				return err
			}
			ob.VoxelGroup = append(ob.VoxelGroup, VoxelCell{Pos: p, MaterialIndex: idx})
		}
	}
	content, err := r.StringCapped(wire.MaxNameLen)
	if err != nil {
		return err
	}
	ob.Content = content
	return nil
}

func encodeAvatarRecord(w *wire.Writer, av *Avatar) {
	w.U64(uint64(av.UID))
	w.U64(uint64(av.OwnerUserID))
	w.String(av.Name)
	w.String(av.ModelURL)
	av.Pos.WriteTo(w)
	av.Rotation.WriteTo(w)
	w.U64(uint64(av.SelectedObjectUID))
}

func decodeAvatarRecord(r *wire.Reader) (Avatar, error) {
	var av Avatar
	uid, err := r.U64()
	if err != nil {
		return av, err
	}
	av.UID = UID(uid)
	owner, err := r.U64()
	if err != nil {
		return av, err
	}
	av.OwnerUserID = UserID(owner)
	name, err := r.StringCapped(wire.MaxNameLen)
	if err != nil {
		return av, err
	}
	av.Name = name
	modelURL, err := r.StringCapped(wire.MaxURLLen)
	if err != nil {
		return av, err
	}
	av.ModelURL = modelURL
	pos, err := wire.ReadVec3F64(r)
	if err != nil {
		return av, err
	}
	av.Pos = pos
	rot, err := wire.ReadVec3F32(r)
	if err != nil {
		return av, err
	}
	av.Rotation = rot
	sel, err := r.U64()
	if err != nil {
		return av, err
	}
	av.SelectedObjectUID = UID(sel)
	return av, nil
}

func framed(kind uint32, fn func(w *wire.Writer)) Packet {
	buf := wire.GetBuffer()
	w := wire.NewWriter(buf)
	w.U32(kind)
	fn(w)
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	wire.PutBuffer(buf)
	return Packet{Kind: kind, Bytes: out}
}

func EncodeObjectCreated(ob *Object) Packet {
	return framed(wire.KindObjectCreated, func(w *wire.Writer) { encodeObjectRecord(w, ob) })
}

func EncodeObjectFullUpdate(ob *Object) Packet {
	return framed(wire.KindObjectFullUpdate, func(w *wire.Writer) { encodeObjectRecord(w, ob) })
}

func EncodeObjectTransformUpdate(ob *Object) Packet {
	return framed(wire.KindObjectTransformUpdate, func(w *wire.Writer) {
		w.U64(uint64(ob.UID))
		ob.Transform.Pos.WriteTo(w)
		ob.Transform.Axis.WriteTo(w)
		w.F32(ob.Transform.Angle)
	})
}

func EncodeObjectDestroyed(uid UID) Packet {
	return framed(wire.KindObjectDestroyed, func(w *wire.Writer) { w.U64(uint64(uid)) })
}

func EncodeAvatarCreated(av *Avatar) Packet {
	return framed(wire.KindAvatarCreated, func(w *wire.Writer) {
		w.U64(uint64(av.UID))
		w.String(av.Name)
		w.String(av.ModelURL)
		av.Pos.WriteTo(w)
		av.Rotation.WriteTo(w)
	})
}

func EncodeAvatarFullUpdate(av *Avatar) Packet {
	return framed(wire.KindAvatarFullUpdate, func(w *wire.Writer) { encodeAvatarRecord(w, av) })
}

func EncodeAvatarTransformUpdate(av *Avatar) Packet {
	return framed(wire.KindAvatarTransformUpdate, func(w *wire.Writer) {
		w.U64(uint64(av.UID))
		av.Pos.WriteTo(w)
		av.Rotation.WriteTo(w)
	})
}

func EncodeAvatarDestroyed(uid UID) Packet {
	return framed(wire.KindAvatarDestroyed, func(w *wire.Writer) { w.U64(uint64(uid)) })
}

func EncodeTimeSync(serverTime float64) Packet {
	return framed(wire.KindTimeSyncMessage, func(w *wire.Writer) { w.F64(serverTime) })
}

func EncodeErrorMessage(kind string, reason string) Packet {
	return framed(wire.KindErrorMessage, func(w *wire.Writer) {
		w.String(kind)
		w.String(reason)
	})
}

// ---- client-sourced mutation requests (C->S mirror kinds) ----

// ObjectCreateRequest is the payload of a client's create request: the same
// record shape as a full Object but without server-assigned fields.
type ObjectCreateRequest struct {
	Type      ObjectType
	Transform Transform
	ModelURL  string
	Materials []Material
	VoxelGroup []VoxelCell
	Content   string
}

// EncodeObjectCreateRequest is used by tests to simulate a client-sourced
// create packet; the real server never emits this kind.
func EncodeObjectCreateRequest(req ObjectCreateRequest) Packet {
	ob := Object{
		Type:       req.Type,
		Transform:  req.Transform,
		ModelURL:   req.ModelURL,
		Materials:  req.Materials,
		VoxelGroup: req.VoxelGroup,
		Content:    req.Content,
	}
	return framed(wire.KindObjectCreateRequest, func(w *wire.Writer) { encodeObjectCore(w, &ob) })
}

func DecodeObjectCreateRequest(r *wire.Reader) (ObjectCreateRequest, error) {
	var ob Object
	if err := decodeObjectCore(r, &ob); err != nil {
		return ObjectCreateRequest{}, err
	}
	return ObjectCreateRequest{
		Type:       ob.Type,
		Transform:  ob.Transform,
		ModelURL:   ob.ModelURL,
		Materials:  ob.Materials,
		VoxelGroup: ob.VoxelGroup,
		Content:    ob.Content,
	}, nil
}

type ObjectUpdateRequest struct {
	UID   UID
	Patch ObjectPatch
}

// EncodeObjectUpdateRequest is used by tests to simulate a client-sourced
// update packet.
func EncodeObjectUpdateRequest(uid UID, patch ObjectPatch) Packet {
	return framed(wire.KindObjectUpdateRequest, func(w *wire.Writer) {
		w.U64(uint64(uid))
		transformOnly := !patch.touchesOther()
		w.Bool(transformOnly)
		var t Transform
		if patch.Transform != nil {
			t = *patch.Transform
		}
		t.Pos.WriteTo(w)
		t.Axis.WriteTo(w)
		w.F32(t.Angle)
		t.Scale.WriteTo(w)
		if !transformOnly {
			if patch.ModelURL != nil {
				w.String(*patch.ModelURL)
			} else {
				w.String("")
			}
			if patch.Content != nil {
				w.String(*patch.Content)
			} else {
				w.String("")
			}
		}
	})
}

func DecodeObjectUpdateRequest(r *wire.Reader) (ObjectUpdateRequest, error) {
	uid, err := r.U64()
	if err != nil {
		return ObjectUpdateRequest{}, err
	}
	transformOnly, err := r.Bool()
	if err != nil {
		return ObjectUpdateRequest{}, err
	}
	pos, err := wire.ReadVec3F64(r)
	if err != nil {
		return ObjectUpdateRequest{}, err
	}
	axis, err := wire.ReadVec3F32(r)
	if err != nil {
		return ObjectUpdateRequest{}, err
	}
	angle, err := r.F32()
	if err != nil {
		return ObjectUpdateRequest{}, err
	}
	scale, err := wire.ReadVec3F32(r)
	if err != nil {
		return ObjectUpdateRequest{}, err
	}
	t := Transform{Pos: pos, Axis: axis, Angle: angle, Scale: scale}

	patch := ObjectPatch{Transform: &t}
	if !transformOnly {
		modelURL, err := r.StringCapped(wire.MaxURLLen)
		if err != nil {
			return ObjectUpdateRequest{}, err
		}
		content, err := r.StringCapped(wire.MaxNameLen)
		if err != nil {
			return ObjectUpdateRequest{}, err
		}
		patch.ModelURL = &modelURL
		patch.Content = &content
	}
	return ObjectUpdateRequest{UID: UID(uid), Patch: patch}, nil
}

type ObjectDestroyRequest struct {
	UID UID
}

func EncodeObjectDestroyRequest(uid UID) Packet {
	return framed(wire.KindObjectDestroyRequest, func(w *wire.Writer) { w.U64(uint64(uid)) })
}

func DecodeObjectDestroyRequest(r *wire.Reader) (ObjectDestroyRequest, error) {
	uid, err := r.U64()
	if err != nil {
		return ObjectDestroyRequest{}, err
	}
	return ObjectDestroyRequest{UID: UID(uid)}, nil
}

type AvatarTransformRequest struct {
	Pos      wire.Vec3F64
	Rotation wire.Vec3F32
}

func EncodeAvatarTransformRequest(req AvatarTransformRequest) Packet {
	return framed(wire.KindAvatarTransformRequest, func(w *wire.Writer) {
		req.Pos.WriteTo(w)
		req.Rotation.WriteTo(w)
	})
}

func DecodeAvatarTransformRequest(r *wire.Reader) (AvatarTransformRequest, error) {
	pos, err := wire.ReadVec3F64(r)
	if err != nil {
		return AvatarTransformRequest{}, err
	}
	rot, err := wire.ReadVec3F32(r)
	if err != nil {
		return AvatarTransformRequest{}, err
	}
	return AvatarTransformRequest{Pos: pos, Rotation: rot}, nil
}

// ---- handshake ----

const (
	ProtocolMagic   uint32 = 0x43595331 // "CYS1"
	ProtocolVersion uint32 = 1
)

type Hello struct {
	Magic   uint32
	Version uint32
}

func DecodeHello(r *wire.Reader) (Hello, error) {
	magic, err := r.U32()
	if err != nil {
		return Hello{}, err
	}
	version, err := r.U32()
	if err != nil {
		return Hello{}, err
	}
	return Hello{Magic: magic, Version: version}, nil
}

func EncodeHello() Packet {
	return framed(wire.KindHello, func(w *wire.Writer) {
		w.U32(ProtocolMagic)
		w.U32(ProtocolVersion)
	})
}

type AuthRequest struct {
	Username string
	Password string
}

func EncodeAuthRequest(username, password string) Packet {
	return framed(wire.KindAuthRequest, func(w *wire.Writer) {
		w.String(username)
		w.String(password)
	})
}

func DecodeAuthRequest(r *wire.Reader) (AuthRequest, error) {
	user, err := r.StringCapped(wire.MaxNameLen)
	if err != nil {
		return AuthRequest{}, err
	}
	pass, err := r.StringCapped(wire.MaxNameLen)
	if err != nil {
		return AuthRequest{}, err
	}
	return AuthRequest{Username: user, Password: pass}, nil
}

func EncodeAuthResponse(ok bool, assignedAvatarUID UID, reason string) Packet {
	return framed(wire.KindAuthResponse, func(w *wire.Writer) {
		w.Bool(ok)
		w.U64(uint64(assignedAvatarUID))
		w.String(reason)
	})
}

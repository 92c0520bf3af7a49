package world

import "cyberspace/wire"

// The functions in this file serialize the full persisted record for each
// entity kind — including lifecycle and dirty-flag state, which the wire
// message packets in codec.go never carry since a message's *kind* already
// implies that state. This is the on-disk snapshot format referenced by
// package store; it is versioned independently of the stream protocol.

func EncodeObjectSnapshot(w *wire.Writer, ob *Object) {
	encodeObjectRecord(w, ob)
	w.U32(uint32(ob.Lifecycle))
	w.Bool(ob.FromRemoteOtherDirty)
	w.Bool(ob.FromRemoteTransformDirty)
}

func DecodeObjectSnapshot(r *wire.Reader, formatVersion uint32) (Object, error) {
	ob, err := decodeObjectRecord(r)
	if err != nil {
		return ob, err
	}
	lifecycle, err := r.U32()
	if err != nil {
		return ob, err
	}
	ob.Lifecycle = LifecycleState(lifecycle)
	if ob.FromRemoteOtherDirty, err = r.Bool(); err != nil {
		return ob, err
	}
	if ob.FromRemoteTransformDirty, err = r.Bool(); err != nil {
		return ob, err
	}
	return ob, nil
}

func EncodeAvatarSnapshot(w *wire.Writer, av *Avatar) {
	encodeAvatarRecord(w, av)
	w.U32(uint32(av.Lifecycle))
	w.Bool(av.OtherDirty)
	w.Bool(av.TransformDirty)
}

func DecodeAvatarSnapshot(r *wire.Reader, formatVersion uint32) (Avatar, error) {
	av, err := decodeAvatarRecord(r)
	if err != nil {
		return av, err
	}
	lifecycle, err := r.U32()
	if err != nil {
		return av, err
	}
	av.Lifecycle = LifecycleState(lifecycle)
	if av.OtherDirty, err = r.Bool(); err != nil {
		return av, err
	}
	if av.TransformDirty, err = r.Bool(); err != nil {
		return av, err
	}
	return av, nil
}

func EncodeParcelSnapshot(w *wire.Writer, p *Parcel) {
	w.U64(uint64(p.ID))
	w.U64(uint64(p.OwnerUserID))
	w.U32(uint32(len(p.AdminUserIDs)))
	for _, id := range p.AdminUserIDs {
		w.U64(uint64(id))
	}
	w.U32(uint32(len(p.WriterUserIDs)))
	for _, id := range p.WriterUserIDs {
		w.U64(uint64(id))
	}
	w.Bool(p.AllWriteable)
	for _, v := range p.Verts {
		v.WriteTo(w)
	}
	w.F64(p.ZBoundsMin)
	w.F64(p.ZBoundsMax)
	w.F64(float64(p.CreatedTime.Unix()))
	w.String(p.Description)
	w.U32(uint32(p.Lifecycle))
}

func DecodeParcelSnapshot(r *wire.Reader, formatVersion uint32) (Parcel, error) {
	var p Parcel
	id, err := r.U64()
	if err != nil {
		return p, err
	}
	p.ID = ParcelID(id)
	owner, err := r.U64()
	if err != nil {
		return p, err
	}
	p.OwnerUserID = UserID(owner)

	adminCount, err := r.VecCount()
	if err != nil {
		return p, err
	}
	p.AdminUserIDs = make([]UserID, 0, adminCount)
	for i := uint32(0); i < adminCount; i++ {
		v, err := r.U64()
		if err != nil {
			return p, err
		}
		p.AdminUserIDs = append(p.AdminUserIDs, UserID(v))
	}

	writerCount, err := r.VecCount()
	if err != nil {
		return p, err
	}
	p.WriterUserIDs = make([]UserID, 0, writerCount)
	for i := uint32(0); i < writerCount; i++ {
		v, err := r.U64()
		if err != nil {
			return p, err
		}
		p.WriterUserIDs = append(p.WriterUserIDs, UserID(v))
	}

	if p.AllWriteable, err = r.Bool(); err != nil {
		return p, err
	}
	for i := range p.Verts {
		v, err := wire.ReadVec2F64(r)
		if err != nil {
			return p, err
		}
		p.Verts[i] = v
	}
	if p.ZBoundsMin, err = r.F64(); err != nil {
		return p, err
	}
	if p.ZBoundsMax, err = r.F64(); err != nil {
		return p, err
	}
	ct, err := r.F64()
	if err != nil {
		return p, err
	}
	p.CreatedTime = unixSeconds(ct)
	desc, err := r.StringCapped(wire.MaxNameLen)
	if err != nil {
		return p, err
	}
	p.Description = desc
	lifecycle, err := r.U32()
	if err != nil {
		return p, err
	}
	p.Lifecycle = LifecycleState(lifecycle)
	return p, nil
}

func EncodeUserSnapshot(w *wire.Writer, u *User) {
	w.U64(uint64(u.ID))
	w.String(u.Name)
	w.String(u.PasswordHashWithSalt)
	w.String(u.Email)
	w.F64(float64(u.CreatedTime.Unix()))
}

func DecodeUserSnapshot(r *wire.Reader, formatVersion uint32) (User, error) {
	var u User
	id, err := r.U64()
	if err != nil {
		return u, err
	}
	u.ID = UserID(id)
	name, err := r.StringCapped(wire.MaxNameLen)
	if err != nil {
		return u, err
	}
	u.Name = name
	hash, err := r.StringCapped(wire.MaxNameLen)
	if err != nil {
		return u, err
	}
	u.PasswordHashWithSalt = hash
	email, err := r.StringCapped(wire.MaxNameLen)
	if err != nil {
		return u, err
	}
	u.Email = email
	ct, err := r.F64()
	if err != nil {
		return u, err
	}
	u.CreatedTime = unixSeconds(ct)
	return u, nil
}

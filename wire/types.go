package wire

// Vec2F64, Vec3F64, Vec3F32 are the shared geometry primitives serialized
// identically in both the stream protocol and the snapshot format.

type Vec2F64 struct{ X, Y float64 }

type Vec3F64 struct{ X, Y, Z float64 }

type Vec3F32 struct{ X, Y, Z float32 }

type Vec3I32 struct{ X, Y, Z int32 }

func (v Vec2F64) WriteTo(w *Writer) {
	w.F64(v.X)
	w.F64(v.Y)
}

func ReadVec2F64(r *Reader) (Vec2F64, error) {
	x, err := r.F64()
	if err != nil {
		return Vec2F64{}, err
	}
	y, err := r.F64()
	if err != nil {
		return Vec2F64{}, err
	}
	return Vec2F64{X: x, Y: y}, nil
}

func (v Vec3F64) WriteTo(w *Writer) {
	w.F64(v.X)
	w.F64(v.Y)
	w.F64(v.Z)
}

func ReadVec3F64(r *Reader) (Vec3F64, error) {
	x, err := r.F64()
	if err != nil {
		return Vec3F64{}, err
	}
	y, err := r.F64()
	if err != nil {
		return Vec3F64{}, err
	}
	z, err := r.F64()
	if err != nil {
		return Vec3F64{}, err
	}
	return Vec3F64{X: x, Y: y, Z: z}, nil
}

func (v Vec3F32) WriteTo(w *Writer) {
	w.F32(v.X)
	w.F32(v.Y)
	w.F32(v.Z)
}

func ReadVec3F32(r *Reader) (Vec3F32, error) {
	x, err := r.F32()
	if err != nil {
		return Vec3F32{}, err
	}
	y, err := r.F32()
	if err != nil {
		return Vec3F32{}, err
	}
	z, err := r.F32()
	if err != nil {
		return Vec3F32{}, err
	}
	return Vec3F32{X: x, Y: y, Z: z}, nil
}

func (v Vec3I32) WriteTo(w *Writer) {
	w.I32(v.X)
	w.I32(v.Y)
	w.I32(v.Z)
}

func ReadVec3I32(r *Reader) (Vec3I32, error) {
	x, err := r.I32()
	if err != nil {
		return Vec3I32{}, err
	}
	y, err := r.I32()
	if err != nil {
		return Vec3I32{}, err
	}
	z, err := r.I32()
	if err != nil {
		return Vec3I32{}, err
	}
	return Vec3I32{X: x, Y: y, Z: z}, nil
}

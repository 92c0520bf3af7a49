package store

import (
	"cyberspace/apperr"
	"cyberspace/resource"
	"cyberspace/wire"
)

func errNewerResourceVersion(version uint32) error {
	return apperr.Newf(apperr.Malformed, "resource record version %d is newer than supported %d", version, resourceRecordVersion)
}

// encodeResourceSnapshot mirrors the original implementation's versioned
// resource record: local_path was introduced at format v2, state at v3.
// This implementation only ever writes the current version, but the field
// ordering below is kept stable so a future version can still gate reads.
func encodeResourceSnapshot(w *wire.Writer, r *resource.Resource) {
	w.U32(resourceRecordVersion)
	w.String(r.URL)
	w.String(r.LocalPath)
	w.U64(r.OwnerUserID)
	w.U32(uint32(r.State))
}

func decodeResourceSnapshot(r *wire.Reader) (resource.Resource, error) {
	var res resource.Resource
	version, err := r.U32()
	if err != nil {
		return res, err
	}
	if version > resourceRecordVersion {
		return res, errNewerResourceVersion(version)
	}
	url, err := r.StringCapped(wire.MaxURLLen)
	if err != nil {
		return res, err
	}
	res.URL = url

	if version >= 2 {
		localPath, err := r.StringCapped(wire.MaxURLLen)
		if err != nil {
			return res, err
		}
		res.LocalPath = localPath
	}

	owner, err := r.U64()
	if err != nil {
		return res, err
	}
	res.OwnerUserID = owner

	if version >= 3 {
		state, err := r.U32()
		if err != nil {
			return res, err
		}
		res.State = resource.State(state)
	}
	return res, nil
}

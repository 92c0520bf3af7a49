package world

// CheckObjectMutation implements the single permission rule for every
// inbound object mutation (§4.E): an object may be mutated by its owner, by
// a user with admin/writer role on a parcel whose footprint contains the
// object, or by any user if that parcel is all_writeable. There is
// deliberately one code path here for both direct object updates and
// parcel-mediated ones — the source this was distilled from applied these
// checks inconsistently across the two, which this implementation does not
// repeat.
func (w *World) CheckObjectMutation(userID UserID, ob *Object) bool {
	if ob.OwnerUserID == userID {
		return true
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.parcels {
		if p.Lifecycle == Dead {
			continue
		}
		if !p.Contains(ob.Transform.Pos.X, ob.Transform.Pos.Y) {
			continue
		}
		if p.AllWriteable {
			return true
		}
		if containsUserID(p.AdminUserIDs, userID) || containsUserID(p.WriterUserIDs, userID) {
			return true
		}
	}
	return false
}

func containsUserID(ids []UserID, id UserID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

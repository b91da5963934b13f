package streams

// IDSet is the set of stream ids seen by a poll cycle.
type IDSet map[string]struct{}

// IDsOf collects the ids present in a snapshot.
func IDsOf(s Snapshot) IDSet {
	ids := make(IDSet, len(s))
	for _, r := range s {
		ids[r.ID] = struct{}{}
	}
	return ids
}

// Has reports whether id is in the set. A nil set contains nothing.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// NewlyLive returns the records of cur whose id was not in prev, in snapshot
// order. An id repeated within cur is returned once. With an empty prev every
// record is newly live, so a cold start announces everything currently live.
func NewlyLive(prev IDSet, cur Snapshot) []Record {
	var out []Record
	seen := make(map[string]struct{}, len(cur))
	for _, r := range cur {
		if prev.Has(r.ID) {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

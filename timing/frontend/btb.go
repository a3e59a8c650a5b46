package frontend

// presenceTable is a direct-mapped tag array of branch PCs that have
// resolved taken. A fetch-time miss means no target would be available, so
// a taken prediction cannot be followed.
type presenceTable struct {
	tags  []uint64
	valid []bool
	mask  uint64
}

func newPresenceTable(size uint32) presenceTable {
	if size == 0 {
		return presenceTable{}
	}
	return presenceTable{
		tags:  make([]uint64, size),
		valid: make([]bool, size),
		mask:  uint64(size - 1),
	}
}

func (t *presenceTable) enabled() bool {
	return len(t.tags) > 0
}

// index computes the entry for a given PC.
func (t *presenceTable) index(pc uint64) uint64 {
	// 4-byte aligned instructions
	return (pc >> 2) & t.mask
}

// hit reports whether pc is present. A disabled table always hits.
func (t *presenceTable) hit(pc uint64) bool {
	if !t.enabled() {
		return true
	}
	idx := t.index(pc)
	return t.valid[idx] && t.tags[idx] == pc
}

func (t *presenceTable) insert(pc uint64) {
	if !t.enabled() {
		return
	}
	idx := t.index(pc)
	t.tags[idx] = pc
	t.valid[idx] = true
}

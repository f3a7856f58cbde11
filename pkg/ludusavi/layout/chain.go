package layout

import "github.com/Hukadan/ludusavi/pkg/ludusavi/types"

// StoredEntry pairs a recorded content entry with the generation whose
// container actually holds the content.
type StoredEntry struct {
	types.ContentEntry

	// Container is the backup id that last wrote this path.
	Container string
}

// effectiveState computes the chain overlay for the generation with the
// given id: starting from the nearest full backup at or before it, each
// later generation's recorded entries overwrite and its deletion markers
// remove, in chronological order. It reports false when the id is not in
// the chain.
func effectiveState(chain []types.Backup, targetID string) (files, reg map[string]StoredEntry, ok bool) {
	target := -1
	for i := range chain {
		if chain[i].ID == targetID {
			target = i
			break
		}
	}
	if target < 0 {
		return nil, nil, false
	}

	start := target
	for start > 0 && chain[start].Kind != types.BackupKindFull {
		start--
	}

	files = make(map[string]StoredEntry)
	reg = make(map[string]StoredEntry)
	for i := start; i <= target; i++ {
		b := chain[i]
		for p, e := range b.Files {
			files[p] = StoredEntry{ContentEntry: e, Container: b.ID}
		}
		for _, p := range b.Deleted {
			delete(files, p)
		}
		for p, e := range b.Registry {
			reg[p] = StoredEntry{ContentEntry: e, Container: b.ID}
		}
		for _, p := range b.DeletedRegistry {
			delete(reg, p)
		}
	}
	return files, reg, true
}

package layout

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Hukadan/ludusavi/pkg/ludusavi/archive"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/paths"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/registry"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/types"
)

// registrySnapshotName is the container entry holding a generation's
// registry data.
const registrySnapshotName = "registry.yaml"

// GameLayout is one game's storage directory and index. A GameLayout is
// owned by a single task for the duration of a run; it is not safe for
// concurrent use.
type GameLayout struct {
	layout  *BackupLayout
	name    string
	dir     string
	mapping *Mapping
}

// Name returns the game name.
func (g *GameLayout) Name() string { return g.name }

// Dir returns the game's storage directory.
func (g *GameLayout) Dir() string { return g.dir }

func (g *GameLayout) load() *Mapping {
	if g.mapping != nil {
		return g.mapping
	}
	m, err := loadMapping(filepath.Join(g.dir, mappingFile))
	if err != nil {
		m = &Mapping{Name: g.name}
	}
	g.mapping = m
	return m
}

// Backups returns the stored chain in creation order, oldest first.
func (g *GameLayout) Backups() []types.Backup {
	return g.load().Backups
}

// LatestBackup returns the newest generation, or nil when the game has no
// stored backups.
func (g *GameLayout) LatestBackup() *types.Backup {
	chain := g.load().Backups
	if len(chain) == 0 {
		return nil
	}
	b := chain[len(chain)-1]
	return &b
}

// FindBackup resolves a backup id against the chain. The latest sentinel
// selects the newest generation. It returns nil when the id names no stored
// generation.
func (g *GameLayout) FindBackup(id types.BackupID) *types.Backup {
	if id.IsLatest() {
		return g.LatestBackup()
	}
	for _, b := range g.load().Backups {
		if b.ID == id.Name {
			return &b
		}
	}
	return nil
}

// SetComment attaches a comment to a stored generation and persists the
// index. It fails when the id names no stored generation.
func (g *GameLayout) SetComment(id types.BackupID, comment string) error {
	m := g.load()
	for i := range m.Backups {
		if (id.IsLatest() && i == len(m.Backups)-1) || m.Backups[i].ID == id.Name {
			m.Backups[i].Comment = comment
			return m.save(filepath.Join(g.dir, mappingFile))
		}
	}
	return fmt.Errorf("no backup %q for %s", id.Name, g.name)
}

// EffectiveState reconstructs the file and registry state of the generation
// with the given id via the chain overlay.
func (g *GameLayout) EffectiveState(id string) (files, reg map[string]StoredEntry, ok bool) {
	return effectiveState(g.load().Backups, id)
}

// RegistrySnapshot reads the registry data stored in one generation's
// container.
func (g *GameLayout) RegistrySnapshot(id string) (registry.Entries, error) {
	path, err := archive.Find(g.dir, id)
	if err != nil {
		return nil, err
	}
	r, err := archive.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	rc, err := r.Open(registrySnapshotName)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return registry.ParseEntries(data)
}

// errHashUnavailable marks files whose content hash could not be computed
// during the scan.
var errHashUnavailable = errors.New("content hash unavailable")

// BackUp stores the scanned state as a new generation. It decides full
// versus differential, writes changed content into a fresh container,
// appends the generation to the index, and applies retention pruning. With
// merge false any existing chain is discarded first. Per-item write failures
// are recorded in the returned BackupInfo; the error return covers only
// systemic failures (index or container creation).
func (g *GameLayout) BackUp(scan *types.ScanInfo, client registry.Client, merge bool, now time.Time) (*types.BackupInfo, error) {
	info := types.NewBackupInfo()

	if !merge {
		if err := os.RemoveAll(g.dir); err != nil {
			return info, fmt.Errorf("clear game directory: %w", err)
		}
		g.mapping = nil
	}
	m := g.load()

	// Current desired file state, by portable path. Files whose hash could
	// not be computed are reported as failed but still count as present,
	// so a differential generation does not mark them deleted.
	current := make(map[string]types.ScannedFile)
	for _, f := range scan.Files {
		if f.Ignored {
			continue
		}
		if f.Hash == "" {
			info.FailFile(f.Path, errHashUnavailable)
		}
		current[paths.ToPortable(f.Path)] = f
	}

	// Current registry state, exported live. Each declared key is
	// captured together with its descendant keys.
	liveReg := registry.Entries{}
	if client != nil && client.Supported() {
		for _, r := range scan.SortedRegistry() {
			if r.Ignored {
				continue
			}
			if err := exportSubtree(client, r.Path, liveReg); err != nil {
				info.FailRegistry(r.Path, err)
			}
		}
	}

	full := g.needsFull(m.Backups)

	filesToWrite := make(map[string]types.ScannedFile)
	regToWrite := registry.Entries{}
	var deleted, deletedReg []string

	if full {
		for p, f := range current {
			filesToWrite[p] = f
		}
		for p, k := range liveReg {
			regToWrite[p] = k
		}
	} else {
		prev := m.Backups[len(m.Backups)-1]
		prevFiles, prevReg, _ := effectiveState(m.Backups, prev.ID)

		for p, f := range current {
			if f.Hash == "" {
				continue
			}
			if old, ok := prevFiles[p]; !ok || old.Hash != f.Hash {
				filesToWrite[p] = f
			}
		}
		for p := range prevFiles {
			if _, ok := current[p]; !ok {
				deleted = append(deleted, p)
			}
		}

		for p, k := range liveReg {
			hash, _ := liveReg.Sum(p)
			if old, ok := prevReg[p]; !ok || old.Hash != hash {
				regToWrite[p] = k
			}
		}
		for p := range prevReg {
			if _, ok := liveReg[p]; !ok {
				deletedReg = append(deletedReg, p)
			}
		}

		if len(filesToWrite) == 0 && len(regToWrite) == 0 &&
			len(deleted) == 0 && len(deletedReg) == 0 {
			// Nothing changed since the previous generation.
			return info, nil
		}
	}
	sort.Strings(deleted)
	sort.Strings(deletedReg)

	kind := types.BackupKindDifferential
	if full {
		kind = types.BackupKindFull
	}
	backup := types.Backup{
		ID:              newBackupID(now, m.Backups),
		Kind:            kind,
		When:            now.UTC(),
		Format:          string(g.layout.settings.Format),
		Files:           make(map[string]types.ContentEntry),
		Registry:        make(map[string]types.ContentEntry),
		Deleted:         deleted,
		DeletedRegistry: deletedReg,
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return info, fmt.Errorf("create game directory: %w", err)
	}
	w, err := archive.NewWriter(g.dir, backup.ID, g.layout.settings)
	if err != nil {
		return info, err
	}

	for _, p := range sortedKeys(filesToWrite) {
		f := filesToWrite[p]
		if f.Hash == "" {
			continue
		}
		if err := writeFile(w, p, f.Path); err != nil {
			info.FailFile(f.Path, err)
			continue
		}
		backup.Files[p] = types.ContentEntry{Hash: f.Hash, Size: f.Size}
	}

	if len(regToWrite) > 0 {
		data, err := regToWrite.Serialize()
		if err == nil {
			err = w.Write(registrySnapshotName, bytes.NewReader(data))
		}
		if err != nil {
			for p := range regToWrite {
				info.FailRegistry(p, err)
			}
		} else {
			for p := range regToWrite {
				hash, size := regToWrite.Sum(p)
				backup.Registry[p] = types.ContentEntry{Hash: hash, Size: size}
			}
		}
	}

	if err := w.Close(); err != nil {
		return info, fmt.Errorf("finalize backup container: %w", err)
	}

	m.Backups = append(m.Backups, backup)
	g.prune(m)
	if err := m.save(filepath.Join(g.dir, mappingFile)); err != nil {
		return info, err
	}
	return info, nil
}

// exportSubtree captures a key and all of its descendant keys into dst. A
// missing root key captures nothing and is not an error.
func exportSubtree(client registry.Client, root string, dst registry.Entries) error {
	queue := []string{root}
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]

		key, err := client.Export(path)
		if err != nil {
			return err
		}
		if key == nil {
			continue
		}
		dst[path] = key

		children, err := client.Enumerate(path)
		if err != nil {
			return err
		}
		queue = append(queue, children...)
	}
	return nil
}

// needsFull decides whether the next generation starts a fresh chain: always
// when no full backup exists, and whenever differential generations are
// disabled by retention.
func (g *GameLayout) needsFull(chain []types.Backup) bool {
	if g.layout.retention.Differential <= 0 {
		return true
	}
	for _, b := range chain {
		if b.Kind == types.BackupKindFull {
			return false
		}
	}
	return true
}

// prune applies retention: oldest-first over full backups beyond the limit,
// cascading removal of the differential generations that depend on them,
// then oldest-first over differential backups beyond the limit. A full
// backup is never removed while a retained differential depends on it.
func (g *GameLayout) prune(m *Mapping) {
	r := g.layout.retention

	for countKind(m.Backups, types.BackupKindFull) > r.Full {
		// Remove the oldest full and its dependent run of differentials.
		end := 1
		for end < len(m.Backups) && m.Backups[end].Kind != types.BackupKindFull {
			end++
		}
		for _, b := range m.Backups[:end] {
			_ = archive.Remove(g.dir, b.ID)
		}
		m.Backups = append([]types.Backup{}, m.Backups[end:]...)
	}

	for countKind(m.Backups, types.BackupKindDifferential) > r.Differential {
		for i, b := range m.Backups {
			if b.Kind == types.BackupKindDifferential {
				_ = archive.Remove(g.dir, b.ID)
				m.Backups = append(m.Backups[:i:i], m.Backups[i+1:]...)
				break
			}
		}
	}
}

func countKind(chain []types.Backup, kind types.BackupKind) int {
	n := 0
	for _, b := range chain {
		if b.Kind == kind {
			n++
		}
	}
	return n
}

// newBackupID derives a unique id from the timestamp.
func newBackupID(now time.Time, chain []types.Backup) string {
	base := "backup-" + now.UTC().Format("20060102T150405Z")
	id := base
	for n := 2; ; n++ {
		taken := false
		for _, b := range chain {
			if b.ID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

func writeFile(w archive.Writer, portable, source string) error {
	f, err := os.Open(filepath.FromSlash(source))
	if err != nil {
		return err
	}
	defer f.Close()
	return w.Write(portable, f)
}

func sortedKeys(m map[string]types.ScannedFile) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Restore writes the selected generation's effective state back to its
// original locations, applying redirect rules in the restore direction.
// Per-item failures are recorded without aborting the game.
func (g *GameLayout) Restore(scan *types.ScanInfo, rules []paths.RedirectRule, client registry.Client) *types.BackupInfo {
	info := types.NewBackupInfo()
	if scan.Backup == nil {
		return info
	}

	readers := make(map[string]archive.Reader)
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()
	openContainer := func(id string) (archive.Reader, error) {
		if r, ok := readers[id]; ok {
			return r, nil
		}
		path, err := archive.Find(g.dir, id)
		if err != nil {
			return nil, err
		}
		r, err := archive.OpenReader(path)
		if err != nil {
			return nil, err
		}
		readers[id] = r
		return r, nil
	}

	for _, f := range scan.SortedFiles() {
		if f.Ignored {
			continue
		}
		target := paths.Redirect(f.OriginalPath, rules, true)
		if err := g.restoreFile(openContainer, f, target); err != nil {
			info.FailFile(f.EffectivePath(), err)
		}
	}

	snapshots := make(map[string]registry.Entries)
	for _, r := range scan.SortedRegistry() {
		if r.Ignored {
			continue
		}
		if client == nil || !client.Supported() {
			info.FailRegistry(r.Path, registry.ErrUnsupported)
			continue
		}
		entries, ok := snapshots[r.Container]
		if !ok {
			var err error
			entries, err = g.RegistrySnapshot(r.Container)
			if err != nil {
				info.FailRegistry(r.Path, err)
				continue
			}
			snapshots[r.Container] = entries
		}
		key, ok := entries[r.Path]
		if !ok {
			info.FailRegistry(r.Path, fmt.Errorf("key missing from stored snapshot"))
			continue
		}
		if err := client.Import(r.Path, key); err != nil {
			info.FailRegistry(r.Path, err)
		}
	}
	return info
}

func (g *GameLayout) restoreFile(open func(string) (archive.Reader, error), f types.ScannedFile, target string) error {
	r, err := open(f.Container)
	if err != nil {
		return err
	}
	rc, err := r.Open(paths.ToPortable(f.OriginalPath))
	if err != nil {
		return err
	}
	defer rc.Close()

	dest := filepath.FromSlash(target)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

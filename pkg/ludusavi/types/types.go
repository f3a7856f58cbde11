// Package types provides the core data types shared by the scan engine,
// backup layout, duplicate detector, and orchestrator: scanned entries,
// per-operation results, stored backup records, and aggregate status.
package types

import (
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Hukadan/ludusavi/pkg/ludusavi/manifest"
)

// Root is one directory to scan, tagged with the store that owns it.
type Root struct {
	Path  string         `yaml:"path" mapstructure:"path"`
	Store manifest.Store `yaml:"store" mapstructure:"store"`
}

// Retention limits how many backup generations are kept per game.
type Retention struct {
	Full         int `yaml:"full" mapstructure:"full"`
	Differential int `yaml:"differential" mapstructure:"differential"`
}

// ScannedFile is one concrete file matched during a scan.
type ScannedFile struct {
	// Path is where the file currently lives: the original location in
	// backup mode, or the stored copy in restore mode.
	Path string

	// Size in bytes.
	Size int64

	// Hash is the hex content hash, empty if hashing failed.
	Hash string

	// OriginalPath is the pre-redirect source location; only set in
	// restore mode, where Path points into the backup storage.
	OriginalPath string

	// Ignored marks a file the user toggled off; it is reported but not
	// backed up or restored.
	Ignored bool

	// Container identifies the stored backup generation holding this
	// file's content, when the file came from backup storage.
	Container string
}

// EffectivePath returns the path the user cares about: the original location
// when known, otherwise the scanned path.
func (f ScannedFile) EffectivePath() string {
	if f.OriginalPath != "" {
		return f.OriginalPath
	}
	return f.Path
}

// ScannedRegistry is one registry key matched during a scan.
type ScannedRegistry struct {
	Path    string
	Ignored bool

	// Container identifies the stored backup generation whose registry
	// snapshot holds this key, when the key came from backup storage.
	Container string
}

// ScanChange classifies a game's scan relative to its latest stored backup.
type ScanChange string

// Scan change classifications.
const (
	ScanChangeNew       ScanChange = "new"
	ScanChangeDifferent ScanChange = "different"
	ScanChangeSame      ScanChange = "same"
	ScanChangeUnknown   ScanChange = "unknown"
)

// ScanInfo is the result of scanning one game, in either direction.
type ScanInfo struct {
	GameName string

	// Files and Registry are keyed by path.
	Files    map[string]ScannedFile
	Registry map[string]ScannedRegistry

	// Restoring is true when the scan reflects stored backup content
	// rather than the live filesystem.
	Restoring bool

	// Backup is the generation selected for restoration, if any.
	Backup *Backup

	// AvailableBackups lists the game's stored chain, newest last.
	AvailableBackups []Backup

	// Change classifies this scan against the latest stored backup.
	Change ScanChange
}

// NewScanInfo returns an empty scan result for a game.
func NewScanInfo(name string) *ScanInfo {
	return &ScanInfo{
		GameName: name,
		Files:    make(map[string]ScannedFile),
		Registry: make(map[string]ScannedRegistry),
		Change:   ScanChangeUnknown,
	}
}

// FoundAnything reports whether the scan matched any file or registry entry.
func (s *ScanInfo) FoundAnything() bool {
	return s != nil && (len(s.Files) > 0 || len(s.Registry) > 0)
}

// TotalBytes sums the sizes of all scanned files, including ignored ones.
func (s *ScanInfo) TotalBytes() int64 {
	if s == nil {
		return 0
	}
	var total int64
	for _, f := range s.Files {
		total += f.Size
	}
	return total
}

// ProcessedBytes sums the sizes of files that were actually handled: not
// ignored and not recorded as failed.
func (s *ScanInfo) ProcessedBytes(info *BackupInfo) int64 {
	if s == nil {
		return 0
	}
	var total int64
	for _, f := range s.Files {
		if f.Ignored {
			continue
		}
		if info != nil && info.FileFailed(f.Path) {
			continue
		}
		total += f.Size
	}
	return total
}

// SortedFiles returns the scanned files ordered by path.
func (s *ScanInfo) SortedFiles() []ScannedFile {
	out := make([]ScannedFile, 0, len(s.Files))
	for _, f := range s.Files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// SortedRegistry returns the scanned registry keys ordered by path.
func (s *ScanInfo) SortedRegistry() []ScannedRegistry {
	out := make([]ScannedRegistry, 0, len(s.Registry))
	for _, r := range s.Registry {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// BackupInfo records the per-item failures of one backup or restore step.
// An empty BackupInfo means the step fully succeeded.
type BackupInfo struct {
	FailedFiles    map[string]string
	FailedRegistry map[string]string
}

// NewBackupInfo returns an empty failure record.
func NewBackupInfo() *BackupInfo {
	return &BackupInfo{
		FailedFiles:    make(map[string]string),
		FailedRegistry: make(map[string]string),
	}
}

// FailFile records a per-file failure.
func (b *BackupInfo) FailFile(path string, err error) {
	if b.FailedFiles == nil {
		b.FailedFiles = make(map[string]string)
	}
	b.FailedFiles[path] = err.Error()
}

// FailRegistry records a per-registry-key failure.
func (b *BackupInfo) FailRegistry(path string, err error) {
	if b.FailedRegistry == nil {
		b.FailedRegistry = make(map[string]string)
	}
	b.FailedRegistry[path] = err.Error()
}

// FileFailed reports whether the file at path failed.
func (b *BackupInfo) FileFailed(path string) bool {
	if b == nil {
		return false
	}
	_, ok := b.FailedFiles[path]
	return ok
}

// RegistryFailed reports whether the registry key at path failed.
func (b *BackupInfo) RegistryFailed(path string) bool {
	if b == nil {
		return false
	}
	_, ok := b.FailedRegistry[path]
	return ok
}

// Successful reports whether no per-item failures were recorded.
func (b *BackupInfo) Successful() bool {
	return b == nil || (len(b.FailedFiles) == 0 && len(b.FailedRegistry) == 0)
}

// OperationStepDecision explains how the orchestrator treated one game.
type OperationStepDecision string

// Step decisions.
const (
	// DecisionProcessed means the game's scan/backup/restore ran.
	DecisionProcessed OperationStepDecision = "Processed"
	// DecisionIgnored means the game is administratively disabled and was
	// not explicitly requested.
	DecisionIgnored OperationStepDecision = "Ignored"
	// DecisionCancelled means the cancellation flag was observed before
	// the game's work began.
	DecisionCancelled OperationStepDecision = "Cancelled"
)

// OperationStatus aggregates an entire run for display.
type OperationStatus struct {
	TotalGames     int   `json:"totalGames"`
	TotalBytes     int64 `json:"totalBytes"`
	ProcessedGames int   `json:"processedGames"`
	ProcessedBytes int64 `json:"processedBytes"`

	ChangedGames struct {
		New       int `json:"new"`
		Different int `json:"different"`
		Same      int `json:"same"`
	} `json:"-"`
}

// AddGame folds one game's results into the aggregate. Processed is false for
// ignored or cancelled games, which still count toward the totals.
func (o *OperationStatus) AddGame(scan *ScanInfo, info *BackupInfo, processed bool) {
	o.TotalGames++
	o.TotalBytes += scan.TotalBytes()
	if processed {
		o.ProcessedGames++
		o.ProcessedBytes += scan.ProcessedBytes(info)
	}
	switch scan.Change {
	case ScanChangeNew:
		o.ChangedGames.New++
	case ScanChangeDifferent:
		o.ChangedGames.Different++
	case ScanChangeSame:
		o.ChangedGames.Same++
	}
}

// FormatBytes renders a byte count using binary (IEC) units.
func FormatBytes(n int64) string {
	return humanize.IBytes(uint64(n))
}

// SortKey selects what to order aggregated results by.
type SortKey string

// Sort keys.
const (
	SortByName SortKey = "name"
	SortBySize SortKey = "size"
)

// Sort describes the caller-selected result ordering.
type Sort struct {
	Key      SortKey `yaml:"key" mapstructure:"key"`
	Reversed bool    `yaml:"reversed" mapstructure:"reversed"`
}

// ContentEntry records the captured state of one path in a backup manifest.
type ContentEntry struct {
	Hash string `yaml:"hash"`
	Size int64  `yaml:"size"`
}

// BackupKind distinguishes full from differential generations.
type BackupKind string

// Backup kinds.
const (
	BackupKindFull         BackupKind = "full"
	BackupKindDifferential BackupKind = "differential"
)

// Backup is one stored generation in a game's chain, as recorded in the
// per-game index. A differential generation records only changes relative to
// the effective state of the preceding generation, plus deletion markers.
type Backup struct {
	ID      string     `yaml:"id"`
	Kind    BackupKind `yaml:"kind"`
	When    time.Time  `yaml:"when"`
	Comment string     `yaml:"comment,omitempty"`
	Format  string     `yaml:"format"`

	Files    map[string]ContentEntry `yaml:"files,omitempty"`
	Registry map[string]ContentEntry `yaml:"registry,omitempty"`

	Deleted         []string `yaml:"deleted,omitempty"`
	DeletedRegistry []string `yaml:"deletedRegistry,omitempty"`
}

// BackupID selects a generation within a chain. The zero value selects the
// newest generation.
type BackupID struct {
	Name string
}

// LatestBackup selects the newest generation of a chain.
var LatestBackup = BackupID{}

// NamedBackup selects a generation by its exact id.
func NamedBackup(name string) BackupID {
	return BackupID{Name: name}
}

// IsLatest reports whether the id is the latest-generation sentinel.
func (id BackupID) IsLatest() bool {
	return id.Name == ""
}

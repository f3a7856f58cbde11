// Package report renders completed runs for the command line, either as
// human-readable text or as a machine-readable JSON document. Reporters
// accumulate per-game results and render once at the end.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Hukadan/ludusavi/pkg/ludusavi/dupe"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/paths"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/types"
)

// Reporter accumulates per-game results and renders them as one document.
type Reporter interface {
	// AddGame records one game's scan outcome. The detector may be nil
	// when duplicate annotations are not wanted.
	AddGame(name string, scan *types.ScanInfo, info *types.BackupInfo, decision types.OperationStepDecision, d *dupe.Detector)

	// AddBackups records a game's stored generations for listing. Mixing
	// AddBackups with AddGame drops the overall summary.
	AddBackups(name string, scan *types.ScanInfo)

	// TripUnknownGames records names that matched nothing.
	TripUnknownGames(names []string)

	// Render produces the final document. location is the backup target
	// shown in the summary.
	Render(location string) string
}

// New returns a JSON reporter when jsonMode is set, otherwise a text
// reporter. Redirect rules are used to annotate rewritten paths.
func New(jsonMode bool, redirects []paths.RedirectRule) Reporter {
	if jsonMode {
		return &jsonReporter{
			output: jsonOutput{
				Overall: &types.OperationStatus{},
				Games:   map[string]apiGame{},
			},
			redirects: redirects,
		}
	}
	return &textReporter{
		status:    &types.OperationStatus{},
		redirects: redirects,
	}
}

// textReporter builds the human-readable rendering, one block per game
// followed by an overall summary.
type textReporter struct {
	parts     []string
	status    *types.OperationStatus
	redirects []paths.RedirectRule
}

func (r *textReporter) AddGame(name string, scan *types.ScanInfo, info *types.BackupInfo, decision types.OperationStepDecision, d *dupe.Detector) {
	if r.status != nil {
		r.status.AddGame(scan, info, decision == types.DecisionProcessed)
	}
	if !scan.FoundAnything() {
		return
	}

	header := fmt.Sprintf("%s [%s]", name, types.FormatBytes(scan.ProcessedBytes(info)))
	if decision == types.DecisionIgnored {
		header += " [IGNORED]"
	}
	if decision == types.DecisionCancelled {
		header += " [CANCELLED]"
	}
	if d != nil && d.IsGameDuplicated(name) {
		header += " [DUPLICATES]"
	}
	r.parts = append(r.parts, header+":")

	for _, f := range scan.SortedFiles() {
		original := f.EffectivePath()
		target := paths.Redirect(original, r.redirects, scan.Restoring)
		shown := original
		if scan.Restoring {
			shown = target
		}
		line := "  - "
		if info.FileFailed(f.Path) {
			line += "[FAILED] "
		}
		if f.Ignored {
			line += "[IGNORED] "
		}
		if d != nil && d.IsFileDuplicated(f) {
			line += "[DUPLICATED] "
		}
		r.parts = append(r.parts, line+shown)
		if target != original {
			if scan.Restoring {
				r.parts = append(r.parts, "    (redirected from "+original+")")
			} else {
				r.parts = append(r.parts, "    (redirecting to "+target+")")
			}
		}
	}
	for _, k := range scan.SortedRegistry() {
		line := "  - "
		if info.RegistryFailed(k.Path) {
			line += "[FAILED] "
		}
		if k.Ignored {
			line += "[IGNORED] "
		}
		if d != nil && d.IsRegistryDuplicated(k) {
			line += "[DUPLICATED] "
		}
		r.parts = append(r.parts, line+k.Path)
	}
	r.parts = append(r.parts, "")
}

func (r *textReporter) AddBackups(name string, scan *types.ScanInfo) {
	r.status = nil
	if len(scan.AvailableBackups) == 0 {
		return
	}
	r.parts = append(r.parts, name+":")
	for _, b := range scan.AvailableBackups {
		line := fmt.Sprintf("  - %s (%s)", b.ID, b.When.UTC().Format("2006-01-02T15:04:05"))
		if b.Comment != "" {
			line += " " + b.Comment
		}
		r.parts = append(r.parts, line)
	}
	r.parts = append(r.parts, "")
}

func (r *textReporter) TripUnknownGames([]string) {}

func (r *textReporter) Render(location string) string {
	body := strings.Join(r.parts, "\n")
	if r.status == nil {
		return strings.TrimRight(body, "\n")
	}
	if body != "" {
		body += "\n"
	}

	size := types.FormatBytes(r.status.ProcessedBytes)
	if r.status.ProcessedBytes != r.status.TotalBytes {
		size += " / " + types.FormatBytes(r.status.TotalBytes)
	}
	summary := strings.Join([]string{
		"Overall:",
		fmt.Sprintf("  Games: %d", r.status.ProcessedGames),
		"  Size: " + size,
		"  Location: " + location,
	}, "\n")
	return body + summary
}

// JSON wire shapes. Maps render with sorted keys, which keeps the output
// stable for consumers diffing successive runs.

type apiErrors struct {
	SomeGamesFailed bool     `json:"someGamesFailed,omitempty"`
	UnknownGames    []string `json:"unknownGames,omitempty"`
}

type apiFile struct {
	Failed         bool     `json:"failed,omitempty"`
	Ignored        bool     `json:"ignored,omitempty"`
	Bytes          int64    `json:"bytes"`
	Change         string   `json:"change,omitempty"`
	OriginalPath   string   `json:"originalPath,omitempty"`
	RedirectedPath string   `json:"redirectedPath,omitempty"`
	DuplicatedBy   []string `json:"duplicatedBy,omitempty"`
}

type apiRegistry struct {
	Failed       bool     `json:"failed,omitempty"`
	Ignored      bool     `json:"ignored,omitempty"`
	DuplicatedBy []string `json:"duplicatedBy,omitempty"`
}

type apiBackup struct {
	Name    string    `json:"name"`
	When    time.Time `json:"when"`
	Kind    string    `json:"kind,omitempty"`
	Comment string    `json:"comment,omitempty"`
}

type apiGame struct {
	Decision types.OperationStepDecision `json:"decision,omitempty"`
	Files    map[string]apiFile          `json:"files,omitempty"`
	Registry map[string]apiRegistry      `json:"registry,omitempty"`
	Backups  []apiBackup                 `json:"backups,omitempty"`
}

type jsonOutput struct {
	Errors  *apiErrors             `json:"errors,omitempty"`
	Overall *types.OperationStatus `json:"overall,omitempty"`
	Games   map[string]apiGame     `json:"games"`
}

type jsonReporter struct {
	output    jsonOutput
	redirects []paths.RedirectRule
}

func (r *jsonReporter) errors() *apiErrors {
	if r.output.Errors == nil {
		r.output.Errors = &apiErrors{}
	}
	return r.output.Errors
}

func (r *jsonReporter) AddGame(name string, scan *types.ScanInfo, info *types.BackupInfo, decision types.OperationStepDecision, d *dupe.Detector) {
	if r.output.Overall != nil {
		r.output.Overall.AddGame(scan, info, decision == types.DecisionProcessed)
	}
	if !scan.FoundAnything() {
		return
	}

	game := apiGame{
		Decision: decision,
		Files:    map[string]apiFile{},
		Registry: map[string]apiRegistry{},
	}
	failed := false

	for _, f := range scan.SortedFiles() {
		shown := paths.Redirect(f.EffectivePath(), r.redirects, scan.Restoring)
		entry := apiFile{
			Failed:  info.FileFailed(f.Path),
			Ignored: f.Ignored,
			Bytes:   f.Size,
		}
		if alt := f.EffectivePath(); alt != shown {
			if scan.Restoring {
				entry.OriginalPath = alt
			} else {
				entry.RedirectedPath = shown
				shown = alt
			}
		}
		if d != nil && d.IsFileDuplicated(f) {
			entry.DuplicatedBy = d.FileOwners(f, name)
		}
		if entry.Failed {
			failed = true
		}
		game.Files[shown] = entry
	}
	for _, k := range scan.SortedRegistry() {
		entry := apiRegistry{
			Failed:  info.RegistryFailed(k.Path),
			Ignored: k.Ignored,
		}
		if d != nil && d.IsRegistryDuplicated(k) {
			entry.DuplicatedBy = d.RegistryOwners(k, name)
		}
		if entry.Failed {
			failed = true
		}
		game.Registry[k.Path] = entry
	}

	if failed {
		r.errors().SomeGamesFailed = true
	}
	r.output.Games[name] = game
}

func (r *jsonReporter) AddBackups(name string, scan *types.ScanInfo) {
	r.output.Overall = nil
	if len(scan.AvailableBackups) == 0 {
		return
	}
	backups := make([]apiBackup, 0, len(scan.AvailableBackups))
	for _, b := range scan.AvailableBackups {
		backups = append(backups, apiBackup{
			Name:    b.ID,
			When:    b.When.UTC(),
			Kind:    string(b.Kind),
			Comment: b.Comment,
		})
	}
	r.output.Games[name] = apiGame{Backups: backups}
}

func (r *jsonReporter) TripUnknownGames(names []string) {
	r.errors().UnknownGames = names
}

func (r *jsonReporter) Render(string) string {
	data, err := json.MarshalIndent(r.output, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

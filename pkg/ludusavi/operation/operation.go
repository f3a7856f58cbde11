// Package operation drives full backup and restore runs: it fans one task
// per game out over a bounded worker pool, supports cooperative
// cancellation, and aggregates per-game results into a sorted, reported
// whole. Games are independent units of work; the duplicate detector is fed
// single-threaded after all tasks have returned.
package operation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Hukadan/ludusavi/pkg/ludusavi/archive"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/config"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/dupe"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/hashcache"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/layout"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/logging"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/manifest"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/registry"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/scan"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/types"
)

// Errors surfaced before any per-game work starts.
var (
	// ErrNoGames means nothing was selected to process.
	ErrNoGames = errors.New("no games to process")

	// ErrUnknownGames means explicitly named games are not known.
	ErrUnknownGames = errors.New("unknown games")

	// ErrBackupIDRequiresOneGame rejects restoring a named backup across
	// multiple games.
	ErrBackupIDRequiresOneGame = errors.New("restoring a named backup requires exactly one game")

	// ErrInvalidBackupID means a named backup id matched no stored
	// generation of the selected game.
	ErrInvalidBackupID = errors.New("no such backup id")
)

// State describes where a run is in its lifecycle.
type State int

// Run states.
const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Cancellation is the shared cooperative cancellation flag. Setting it does
// not abort in-flight work; it only stops tasks that have not yet begun.
type Cancellation struct {
	flag atomic.Bool
}

// Cancel sets the flag.
func (c *Cancellation) Cancel() { c.flag.Store(true) }

// Cancelled reports whether the flag is set.
func (c *Cancellation) Cancelled() bool { return c.flag.Load() }

// GameResult is one game's outcome within a run.
type GameResult struct {
	Name     string
	Scan     *types.ScanInfo
	Info     *types.BackupInfo
	Decision types.OperationStepDecision

	// Err holds a systemic per-game failure (index or container trouble),
	// as opposed to the per-item failures recorded in Info.
	Err error
}

// Failed reports whether anything went wrong for this game.
func (r GameResult) Failed() bool {
	return r.Err != nil || !r.Info.Successful()
}

// Results is a completed run.
type Results struct {
	Games  []GameResult
	Status types.OperationStatus
	State  State
}

// SomeGamesFailed reports whether any processed game recorded a failure.
func (r *Results) SomeGamesFailed() bool {
	for _, g := range r.Games {
		if g.Failed() {
			return true
		}
	}
	return false
}

// Options selects what one run does.
type Options struct {
	// Games names the subjects explicitly; empty selects all eligible
	// ones. Explicitly named games run even when administratively
	// disabled.
	Games []string

	// Preview scans and reports without writing anything.
	Preview bool

	// Backup selects the generation to restore; ignored for backups.
	Backup types.BackupID
}

// Runner executes backup and restore runs against one configuration.
type Runner struct {
	cfg      *config.Config
	manifest manifest.Manifest
	cache    *hashcache.Cache
	registry registry.Client
	cancel   *Cancellation
	state    atomic.Int32
	now      func() time.Time
}

// NewRunner builds a runner. The manifest should already exist; custom games
// from the configuration are merged into a copy of it. cache may be nil to
// hash without memoization.
func NewRunner(cfg *config.Config, man manifest.Manifest, cache *hashcache.Cache) *Runner {
	merged := make(manifest.Manifest, len(man))
	for name, game := range man {
		merged[name] = game
	}
	merged.AddCustomGames(cfg.CustomGames)

	return &Runner{
		cfg:      cfg,
		manifest: merged,
		cache:    cache,
		registry: registry.Live(),
		cancel:   &Cancellation{},
		now:      time.Now,
	}
}

// Cancel requests cooperative cancellation of the in-flight run.
func (r *Runner) Cancel() { r.cancel.Cancel() }

// State reports the runner's current lifecycle state.
func (r *Runner) State() State { return State(r.state.Load()) }

// Backup scans and stores the selected games.
func (r *Runner) Backup(ctx context.Context, opts Options) (*Results, error) {
	log := logging.Get("backup").With("run", uuid.NewString())

	selected, explicit, err := r.selectForBackup(opts.Games)
	if err != nil {
		return nil, err
	}

	retention := r.cfg.Backup.Retention
	settings, err := r.cfg.ArchiveSettings()
	if err != nil {
		return nil, err
	}
	backupLayout := layout.New(r.cfg.Backup.Path, retention, settings)
	if !opts.Preview {
		if err := backupLayout.PrepareTarget(r.cfg.Backup.Merge); err != nil {
			return nil, err
		}
	}

	games := make(map[string]manifest.Game, len(selected))
	for _, name := range selected {
		games[name] = r.manifest[name]
	}
	ranking := scan.RankInstallDirs(r.cfg.Roots, games)
	filter := scan.Filter{ExcludedPaths: r.cfg.Backup.Excluded}

	log.Info("backup started", "games", len(selected), "preview", opts.Preview)

	run := func(name string) GameResult {
		if r.cfg.GameDisabledForBackup(name) && !explicit[name] {
			return GameResult{Name: name, Scan: types.NewScanInfo(name), Decision: types.DecisionIgnored}
		}
		files, reg := r.cfg.BackupToggles(name)
		gameLayout := backupLayout.Game(name)
		scanInfo := scan.ForBackup(scan.BackupParams{
			Name:    name,
			Game:    r.manifest[name],
			Roots:   r.cfg.Roots,
			Filter:  filter,
			Toggles: scan.Toggles{Files: files, Registry: reg},
			Ranking: ranking,
			Cache:   r.cache,
			Layout:  gameLayout,
		})

		result := GameResult{Name: name, Scan: scanInfo, Decision: types.DecisionProcessed}
		if opts.Preview || !scanInfo.FoundAnything() {
			return result
		}
		info, err := gameLayout.BackUp(scanInfo, r.registry, r.cfg.Backup.Merge, r.now())
		result.Info = info
		result.Err = err
		if err != nil {
			log.Error("backup failed", "game", name, "error", err)
		}
		return result
	}

	results := r.fanOut(ctx, selected, run)
	r.finish(results, log, "backup finished")
	return results, nil
}

// Restore writes stored games back to their original locations.
func (r *Runner) Restore(ctx context.Context, opts Options) (*Results, error) {
	log := logging.Get("restore").With("run", uuid.NewString())

	// Restores only read containers, so the write settings are irrelevant.
	restoreLayout := layout.New(r.cfg.Restore.Path, r.cfg.Backup.Retention, archive.Settings{})
	selected, explicit, err := r.selectForRestore(restoreLayout, opts)
	if err != nil {
		return nil, err
	}

	log.Info("restore started", "games", len(selected), "preview", opts.Preview)

	run := func(name string) GameResult {
		if r.cfg.GameDisabledForRestore(name) && !explicit[name] {
			return GameResult{Name: name, Scan: types.NewScanInfo(name), Decision: types.DecisionIgnored}
		}
		files, reg := r.cfg.RestoreToggles(name)
		gameLayout := restoreLayout.Game(name)
		scanInfo := scan.ForRestoration(name, opts.Backup, gameLayout, scan.Toggles{Files: files, Registry: reg})

		result := GameResult{Name: name, Scan: scanInfo, Decision: types.DecisionProcessed}
		if scanInfo.Backup == nil {
			// An unresolved explicit id is the caller's error; a game
			// with nothing stored is merely an empty result.
			if !opts.Backup.IsLatest() {
				result.Err = fmt.Errorf("%w: %s", ErrInvalidBackupID, opts.Backup.Name)
				log.Error("restore failed", "game", name, "error", result.Err)
			}
			return result
		}
		if opts.Preview {
			return result
		}
		result.Info = gameLayout.Restore(scanInfo, r.cfg.Redirects, r.registry)
		return result
	}

	results := r.fanOut(ctx, selected, run)
	r.finish(results, log, "restore finished")
	return results, nil
}

// Backups lists stored generations for the selected games without touching
// the live system or the stored data.
func (r *Runner) Backups(ctx context.Context, opts Options) (*Results, error) {
	restoreLayout := layout.New(r.cfg.Restore.Path, r.cfg.Backup.Retention, archive.Settings{})
	selected, _, err := r.selectForRestore(restoreLayout, Options{Games: opts.Games})
	if err != nil {
		return nil, err
	}

	run := func(name string) GameResult {
		scanInfo := scan.ForRestoration(name, types.LatestBackup, restoreLayout.Game(name), scan.Toggles{})
		return GameResult{Name: name, Scan: scanInfo, Decision: types.DecisionProcessed}
	}
	return r.fanOut(ctx, selected, run), nil
}

// SetBackupComment attaches a comment to one of a game's stored generations.
func (r *Runner) SetBackupComment(game string, id types.BackupID, comment string) error {
	restoreLayout := layout.New(r.cfg.Restore.Path, r.cfg.Backup.Retention, archive.Settings{})
	return restoreLayout.Game(game).SetComment(id, comment)
}

// fanOut runs one task per game over a bounded pool and aggregates after the
// barrier.
func (r *Runner) fanOut(ctx context.Context, names []string, run func(string) GameResult) *Results {
	r.state.Store(int32(StateRunning))

	results := make([]GameResult, len(names))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.cfg.WorkerCount())
	for i, name := range names {
		eg.Go(func() error {
			// Cancellation is checked before any work; tasks already past
			// this point run to completion.
			if r.cancel.Cancelled() || ctx.Err() != nil {
				results[i] = GameResult{Name: name, Scan: types.NewScanInfo(name), Decision: types.DecisionCancelled}
				return nil
			}
			results[i] = run(name)
			return nil
		})
	}
	_ = eg.Wait()

	state := StateCompleted
	if r.cancel.Cancelled() || ctx.Err() != nil {
		state = StateCancelled
	}
	r.state.Store(int32(state))

	sortResults(results, r.cfg.Sort)
	out := &Results{Games: results, State: state}
	for _, g := range results {
		out.Status.AddGame(g.Scan, g.Info, g.Decision == types.DecisionProcessed)
	}
	return out
}

func (r *Runner) finish(results *Results, log *logging.Logger, msg string) {
	log.Info(msg,
		"processed", results.Status.ProcessedGames,
		"total", results.Status.TotalGames,
		"bytes", results.Status.ProcessedBytes,
		"state", results.State,
	)
}

// selectForBackup resolves the subject list for a backup run.
func (r *Runner) selectForBackup(requested []string) ([]string, map[string]bool, error) {
	explicit := make(map[string]bool, len(requested))
	if len(requested) == 0 {
		names := r.manifest.Names()
		if len(names) == 0 {
			return nil, nil, ErrNoGames
		}
		return names, explicit, nil
	}

	var unknown []string
	for _, name := range requested {
		if _, ok := r.manifest[name]; !ok {
			unknown = append(unknown, name)
		}
		explicit[name] = true
	}
	if len(unknown) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownGames, strings.Join(unknown, ", "))
	}
	names := append([]string{}, requested...)
	sort.Strings(names)
	return names, explicit, nil
}

// selectForRestore resolves the subject list for a restore run against the
// stored chains.
func (r *Runner) selectForRestore(l *layout.BackupLayout, opts Options) ([]string, map[string]bool, error) {
	restorable, err := l.RestorableGames()
	if err != nil {
		return nil, nil, err
	}

	explicit := make(map[string]bool, len(opts.Games))
	if len(opts.Games) == 0 {
		if !opts.Backup.IsLatest() {
			return nil, nil, ErrBackupIDRequiresOneGame
		}
		if len(restorable) == 0 {
			return nil, nil, ErrNoGames
		}
		return restorable, explicit, nil
	}

	if !opts.Backup.IsLatest() && len(opts.Games) > 1 {
		return nil, nil, ErrBackupIDRequiresOneGame
	}

	known := make(map[string]bool, len(restorable))
	for _, name := range restorable {
		known[name] = true
	}
	var unknown []string
	for _, name := range opts.Games {
		if !known[name] {
			unknown = append(unknown, name)
		}
		explicit[name] = true
	}
	if len(unknown) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownGames, strings.Join(unknown, ", "))
	}
	names := append([]string{}, opts.Games...)
	sort.Strings(names)
	return names, explicit, nil
}

// sortResults orders results by the caller-selected key and direction.
func sortResults(results []GameResult, s types.Sort) {
	less := func(i, j int) bool { return results[i].Name < results[j].Name }
	if s.Key == types.SortBySize {
		less = func(i, j int) bool {
			si, sj := results[i].Scan.TotalBytes(), results[j].Scan.TotalBytes()
			if si != sj {
				return si < sj
			}
			return results[i].Name < results[j].Name
		}
	}
	if s.Reversed {
		orig := less
		less = func(i, j int) bool { return orig(j, i) }
	}
	sort.SliceStable(results, less)
}

// DetectDuplicates feeds the sorted results through a fresh duplicate
// detector, single-threaded, and returns it for querying.
func DetectDuplicates(results *Results) *dupe.Detector {
	d := dupe.NewDetector()
	for _, g := range results.Games {
		if g.Scan.FoundAnything() {
			d.AddGame(g.Scan)
		}
	}
	return d
}

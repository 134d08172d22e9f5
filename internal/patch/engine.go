package patch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hollowgate/launcherd/internal/domain"
	"github.com/hollowgate/launcherd/internal/infra"
)

// Sibling suffixes forming the on-disk backup trail. Their presence is the
// sole source of truth for "can this file be restored" after a crash; no
// separate manifest is persisted.
const (
	backupSuffix = ".backup"
	asideSuffix  = ".patch"
)

// Engine applies and reverses patch instructions against a game
// installation.
type Engine struct {
	client   *Client
	progress *Tracker
	logger   *zap.Logger
}

// NewEngine creates a patch engine.
func NewEngine(client *Client, progress *Tracker, logger *zap.Logger) *Engine {
	return &Engine{
		client:   client,
		progress: progress,
		logger:   logger,
	}
}

// Progress returns the engine's download tracker.
func (e *Engine) Progress() *Tracker {
	return e.progress
}

// Apply executes a patch instruction against installPath and returns the
// relative paths that were overwritten, in application order.
//
// Method 0 performs no file I/O at all. Unknown methods fail before any
// I/O. For method 1 a failing file (download error or hash mismatch)
// aborts the call naming that file; files applied earlier in the same
// call stay applied and are returned alongside the error so the caller
// can still restore them later.
func (e *Engine) Apply(ctx context.Context, instruction *domain.PatchInstruction, installPath string) ([]string, error) {
	switch instruction.Method {
	case domain.MethodNone:
		return nil, nil
	case domain.MethodReplaceFiles:
		// handled below
	default:
		return nil, fmt.Errorf("unsupported patch method %d", instruction.Method)
	}

	cache := NewCache(installPath)
	var applied []string

	for _, file := range instruction.Patched {
		if err := e.stage(ctx, cache, file); err != nil {
			return applied, fmt.Errorf("patch file %s: %w", file.Location, err)
		}

		live := filepath.Join(installPath, filepath.FromSlash(file.Location))
		backup := live + backupSuffix

		// The backup is the pristine original; never overwrite it while
		// it exists, even across repeated applies.
		if infra.Exists(live) && !infra.Exists(backup) {
			if err := infra.CopyFile(live, backup); err != nil {
				return applied, fmt.Errorf("patch file %s: create backup: %w", file.Location, err)
			}
		}

		if err := os.MkdirAll(filepath.Dir(live), 0o755); err != nil {
			return applied, fmt.Errorf("patch file %s: %w", file.Location, err)
		}
		if err := infra.CopyFile(cache.Path(file.Location), live); err != nil {
			return applied, fmt.Errorf("patch file %s: %w", file.Location, err)
		}

		applied = append(applied, file.Location)
		e.logger.Info("applied patch file", zap.String("location", file.Location))
	}

	return applied, nil
}

// stage ensures a valid cache entry exists for the file, downloading and
// verifying it if absent or invalid.
func (e *Engine) stage(ctx context.Context, cache *Cache, file domain.PatchFile) error {
	if cache.Valid(file.Location, file.MD5) {
		e.logger.Debug("patch cache hit", zap.String("location", file.Location))
		return nil
	}

	dst := cache.Path(file.Location)
	if err := e.client.Download(ctx, file, dst, e.progress); err != nil {
		return err
	}

	// Recompute from the fully-downloaded bytes before trusting them.
	sum, err := infra.MD5File(dst)
	if err != nil {
		return fmt.Errorf("hash downloaded file: %w", err)
	}
	if !strings.EqualFold(sum, file.MD5) {
		os.Remove(dst)
		return fmt.Errorf("hash mismatch: got %s, want %s", sum, file.MD5)
	}

	return nil
}

// restoreStrategy is one way of putting original files back. Strategies
// are tried in order and each is independently idempotent; a strategy
// error never stops the chain.
type restoreStrategy interface {
	name() string
	run(installPath string, logger *zap.Logger) (restored int, err error)
}

// Restore reverses a previous Apply using an ordered strategy chain:
// instruction-driven restoration first (when an instruction is
// available), then backup-driven restoration keyed by the recorded
// applied paths, then a disk scan for .backup siblings the first two
// passes missed. The scan is what makes restoration work after a crash,
// when neither the instruction nor the applied list survived. A final
// sweep moves any live file that still carries an unresolved backup
// aside to its .patch sibling so nothing half-restored is left looking
// live.
//
// Individual failures are logged, never propagated; the returned message
// summarizes what happened.
func (e *Engine) Restore(instruction *domain.PatchInstruction, installPath string, applied []string) string {
	scanned := scanBackupLocations(installPath, e.logger)

	var strategies []restoreStrategy
	if instruction != nil {
		strategies = append(strategies, &instructionRestore{files: instruction.Patched})
	}
	strategies = append(strategies,
		&backupRestore{source: "recorded", locations: applied},
		&backupRestore{source: "scan", locations: scanned},
	)

	total := 0
	for _, strategy := range strategies {
		restored, err := strategy.run(installPath, e.logger)
		total += restored
		if err != nil {
			e.logger.Warn("restore strategy incomplete",
				zap.String("strategy", strategy.name()),
				zap.Int("restored", restored),
				zap.Error(err))
		}
	}

	swept := sweepUnresolved(installPath, restoreLocations(instruction, applied, scanned), e.logger)

	if total == 0 && swept == 0 {
		return "nothing to restore"
	}
	return fmt.Sprintf("restored %d file(s), set aside %d unresolved file(s)", total, swept)
}

// instructionRestore walks the instruction's patched list: move the live
// file aside to .patch, copy the backup over it, delete the backup.
// Aborts on the first I/O error; the backup-driven strategy picks up the
// remainder.
type instructionRestore struct {
	files []domain.PatchFile
}

func (s *instructionRestore) name() string { return "instruction" }

func (s *instructionRestore) run(installPath string, logger *zap.Logger) (int, error) {
	restored := 0
	for _, file := range s.files {
		live := filepath.Join(installPath, filepath.FromSlash(file.Location))
		backup := live + backupSuffix

		if !infra.Exists(backup) {
			// Nothing to restore for this file; not an error.
			continue
		}

		if infra.Exists(live) {
			if err := os.Rename(live, live+asideSuffix); err != nil {
				return restored, fmt.Errorf("set aside %s: %w", file.Location, err)
			}
		}
		if err := infra.CopyFile(backup, live); err != nil {
			return restored, fmt.Errorf("restore %s: %w", file.Location, err)
		}
		if err := os.Remove(backup); err != nil {
			return restored, fmt.Errorf("remove backup for %s: %w", file.Location, err)
		}

		restored++
		logger.Info("restored original file", zap.String("location", file.Location))
	}
	return restored, nil
}

// backupRestore restores purely from .backup siblings at the given
// locations. Used when no instruction survived or the instruction-driven
// pass stopped early. Per-file failures are collected and logged; the
// batch always runs to the end.
type backupRestore struct {
	source    string
	locations []string
}

func (s *backupRestore) name() string { return "backup-" + s.source }

func (s *backupRestore) run(installPath string, logger *zap.Logger) (int, error) {
	restored := 0
	var errs error

	for _, location := range s.locations {
		live := filepath.Join(installPath, filepath.FromSlash(location))
		backup := live + backupSuffix

		if !infra.Exists(backup) {
			// Already restored (or never backed up); idempotent no-op.
			logger.Debug("no backup present", zap.String("location", location))
			continue
		}

		if err := infra.CopyFile(backup, live); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("restore %s: %w", location, err))
			continue
		}
		if err := os.Remove(backup); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("remove backup for %s: %w", location, err))
			continue
		}

		restored++
		logger.Info("restored original file", zap.String("location", location))
	}

	return restored, errs
}

// scanBackupLocations walks the install tree for .backup siblings and
// returns their live locations relative to the root. The download cache
// is excluded; it never holds backups.
func scanBackupLocations(installPath string, logger *zap.Logger) []string {
	var locations []string
	err := filepath.WalkDir(installPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == cacheDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), backupSuffix) {
			return nil
		}
		rel, relErr := filepath.Rel(installPath, strings.TrimSuffix(path, backupSuffix))
		if relErr != nil {
			return nil
		}
		locations = append(locations, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		logger.Warn("backup scan incomplete", zap.Error(err))
	}
	return locations
}

// restoreLocations unions the instruction's patched list with the given
// location lists, deduplicated, for the final sweep.
func restoreLocations(instruction *domain.PatchInstruction, lists ...[]string) []string {
	seen := make(map[string]bool)
	var locations []string
	add := func(location string) {
		if !seen[location] {
			seen[location] = true
			locations = append(locations, location)
		}
	}
	if instruction != nil {
		for _, file := range instruction.Patched {
			add(file.Location)
		}
	}
	for _, list := range lists {
		for _, location := range list {
			add(location)
		}
	}
	return locations
}

// sweepUnresolved renames any live file that still has a .backup sibling
// into .patch form. A surviving backup means restoration failed for that
// file, so the patched copy must not be left looking live.
func sweepUnresolved(installPath string, locations []string, logger *zap.Logger) int {
	swept := 0
	for _, location := range locations {
		live := filepath.Join(installPath, filepath.FromSlash(location))
		if !infra.Exists(live + backupSuffix) {
			continue
		}
		if !infra.Exists(live) {
			continue
		}
		if err := os.Rename(live, live+asideSuffix); err != nil {
			logger.Warn("failed to set aside unresolved file",
				zap.String("location", location),
				zap.Error(err))
			continue
		}
		swept++
		logger.Warn("set aside unresolved patched file", zap.String("location", location))
	}
	return swept
}

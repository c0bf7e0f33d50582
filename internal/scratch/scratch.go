// Package scratch owns the process-private working directory. Uploads, cut
// sandboxes and export results live here and nothing in it outlives the
// process: the directory is emptied when opened and again when closed.
package scratch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("scratch directory is in use by another mediacrop process")

const (
	uploadsDir = "uploads"
	exportsDir = "exports"
	engineDir  = "engine"
)

type Dir struct {
	root   string
	lock   *flock.Flock
	logger *slog.Logger
}

// Open locks root, empties it and creates the working subdirectories. The
// lock file sits next to root so wiping never touches it.
func Open(root string, logger *slog.Logger) (*Dir, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(filepath.Dir(root), 0o755); err != nil {
		return nil, fmt.Errorf("create scratch parent: %w", err)
	}

	lock := flock.New(root + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire scratch lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	d := &Dir{root: root, lock: lock, logger: logger}
	if err := d.wipe(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	for _, sub := range []string{uploadsDir, exportsDir, engineDir} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o700); err != nil {
			_ = lock.Unlock()
			return nil, fmt.Errorf("create scratch dir: %w", err)
		}
	}

	if logger != nil {
		logger.Debug("scratch directory ready", "path", root)
	}
	return d, nil
}

func (d *Dir) Root() string { return d.root }

// Uploads holds stored source files.
func (d *Dir) Uploads() string { return filepath.Join(d.root, uploadsDir) }

// Exports holds cut results.
func (d *Dir) Exports() string { return filepath.Join(d.root, exportsDir) }

// Engine holds per-cut sandboxes.
func (d *Dir) Engine() string { return filepath.Join(d.root, engineDir) }

// Close empties the directory and releases the lock.
func (d *Dir) Close() error {
	wipeErr := d.wipe()
	if err := os.Remove(d.root); err != nil && !os.IsNotExist(err) && wipeErr == nil {
		wipeErr = err
	}

	if err := d.lock.Unlock(); err != nil {
		return fmt.Errorf("release scratch lock: %w", err)
	}
	_ = os.Remove(d.lock.Path())
	return wipeErr
}

func (d *Dir) wipe() error {
	entries, err := os.ReadDir(d.root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read scratch dir: %w", err)
	}

	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(d.root, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("wipe scratch dir: %w", errors.Join(errs...))
	}
	if d.logger != nil && len(entries) > 0 {
		d.logger.Debug("scratch directory wiped", "entries", len(entries))
	}
	return nil
}

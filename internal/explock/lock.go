// Package explock serializes runs of the same experiment. Two runners
// writing one experiment directory would interleave shards and corrupt the
// concatenated listings, so each run holds an advisory file lock keyed by
// the experiment name for its whole duration.
package explock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"voxrecipe/internal/config"
	"voxrecipe/internal/fileutil"
	"voxrecipe/internal/paths"
)

// ErrHeld reports that another process holds the experiment lock.
var ErrHeld = errors.New("experiment is locked by another run")

// Lock is an acquired experiment lock.
type Lock struct {
	path string
	lock *flock.Flock
}

// PathFor returns the lock file location for cfg's experiment.
func PathFor(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.ExpRoot, ".locks", paths.ExpName(cfg)+".lock")
}

// Acquire takes the experiment lock without blocking. When the lock is held
// the returned error wraps ErrHeld and names the holder's pid if known.
func Acquire(cfg *config.Config) (*Lock, error) {
	path := PathFor(cfg)
	if err := fileutil.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		if pid := readHolder(path); pid > 0 {
			return nil, fmt.Errorf("%w: %s (pid %d)", ErrHeld, paths.ExpName(cfg), pid)
		}
		return nil, fmt.Errorf("%w: %s", ErrHeld, paths.ExpName(cfg))
	}
	// The pid is informational only; the flock is what excludes other runs.
	_ = os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
	return &Lock{path: path, lock: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks the experiment. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func readHolder(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

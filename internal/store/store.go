// Package store persists plan documents under single-writer optimistic
// locking. Writes serialize to a temporary file in the artifact directory
// and atomically rename it over the canonical path, so a crash mid-write
// never leaves a half-written artifact. The plan document itself is the
// durable log; there is no separate write-ahead log or lock file.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/avaricia/agentflow/internal/errors"
	"github.com/avaricia/agentflow/internal/plan"
)

// Lock is the optimistic-lock token captured at load time. Version is the
// declared marker; Digest hashes the raw bytes so manual edits that forget
// to bump the version are still detected.
type Lock struct {
	Version int
	Digest  string
}

// Snapshot couples an in-memory plan with the on-disk state it was derived
// from. All mutation flows through Save, which rejects stale snapshots.
type Snapshot struct {
	Plan *plan.Plan
	Path string
	Lock Lock
}

// Store manages plan artifacts in a single directory
type Store struct {
	dir string
}

// New creates a store rooted at the given artifact directory
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the artifact directory
func (s *Store) Dir() string {
	return s.dir
}

// ResolvePath chooses a unique artifact path for a new plan, probing
// base.yaml, base-1.yaml, ... and derives the plan id from the file stem.
func (s *Store) ResolvePath(baseName string) (string, string) {
	candidate := filepath.Join(s.dir, baseName+".yaml")
	suffix := 1
	for {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			break
		}
		candidate = filepath.Join(s.dir, fmt.Sprintf("%s-%d.yaml", baseName, suffix))
		suffix++
	}

	stem := strings.TrimSuffix(filepath.Base(candidate), ".yaml")
	planID := "plan-" + stem
	if idx := strings.Index(stem, "-"); idx >= 0 {
		planID = "plan-" + stem[idx+1:]
	}
	return candidate, planID
}

// Load reads a plan artifact, validates it, and captures the lock token
func (s *Store) Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read plan file "+path, err)
	}

	p, err := plan.Unmarshal(data)
	if err != nil {
		return nil, errors.NewFileUnmarshalError(path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &Snapshot{
		Plan: p,
		Path: path,
		Lock: Lock{Version: p.Version, Digest: plan.Digest(data)},
	}, nil
}

// Create writes a brand-new artifact at version 1. It fails if the path
// already exists; new plans go through ResolvePath first.
func (s *Store) Create(path string, p *plan.Plan) (*Snapshot, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, errors.New(errors.ErrCodeFileWriteFailed, "plan artifact already exists: "+path).
			WithSuggestion("Use ResolvePath to pick a unique artifact name")
	}

	snap := &Snapshot{Plan: p, Path: path, Lock: Lock{Version: 0}}
	if err := s.Save(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Save persists the snapshot's plan. The current on-disk marker is read
// immediately before writing; if it no longer matches the snapshot's lock
// token the write is rejected with a lock-conflict error and nothing is
// touched. Every successful write increments the version and refreshes the
// checksum marker and the snapshot lock.
func (s *Store) Save(snap *Snapshot) error {
	if err := s.checkLock(snap); err != nil {
		return err
	}

	p := snap.Plan
	p.Version = snap.Lock.Version + 1
	p.LastUpdated = time.Now().UTC()

	checksum, err := plan.ComputeChecksum(p)
	if err != nil {
		return err
	}
	p.Checksum = checksum

	data, err := plan.Marshal(p)
	if err != nil {
		return err
	}

	if err := writeAtomic(snap.Path, data); err != nil {
		// Roll the marker back so a retry against the old on-disk
		// state does not self-conflict.
		p.Version = snap.Lock.Version
		return err
	}

	snap.Lock = Lock{Version: p.Version, Digest: plan.Digest(data)}
	return nil
}

// Reload discards the in-memory plan and re-reads the artifact, picking up
// external edits. Used to reconcile after a lock conflict.
func (s *Store) Reload(snap *Snapshot) error {
	fresh, err := s.Load(snap.Path)
	if err != nil {
		return err
	}
	*snap = *fresh
	return nil
}

// List returns the plan artifact paths in the store directory, sorted
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read artifact directory "+s.dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			paths = append(paths, filepath.Join(s.dir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Store) checkLock(snap *Snapshot) error {
	data, err := os.ReadFile(snap.Path)
	if err != nil {
		if os.IsNotExist(err) {
			if snap.Lock.Version != 0 {
				return errors.NewLockConflictError(snap.Path, snap.Lock.Version, 0)
			}
			return nil
		}
		return errors.Wrap(errors.ErrCodeFileReadFailed, "read plan file "+snap.Path, err)
	}

	current, err := plan.Unmarshal(data)
	if err != nil {
		return errors.NewFileUnmarshalError(snap.Path, err)
	}

	if current.Version != snap.Lock.Version {
		return errors.NewLockConflictError(snap.Path, snap.Lock.Version, current.Version)
	}
	if snap.Lock.Digest != "" && plan.Digest(data) != snap.Lock.Digest {
		return errors.NewStaleDigestError(snap.Path)
	}
	return nil
}

// writeAtomic serializes to a temp file in the target directory and swaps
// it into place with a rename, which is atomic on POSIX filesystems.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "create artifact directory "+dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".plan-*.tmp")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "create temp file in "+dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewPartialWriteError(path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewPartialWriteError(path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.NewPartialWriteError(path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.NewPartialWriteError(path, err)
	}
	return nil
}

// WriteDocument atomically writes an arbitrary serialized document, used
// for the workflow cycle history artifact which shares the swap discipline
// but not the plan lock.
func WriteDocument(path string, data []byte) error {
	return writeAtomic(path, data)
}

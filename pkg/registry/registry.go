// Package registry implements the Model Registry (C13): an append-only
// JSON ledger of RegistryEntry rows with at most one active and one
// last_good entry at a time, rewritten atomically under an advisory file
// lock (spec §3, §4's ownership note: "C13 owns registry file exclusively").
// The lock-then-rewrite pattern is grounded on tarsy's config package's
// load-merge-validate pipeline, adapted from an in-memory merge to an
// on-disk file swapped in under gofrs/flock.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/codeready-toolchain/milton/pkg/milerr"
)

// ErrConflict is returned when an operation would violate the at-most-one
// active / at-most-one last_good invariant and cannot be resolved
// automatically. Wraps milerr.ErrRegistryConflict so callers can match on
// either the package-local or the spec §7 cross-cutting sentinel.
var ErrConflict = fmt.Errorf("%w: registry conflict", milerr.ErrRegistryConflict)

// ErrNotFound is returned when a version lookup misses.
var ErrNotFound = errors.New("registry entry not found")

// Entry is one RegistryEntry row (spec §3).
type Entry struct {
	Version       string         `json:"version"`
	BaseModel     string         `json:"base_model"`
	DistilledFrom string         `json:"distilled_from,omitempty"`
	Quantization  string         `json:"quantization,omitempty"`
	ModelPath     string         `json:"model_path"`
	Timestamp     time.Time      `json:"timestamp"`
	Metrics       map[string]any `json:"metrics,omitempty"`
	Active        bool           `json:"active"`
	LastGood      bool           `json:"last_good"`
	CommitHash    string         `json:"commit_hash,omitempty"`
}

// Registry manages the on-disk registry.json ledger.
type Registry struct {
	path string
	lock *flock.Flock
}

// Open wires a Registry to the given registry.json path, creating the
// parent directory and an empty ledger if neither exists yet.
func Open(path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
			return nil, err
		}
	}
	return &Registry{path: path, lock: flock.New(path + ".lock")}, nil
}

// List returns every entry, unlocked (read-only, tolerant of a concurrent
// writer since atomicWrite swaps the whole file in by rename).
func (r *Registry) List() ([]Entry, error) {
	return r.read()
}

// Get returns the entry for version, or ErrNotFound.
func (r *Registry) Get(version string) (Entry, error) {
	entries, err := r.read()
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.Version == version {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, version)
}

// Append adds a new entry under the exclusive lock. If active is set on the
// new entry, every other entry's active flag is cleared first (spec §3:
// "at most one active=true"); the previously active entry's last_good flag
// is preserved untouched (spec §3: "flipping active must preserve last_good
// of the prior active entry").
func (r *Registry) Append(entry Entry) error {
	return r.withLock(func(entries []Entry) ([]Entry, error) {
		for _, e := range entries {
			if e.Version == entry.Version {
				return nil, fmt.Errorf("%w: version %s already registered", ErrConflict, entry.Version)
			}
		}
		if entry.Active {
			for i := range entries {
				entries[i].Active = false
			}
		}
		if entry.LastGood {
			for i := range entries {
				entries[i].LastGood = false
			}
		}
		return append(entries, entry), nil
	})
}

// SetActive marks version active and clears active on every other entry,
// without touching any entry's last_good flag.
func (r *Registry) SetActive(version string) error {
	return r.withLock(func(entries []Entry) ([]Entry, error) {
		found := false
		for i := range entries {
			if entries[i].Version == version {
				entries[i].Active = true
				found = true
			} else {
				entries[i].Active = false
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, version)
		}
		return entries, nil
	})
}

// SetLastGood marks version as last_good and clears the flag on every other
// entry.
func (r *Registry) SetLastGood(version string) error {
	return r.withLock(func(entries []Entry) ([]Entry, error) {
		found := false
		for i := range entries {
			if entries[i].Version == version {
				entries[i].LastGood = true
				found = true
			} else {
				entries[i].LastGood = false
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, version)
		}
		return entries, nil
	})
}

// Active returns the current active entry, if any.
func (r *Registry) Active() (Entry, bool, error) {
	entries, err := r.read()
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.Active {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// LastGood returns the current last-good entry, if any.
func (r *Registry) LastGood() (Entry, bool, error) {
	entries, err := r.read()
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.LastGood {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

func (r *Registry) read() ([]Entry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

// withLock reads the ledger under an exclusive lock, lets mutate transform
// it, validates the at-most-one invariants, and atomically rewrites the
// whole file (write-temp + rename) so readers never observe a torn file.
func (r *Registry) withLock(mutate func([]Entry) ([]Entry, error)) error {
	if err := r.lock.Lock(); err != nil {
		return fmt.Errorf("acquire registry lock: %w", err)
	}
	defer r.lock.Unlock()

	entries, err := r.read()
	if err != nil {
		return err
	}

	updated, err := mutate(entries)
	if err != nil {
		return err
	}

	if err := validateInvariants(updated); err != nil {
		return err
	}

	return r.atomicWrite(updated)
}

// validateInvariants enforces spec §3's RegistryEntry invariants: at most
// one active=true, at most one last_good=true.
func validateInvariants(entries []Entry) error {
	activeCount, lastGoodCount := 0, 0
	for _, e := range entries {
		if e.Active {
			activeCount++
		}
		if e.LastGood {
			lastGoodCount++
		}
	}
	if activeCount > 1 {
		return fmt.Errorf("%w: %d entries marked active", ErrConflict, activeCount)
	}
	if lastGoodCount > 1 {
		return fmt.Errorf("%w: %d entries marked last_good", ErrConflict, lastGoodCount)
	}
	return nil
}

func (r *Registry) atomicWrite(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}

// Package dedup implements request deduplication for the Request Gateway
// (C6, spec §4.3): a bloom/v3 filter as a fast-reject front end over an
// on-disk key file, from which Open rebuilds both the filter and an exact
// in-memory key set. A bloom miss means the id is new; a bloom hit ("maybe
// seen") is confirmed against the exact key set before the id is reported
// as a duplicate, so a false positive from the filter costs one extra
// lookup and never causes a new id to be rejected — the conservative
// reading of spec's "persisted bloom-set or on-disk key set" phrasing. The flock-guarded append-only file pattern
// mirrors C3's reminder log.
package dedup

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/gofrs/flock"
)

// expectedItems and falsePositiveRate size the bloom filter; both are
// generous for a single-node assistant's request volume.
const (
	expectedItems     = 1_000_000
	falsePositiveRate = 0.001
)

type seenEntry struct {
	ID   string    `json:"id"`
	Seen time.Time `json:"seen"`
}

// Deduplicator tracks request ids already processed.
type Deduplicator struct {
	path string
	lock *flock.Flock

	// op serializes whole Deduplicate calls within the process; the flock
	// does not exclude goroutines sharing one Flock.
	op sync.Mutex

	mu     sync.Mutex
	filter *bloom.BloomFilter
	keys   map[string]struct{}
}

// Open loads an existing key file (if any) and rebuilds both the bloom
// filter and the exact in-memory key set from it.
func Open(path string) (*Deduplicator, error) {
	d := &Deduplicator{
		path:   path,
		lock:   flock.New(path + ".lock"),
		filter: bloom.NewWithEstimates(expectedItems, falsePositiveRate),
		keys:   map[string]struct{}{},
	}
	if err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Deduplicator) load() error {
	f, err := os.OpenFile(d.path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open dedup key file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e seenEntry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		d.keys[e.ID] = struct{}{}
		d.filter.AddString(e.ID)
	}
	return scanner.Err()
}

// Deduplicate reports whether id has already been seen. If not, it
// atomically records id as seen and returns false ("not a duplicate").
func (d *Deduplicator) Deduplicate(id string, now time.Time) (isDuplicate bool, err error) {
	d.op.Lock()
	defer d.op.Unlock()

	d.mu.Lock()
	maybeSeen := d.filter.TestString(id)
	d.mu.Unlock()

	if !maybeSeen {
		if err := d.record(id, now); err != nil {
			return false, err
		}
		return false, nil
	}

	// Bloom filter says "maybe seen" — confirm against the exact key set
	// (rebuilt from the on-disk file at Open) to rule out a false positive.
	if err := d.lock.Lock(); err != nil {
		return false, fmt.Errorf("acquire dedup lock: %w", err)
	}
	defer d.lock.Unlock()

	d.mu.Lock()
	_, exact := d.keys[id]
	d.mu.Unlock()
	if exact {
		return true, nil
	}

	if err := d.appendLocked(id, now); err != nil {
		return false, err
	}
	d.mu.Lock()
	d.keys[id] = struct{}{}
	d.filter.AddString(id)
	d.mu.Unlock()
	return false, nil
}

// record is the fast path: bloom said definitely-not-seen, so id is new by
// construction. Still goes through the lock to append durably.
func (d *Deduplicator) record(id string, now time.Time) error {
	if err := d.lock.Lock(); err != nil {
		return fmt.Errorf("acquire dedup lock: %w", err)
	}
	defer d.lock.Unlock()

	if err := d.appendLocked(id, now); err != nil {
		return err
	}

	d.mu.Lock()
	d.keys[id] = struct{}{}
	d.filter.AddString(id)
	d.mu.Unlock()
	return nil
}

func (d *Deduplicator) appendLocked(id string, now time.Time) error {
	f, err := os.OpenFile(d.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(seenEntry{ID: id, Seen: now})
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

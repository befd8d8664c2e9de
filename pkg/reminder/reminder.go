// Package reminder implements the Reminder Scheduler (C3): a min-heap of
// pending reminders keyed by due_epoch, persisted as an append-only JSONL
// event log and reconstructed at startup (spec §4.4). The flock guard
// follows C13's registry package, which rewrites its file under the lock
// where this package appends to its log; the heap+ticker shape is
// grounded on tarsy's scheduling style in pkg/runbook (periodic polling
// loops), adapted from a fixed interval poll to a min-heap pop loop.
package reminder

import (
	"bufio"
	"container/heap"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gofrs/flock"

	"github.com/codeready-toolchain/milton/pkg/notify"
)

// EventKind is one entry in the append-only reminder log.
type EventKind string

const (
	EventCreate  EventKind = "create"
	EventDeliver EventKind = "deliver"
	EventCancel  EventKind = "cancel"
)

// Reminder is spec §3's Reminder record.
type Reminder struct {
	ID          string     `json:"id"`
	Owner       string     `json:"owner"`
	Task        string     `json:"task"`
	DueEpoch    time.Time  `json:"due_epoch"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	Channel     string     `json:"channel"`
}

// event is one JSONL log line.
type event struct {
	Kind      EventKind `json:"kind"`
	Reminder  Reminder  `json:"reminder"`
	Timestamp time.Time `json:"timestamp"`
}

// TickInterval is spec §4.4's 5-second granularity.
const TickInterval = 5 * time.Second

// dueHeap is a min-heap of pending reminders ordered by DueEpoch.
type dueHeap []*Reminder

func (h dueHeap) Len() int            { return len(h) }
func (h dueHeap) Less(i, j int) bool  { return h[i].DueEpoch.Before(h[j].DueEpoch) }
func (h dueHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *dueHeap) Push(x any)         { *h = append(*h, x.(*Reminder)) }
func (h *dueHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Scheduler owns the reminder log file and the in-memory heap reconstructed
// from it.
type Scheduler struct {
	logPath string
	lock    *flock.Flock
	channel notify.Channel
	log     *slog.Logger

	mu   sync.Mutex
	heap dueHeap
}

// Open reconstructs a Scheduler from logPath, replaying every create/cancel
// event and skipping reminders already marked delivered (spec §4.4:
// "replay on restart re-publishes only entries without delivered_at").
func Open(logPath string, channel notify.Channel) (*Scheduler, error) {
	s := &Scheduler{
		logPath: logPath,
		lock:    flock.New(logPath + ".lock"),
		channel: channel,
		log:     slog.With("component", "reminder"),
	}
	if err := s.replay(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) replay() error {
	f, err := os.OpenFile(s.logPath, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open reminder log: %w", err)
	}
	defer f.Close()

	pending := map[string]*Reminder{}
	delivered := map[string]bool{}
	cancelled := map[string]bool{}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e event
		if err := json.Unmarshal(line, &e); err != nil {
			s.log.Warn("skipping malformed reminder log line", "error", err)
			continue
		}
		switch e.Kind {
		case EventCreate:
			r := e.Reminder
			pending[r.ID] = &r
		case EventDeliver:
			delivered[e.Reminder.ID] = true
		case EventCancel:
			cancelled[e.Reminder.ID] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read reminder log: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.heap = nil
	for id, r := range pending {
		if delivered[id] || cancelled[id] {
			continue
		}
		heap.Push(&s.heap, r)
	}
	heap.Init(&s.heap)
	return nil
}

// Create persists a create event and adds the reminder to the heap. spec
// invariant: due_epoch >= created_at.
func (s *Scheduler) Create(owner, task string, dueEpoch time.Time, channel string, now time.Time) (*Reminder, error) {
	if dueEpoch.Before(now) {
		return nil, fmt.Errorf("due_epoch %s precedes created_at %s", dueEpoch, now)
	}
	r := &Reminder{
		ID:        uuid.NewString(),
		Owner:     owner,
		Task:      task,
		DueEpoch:  dueEpoch,
		CreatedAt: now,
		Channel:   channel,
	}
	if err := s.appendEvent(EventCreate, *r, now); err != nil {
		return nil, err
	}

	s.mu.Lock()
	heap.Push(&s.heap, r)
	s.mu.Unlock()
	return r, nil
}

// Cancel persists a cancel event and removes the reminder from the heap
// (a linear search, since container/heap has no O(1) arbitrary delete).
func (s *Scheduler) Cancel(reminderID string, now time.Time) error {
	if err := s.appendEvent(EventCancel, Reminder{ID: reminderID}, now); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.heap {
		if r.ID == reminderID {
			heap.Remove(&s.heap, i)
			break
		}
	}
	return nil
}

func (s *Scheduler) appendEvent(kind EventKind, r Reminder, now time.Time) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire reminder log lock: %w", err)
	}
	defer s.lock.Unlock()

	f, err := os.OpenFile(s.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(event{Kind: kind, Reminder: r, Timestamp: now})
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// Tick pops every reminder whose due_epoch has passed, delivers it (writing
// a deliver event before publish, for idempotence on crash), and returns
// how many were delivered. Late delivery after downtime is permitted and
// counted per spec §4.4.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (int, error) {
	var due []*Reminder

	s.mu.Lock()
	for s.heap.Len() > 0 && !s.heap[0].DueEpoch.After(now) {
		due = append(due, heap.Pop(&s.heap).(*Reminder))
	}
	s.mu.Unlock()

	delivered := 0
	for _, r := range due {
		if err := s.deliver(ctx, r, now); err != nil {
			s.log.Error("reminder delivery failed", "reminder_id", r.ID, "error", err)
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (s *Scheduler) deliver(ctx context.Context, r *Reminder, now time.Time) error {
	deliveredAt := now
	r.DeliveredAt = &deliveredAt

	if err := s.appendEvent(EventDeliver, *r, now); err != nil {
		return err
	}

	msg := notify.Message{
		Title: "Reminder",
		Body:  r.Task,
		Tags:  map[string]string{"reminder_id": r.ID},
	}
	return s.channel.Publish(ctx, msg)
}

// Run blocks, ticking every TickInterval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if _, err := s.Tick(ctx, t); err != nil {
				s.log.Error("reminder tick failed", "error", err)
			}
		}
	}
}

// Pending returns a snapshot of the reminders still on the heap (not yet
// delivered, including any already due but not yet ticked), for
// inspection (e.g. API surfacing).
func (s *Scheduler) Pending() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reminder, 0, len(s.heap))
	for _, r := range s.heap {
		out = append(out, *r)
	}
	return out
}

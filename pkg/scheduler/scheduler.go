// Package scheduler hosts C12's trigger table: a robfig/cron/v3 scheduler
// driving the four recurring jobs named in spec §4.10 (autobench,
// morning_briefing, job_queue, reminder_tick), persisting last-run times.
// CatchUp gives a trigger a single catch-up run when its last recorded run
// is older than a caller-supplied interval; cmd/milton does not call
// CatchUp, so a window missed while the host was down is not caught up at
// startup.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/codeready-toolchain/milton/pkg/config"
)

// TriggerHandler executes one named trigger's work.
type TriggerHandler func(ctx context.Context) error

// ResourceCeilings documents the advisory limits spec §4.10 assigns the
// host process; robfig/cron has no notion of cgroup enforcement, so these
// are carried as configuration metadata for whatever process supervisor
// starts the binary (e.g. a systemd unit's MemoryMax=/CPUQuota=).
type ResourceCeilings struct {
	MemMaxBytes int64
	CPUQuotaPct int
}

// DefaultResourceCeilings matches spec §4.10: mem_max=8GiB, cpu_quota=400%.
var DefaultResourceCeilings = ResourceCeilings{
	MemMaxBytes: 8 * 1024 * 1024 * 1024,
	CPUQuotaPct: 400,
}

// triggerState is the persisted last-run bookkeeping, one entry per trigger
// name, written to <state_root>/scheduler/trigger_state.json.
type triggerState map[string]time.Time

// Host owns the cron scheduler, the handler registry, and last-run state.
type Host struct {
	cronRunner   *cron.Cron
	statePath    string
	log          *slog.Logger
	rng          *rand.Rand
	ceilings     ResourceCeilings

	mu    sync.Mutex
	state triggerState
}

// New builds a Host. statePath is typically stateroot.Root.TriggerState().
func New(statePath string) *Host {
	return &Host{
		cronRunner: cron.New(),
		statePath:  statePath,
		log:        slog.With("component", "scheduler"),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		ceilings:   DefaultResourceCeilings,
		state:      triggerState{},
	}
}

// Load reads persisted trigger state, tolerating a missing file.
func (h *Host) Load() error {
	data, err := os.ReadFile(h.statePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read trigger state: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return json.Unmarshal(data, &h.state)
}

func (h *Host) save() error {
	data, err := json.MarshalIndent(h.state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(h.statePath, data, 0o644)
}

// Register wires one config.TriggerConfig to its handler, applying jitter
// (a random delay up to jitter_s added to each fire) and the post-boot
// delay (every fire within PostBootDelay of this Register call is skipped)
// per spec.
//
// Go 1.25.6 project idiom: cron_expr of "@every 5s" etc. is parsed directly
// by robfig/cron, which understands both the standard 5-field cron syntax
// and its own "@every <duration>" shorthand.
func (h *Host) Register(t config.TriggerConfig, handler TriggerHandler) error {
	bootDeadline := time.Now().Add(t.PostBootDelay)

	wrapped := func() {
		if time.Now().Before(bootDeadline) {
			h.log.Info("skipping trigger fire within post-boot delay window", "trigger", t.Name)
			return
		}
		if t.JitterS > 0 {
			delay := time.Duration(h.rng.Intn(t.JitterS+1)) * time.Second
			time.Sleep(delay)
		}
		h.fire(t.Name, handler)
	}

	_, err := h.cronRunner.AddFunc(t.CronExpr, wrapped)
	if err != nil {
		return fmt.Errorf("register trigger %q (%q): %w", t.Name, t.CronExpr, err)
	}
	return nil
}

func (h *Host) fire(name string, handler TriggerHandler) {
	log := h.log.With("trigger", name)
	log.Info("trigger fired")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := handler(ctx); err != nil {
		log.Error("trigger handler failed", "error", err)
		return
	}

	h.mu.Lock()
	h.state[name] = time.Now()
	err := h.save()
	h.mu.Unlock()
	if err != nil {
		log.Error("persist trigger state failed", "error", err)
	}
}

// CatchUp runs handler immediately, once, for any registered trigger whose
// last recorded run predates the given cutoff (i.e. a scheduled fire was
// missed while the process was down). Only a single catch-up run happens
// per trigger, matching spec §4.10's "single catch-up run after a missed
// window".
func (h *Host) CatchUp(ctx context.Context, name string, expectedInterval time.Duration, handler TriggerHandler) {
	h.mu.Lock()
	last, ok := h.state[name]
	h.mu.Unlock()

	if ok && time.Since(last) <= expectedInterval {
		return
	}

	h.log.Info("running missed-window catch-up", "trigger", name, "last_run", last)
	if err := handler(ctx); err != nil {
		h.log.Error("catch-up handler failed", "trigger", name, "error", err)
		return
	}

	h.mu.Lock()
	h.state[name] = time.Now()
	err := h.save()
	h.mu.Unlock()
	if err != nil {
		h.log.Error("persist trigger state after catch-up failed", "error", err)
	}
}

// Start begins the cron scheduler loop (non-blocking; robfig/cron runs its
// own goroutine).
func (h *Host) Start() {
	h.cronRunner.Start()
}

// Stop halts the scheduler, waiting for any in-flight trigger to finish.
func (h *Host) Stop(ctx context.Context) error {
	stopCtx := h.cronRunner.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

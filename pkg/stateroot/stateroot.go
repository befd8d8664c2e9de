// Package stateroot resolves the filesystem layout Milton persists under.
//
// Every other package that touches disk is handed a *Root instead of raw
// strings, so the layout in spec §6 is defined in exactly one place.
package stateroot

import (
	"os"
	"path/filepath"
)

// EnvVar is the environment variable that overrides the default state root.
const EnvVar = "MILTON_STATE_DIR"

// DefaultDir is used when EnvVar is unset, relative to the user's home directory.
const DefaultDir = ".local/state/milton"

// Root is the resolved state root and its well-known subdirectories.
type Root struct {
	Base string
}

// Resolve returns the state root, honoring MILTON_STATE_DIR, defaulting to
// ~/.local/state/milton.
func Resolve() (*Root, error) {
	if dir := os.Getenv(EnvVar); dir != "" {
		return &Root{Base: dir}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Root{Base: filepath.Join(home, DefaultDir)}, nil
}

// New wraps an explicit base path (used by tests and by an explicit
// state_dir in config).
func New(base string) *Root { return &Root{Base: base} }

func (r *Root) path(parts ...string) string {
	return filepath.Join(append([]string{r.Base}, parts...)...)
}

// MkdirAll creates every well-known subdirectory.
func (r *Root) MkdirAll() error {
	dirs := []string{
		r.BenchmarkRuns(),
		r.Bundles(),
		r.Deployments(),
		r.DeploymentHistory(),
		r.Models(),
		r.JobQueueTonight(),
		r.JobQueueArchive(),
		r.Outputs(),
		r.Reminders(),
		r.Memory(),
		r.Dedup(),
		r.path("scheduler"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (r *Root) BenchmarkRuns() string      { return r.path("benchmarks", "runs") }
func (r *Root) Bundles() string            { return r.path("bundles") }
func (r *Root) Deployments() string        { return r.path("deployments") }
func (r *Root) DeploymentHistory() string  { return r.path("deployment_history") }
func (r *Root) Models() string             { return r.path("models") }
func (r *Root) RegistryFile() string       { return r.path("models", "registry.json") }
func (r *Root) JobQueueTonight() string    { return r.path("job_queue", "tonight") }
func (r *Root) JobQueueArchive() string    { return r.path("job_queue", "archive") }
func (r *Root) Outputs() string            { return r.path("outputs") }
func (r *Root) Reminders() string          { return r.path("reminders") }
func (r *Root) ReminderLog() string        { return r.path("reminders", "log.jsonl") }
func (r *Root) Memory() string             { return r.path("memory") }
func (r *Root) MemoryDB() string           { return r.path("memory", "memory.db") }
func (r *Root) Dedup() string              { return r.path("dedup") }
func (r *Root) DedupKeys() string          { return r.path("dedup", "seen.jsonl") }
func (r *Root) TriggerState() string       { return r.path("scheduler", "trigger_state.json") }

// Milton orchestrator server: wires every component package into the HTTP
// API, the scheduler's four recurring triggers, and the overnight job
// queue, then serves until SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/milton/pkg/api"
	"github.com/codeready-toolchain/milton/pkg/briefing"
	"github.com/codeready-toolchain/milton/pkg/config"
	"github.com/codeready-toolchain/milton/pkg/dedup"
	"github.com/codeready-toolchain/milton/pkg/events"
	"github.com/codeready-toolchain/milton/pkg/gateway"
	"github.com/codeready-toolchain/milton/pkg/inference"
	"github.com/codeready-toolchain/milton/pkg/jobqueue"
	"github.com/codeready-toolchain/milton/pkg/memory"
	"github.com/codeready-toolchain/milton/pkg/notify"
	"github.com/codeready-toolchain/milton/pkg/pipeline"
	"github.com/codeready-toolchain/milton/pkg/reminder"
	"github.com/codeready-toolchain/milton/pkg/router"
	"github.com/codeready-toolchain/milton/pkg/scheduler"
	"github.com/codeready-toolchain/milton/pkg/stateroot"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	if err := run(); err != nil {
		slog.Error("milton exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("no .env file loaded", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment", "path", envPath)
	}

	cfg, err := config.Initialize(*configDir)
	if err != nil {
		return fmt.Errorf("initialize config: %w", err)
	}

	root, err := resolveRoot(cfg)
	if err != nil {
		return fmt.Errorf("resolve state root: %w", err)
	}
	if err := root.MkdirAll(); err != nil {
		return fmt.Errorf("create state dirs: %w", err)
	}
	slog.Info("state root resolved", "base", root.Base)

	notifyChannel := buildNotifyChannel(cfg.Notify)

	memStore, err := memory.Open(root.MemoryDB(), cfg.Retention)
	if err != nil {
		return fmt.Errorf("open memory store: %w", err)
	}
	defer func() {
		if err := memStore.Close(); err != nil {
			slog.Warn("closing memory store", "error", err)
		}
	}()

	reminderScheduler, err := reminder.Open(root.ReminderLog(), notifyChannel)
	if err != nil {
		return fmt.Errorf("open reminder scheduler: %w", err)
	}

	deduplicator, err := dedup.Open(root.DedupKeys())
	if err != nil {
		return fmt.Errorf("open deduplicator: %w", err)
	}

	inferenceClient := inference.New(cfg.Inference)
	agentRouter := router.New(inferenceClient)
	connManager := events.NewConnectionManager(10 * time.Second)

	gw := gateway.New(agentRouter, inferenceClient, memStore, reminderScheduler, connManager, deduplicator)

	jobRunner := jobqueue.New(root, jobHandler(gw))

	briefingAssembler := newBriefingAssembler(cfg.Briefing)

	sched := scheduler.New(root.TriggerState())
	if err := sched.Load(); err != nil {
		return fmt.Errorf("load scheduler state: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := registerTriggers(ctx, sched, cfg, root, inferenceClient, jobRunner, reminderScheduler, briefingAssembler, notifyChannel); err != nil {
		return fmt.Errorf("register triggers: %w", err)
	}
	sched.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sched.Stop(shutdownCtx); err != nil {
			slog.Warn("stopping scheduler", "error", err)
		}
	}()

	server := api.NewServer(gw, jobRunner, cfg.System.AllowedWSOrigins)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "port", cfg.System.HTTPPort)
		if err := server.Start(":" + cfg.System.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func resolveRoot(cfg *config.Config) (*stateroot.Root, error) {
	if cfg.System.StateDir != "" {
		return stateroot.New(cfg.System.StateDir), nil
	}
	return stateroot.Resolve()
}

// buildNotifyChannel fans reminder/briefing delivery out to every enabled
// channel in cfg.Notify; an empty NotifyConfig yields notify.Multi{} (a
// no-op publisher), matching a single-node deployment with no channels
// configured yet.
func buildNotifyChannel(cfg config.NotifyConfig) notify.Channel {
	var channels []notify.Channel
	if cfg.Slack != nil && cfg.Slack.Enabled {
		channels = append(channels, notify.NewSlackChannel(*cfg.Slack))
	}
	if cfg.Push != nil && cfg.Push.Enabled {
		channels = append(channels, notify.NewPushChannel(*cfg.Push))
	}
	return notify.Multi{Channels: channels}
}

// newBriefingAssembler builds the morning-briefing assembler from
// cfg.Briefing, skipping any section whose fetch endpoint is unconfigured
// (a blank URL means that section was never set up to run).
func newBriefingAssembler(cfg config.BriefingConfig) *briefing.Assembler {
	var fetchers []briefing.Fetcher
	if cfg.WeatherPointsURL != "" {
		fetchers = append(fetchers, briefing.NewWeatherFetcher(cfg.WeatherPointsURL))
	}
	if cfg.NewsFeedURL != "" {
		fetchers = append(fetchers, briefing.NewNewsFetcher(cfg.NewsFeedURL, cfg.NewsLimit))
	}
	if cfg.ArxivQuery != "" {
		fetchers = append(fetchers, briefing.NewArxivFetcher(cfg.ArxivQuery, cfg.ArxivMaxResults))
	}
	if cfg.CalendarICSURL != "" {
		fetchers = append(fetchers, briefing.NewCalendarFetcher(cfg.CalendarICSURL))
	}
	return briefing.New(fetchers, cfg.FetchTimeout)
}

// jobHandler dispatches one overnight job by kind. Milton's only concrete
// job kind today is "gateway.query": submit a stored query through the
// gateway and write the submit result (request id, assigned agent,
// confidence) as the job's sole output artifact; the agent's streamed
// response text is not written. Unknown kinds fail the job rather than
// silently succeeding.
func jobHandler(gw *gateway.Gateway) jobqueue.Handler {
	return func(ctx context.Context, job jobqueue.Job, outputsDir string) ([]string, error) {
		switch job.Kind {
		case "gateway.query":
			query, _ := job.Payload["query"].(string)
			if query == "" {
				return nil, fmt.Errorf("job %s: gateway.query requires a non-empty query field", job.ID)
			}
			result, err := gw.Submit(ctx, query, "", time.Now())
			if err != nil {
				return nil, fmt.Errorf("job %s: gateway submit: %w", job.ID, err)
			}
			outPath := filepath.Join(outputsDir, "result.txt")
			content := fmt.Sprintf("request_id=%s agent=%s confidence=%.2f\n", result.RequestID, result.AgentAssigned, result.Confidence)
			if err := os.WriteFile(outPath, []byte(content), 0o644); err != nil {
				return nil, fmt.Errorf("job %s: write result: %w", job.ID, err)
			}
			return []string{outPath}, nil
		default:
			return nil, fmt.Errorf("job %s: unknown job kind %q", job.ID, job.Kind)
		}
	}
}

// registerTriggers wires spec §4.10's four recurring triggers to their
// handlers. reminder_tick is driven here, through the scheduler's own cron
// table, rather than reminder.Scheduler.Run's internal ticker: one
// cron-configured interval is the single source of truth for how often
// reminders are polled, and it stays consistent with autobench/briefing/
// job_queue all going through the same Host.
func registerTriggers(
	ctx context.Context,
	sched *scheduler.Host,
	cfg *config.Config,
	root *stateroot.Root,
	inferenceClient *inference.Client,
	jobRunner *jobqueue.Runner,
	reminderScheduler *reminder.Scheduler,
	briefingAssembler *briefing.Assembler,
	notifyChannel notify.Channel,
) error {
	triggerByName := make(map[string]config.TriggerConfig, len(cfg.Triggers))
	for _, t := range cfg.Triggers {
		triggerByName[t.Name] = t
	}

	if t, ok := triggerByName["autobench"]; ok {
		if err := sched.Register(t, func(ctx context.Context) error {
			_, err := pipeline.AutobenchPipeline(ctx, root, cfg, inferenceClient, time.Now())
			if errors.Is(err, pipeline.ErrNoCandidate) {
				slog.Info("autobench found no deployable candidate")
				return nil
			}
			return err
		}); err != nil {
			return err
		}
	}

	if t, ok := triggerByName["morning_briefing"]; ok {
		if err := sched.Register(t, func(ctx context.Context) error {
			b := briefingAssembler.Assemble(ctx, time.Now())
			return briefingAssembler.Publish(ctx, notifyChannel, b)
		}); err != nil {
			return err
		}
	}

	if t, ok := triggerByName["job_queue"]; ok {
		if err := sched.Register(t, func(ctx context.Context) error {
			_, err := jobRunner.RunAll(ctx, time.Now)
			return err
		}); err != nil {
			return err
		}
	}

	if t, ok := triggerByName["reminder_tick"]; ok {
		if err := sched.Register(t, func(ctx context.Context) error {
			_, err := reminderScheduler.Tick(ctx, time.Now())
			return err
		}); err != nil {
			return err
		}
	}

	return nil
}

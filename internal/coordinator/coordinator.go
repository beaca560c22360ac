// Package coordinator tracks active automation targets, relays start/stop
// commands to the workflow controller, and fans progress out to
// notification channels and event subscribers. At most one run per target:
// duplicate starts are rejected while the target is in the active set.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"exportsweep/internal/domain"
	"exportsweep/internal/ports"
)

// Runner executes one export run against a target. The production
// implementation launches a browser session and drives the workflow
// controller; tests substitute a scripted runner.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (domain.RunStats, domain.RunState, error)
}

// RunRequest carries everything a runner needs for one run.
type RunRequest struct {
	TargetID   string
	RunID      string
	Background bool

	// ShouldStop is polled by the controller once per outer-loop iteration.
	ShouldStop func() bool

	// OnProgress receives an event after every per-item completion.
	OnProgress func(domain.ProgressEvent)
}

// EventType distinguishes pushed events.
type EventType string

const (
	EventProgress EventType = "exportProgressUpdate"
	EventComplete EventType = "exportComplete"
)

// Event is delivered to subscribers and, serialized, to event sinks.
type Event struct {
	Type     EventType               `json:"event"`
	TargetID string                  `json:"targetId"`
	Progress *domain.ProgressEvent   `json:"progress,omitempty"`
	Complete *domain.CompletionEvent `json:"complete,omitempty"`
}

// Status is the answer to a status query.
type Status struct {
	IsRunning    bool            `json:"isRunning"`
	RunID        string          `json:"runId,omitempty"`
	State        domain.RunState `json:"state"`
	Stats        domain.RunStats `json:"stats"`
	CurrentTitle string          `json:"currentTitle,omitempty"`
	Stalled      bool            `json:"stalled,omitempty"`
}

// Options wires a coordinator.
type Options struct {
	Runner    Runner
	Notifiers []ports.Notifier
	Events    ports.EventSink
	History   ports.RunRepository
	Watchdog  ports.Ticker

	// NotifyEvery controls the every-Nth-item notification. Defaults to 10.
	NotifyEvery int

	// StallAfter is the idle threshold before a run is flagged as possibly
	// stalled. Defaults to 2 minutes.
	StallAfter time.Duration

	Logger *slog.Logger
}

// Coordinator supervises runs across targets.
type Coordinator struct {
	runner      Runner
	notifiers   []ports.Notifier
	events      ports.EventSink
	history     ports.RunRepository
	watchdog    ports.Ticker
	notifyEvery int
	stallAfter  time.Duration
	logger      *slog.Logger

	mu         sync.Mutex
	active     map[string]*runHandle
	lastResult map[string]domain.CompletionEvent
	subs       map[int]chan Event
	nextSub    int
}

type runHandle struct {
	runID  string
	cancel context.CancelFunc
	stop   atomic.Bool

	mu           sync.Mutex
	stats        domain.RunStats
	currentTitle string
	lastProgress time.Time
	stalled      bool
}

// New builds a coordinator.
func New(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifyEvery := opts.NotifyEvery
	if notifyEvery <= 0 {
		notifyEvery = 10
	}
	stallAfter := opts.StallAfter
	if stallAfter <= 0 {
		stallAfter = 2 * time.Minute
	}
	return &Coordinator{
		runner:      opts.Runner,
		notifiers:   opts.Notifiers,
		events:      opts.Events,
		history:     opts.History,
		watchdog:    opts.Watchdog,
		notifyEvery: notifyEvery,
		stallAfter:  stallAfter,
		logger:      logger,
		active:      map[string]*runHandle{},
		lastResult:  map[string]domain.CompletionEvent{},
		subs:        map[int]chan Event{},
	}
}

// Start registers the target as active and launches a run. The returned
// run ID is an immediate acknowledgement; the result arrives later as an
// exportComplete event. A target with a run in flight rejects the start.
func (c *Coordinator) Start(targetID string, background bool) (string, error) {
	if targetID == "" {
		return "", fmt.Errorf("target id is required")
	}

	c.mu.Lock()
	if _, busy := c.active[targetID]; busy {
		c.mu.Unlock()
		return "", fmt.Errorf("target %s already has an export running", targetID)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	handle := &runHandle{
		runID:        uuid.New().String(),
		cancel:       cancel,
		lastProgress: time.Now(),
	}
	c.active[targetID] = handle
	c.mu.Unlock()

	c.logger.Info("starting export run", "target", targetID, "run_id", handle.runID, "background", background)
	c.notify(fmt.Sprintf("export run %s started on target %s", handle.runID, targetID))

	go c.execute(runCtx, targetID, handle, background)

	return handle.runID, nil
}

func (c *Coordinator) execute(ctx context.Context, targetID string, handle *runHandle, background bool) {
	defer handle.cancel()

	stats, state, err := c.runner.Run(ctx, RunRequest{
		TargetID:   targetID,
		RunID:      handle.runID,
		Background: background,
		ShouldStop: handle.stop.Load,
		OnProgress: func(ev domain.ProgressEvent) {
			c.onProgress(targetID, handle, ev)
		},
	})

	complete := domain.CompletionEvent{
		RunID: handle.runID,
		State: state,
		Stats: stats,
	}
	if err != nil {
		complete.Error = err.Error()
	}

	c.mu.Lock()
	delete(c.active, targetID)
	c.lastResult[targetID] = complete
	c.mu.Unlock()

	c.logger.Info("export run finished", "target", targetID, "run_id", handle.runID,
		"state", state, "processed", stats.FilesProcessed, "errored", stats.FilesErrored, "error", err)

	c.notify(fmt.Sprintf("export run %s on target %s finished (%s): %d processed, %d errored, %d skipped",
		handle.runID, targetID, state, stats.FilesProcessed, stats.FilesErrored, stats.FilesSkipped))
	c.broadcast(Event{Type: EventComplete, TargetID: targetID, Complete: &complete})

	if c.history != nil {
		record := domain.RunRecord{
			RunID:     handle.runID,
			TargetID:  targetID,
			State:     state,
			Stats:     stats,
			CreatedAt: time.Now(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.history.SaveRun(ctx, record); err != nil {
			c.logger.Warn("cannot persist run history", "run_id", handle.runID, "error", err)
		}
	}
}

func (c *Coordinator) onProgress(targetID string, handle *runHandle, ev domain.ProgressEvent) {
	handle.mu.Lock()
	handle.stats = ev.Stats
	handle.currentTitle = ev.CurrentTitle
	handle.lastProgress = time.Now()
	handle.stalled = false
	handle.mu.Unlock()

	c.broadcast(Event{Type: EventProgress, TargetID: targetID, Progress: &ev})

	done := ev.Stats.FilesProcessed + ev.Stats.FilesErrored
	if done > 0 && done%c.notifyEvery == 0 {
		c.notify(fmt.Sprintf("progress on target %s: %d processed, %d errored (last item: %s)",
			targetID, ev.Stats.FilesProcessed, ev.Stats.FilesErrored, ev.CurrentTitle))
	}
}

// Stop sets the stop flag for the target's run. The in-flight item is
// allowed to finish; the run transitions to Stopped at the next loop
// boundary.
func (c *Coordinator) Stop(targetID string) error {
	c.mu.Lock()
	handle, ok := c.active[targetID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("no export running for target %s", targetID)
	}
	handle.stop.Store(true)
	c.logger.Info("stop requested", "target", targetID, "run_id", handle.runID)
	return nil
}

// ShouldStop reports whether a stop was requested for the target.
func (c *Coordinator) ShouldStop(targetID string) bool {
	c.mu.Lock()
	handle, ok := c.active[targetID]
	c.mu.Unlock()
	if !ok {
		return false
	}
	return handle.stop.Load()
}

// Status answers a status query for the target, falling back to the last
// finished run when nothing is active.
func (c *Coordinator) Status(targetID string) Status {
	c.mu.Lock()
	handle, running := c.active[targetID]
	last, finished := c.lastResult[targetID]
	c.mu.Unlock()

	if running {
		handle.mu.Lock()
		defer handle.mu.Unlock()
		return Status{
			IsRunning:    true,
			RunID:        handle.runID,
			State:        domain.StateRunning,
			Stats:        handle.stats,
			CurrentTitle: handle.currentTitle,
			Stalled:      handle.stalled,
		}
	}
	if finished {
		return Status{RunID: last.RunID, State: last.State, Stats: last.Stats}
	}
	return Status{State: domain.StateIdle}
}

// Subscribe returns a channel of pushed events and an unsubscribe func.
// Slow subscribers drop events rather than blocking the run.
func (c *Coordinator) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, 64)
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// StartWatchdog begins the liveness check: a run without progress events
// for the stall threshold is flagged and reported, without altering run
// state.
func (c *Coordinator) StartWatchdog(ctx context.Context) error {
	if c.watchdog == nil {
		return nil
	}
	return c.watchdog.Start(ctx, c.checkStalls)
}

func (c *Coordinator) checkStalls(now time.Time) {
	c.mu.Lock()
	handles := make(map[string]*runHandle, len(c.active))
	for target, handle := range c.active {
		handles[target] = handle
	}
	c.mu.Unlock()

	for target, handle := range handles {
		handle.mu.Lock()
		idle := now.Sub(handle.lastProgress)
		flag := idle >= c.stallAfter && !handle.stalled
		if flag {
			handle.stalled = true
		}
		runID := handle.runID
		handle.mu.Unlock()

		if flag {
			c.logger.Warn("run possibly stalled", "target", target, "run_id", runID, "idle", idle)
			c.notify(fmt.Sprintf("export run %s on target %s may be stalled: no progress for %s",
				runID, target, idle.Round(time.Second)))
		}
	}
}

// Shutdown stops the watchdog and cancels every active run.
func (c *Coordinator) Shutdown(ctx context.Context) {
	if c.watchdog != nil {
		_ = c.watchdog.Stop(ctx)
	}
	c.mu.Lock()
	for _, handle := range c.active {
		handle.cancel()
	}
	c.mu.Unlock()
}

func (c *Coordinator) notify(status string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, n := range c.notifiers {
		if err := n.PublishStatus(ctx, status); err != nil {
			c.logger.Warn("notifier failed", "error", err)
		}
	}
}

func (c *Coordinator) broadcast(ev Event) {
	c.mu.Lock()
	subs := make([]chan Event, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- ev:
		default:
		}
	}

	if c.events != nil {
		payload, err := json.Marshal(ev)
		if err != nil {
			c.logger.Warn("cannot marshal event", "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.events.SendEvent(ctx, payload); err != nil {
			c.logger.Warn("event sink failed", "error", err)
		}
	}
}

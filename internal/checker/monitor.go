package checker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/handlewatch/internal/common"
	"github.com/dmitrijs2005/handlewatch/internal/handles"
	"github.com/dmitrijs2005/handlewatch/internal/logging"
	"github.com/dmitrijs2005/handlewatch/internal/timex"
)

// State of the monitoring loop.
type State string

const (
	StateIdle     State = "idle"
	StateChecking State = "checking"
	StateWaiting  State = "waiting"
	StateStopped  State = "stopped"
)

// Store is the part of storage the loop reads and writes.
type Store interface {
	HandleNamesForCheck(ctx context.Context) ([]string, error)
	// UpdateStatus writes status and returns the status stored before.
	UpdateStatus(ctx context.Context, name string, status handles.Status) (handles.Status, error)
}

// Notifier receives freed-handle transitions.
type Notifier interface {
	Freed(ctx context.Context, t handles.Transition)
}

type MonitorOptions struct {
	BatchSize    int
	BatchDelay   time.Duration
	CycleDelay   time.Duration
	EmptyPoll    time.Duration
	ErrorBackoff time.Duration
}

// CycleSummary describes the last completed cycle.
type CycleSummary struct {
	Started   time.Time
	Finished  time.Time
	Handles   int
	Checked   int
	Errors    int
	Freed     int
	Throttles int
}

type Monitor struct {
	checker *Checker
	store   Store
	notify  Notifier
	log     logging.Logger
	metrics *Metrics

	mu     sync.Mutex
	opts   MonitorOptions
	cancel context.CancelFunc
	done   chan struct{}

	running atomic.Bool
	state   atomic.Value
	last    atomic.Pointer[CycleSummary]

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewMonitor(c *Checker, store Store, notify Notifier, log logging.Logger) *Monitor {
	m := &Monitor{
		checker: c,
		store:   store,
		notify:  notify,
		log:     log.With("module", "monitor"),
		metrics: c.metrics,
		sleep:   timex.Sleep,
		now:     time.Now,
	}
	m.state.Store(StateIdle)
	return m
}

// Options returns the tunables of the current or last run.
func (m *Monitor) Options() MonitorOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts
}

func (m *Monitor) Running() bool { return m.running.Load() }

func (m *Monitor) State() State { return m.state.Load().(State) }

// LastCycle returns the summary of the last finished cycle, if any.
func (m *Monitor) LastCycle() (CycleSummary, bool) {
	s := m.last.Load()
	if s == nil {
		return CycleSummary{}, false
	}
	return *s, true
}

// Start launches the loop with opts. The loop lives until Stop or until
// parent is done. Starting a running monitor, or one whose previous loop
// has not exited yet, fails with common.ErrMonitoringActive.
func (m *Monitor) Start(parent context.Context, opts MonitorOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		return common.ErrMonitoringActive
	}
	// a stopped loop may still be finishing its batch
	if m.done != nil {
		select {
		case <-m.done:
		default:
			return common.ErrMonitoringActive
		}
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	m.opts = opts
	if m.cancel != nil {
		m.cancel()
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	m.cancel, m.done = cancel, done
	m.running.Store(true)
	m.metrics.Running.Set(1)
	m.setState(StateChecking)

	go func() {
		defer close(done)
		m.run(ctx, opts)
	}()
	return nil
}

// Stop clears the running flag, cancels pending sleeps and waits for the
// loop to exit or ctx to end.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if done == nil {
		return common.ErrMonitoringInactive
	}
	m.running.Store(false)
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) setState(s State) { m.state.Store(s) }

func (m *Monitor) run(ctx context.Context, opts MonitorOptions) {
	defer func() {
		m.running.Store(false)
		m.metrics.Running.Set(0)
		m.setState(StateStopped)
		m.log.Info(context.WithoutCancel(ctx), "monitoring stopped")
	}()

	m.log.Info(ctx, "monitoring started", "batch_size", opts.BatchSize,
		"concurrency", m.checker.Concurrency(), "cycle_delay", opts.CycleDelay)

	for m.running.Load() {
		err := m.cycle(ctx, opts)
		if ctx.Err() != nil || !m.running.Load() {
			return
		}
		if err != nil {
			m.metrics.CycleErrors.Inc()
			m.log.Error(ctx, "monitoring cycle failed", "error", err)
			m.setState(StateWaiting)
			if m.sleep(ctx, opts.ErrorBackoff) != nil {
				return
			}
		}
	}
}

// cycle checks every stored handle once. Results of a batch interrupted by
// cancellation are discarded.
func (m *Monitor) cycle(ctx context.Context, opts MonitorOptions) error {
	names, err := m.store.HandleNamesForCheck(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		m.log.Debug(ctx, "no handles to check")
		m.setState(StateWaiting)
		return m.sleep(ctx, opts.EmptyPoll)
	}

	sum := CycleSummary{Started: m.now(), Handles: len(names)}
	size := opts.BatchSize
	batches := (len(names) + size - 1) / size
	m.log.Info(ctx, "check cycle started", "handles", len(names), "batches", batches)

	for i := 0; i < len(names); i += size {
		if !m.running.Load() {
			return nil
		}
		m.setState(StateChecking)
		batch := names[i:min(i+size, len(names))]

		res := m.checker.CheckBatch(ctx, batch, m.Running)
		if err := ctx.Err(); err != nil {
			return err
		}
		sum.Checked += res.Checked
		if res.Throttled {
			sum.Throttles++
		}

		for _, name := range batch {
			status := res.Statuses[name]
			if status == handles.StatusError {
				sum.Errors++
			}
			old, err := m.store.UpdateStatus(ctx, name, status)
			if errors.Is(err, common.ErrorNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if handles.ShouldNotify(old, status) {
				sum.Freed++
				m.metrics.FreedTotal.Inc()
				m.log.Info(ctx, "handle freed", "handle", handles.Format(name), "previous", old)
				m.notify.Freed(ctx, handles.Transition{Name: name, Old: old, New: status})
			}
		}

		m.log.Debug(ctx, "batch checked", "batch", i/size+1, "of", batches)
		if i+size < len(names) {
			m.setState(StateWaiting)
			if err := m.sleep(ctx, opts.BatchDelay); err != nil {
				return err
			}
		}
	}

	sum.Finished = m.now()
	m.last.Store(&sum)
	m.metrics.CyclesTotal.Inc()
	m.metrics.CycleSeconds.Observe(sum.Finished.Sub(sum.Started).Seconds())
	m.log.Info(ctx, "check cycle completed", "checked", sum.Checked, "freed", sum.Freed,
		"errors", sum.Errors, "next_in", opts.CycleDelay)

	m.setState(StateWaiting)
	return m.sleep(ctx, opts.CycleDelay)
}

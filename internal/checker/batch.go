// Package checker drives directory lookups: a throttle-aware batch checker
// and the long-running monitoring loop built on it.
package checker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dmitrijs2005/handlewatch/internal/directory"
	"github.com/dmitrijs2005/handlewatch/internal/handles"
	"github.com/dmitrijs2005/handlewatch/internal/logging"
	"github.com/dmitrijs2005/handlewatch/internal/timex"
)

// MaxRecheck caps how long a throttle cooldown sleeps between checks of
// the running predicate.
const MaxRecheck = time.Minute

// Lookup resolves one handle to a status. *directory.Adapter satisfies it.
type Lookup interface {
	Resolve(ctx context.Context, name string) (handles.Status, error)
}

type Options struct {
	Concurrency     int
	LookupDelay     time.Duration
	ThrottleRecheck time.Duration
}

// BatchResult is the outcome of CheckBatch. Statuses is keyed by the input
// strings as given.
type BatchResult struct {
	Statuses  map[string]handles.Status
	Throttled bool
	Wait      time.Duration
	Checked   int
	Skipped   int
}

type Checker struct {
	lookup      Lookup
	concurrency atomic.Int64
	lookupDelay time.Duration
	recheck     time.Duration
	log         logging.Logger
	metrics     *Metrics

	sleep func(ctx context.Context, d time.Duration) error
}

func New(lookup Lookup, opts Options, metrics *Metrics, log logging.Logger) *Checker {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	recheck := opts.ThrottleRecheck
	if recheck <= 0 || recheck > MaxRecheck {
		recheck = MaxRecheck
	}
	c := &Checker{
		lookup:      lookup,
		lookupDelay: opts.LookupDelay,
		recheck:     recheck,
		log:         log.With("module", "checker"),
		metrics:     metrics,
		sleep:       timex.Sleep,
	}
	c.SetConcurrency(opts.Concurrency)
	return c
}

// SetConcurrency changes the lookup bound for subsequent batches.
func (c *Checker) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	c.concurrency.Store(int64(n))
}

func (c *Checker) Concurrency() int { return int(c.concurrency.Load()) }

// CheckBatch resolves names with bounded concurrency. The first throttle
// signal fixes the batch wait and stops new lookups from starting; lookups
// already in flight finish. Names never looked up get StatusError. When the
// batch was throttled CheckBatch sleeps for the wait before returning,
// waking at least every ThrottleRecheck to consult running; a false result
// or a done ctx ends the cooldown early. A nil running counts as true.
func (c *Checker) CheckBatch(ctx context.Context, names []string, running func() bool) BatchResult {
	if running == nil {
		running = func() bool { return true }
	}

	var (
		sem     = semaphore.NewWeighted(c.concurrency.Load())
		wg      sync.WaitGroup
		mu      sync.Mutex
		once    sync.Once
		tripped atomic.Bool
		checked atomic.Int64
		wait    time.Duration
		results = make(map[string]handles.Status, len(names))
	)

	for _, name := range names {
		if tripped.Load() {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		if tripped.Load() {
			sem.Release(1)
			break
		}

		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			defer sem.Release(1)

			status, err := c.lookup.Resolve(ctx, name)
			checked.Add(1)
			if te, ok := directory.AsThrottle(err); ok {
				once.Do(func() {
					wait = te.Wait
					tripped.Store(true)
					c.log.Warn(ctx, "throttled, stopping remaining lookups in batch",
						"handle", name, "wait", te.Wait)
				})
				status = handles.StatusError
			} else if err != nil {
				c.log.Debug(ctx, "lookup failed", "handle", name, "error", err)
			}

			mu.Lock()
			results[name] = status
			mu.Unlock()
			c.metrics.LookupsTotal.WithLabelValues(string(status)).Inc()

			_ = c.sleep(ctx, c.lookupDelay)
		}(name)
	}
	wg.Wait()

	res := BatchResult{
		Statuses:  results,
		Throttled: tripped.Load(),
		Wait:      wait,
		Checked:   int(checked.Load()),
	}
	for _, name := range names {
		if _, ok := results[name]; !ok {
			results[name] = handles.StatusError
			res.Skipped++
		}
	}

	if res.Throttled {
		c.metrics.ThrottlesTotal.Inc()
		c.metrics.ThrottleWait.Add(wait.Seconds())
		c.metrics.SkippedTotal.Add(float64(res.Skipped))
		c.log.Info(ctx, "batch throttled, cooling down",
			"checked", res.Checked, "total", len(names), "wait", wait)
		c.cooldown(ctx, wait, running)
	}
	return res
}

func (c *Checker) cooldown(ctx context.Context, wait time.Duration, running func() bool) {
	remaining := wait
	for remaining > 0 && running() {
		step := min(remaining, c.recheck)
		if err := c.sleep(ctx, step); err != nil {
			return
		}
		remaining -= step
		if remaining > 0 && running() {
			c.log.Info(ctx, "still cooling down", "remaining", remaining)
		}
	}
	c.log.Info(ctx, "cooldown finished")
}

// CheckOne resolves a single handle. A throttle is reported as StatusError
// without waiting.
func (c *Checker) CheckOne(ctx context.Context, name string) (handles.Status, error) {
	status, err := c.lookup.Resolve(ctx, name)
	c.metrics.LookupsTotal.WithLabelValues(string(status)).Inc()
	return status, err
}

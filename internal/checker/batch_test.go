package checker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/handlewatch/internal/directory"
	"github.com/dmitrijs2005/handlewatch/internal/handles"
	"github.com/dmitrijs2005/handlewatch/internal/logging"
)

type lookupFunc func(ctx context.Context, name string) (handles.Status, error)

func (f lookupFunc) Resolve(ctx context.Context, name string) (handles.Status, error) {
	return f(ctx, name)
}

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	if d > 0 {
		r.mu.Lock()
		r.sleeps = append(r.sleeps, d)
		r.mu.Unlock()
	}
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

func newTestChecker(l Lookup, opts Options) (*Checker, *sleepRecorder) {
	c := New(l, opts, nil, logging.Nop())
	rec := &sleepRecorder{}
	c.sleep = rec.sleep
	return c, rec
}

func TestCheckBatch_AllResolved(t *testing.T) {
	statuses := map[string]handles.Status{
		"alice": handles.StatusOccupied,
		"bob":   handles.StatusFree,
	}
	c, rec := newTestChecker(lookupFunc(func(_ context.Context, name string) (handles.Status, error) {
		if name == "carol" {
			return handles.StatusError, &directory.TransportError{Err: errors.New("timeout")}
		}
		return statuses[name], nil
	}), Options{Concurrency: 2, LookupDelay: 200 * time.Millisecond})

	res := c.CheckBatch(context.Background(), []string{"alice", "bob", "carol"}, nil)

	assert.Equal(t, map[string]handles.Status{
		"alice": handles.StatusOccupied,
		"bob":   handles.StatusFree,
		"carol": handles.StatusError,
	}, res.Statuses)
	assert.False(t, res.Throttled)
	assert.Equal(t, 3, res.Checked)
	assert.Zero(t, res.Skipped)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 200 * time.Millisecond, 200 * time.Millisecond}, rec.recorded())
}

func TestCheckBatch_FirstThrottleStopsBatch(t *testing.T) {
	var calls []string
	c, rec := newTestChecker(lookupFunc(func(_ context.Context, name string) (handles.Status, error) {
		calls = append(calls, name)
		switch name {
		case "bob":
			return handles.StatusError, &directory.ThrottleError{Wait: 90 * time.Second}
		case "carol":
			return handles.StatusError, &directory.ThrottleError{Wait: 10 * time.Second}
		}
		return handles.StatusOccupied, nil
	}), Options{Concurrency: 1})

	res := c.CheckBatch(context.Background(), []string{"alice", "bob", "carol", "dave"}, nil)

	assert.Equal(t, []string{"alice", "bob"}, calls)
	assert.True(t, res.Throttled)
	assert.Equal(t, 90*time.Second, res.Wait)
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, handles.StatusOccupied, res.Statuses["alice"])
	for _, n := range []string{"bob", "carol", "dave"} {
		assert.Equal(t, handles.StatusError, res.Statuses[n], n)
	}
	assert.Equal(t, []time.Duration{60 * time.Second, 30 * time.Second}, rec.recorded())
}

func TestCheckBatch_ConcurrentThrottlesKeepFirstWait(t *testing.T) {
	const n = 4
	var arrived atomic.Int32
	gate := make(chan struct{})
	waits := map[string]time.Duration{
		"a": 70 * time.Second,
		"b": 80 * time.Second,
		"c": 130 * time.Second,
		"d": 200 * time.Second,
	}

	c, rec := newTestChecker(lookupFunc(func(_ context.Context, name string) (handles.Status, error) {
		if arrived.Add(1) == n {
			close(gate)
		}
		<-gate
		return handles.StatusError, &directory.ThrottleError{Wait: waits[name]}
	}), Options{Concurrency: n})

	res := c.CheckBatch(context.Background(), []string{"a", "b", "c", "d", "e"}, nil)

	require.True(t, res.Throttled)
	assert.Contains(t, []time.Duration{70 * time.Second, 80 * time.Second, 130 * time.Second, 200 * time.Second}, res.Wait)
	assert.Equal(t, n, res.Checked)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, handles.StatusError, res.Statuses["e"])

	var total time.Duration
	for _, d := range rec.recorded() {
		assert.LessOrEqual(t, d, time.Minute)
		total += d
	}
	assert.Equal(t, res.Wait, total)
}

func TestCheckBatch_CooldownHonoursRunning(t *testing.T) {
	c, rec := newTestChecker(lookupFunc(func(context.Context, string) (handles.Status, error) {
		return handles.StatusError, &directory.ThrottleError{Wait: 5 * time.Minute}
	}), Options{Concurrency: 1, ThrottleRecheck: 30 * time.Second})

	var checks atomic.Int32
	running := func() bool { return checks.Add(1) == 1 }

	res := c.CheckBatch(context.Background(), []string{"alice"}, running)

	assert.True(t, res.Throttled)
	assert.Equal(t, []time.Duration{30 * time.Second}, rec.recorded())
}

func TestCheckBatch_CooldownStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c, rec := newTestChecker(lookupFunc(func(context.Context, string) (handles.Status, error) {
		cancel()
		return handles.StatusError, &directory.ThrottleError{Wait: 10 * time.Minute}
	}), Options{Concurrency: 1})

	res := c.CheckBatch(ctx, []string{"alice", "bob"}, nil)

	assert.True(t, res.Throttled)
	assert.Equal(t, handles.StatusError, res.Statuses["bob"])
	assert.Equal(t, []time.Duration{time.Minute}, rec.recorded())
}

func TestCheckBatch_RespectsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	c := New(lookupFunc(func(context.Context, string) (handles.Status, error) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return handles.StatusOccupied, nil
	}), Options{Concurrency: 2}, nil, logging.Nop())

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	res := c.CheckBatch(context.Background(), names, nil)

	assert.Equal(t, len(names), res.Checked)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestCheckBatch_DuplicatesKeepInputKeys(t *testing.T) {
	c, _ := newTestChecker(lookupFunc(func(_ context.Context, name string) (handles.Status, error) {
		return handles.StatusFree, nil
	}), Options{Concurrency: 3})

	res := c.CheckBatch(context.Background(), []string{"@Bob", "bob"}, nil)
	assert.Equal(t, map[string]handles.Status{"@Bob": handles.StatusFree, "bob": handles.StatusFree}, res.Statuses)
}

func TestChecker_SetConcurrency(t *testing.T) {
	c := New(lookupFunc(nil), Options{}, nil, logging.Nop())
	assert.Equal(t, 1, c.Concurrency())
	c.SetConcurrency(7)
	assert.Equal(t, 7, c.Concurrency())
	c.SetConcurrency(-3)
	assert.Equal(t, 1, c.Concurrency())
}

func TestCheckOne(t *testing.T) {
	c := New(lookupFunc(func(context.Context, string) (handles.Status, error) {
		return handles.StatusOccupied, nil
	}), Options{}, nil, logging.Nop())

	st, err := c.CheckOne(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, handles.StatusOccupied, st)
}

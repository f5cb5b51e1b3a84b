package services

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/handlewatch/internal/checker"
	"github.com/dmitrijs2005/handlewatch/internal/common"
	"github.com/dmitrijs2005/handlewatch/internal/credentials"
	"github.com/dmitrijs2005/handlewatch/internal/handles"
)

type fakeSettings struct {
	mu       sync.Mutex
	values   map[string]string
	statuses map[string]handles.Status
	notified []string
	getErr   error
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: map[string]string{}, statuses: map[string]handles.Status{}}
}

func (f *fakeSettings) GetSetting(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeSettings) SetSetting(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeSettings) UpdateStatus(_ context.Context, name string, status handles.Status) (handles.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.statuses[name]
	if !ok {
		return "", common.ErrorNotFound
	}
	f.statuses[name] = status
	return old, nil
}

func (f *fakeSettings) MarkNotified(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, name)
	return nil
}

func (f *fakeSettings) get(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key]
}

type fakeMonitor struct {
	running  bool
	started  []checker.MonitorOptions
	stops    int
	startErr error
	last     *checker.CycleSummary
}

func (m *fakeMonitor) Start(_ context.Context, opts checker.MonitorOptions) error {
	if m.startErr != nil {
		return m.startErr
	}
	if m.running {
		return common.ErrMonitoringActive
	}
	m.running = true
	m.started = append(m.started, opts)
	return nil
}

func (m *fakeMonitor) Stop(context.Context) error {
	m.stops++
	if !m.running {
		return common.ErrMonitoringInactive
	}
	m.running = false
	return nil
}

func (m *fakeMonitor) Running() bool { return m.running }

func (m *fakeMonitor) State() checker.State {
	if m.running {
		return checker.StateChecking
	}
	return checker.StateStopped
}

func (m *fakeMonitor) LastCycle() (checker.CycleSummary, bool) {
	if m.last == nil {
		return checker.CycleSummary{}, false
	}
	return *m.last, true
}

type fakeChecker struct {
	concurrency int
	status      handles.Status
	err         error
	checked     []string
}

func (c *fakeChecker) SetConcurrency(n int) { c.concurrency = n }

func (c *fakeChecker) CheckOne(_ context.Context, name string) (handles.Status, error) {
	c.checked = append(c.checked, name)
	return c.status, c.err
}

type fakeAuth struct {
	authorized bool
	pending    bool
	ensureErr  error
	ensured    []int64
	resets     int
	order      *[]string
}

func (a *fakeAuth) EnsureAuthorized(_ context.Context, operatorID int64) (bool, error) {
	a.ensured = append(a.ensured, operatorID)
	if a.order != nil {
		*a.order = append(*a.order, "ensure")
	}
	if a.ensureErr != nil {
		return false, a.ensureErr
	}
	if !a.authorized {
		a.pending = true
	}
	return a.authorized, nil
}

func (a *fakeAuth) Authorized() bool          { return a.authorized }
func (a *fakeAuth) HandshakeInProgress() bool { return a.pending }

func (a *fakeAuth) Reset(context.Context) error {
	a.resets++
	a.authorized = false
	if a.order != nil {
		*a.order = append(*a.order, "reset")
	}
	return nil
}

type recordingRelay struct {
	transitions []handles.Transition
}

func (r *recordingRelay) Freed(_ context.Context, t handles.Transition) {
	r.transitions = append(r.transitions, t)
}

type fakeRouter struct {
	kind credentials.Kind
	ok   bool
	got  []string
}

func (r *fakeRouter) Route(_ int64, text string) (credentials.Kind, bool) {
	r.got = append(r.got, text)
	return r.kind, r.ok
}

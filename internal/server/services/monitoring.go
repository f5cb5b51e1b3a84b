package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/handlewatch/internal/checker"
	"github.com/dmitrijs2005/handlewatch/internal/common"
	"github.com/dmitrijs2005/handlewatch/internal/directory"
	"github.com/dmitrijs2005/handlewatch/internal/handles"
	"github.com/dmitrijs2005/handlewatch/internal/logging"
)

type MonitoringStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	UpdateStatus(ctx context.Context, name string, status handles.Status) (handles.Status, error)
	MarkNotified(ctx context.Context, name string) error
}

type Monitor interface {
	Start(parent context.Context, opts checker.MonitorOptions) error
	Stop(ctx context.Context) error
	Running() bool
	State() checker.State
	LastCycle() (checker.CycleSummary, bool)
}

type Checker interface {
	SetConcurrency(n int)
	CheckOne(ctx context.Context, name string) (handles.Status, error)
}

// Authorizer is the view of the session manager monitoring needs.
type Authorizer interface {
	EnsureAuthorized(ctx context.Context, operatorID int64) (bool, error)
	Authorized() bool
	HandshakeInProgress() bool
}

type FreedNotifier interface {
	HandleFreed(ctx context.Context, operatorIDs []int64, t handles.Transition)
}

// FreedRelay announces freed handles to every operator and marks them
// notified. It is the monitoring loop's Notifier.
type FreedRelay struct {
	notifier  FreedNotifier
	store     interface{ MarkNotified(ctx context.Context, name string) error }
	operators []int64
	log       logging.Logger
}

func NewFreedRelay(n FreedNotifier, store MonitoringStore, operators []int64, log logging.Logger) *FreedRelay {
	return &FreedRelay{notifier: n, store: store, operators: operators, log: log.With("module", "freed")}
}

func (r *FreedRelay) Freed(ctx context.Context, t handles.Transition) {
	r.notifier.HandleFreed(ctx, r.operators, t)
	if err := r.store.MarkNotified(ctx, t.Name); err != nil {
		r.log.Error(ctx, "mark notified failed", "handle", t.Name, "error", err)
	}
}

// MonitorStatus is a point-in-time view of monitoring and session state.
type MonitorStatus struct {
	State               checker.State
	Running             bool
	PersistedActive     bool
	Authorized          bool
	HandshakeInProgress bool
	LastCycle           *checker.CycleSummary
	Tunables            Tunables
}

// CheckResult is the outcome of an ad-hoc lookup.
type CheckResult struct {
	Name         string
	Status       handles.Status
	Previous     handles.Status
	Tracked      bool
	Notified     bool
	ThrottleWait time.Duration
}

type MonitoringOptions struct {
	Defaults     Tunables
	EmptyPoll    time.Duration
	ErrorBackoff time.Duration
}

type MonitoringService struct {
	store   MonitoringStore
	monitor Monitor
	checker Checker
	auth    Authorizer
	relay   checker.Notifier
	opts    MonitoringOptions
	log     logging.Logger

	mu sync.Mutex
}

func NewMonitoringService(store MonitoringStore, m Monitor, c Checker, a Authorizer, relay checker.Notifier, opts MonitoringOptions, log logging.Logger) *MonitoringService {
	return &MonitoringService{
		store:   store,
		monitor: m,
		checker: c,
		auth:    a,
		relay:   relay,
		opts:    opts,
		log:     log.With("module", "monitoring"),
	}
}

// Reconcile makes the persisted monitoring flag match the live loop.
func (s *MonitoringService) Reconcile(ctx context.Context) error {
	v, _, err := s.store.GetSetting(ctx, common.SettingMonitoringActive)
	if err != nil {
		return err
	}
	persisted := v == "1"
	live := s.monitor.Running()
	if persisted == live {
		return nil
	}
	s.log.Warn(ctx, "persisted monitoring flag out of sync with loop", "persisted", persisted, "running", live)
	return s.setActive(ctx, live)
}

func (s *MonitoringService) setActive(ctx context.Context, active bool) error {
	v := "0"
	if active {
		v = "1"
	}
	return s.store.SetSetting(ctx, common.SettingMonitoringActive, v)
}

// Start launches monitoring. It fails with common.ErrMonitoringActive if
// the loop already runs and with common.ErrNotAuthorized while the session
// still needs a handshake; the handshake is started for operatorID.
func (s *MonitoringService) Start(ctx context.Context, operatorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Reconcile(ctx); err != nil {
		return err
	}
	if s.monitor.Running() {
		return common.ErrMonitoringActive
	}

	ok, err := s.auth.EnsureAuthorized(ctx, operatorID)
	if err != nil {
		return fmt.Errorf("ensure authorized: %w", err)
	}
	if !ok {
		return common.ErrNotAuthorized
	}

	t, err := s.Tunables(ctx)
	if err != nil {
		return err
	}
	s.checker.SetConcurrency(t.Concurrency)
	err = s.monitor.Start(context.WithoutCancel(ctx), checker.MonitorOptions{
		BatchSize:    t.BatchSize,
		BatchDelay:   t.BatchDelay,
		CycleDelay:   t.CycleDelay,
		EmptyPoll:    s.opts.EmptyPoll,
		ErrorBackoff: s.opts.ErrorBackoff,
	})
	if err != nil {
		return err
	}
	if err := s.setActive(ctx, true); err != nil {
		s.log.Error(ctx, "persist monitoring flag", "error", err)
	}
	s.log.Info(ctx, "monitoring started", "operator", operatorID)
	return nil
}

// Stop halts the loop and clears the persisted flag.
func (s *MonitoringService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop(ctx)
}

func (s *MonitoringService) stop(ctx context.Context) error {
	stopErr := s.monitor.Stop(ctx)
	if err := s.setActive(ctx, false); err != nil {
		return err
	}
	if stopErr != nil {
		return stopErr
	}
	s.log.Info(ctx, "monitoring stopped")
	return nil
}

// Halt stops monitoring if it runs; an idle loop is not an error.
func (s *MonitoringService) Halt(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.stop(ctx)
	if errors.Is(err, common.ErrMonitoringInactive) {
		return nil
	}
	return err
}

// CheckNow resolves one handle immediately. Tracked handles get their
// status stored and the freed rule applied.
func (s *MonitoringService) CheckNow(ctx context.Context, operatorID int64, name string) (CheckResult, error) {
	name = handles.Normalize(name)
	if name == "" {
		return CheckResult{}, common.ErrEmptyInput
	}
	if !s.auth.Authorized() {
		ok, err := s.auth.EnsureAuthorized(ctx, operatorID)
		if err != nil {
			return CheckResult{}, fmt.Errorf("ensure authorized: %w", err)
		}
		if !ok {
			return CheckResult{}, common.ErrNotAuthorized
		}
	}

	res := CheckResult{Name: name}
	status, err := s.checker.CheckOne(ctx, name)
	if te, ok := directory.AsThrottle(err); ok {
		res.Status = handles.StatusError
		res.ThrottleWait = te.Wait
		return res, nil
	}
	if err != nil {
		s.log.Warn(ctx, "ad-hoc lookup failed", "handle", name, "error", err)
	}
	res.Status = status

	old, err := s.store.UpdateStatus(ctx, name, status)
	if errors.Is(err, common.ErrorNotFound) {
		return res, nil
	}
	if err != nil {
		return CheckResult{}, err
	}
	res.Tracked = true
	res.Previous = old
	if handles.ShouldNotify(old, status) {
		res.Notified = true
		s.relay.Freed(ctx, handles.Transition{Name: name, Old: old, New: status})
	}
	return res, nil
}

// Tunables returns the configured defaults overridden by valid stored
// settings.
func (s *MonitoringService) Tunables(ctx context.Context) (Tunables, error) {
	t := s.opts.Defaults
	for _, key := range SettingKeys() {
		v, ok, err := s.store.GetSetting(ctx, key)
		if err != nil {
			return Tunables{}, err
		}
		if !ok {
			continue
		}
		n, err := ParseSetting(key, v)
		if err != nil {
			s.log.Warn(ctx, "ignoring stored setting", "key", key, "value", v, "error", err)
			continue
		}
		t.apply(key, n)
	}
	return t, nil
}

// Settings returns the effective tunables and the monitoring flag.
func (s *MonitoringService) Settings(ctx context.Context) (map[string]string, error) {
	t, err := s.Tunables(ctx)
	if err != nil {
		return nil, err
	}
	out := t.asSettings()
	v, _, err := s.store.GetSetting(ctx, common.SettingMonitoringActive)
	if err != nil {
		return nil, err
	}
	if v == "" {
		v = "0"
	}
	out[common.SettingMonitoringActive] = v
	return out, nil
}

// SetSetting validates and stores a tunable. It applies from the next start.
func (s *MonitoringService) SetSetting(ctx context.Context, key, value string) error {
	n, err := ParseSetting(key, value)
	if err != nil {
		return err
	}
	return s.store.SetSetting(ctx, key, fmt.Sprint(n))
}

func (s *MonitoringService) Status(ctx context.Context) (MonitorStatus, error) {
	v, _, err := s.store.GetSetting(ctx, common.SettingMonitoringActive)
	if err != nil {
		return MonitorStatus{}, err
	}
	t, err := s.Tunables(ctx)
	if err != nil {
		return MonitorStatus{}, err
	}
	st := MonitorStatus{
		State:               s.monitor.State(),
		Running:             s.monitor.Running(),
		PersistedActive:     v == "1",
		Authorized:          s.auth.Authorized(),
		HandshakeInProgress: s.auth.HandshakeInProgress(),
		Tunables:            t,
	}
	if c, ok := s.monitor.LastCycle(); ok {
		st.LastCycle = &c
	}
	return st, nil
}

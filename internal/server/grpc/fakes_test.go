package grpc

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/handlewatch/internal/common"
	"github.com/dmitrijs2005/handlewatch/internal/credentials"
	"github.com/dmitrijs2005/handlewatch/internal/handles"
	"github.com/dmitrijs2005/handlewatch/internal/server/export"
	"github.com/dmitrijs2005/handlewatch/internal/server/services"
	"github.com/dmitrijs2005/handlewatch/internal/server/storage"
)

type fakeOperators struct {
	token   string
	allowed map[int64]bool
}

func (f *fakeOperators) Login(_ context.Context, id int64, key []byte) (string, error) {
	if !f.allowed[id] || string(key) != "key" {
		return "", common.ErrorUnauthorized
	}
	return f.token, nil
}

func (f *fakeOperators) Allowed(id int64) bool { return f.allowed[id] }

type fakeHandles struct {
	mu    sync.Mutex
	added []string
	list  []handles.Handle
	err   error
}

func (f *fakeHandles) Add(_ context.Context, names []string) (storage.AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return storage.AddResult{}, f.err
	}
	unique, dup := handles.Dedupe(names)
	f.added = append(f.added, unique...)
	return storage.AddResult{Added: len(unique), Skipped: dup}, nil
}

func (f *fakeHandles) Import(ctx context.Context, text string) (storage.AddResult, error) {
	return f.Add(ctx, handles.ParseList(text))
}

func (f *fakeHandles) Remove(context.Context, string) error { return common.ErrorNotFound }

func (f *fakeHandles) Clear(context.Context) (int64, error) { return 3, nil }

func (f *fakeHandles) List(context.Context) ([]handles.Handle, error) { return f.list, f.err }

func (f *fakeHandles) Stats(context.Context) (storage.Stats, error) {
	return storage.Stats{Total: 2, Free: 1, Occupied: 1}, nil
}

func (f *fakeHandles) Free(context.Context) ([]string, error) { return []string{"alice"}, nil }

func (f *fakeHandles) History(context.Context, string, int) ([]storage.StatusChange, error) {
	return nil, nil
}

func (f *fakeHandles) Export(context.Context) (export.Result, error) {
	return export.Result{Count: 1, Data: []byte("@alice,free,never\n")}, nil
}

type fakeMonitoring struct {
	startErr  error
	startedBy int64
}

func (f *fakeMonitoring) Start(_ context.Context, id int64) error {
	f.startedBy = id
	return f.startErr
}

func (f *fakeMonitoring) Stop(context.Context) error { return common.ErrMonitoringInactive }

func (f *fakeMonitoring) CheckNow(_ context.Context, _ int64, name string) (services.CheckResult, error) {
	return services.CheckResult{Name: name, Status: handles.StatusFree}, nil
}

func (f *fakeMonitoring) Status(context.Context) (services.MonitorStatus, error) {
	return services.MonitorStatus{State: "idle"}, nil
}

func (f *fakeMonitoring) Settings(context.Context) (map[string]string, error) {
	return map[string]string{common.SettingBatchSize: "20"}, nil
}

func (f *fakeMonitoring) SetSetting(_ context.Context, key, _ string) error {
	if key != common.SettingBatchSize {
		return common.ErrInvalidSetting
	}
	return nil
}

type fakeSession struct {
	submitted []string
}

func (f *fakeSession) Authorize(context.Context, int64) (bool, error) { return false, nil }

func (f *fakeSession) Reset(context.Context, int64) error { return nil }

func (f *fakeSession) SubmitInput(_ context.Context, _ int64, text string) (credentials.Kind, error) {
	f.submitted = append(f.submitted, text)
	return credentials.KindCode, nil
}

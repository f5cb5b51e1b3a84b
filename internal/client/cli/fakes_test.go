package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/handlewatch/internal/api"
	"github.com/dmitrijs2005/handlewatch/internal/client/client"
	"github.com/dmitrijs2005/handlewatch/internal/client/config"
)

type fakeClient struct {
	mu    sync.Mutex
	calls []string

	loginID  int64
	loginKey string
	loginErr error

	added     []string
	imported  string
	handles   []api.Handle
	free      []string
	history   *api.HistoryResponse
	histN     int
	check     *api.CheckHandleResponse
	status    *api.StatusResponse
	settings  map[string]string
	export    *api.ExportResponse
	authOK    bool
	submitted string
	setKV     [2]string

	err error

	streams []client.EventStream
	closed  bool
}

func (f *fakeClient) record(c string) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeClient) Login(_ context.Context, id int64, key []byte) error {
	f.record("login")
	f.loginID, f.loginKey = id, string(key)
	return f.loginErr
}

func (f *fakeClient) Ping(context.Context) (*api.PingResponse, error) {
	f.record("ping")
	return &api.PingResponse{Status: "ok"}, f.err
}

func (f *fakeClient) AddHandles(_ context.Context, names []string) (*api.AddHandlesResponse, error) {
	f.record("add")
	f.added = names
	if f.err != nil {
		return nil, f.err
	}
	return &api.AddHandlesResponse{Added: len(names)}, nil
}

func (f *fakeClient) ImportHandles(_ context.Context, text string) (*api.AddHandlesResponse, error) {
	f.record("import")
	f.imported = text
	if f.err != nil {
		return nil, f.err
	}
	return &api.AddHandlesResponse{Added: 2, Skipped: 1}, nil
}

func (f *fakeClient) RemoveHandle(context.Context, string) error {
	f.record("remove")
	return f.err
}

func (f *fakeClient) ListHandles(context.Context) ([]api.Handle, error) {
	f.record("list")
	return f.handles, f.err
}

func (f *fakeClient) FreeHandles(context.Context) ([]string, error) {
	f.record("free")
	return f.free, f.err
}

func (f *fakeClient) ClearHandles(context.Context) (int64, error) {
	f.record("clear")
	return 4, f.err
}

func (f *fakeClient) Stats(context.Context) (*api.StatsResponse, error) {
	f.record("stats")
	if f.err != nil {
		return nil, f.err
	}
	return &api.StatsResponse{Total: 5, Occupied: 2, Free: 1, Error: 1, Unknown: 1}, nil
}

func (f *fakeClient) History(_ context.Context, name string, limit int) (*api.HistoryResponse, error) {
	f.record("history")
	f.histN = limit
	if f.err != nil {
		return nil, f.err
	}
	if f.history != nil {
		return f.history, nil
	}
	return &api.HistoryResponse{Name: name}, nil
}

func (f *fakeClient) Status(context.Context) (*api.StatusResponse, error) {
	f.record("status")
	return f.status, f.err
}

func (f *fakeClient) StartMonitoring(context.Context) error {
	f.record("start")
	return f.err
}

func (f *fakeClient) StopMonitoring(context.Context) error {
	f.record("stop")
	return f.err
}

func (f *fakeClient) CheckHandle(context.Context, string) (*api.CheckHandleResponse, error) {
	f.record("check")
	return f.check, f.err
}

func (f *fakeClient) Authorize(context.Context) (bool, error) {
	f.record("auth")
	return f.authOK, f.err
}

func (f *fakeClient) ResetSession(context.Context) error {
	f.record("reset")
	return f.err
}

func (f *fakeClient) SubmitInput(_ context.Context, text string) (string, error) {
	f.record("submit")
	f.submitted = text
	return "code", f.err
}

func (f *fakeClient) Settings(context.Context) (map[string]string, error) {
	f.record("settings")
	return f.settings, f.err
}

func (f *fakeClient) SetSetting(_ context.Context, k, v string) error {
	f.record("set")
	f.setKV = [2]string{k, v}
	return f.err
}

func (f *fakeClient) Export(context.Context) (*api.ExportResponse, error) {
	f.record("export")
	return f.export, f.err
}

func (f *fakeClient) Events(context.Context) (client.EventStream, error) {
	f.record("events")
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil, client.ErrUnavailable
	}
	s := f.streams[0]
	f.streams = f.streams[1:]
	return s, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

type fakeStream struct {
	events []*api.Event
	end    error
}

func (s *fakeStream) Recv() (*api.Event, error) {
	if len(s.events) == 0 {
		if s.end != nil {
			return nil, s.end
		}
		return nil, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

// syncBuffer guards output written by the event watcher goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestApp(t *testing.T, fc *fakeClient, input string) (*App, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	cfg := &config.Config{
		ServerEndpointAddr: "test",
		OperatorID:         7,
		ReconnectInterval:  time.Millisecond,
		RequestTimeout:     time.Second,
	}
	return newApp(cfg, fc, strings.NewReader(input), out), out
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	old := readPassword
	readPassword = func(int) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { readPassword = old })
}

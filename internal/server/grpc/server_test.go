package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dmitrijs2005/handlewatch/internal/api"
	"github.com/dmitrijs2005/handlewatch/internal/common"
	"github.com/dmitrijs2005/handlewatch/internal/logging"
	"github.com/dmitrijs2005/handlewatch/internal/server/auth"
	"github.com/dmitrijs2005/handlewatch/internal/server/notify"
	"github.com/dmitrijs2005/handlewatch/internal/session"
)

const testSecret = "secret"

type testEnv struct {
	client     *api.OperatorClient
	hub        *notify.Hub
	handles    *fakeHandles
	monitoring *fakeMonitoring
	session    *fakeSession
	token      string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	token, err := auth.GenerateToken(7, []byte(testSecret), time.Hour)
	require.NoError(t, err)

	env := &testEnv{
		hub:        notify.NewHub(logging.Nop()),
		handles:    &fakeHandles{},
		monitoring: &fakeMonitoring{},
		session:    &fakeSession{},
		token:      token,
	}
	srv := NewGRPCServer("bufconn", logging.Nop(), Deps{
		Operators:  &fakeOperators{token: token, allowed: map[int64]bool{7: true}},
		Handles:    env.handles,
		Monitoring: env.monitoring,
		Session:    env.session,
		Events:     env.hub,
	}, testSecret, "v-test")

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := grpc.NewClient("passthrough:///bufconn",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	env.client = api.NewOperatorClient(conn)
	return env
}

func (e *testEnv) authed(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, e.token)
}

func TestServer_PublicMethods(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pong, err := env.client.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OK", pong.Status)
	assert.Equal(t, "v-test", pong.Version)

	resp, err := env.client.Login(ctx, &api.LoginRequest{OperatorID: 7, AccessKey: []byte("key")})
	require.NoError(t, err)
	assert.Equal(t, env.token, resp.AccessToken)

	_, err = env.client.Login(ctx, &api.LoginRequest{OperatorID: 7, AccessKey: []byte("nope")})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestServer_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.ListHandles(context.Background())
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	bad := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, "garbage")
	_, err = env.client.ListHandles(bad)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	other, err := auth.GenerateToken(8, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	stranger := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, other)
	_, err = env.client.ListHandles(stranger)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestServer_HandleCalls(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.authed(context.Background())

	add, err := env.client.AddHandles(ctx, &api.AddHandlesRequest{Names: []string{"alice", "@Bob", "bob"}})
	require.NoError(t, err)
	assert.Equal(t, &api.AddHandlesResponse{Added: 2, Skipped: 1}, add)
	assert.Equal(t, []string{"alice", "bob"}, env.handles.added)

	_, err = env.client.RemoveHandle(ctx, &api.NameRequest{Name: "zed"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	stats, err := env.client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)

	exp, err := env.client.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "@alice,free,never\n", string(exp.Data))

	env.handles.err = errors.New("db is gone")
	_, err = env.client.ListHandles(ctx)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.NotContains(t, status.Convert(err).Message(), "db is gone")
}

func TestServer_MonitoringAndSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.authed(context.Background())

	env.monitoring.startErr = common.ErrNotAuthorized
	_, err := env.client.StartMonitoring(ctx)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, int64(7), env.monitoring.startedBy)

	_, err = env.client.StopMonitoring(ctx)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = env.client.SetSetting(ctx, &api.SetSettingRequest{Key: "colour", Value: "1"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	st, err := env.client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "idle", st.State)
	assert.Equal(t, "20", st.Settings[common.SettingBatchSize])

	in, err := env.client.SubmitInput(ctx, &api.SubmitInputRequest{Text: "12345"})
	require.NoError(t, err)
	assert.Equal(t, "code", in.Kind)
	assert.Equal(t, []string{"12345"}, env.session.submitted)

	a, err := env.client.Authorize(ctx)
	require.NoError(t, err)
	assert.False(t, a.Authorized)
}

func TestServer_EventsStream(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(env.authed(context.Background()))
	defer cancel()

	stream, err := env.client.Events(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return env.hub.Subscribers(7) == 1 }, 2*time.Second, 10*time.Millisecond)
	env.hub.Send(context.Background(), 7, notify.Event{Kind: notify.KindInfo, Text: "hello"})

	ev, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, api.EventInfo, ev.Kind)
	assert.Equal(t, "hello", ev.Text)
}

func TestServer_EventsRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	stream, err := env.client.Events(context.Background())
	if err == nil {
		_, err = stream.Recv()
	}
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestToStatus(t *testing.T) {
	s := NewGRPCServer("", logging.Nop(), Deps{}, testSecret, "")
	ctx := context.Background()
	tests := []struct {
		err  error
		code codes.Code
	}{
		{common.ErrorNotFound, codes.NotFound},
		{common.ErrorUnauthorized, codes.PermissionDenied},
		{common.ErrEmptyInput, codes.InvalidArgument},
		{common.ErrMonitoringActive, codes.FailedPrecondition},
		{&session.HandshakeError{Err: errors.New("bad code")}, codes.FailedPrecondition},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, status.Code(s.toStatus(ctx, "M", tt.err)), tt.err.Error())
	}
}

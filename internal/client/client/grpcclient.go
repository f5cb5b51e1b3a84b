// Package client talks to the watcher daemon's operator API.
package client

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/handlewatch/internal/api"
	"github.com/dmitrijs2005/handlewatch/internal/common"
)

// operatorAPI is the generated-style stub surface; *api.OperatorClient
// implements it.
type operatorAPI interface {
	Login(ctx context.Context, in *api.LoginRequest, opts ...grpc.CallOption) (*api.LoginResponse, error)
	Ping(ctx context.Context, opts ...grpc.CallOption) (*api.PingResponse, error)
	AddHandles(ctx context.Context, in *api.AddHandlesRequest, opts ...grpc.CallOption) (*api.AddHandlesResponse, error)
	ImportHandles(ctx context.Context, in *api.ImportHandlesRequest, opts ...grpc.CallOption) (*api.AddHandlesResponse, error)
	RemoveHandle(ctx context.Context, in *api.NameRequest, opts ...grpc.CallOption) (*api.Empty, error)
	ListHandles(ctx context.Context, opts ...grpc.CallOption) (*api.ListHandlesResponse, error)
	FreeHandles(ctx context.Context, opts ...grpc.CallOption) (*api.FreeHandlesResponse, error)
	ClearHandles(ctx context.Context, opts ...grpc.CallOption) (*api.ClearHandlesResponse, error)
	Stats(ctx context.Context, opts ...grpc.CallOption) (*api.StatsResponse, error)
	History(ctx context.Context, in *api.HistoryRequest, opts ...grpc.CallOption) (*api.HistoryResponse, error)
	Status(ctx context.Context, opts ...grpc.CallOption) (*api.StatusResponse, error)
	StartMonitoring(ctx context.Context, opts ...grpc.CallOption) (*api.Empty, error)
	StopMonitoring(ctx context.Context, opts ...grpc.CallOption) (*api.Empty, error)
	CheckHandle(ctx context.Context, in *api.NameRequest, opts ...grpc.CallOption) (*api.CheckHandleResponse, error)
	Authorize(ctx context.Context, opts ...grpc.CallOption) (*api.AuthorizeResponse, error)
	ResetSession(ctx context.Context, opts ...grpc.CallOption) (*api.Empty, error)
	SubmitInput(ctx context.Context, in *api.SubmitInputRequest, opts ...grpc.CallOption) (*api.SubmitInputResponse, error)
	GetSettings(ctx context.Context, opts ...grpc.CallOption) (*api.SettingsResponse, error)
	SetSetting(ctx context.Context, in *api.SetSettingRequest, opts ...grpc.CallOption) (*api.Empty, error)
	Export(ctx context.Context, opts ...grpc.CallOption) (*api.ExportResponse, error)
	Events(ctx context.Context, opts ...grpc.CallOption) (api.EventsClient, error)
}

// EventStream yields daemon events until the stream breaks.
type EventStream interface {
	Recv() (*api.Event, error)
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      operatorAPI

	mu          sync.RWMutex
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if t := s.token(); t != "" {
		ctx = withAccessToken(ctx, t)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func (s *GRPCClient) streamAccessTokenInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	if t := s.token(); t != "" {
		ctx = withAccessToken(ctx, t)
	}
	return streamer(ctx, desc, cc, method, opts...)
}

func NewOperatorClientService(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithStreamInterceptor(s.streamAccessTokenInterceptor),
	)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = api.NewOperatorClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

// Login exchanges the operator access key for a token used on later calls.
func (s *GRPCClient) Login(ctx context.Context, operatorID int64, key []byte) error {
	resp, err := s.client.Login(ctx, &api.LoginRequest{OperatorID: operatorID, AccessKey: key})
	if err != nil {
		return s.mapError(err)
	}
	s.mu.Lock()
	s.accessToken = resp.AccessToken
	s.mu.Unlock()
	return nil
}

func (s *GRPCClient) Ping(ctx context.Context) (*api.PingResponse, error) {
	resp, err := s.client.Ping(ctx)
	return resp, s.mapError(err)
}

func (s *GRPCClient) AddHandles(ctx context.Context, names []string) (*api.AddHandlesResponse, error) {
	resp, err := s.client.AddHandles(ctx, &api.AddHandlesRequest{Names: names})
	return resp, s.mapError(err)
}

func (s *GRPCClient) ImportHandles(ctx context.Context, text string) (*api.AddHandlesResponse, error) {
	resp, err := s.client.ImportHandles(ctx, &api.ImportHandlesRequest{Text: text})
	return resp, s.mapError(err)
}

func (s *GRPCClient) RemoveHandle(ctx context.Context, name string) error {
	_, err := s.client.RemoveHandle(ctx, &api.NameRequest{Name: name})
	return s.mapError(err)
}

func (s *GRPCClient) ListHandles(ctx context.Context) ([]api.Handle, error) {
	resp, err := s.client.ListHandles(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Handles, nil
}

func (s *GRPCClient) FreeHandles(ctx context.Context) ([]string, error) {
	resp, err := s.client.FreeHandles(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Names, nil
}

func (s *GRPCClient) ClearHandles(ctx context.Context) (int64, error) {
	resp, err := s.client.ClearHandles(ctx)
	if err != nil {
		return 0, s.mapError(err)
	}
	return resp.Removed, nil
}

func (s *GRPCClient) Stats(ctx context.Context) (*api.StatsResponse, error) {
	resp, err := s.client.Stats(ctx)
	return resp, s.mapError(err)
}

func (s *GRPCClient) History(ctx context.Context, name string, limit int) (*api.HistoryResponse, error) {
	resp, err := s.client.History(ctx, &api.HistoryRequest{Name: name, Limit: limit})
	return resp, s.mapError(err)
}

func (s *GRPCClient) Status(ctx context.Context) (*api.StatusResponse, error) {
	resp, err := s.client.Status(ctx)
	return resp, s.mapError(err)
}

func (s *GRPCClient) StartMonitoring(ctx context.Context) error {
	_, err := s.client.StartMonitoring(ctx)
	return s.mapError(err)
}

func (s *GRPCClient) StopMonitoring(ctx context.Context) error {
	_, err := s.client.StopMonitoring(ctx)
	return s.mapError(err)
}

func (s *GRPCClient) CheckHandle(ctx context.Context, name string) (*api.CheckHandleResponse, error) {
	resp, err := s.client.CheckHandle(ctx, &api.NameRequest{Name: name})
	return resp, s.mapError(err)
}

func (s *GRPCClient) Authorize(ctx context.Context) (bool, error) {
	resp, err := s.client.Authorize(ctx)
	if err != nil {
		return false, s.mapError(err)
	}
	return resp.Authorized, nil
}

func (s *GRPCClient) ResetSession(ctx context.Context) error {
	_, err := s.client.ResetSession(ctx)
	return s.mapError(err)
}

func (s *GRPCClient) SubmitInput(ctx context.Context, text string) (string, error) {
	resp, err := s.client.SubmitInput(ctx, &api.SubmitInputRequest{Text: text})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.Kind, nil
}

func (s *GRPCClient) Settings(ctx context.Context) (map[string]string, error) {
	resp, err := s.client.GetSettings(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Settings, nil
}

func (s *GRPCClient) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.client.SetSetting(ctx, &api.SetSettingRequest{Key: key, Value: value})
	return s.mapError(err)
}

func (s *GRPCClient) Export(ctx context.Context) (*api.ExportResponse, error) {
	resp, err := s.client.Export(ctx)
	return resp, s.mapError(err)
}

type mappedStream struct {
	s      *GRPCClient
	stream api.EventsClient
}

func (m *mappedStream) Recv() (*api.Event, error) {
	ev, err := m.stream.Recv()
	return ev, m.s.mapError(err)
}

// Events opens the event stream for the logged in operator.
func (s *GRPCClient) Events(ctx context.Context) (EventStream, error) {
	stream, err := s.client.Events(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return &mappedStream{s: s, stream: stream}, nil
}

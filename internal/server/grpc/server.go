// Package grpc serves the operator API.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/handlewatch/internal/api"
	"github.com/dmitrijs2005/handlewatch/internal/credentials"
	"github.com/dmitrijs2005/handlewatch/internal/handles"
	"github.com/dmitrijs2005/handlewatch/internal/logging"
	"github.com/dmitrijs2005/handlewatch/internal/server/export"
	"github.com/dmitrijs2005/handlewatch/internal/server/notify"
	"github.com/dmitrijs2005/handlewatch/internal/server/services"
	"github.com/dmitrijs2005/handlewatch/internal/server/storage"
)

type Operators interface {
	Login(ctx context.Context, operatorID int64, accessKey []byte) (string, error)
	Allowed(operatorID int64) bool
}

type HandleManager interface {
	Add(ctx context.Context, names []string) (storage.AddResult, error)
	Import(ctx context.Context, text string) (storage.AddResult, error)
	Remove(ctx context.Context, name string) error
	Clear(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]handles.Handle, error)
	Stats(ctx context.Context) (storage.Stats, error)
	Free(ctx context.Context) ([]string, error)
	History(ctx context.Context, name string, limit int) ([]storage.StatusChange, error)
	Export(ctx context.Context) (export.Result, error)
}

type MonitorControl interface {
	Start(ctx context.Context, operatorID int64) error
	Stop(ctx context.Context) error
	CheckNow(ctx context.Context, operatorID int64, name string) (services.CheckResult, error)
	Status(ctx context.Context) (services.MonitorStatus, error)
	Settings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error
}

type SessionControl interface {
	Authorize(ctx context.Context, operatorID int64) (bool, error)
	Reset(ctx context.Context, operatorID int64) error
	SubmitInput(ctx context.Context, operatorID int64, text string) (credentials.Kind, error)
}

type EventSource interface {
	Subscribe(operatorID int64) (<-chan notify.Event, func())
}

// Deps are the use cases the API exposes.
type Deps struct {
	Operators  Operators
	Handles    HandleManager
	Monitoring MonitorControl
	Session    SessionControl
	Events     EventSource
}

type GRPCServer struct {
	address   string
	deps      Deps
	logger    logging.Logger
	jwtSecret []byte
	version   string
}

func NewGRPCServer(address string, l logging.Logger, deps Deps, secretKey, version string) *GRPCServer {
	return &GRPCServer{
		address:   address,
		deps:      deps,
		logger:    l.With("module", "grpc_server"),
		jwtSecret: []byte(secretKey),
		version:   version,
	}
}

func (s *GRPCServer) newServer(done <-chan struct{}) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamAccessTokenInterceptor),
	)
	api.RegisterOperatorServer(srv, &handler{s: s, done: done})
	return srv
}

// Run serves on the configured address until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	done := make(chan struct{})
	srv := s.newServer(done)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		// event streams never finish on their own
		close(done)
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())
	return srv.Serve(lis)
}

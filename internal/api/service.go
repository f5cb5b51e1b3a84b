package api

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "handlewatch.v1.Operator"

// FullMethod returns the gRPC method path for name.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// OperatorServer is implemented by the daemon.
type OperatorServer interface {
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Ping(context.Context, *Empty) (*PingResponse, error)
	AddHandles(context.Context, *AddHandlesRequest) (*AddHandlesResponse, error)
	ImportHandles(context.Context, *ImportHandlesRequest) (*AddHandlesResponse, error)
	RemoveHandle(context.Context, *NameRequest) (*Empty, error)
	ListHandles(context.Context, *Empty) (*ListHandlesResponse, error)
	FreeHandles(context.Context, *Empty) (*FreeHandlesResponse, error)
	ClearHandles(context.Context, *Empty) (*ClearHandlesResponse, error)
	Stats(context.Context, *Empty) (*StatsResponse, error)
	History(context.Context, *HistoryRequest) (*HistoryResponse, error)
	Status(context.Context, *Empty) (*StatusResponse, error)
	StartMonitoring(context.Context, *Empty) (*Empty, error)
	StopMonitoring(context.Context, *Empty) (*Empty, error)
	CheckHandle(context.Context, *NameRequest) (*CheckHandleResponse, error)
	Authorize(context.Context, *Empty) (*AuthorizeResponse, error)
	ResetSession(context.Context, *Empty) (*Empty, error)
	SubmitInput(context.Context, *SubmitInputRequest) (*SubmitInputResponse, error)
	GetSettings(context.Context, *Empty) (*SettingsResponse, error)
	SetSetting(context.Context, *SetSettingRequest) (*Empty, error)
	Export(context.Context, *Empty) (*ExportResponse, error)
	Events(*Empty, EventsServer) error
}

type EventsServer interface {
	Send(*Event) error
	grpc.ServerStream
}

type eventsServer struct {
	grpc.ServerStream
}

func (s *eventsServer) Send(ev *Event) error { return s.ServerStream.SendMsg(ev) }

func unary[Req, Resp any](name string, call func(OperatorServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(OperatorServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(OperatorServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func eventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(OperatorServer).Events(in, &eventsServer{stream})
}

var OperatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OperatorServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Login", OperatorServer.Login),
		unary("Ping", OperatorServer.Ping),
		unary("AddHandles", OperatorServer.AddHandles),
		unary("ImportHandles", OperatorServer.ImportHandles),
		unary("RemoveHandle", OperatorServer.RemoveHandle),
		unary("ListHandles", OperatorServer.ListHandles),
		unary("FreeHandles", OperatorServer.FreeHandles),
		unary("ClearHandles", OperatorServer.ClearHandles),
		unary("Stats", OperatorServer.Stats),
		unary("History", OperatorServer.History),
		unary("Status", OperatorServer.Status),
		unary("StartMonitoring", OperatorServer.StartMonitoring),
		unary("StopMonitoring", OperatorServer.StopMonitoring),
		unary("CheckHandle", OperatorServer.CheckHandle),
		unary("Authorize", OperatorServer.Authorize),
		unary("ResetSession", OperatorServer.ResetSession),
		unary("SubmitInput", OperatorServer.SubmitInput),
		unary("GetSettings", OperatorServer.GetSettings),
		unary("SetSetting", OperatorServer.SetSetting),
		unary("Export", OperatorServer.Export),
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Events", Handler: eventsHandler, ServerStreams: true},
	},
	Metadata: "handlewatch/v1/operator",
}

func RegisterOperatorServer(s grpc.ServiceRegistrar, srv OperatorServer) {
	s.RegisterService(&OperatorServiceDesc, srv)
}

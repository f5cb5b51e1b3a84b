package api

import (
	"context"

	"google.golang.org/grpc"
)

// OperatorClient calls the operator service over conn using the JSON codec.
type OperatorClient struct {
	cc grpc.ClientConnInterface
}

func NewOperatorClient(cc grpc.ClientConnInterface) *OperatorClient {
	return &OperatorClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OperatorClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, "Login", in, opts)
}

func (c *OperatorClient) Ping(ctx context.Context, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, "Ping", &Empty{}, opts)
}

func (c *OperatorClient) AddHandles(ctx context.Context, in *AddHandlesRequest, opts ...grpc.CallOption) (*AddHandlesResponse, error) {
	return invoke[AddHandlesResponse](ctx, c.cc, "AddHandles", in, opts)
}

func (c *OperatorClient) ImportHandles(ctx context.Context, in *ImportHandlesRequest, opts ...grpc.CallOption) (*AddHandlesResponse, error) {
	return invoke[AddHandlesResponse](ctx, c.cc, "ImportHandles", in, opts)
}

func (c *OperatorClient) RemoveHandle(ctx context.Context, in *NameRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "RemoveHandle", in, opts)
}

func (c *OperatorClient) ListHandles(ctx context.Context, opts ...grpc.CallOption) (*ListHandlesResponse, error) {
	return invoke[ListHandlesResponse](ctx, c.cc, "ListHandles", &Empty{}, opts)
}

func (c *OperatorClient) FreeHandles(ctx context.Context, opts ...grpc.CallOption) (*FreeHandlesResponse, error) {
	return invoke[FreeHandlesResponse](ctx, c.cc, "FreeHandles", &Empty{}, opts)
}

func (c *OperatorClient) ClearHandles(ctx context.Context, opts ...grpc.CallOption) (*ClearHandlesResponse, error) {
	return invoke[ClearHandlesResponse](ctx, c.cc, "ClearHandles", &Empty{}, opts)
}

func (c *OperatorClient) Stats(ctx context.Context, opts ...grpc.CallOption) (*StatsResponse, error) {
	return invoke[StatsResponse](ctx, c.cc, "Stats", &Empty{}, opts)
}

func (c *OperatorClient) History(ctx context.Context, in *HistoryRequest, opts ...grpc.CallOption) (*HistoryResponse, error) {
	return invoke[HistoryResponse](ctx, c.cc, "History", in, opts)
}

func (c *OperatorClient) Status(ctx context.Context, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c.cc, "Status", &Empty{}, opts)
}

func (c *OperatorClient) StartMonitoring(ctx context.Context, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "StartMonitoring", &Empty{}, opts)
}

func (c *OperatorClient) StopMonitoring(ctx context.Context, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "StopMonitoring", &Empty{}, opts)
}

func (c *OperatorClient) CheckHandle(ctx context.Context, in *NameRequest, opts ...grpc.CallOption) (*CheckHandleResponse, error) {
	return invoke[CheckHandleResponse](ctx, c.cc, "CheckHandle", in, opts)
}

func (c *OperatorClient) Authorize(ctx context.Context, opts ...grpc.CallOption) (*AuthorizeResponse, error) {
	return invoke[AuthorizeResponse](ctx, c.cc, "Authorize", &Empty{}, opts)
}

func (c *OperatorClient) ResetSession(ctx context.Context, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "ResetSession", &Empty{}, opts)
}

func (c *OperatorClient) SubmitInput(ctx context.Context, in *SubmitInputRequest, opts ...grpc.CallOption) (*SubmitInputResponse, error) {
	return invoke[SubmitInputResponse](ctx, c.cc, "SubmitInput", in, opts)
}

func (c *OperatorClient) GetSettings(ctx context.Context, opts ...grpc.CallOption) (*SettingsResponse, error) {
	return invoke[SettingsResponse](ctx, c.cc, "GetSettings", &Empty{}, opts)
}

func (c *OperatorClient) SetSetting(ctx context.Context, in *SetSettingRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "SetSetting", in, opts)
}

func (c *OperatorClient) Export(ctx context.Context, opts ...grpc.CallOption) (*ExportResponse, error) {
	return invoke[ExportResponse](ctx, c.cc, "Export", &Empty{}, opts)
}

// EventsClient receives the server-streamed events.
type EventsClient interface {
	Recv() (*Event, error)
	grpc.ClientStream
}

type eventsClient struct {
	grpc.ClientStream
}

func (c *eventsClient) Recv() (*Event, error) {
	ev := new(Event)
	if err := c.ClientStream.RecvMsg(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (c *OperatorClient) Events(ctx context.Context, opts ...grpc.CallOption) (EventsClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &OperatorServiceDesc.Streams[0], FullMethod("Events"), opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &eventsClient{stream}, nil
}

package continuousauthv1

import (
	"context"

	"google.golang.org/grpc"
)

// ContinuousAuthServiceClient is the client API for ContinuousAuthService.
type ContinuousAuthServiceClient interface {
	StartEnrollment(ctx context.Context, in *StartEnrollmentRequest, opts ...grpc.CallOption) (*StartEnrollmentResponse, error)
	RecordEnrollmentEvents(ctx context.Context, in *RecordEnrollmentEventsRequest, opts ...grpc.CallOption) (*RecordEventsResponse, error)
	CompleteEnrollment(ctx context.Context, in *CompleteEnrollmentRequest, opts ...grpc.CallOption) (*CompleteEnrollmentResponse, error)
	StartSession(ctx context.Context, in *StartSessionRequest, opts ...grpc.CallOption) (*StartSessionResponse, error)
	RecordEvents(ctx context.Context, in *RecordEventsRequest, opts ...grpc.CallOption) (*RecordEventsResponse, error)
	GetSnapshot(ctx context.Context, in *GetSnapshotRequest, opts ...grpc.CallOption) (*GetSnapshotResponse, error)
	GetSession(ctx context.Context, in *GetSessionRequest, opts ...grpc.CallOption) (*GetSessionResponse, error)
	WatchSession(ctx context.Context, in *WatchSessionRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[SessionEvent], error)
	EndSession(ctx context.Context, in *EndSessionRequest, opts ...grpc.CallOption) (*EndSessionResponse, error)
}

type continuousAuthServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewContinuousAuthServiceClient returns a client that always encodes with Codec.
func NewContinuousAuthServiceClient(cc grpc.ClientConnInterface) ContinuousAuthServiceClient {
	return &continuousAuthServiceClient{cc: cc}
}

func callOpts(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *continuousAuthServiceClient) StartEnrollment(ctx context.Context, in *StartEnrollmentRequest, opts ...grpc.CallOption) (*StartEnrollmentResponse, error) {
	return invoke[StartEnrollmentResponse](ctx, c.cc, ContinuousAuthService_StartEnrollment_FullMethodName, in, opts)
}

func (c *continuousAuthServiceClient) RecordEnrollmentEvents(ctx context.Context, in *RecordEnrollmentEventsRequest, opts ...grpc.CallOption) (*RecordEventsResponse, error) {
	return invoke[RecordEventsResponse](ctx, c.cc, ContinuousAuthService_RecordEnrollmentEvents_FullMethodName, in, opts)
}

func (c *continuousAuthServiceClient) CompleteEnrollment(ctx context.Context, in *CompleteEnrollmentRequest, opts ...grpc.CallOption) (*CompleteEnrollmentResponse, error) {
	return invoke[CompleteEnrollmentResponse](ctx, c.cc, ContinuousAuthService_CompleteEnrollment_FullMethodName, in, opts)
}

func (c *continuousAuthServiceClient) StartSession(ctx context.Context, in *StartSessionRequest, opts ...grpc.CallOption) (*StartSessionResponse, error) {
	return invoke[StartSessionResponse](ctx, c.cc, ContinuousAuthService_StartSession_FullMethodName, in, opts)
}

func (c *continuousAuthServiceClient) RecordEvents(ctx context.Context, in *RecordEventsRequest, opts ...grpc.CallOption) (*RecordEventsResponse, error) {
	return invoke[RecordEventsResponse](ctx, c.cc, ContinuousAuthService_RecordEvents_FullMethodName, in, opts)
}

func (c *continuousAuthServiceClient) GetSnapshot(ctx context.Context, in *GetSnapshotRequest, opts ...grpc.CallOption) (*GetSnapshotResponse, error) {
	return invoke[GetSnapshotResponse](ctx, c.cc, ContinuousAuthService_GetSnapshot_FullMethodName, in, opts)
}

func (c *continuousAuthServiceClient) GetSession(ctx context.Context, in *GetSessionRequest, opts ...grpc.CallOption) (*GetSessionResponse, error) {
	return invoke[GetSessionResponse](ctx, c.cc, ContinuousAuthService_GetSession_FullMethodName, in, opts)
}

func (c *continuousAuthServiceClient) EndSession(ctx context.Context, in *EndSessionRequest, opts ...grpc.CallOption) (*EndSessionResponse, error) {
	return invoke[EndSessionResponse](ctx, c.cc, ContinuousAuthService_EndSession_FullMethodName, in, opts)
}

func (c *continuousAuthServiceClient) WatchSession(ctx context.Context, in *WatchSessionRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[SessionEvent], error) {
	stream, err := c.cc.NewStream(ctx, &ContinuousAuthService_ServiceDesc.Streams[0], ContinuousAuthService_WatchSession_FullMethodName, callOpts(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchSessionRequest, SessionEvent]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

package continuousauthv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "continuousauth.v1.ContinuousAuthService"

const (
	ContinuousAuthService_StartEnrollment_FullMethodName        = "/continuousauth.v1.ContinuousAuthService/StartEnrollment"
	ContinuousAuthService_RecordEnrollmentEvents_FullMethodName = "/continuousauth.v1.ContinuousAuthService/RecordEnrollmentEvents"
	ContinuousAuthService_CompleteEnrollment_FullMethodName     = "/continuousauth.v1.ContinuousAuthService/CompleteEnrollment"
	ContinuousAuthService_StartSession_FullMethodName           = "/continuousauth.v1.ContinuousAuthService/StartSession"
	ContinuousAuthService_RecordEvents_FullMethodName           = "/continuousauth.v1.ContinuousAuthService/RecordEvents"
	ContinuousAuthService_GetSnapshot_FullMethodName            = "/continuousauth.v1.ContinuousAuthService/GetSnapshot"
	ContinuousAuthService_GetSession_FullMethodName             = "/continuousauth.v1.ContinuousAuthService/GetSession"
	ContinuousAuthService_WatchSession_FullMethodName           = "/continuousauth.v1.ContinuousAuthService/WatchSession"
	ContinuousAuthService_EndSession_FullMethodName             = "/continuousauth.v1.ContinuousAuthService/EndSession"
)

// ContinuousAuthServiceServer is the server API for ContinuousAuthService.
type ContinuousAuthServiceServer interface {
	// StartEnrollment begins capturing a user's baseline behavior.
	StartEnrollment(context.Context, *StartEnrollmentRequest) (*StartEnrollmentResponse, error)
	// RecordEnrollmentEvents feeds raw input into the enrollment capture.
	RecordEnrollmentEvents(context.Context, *RecordEnrollmentEventsRequest) (*RecordEventsResponse, error)
	// CompleteEnrollment stops the capture and stores its summary as the user's baseline.
	CompleteEnrollment(context.Context, *CompleteEnrollmentRequest) (*CompleteEnrollmentResponse, error)
	// StartSession creates a session after external authentication and starts monitoring it.
	StartSession(context.Context, *StartSessionRequest) (*StartSessionResponse, error)
	// RecordEvents feeds raw input into the caller's session.
	RecordEvents(context.Context, *RecordEventsRequest) (*RecordEventsResponse, error)
	// GetSnapshot returns the caller's live behavior snapshot.
	GetSnapshot(context.Context, *GetSnapshotRequest) (*GetSnapshotResponse, error)
	// GetSession returns the caller's session record.
	GetSession(context.Context, *GetSessionRequest) (*GetSessionResponse, error)
	// WatchSession streams the current status and every later transition.
	WatchSession(*WatchSessionRequest, ContinuousAuthService_WatchSessionServer) error
	// EndSession signs the caller out.
	EndSession(context.Context, *EndSessionRequest) (*EndSessionResponse, error)
}

// ContinuousAuthService_WatchSessionServer is the server side of the WatchSession stream.
type ContinuousAuthService_WatchSessionServer = grpc.ServerStreamingServer[SessionEvent]

// UnimplementedContinuousAuthServiceServer returns Unimplemented for every method. Embed it by value.
type UnimplementedContinuousAuthServiceServer struct{}

func (UnimplementedContinuousAuthServiceServer) StartEnrollment(context.Context, *StartEnrollmentRequest) (*StartEnrollmentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method StartEnrollment not implemented")
}
func (UnimplementedContinuousAuthServiceServer) RecordEnrollmentEvents(context.Context, *RecordEnrollmentEventsRequest) (*RecordEventsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RecordEnrollmentEvents not implemented")
}
func (UnimplementedContinuousAuthServiceServer) CompleteEnrollment(context.Context, *CompleteEnrollmentRequest) (*CompleteEnrollmentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CompleteEnrollment not implemented")
}
func (UnimplementedContinuousAuthServiceServer) StartSession(context.Context, *StartSessionRequest) (*StartSessionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method StartSession not implemented")
}
func (UnimplementedContinuousAuthServiceServer) RecordEvents(context.Context, *RecordEventsRequest) (*RecordEventsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RecordEvents not implemented")
}
func (UnimplementedContinuousAuthServiceServer) GetSnapshot(context.Context, *GetSnapshotRequest) (*GetSnapshotResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSnapshot not implemented")
}
func (UnimplementedContinuousAuthServiceServer) GetSession(context.Context, *GetSessionRequest) (*GetSessionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSession not implemented")
}
func (UnimplementedContinuousAuthServiceServer) WatchSession(*WatchSessionRequest, ContinuousAuthService_WatchSessionServer) error {
	return status.Error(codes.Unimplemented, "method WatchSession not implemented")
}
func (UnimplementedContinuousAuthServiceServer) EndSession(context.Context, *EndSessionRequest) (*EndSessionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method EndSession not implemented")
}

// RegisterContinuousAuthServiceServer registers srv with s.
func RegisterContinuousAuthServiceServer(s grpc.ServiceRegistrar, srv ContinuousAuthServiceServer) {
	s.RegisterService(&ContinuousAuthService_ServiceDesc, srv)
}

// unaryHandler builds a method handler for a unary RPC with request type Req.
func unaryHandler[Req any, Resp any](fullMethod string, call func(ContinuousAuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ContinuousAuthServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ContinuousAuthServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func _ContinuousAuthService_WatchSession_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(WatchSessionRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ContinuousAuthServiceServer).WatchSession(m, &grpc.GenericServerStream[WatchSessionRequest, SessionEvent]{ServerStream: stream})
}

// ContinuousAuthService_ServiceDesc is the grpc.ServiceDesc for ContinuousAuthService.
var ContinuousAuthService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ContinuousAuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "StartEnrollment",
			Handler:    unaryHandler(ContinuousAuthService_StartEnrollment_FullMethodName, ContinuousAuthServiceServer.StartEnrollment),
		},
		{
			MethodName: "RecordEnrollmentEvents",
			Handler:    unaryHandler(ContinuousAuthService_RecordEnrollmentEvents_FullMethodName, ContinuousAuthServiceServer.RecordEnrollmentEvents),
		},
		{
			MethodName: "CompleteEnrollment",
			Handler:    unaryHandler(ContinuousAuthService_CompleteEnrollment_FullMethodName, ContinuousAuthServiceServer.CompleteEnrollment),
		},
		{
			MethodName: "StartSession",
			Handler:    unaryHandler(ContinuousAuthService_StartSession_FullMethodName, ContinuousAuthServiceServer.StartSession),
		},
		{
			MethodName: "RecordEvents",
			Handler:    unaryHandler(ContinuousAuthService_RecordEvents_FullMethodName, ContinuousAuthServiceServer.RecordEvents),
		},
		{
			MethodName: "GetSnapshot",
			Handler:    unaryHandler(ContinuousAuthService_GetSnapshot_FullMethodName, ContinuousAuthServiceServer.GetSnapshot),
		},
		{
			MethodName: "GetSession",
			Handler:    unaryHandler(ContinuousAuthService_GetSession_FullMethodName, ContinuousAuthServiceServer.GetSession),
		},
		{
			MethodName: "EndSession",
			Handler:    unaryHandler(ContinuousAuthService_EndSession_FullMethodName, ContinuousAuthServiceServer.EndSession),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchSession",
			Handler:       _ContinuousAuthService_WatchSession_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "continuousauth/v1/continuousauth.proto",
}

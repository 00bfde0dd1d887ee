package protocol

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

const serviceName = "dekode.v1.AgentService"

const (
	AgentService_Connect_FullMethodName          = "/" + serviceName + "/Connect"
	AgentService_Context_FullMethodName          = "/" + serviceName + "/Context"
	AgentService_Submit_FullMethodName           = "/" + serviceName + "/Submit"
	AgentService_FileRead_FullMethodName         = "/" + serviceName + "/FileRead"
	AgentService_FileWrite_FullMethodName        = "/" + serviceName + "/FileWrite"
	AgentService_FileList_FullMethodName         = "/" + serviceName + "/FileList"
	AgentService_GetSessionStatus_FullMethodName = "/" + serviceName + "/GetSessionStatus"
	AgentService_Verify_FullMethodName           = "/" + serviceName + "/Verify"
	AgentService_Merge_FullMethodName            = "/" + serviceName + "/Merge"
)

// AgentServiceClient is the client API for the AgentService.
type AgentServiceClient interface {
	Connect(ctx context.Context, in *ConnectRequest, opts ...grpc.CallOption) (*ConnectResponse, error)
	Context(ctx context.Context, in *ContextRequest, opts ...grpc.CallOption) (*ContextResponse, error)
	Submit(ctx context.Context, in *SubmitRequest, opts ...grpc.CallOption) (*SubmitResponse, error)
	FileRead(ctx context.Context, in *FileReadRequest, opts ...grpc.CallOption) (*FileReadResponse, error)
	FileWrite(ctx context.Context, in *FileWriteRequest, opts ...grpc.CallOption) (*FileWriteResponse, error)
	FileList(ctx context.Context, in *FileListRequest, opts ...grpc.CallOption) (*FileListResponse, error)
	GetSessionStatus(ctx context.Context, in *SessionStatusRequest, opts ...grpc.CallOption) (*SessionStatusResponse, error)
	Verify(ctx context.Context, in *VerifyRequest, opts ...grpc.CallOption) (AgentService_VerifyClient, error)
	Merge(ctx context.Context, in *MergeRequest, opts ...grpc.CallOption) (*MergeResponse, error)
}

type agentServiceClient struct {
	cc    grpc.ClientConnInterface
	codec encoding.Codec
}

// NewAgentServiceClient binds the AgentService to cc using the protobuf
// binary codec.
func NewAgentServiceClient(cc grpc.ClientConnInterface) AgentServiceClient {
	return NewAgentServiceClientWithCodec(cc, Codec)
}

// NewAgentServiceClientWithCodec binds the AgentService to cc and forces
// codec on every call. The content-subtype follows the codec name.
func NewAgentServiceClientWithCodec(cc grpc.ClientConnInterface, codec encoding.Codec) AgentServiceClient {
	if codec == nil {
		codec = Codec
	}
	return &agentServiceClient{cc: cc, codec: codec}
}

func (c *agentServiceClient) callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.ForceCodec(c.codec)}, opts...)
}

func invoke[Req, Resp any](ctx context.Context, c *agentServiceClient, method string, in *Req, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := c.cc.Invoke(ctx, method, in, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *agentServiceClient) Connect(ctx context.Context, in *ConnectRequest, opts ...grpc.CallOption) (*ConnectResponse, error) {
	return invoke[ConnectRequest, ConnectResponse](ctx, c, AgentService_Connect_FullMethodName, in, opts)
}

func (c *agentServiceClient) Context(ctx context.Context, in *ContextRequest, opts ...grpc.CallOption) (*ContextResponse, error) {
	return invoke[ContextRequest, ContextResponse](ctx, c, AgentService_Context_FullMethodName, in, opts)
}

func (c *agentServiceClient) Submit(ctx context.Context, in *SubmitRequest, opts ...grpc.CallOption) (*SubmitResponse, error) {
	return invoke[SubmitRequest, SubmitResponse](ctx, c, AgentService_Submit_FullMethodName, in, opts)
}

func (c *agentServiceClient) FileRead(ctx context.Context, in *FileReadRequest, opts ...grpc.CallOption) (*FileReadResponse, error) {
	return invoke[FileReadRequest, FileReadResponse](ctx, c, AgentService_FileRead_FullMethodName, in, opts)
}

func (c *agentServiceClient) FileWrite(ctx context.Context, in *FileWriteRequest, opts ...grpc.CallOption) (*FileWriteResponse, error) {
	return invoke[FileWriteRequest, FileWriteResponse](ctx, c, AgentService_FileWrite_FullMethodName, in, opts)
}

func (c *agentServiceClient) FileList(ctx context.Context, in *FileListRequest, opts ...grpc.CallOption) (*FileListResponse, error) {
	return invoke[FileListRequest, FileListResponse](ctx, c, AgentService_FileList_FullMethodName, in, opts)
}

func (c *agentServiceClient) GetSessionStatus(ctx context.Context, in *SessionStatusRequest, opts ...grpc.CallOption) (*SessionStatusResponse, error) {
	return invoke[SessionStatusRequest, SessionStatusResponse](ctx, c, AgentService_GetSessionStatus_FullMethodName, in, opts)
}

func (c *agentServiceClient) Merge(ctx context.Context, in *MergeRequest, opts ...grpc.CallOption) (*MergeResponse, error) {
	return invoke[MergeRequest, MergeResponse](ctx, c, AgentService_Merge_FullMethodName, in, opts)
}

func (c *agentServiceClient) Verify(ctx context.Context, in *VerifyRequest, opts ...grpc.CallOption) (AgentService_VerifyClient, error) {
	stream, err := c.cc.NewStream(ctx, &AgentService_ServiceDesc.Streams[0], AgentService_Verify_FullMethodName, c.callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &agentServiceVerifyClient{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// AgentService_VerifyClient receives verification steps as the server runs them.
type AgentService_VerifyClient interface {
	Recv() (*VerifyStepResult, error)
	grpc.ClientStream
}

type agentServiceVerifyClient struct {
	grpc.ClientStream
}

func (x *agentServiceVerifyClient) Recv() (*VerifyStepResult, error) {
	m := new(VerifyStepResult)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// AgentServiceServer is the server API for the AgentService.
type AgentServiceServer interface {
	Connect(context.Context, *ConnectRequest) (*ConnectResponse, error)
	Context(context.Context, *ContextRequest) (*ContextResponse, error)
	Submit(context.Context, *SubmitRequest) (*SubmitResponse, error)
	FileRead(context.Context, *FileReadRequest) (*FileReadResponse, error)
	FileWrite(context.Context, *FileWriteRequest) (*FileWriteResponse, error)
	FileList(context.Context, *FileListRequest) (*FileListResponse, error)
	GetSessionStatus(context.Context, *SessionStatusRequest) (*SessionStatusResponse, error)
	Verify(*VerifyRequest, AgentService_VerifyServer) error
	Merge(context.Context, *MergeRequest) (*MergeResponse, error)
}

// UnimplementedAgentServiceServer answers every RPC with codes.Unimplemented.
// Embed it to implement a subset of the service.
type UnimplementedAgentServiceServer struct{}

func (UnimplementedAgentServiceServer) Connect(context.Context, *ConnectRequest) (*ConnectResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Connect not implemented")
}
func (UnimplementedAgentServiceServer) Context(context.Context, *ContextRequest) (*ContextResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Context not implemented")
}
func (UnimplementedAgentServiceServer) Submit(context.Context, *SubmitRequest) (*SubmitResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Submit not implemented")
}
func (UnimplementedAgentServiceServer) FileRead(context.Context, *FileReadRequest) (*FileReadResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method FileRead not implemented")
}
func (UnimplementedAgentServiceServer) FileWrite(context.Context, *FileWriteRequest) (*FileWriteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method FileWrite not implemented")
}
func (UnimplementedAgentServiceServer) FileList(context.Context, *FileListRequest) (*FileListResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method FileList not implemented")
}
func (UnimplementedAgentServiceServer) GetSessionStatus(context.Context, *SessionStatusRequest) (*SessionStatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSessionStatus not implemented")
}
func (UnimplementedAgentServiceServer) Verify(*VerifyRequest, AgentService_VerifyServer) error {
	return status.Error(codes.Unimplemented, "method Verify not implemented")
}
func (UnimplementedAgentServiceServer) Merge(context.Context, *MergeRequest) (*MergeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Merge not implemented")
}

// RegisterAgentServiceServer attaches srv to s.
func RegisterAgentServiceServer(s grpc.ServiceRegistrar, srv AgentServiceServer) {
	s.RegisterService(&AgentService_ServiceDesc, srv)
}

func unaryHandler[Req, Resp any](method string, call func(AgentServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AgentServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AgentServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func _AgentService_Verify_Handler(srv any, stream grpc.ServerStream) error {
	m := new(VerifyRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(AgentServiceServer).Verify(m, &agentServiceVerifyServer{ServerStream: stream})
}

// AgentService_VerifyServer sends verification steps to the client.
type AgentService_VerifyServer interface {
	Send(*VerifyStepResult) error
	grpc.ServerStream
}

type agentServiceVerifyServer struct {
	grpc.ServerStream
}

func (x *agentServiceVerifyServer) Send(m *VerifyStepResult) error {
	return x.ServerStream.SendMsg(m)
}

// AgentService_ServiceDesc describes the AgentService for grpc.Server.
var AgentService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AgentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Connect", Handler: unaryHandler(AgentService_Connect_FullMethodName, AgentServiceServer.Connect)},
		{MethodName: "Context", Handler: unaryHandler(AgentService_Context_FullMethodName, AgentServiceServer.Context)},
		{MethodName: "Submit", Handler: unaryHandler(AgentService_Submit_FullMethodName, AgentServiceServer.Submit)},
		{MethodName: "FileRead", Handler: unaryHandler(AgentService_FileRead_FullMethodName, AgentServiceServer.FileRead)},
		{MethodName: "FileWrite", Handler: unaryHandler(AgentService_FileWrite_FullMethodName, AgentServiceServer.FileWrite)},
		{MethodName: "FileList", Handler: unaryHandler(AgentService_FileList_FullMethodName, AgentServiceServer.FileList)},
		{MethodName: "GetSessionStatus", Handler: unaryHandler(AgentService_GetSessionStatus_FullMethodName, AgentServiceServer.GetSessionStatus)},
		{MethodName: "Merge", Handler: unaryHandler(AgentService_Merge_FullMethodName, AgentServiceServer.Merge)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Verify",
			Handler:       _AgentService_Verify_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "dekode/v1/agent.proto",
}

// 包 外汇期权 gRPC 服务描述、客户端桩与服务端实现
// 请求与响应均以 google.protobuf.Struct 承载，字段名与 HTTP JSON 一致。
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName 完整服务名
const ServiceName = "fxoption.v1.FXOptionService"

// 方法全名
const (
	GetDefaultsMethod       = "/" + ServiceName + "/GetDefaults"
	PriceOptionMethod       = "/" + ServiceName + "/PriceOption"
	GenerateChainMethod     = "/" + ServiceName + "/GenerateChain"
	CalculateMethod         = "/" + ServiceName + "/Calculate"
	BatchPriceOptionsMethod = "/" + ServiceName + "/BatchPriceOptions"
	StreamChainMethod       = "/" + ServiceName + "/StreamChain"
)

// FXOptionServiceServer 服务端接口
type FXOptionServiceServer interface {
	GetDefaults(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PriceOption(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GenerateChain(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Calculate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BatchPriceOptions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// StreamChain 逐行推送期权链，最后一条消息为汇总（不含 rows）
	StreamChain(*structpb.Struct, FXOptionService_StreamChainServer) error
}

// FXOptionService_StreamChainServer StreamChain 的服务端流
type FXOptionService_StreamChainServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type streamChainServer struct {
	grpc.ServerStream
}

func (x *streamChainServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// RegisterFXOptionServiceServer 注册服务实现
func RegisterFXOptionServiceServer(s grpc.ServiceRegistrar, srv FXOptionServiceServer) {
	s.RegisterService(&FXOptionService_ServiceDesc, srv)
}

func unaryHandler(method string, call func(FXOptionServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FXOptionServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(FXOptionServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func streamChainHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(FXOptionServiceServer).StreamChain(in, &streamChainServer{stream})
}

// FXOptionService_ServiceDesc 服务描述
var FXOptionService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FXOptionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetDefaults", Handler: unaryHandler(GetDefaultsMethod, FXOptionServiceServer.GetDefaults)},
		{MethodName: "PriceOption", Handler: unaryHandler(PriceOptionMethod, FXOptionServiceServer.PriceOption)},
		{MethodName: "GenerateChain", Handler: unaryHandler(GenerateChainMethod, FXOptionServiceServer.GenerateChain)},
		{MethodName: "Calculate", Handler: unaryHandler(CalculateMethod, FXOptionServiceServer.Calculate)},
		{MethodName: "BatchPriceOptions", Handler: unaryHandler(BatchPriceOptionsMethod, FXOptionServiceServer.BatchPriceOptions)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamChain", Handler: streamChainHandler, ServerStreams: true},
	},
	Metadata: "fxoption/v1/fxoption.proto",
}

// FXOptionServiceClient 客户端接口
type FXOptionServiceClient interface {
	GetDefaults(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	PriceOption(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GenerateChain(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Calculate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	BatchPriceOptions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	StreamChain(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (FXOptionService_StreamChainClient, error)
}

// FXOptionService_StreamChainClient StreamChain 的客户端流
type FXOptionService_StreamChainClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type fxOptionServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewFXOptionServiceClient 创建客户端桩
func NewFXOptionServiceClient(cc grpc.ClientConnInterface) FXOptionServiceClient {
	return &fxOptionServiceClient{cc: cc}
}

func (c *fxOptionServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fxOptionServiceClient) GetDefaults(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetDefaultsMethod, in, opts...)
}

func (c *fxOptionServiceClient) PriceOption(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, PriceOptionMethod, in, opts...)
}

func (c *fxOptionServiceClient) GenerateChain(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GenerateChainMethod, in, opts...)
}

func (c *fxOptionServiceClient) Calculate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CalculateMethod, in, opts...)
}

func (c *fxOptionServiceClient) BatchPriceOptions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, BatchPriceOptionsMethod, in, opts...)
}

func (c *fxOptionServiceClient) StreamChain(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (FXOptionService_StreamChainClient, error) {
	stream, err := c.cc.NewStream(ctx, &FXOptionService_ServiceDesc.Streams[0], StreamChainMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &streamChainClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type streamChainClient struct {
	grpc.ClientStream
}

func (x *streamChainClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

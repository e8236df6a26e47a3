package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "market.v1.MarketService"

// MarketServiceServer exchanges google.protobuf.Struct messages so the service
// needs no generated stubs. Field names match the REST API's JSON.
type MarketServiceServer interface {
	GetListing(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AcquireLock(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReleaseLock(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefundOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunSweep(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PurgeEvents(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(MarketServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func methodHandler(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MarketServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(MarketServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var MarketService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MarketServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		methodHandler("GetListing", MarketServiceServer.GetListing),
		methodHandler("AcquireLock", MarketServiceServer.AcquireLock),
		methodHandler("ReleaseLock", MarketServiceServer.ReleaseLock),
		methodHandler("CreateOrder", MarketServiceServer.CreateOrder),
		methodHandler("GetOrder", MarketServiceServer.GetOrder),
		methodHandler("CancelOrder", MarketServiceServer.CancelOrder),
		methodHandler("RefundOrder", MarketServiceServer.RefundOrder),
		methodHandler("RunSweep", MarketServiceServer.RunSweep),
		methodHandler("PurgeEvents", MarketServiceServer.PurgeEvents),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "market/v1/market.proto",
}

func RegisterMarketServiceServer(s grpc.ServiceRegistrar, srv MarketServiceServer) {
	s.RegisterService(&MarketService_ServiceDesc, srv)
}

// MarketServiceClient is the client side of MarketService.
type MarketServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMarketServiceClient(cc grpc.ClientConnInterface) *MarketServiceClient {
	return &MarketServiceClient{cc: cc}
}

func (c *MarketServiceClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Package rpc exposes classification over gRPC as the service
// uda.ClassificationService. Messages are the well-known protobuf types, with
// structpb.Struct carrying the same JSON objects the HTTP API returns.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "uda.ClassificationService"

// ClassificationServer is the server API of the service.
type ClassificationServer interface {
	// Classify takes {"domain", "metric", "value"}.
	Classify(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Recommendations takes {"domain", "label"}.
	Recommendations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDevices(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetLatest(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

func RegisterClassificationServer(s grpc.ServiceRegistrar, srv ClassificationServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func classifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClassificationServer).Classify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Classify")}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ClassificationServer).Classify(ctx, req.(*structpb.Struct))
	})
}

func recommendationsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClassificationServer).Recommendations(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Recommendations")}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ClassificationServer).Recommendations(ctx, req.(*structpb.Struct))
	})
}

func getDevicesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClassificationServer).GetDevices(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("GetDevices")}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ClassificationServer).GetDevices(ctx, req.(*emptypb.Empty))
	})
}

func getLatestHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClassificationServer).GetLatest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("GetLatest")}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ClassificationServer).GetLatest(ctx, req.(*wrapperspb.StringValue))
	})
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ClassificationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Classify", Handler: classifyHandler},
		{MethodName: "Recommendations", Handler: recommendationsHandler},
		{MethodName: "GetDevices", Handler: getDevicesHandler},
		{MethodName: "GetLatest", Handler: getLatestHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "uda/classification.proto",
}

// Client calls the service over a connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Classify(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Classify"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Recommendations(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Recommendations"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetDevices(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("GetDevices"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetLatest(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("GetLatest"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

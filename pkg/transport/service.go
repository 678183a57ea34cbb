package transport

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "kvfabric.Provider"

// KVServer is implemented by anything that can answer a dispatched
// Envelope. This package's Server type (server.go) implements this by
// switching on Envelope.Op.
type KVServer interface {
	Invoke(ctx context.Context, req *Envelope) (*Envelope, error)
}

// KVClient is the client-side half of the same single-method surface.
type KVClient interface {
	Invoke(ctx context.Context, req *Envelope, opts ...grpc.CallOption) (*Envelope, error)
}

type kvClient struct {
	cc grpc.ClientConnInterface
}

// NewKVClient wraps an established grpc.ClientConn.
func NewKVClient(cc grpc.ClientConnInterface) KVClient {
	return &kvClient{cc: cc}
}

func (c *kvClient) Invoke(ctx context.Context, req *Envelope, opts ...grpc.CallOption) (*Envelope, error) {
	out := new(Envelope)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Invoke", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func invokeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Envelope)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(KVServer).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Invoke"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(KVServer).Invoke(ctx, req.(*Envelope))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the hand-authored equivalent of what protoc-gen-go-grpc
// would emit for a service with a single Invoke RPC. It is registered
// exactly the way generated code registers: via ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*KVServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Invoke", Handler: invokeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kvfabric/transport.proto",
}

// RegisterKVServer attaches srv to s the same way generated
// RegisterXxxServer functions do.
func RegisterKVServer(s grpc.ServiceRegistrar, srv KVServer) {
	s.RegisterService(&ServiceDesc, srv)
}

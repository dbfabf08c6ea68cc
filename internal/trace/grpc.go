package trace

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// UnaryClientInterceptor injects trace and session ids into outgoing gRPC calls.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(injectMetadata(ctx), method, req, reply, cc, opts...)
	}
}

// UnaryServerInterceptor continues the caller's trace on the serving side.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		m := make(map[string]string, 3)
		for _, k := range []string{TraceIDKey, SpanIDKey, SessionIDKey} {
			if v := md.Get(k); len(v) > 0 {
				m[k] = v[0]
			}
		}
		ctx = WithContext(ctx, FromMap(m))
		if id := m[SessionIDKey]; id != "" {
			ctx = WithSession(ctx, id)
		}
		return handler(ctx, req)
	}
}

func injectMetadata(ctx context.Context) context.Context {
	ctx, tc := EnsureContext(ctx)

	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.New(nil)
	}

	for k, v := range tc.ToMap() {
		md.Set(k, v)
	}
	if id := SessionFrom(ctx); id != "" {
		md.Set(SessionIDKey, id)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

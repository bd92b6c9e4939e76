// Package hostrpc exposes a hostapi.Host over gRPC so a batch job can drive
// a document that lives in another process.
//
// The service is small enough that it is described by hand on top of the
// protobuf well-known types instead of generated code.
package hostrpc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rshade/varbatch/internal/hostapi"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "varbatch.host.v1.Host"

// ProtocolVersion is the version this build speaks; VersionConstraint is what
// the client accepts from a server.
const (
	ProtocolVersion   = "1.0.0"
	VersionConstraint = "^1.0"
)

// Method names.
const (
	methodInfo           = "Info"
	methodLen            = "Len"
	methodItem           = "Item"
	methodClearSelection = "ClearSelection"
	methodSelect         = "Select"
	methodKind           = "Kind"
	methodText           = "Text"
	methodVariableCount  = "VariableCount"
	methodApply          = "Apply"
)

// Struct field names used in structpb payloads.
const (
	fieldName            = "name"
	fieldProtocolVersion = "protocol_version"
	fieldActions         = "actions"
	fieldText            = "text"
	fieldOK              = "ok"
	fieldAction          = "action"
	fieldID              = "id"
)

// ErrIncompatibleHost is returned when a server speaks an unsupported protocol.
var ErrIncompatibleHost = errors.New("incompatible host protocol")

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// hostServer is the handler type registered with grpc.
type hostServer interface {
	hostServer()
}

func unary[Req, Resp any](name string, call func(*Server, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	invoke := func(s *Server, ctx context.Context, in *Req) (out *Resp, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = status.Errorf(codes.Internal, "host panic: %v", r)
			}
		}()
		return call(s, ctx, in)
	}

	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s, ok := srv.(*Server)
			if !ok {
				return nil, status.Errorf(codes.Internal, "unexpected server type %T", srv)
			}
			if interceptor == nil {
				return invoke(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				r, ok := req.(*Req)
				if !ok {
					return nil, status.Errorf(codes.Internal, "unexpected request type %T", req)
				}
				return invoke(s, ctx, r)
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*hostServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(methodInfo, (*Server).info),
		unary(methodLen, (*Server).length),
		unary(methodItem, (*Server).item),
		unary(methodClearSelection, (*Server).clearSelection),
		unary(methodSelect, (*Server).selectItem),
		unary(methodKind, (*Server).kind),
		unary(methodText, (*Server).text),
		unary(methodVariableCount, (*Server).variableCount),
		unary(methodApply, (*Server).apply),
	},
	Metadata: "varbatch/host/v1/host.proto",
}

// toStatus maps host errors to gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, hostapi.ErrItemNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, hostapi.ErrUnknownOperation):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Unknown, err.Error())
	}
}

// fromStatus maps gRPC status codes back to host errors.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", hostapi.ErrItemNotFound, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", hostapi.ErrUnknownOperation, st.Message())
	case codes.Unknown:
		return errors.New(st.Message())
	default:
		return err
	}
}

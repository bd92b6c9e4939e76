package hostrpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/rshade/varbatch/internal/hostapi"
	"github.com/rshade/varbatch/internal/logging"
)

// OperationResolver returns the operation for an action name.
type OperationResolver func(action string) (hostapi.Operation, error)

// ServerOptions configure a Server.
type ServerOptions struct {
	// Name identifies the served document in Info.
	Name string
	// Actions are advertised in Info.
	Actions []string
	// Resolve builds operations on demand; results are cached per action.
	Resolve OperationResolver
	Logger  zerolog.Logger
}

// Server serves a local Host.
type Server struct {
	host   hostapi.Host
	opts   ServerOptions
	logger zerolog.Logger

	mu    sync.Mutex
	items map[string]hostapi.Item
	ops   map[string]hostapi.Operation
}

func (*Server) hostServer() {}

// NewServer wraps host.
func NewServer(host hostapi.Host, opts ServerOptions) *Server {
	return &Server{
		host:   host,
		opts:   opts,
		logger: logging.ComponentLogger(opts.Logger, "hostrpc"),
		items:  map[string]hostapi.Item{},
		ops:    map[string]hostapi.Operation{},
	}
}

// Register attaches the service to a grpc server.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// Serve runs a grpc server on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	gs := grpc.NewServer()
	s.Register(gs)

	errCh := make(chan error, 1)
	go func() { errCh <- gs.Serve(lis) }()
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("host server listening")

	select {
	case <-ctx.Done():
		gs.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func (s *Server) info(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	actions := make([]any, len(s.opts.Actions))
	for i, a := range s.opts.Actions {
		actions[i] = a
	}
	return structpb.NewStruct(map[string]any{
		fieldName:            s.opts.Name,
		fieldProtocolVersion: ProtocolVersion,
		fieldActions:         actions,
	})
}

func (s *Server) length(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	n, err := s.host.Len()
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Int64(int64(n)), nil
}

func (s *Server) item(_ context.Context, in *wrapperspb.Int64Value) (*wrapperspb.StringValue, error) {
	it, err := s.host.Item(int(in.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	if it == nil {
		return nil, toStatus(hostapi.NotFound(int(in.GetValue())))
	}
	s.mu.Lock()
	s.items[it.ID()] = it
	s.mu.Unlock()
	return wrapperspb.String(it.ID()), nil
}

func (s *Server) clearSelection(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return &emptypb.Empty{}, toStatus(s.host.ClearSelection())
}

func (s *Server) selectItem(_ context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	it, err := s.lookup(in.GetValue())
	if err != nil {
		return nil, err
	}
	if err = s.host.Select(it); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) kind(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	it, err := s.lookup(in.GetValue())
	if err != nil {
		return nil, err
	}
	k, err := s.host.Kind(it)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(k), nil
}

func (s *Server) text(_ context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	it, err := s.lookup(in.GetValue())
	if err != nil {
		return nil, err
	}
	t, ok, err := s.host.Text(it)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{fieldText: t, fieldOK: ok})
}

func (s *Server) variableCount(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	n, err := s.host.VariableCount()
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Int64(int64(n)), nil
}

func (s *Server) apply(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	fields := in.GetFields()
	action := fields[fieldAction].GetStringValue()
	id := fields[fieldID].GetStringValue()

	op, err := s.operation(action)
	if err != nil {
		return nil, toStatus(err)
	}
	it, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if err = op.Apply(ctx, it); err != nil {
		s.logger.Debug().Err(err).Str("action", action).Str("item_id", id).Msg("operation failed")
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) operation(action string) (hostapi.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op, ok := s.ops[action]; ok {
		return op, nil
	}
	if s.opts.Resolve == nil {
		return nil, fmt.Errorf("%w: %q", hostapi.ErrUnknownOperation, action)
	}
	op, err := s.opts.Resolve(action)
	if err != nil {
		return nil, err
	}
	s.ops[action] = op
	return op, nil
}

func (s *Server) lookup(id string) (hostapi.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "item %q was never resolved", id)
	}
	return it, nil
}

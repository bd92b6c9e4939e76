package hostrpc

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/rshade/varbatch/internal/hostapi"
	"github.com/rshade/varbatch/internal/logging"
)

// Client timeouts.
const (
	DefaultCallTimeout  = 10 * time.Second
	DefaultApplyTimeout = 2 * time.Minute
	infoTimeout         = 5 * time.Second
)

// ClientOptions configure a Client.
type ClientOptions struct {
	CallTimeout      time.Duration
	ApplyTimeout     time.Duration
	SkipVersionCheck bool
	Logger           zerolog.Logger
}

// HostInfo is what the server reports during the handshake.
type HostInfo struct {
	Name            string
	ProtocolVersion string
	Actions         []string
}

// Client is a hostapi.Host backed by a remote Server.
type Client struct {
	conn   grpc.ClientConnInterface
	closer func() error
	opts   ClientOptions
	info   HostInfo
	logger zerolog.Logger
}

var _ hostapi.Host = (*Client)(nil)

type remoteItem string

func (r remoteItem) ID() string { return string(r) }

// Dial connects to addr and performs the version handshake.
func Dial(ctx context.Context, addr string, opts ClientOptions) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to host %s: %w", addr, err)
	}
	c, err := NewClient(ctx, conn, opts)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.closer = conn.Close
	return c, nil
}

// NewClient wraps an existing connection and performs the version handshake.
func NewClient(ctx context.Context, conn grpc.ClientConnInterface, opts ClientOptions) (*Client, error) {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.ApplyTimeout <= 0 {
		opts.ApplyTimeout = DefaultApplyTimeout
	}
	c := &Client{
		conn:   conn,
		opts:   opts,
		logger: logging.ComponentLogger(opts.Logger, "hostrpc"),
	}

	infoCtx, cancel := context.WithTimeout(ctx, infoTimeout)
	defer cancel()
	info, err := c.fetchInfo(infoCtx)
	if err != nil {
		return nil, fmt.Errorf("host handshake: %w", err)
	}
	c.info = info

	if !opts.SkipVersionCheck {
		if err = CheckVersion(info.ProtocolVersion); err != nil {
			return nil, err
		}
	}
	c.logger.Debug().
		Str("host", info.Name).
		Str("protocol_version", info.ProtocolVersion).
		Msg("connected to host")
	return c, nil
}

// CheckVersion validates a server protocol version against VersionConstraint.
func CheckVersion(version string) error {
	constraint, err := semver.NewConstraint(VersionConstraint)
	if err != nil {
		return fmt.Errorf("invalid version constraint: %w", err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: unparseable version %q: %v", ErrIncompatibleHost, version, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("%w: host speaks %s, need %s", ErrIncompatibleHost, v, VersionConstraint)
	}
	return nil
}

// Info returns the handshake data.
func (c *Client) Info() HostInfo {
	return c.info
}

// Close releases the connection when the client owns it.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

func (c *Client) fetchInfo(ctx context.Context) (HostInfo, error) {
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, fullMethod(methodInfo), &emptypb.Empty{}, out); err != nil {
		return HostInfo{}, fromStatus(err)
	}
	fields := out.GetFields()
	info := HostInfo{
		Name:            fields[fieldName].GetStringValue(),
		ProtocolVersion: fields[fieldProtocolVersion].GetStringValue(),
	}
	for _, v := range fields[fieldActions].GetListValue().GetValues() {
		info.Actions = append(info.Actions, v.GetStringValue())
	}
	return info, nil
}

func (c *Client) call(method string, in, out proto.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.CallTimeout)
	defer cancel()
	return fromStatus(c.conn.Invoke(ctx, fullMethod(method), in, out))
}

// Len returns the remote collection size.
func (c *Client) Len() (int, error) {
	out := &wrapperspb.Int64Value{}
	if err := c.call(methodLen, &emptypb.Empty{}, out); err != nil {
		return 0, fmt.Errorf("host len: %w", err)
	}
	return int(out.GetValue()), nil
}

// Item resolves the remote item at the 1-based index.
func (c *Client) Item(index int) (hostapi.Item, error) {
	out := &wrapperspb.StringValue{}
	if err := c.call(methodItem, wrapperspb.Int64(int64(index)), out); err != nil {
		return nil, err
	}
	return remoteItem(out.GetValue()), nil
}

// ClearSelection clears the remote selection.
func (c *Client) ClearSelection() error {
	return c.call(methodClearSelection, &emptypb.Empty{}, &emptypb.Empty{})
}

// Select selects item remotely.
func (c *Client) Select(item hostapi.Item) error {
	return c.call(methodSelect, wrapperspb.String(item.ID()), &emptypb.Empty{})
}

// Kind returns the remote object kind.
func (c *Client) Kind(item hostapi.Item) (string, error) {
	out := &wrapperspb.StringValue{}
	if err := c.call(methodKind, wrapperspb.String(item.ID()), out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// Text returns the remote object text.
func (c *Client) Text(item hostapi.Item) (string, bool, error) {
	out := &structpb.Struct{}
	if err := c.call(methodText, wrapperspb.String(item.ID()), out); err != nil {
		return "", false, err
	}
	fields := out.GetFields()
	return fields[fieldText].GetStringValue(), fields[fieldOK].GetBoolValue(), nil
}

// VariableCount returns the remote variable count.
func (c *Client) VariableCount() (int, error) {
	out := &wrapperspb.Int64Value{}
	if err := c.call(methodVariableCount, &emptypb.Empty{}, out); err != nil {
		return 0, err
	}
	return int(out.GetValue()), nil
}

// Operation returns the remote action as a hostapi.Operation.
func (c *Client) Operation(action string) hostapi.Operation {
	return hostapi.OperationFunc{OpName: action, Fn: func(ctx context.Context, item hostapi.Item) error {
		in, err := structpb.NewStruct(map[string]any{fieldAction: action, fieldID: item.ID()})
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(ctx, c.opts.ApplyTimeout)
		defer cancel()
		return fromStatus(c.conn.Invoke(ctx, fullMethod(methodApply), in, &emptypb.Empty{}))
	}}
}

package hostrpc_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rshade/varbatch/internal/engine/batch"
	"github.com/rshade/varbatch/internal/engine/batch/batchtest"
	"github.com/rshade/varbatch/internal/hostapi"
	"github.com/rshade/varbatch/internal/hostapi/document"
	"github.com/rshade/varbatch/internal/hostrpc"
)

const bufSize = 1 << 20

const sample = `objects:
  - id: a
    kind: TextFrame
    text: "olá"
  - id: b
    kind: PlacedItem
  - id: c
    kind: TextFrame
    text: "ação"
`

func startServer(t *testing.T, doc *document.Document) *hostrpc.Client {
	t.Helper()
	lis := bufconn.Listen(bufSize)

	srv := hostrpc.NewServer(doc, hostrpc.ServerOptions{
		Name:    "sample",
		Actions: document.Actions(),
		Resolve: func(action string) (hostapi.Operation, error) {
			return document.NewOperation(action, doc, document.Args{})
		},
		Logger: zerolog.Nop(),
	})
	gs := grpc.NewServer()
	srv.Register(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := hostrpc.NewClient(context.Background(), conn, hostrpc.ClientOptions{Logger: zerolog.Nop()})
	require.NoError(t, err)
	return client
}

func sampleDoc(t *testing.T) *document.Document {
	t.Helper()
	doc, err := document.Parse([]byte(sample), document.FormatYAML, document.Options{})
	require.NoError(t, err)
	return doc
}

func TestClient_Handshake(t *testing.T) {
	c := startServer(t, sampleDoc(t))

	info := c.Info()
	assert.Equal(t, "sample", info.Name)
	assert.Equal(t, hostrpc.ProtocolVersion, info.ProtocolVersion)
	assert.Contains(t, info.Actions, document.ActionSetVar)
	assert.NoError(t, c.Close())
}

func TestClient_HostCalls(t *testing.T) {
	c := startServer(t, sampleDoc(t))

	n, err := c.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	item, err := c.Item(1)
	require.NoError(t, err)
	assert.Equal(t, "a", item.ID())

	kind, err := c.Kind(item)
	require.NoError(t, err)
	assert.Equal(t, hostapi.KindText, kind)

	text, ok, err := c.Text(item)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "olá", text)

	require.NoError(t, c.ClearSelection())
	require.NoError(t, c.Select(item))

	require.NoError(t, c.Operation(document.ActionUpper).Apply(context.Background(), item))
	text, _, err = c.Text(item)
	require.NoError(t, err)
	assert.Equal(t, "OLÁ", text)

	count, err := c.VariableCount()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestClient_Errors(t *testing.T) {
	c := startServer(t, sampleDoc(t))

	_, err := c.Item(9)
	assert.ErrorIs(t, err, hostapi.ErrItemNotFound)

	err = c.Select(stubItem("never-resolved"))
	assert.ErrorIs(t, err, hostapi.ErrItemNotFound)

	item, err := c.Item(1)
	require.NoError(t, err)
	err = c.Operation("explode").Apply(context.Background(), item)
	assert.ErrorIs(t, err, hostapi.ErrUnknownOperation)

	// Not selected: the document rejects the action and the message crosses the wire.
	require.NoError(t, c.ClearSelection())
	err = c.Operation(document.ActionSetVar).Apply(context.Background(), item)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not selected")
}

func TestClient_LenFailsWhenServerIsGone(t *testing.T) {
	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer()
	hostrpc.NewServer(sampleDoc(t), hostrpc.ServerOptions{Name: "sample", Logger: zerolog.Nop()}).Register(gs)
	go func() { _ = gs.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c, err := hostrpc.NewClient(context.Background(), conn,
		hostrpc.ClientOptions{CallTimeout: 200 * time.Millisecond, Logger: zerolog.Nop()})
	require.NoError(t, err)

	gs.Stop()

	assert.NotPanics(t, func() {
		n, lenErr := c.Len()
		require.Error(t, lenErr)
		assert.Contains(t, lenErr.Error(), "host len")
		assert.Zero(t, n)
	})
}

func TestClient_DrivesScheduler(t *testing.T) {
	doc := sampleDoc(t)
	c := startServer(t, doc)

	s, err := batch.NewScheduler(batch.Options{Clock: batchtest.NewClock(), Logger: zerolog.Nop()})
	require.NoError(t, err)

	res, err := s.Run(context.Background(), c, c.Operation(document.ActionSetVar))
	require.NoError(t, err)
	require.Len(t, res.Records, 3)

	assert.False(t, res.Records[0].Failed())
	assert.True(t, res.Records[1].Failed())
	assert.False(t, res.Records[2].Failed())
	assert.Equal(t, "ação", res.Records[2].Pre.OriginalText)
	assert.Equal(t, 2, res.Records[2].Post.VariableCount)
	assert.Len(t, doc.Variables(), 2)
	assert.Empty(t, doc.Selected())
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{"1.0.0", false},
		{"1.4.2", false},
		{"2.0.0", true},
		{"0.9.0", true},
		{"banana", true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := hostrpc.CheckVersion(tt.version)
			if tt.wantErr {
				assert.ErrorIs(t, err, hostrpc.ErrIncompatibleHost)
				return
			}
			assert.NoError(t, err)
		})
	}
}

type stubItem string

func (s stubItem) ID() string { return string(s) }

// infoConn answers only the Info call, with a fixed protocol version.
type infoConn struct{ version string }

func (c infoConn) Invoke(_ context.Context, _ string, _, reply any, _ ...grpc.CallOption) error {
	out, ok := reply.(*structpb.Struct)
	if !ok {
		return errors.New("unexpected reply type")
	}
	v, err := structpb.NewStruct(map[string]any{"name": "old", "protocol_version": c.version})
	if err != nil {
		return err
	}
	proto.Merge(out, v)
	return nil
}

func (infoConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("streams not supported")
}

func TestNewClient_RejectsIncompatibleHost(t *testing.T) {
	_, err := hostrpc.NewClient(context.Background(), infoConn{version: "2.1.0"}, hostrpc.ClientOptions{})
	assert.ErrorIs(t, err, hostrpc.ErrIncompatibleHost)

	c, err := hostrpc.NewClient(context.Background(), infoConn{version: "2.1.0"},
		hostrpc.ClientOptions{SkipVersionCheck: true})
	require.NoError(t, err)
	assert.Equal(t, "2.1.0", c.Info().ProtocolVersion)
}

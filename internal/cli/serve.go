package cli

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rshade/varbatch/internal/config"
	"github.com/rshade/varbatch/internal/hostapi"
	"github.com/rshade/varbatch/internal/hostapi/document"
	"github.com/rshade/varbatch/internal/hostrpc"
)

var errNoDocument = errors.New("--document is required")

// ServeOptions holds the flags of the serve command.
type ServeOptions struct {
	Document string
	Addr     string
	Save     bool
	Kinds    []string
	Command  []string
}

// NewServeCmd creates the serve command, which exposes a document as a
// remote host for 'varbatch run --host-addr'.
func NewServeCmd() *cobra.Command {
	var opts ServeOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a document as a remote host over gRPC",
		Long: `Loads a document and serves it over gRPC so that another varbatch process
can run jobs against it with --host-addr. Stop with Ctrl+C; --save writes the
modified document back when the server stops.`,
		Example: `  varbatch serve --document drawing.yaml --addr 127.0.0.1:50551 --save`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Document, "document", "d", "", "document to serve (YAML or JSON)")
	f.StringVar(&opts.Addr, "addr", "", "listen address (default from host.serve_addr)")
	f.BoolVar(&opts.Save, "save", false, "save the document when the server stops")
	f.StringSliceVar(&opts.Kinds, "kinds", nil, "only serve objects of these kinds")
	f.StringArrayVar(&opts.Command, "command", nil, "argv for the exec action, one flag per argument")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	if opts.Document == "" {
		return errNoDocument
	}
	cfg := config.GetGlobalConfig()
	if cmd.Flags().Changed("kinds") {
		cfg.Host.Kinds = opts.Kinds
	}
	if cmd.Flags().Changed("command") {
		cfg.Host.Command = opts.Command
	}
	addr := opts.Addr
	if addr == "" {
		addr = cfg.Host.ServeAddr
	}

	doc, err := document.Load(opts.Document, document.Options{Kinds: cfg.Host.Kinds})
	if err != nil {
		return err
	}
	args := documentArgs(cfg)

	srv := hostrpc.NewServer(doc, hostrpc.ServerOptions{
		Name:    filepath.Base(opts.Document),
		Actions: document.Actions(),
		Resolve: func(action string) (hostapi.Operation, error) {
			return document.NewOperation(action, doc, args)
		},
		Logger: logger,
	})

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.PrintErrf("Serving %s (%d items) on %s. Press Ctrl+C to stop.\n",
		opts.Document, doc.Count(), lis.Addr())
	if err = srv.Serve(ctx, lis); err != nil {
		return err
	}

	if opts.Save {
		if err = doc.Save(""); err != nil {
			return fmt.Errorf("saving document: %w", err)
		}
		cmd.PrintErrf("Saved %s\n", doc.Path())
	}
	return nil
}

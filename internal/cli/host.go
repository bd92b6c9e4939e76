package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rshade/varbatch/internal/config"
	"github.com/rshade/varbatch/internal/hostapi"
	"github.com/rshade/varbatch/internal/hostapi/document"
	"github.com/rshade/varbatch/internal/hostrpc"
)

var (
	errNoHost          = errors.New("either --document or --host-addr is required")
	errUnknownAction   = errors.New("host does not offer this action")
	errSaveWithoutFile = errors.New("--save needs a local --document")
)

// hostSession is an opened host and the operation to run on it.
type hostSession struct {
	Host      hostapi.Host
	Operation hostapi.Operation
	// Document is set for local hosts only.
	Document *document.Document
	// Source names the document path or remote address.
	Source string

	close func() error
}

// Close releases the connection to a remote host.
func (s *hostSession) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// documentArgs builds the operation arguments from configuration.
func documentArgs(cfg *config.Config) document.Args {
	return document.Args{
		VariablePrefix: cfg.Export.VariablePrefix,
		Command:        cfg.Host.Command,
		Timeout:        cfg.Host.ExecTimeout,
	}
}

// openHost opens a remote host when cfg.Host.Addr is set and the local
// document at docPath otherwise.
func openHost(ctx context.Context, cfg *config.Config, docPath, action string, ids []string) (*hostSession, error) {
	if cfg.Host.Addr != "" {
		return openRemoteHost(ctx, cfg, action)
	}
	if docPath == "" {
		return nil, errNoHost
	}

	doc, err := document.Load(docPath, document.Options{Kinds: cfg.Host.Kinds, IDs: ids})
	if err != nil {
		return nil, err
	}
	op, err := document.NewOperation(action, doc, documentArgs(cfg))
	if err != nil {
		return nil, err
	}

	logger.Debug().Ctx(ctx).
		Str("document", docPath).
		Int("items", doc.Count()).
		Str("action", action).
		Msg("document loaded")
	return &hostSession{Host: doc, Operation: op, Document: doc, Source: docPath}, nil
}

func openRemoteHost(ctx context.Context, cfg *config.Config, action string) (*hostSession, error) {
	client, err := hostrpc.Dial(ctx, cfg.Host.Addr, hostrpc.ClientOptions{
		CallTimeout:      cfg.Host.CallTimeout,
		ApplyTimeout:     cfg.Host.ApplyTimeout,
		SkipVersionCheck: cfg.Host.SkipVersionCheck,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	info := client.Info()
	if len(info.Actions) > 0 && !slices.Contains(info.Actions, action) {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %q (offered: %s)", errUnknownAction, action, strings.Join(info.Actions, ", "))
	}

	logger.Info().Ctx(ctx).
		Str("addr", cfg.Host.Addr).
		Str("host", info.Name).
		Str("protocol", info.ProtocolVersion).
		Msg("connected to remote host")
	return &hostSession{
		Host:      client,
		Operation: client.Operation(action),
		Source:    cfg.Host.Addr,
		close:     client.Close,
	}, nil
}

package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/rshade/varbatch/internal/hostapi"
)

// Built-in action names.
const (
	ActionSetVar = "setvar"
	ActionExec   = "exec"
	ActionUpper  = "upper"
	ActionLower  = "lower"
	ActionTrim   = "trim"
)

// Defaults for operation arguments.
const (
	DefaultVariablePrefix = "Variable"
	DefaultExecTimeout    = 30 * time.Second
)

// ErrNoCommand is returned when exec is requested without a command.
var ErrNoCommand = errors.New("exec action requires a command")

// Args parameterize the built-in operations.
type Args struct {
	// VariablePrefix names variables created by setvar.
	VariablePrefix string
	// Command is the argv run by exec; the item text is written to its stdin.
	Command []string
	// Timeout bounds one exec invocation.
	Timeout time.Duration
}

// Factory builds an operation bound to a document.
type Factory func(d *Document, args Args) (hostapi.Operation, error)

var registry = map[string]Factory{
	ActionSetVar: newSetVar,
	ActionExec:   newExec,
	ActionUpper:  textOp(ActionUpper, strings.ToUpper),
	ActionLower:  textOp(ActionLower, strings.ToLower),
	ActionTrim:   textOp(ActionTrim, strings.TrimSpace),
}

// Actions returns the registered action names, sorted.
func Actions() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewOperation builds the named action for d.
func NewOperation(name string, d *Document, args Args) (hostapi.Operation, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)",
			hostapi.ErrUnknownOperation, name, strings.Join(Actions(), ", "))
	}
	return f(d, args)
}

// requireSelected mirrors an editor action that works on the active selection.
func requireSelected(d *Document, item hostapi.Item) error {
	if !d.IsSelected(item.ID()) {
		return fmt.Errorf("%q: %w", item.ID(), ErrNotSelected)
	}
	return nil
}

func newSetVar(d *Document, args Args) (hostapi.Operation, error) {
	prefix := args.VariablePrefix
	if prefix == "" {
		prefix = DefaultVariablePrefix
	}
	return hostapi.OperationFunc{OpName: ActionSetVar, Fn: func(_ context.Context, item hostapi.Item) error {
		if err := requireSelected(d, item); err != nil {
			return err
		}
		_, err := d.BindVariable(item.ID(), prefix)
		return err
	}}, nil
}

func textOp(name string, fn func(string) string) Factory {
	return func(d *Document, _ Args) (hostapi.Operation, error) {
		return hostapi.OperationFunc{OpName: name, Fn: func(_ context.Context, item hostapi.Item) error {
			if err := requireSelected(d, item); err != nil {
				return err
			}
			o, err := d.Object(item.ID())
			if err != nil {
				return err
			}
			return d.SetText(item.ID(), fn(o.Text))
		}}, nil
	}
}

func newExec(d *Document, args Args) (hostapi.Operation, error) {
	if len(args.Command) == 0 || args.Command[0] == "" {
		return nil, ErrNoCommand
	}
	command := slices.Clone(args.Command)
	timeout := args.Timeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}

	return hostapi.OperationFunc{OpName: ActionExec, Fn: func(ctx context.Context, item hostapi.Item) error {
		if err := requireSelected(d, item); err != nil {
			return err
		}
		o, err := d.Object(item.ID())
		if err != nil {
			return err
		}
		if o.Kind != hostapi.KindText {
			return fmt.Errorf("%q (%s): %w", item.ID(), o.Kind, ErrNotText)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, command[0], command[1:]...)
		cmd.Stdin = strings.NewReader(o.Text)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err = cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("%s: %w: %s", command[0], err, msg)
			}
			return fmt.Errorf("%s: %w", command[0], err)
		}
		return d.SetText(item.ID(), strings.TrimRight(stdout.String(), "\r\n"))
	}}, nil
}

// Package adapters configures and starts the debug adapters the collector
// can speak to. Each adapter knows how to build its launch command, its DAP
// launch and attach request arguments, and whether it is reached over stdio
// or a socket.
package adapters

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"sort"
	"time"

	"github.com/dshills/debugctx/internal/backend"
	"github.com/dshills/debugctx/internal/collect"
)

// Kind identifies a debug adapter.
type Kind string

const (
	// KindDelve is the Go debugger.
	KindDelve Kind = "delve"
	// KindPython is debugpy.
	KindPython Kind = "python"
	// KindNode is the Node.js debug adapter.
	KindNode Kind = "node"
)

// Spec describes one debug target and how to reach its adapter.
type Spec struct {
	// Kind selects the adapter.
	Kind Kind

	// Command overrides the adapter executable. Empty means look up the
	// adapter's usual binary in PATH.
	Command string

	// CommandArgs are extra arguments appended to the adapter command.
	CommandArgs []string

	// Program is the program to debug. Required for launch.
	Program string

	// ProgramArgs are the debuggee's arguments.
	ProgramArgs []string

	// Cwd is the debuggee working directory.
	Cwd string

	// Env is extra environment for the debuggee.
	Env map[string]string

	// StopOnEntry pauses at the program entry point.
	StopOnEntry bool

	// Host and Port select a running adapter to connect to. Port 0 means
	// launch a fresh adapter over stdio.
	Host string
	Port int

	// ProcessID selects a running process to attach to instead of
	// launching Program.
	ProcessID int
}

// address returns the socket address for a remote adapter.
func (s Spec) address() string {
	host := s.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("%s:%d", host, s.Port)
}

// Adapter builds the pieces needed to start one kind of debug session.
type Adapter interface {
	// Kind returns the adapter kind.
	Kind() Kind

	// Validate checks the spec for this adapter.
	Validate() error

	// Command returns the command that starts the adapter, or nil when
	// the spec points at an already running adapter.
	Command() (*exec.Cmd, error)

	// LaunchArguments returns the DAP launch request arguments.
	LaunchArguments() (any, error)

	// AttachArguments returns the DAP attach request arguments.
	AttachArguments() (any, error)

	// Address returns the socket address to dial, or empty for stdio.
	Address() string
}

// Factory builds an adapter from a spec.
type Factory func(Spec) (Adapter, error)

// Registry maps adapter kinds to factories.
type Registry struct {
	factories map[Kind]Factory
}

// NewRegistry returns a registry seeded with the built-in adapters.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[Kind]Factory)}
	r.Register(KindDelve, NewDelve)
	r.Register(KindPython, NewPython)
	r.Register(KindNode, NewNode)
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(kind Kind, factory Factory) {
	r.factories[kind] = factory
}

// Create builds and validates the adapter for spec.
func (r *Registry) Create(spec Spec) (Adapter, error) {
	factory, ok := r.factories[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown adapter kind %q", spec.Kind)
	}

	adapter, err := factory(spec)
	if err != nil {
		return nil, err
	}
	if err := adapter.Validate(); err != nil {
		return nil, fmt.Errorf("%s adapter: %w", spec.Kind, err)
	}
	return adapter, nil
}

// Kinds returns the registered adapter kinds, sorted.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// DetectKind picks the adapter for a source file by its language.
func DetectKind(path string) (Kind, bool) {
	switch collect.LanguageHint(path) {
	case "go":
		return KindDelve, true
	case "python":
		return KindPython, true
	case "javascript":
		return KindNode, true
	default:
		return "", false
	}
}

// lookPath resolves name in PATH.
func lookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return path, nil
}

// WaitForReady polls address until it accepts a TCP connection or the
// context expires.
func WaitForReady(ctx context.Context, address string) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("adapter at %s never became ready: %w", address, ctx.Err())
		case <-ticker.C:
			conn, err := net.DialTimeout("tcp", address, 50*time.Millisecond)
			if err == nil {
				conn.Close()
				return nil
			}
		}
	}
}

// Start launches or dials the adapter and returns a session over it. Socket
// adapters started here are polled until ready before dialing.
func Start(ctx context.Context, adapter Adapter) (*backend.Session, error) {
	cmd, err := adapter.Command()
	if err != nil {
		return nil, err
	}

	address := adapter.Address()
	if address == "" {
		if cmd == nil {
			return nil, fmt.Errorf("%s adapter has neither a command nor an address", adapter.Kind())
		}
		session, err := backend.NewStdioSessionCmd(cmd)
		if err != nil {
			return nil, fmt.Errorf("start %s adapter: %w", adapter.Kind(), err)
		}
		return session, nil
	}

	if cmd != nil {
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start %s adapter: %w", adapter.Kind(), err)
		}
		if err := WaitForReady(ctx, address); err != nil {
			return nil, err
		}
	}

	session, err := backend.NewSocketSession(address)
	if err != nil {
		return nil, fmt.Errorf("dial %s adapter: %w", adapter.Kind(), err)
	}
	return session, nil
}

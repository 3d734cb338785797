// Package backend connects the context collection engine to a live debug
// adapter. A Session drives the DAP lifecycle; its stopped state exposes the
// paused program through the collect package's backend interfaces.
package backend

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/dshills/debugctx/internal/backend/dap"
)

// SessionState represents the lifecycle state of a debug session.
type SessionState int

const (
	// StateConnected is after the transport is established.
	StateConnected SessionState = iota
	// StateConfiguring is after initialize but before configurationDone.
	StateConfiguring
	// StateRunning is when the debuggee is running.
	StateRunning
	// StateStopped is when the debuggee is paused.
	StateStopped
	// StateTerminated is when the debuggee has exited.
	StateTerminated
	// StateDisconnected is when the adapter connection is gone.
	StateDisconnected
)

// String returns a string representation of the state.
func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateConfiguring:
		return "configuring"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateTerminated:
		return "terminated"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// SessionHandlers contains callbacks for session events. Callbacks run on
// the client's receive goroutine and must not block.
type SessionHandlers struct {
	// OnStateChanged is called when the session state changes.
	OnStateChanged func(old, new SessionState)

	// OnStopped is called when the debuggee pauses. reason follows the DAP
	// stopped event: "breakpoint", "exception", "step", "pause", "entry".
	OnStopped func(reason string, threadID int)

	// OnOutput is called when the debuggee produces output.
	OnOutput func(category, output string)

	// OnTerminated is called when the debuggee terminates.
	OnTerminated func()
}

// SessionConfig configures session initialization.
type SessionConfig struct {
	// AdapterID is the debug adapter identifier.
	AdapterID string

	// ClientID and ClientName identify this client to the adapter.
	ClientID   string
	ClientName string
}

// DefaultSessionConfig returns the default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		AdapterID:  "generic",
		ClientID:   "debugctx",
		ClientName: "debugctx collector",
	}
}

// Session is one connection to a debug adapter.
type Session struct {
	client       *dap.Client
	capabilities *dap.Capabilities

	mu            sync.RWMutex
	state         SessionState
	stoppedThread int
	stopReason    string

	handlerMu sync.RWMutex
	handlers  SessionHandlers
}

// NewSession creates a session over an established client.
func NewSession(client *dap.Client) *Session {
	s := &Session{
		client: client,
		state:  StateConnected,
	}

	client.OnStopped(s.onStopped)
	client.OnContinued(s.onContinued)
	client.OnExited(func(dap.ExitedEventBody) {})
	client.OnTerminated(s.onTerminated)
	client.OnOutput(s.onOutput)

	return s
}

// NewStdioSession launches an adapter subprocess and speaks DAP over its
// pipes.
func NewStdioSession(command string, args ...string) (*Session, error) {
	return NewStdioSessionCmd(exec.Command(command, args...))
}

// NewStdioSessionCmd speaks DAP over the pipes of a prepared command. The
// transport starts the command.
func NewStdioSessionCmd(cmd *exec.Cmd) (*Session, error) {
	transport, err := dap.NewStdioTransport(cmd)
	if err != nil {
		return nil, fmt.Errorf("create stdio transport: %w", err)
	}
	return NewSession(dap.NewClient(transport)), nil
}

// NewSocketSession connects to a running adapter at address.
func NewSocketSession(address string) (*Session, error) {
	transport, err := dap.NewSocketTransport(address)
	if err != nil {
		return nil, fmt.Errorf("create socket transport: %w", err)
	}
	return NewSession(dap.NewClient(transport)), nil
}

// SetHandlers sets the session event handlers.
func (s *Session) SetHandlers(handlers SessionHandlers) {
	s.handlerMu.Lock()
	s.handlers = handlers
	s.handlerMu.Unlock()
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// setState updates the state and notifies the handler.
func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	old := s.state
	s.state = state
	s.mu.Unlock()

	s.handlerMu.RLock()
	handler := s.handlers.OnStateChanged
	s.handlerMu.RUnlock()

	if handler != nil && old != state {
		handler(old, state)
	}
}

// Capabilities returns the adapter capabilities reported by initialize.
func (s *Session) Capabilities() *dap.Capabilities {
	return s.capabilities
}

// StoppedThread returns the thread that triggered the current stop. ok is
// false when the session is not stopped.
func (s *Session) StoppedThread() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stoppedThread, s.state == StateStopped
}

// StopReason returns the DAP reason for the current stop.
func (s *Session) StopReason() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopReason
}

// Initialize performs the initialize handshake.
func (s *Session) Initialize(ctx context.Context, config SessionConfig) error {
	caps, err := s.client.Initialize(ctx, dap.InitializeArguments{
		ClientID:             config.ClientID,
		ClientName:           config.ClientName,
		AdapterID:            config.AdapterID,
		LinesStartAt1:        true,
		ColumnsStartAt1:      true,
		PathFormat:           "path",
		SupportsVariableType: true,
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	s.capabilities = caps
	s.setState(StateConfiguring)
	return nil
}

// ConfigurationDone completes configuration. Adapters that do not support
// the request skip it.
func (s *Session) ConfigurationDone(ctx context.Context) error {
	if s.capabilities != nil && !s.capabilities.SupportsConfigurationDoneRequest {
		s.setState(StateRunning)
		return nil
	}

	if err := s.client.ConfigurationDone(ctx); err != nil {
		return fmt.Errorf("configurationDone: %w", err)
	}

	s.setState(StateRunning)
	return nil
}

// Launch starts the debuggee with adapter-specific arguments.
func (s *Session) Launch(ctx context.Context, launchArgs any) error {
	if err := s.client.Launch(ctx, launchArgs); err != nil {
		return fmt.Errorf("launch: %w", err)
	}
	return nil
}

// Attach attaches to a running debuggee.
func (s *Session) Attach(ctx context.Context, attachArgs any) error {
	if err := s.client.Attach(ctx, attachArgs); err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	return nil
}

// Continue resumes the stopped thread.
func (s *Session) Continue(ctx context.Context) error {
	thread, ok := s.StoppedThread()
	if !ok {
		return fmt.Errorf("continue: session is not stopped")
	}

	if err := s.client.Continue(ctx, dap.ContinueArguments{ThreadID: thread}); err != nil {
		return err
	}

	s.setState(StateRunning)
	return nil
}

// ExceptionInfo fetches the adapter's exception details for the stopped
// thread, when the adapter supports the request.
func (s *Session) ExceptionInfo(ctx context.Context) (*dap.ExceptionInfoResponseBody, error) {
	if s.capabilities == nil || !s.capabilities.SupportsExceptionInfoRequest {
		return nil, fmt.Errorf("adapter does not support exceptionInfo")
	}

	thread, ok := s.StoppedThread()
	if !ok {
		return nil, fmt.Errorf("exceptionInfo: session is not stopped")
	}

	return s.client.ExceptionInfo(ctx, dap.ExceptionInfoArguments{ThreadID: thread})
}

// Disconnect ends the session, optionally terminating the debuggee.
func (s *Session) Disconnect(ctx context.Context, terminate bool) error {
	err := s.client.Disconnect(ctx, dap.DisconnectArguments{TerminateDebuggee: terminate})
	s.setState(StateDisconnected)
	return err
}

// Close shuts down the session and the adapter connection.
func (s *Session) Close() error {
	s.setState(StateDisconnected)
	return s.client.Close()
}

func (s *Session) onStopped(body dap.StoppedEventBody) {
	s.mu.Lock()
	s.stoppedThread = body.ThreadID
	s.stopReason = body.Reason
	s.mu.Unlock()

	s.setState(StateStopped)

	s.handlerMu.RLock()
	handler := s.handlers.OnStopped
	s.handlerMu.RUnlock()
	if handler != nil {
		handler(body.Reason, body.ThreadID)
	}
}

func (s *Session) onContinued(dap.ContinuedEventBody) {
	s.setState(StateRunning)
}

func (s *Session) onTerminated() {
	s.setState(StateTerminated)

	s.handlerMu.RLock()
	handler := s.handlers.OnTerminated
	s.handlerMu.RUnlock()
	if handler != nil {
		handler()
	}
}

func (s *Session) onOutput(body dap.OutputEventBody) {
	s.handlerMu.RLock()
	handler := s.handlers.OnOutput
	s.handlerMu.RUnlock()
	if handler != nil {
		handler(body.Category, body.Output)
	}
}

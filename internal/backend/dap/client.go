package dap

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

// Client is a DAP client for one adapter connection.
type Client struct {
	transport Transport
	seq       int64

	pendingMu sync.Mutex
	pending   map[int]*pendingRequest

	handlerMu sync.RWMutex
	handlers  eventHandlers

	done      chan struct{}
	closeOnce sync.Once

	errMu sync.RWMutex
	err   error
}

// pendingRequest tracks a request awaiting its response.
type pendingRequest struct {
	done      chan struct{}
	closeOnce sync.Once
	response  *Response
	err       error
}

func (p *pendingRequest) close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

// eventHandlers stores the registered event callbacks.
type eventHandlers struct {
	onInitialized func()
	onStopped     func(StoppedEventBody)
	onContinued   func(ContinuedEventBody)
	onExited      func(ExitedEventBody)
	onTerminated  func()
	onOutput      func(OutputEventBody)
}

// NewClient creates a client over the transport and starts its receive loop.
func NewClient(transport Transport) *Client {
	c := &Client{
		transport: transport,
		pending:   make(map[int]*pendingRequest),
		done:      make(chan struct{}),
	}
	go c.receiveLoop()
	return c
}

// Close shuts down the client and the transport.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return c.transport.Close()
}

// Err returns the receive error that ended the connection, if any.
func (c *Client) Err() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.err
}

// receiveLoop reads messages until the transport fails or the client closes.
func (c *Client) receiveLoop() {
	for {
		content, err := c.transport.Receive()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}

			c.errMu.Lock()
			c.err = err
			c.errMu.Unlock()

			c.failPending(err)
			return
		}

		select {
		case <-c.done:
			return
		default:
		}

		c.dispatch(content)
	}
}

// failPending cancels every in-flight request with err.
func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	for _, req := range c.pending {
		req.err = err
		req.close()
	}
	c.pending = make(map[int]*pendingRequest)
	c.pendingMu.Unlock()
}

// dispatch routes a received message to the pending table or event handlers.
func (c *Client) dispatch(content []byte) {
	var base ProtocolMessage
	if err := json.Unmarshal(content, &base); err != nil {
		return
	}

	switch base.Type {
	case "response":
		var resp Response
		if err := json.Unmarshal(content, &resp); err != nil {
			return
		}
		c.resolve(&resp)

	case "event":
		var evt Event
		if err := json.Unmarshal(content, &evt); err != nil {
			return
		}
		c.handleEvent(evt)
	}
}

// resolve completes the pending request matching the response.
func (c *Client) resolve(resp *Response) {
	c.pendingMu.Lock()
	req, ok := c.pending[resp.RequestSeq]
	if ok {
		delete(c.pending, resp.RequestSeq)
	}
	c.pendingMu.Unlock()

	if ok {
		req.response = resp
		req.close()
	}
}

// handleEvent invokes the registered handler for an event.
func (c *Client) handleEvent(evt Event) {
	c.handlerMu.RLock()
	handlers := c.handlers
	c.handlerMu.RUnlock()

	switch evt.Event {
	case "initialized":
		if handlers.onInitialized != nil {
			handlers.onInitialized()
		}
	case "stopped":
		if handlers.onStopped != nil {
			var body StoppedEventBody
			if err := json.Unmarshal(evt.Body, &body); err == nil {
				handlers.onStopped(body)
			}
		}
	case "continued":
		if handlers.onContinued != nil {
			var body ContinuedEventBody
			if err := json.Unmarshal(evt.Body, &body); err == nil {
				handlers.onContinued(body)
			}
		}
	case "exited":
		if handlers.onExited != nil {
			var body ExitedEventBody
			if err := json.Unmarshal(evt.Body, &body); err == nil {
				handlers.onExited(body)
			}
		}
	case "terminated":
		if handlers.onTerminated != nil {
			handlers.onTerminated()
		}
	case "output":
		if handlers.onOutput != nil {
			var body OutputEventBody
			if err := json.Unmarshal(evt.Body, &body); err == nil {
				handlers.onOutput(body)
			}
		}
	}
}

// OnInitialized sets the handler for the initialized event.
func (c *Client) OnInitialized(handler func()) {
	c.handlerMu.Lock()
	c.handlers.onInitialized = handler
	c.handlerMu.Unlock()
}

// OnStopped sets the handler for the stopped event.
func (c *Client) OnStopped(handler func(StoppedEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onStopped = handler
	c.handlerMu.Unlock()
}

// OnContinued sets the handler for the continued event.
func (c *Client) OnContinued(handler func(ContinuedEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onContinued = handler
	c.handlerMu.Unlock()
}

// OnExited sets the handler for the exited event.
func (c *Client) OnExited(handler func(ExitedEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onExited = handler
	c.handlerMu.Unlock()
}

// OnTerminated sets the handler for the terminated event.
func (c *Client) OnTerminated(handler func()) {
	c.handlerMu.Lock()
	c.handlers.onTerminated = handler
	c.handlerMu.Unlock()
}

// OnOutput sets the handler for the output event.
func (c *Client) OnOutput(handler func(OutputEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onOutput = handler
	c.handlerMu.Unlock()
}

// sendRequest sends a request and blocks until its response, a transport
// failure, or context cancellation.
func (c *Client) sendRequest(ctx context.Context, command string, args any) (*Response, error) {
	seq := int(atomic.AddInt64(&c.seq, 1))

	var argsJSON json.RawMessage
	if args != nil {
		var err error
		argsJSON, err = json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("marshal arguments: %w", err)
		}
	}

	content, err := json.Marshal(Request{
		ProtocolMessage: ProtocolMessage{Seq: seq, Type: "request"},
		Command:         command,
		Arguments:       argsJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	pending := &pendingRequest{done: make(chan struct{})}
	c.pendingMu.Lock()
	c.pending[seq] = pending
	c.pendingMu.Unlock()

	if err := c.transport.Send(content); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, seq)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("send %s: %w", command, err)
	}

	select {
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, seq)
		c.pendingMu.Unlock()
		return nil, ctx.Err()
	case <-pending.done:
		if pending.err != nil {
			return nil, pending.err
		}
		return pending.response, nil
	}
}

// request sends a command and decodes the successful response body into out.
// A nil out discards the body.
func (c *Client) request(ctx context.Context, command string, args, out any) error {
	resp, err := c.sendRequest(ctx, command, args)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s failed: %s", command, resp.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("unmarshal %s response: %w", command, err)
	}
	return nil
}

// Initialize sends the initialize request and returns the adapter's
// capabilities.
func (c *Client) Initialize(ctx context.Context, args InitializeArguments) (*Capabilities, error) {
	var caps Capabilities
	if err := c.request(ctx, "initialize", args, &caps); err != nil {
		return nil, err
	}
	return &caps, nil
}

// ConfigurationDone sends the configurationDone request.
func (c *Client) ConfigurationDone(ctx context.Context) error {
	return c.request(ctx, "configurationDone", nil, nil)
}

// Launch sends the launch request with adapter-specific arguments.
func (c *Client) Launch(ctx context.Context, args any) error {
	return c.request(ctx, "launch", args, nil)
}

// Attach sends the attach request with adapter-specific arguments.
func (c *Client) Attach(ctx context.Context, args any) error {
	return c.request(ctx, "attach", args, nil)
}

// Disconnect sends the disconnect request.
func (c *Client) Disconnect(ctx context.Context, args DisconnectArguments) error {
	return c.request(ctx, "disconnect", args, nil)
}

// Continue resumes the given thread.
func (c *Client) Continue(ctx context.Context, args ContinueArguments) error {
	return c.request(ctx, "continue", args, nil)
}

// Threads lists the debuggee's threads.
func (c *Client) Threads(ctx context.Context) ([]Thread, error) {
	var body ThreadsResponseBody
	if err := c.request(ctx, "threads", nil, &body); err != nil {
		return nil, err
	}
	return body.Threads, nil
}

// StackTrace lists a thread's stack frames.
func (c *Client) StackTrace(ctx context.Context, args StackTraceArguments) (*StackTraceResponseBody, error) {
	var body StackTraceResponseBody
	if err := c.request(ctx, "stackTrace", args, &body); err != nil {
		return nil, err
	}
	return &body, nil
}

// Scopes lists a frame's variable scopes.
func (c *Client) Scopes(ctx context.Context, args ScopesArguments) ([]Scope, error) {
	var body ScopesResponseBody
	if err := c.request(ctx, "scopes", args, &body); err != nil {
		return nil, err
	}
	return body.Scopes, nil
}

// Variables lists the children of a variables reference.
func (c *Client) Variables(ctx context.Context, args VariablesArguments) ([]Variable, error) {
	var body VariablesResponseBody
	if err := c.request(ctx, "variables", args, &body); err != nil {
		return nil, err
	}
	return body.Variables, nil
}

// ExceptionInfo fetches details about the exception that stopped a thread.
func (c *Client) ExceptionInfo(ctx context.Context, args ExceptionInfoArguments) (*ExceptionInfoResponseBody, error) {
	var body ExceptionInfoResponseBody
	if err := c.request(ctx, "exceptionInfo", args, &body); err != nil {
		return nil, err
	}
	return &body, nil
}

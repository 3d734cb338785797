// Package dap implements the slice of the Debug Adapter Protocol that
// context collection needs: session setup, stack, scope and variable
// inspection, and exception info.
package dap

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// maxContentLength bounds a single DAP message (10MB).
const maxContentLength = 10 * 1024 * 1024

// Transport moves framed DAP payloads to and from a debug adapter.
type Transport interface {
	// Send writes one JSON payload with its Content-Length header.
	Send(content []byte) error

	// Receive reads the next JSON payload.
	Receive() ([]byte, error)

	// Close shuts down the connection.
	Close() error
}

// StdioTransport frames messages over the stdin/stdout of an adapter
// subprocess.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewStdioTransport starts cmd and speaks DAP over its pipes.
func NewStdioTransport(cmd *exec.Cmd) (*StdioTransport, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("get stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("start adapter: %w", err)
	}

	return &StdioTransport{
		cmd:    cmd,
		stdin:  stdin,
		reader: bufio.NewReader(stdout),
	}, nil
}

// Send writes one framed message.
func (t *StdioTransport) Send(content []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return writeFrame(t.stdin, content)
}

// Receive reads the next framed message.
func (t *StdioTransport) Receive() ([]byte, error) {
	return readFrame(t.reader)
}

// Close terminates the adapter process.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stdin.Close()
	if t.cmd.Process != nil {
		t.cmd.Process.Kill()
	}
	return t.cmd.Wait()
}

// SocketTransport frames messages over a TCP connection to a running
// adapter.
type SocketTransport struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewSocketTransport dials the adapter at address.
func NewSocketTransport(address string) (*SocketTransport, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return NewSocketTransportFromConn(conn), nil
}

// NewSocketTransportFromConn wraps an existing connection.
func NewSocketTransportFromConn(conn net.Conn) *SocketTransport {
	return &SocketTransport{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// Send writes one framed message.
func (t *SocketTransport) Send(content []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return writeFrame(t.conn, content)
}

// Receive reads the next framed message.
func (t *SocketTransport) Receive() ([]byte, error) {
	return readFrame(t.reader)
}

// Close closes the connection.
func (t *SocketTransport) Close() error {
	return t.conn.Close()
}

// PipeTransport frames messages over any ReadWriteCloser. It exists for
// in-process adapters and tests.
type PipeTransport struct {
	rwc    io.ReadWriteCloser
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewPipeTransport wraps rwc as a transport.
func NewPipeTransport(rwc io.ReadWriteCloser) *PipeTransport {
	return &PipeTransport{
		rwc:    rwc,
		reader: bufio.NewReader(rwc),
	}
}

// Send writes one framed message.
func (t *PipeTransport) Send(content []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return writeFrame(t.rwc, content)
}

// Receive reads the next framed message.
func (t *PipeTransport) Receive() ([]byte, error) {
	return readFrame(t.reader)
}

// Close closes the underlying pipe.
func (t *PipeTransport) Close() error {
	return t.rwc.Close()
}

// writeFrame writes the Content-Length header and payload.
func writeFrame(w io.Writer, content []byte) error {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(content))
	if _, err := w.Write([]byte(header)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	return nil
}

// readFrame reads headers until the blank line, then the payload.
func readFrame(r *bufio.Reader) ([]byte, error) {
	contentLength := -1

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, fmt.Errorf("invalid header: %s", line)
		}

		if strings.EqualFold(name, "Content-Length") {
			length, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid content-length: %w", err)
			}
			if length < 0 || length > maxContentLength {
				return nil, fmt.Errorf("content-length %d out of range", length)
			}
			contentLength = length
		}
	}

	if contentLength < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	content := make([]byte, contentLength)
	if _, err := io.ReadFull(r, content); err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return content, nil
}

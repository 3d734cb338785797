package adapters

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// Node drives JavaScript programs through the vscode js-debug DAP server.
// js-debug only serves over a socket, so the spec must carry a port and the
// path to its dapDebugServer.js as the command.
type Node struct {
	spec Spec
}

// NewNode creates a js-debug adapter.
func NewNode(spec Spec) (Adapter, error) {
	return &Node{spec: spec}, nil
}

// Kind returns KindNode.
func (a *Node) Kind() Kind {
	return KindNode
}

// Validate checks the socket requirement and that the spec names something
// to debug.
func (a *Node) Validate() error {
	if a.spec.Port == 0 {
		return fmt.Errorf("a port is required, js-debug does not speak stdio")
	}
	if a.spec.Program == "" && a.spec.ProcessID == 0 && a.spec.Command == "" {
		return fmt.Errorf("program or process id is required")
	}
	return nil
}

// Command builds the js-debug server command. Without a command path the
// spec points at an already running server and yields nil.
func (a *Node) Command() (*exec.Cmd, error) {
	if a.spec.Command == "" {
		return nil, nil
	}

	node, err := lookPath("node")
	if err != nil {
		return nil, fmt.Errorf("node not found: %w", err)
	}

	host := a.spec.Host
	if host == "" {
		host = "127.0.0.1"
	}
	args := []string{a.spec.Command, strconv.Itoa(a.spec.Port), host}
	args = append(args, a.spec.CommandArgs...)

	cmd := exec.Command(node, args...)
	if a.spec.Cwd != "" {
		cmd.Dir = a.spec.Cwd
	}
	cmd.Env = os.Environ()
	for k, v := range a.spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	return cmd, nil
}

// LaunchArguments returns the js-debug launch request body.
func (a *Node) LaunchArguments() (any, error) {
	if a.spec.Program == "" {
		return nil, fmt.Errorf("program is required for launch")
	}

	args := map[string]any{
		"type":        "pwa-node",
		"request":     "launch",
		"name":        "debugctx",
		"program":     a.spec.Program,
		"stopOnEntry": a.spec.StopOnEntry,
	}
	if len(a.spec.ProgramArgs) > 0 {
		args["args"] = a.spec.ProgramArgs
	}
	if a.spec.Cwd != "" {
		args["cwd"] = a.spec.Cwd
	}
	if len(a.spec.Env) > 0 {
		args["env"] = a.spec.Env
	}
	return args, nil
}

// AttachArguments returns the js-debug attach request body.
func (a *Node) AttachArguments() (any, error) {
	if a.spec.ProcessID == 0 {
		return nil, fmt.Errorf("process id is required for attach")
	}

	return map[string]any{
		"type":      "pwa-node",
		"request":   "attach",
		"name":      "debugctx",
		"processId": strconv.Itoa(a.spec.ProcessID),
	}, nil
}

// Address returns the js-debug server address.
func (a *Node) Address() string {
	return a.spec.address()
}

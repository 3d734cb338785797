package adapters

import (
	"fmt"
	"os"
	"os/exec"
)

// delveStackDepth caps how many frames delve reports per stackTrace request.
const delveStackDepth = 50

// Delve drives Go programs through dlv's native DAP server.
type Delve struct {
	spec Spec
}

// NewDelve creates a delve adapter.
func NewDelve(spec Spec) (Adapter, error) {
	return &Delve{spec: spec}, nil
}

// Kind returns KindDelve.
func (a *Delve) Kind() Kind {
	return KindDelve
}

// Validate checks that the spec names something to debug.
func (a *Delve) Validate() error {
	if a.spec.Program == "" && a.spec.ProcessID == 0 && a.spec.Port == 0 {
		return fmt.Errorf("program, process id or port is required")
	}
	return nil
}

// Command builds the dlv dap command. A spec with a port but no command
// points at an already running server and yields nil.
func (a *Delve) Command() (*exec.Cmd, error) {
	if a.spec.Port > 0 && a.spec.Command == "" {
		return nil, nil
	}

	dlv := a.spec.Command
	if dlv == "" {
		var err error
		dlv, err = lookPath("dlv")
		if err != nil {
			return nil, fmt.Errorf("delve not found: %w", err)
		}
	}

	args := []string{"dap"}
	if a.spec.Port > 0 {
		args = append(args, "--listen", a.spec.address())
	}
	args = append(args, a.spec.CommandArgs...)

	cmd := exec.Command(dlv, args...)
	if a.spec.Cwd != "" {
		cmd.Dir = a.spec.Cwd
	}
	cmd.Env = os.Environ()
	for k, v := range a.spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	return cmd, nil
}

// LaunchArguments returns the dlv-dap launch request body.
func (a *Delve) LaunchArguments() (any, error) {
	if a.spec.Program == "" {
		return nil, fmt.Errorf("program is required for launch")
	}

	args := map[string]any{
		"mode":            "debug",
		"program":         a.spec.Program,
		"stopOnEntry":     a.spec.StopOnEntry,
		"stackTraceDepth": delveStackDepth,
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

// AttachArguments returns the dlv-dap attach request body.
func (a *Delve) AttachArguments() (any, error) {
	if a.spec.ProcessID == 0 {
		return nil, fmt.Errorf("process id is required for attach")
	}

	return map[string]any{
		"mode":            "local",
		"processId":       a.spec.ProcessID,
		"stopOnEntry":     a.spec.StopOnEntry,
		"stackTraceDepth": delveStackDepth,
	}, nil
}

// Address returns the dlv server address, or empty for stdio.
func (a *Delve) Address() string {
	if a.spec.Port > 0 {
		return a.spec.address()
	}
	return ""
}

package adapters

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// Python drives Python programs through the debugpy adapter.
type Python struct {
	spec Spec
}

// NewPython creates a debugpy adapter.
func NewPython(spec Spec) (Adapter, error) {
	return &Python{spec: spec}, nil
}

// Kind returns KindPython.
func (a *Python) Kind() Kind {
	return KindPython
}

// Validate checks that the spec names something to debug.
func (a *Python) Validate() error {
	if a.spec.Program == "" && a.spec.ProcessID == 0 && a.spec.Port == 0 {
		return fmt.Errorf("program, process id or port is required")
	}
	return nil
}

// Command builds the debugpy adapter command. A spec with a port but no
// command points at an already running adapter and yields nil.
func (a *Python) Command() (*exec.Cmd, error) {
	if a.spec.Port > 0 && a.spec.Command == "" {
		return nil, nil
	}

	python := a.spec.Command
	if python == "" {
		var err error
		python, err = lookPath("python3")
		if err != nil {
			python, err = lookPath("python")
		}
		if err != nil {
			return nil, fmt.Errorf("python not found: %w", err)
		}
	}

	args := []string{"-m", "debugpy.adapter"}
	if a.spec.Port > 0 {
		host := a.spec.Host
		if host == "" {
			host = "127.0.0.1"
		}
		args = append(args, "--host", host, "--port", strconv.Itoa(a.spec.Port))
	}
	args = append(args, a.spec.CommandArgs...)

	cmd := exec.Command(python, args...)
	if a.spec.Cwd != "" {
		cmd.Dir = a.spec.Cwd
	}
	cmd.Env = os.Environ()
	for k, v := range a.spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	return cmd, nil
}

// LaunchArguments returns the debugpy launch request body.
func (a *Python) LaunchArguments() (any, error) {
	if a.spec.Program == "" {
		return nil, fmt.Errorf("program is required for launch")
	}

	args := map[string]any{
		"program":     a.spec.Program,
		"stopOnEntry": a.spec.StopOnEntry,
		// Exceptions in forked workers are out of reach; keep the
		// session on the main process.
		"subProcess": false,
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

// AttachArguments returns the debugpy attach request body.
func (a *Python) AttachArguments() (any, error) {
	if a.spec.ProcessID > 0 {
		return map[string]any{"processId": a.spec.ProcessID}, nil
	}
	if a.spec.Port > 0 {
		host := a.spec.Host
		if host == "" {
			host = "127.0.0.1"
		}
		return map[string]any{
			"connect": map[string]any{"host": host, "port": a.spec.Port},
		}, nil
	}
	return nil, fmt.Errorf("process id or port is required for attach")
}

// Address returns the debugpy adapter address, or empty for stdio.
func (a *Python) Address() string {
	if a.spec.Port > 0 {
		return a.spec.address()
	}
	return ""
}

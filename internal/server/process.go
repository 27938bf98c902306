// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/EbramTawfik/mcp-evals/pkg/errors"
)

const (
	// defaultStartGrace is how long a freshly launched child gets to crash
	// before the launch is considered successful.
	defaultStartGrace = time.Second

	// captureLimit bounds how much child stdout/stderr is retained.
	captureLimit = 64 * 1024
)

// LaunchSpec is the command line that starts a server artifact.
type LaunchSpec struct {
	Command string
	Args    []string
}

// String renders the spec as a single shell-style line for error messages.
func (s LaunchSpec) String() string {
	if len(s.Args) == 0 {
		return s.Command
	}
	return s.Command + " " + strings.Join(s.Args, " ")
}

// launchTable maps each launchable runtime to its interpreter front-end.
// An empty Command means the artifact itself is the executable. The artifact
// path is appended after the template args, then any configured args.
var launchTable = map[ServerType]LaunchSpec{
	ServerTypeCSharpScript: {Command: "dotnet", Args: []string{"script"}},
	ServerTypeNode:         {Command: "node"},
	ServerTypePython:       {Command: "python"},
	ServerTypeExecutable:   {},
}

// BuildLaunchSpec builds the command line that launches a server artifact of
// the given runtime. Fails for runtimes with no launch-table entry.
func BuildLaunchSpec(serverType ServerType, path string, extraArgs []string) (LaunchSpec, error) {
	tmpl, ok := launchTable[serverType]
	if !ok {
		return LaunchSpec{}, &errors.InvalidConfigurationError{
			Field:      "server.path",
			Reason:     fmt.Sprintf("cannot determine how to launch %q (server type %q)", path, serverType),
			Suggestion: "Use a .csx, .js, .py, or .exe artifact, or include a runtime keyword (csx, node, dotnet, python) in the path",
		}
	}

	spec := LaunchSpec{Command: tmpl.Command}
	if spec.Command == "" {
		spec.Command = path
	} else {
		spec.Args = append(spec.Args, tmpl.Args...)
		spec.Args = append(spec.Args, path)
	}
	spec.Args = append(spec.Args, extraArgs...)
	return spec, nil
}

// boundedBuffer retains the first max bytes written and silently drops the
// rest. Safe for concurrent writes from the child's pipe pumps.
type boundedBuffer struct {
	mu  sync.Mutex
	max int
	buf bytes.Buffer
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if remaining := b.max - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Process is a harness-owned server child process.
type Process struct {
	cmd    *exec.Cmd
	spec   LaunchSpec
	stdout *boundedBuffer
	stderr *boundedBuffer

	// done closes when the child has been reaped by Wait.
	done chan struct{}
}

// Launcher starts server child processes.
type Launcher struct {
	// Grace is how long a fresh child gets to crash before the launch is
	// considered successful. Defaults to one second.
	Grace time.Duration

	// Logger is used for structured logging (optional).
	Logger *slog.Logger
}

// Start launches a server artifact and confirms it survived the grace
// window. The working directory is the artifact's containing directory so
// relative resource paths inside the server resolve; child stdout/stderr are
// captured rather than interleaved with the harness's own output.
func (l *Launcher) Start(ctx context.Context, serverType ServerType, path string, extraArgs []string, env []string) (*Process, error) {
	spec, err := BuildLaunchSpec(serverType, path, extraArgs)
	if err != nil {
		return nil, err
	}

	grace := l.Grace
	if grace <= 0 {
		grace = defaultStartGrace
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = filepath.Dir(path)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	p := &Process{
		cmd:    cmd,
		spec:   spec,
		stdout: &boundedBuffer{max: captureLimit},
		stderr: &boundedBuffer{max: captureLimit},
		done:   make(chan struct{}),
	}
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr

	if err := cmd.Start(); err != nil {
		return nil, &errors.ServerStartError{
			Command:  spec.String(),
			ExitCode: -1,
			Cause:    err,
		}
	}

	logger.Debug("server process launched",
		"command", spec.String(),
		"pid", cmd.Process.Pid,
		"dir", cmd.Dir,
	)

	go p.reap()

	// Fail fast if the child dies inside the grace window.
	select {
	case <-p.done:
		return nil, &errors.ServerStartError{
			Command:  spec.String(),
			ExitCode: p.ExitCode(),
			Stderr:   p.Stderr(),
		}
	case <-time.After(grace):
		return p, nil
	case <-ctx.Done():
		_ = p.Stop(0)
		return nil, ctx.Err()
	}
}

// reap waits for the child and releases its resources.
func (p *Process) reap() {
	_ = p.cmd.Wait()
	close(p.done)
}

// Command returns the launch command line, for error reporting.
func (p *Process) Command() string {
	return p.spec.String()
}

// PID returns the child's process ID.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Exited reports whether the child has terminated.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the child's exit code, or -1 if it is still running or
// was killed by a signal.
func (p *Process) ExitCode() int {
	if !p.Exited() {
		return -1
	}
	if state := p.cmd.ProcessState; state != nil {
		return state.ExitCode()
	}
	return -1
}

// Stdout returns the captured standard output so far.
func (p *Process) Stdout() string {
	return p.stdout.String()
}

// Stderr returns the captured standard error so far.
func (p *Process) Stderr() string {
	return p.stderr.String()
}

// Stop terminates the child: SIGTERM first, then SIGKILL once the grace
// period elapses. Blocks until the child has been reaped. Safe to call on an
// already-exited process.
func (p *Process) Stop(grace time.Duration) error {
	if p.Exited() {
		return nil
	}
	if p.cmd.Process == nil {
		return nil
	}

	_ = p.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
	}

	if err := p.cmd.Process.Kill(); err != nil && !p.Exited() {
		return fmt.Errorf("failed to kill server process %d: %w", p.PID(), err)
	}
	<-p.done
	return nil
}

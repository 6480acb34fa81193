package orchestrator

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Process is a child started by a Spawner.
type Process interface {
	PID() int
	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}
	// ExitCode is valid after Done is closed.
	ExitCode() int
	Terminate() error
	Kill() error
}

// SpawnSpec describes a child process to start.
type SpawnSpec struct {
	AppID string
	Path  string
	Args  []string
	Dir   string
	Env   []string
}

// Spawner starts child processes.
type Spawner interface {
	Spawn(spec SpawnSpec) (Process, error)
}

// RuntimeHandle is the orchestrator's record of a process it spawned.
type RuntimeHandle struct {
	AppID     string
	PID       int
	StartedAt time.Time
	Process   Process
}

// Alive reports whether the process has not exited yet.
func (h *RuntimeHandle) Alive() bool {
	select {
	case <-h.Process.Done():
		return false
	default:
		return true
	}
}

// ExecSpawner starts real OS processes. Child output is copied to Output
// with every line prefixed by the app id; a nil Output discards it.
type ExecSpawner struct {
	Output io.Writer
}

func (s *ExecSpawner) Spawn(spec SpawnSpec) (Process, error) {
	// Not CommandContext: the child must outlive the request that started it.
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdin = nil
	cmd.SysProcAttr = sysProcAttr()

	var out *prefixWriter
	if s.Output != nil {
		out = &prefixWriter{writer: s.Output, prefix: fmt.Sprintf("[%s] ", spec.AppID)}
		cmd.Stdout = out
		cmd.Stderr = out
		// Forked helpers may hold the pipes open after the child exits.
		cmd.WaitDelay = time.Second
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		cmd.Wait()
		if out != nil {
			out.Flush()
		}
		p.exitCode = cmd.ProcessState.ExitCode()
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	cmd      *exec.Cmd
	done     chan struct{}
	exitCode int
}

func (p *execProcess) PID() int              { return p.cmd.Process.Pid }
func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) ExitCode() int {
	<-p.done
	return p.exitCode
}

func (p *execProcess) Terminate() error {
	if p.exited() {
		return os.ErrProcessDone
	}
	return terminateProcess(p.cmd.Process)
}

func (p *execProcess) Kill() error {
	if p.exited() {
		return os.ErrProcessDone
	}
	return killProcess(p.cmd.Process)
}

func (p *execProcess) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// prefixWriter adds a prefix to each line written
type prefixWriter struct {
	mu     sync.Mutex
	writer io.Writer
	prefix string
	buffer []byte
}

func (pw *prefixWriter) Write(p []byte) (n int, err error) {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	pw.buffer = append(pw.buffer, p...)
	for {
		idx := bytes.IndexByte(pw.buffer, '\n')
		if idx < 0 {
			break
		}
		line := pw.prefix + string(pw.buffer[:idx+1])
		pw.writer.Write([]byte(line))
		pw.buffer = pw.buffer[idx+1:]
	}
	return len(p), nil
}

// Flush writes a trailing partial line, if any.
func (pw *prefixWriter) Flush() {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if len(pw.buffer) == 0 {
		return
	}
	pw.writer.Write([]byte(pw.prefix + string(pw.buffer) + "\n"))
	pw.buffer = nil
}

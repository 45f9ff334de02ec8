package runner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// process is one running instance of a tool.
//
// Input is written by a single goroutine in submission order, so a flush
// never blocks the caller while the tool is busy filling its output pipe.
// Output goes through an os.Pipe rather than cmd.StdoutPipe: Wait does
// not close it, and output buffered before the tool exits stays readable.
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File
	logger *slog.Logger

	done    chan struct{} // Closed when process exits
	exitErr error

	mu         sync.Mutex
	pending    [][]byte
	closeInput bool
	inputDone  bool
	writeErr   error
	wake       chan struct{}
	writerDone chan struct{}
}

func startProcess(executable string, args []string, dir string, env map[string]string, logger *slog.Logger) (*process, error) {
	path, err := exec.LookPath(executable)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", executable, err)
	}

	cmd := exec.Command(path, args...)
	cmd.Dir = dir

	// Own process group, so Kill also reaches anything the tool spawned.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if len(env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = &stderrLogger{logger: logger}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = pr.Close()
		_ = pw.Close()
		return nil, fmt.Errorf("start %s: %w", executable, err)
	}
	// The child holds its own copy of the write end.
	_ = pw.Close()

	p := &process{
		cmd:        cmd,
		stdin:      stdin,
		stdout:     pr,
		logger:     logger,
		done:       make(chan struct{}),
		wake:       make(chan struct{}, 1),
		writerDone: make(chan struct{}),
	}

	go p.waitForExit()
	go p.writeLoop()

	logger.Debug("tool process started",
		slog.String("path", path),
		slog.Int("pid", cmd.Process.Pid))
	return p, nil
}

// send queues data for the tool's input.
func (p *process) send(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	p.mu.Lock()
	if p.closeInput || p.inputDone {
		p.mu.Unlock()
		return ErrInputClosed
	}
	p.pending = append(p.pending, data)
	p.mu.Unlock()
	p.signal()
	return nil
}

// endInput closes the tool's input once everything queued is written.
func (p *process) endInput() {
	p.mu.Lock()
	p.closeInput = true
	p.mu.Unlock()
	p.signal()
}

func (p *process) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *process) writeLoop() {
	defer close(p.writerDone)
	defer func() {
		_ = p.stdin.Close()
		p.mu.Lock()
		p.inputDone = true
		p.pending = nil
		p.mu.Unlock()
	}()

	for {
		p.mu.Lock()
		chunks := p.pending
		p.pending = nil
		closeInput := p.closeInput
		p.mu.Unlock()

		for _, chunk := range chunks {
			if _, err := p.stdin.Write(chunk); err != nil {
				p.mu.Lock()
				p.writeErr = err
				p.mu.Unlock()
				p.logger.Warn("write to tool input failed", slog.Any("error", err))
				return
			}
		}
		if len(chunks) > 0 {
			continue
		}
		if closeInput {
			return
		}

		select {
		case <-p.wake:
		case <-p.done:
			return
		}
	}
}

// writing reports whether input is queued but not yet written.
func (p *process) writing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending) > 0
}

func (p *process) waitForExit() {
	err := p.cmd.Wait()
	p.exitErr = err
	close(p.done)
	if err != nil {
		p.logger.Debug("tool process exited", slog.Any("error", err))
	} else {
		p.logger.Debug("tool process exited")
	}
}

// kill terminates the whole process group.
func (p *process) kill() {
	if p.cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		_ = p.cmd.Process.Kill()
	}
}

// stop ends input, lets drain consume the remaining output, and kills the
// process group if it does not exit within timeout.
func (p *process) stop(exitCommand string, timeout time.Duration, drain func() error) error {
	if exitCommand != "" {
		_ = p.send([]byte(exitCommand))
	}
	p.endInput()

	drained := make(chan error, 1)
	go func() { drained <- drain() }()

	select {
	case <-p.done:
	case <-time.After(timeout):
		p.logger.Warn("tool did not exit, killing process group",
			slog.Int("pid", p.cmd.Process.Pid),
			slog.Duration("timeout", timeout))
		p.kill()
		<-p.done
	}

	// A grandchild may still hold the output pipe open.
	var drainErr error
	select {
	case drainErr = <-drained:
	case <-time.After(timeout):
		_ = p.stdout.Close()
		drainErr = <-drained
	}
	_ = p.stdout.Close()
	<-p.writerDone

	if drainErr != nil && !errors.Is(drainErr, os.ErrClosed) {
		return fmt.Errorf("drain output: %w", drainErr)
	}
	return nil
}

// stderrLogger forwards each line the tool writes to stderr to the logger.
type stderrLogger struct {
	logger *slog.Logger
	mu     sync.Mutex
	buf    []byte
}

func (w *stderrLogger) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, b...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(w.buf[:i], "\r")
		if len(line) > 0 {
			w.logger.Debug("tool stderr", slog.String("line", string(line)))
		}
		w.buf = w.buf[i+1:]
	}
	return len(b), nil
}

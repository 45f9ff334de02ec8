package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/randalmurphal/daokit/workdir"
)

// Status is the lifecycle state of a Session.
type Status int

// Session states.
const (
	// StatusCreated means no process is running yet.
	StatusCreated Status = iota
	// StatusStarted means the process runs and has no unread output pending.
	StatusStarted
	// StatusRunning means flushed blocks are still being written or read.
	StatusRunning
	// StatusClosed means the session was closed.
	StatusClosed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusStarted:
		return "started"
	case StatusRunning:
		return "running"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session owns one tool process, its command queue and its working area.
type Session struct {
	id     string
	tool   Tool
	proto  Protocol
	area   *workdir.Area
	cfg    settings
	logger *slog.Logger

	mu      sync.Mutex
	queue   Queue
	proc    *process
	chain   *chain
	sealed  bool
	flushed int
	closed  bool

	// closeMu serializes Close and Reset.
	closeMu sync.Mutex
}

// Remap maps processors of a session's undrained queue to their
// counterparts in a clone.
type Remap map[Processor]Processor

// Lookup returns the clone's counterpart of p, or the zero value when p
// was not pending at clone time.
func Lookup[P Processor](r Remap, p P) P {
	var zero P
	if q, ok := r[p]; ok {
		if typed, ok := q.(P); ok {
			return typed
		}
	}
	return zero
}

// New creates a Session for tool working in area. The process is started
// by Start or by the first Run. The Session installs itself as the area's
// barrier and closes the area on Close.
func New(tool Tool, area *workdir.Area, opts ...Option) (*Session, error) {
	if tool == nil {
		return nil, errors.New("new session: nil tool")
	}
	if area == nil {
		return nil, errors.New("new session: nil working area")
	}

	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.mode.Validate(); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	proto := tool.Protocol()
	if cfg.executable == "" {
		cfg.executable = proto.Executable
	}
	if cfg.executable == "" {
		return nil, fmt.Errorf("new session: no executable for %s", tool.Name())
	}

	id := uuid.NewString()
	s := &Session{
		id:    id,
		tool:  tool,
		proto: proto,
		area:  area,
		cfg:   cfg,
		logger: cfg.logger.With(
			slog.String("tool", tool.Name()),
			slog.String("session", id)),
	}
	area.SetBarrier(s.ready)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Area returns the session's working area.
func (s *Session) Area() *workdir.Area {
	return s.area
}

// Mode returns the execution mode.
func (s *Session) Mode() Mode {
	return s.cfg.mode
}

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// Status returns the lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	switch {
	case s.closed:
		return StatusClosed
	case s.proc == nil:
		return StatusCreated
	case s.proc.writing() || s.chain.outstanding():
		return StatusRunning
	default:
		return StatusStarted
	}
}

// Pending returns the number of blocks not yet written.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Flushed returns the number of blocks written to the tool by this
// session, over every process generation.
func (s *Session) Flushed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushed
}

// RequireBatch returns a usage error unless the session is in batch mode.
func (s *Session) RequireBatch(op string) error {
	if s.cfg.mode != ModeBatch {
		return UsageError(op, ErrBatchOnly)
	}
	return nil
}

// Start spawns the tool process and queues the tool's bootstrap blocks
// ahead of everything already pending. Starting a running session is a
// no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Session) startLocked(ctx context.Context) error {
	if s.closed {
		return NewError(KindClosed, "start", ErrClosed)
	}
	if s.proc != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("start %s: %w", s.tool.Name(), err)
	}

	boot, err := s.tool.Bootstrap()
	if err != nil {
		return fmt.Errorf("start %s: bootstrap: %w", s.tool.Name(), err)
	}
	for _, b := range boot {
		if err := s.bind("start", b.Proc); err != nil {
			return err
		}
	}

	proc, err := startProcess(s.cfg.executable, s.cfg.args, s.area.Dir(), s.cfg.env, s.logger)
	if err != nil {
		return NewError(KindSpawn, "start", err)
	}

	if err := s.queue.PushFront(boot...); err != nil {
		// Unreachable: a new generation has drained nothing.
		proc.kill()
		return UsageError("start", err)
	}
	s.proc = proc
	s.chain = newChain(NewLineReader(proc.stdout, s.proto.Prompts...), s.logger)
	s.logger.Info("session started", slog.Int("bootstrap", len(boot)))
	return nil
}

// Enqueue adds a block to the queue. Head insertion is only legal while
// nothing has been flushed to the current process.
func (s *Session) Enqueue(b Block, pos Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewError(KindClosed, "enqueue", ErrClosed)
	}
	if err := s.bind("enqueue", b.Proc); err != nil {
		return err
	}
	if err := s.queue.Push(b, pos); err != nil {
		b.Proc.lazy().session.Store(nil)
		return UsageError("enqueue", err)
	}
	return nil
}

func (s *Session) bind(op string, p Processor) error {
	if p == nil {
		return UsageError(op, errors.New("nil processor"))
	}
	if !p.lazy().session.CompareAndSwap(nil, s) {
		return UsageError(op, errors.New("processor already queued"))
	}
	return nil
}

// Submit enqueues a block at the tail. In eager mode it then runs the
// queue, waits, and checks the result: a processor with a Check method
// validates its fields, any other is checked for framing only.
func (s *Session) Submit(ctx context.Context, op, text string, proc Processor) error {
	if err := s.Enqueue(Block{Text: text, Proc: proc}, Tail); err != nil {
		return err
	}
	if s.cfg.mode == ModeBatch {
		return nil
	}
	if err := s.Run(ctx, true); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if c, ok := proc.(interface{ Check() error }); ok {
		return c.Check()
	}
	return proc.lazy().Ensure()
}

// Run writes every pending block to the tool, starting the process first
// if needed. With wait set, it blocks until the tool has answered every
// block flushed so far.
func (s *Session) Run(ctx context.Context, wait bool) error {
	if err := s.flush(ctx); err != nil {
		return err
	}
	if !wait {
		return nil
	}
	return s.Wait(ctx)
}

func (s *Session) flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewError(KindClosed, "run", ErrClosed)
	}
	if err := s.startLocked(ctx); err != nil {
		return err
	}
	if s.queue.Len() == 0 {
		return nil
	}
	if s.sealed {
		return UsageError("run", ErrInputClosed)
	}

	blocks := s.queue.Drain()
	procs := make([]Processor, len(blocks))
	var sb strings.Builder
	for i, b := range blocks {
		procs[i] = b.Proc
		sb.WriteString(b.Text)
	}
	text := sb.String()

	s.chain.add(procs...)
	s.flushed += len(blocks)

	if s.cfg.transcript != nil {
		_, _ = s.cfg.transcript.Write([]byte(text))
	}
	if err := s.proc.send([]byte(text)); err != nil {
		return ProtocolError("run", err)
	}
	if s.proto.CloseInputAfterRun {
		s.proc.endInput()
		s.sealed = true
	}

	s.logger.Debug("flushed commands",
		slog.Int("blocks", len(blocks)),
		slog.Int("bytes", len(text)))
	return nil
}

// Wait blocks until every flushed block has been answered, or ctx is
// done. It returns the framing error of the last flushed block. When ctx
// ends first, consumption of the output keeps running until the tool
// answers or the session is reset or closed.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	c := s.chain
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- c.settle() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("wait for %s: %w", s.tool.Name(), ctx.Err())
	}
}

// ready is the working area barrier: if anything is pending or still
// being answered, flush and wait.
func (s *Session) ready(ctx context.Context) error {
	s.mu.Lock()
	busy := s.queue.Len() > 0 || (s.chain != nil && s.chain.outstanding())
	s.mu.Unlock()
	if !busy {
		return nil
	}
	return s.Run(ctx, true)
}

// Clone creates a new Session for tool with a deep copy of the working
// area and of every block not yet flushed. The clone has its own process,
// started on its first Run, which replays the tool's bootstrap and then
// the copied blocks. Blocks already flushed are waited for first and are
// not replayed. The clone does not share the transcript writer.
func (s *Session) Clone(ctx context.Context, tool Tool) (*Session, Remap, error) {
	if err := s.Wait(ctx); err != nil && !IsProtocol(err) {
		return nil, nil, fmt.Errorf("clone: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, NewError(KindClosed, "clone", ErrClosed)
	}
	pending := s.queue.Blocks()
	s.mu.Unlock()

	area, err := s.area.Clone(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("clone: %w", err)
	}

	cfg := s.cfg
	cfg.args = append([]string(nil), s.cfg.args...)
	cfg.transcript = nil

	clone, err := newFromSettings(tool, area, cfg)
	if err != nil {
		_ = area.Close()
		return nil, nil, fmt.Errorf("clone: %w", err)
	}

	remap := make(Remap, len(pending))
	for _, b := range pending {
		np := b.Proc.Clone()
		if err := clone.Enqueue(Block{Text: b.Text, Proc: np}, Tail); err != nil {
			_ = clone.Close()
			return nil, nil, fmt.Errorf("clone: %w", err)
		}
		remap[b.Proc] = np
	}

	s.logger.Info("session cloned",
		slog.String("clone", clone.id),
		slog.Int("pending", len(pending)))
	return clone, remap, nil
}

func newFromSettings(tool Tool, area *workdir.Area, cfg settings) (*Session, error) {
	opts := []Option{func(s *settings) { *s = cfg }}
	return New(tool, area, opts...)
}

// Reset stops the current process and returns the session to
// StatusCreated. Unread results of the stopped process fail with
// ErrClosed; blocks still pending stay queued for the next process.
func (s *Session) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return NewError(KindClosed, "reset", ErrClosed)
	}
	proc, c := s.proc, s.chain
	s.proc, s.chain = nil, nil
	s.sealed = false
	s.queue.Restart()
	s.mu.Unlock()

	var err error
	if proc != nil {
		err = s.stop(proc, c)
	}
	if r, ok := s.tool.(Resetter); ok {
		r.ResetResults()
	}
	s.logger.Debug("session reset")
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// Close stops the process and releases the working area. Results not yet
// read fail with ErrClosed.
func (s *Session) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	proc, c := s.proc, s.chain
	s.mu.Unlock()

	var errs []error
	if proc != nil {
		if err := s.stop(proc, c); err != nil {
			errs = append(errs, err)
		}
	}
	s.area.SetBarrier(nil)
	if err := s.area.Close(); err != nil {
		errs = append(errs, err)
	}
	s.logger.Info("session closed")
	return errors.Join(errs...)
}

// stop sends the exit command unless input is already closed.
func (s *Session) stop(proc *process, c *chain) error {
	return proc.stop(s.proto.ExitCommand, s.cfg.exitTimeout, c.shutdown)
}

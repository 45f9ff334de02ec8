package runner

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
)

// State is the consumption state of a Processor.
type State int32

// Processor states.
const (
	NotStarted State = iota
	Consuming
	Done
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Consuming:
		return "consuming"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Processor consumes the output region that belongs to one command block.
//
// Consume receives each line of the region with its 1-based count and
// reports whether it was the block's last line. EndOfStream is called
// instead when the stream ends first; a nil return accepts the end of the
// stream as the end of the block. Clone returns a fresh, unqueued
// processor of the same kind and parameters, used when a queue is copied
// to a cloned session.
//
// Implementations embed Lazy (or Buffered, which embeds it).
type Processor interface {
	Consume(line string, n int) bool
	EndOfStream(n int) error
	Clone() Processor
	lazy() *Lazy
}

// Lazy is the demand-driven state machine shared by every processor.
// Result accessors call Ensure before reading parsed fields.
type Lazy struct {
	session atomic.Pointer[Session]
	chain   atomic.Pointer[chain]
	index   int
	state   atomic.Int32
	err     error
}

func (l *Lazy) lazy() *Lazy { return l }

// Ensure consumes the processor's block, and every earlier unconsumed
// block, if that has not happened yet. It returns the framing error of
// the block, if any.
func (l *Lazy) Ensure() error {
	if c := l.chain.Load(); c != nil {
		return c.demand(l)
	}
	s := l.session.Load()
	if s == nil {
		return UsageError("result", ErrUnbound)
	}
	// The block may have been flushed concurrently.
	if c := l.chain.Load(); c != nil {
		return c.demand(l)
	}
	if s.Status() == StatusClosed {
		return NewError(KindClosed, "result", ErrClosed)
	}
	return UsageError("result", ErrNotRun)
}

// State returns the current consumption state.
func (l *Lazy) State() State {
	return State(l.state.Load())
}

// Err returns the framing error of a Failed processor.
func (l *Lazy) Err() error {
	if l.State() != Failed {
		return nil
	}
	return l.err
}

// Session returns the session the processor was queued on, or nil.
func (l *Lazy) Session() *Session {
	return l.session.Load()
}

// Flushed reports whether the block was written to the tool.
func (l *Lazy) Flushed() bool {
	return l.chain.Load() != nil
}

func (l *Lazy) finish(err error) {
	if err != nil {
		l.err = err
		l.state.Store(int32(Failed))
		return
	}
	l.state.Store(int32(Done))
}

// Terminal decides whether line n of a block is the block's last line.
type Terminal func(line string, n int) bool

// Sentinel matches the first line after the skip leading lines that
// contains token.
func Sentinel(token string, skip int) Terminal {
	return func(line string, n int) bool {
		return n > skip && strings.Contains(line, token)
	}
}

// Buffered accumulates the lines of its block into one text buffer.
// With ToEOF set the block runs to the end of the stream; otherwise
// Terminal must match before it.
type Buffered struct {
	Lazy
	Terminal Terminal
	ToEOF    bool

	text strings.Builder
}

// Consume implements Processor.
func (b *Buffered) Consume(line string, n int) bool {
	b.text.WriteString(line)
	b.text.WriteByte('\n')
	return !b.ToEOF && b.Terminal != nil && b.Terminal(line, n)
}

// EndOfStream implements Processor.
func (b *Buffered) EndOfStream(n int) error {
	if b.ToEOF {
		return nil
	}
	return fmt.Errorf("%w after %d lines", ErrTruncated, n)
}

// Clone implements Processor.
func (b *Buffered) Clone() Processor {
	return &Buffered{Terminal: b.Terminal, ToEOF: b.ToEOF}
}

// Text returns the block's output, consuming it first if needed.
func (b *Buffered) Text() (string, error) {
	if err := b.Ensure(); err != nil {
		return "", err
	}
	return b.text.String(), nil
}

// Check reports whether the block was framed correctly.
func (b *Buffered) Check() error {
	return b.Ensure()
}

// Raw writes the lines of its block to W as they are consumed.
type Raw struct {
	Lazy
	W        io.Writer
	Terminal Terminal
	ToEOF    bool
}

// Consume implements Processor.
func (r *Raw) Consume(line string, n int) bool {
	if r.W != nil {
		_, _ = io.WriteString(r.W, line+"\n")
	}
	return !r.ToEOF && r.Terminal != nil && r.Terminal(line, n)
}

// EndOfStream implements Processor.
func (r *Raw) EndOfStream(n int) error {
	if r.ToEOF {
		return nil
	}
	return fmt.Errorf("%w after %d lines", ErrTruncated, n)
}

// Clone implements Processor.
func (r *Raw) Clone() Processor {
	return &Raw{W: r.W, Terminal: r.Terminal, ToEOF: r.ToEOF}
}

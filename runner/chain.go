package runner

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// chain is the arena of processors flushed to one process generation,
// indexed in write order, plus the single cursor over the tool's output.
type chain struct {
	mu     sync.Mutex
	reader *LineReader
	links  []Processor
	next   int
	broken error
	closed bool
	logger *slog.Logger

	// Mirrors of len(links) and next, readable without waiting for a
	// read in progress.
	total    atomic.Int64
	consumed atomic.Int64
}

func newChain(r *LineReader, logger *slog.Logger) *chain {
	return &chain{reader: r, logger: logger}
}

// add appends flushed processors in write order.
func (c *chain) add(procs ...Processor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range procs {
		l := p.lazy()
		l.index = len(c.links)
		c.links = append(c.links, p)
		if c.closed {
			l.finish(NewError(KindClosed, "result", ErrClosed))
		}
		l.chain.Store(c)
	}
	if c.closed {
		c.next = len(c.links)
		c.consumed.Store(int64(c.next))
	}
	c.total.Store(int64(len(c.links)))
}

// demand consumes links up to and including l.
func (c *chain) demand(l *Lazy) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		switch l.State() {
		case Done:
			return nil
		case Failed:
			return l.err
		}
		if c.next >= len(c.links) || c.next > l.index {
			return ProtocolError("result", errors.New("processor not in output chain"))
		}
		c.consume(c.links[c.next])
		c.next++
		c.consumed.Store(int64(c.next))
	}
}

// settle consumes every flushed link and returns the framing error of
// the last one.
func (c *chain) settle() error {
	c.mu.Lock()
	if len(c.links) == 0 {
		c.mu.Unlock()
		return nil
	}
	last := c.links[len(c.links)-1].lazy()
	c.mu.Unlock()
	return c.demand(last)
}

// outstanding reports whether flushed links remain unconsumed.
func (c *chain) outstanding() bool {
	return c.consumed.Load() < c.total.Load()
}

func (c *chain) consume(p Processor) {
	l := p.lazy()
	if c.broken != nil {
		l.finish(ProtocolError("result", fmt.Errorf("%w: %v", ErrStreamBroken, c.broken)))
		return
	}
	l.state.Store(int32(Consuming))

	n := 0
	for {
		line, err := c.reader.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.broken = err
				l.finish(ProtocolError("result", fmt.Errorf("read output: %w", err)))
				return
			}
			if eofErr := p.EndOfStream(n); eofErr != nil {
				c.broken = eofErr
				l.finish(ProtocolError("result", eofErr))
				c.logger.Debug("output ended inside block",
					slog.Int("index", l.index),
					slog.Int("lines", n))
				return
			}
			l.finish(nil)
			return
		}
		n++
		if p.Consume(line, n) {
			l.finish(nil)
			return
		}
	}
}

// shutdown fails every unconsumed link with ErrClosed and discards the
// rest of the output until the stream ends.
func (c *chain) shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for ; c.next < len(c.links); c.next++ {
		c.links[c.next].lazy().finish(NewError(KindClosed, "result", ErrClosed))
	}
	c.consumed.Store(int64(c.next))
	return c.reader.Discard()
}

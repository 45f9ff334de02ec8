package runner

// Position selects where Enqueue inserts a block.
type Position int

const (
	// Tail appends after every pending block.
	Tail Position = iota
	// Head inserts before every pending block. Reserved for session
	// bootstrap and only legal while nothing has been flushed to the
	// current process.
	Head
)

// Block is one unit of command text paired with the processor that
// consumes the tool's response to it.
type Block struct {
	Text string
	Proc Processor
}

// Queue is the ordered list of blocks not yet written to the tool.
// It is not safe for concurrent use; Session guards it.
type Queue struct {
	blocks  []Block
	drained int
}

// Push inserts b at the tail or the head of the queue.
func (q *Queue) Push(b Block, pos Position) error {
	if pos == Head {
		return q.PushFront(b)
	}
	q.blocks = append(q.blocks, b)
	return nil
}

// PushFront inserts blocks before every pending block, keeping their
// relative order.
func (q *Queue) PushFront(blocks ...Block) error {
	if q.drained > 0 {
		return ErrHeadAfterDrain
	}
	front := make([]Block, 0, len(blocks)+len(q.blocks))
	front = append(front, blocks...)
	q.blocks = append(front, q.blocks...)
	return nil
}

// Drain removes and returns every pending block in order.
func (q *Queue) Drain() []Block {
	out := q.blocks
	q.blocks = nil
	q.drained += len(out)
	return out
}

// Len returns the number of pending blocks.
func (q *Queue) Len() int {
	return len(q.blocks)
}

// Drained returns the number of blocks drained since the last Restart.
func (q *Queue) Drained() int {
	return q.drained
}

// Blocks returns a snapshot of the pending blocks.
func (q *Queue) Blocks() []Block {
	out := make([]Block, len(q.blocks))
	copy(out, q.blocks)
	return out
}

// Restart begins a new process generation: head insertion becomes legal
// again. Pending blocks are kept.
func (q *Queue) Restart() {
	q.drained = 0
}

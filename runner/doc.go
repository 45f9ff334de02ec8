// Package runner drives an interactive, line-oriented command-line tool
// as a child process.
//
// A Session owns one child process and one working area. Operations add
// command blocks to a Queue; each block is paired with a Processor that
// will consume the matching region of the tool's output. Blocks are
// written to the tool's input strictly in queue order, and processors
// consume the output in the same order.
//
// # Output chain
//
// The tool's output is one unstructured text stream. Processors frame it
// lazily: nothing is read until a result is demanded. Demanding the result
// of block k first consumes every earlier unconsumed block, each with its
// own terminal predicate, so blocks nobody inspects are skipped silently.
//
//	res := runner.Buffered{Terminal: runner.Sentinel("Command:", 2)}
//	if err := s.Submit(ctx, "attach", "ATTACH i.fits\n", &res); err != nil {
//	    return err
//	}
//	text, err := res.Text()
//
// A block whose terminal line never arrives fails with a protocol error
// and breaks the chain; every later block then fails with ErrStreamBroken.
//
// # Modes
//
// In ModeEager every Submit flushes the queue and waits for its result.
// In ModeBatch operations only enqueue, and Run writes everything pending.
//
// # Working area barrier
//
// A Session installs itself as the barrier of its workdir.Area: before any
// file is staged, removed or written, every pending block is flushed and
// the tool has finished with it. Staging never races the tool's reads.
//
// # Fan-out
//
// Clone duplicates the working area and the undrained queue into a new
// Session with its own process. A Group runs several sessions in parallel.
package runner

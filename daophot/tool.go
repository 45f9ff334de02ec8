package daophot

import (
	"sync"

	"github.com/randalmurphal/daokit/daoopt"
	"github.com/randalmurphal/daokit/runner"
)

// Last holds the most recent result of each command. Fields are nil until
// the command is issued.
type Last struct {
	Options    *OptionsResult
	Attach     *AttachResult
	Find       *FindResult
	Photometry *PhotometryResult
	Pick       *PickResult
	PSF        *PSFResult
	Substar    *SubstarResult
}

// tool is the runner.Tool adapter for daophot.
type tool struct {
	mu      sync.Mutex
	image   string
	options daoopt.Options
	last    Last
}

var _ runner.Tool = (*tool)(nil)
var _ runner.Resetter = (*tool)(nil)

func (t *tool) Name() string { return "daophot" }

func (t *tool) Protocol() runner.Protocol {
	return runner.Protocol{
		Executable:  "daophot",
		Prompts:     []string{"Command:"},
		ExitCommand: "EXIT\n",
	}
}

// Bootstrap consumes the option listing daophot prints on startup, then
// attaches the auto-attach image and sets the auto options.
func (t *tool) Bootstrap() ([]runner.Block, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	initial := newOptionsResult()
	blocks := []runner.Block{{Text: "", Proc: initial}}
	optResult := initial

	if t.image != "" {
		res := newAttachResult()
		blocks = append(blocks, runner.Block{Text: attachCommand(t.image), Proc: res})
		if t.last.Attach == nil {
			t.last.Attach = res
		}
	}
	if len(t.options) > 0 {
		res := newOptionsResult()
		blocks = append(blocks, runner.Block{Text: optionsCommand(t.options), Proc: res})
		optResult = res
	}
	if t.last.Options == nil {
		t.last.Options = optResult
	}
	return blocks, nil
}

// ResetResults drops results of the stopped process. Results of blocks
// still queued survive.
func (t *tool) ResetResults() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = t.last.pending()
}

func (t *tool) snapshot() Last {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *tool) update(fn func(*Last)) {
	t.mu.Lock()
	fn(&t.last)
	t.mu.Unlock()
}

// pending keeps only results whose blocks were not flushed yet.
func (l Last) pending() Last {
	return Last{
		Options:    unflushed(l.Options),
		Attach:     unflushed(l.Attach),
		Find:       unflushed(l.Find),
		Photometry: unflushed(l.Photometry),
		Pick:       unflushed(l.Pick),
		PSF:        unflushed(l.PSF),
		Substar:    unflushed(l.Substar),
	}
}

// remap carries results into a cloned session. Pending results are
// replaced by their copies; answered results are shared read-only.
func (l Last) remap(r runner.Remap) Last {
	return Last{
		Options:    carry(r, l.Options),
		Attach:     carry(r, l.Attach),
		Find:       carry(r, l.Find),
		Photometry: carry(r, l.Photometry),
		Pick:       carry(r, l.Pick),
		PSF:        carry(r, l.PSF),
		Substar:    carry(r, l.Substar),
	}
}

type result[T any] interface {
	*T
	runner.Processor
	Flushed() bool
}

func unflushed[T any, P result[T]](p P) P {
	if p == nil || p.Flushed() {
		return nil
	}
	return p
}

func carry[T any, P result[T]](r runner.Remap, p P) P {
	if p == nil {
		return nil
	}
	if q := runner.Lookup(r, p); q != nil {
		return q
	}
	if p.Flushed() {
		return p
	}
	return nil
}

package allstar

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/randalmurphal/daokit/daoopt"
	"github.com/randalmurphal/daokit/runner"
)

// allstar prints one line of four counters per iteration: iteration,
// stars left, stars converged, stars disappeared.
var progressRe = regexp.MustCompile(`^\s*(\d+)\s+(\d+)\s+(\d+)\s+(\d+)\s*$`)

// OptionsResult is the option listing allstar prints before OPT>.
type OptionsResult struct {
	runner.Buffered
}

func newOptionsResult() *OptionsResult {
	return &OptionsResult{Buffered: runner.Buffered{Terminal: runner.Sentinel("OPT>", 0)}}
}

// Clone implements runner.Processor.
func (r *OptionsResult) Clone() runner.Processor { return newOptionsResult() }

// Options returns the listed options.
func (r *OptionsResult) Options() (daoopt.Options, error) {
	text, err := r.Text()
	if err != nil {
		return nil, err
	}
	opts := daoopt.ParseTable(text)
	if len(opts) == 0 {
		return nil, runner.MissingField("allstar options", "option table")
	}
	return opts, nil
}

// Check implements the eager-mode result check.
func (r *OptionsResult) Check() error {
	_, err := r.Options()
	return err
}

// Result is the report of one allstar run. The block runs to the end of
// allstar's output.
type Result struct {
	runner.Buffered
	output     string
	subtracted string
}

func newResult(output, subtracted string) *Result {
	return &Result{
		Buffered:   runner.Buffered{ToEOF: true},
		output:     output,
		subtracted: subtracted,
	}
}

// Clone implements runner.Processor.
func (r *Result) Clone() runner.Processor { return newResult(r.output, r.subtracted) }

// Progress is the last iteration line allstar printed.
type Progress struct {
	Iteration   int
	Stars       int
	Converged   int
	Disappeared int
}

// Progress returns the final iteration counters.
func (r *Result) Progress() (Progress, error) {
	text, err := r.Text()
	if err != nil {
		return Progress{}, err
	}
	var last []string
	for _, line := range strings.Split(text, "\n") {
		if m := progressRe.FindStringSubmatch(line); m != nil {
			last = m
		}
	}
	if last == nil {
		return Progress{}, runner.MissingField("allstar", "progress")
	}
	var p Progress
	p.Iteration, _ = strconv.Atoi(last[1])
	p.Stars, _ = strconv.Atoi(last[2])
	p.Converged, _ = strconv.Atoi(last[3])
	p.Disappeared, _ = strconv.Atoi(last[4])
	return p, nil
}

// Stars returns the number of stars left after the last iteration.
func (r *Result) Stars() (int, error) {
	p, err := r.Progress()
	return p.Stars, err
}

// Check implements the eager-mode result check.
func (r *Result) Check() error {
	_, err := r.Progress()
	return err
}

// File returns the absolute path of the results file.
func (r *Result) File() string { return r.path(r.output) }

// SubtractedFile returns the absolute path of the subtracted image, or ""
// when none was requested.
func (r *Result) SubtractedFile() string {
	if r.subtracted == "" {
		return ""
	}
	return r.path(r.subtracted)
}

func (r *Result) path(name string) string {
	if s := r.Session(); s != nil {
		return s.Area().File(name)
	}
	return name
}

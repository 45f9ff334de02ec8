// Package allstar drives the ALLSTAR PSF fitting program.
//
// Allstar is a one-shot tool: it reads all of its answers, then works
// until the end of input. A session therefore accepts one Fit per
// process; Reset starts over.
package allstar

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/randalmurphal/daokit/daoopt"
	"github.com/randalmurphal/daokit/fname"
	"github.com/randalmurphal/daokit/runner"
	"github.com/randalmurphal/daokit/workdir"
)

//go:embed opt/allstar.opt
var defaultAllstarOpt []byte

// Allstar is an allstar session.
type Allstar struct {
	session *runner.Session
	tool    *tool
	cfg     Config
}

type tool struct {
	mu      sync.Mutex
	listing *OptionsResult
}

func (t *tool) Name() string { return "allstar" }

func (t *tool) Protocol() runner.Protocol {
	return runner.Protocol{
		Executable:         "allstar",
		Prompts:            []string{"OPT>"},
		CloseInputAfterRun: true,
	}
}

// Bootstrap consumes the option listing up to the OPT> prompt.
func (t *tool) Bootstrap() ([]runner.Block, error) {
	res := newOptionsResult()
	t.mu.Lock()
	t.listing = res
	t.mu.Unlock()
	return []runner.Block{{Text: "", Proc: res}}, nil
}

// New creates a session. With WithDir it works on an existing directory,
// such as the one of a finished daophot session.
func New(ctx context.Context, opts ...Option) (*Allstar, error) {
	b := builder{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&b)
	}
	cfg := b.cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("allstar: invalid config: %w", err)
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	area, err := openArea(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("allstar: %w", err)
	}
	if err := stageOptFile(ctx, area, cfg.OptFile); err != nil {
		_ = area.Close()
		return nil, fmt.Errorf("allstar: %w", err)
	}

	t := &tool{}
	session, err := runner.New(t, area,
		runner.WithExecutable(cfg.Executable),
		runner.WithMode(cfg.Mode),
		runner.WithExitTimeout(cfg.ExitTimeout),
		runner.WithEnv(cfg.Env),
		runner.WithLogger(logger),
		runner.WithTranscript(b.transcript))
	if err != nil {
		_ = area.Close()
		return nil, fmt.Errorf("allstar: %w", err)
	}
	return &Allstar{session: session, tool: t, cfg: cfg}, nil
}

func openArea(cfg Config, logger *slog.Logger) (*workdir.Area, error) {
	areaOpts := []workdir.Option{
		workdir.WithStaging(cfg.Staging),
		workdir.WithLogger(logger),
	}
	if cfg.Dir != "" {
		return workdir.Open(cfg.Dir, areaOpts...)
	}
	areaOpts = append(areaOpts, workdir.WithBase(cfg.TempBase), workdir.WithPrefix("allstar-"))
	area, err := workdir.New(areaOpts...)
	if err != nil {
		return nil, err
	}
	if cfg.Retain {
		area.Retain()
	}
	return area, nil
}

func stageOptFile(ctx context.Context, area *workdir.Area, src string) error {
	if src != "" {
		if _, err := area.StageInput(ctx, src, fname.AllstarOpt); err != nil {
			return fmt.Errorf("stage %s: %w", fname.AllstarOpt, err)
		}
		return nil
	}
	if area.Exists(fname.AllstarOpt) {
		return nil
	}
	return area.WriteFile(ctx, fname.AllstarOpt, defaultAllstarOpt)
}

// Params configures one allstar run. Empty names take the defaults.
type Params struct {
	// Options are answered at OPT>, after the configured options.
	Options daoopt.Input

	// Image is the input image. Default: i.fits
	Image string

	// PSF is the PSF model. Default: i.psf
	PSF string

	// Photometry is the input star list. Default: i.ap
	Photometry string

	// Output is the results file. Default: i.als
	Output string

	// Subtracted is the subtracted image name. Default: is.fits
	Subtracted string

	// NoSubtracted answers the subtracted image prompt with an empty
	// line, so no image is written.
	NoSubtracted bool
}

// Fit queues the allstar run. In eager mode it also runs allstar to
// completion and checks the result.
func (a *Allstar) Fit(ctx context.Context, p Params) (*Result, error) {
	const op = "fit"
	if a.session.Status() != runner.StatusCreated || a.session.Pending() > 0 {
		return nil, runner.UsageError(op, runner.ErrInputClosed)
	}
	opts := a.cfg.Options
	if p.Options != nil {
		extra, err := daoopt.Resolve(p.Options)
		if err != nil {
			return nil, runner.UsageError(op, err)
		}
		opts = opts.Merge(extra)
	}

	area := a.session.Area()
	image, err := input(ctx, area, p.Image, fname.Image)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	psf, err := input(ctx, area, p.PSF, fname.PSF)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	phot, err := input(ctx, area, p.Photometry, fname.Photometry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out, _, err := area.PrepareOutput(ctx, orDefault(p.Output, fname.AllstarResults))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub := ""
	if !p.NoSubtracted {
		if sub, _, err = area.PrepareOutput(ctx, orDefault(p.Subtracted, fname.SubtractedImage)); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	var sb strings.Builder
	sb.WriteString(opts.Commands())
	sb.WriteString("\n")
	for _, answer := range []string{image, psf, phot, out, sub} {
		sb.WriteString(answer)
		sb.WriteString("\n")
	}

	res := newResult(out, sub)
	err = a.session.Submit(ctx, op, sb.String(), res)
	return res, err
}

// Listing returns the option listing of the current process, or nil
// before the process started.
func (a *Allstar) Listing() *OptionsResult {
	a.tool.mu.Lock()
	defer a.tool.mu.Unlock()
	return a.tool.listing
}

// Run starts allstar with the queued run. With wait set it blocks until
// allstar finishes.
func (a *Allstar) Run(ctx context.Context, wait bool) error {
	return a.session.Run(ctx, wait)
}

// Wait blocks until allstar finishes.
func (a *Allstar) Wait(ctx context.Context) error {
	return a.session.Wait(ctx)
}

// Reset stops allstar so another Fit can run.
func (a *Allstar) Reset(ctx context.Context) error {
	return a.session.Reset(ctx)
}

// Close stops allstar and releases the working area. A directory passed
// with WithDir is left in place.
func (a *Allstar) Close() error {
	return a.session.Close()
}

// Session returns the underlying runner session.
func (a *Allstar) Session() *runner.Session { return a.session }

// Dir returns the working directory.
func (a *Allstar) Dir() string { return a.session.Area().Dir() }

// File returns the absolute path of a working area file.
func (a *Allstar) File(name string) string { return a.session.Area().File(name) }

// Export copies a working area file to dst once allstar finished.
func (a *Allstar) Export(ctx context.Context, name, dst string) error {
	if err := a.session.Wait(ctx); err != nil {
		return fmt.Errorf("export %s: %w", name, err)
	}
	return a.session.Area().Export(name, dst)
}

// ExportLink symlinks dst to a working area file.
func (a *Allstar) ExportLink(name, dst string) error {
	return a.session.Area().ExportLink(name, dst)
}

// input stages src (default def). Bare names refer to the area.
func input(ctx context.Context, area *workdir.Area, src, def string) (string, error) {
	canonical := def
	if src != "" && src == filepath.Base(src) {
		canonical = src
	}
	return area.StageInput(ctx, src, canonical)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

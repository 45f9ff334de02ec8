// Package daophot drives the DAOPHOT II interactive photometry program.
//
// A Daophot value owns one daophot process and its working area. In eager
// mode every operation writes its command and returns a checked result;
// in batch mode operations only queue, and Run writes everything at once.
//
//	dp, err := daophot.New(ctx, daophot.WithImage("ngc6871.fits"))
//	if err != nil {
//	    return err
//	}
//	defer dp.Close()
//
//	find, err := dp.Find(ctx, daophot.FindParams{})
//	if err != nil {
//	    return err
//	}
//	stars, _ := find.Stars()
package daophot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/randalmurphal/daokit/daoopt"
	"github.com/randalmurphal/daokit/fname"
	"github.com/randalmurphal/daokit/runner"
	"github.com/randalmurphal/daokit/workdir"
)

// Daophot is a daophot session.
type Daophot struct {
	session *runner.Session
	tool    *tool
	cfg     Config
	logger  *slog.Logger
}

// New creates a session. The process starts on the first command in eager
// mode, or on Run in batch mode.
func New(ctx context.Context, opts ...Option) (*Daophot, error) {
	b := builder{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&b)
	}
	cfg := b.cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("daophot: invalid config: %w", err)
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	area, err := openArea(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("daophot: %w", err)
	}

	t := &tool{}
	if err := prepareArea(ctx, area, cfg, t, b.options); err != nil {
		_ = area.Close()
		return nil, fmt.Errorf("daophot: %w", err)
	}

	session, err := runner.New(t, area,
		runner.WithExecutable(cfg.Executable),
		runner.WithMode(cfg.Mode),
		runner.WithExitTimeout(cfg.ExitTimeout),
		runner.WithEnv(cfg.Env),
		runner.WithLogger(logger),
		runner.WithTranscript(b.transcript))
	if err != nil {
		_ = area.Close()
		return nil, fmt.Errorf("daophot: %w", err)
	}

	return &Daophot{session: session, tool: t, cfg: cfg, logger: session.Logger()}, nil
}

func openArea(cfg Config, logger *slog.Logger) (*workdir.Area, error) {
	areaOpts := []workdir.Option{
		workdir.WithStaging(cfg.Staging),
		workdir.WithLogger(logger),
	}
	if cfg.Dir != "" {
		return workdir.Open(cfg.Dir, areaOpts...)
	}
	areaOpts = append(areaOpts, workdir.WithBase(cfg.TempBase), workdir.WithPrefix("daophot-"))
	area, err := workdir.New(areaOpts...)
	if err != nil {
		return nil, err
	}
	if cfg.Retain {
		area.Retain()
	}
	return area, nil
}

// prepareArea stages option files and the auto-attach image, and resolves
// the auto options.
func prepareArea(ctx context.Context, area *workdir.Area, cfg Config, t *tool, in daoopt.Input) error {
	if err := stageOptFile(ctx, area, cfg.OptFile, fname.DaophotOpt, defaultDaophotOpt); err != nil {
		return err
	}
	if err := stageOptFile(ctx, area, cfg.PhotoOptFile, fname.PhotoOpt, defaultPhotoOpt); err != nil {
		return err
	}

	if cfg.Image != "" {
		local, err := area.StageInput(ctx, cfg.Image, fname.Image)
		if err != nil {
			return fmt.Errorf("auto attach: %w", err)
		}
		t.image = local
	}

	options := cfg.Options
	if in != nil {
		resolved, err := daoopt.Resolve(in)
		if err != nil {
			return fmt.Errorf("auto options: %w", err)
		}
		options = options.Merge(resolved)
	}
	t.options = options
	return nil
}

// stageOptFile stages src as name, or writes the built-in default when
// src is empty and the area has no such file.
func stageOptFile(ctx context.Context, area *workdir.Area, src, name string, fallback []byte) error {
	if src != "" {
		if _, err := area.StageInput(ctx, src, name); err != nil {
			return fmt.Errorf("stage %s: %w", name, err)
		}
		return nil
	}
	if area.Exists(name) {
		return nil
	}
	return area.WriteFile(ctx, name, fallback)
}

// Session returns the underlying runner session.
func (d *Daophot) Session() *runner.Session { return d.session }

// Mode returns the execution mode.
func (d *Daophot) Mode() runner.Mode { return d.session.Mode() }

// Dir returns the working directory.
func (d *Daophot) Dir() string { return d.session.Area().Dir() }

// Config returns the configuration the session was created with.
func (d *Daophot) Config() Config { return d.cfg }

// Last returns the most recent result of each command.
func (d *Daophot) Last() Last { return d.tool.snapshot() }

// SetAutoAttach changes the image attached at process start. An empty
// image disables auto attach. Only legal before anything is queued or
// started.
func (d *Daophot) SetAutoAttach(ctx context.Context, image string) error {
	if err := d.requireFresh("set auto attach"); err != nil {
		return err
	}
	local := ""
	if image != "" {
		var err error
		local, err = d.session.Area().StageInput(ctx, image, fname.Image)
		if err != nil {
			return fmt.Errorf("set auto attach: %w", err)
		}
	}
	d.tool.mu.Lock()
	d.tool.image = local
	d.tool.mu.Unlock()
	return nil
}

// SetAutoOptions replaces the options set at process start. Only legal
// before anything is queued or started.
func (d *Daophot) SetAutoOptions(in daoopt.Input) error {
	if err := d.requireFresh("set auto options"); err != nil {
		return err
	}
	opts, err := daoopt.Resolve(in)
	if err != nil {
		return runner.UsageError("set auto options", err)
	}
	d.tool.mu.Lock()
	d.tool.options = opts
	d.tool.mu.Unlock()
	return nil
}

func (d *Daophot) requireFresh(op string) error {
	if d.session.Status() != runner.StatusCreated || d.session.Pending() > 0 {
		return runner.UsageError(op, runner.ErrStarted)
	}
	return nil
}

// Attach queues ATTACH for image, staged as i.fits. Batch mode only;
// eager sessions use WithImage or SetAutoAttach.
func (d *Daophot) Attach(ctx context.Context, image string) (*AttachResult, error) {
	const op = "attach"
	if err := d.session.RequireBatch(op); err != nil {
		return nil, err
	}
	local, err := d.input(ctx, image, fname.Image)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res := newAttachResult()
	err = d.session.Submit(ctx, op, attachCommand(local), res)
	d.record(res, err, func(l *Last) { l.Attach = res })
	return res, err
}

// SetOptions queues OPT with the given options. Batch mode only; eager
// sessions use WithOptions or SetAutoOptions.
func (d *Daophot) SetOptions(ctx context.Context, in daoopt.Input) (*OptionsResult, error) {
	const op = "options"
	if err := d.session.RequireBatch(op); err != nil {
		return nil, err
	}
	opts, err := daoopt.Resolve(in)
	if err != nil {
		return nil, runner.UsageError(op, err)
	}
	if len(opts) == 0 {
		return nil, runner.UsageError(op, errors.New("no options given"))
	}
	res := newOptionsResult()
	err = d.session.Submit(ctx, op, optionsCommand(opts), res)
	d.record(res, err, func(l *Last) { l.Options = res })
	return res, err
}

// FindParams configures FIND.
type FindParams struct {
	// FramesAveraged and FramesSummed describe how the image was
	// combined. Default: 1 each.
	FramesAveraged int
	FramesSummed   int

	// Output is the star list name. Default: i.coo
	Output string
}

// Find runs FIND on the attached image.
func (d *Daophot) Find(ctx context.Context, p FindParams) (*FindResult, error) {
	const op = "find"
	if p.FramesAveraged < 0 || p.FramesSummed < 0 {
		return nil, runner.UsageError(op, errors.New("frame counts must be positive"))
	}
	averaged := defaultInt(p.FramesAveraged, 1)
	summed := defaultInt(p.FramesSummed, 1)

	out, err := d.output(ctx, p.Output, fname.FoundStars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res := newFindResult(out)
	err = d.session.Submit(ctx, op, findCommand(averaged, summed, out), res)
	d.record(res, err, func(l *Last) { l.Find = res })
	return res, err
}

// PhotometryParams configures PHOTOMETRY.
type PhotometryParams struct {
	// PhotoOpt is staged as photo.opt. Empty keeps the area's photo.opt.
	PhotoOpt string

	// InnerSky and OuterSky override the sky annulus radii when non-zero.
	InnerSky float64
	OuterSky float64

	// Apertures override the aperture radii, at most MaxApertures.
	Apertures []float64

	// Stars is the input star list. Default: i.coo
	Stars string

	// Output is the magnitudes file. Default: i.ap
	Output string
}

// Photometry runs aperture photometry.
func (d *Daophot) Photometry(ctx context.Context, p PhotometryParams) (*PhotometryResult, error) {
	const op = "photometry"
	if len(p.Apertures) > MaxApertures {
		return nil, runner.UsageError(op,
			fmt.Errorf("%w: %d apertures, limit is %d", runner.ErrTooMany, len(p.Apertures), MaxApertures))
	}

	photoOpt := ""
	if p.PhotoOpt != "" {
		local, err := d.input(ctx, p.PhotoOpt, fname.PhotoOpt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		photoOpt = local
	}
	stars, err := d.input(ctx, p.Stars, fname.FoundStars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out, err := d.output(ctx, p.Output, fname.Photometry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := newPhotometryResult(out)
	text := photometryCommand(photoOpt, p.InnerSky, p.OuterSky, p.Apertures, stars, out)
	err = d.session.Submit(ctx, op, text, res)
	d.record(res, err, func(l *Last) { l.Photometry = res })
	return res, err
}

// PickParams configures PICK.
type PickParams struct {
	// Photometry is the input magnitudes file. Default: i.ap
	Photometry string

	// Stars is the number of stars to pick. Default: 50
	Stars int

	// FaintestMag is the faintest instrumental magnitude considered.
	// Default: 20
	FaintestMag float64

	// Output is the PSF star list. Default: i.lst
	Output string
}

// Pick selects PSF star candidates.
func (d *Daophot) Pick(ctx context.Context, p PickParams) (*PickResult, error) {
	const op = "pick"
	if p.Stars < 0 {
		return nil, runner.UsageError(op, errors.New("number of stars must be positive"))
	}
	faintest := p.FaintestMag
	if faintest == 0 {
		faintest = 20
	}

	phot, err := d.input(ctx, p.Photometry, fname.Photometry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out, err := d.output(ctx, p.Output, fname.PSFStars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := newPickResult(out)
	err = d.session.Submit(ctx, op, pickCommand(phot, defaultInt(p.Stars, 50), faintest, out), res)
	d.record(res, err, func(l *Last) { l.Pick = res })
	return res, err
}

// PSFParams configures PSF.
type PSFParams struct {
	// Photometry is the input magnitudes file. Default: i.ap
	Photometry string

	// Stars is the PSF star list. Default: i.lst
	Stars string

	// Output is the PSF model file. Default: i.psf. The neighbour list
	// takes the same stem with a .nei extension.
	Output string
}

// PSF builds the point spread function model.
func (d *Daophot) PSF(ctx context.Context, p PSFParams) (*PSFResult, error) {
	const op = "psf"
	phot, err := d.input(ctx, p.Photometry, fname.Photometry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	stars, err := d.input(ctx, p.Stars, fname.PSFStars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out, err := d.output(ctx, p.Output, fname.PSF)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	nei, err := d.output(ctx, strings.TrimSuffix(out, filepath.Ext(out))+".nei", fname.Neighbours)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	errFile, err := d.output(ctx, "", fname.PSFErrors)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := newPSFResult(out, nei, errFile)
	err = d.session.Submit(ctx, op, psfCommand(phot, stars, out), res)
	d.record(res, err, func(l *Last) { l.PSF = res })
	return res, err
}

// SortBy names the column SORT orders by.
type SortBy int

// Sort columns.
const (
	SortID SortBy = iota + 1
	SortX
	SortY
	SortMag
)

// ParseSortBy converts "id", "x", "y" or "mag" to a SortBy.
func ParseSortBy(s string) (SortBy, error) {
	switch strings.ToLower(s) {
	case "id":
		return SortID, nil
	case "x":
		return SortX, nil
	case "y":
		return SortY, nil
	case "mag":
		return SortMag, nil
	default:
		return 0, fmt.Errorf("unknown sort column %q, expected one of: id, x, y, mag", s)
	}
}

// SortParams configures SORT.
type SortParams struct {
	File       string
	By         SortBy
	Decreasing bool
}

// Sort validates its parameters and reports ErrUnimplemented. Nothing is
// written to daophot.
func (d *Daophot) Sort(_ context.Context, p SortParams) error {
	const op = "sort"
	if p.File == "" {
		return runner.UsageError(op, errors.New("file is required"))
	}
	if p.By < SortID || p.By > SortMag {
		return runner.UsageError(op, fmt.Errorf("unknown sort column %d", p.By))
	}
	column := int(p.By)
	if p.Decreasing {
		column = -column
	}
	d.logger.Debug("sort not supported", slog.String("file", p.File), slog.Int("column", column))
	return runner.Unimplemented(op)
}

// SubstarParams configures SUBSTAR.
type SubstarParams struct {
	// Subtract lists the stars to subtract. Required.
	Subtract string

	// LeaveIn lists stars to keep in the image. Optional.
	LeaveIn string

	// PSF is the PSF model. Default: i.psf
	PSF string

	// Output is the subtracted image. Default: is.fits
	Output string
}

// Substar subtracts stars from the attached image.
func (d *Daophot) Substar(ctx context.Context, p SubstarParams) (*SubstarResult, error) {
	const op = "substar"
	if p.Subtract == "" {
		return nil, runner.UsageError(op, errors.New("subtract list is required"))
	}

	out, err := d.output(ctx, p.Output, fname.SubtractedImage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	subtract, err := d.input(ctx, p.Subtract, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	psf, err := d.input(ctx, p.PSF, fname.PSF)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	leaveIn := ""
	if p.LeaveIn != "" {
		if leaveIn, err = d.input(ctx, p.LeaveIn, ""); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	res := newSubstarResult(out)
	err = d.session.Submit(ctx, op, substarCommand(psf, subtract, leaveIn, out), res)
	d.record(res, err, func(l *Last) { l.Substar = res })
	return res, err
}

// Run writes every queued command. With wait set it blocks until daophot
// has answered all of them.
func (d *Daophot) Run(ctx context.Context, wait bool) error {
	return d.session.Run(ctx, wait)
}

// Wait blocks until daophot has answered every written command.
func (d *Daophot) Wait(ctx context.Context) error {
	return d.session.Wait(ctx)
}

// Clone creates an independent session with a copy of the working area
// and of every queued command. Last carries over: queued results map to
// their copies, answered results are shared.
func (d *Daophot) Clone(ctx context.Context) (*Daophot, error) {
	d.tool.mu.Lock()
	t := &tool{
		image:   d.tool.image,
		options: append(daoopt.Options(nil), d.tool.options...),
	}
	d.tool.mu.Unlock()

	session, remap, err := d.session.Clone(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("daophot: %w", err)
	}
	t.last = d.tool.snapshot().remap(remap)

	return &Daophot{session: session, tool: t, cfg: d.cfg, logger: session.Logger()}, nil
}

// Reset stops daophot. Queued commands stay queued; the next Run starts
// a new process and replays the bootstrap first.
func (d *Daophot) Reset(ctx context.Context) error {
	return d.session.Reset(ctx)
}

// Close sends EXIT and releases the working area.
func (d *Daophot) Close() error {
	return d.session.Close()
}

// CopyIn copies src into the working area as name.
func (d *Daophot) CopyIn(ctx context.Context, src, name string) error {
	return d.session.Area().Copy(ctx, src, name)
}

// LinkIn symlinks src into the working area as name.
func (d *Daophot) LinkIn(ctx context.Context, src, name string) error {
	return d.session.Area().Link(ctx, src, name)
}

// Export copies a working area file to dst once pending commands are
// answered.
func (d *Daophot) Export(ctx context.Context, name, dst string) error {
	if err := d.session.Wait(ctx); err != nil {
		return fmt.Errorf("export %s: %w", name, err)
	}
	return d.session.Area().Export(name, dst)
}

// ExportLink symlinks dst to a working area file.
func (d *Daophot) ExportLink(name, dst string) error {
	return d.session.Area().ExportLink(name, dst)
}

// File returns the absolute path of a working area file.
func (d *Daophot) File(name string) string {
	return d.session.Area().File(name)
}

// AwaitFile blocks until a working area file exists.
func (d *Daophot) AwaitFile(ctx context.Context, name string) error {
	return d.session.Area().WaitForFile(ctx, name)
}

// input stages src (default def). Bare names always refer to the area.
func (d *Daophot) input(ctx context.Context, src, def string) (string, error) {
	canonical := def
	if src != "" && src == filepath.Base(src) {
		canonical = src
	}
	if src == "" && def == "" {
		return "", runner.UsageError("stage input", errors.New("no file given"))
	}
	return d.session.Area().StageInput(ctx, src, canonical)
}

func (d *Daophot) output(ctx context.Context, name, def string) (string, error) {
	if name == "" {
		name = def
	}
	local, _, err := d.session.Area().PrepareOutput(ctx, name)
	return local, err
}

// record stores res in Last unless it never made it into the queue.
func (d *Daophot) record(res interface{ Flushed() bool }, err error, set func(*Last)) {
	if err == nil || res.Flushed() {
		d.tool.update(set)
	}
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

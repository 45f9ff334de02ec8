package daophot

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/randalmurphal/daokit/daoopt"
	"github.com/randalmurphal/daokit/runner"
)

// daophot prints "Command:" when it is ready for the next command. The
// first lines of a block may still carry the previous prompt.
var terminal = runner.Sentinel("Command:", 2)

func command() runner.Buffered {
	return runner.Buffered{Terminal: terminal}
}

// Output patterns.
var (
	pictureSizeRe = regexp.MustCompile(`Picture size:\s+(\d+)\s+(\d+)`)
	skyRe         = regexp.MustCompile(`Sky mode and standard deviation =\s*(-?\d+\.\d+)\s+(-?\d+\.\d+)`)
	meanMedianRe  = regexp.MustCompile(`Clipped mean and median =\s*(-?\d+\.\d+)\s+(-?\d+\.\d+)`)
	pixelsRe      = regexp.MustCompile(`Number of pixels used \(after clip\) =\s*([\d,]+)`)
	starsRe       = regexp.MustCompile(`(\d+)\s+stars`)
	relErrRe      = regexp.MustCompile(`Relative error =\s*(\d+\.\d+)`)
	magLimitRe    = regexp.MustCompile(`Estimated magnitude limit \(Aperture 1\):\s*(-?\d+\.\d+)\s*\+-\s*(\d+\.\d+)`)
	pickRe        = regexp.MustCompile(`(\d+)\s+suitable candidates were found`)
	chiHeaderRe   = regexp.MustCompile(`Chi\s+Parameters`)
	leadNumberRe  = regexp.MustCompile(`^\s*(-?\d+\.\d+)`)
	profileErrRe  = regexp.MustCompile(`(\d+)\s+(\d+\.\d+)\s*([?*]?)`)
)

// OptionsResult is the option listing daophot prints on startup and after
// an OPT command.
type OptionsResult struct {
	runner.Buffered
}

func newOptionsResult() *OptionsResult {
	return &OptionsResult{Buffered: command()}
}

// Clone implements runner.Processor.
func (r *OptionsResult) Clone() runner.Processor { return newOptionsResult() }

// Options returns every listed option in listing order.
func (r *OptionsResult) Options() (daoopt.Options, error) {
	text, err := r.Text()
	if err != nil {
		return nil, err
	}
	opts := daoopt.ParseTable(text)
	// The read noise entry is always listed; without it the listing is broken.
	if _, ok := opts.Get("RE"); !ok {
		return nil, runner.MissingField("options", "RE")
	}
	return opts, nil
}

// Option returns one option value by name (first two letters significant).
func (r *OptionsResult) Option(name string) (float64, error) {
	opts, err := r.Options()
	if err != nil {
		return 0, err
	}
	v, ok := opts.Get(name)
	if !ok {
		return 0, runner.MissingField("options", daoopt.Key(name))
	}
	return v, nil
}

// Check implements the eager-mode result check.
func (r *OptionsResult) Check() error {
	_, err := r.Options()
	return err
}

// AttachResult is the response to ATTACH.
type AttachResult struct {
	runner.Buffered
}

func newAttachResult() *AttachResult {
	return &AttachResult{Buffered: command()}
}

// Clone implements runner.Processor.
func (r *AttachResult) Clone() runner.Processor { return newAttachResult() }

// PictureSize returns the attached image dimensions.
func (r *AttachResult) PictureSize() (x, y int, err error) {
	text, err := r.Text()
	if err != nil {
		return 0, 0, err
	}
	m := pictureSizeRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, runner.MissingField("attach", "picture size")
	}
	x, _ = strconv.Atoi(m[1])
	y, _ = strconv.Atoi(m[2])
	return x, y, nil
}

// Check implements the eager-mode result check.
func (r *AttachResult) Check() error {
	_, _, err := r.PictureSize()
	return err
}

// FindStats are the sky statistics and detections reported by FIND.
type FindStats struct {
	Sky           float64
	SkyDeviation  float64
	Mean          float64
	Median        float64
	Pixels        int
	Stars         int
	RelativeError float64
}

// FindResult is the response to FIND.
type FindResult struct {
	runner.Buffered
	file string
}

func newFindResult(file string) *FindResult {
	return &FindResult{Buffered: command(), file: file}
}

// Clone implements runner.Processor.
func (r *FindResult) Clone() runner.Processor { return newFindResult(r.file) }

// File returns the absolute path of the star list written by FIND.
func (r *FindResult) File() string { return areaFile(&r.Lazy, r.file) }

// Stats parses the FIND report.
func (r *FindResult) Stats() (FindStats, error) {
	text, err := r.Text()
	if err != nil {
		return FindStats{}, err
	}

	var st FindStats
	m := skyRe.FindStringSubmatch(text)
	if m == nil {
		return FindStats{}, runner.MissingField("find", "sky")
	}
	st.Sky = parseFloat(m[1])
	st.SkyDeviation = parseFloat(m[2])

	if m = meanMedianRe.FindStringSubmatch(text); m == nil {
		return FindStats{}, runner.MissingField("find", "mean and median")
	}
	st.Mean = parseFloat(m[1])
	st.Median = parseFloat(m[2])

	if m = pixelsRe.FindStringSubmatch(text); m == nil {
		return FindStats{}, runner.MissingField("find", "pixels")
	}
	st.Pixels, _ = strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))

	if m = starsRe.FindStringSubmatch(text); m == nil {
		return FindStats{}, runner.MissingField("find", "stars")
	}
	st.Stars, _ = strconv.Atoi(m[1])

	if m = relErrRe.FindStringSubmatch(text); m == nil {
		return FindStats{}, runner.MissingField("find", "relative error")
	}
	st.RelativeError = parseFloat(m[1])
	return st, nil
}

// Stars returns the number of stars found.
func (r *FindResult) Stars() (int, error) {
	st, err := r.Stats()
	return st.Stars, err
}

// Check implements the eager-mode result check.
func (r *FindResult) Check() error {
	_, err := r.Stats()
	return err
}

// PhotometryResult is the response to PHOTOMETRY.
type PhotometryResult struct {
	runner.Buffered
	file string
}

func newPhotometryResult(file string) *PhotometryResult {
	return &PhotometryResult{Buffered: command(), file: file}
}

// Clone implements runner.Processor.
func (r *PhotometryResult) Clone() runner.Processor { return newPhotometryResult(r.file) }

// File returns the absolute path of the magnitudes file.
func (r *PhotometryResult) File() string { return areaFile(&r.Lazy, r.file) }

// MagLimit returns the estimated magnitude limit of the first aperture
// and its error.
func (r *PhotometryResult) MagLimit() (limit, limitErr float64, err error) {
	text, err := r.Text()
	if err != nil {
		return 0, 0, err
	}
	m := magLimitRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, runner.MissingField("photometry", "magnitude limit")
	}
	return parseFloat(m[1]), parseFloat(m[2]), nil
}

// Check implements the eager-mode result check.
func (r *PhotometryResult) Check() error {
	_, _, err := r.MagLimit()
	return err
}

// PickResult is the response to PICK.
type PickResult struct {
	runner.Buffered
	file string
}

func newPickResult(file string) *PickResult {
	return &PickResult{Buffered: command(), file: file}
}

// Clone implements runner.Processor.
func (r *PickResult) Clone() runner.Processor { return newPickResult(r.file) }

// File returns the absolute path of the PSF star list.
func (r *PickResult) File() string { return areaFile(&r.Lazy, r.file) }

// Stars returns the number of suitable PSF candidates.
func (r *PickResult) Stars() (int, error) {
	text, err := r.Text()
	if err != nil {
		return 0, err
	}
	m := pickRe.FindStringSubmatch(text)
	if m == nil {
		return 0, runner.MissingField("pick", "candidates")
	}
	n, _ := strconv.Atoi(m[1])
	return n, nil
}

// Check implements the eager-mode result check.
func (r *PickResult) Check() error {
	_, err := r.Stars()
	return err
}

// ProfileError is the fitting error of one PSF star. Flag is "?" or "*"
// for stars daophot marks as suspect or bad.
type ProfileError struct {
	ID    int
	Error float64
	Flag  string
}

// PSFResult is the response to PSF.
type PSFResult struct {
	runner.Buffered
	psf, nei, err string
}

func newPSFResult(psf, nei, errFile string) *PSFResult {
	return &PSFResult{Buffered: command(), psf: psf, nei: nei, err: errFile}
}

// Clone implements runner.Processor.
func (r *PSFResult) Clone() runner.Processor { return newPSFResult(r.psf, r.nei, r.err) }

// File returns the absolute path of the PSF model.
func (r *PSFResult) File() string { return areaFile(&r.Lazy, r.psf) }

// NeighboursFile returns the absolute path of the neighbour list.
func (r *PSFResult) NeighboursFile() string { return areaFile(&r.Lazy, r.nei) }

// ErrorsFile returns the absolute path of the PSF errors file.
func (r *PSFResult) ErrorsFile() string { return areaFile(&r.Lazy, r.err) }

// Chi returns the goodness of fit of the PSF model.
func (r *PSFResult) Chi() (float64, error) {
	text, err := r.Text()
	if err != nil {
		return 0, err
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if !chiHeaderRe.MatchString(line) {
			continue
		}
		for _, next := range lines[i+1:] {
			if m := leadNumberRe.FindStringSubmatch(next); m != nil {
				return parseFloat(m[1]), nil
			}
		}
		break
	}
	return 0, runner.MissingField("psf", "chi")
}

// Errors returns the per-star profile errors in listing order.
func (r *PSFResult) Errors() ([]ProfileError, error) {
	text, err := r.Text()
	if err != nil {
		return nil, err
	}
	_, after, ok := strings.Cut(text, "Profile errors:")
	if !ok {
		return nil, runner.MissingField("psf", "profile errors")
	}

	var out []ProfileError
	for _, line := range strings.Split(after, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(out) > 0 {
				break
			}
			continue
		}
		matches := profileErrRe.FindAllStringSubmatch(line, -1)
		if matches == nil {
			break
		}
		for _, m := range matches {
			id, _ := strconv.Atoi(m[1])
			out = append(out, ProfileError{ID: id, Error: parseFloat(m[2]), Flag: m[3]})
		}
	}
	return out, nil
}

// Check implements the eager-mode result check.
func (r *PSFResult) Check() error {
	_, err := r.Chi()
	return err
}

// SubstarResult is the response to SUBSTAR.
type SubstarResult struct {
	runner.Buffered
	file string
}

func newSubstarResult(file string) *SubstarResult {
	return &SubstarResult{Buffered: command(), file: file}
}

// Clone implements runner.Processor.
func (r *SubstarResult) Clone() runner.Processor { return newSubstarResult(r.file) }

// File returns the absolute path of the subtracted image.
func (r *SubstarResult) File() string { return areaFile(&r.Lazy, r.file) }

// areaFile resolves a local output name against the area of the session
// the result was queued on.
func areaFile(l *runner.Lazy, name string) string {
	if s := l.Session(); s != nil {
		return s.Area().File(name)
	}
	return name
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

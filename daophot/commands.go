package daophot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/randalmurphal/daokit/daoopt"
)

// MaxApertures is the number of aperture radii PHOTOMETRY accepts.
const MaxApertures = 12

func attachCommand(image string) string {
	return fmt.Sprintf("ATTACH %s\n", image)
}

// OPT first asks for an options file; the empty answer switches to
// KEY=value input, ended by an empty line.
func optionsCommand(opts daoopt.Options) string {
	return "OPT\n\n" + opts.Commands() + "\n"
}

func findCommand(averaged, summed int, output string) string {
	return fmt.Sprintf("FIND\n%d,%d\n%s\nyes\n", averaged, summed, output)
}

func photometryCommand(photoOpt string, inner, outer float64, apertures []float64, stars, output string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PHOT\n%s\n", photoOpt)
	if inner != 0 {
		fmt.Fprintf(&sb, "IS=%s\n", formatFloat(inner))
	}
	if outer != 0 {
		fmt.Fprintf(&sb, "OS=%s\n", formatFloat(outer))
	}
	for i, r := range apertures {
		fmt.Fprintf(&sb, "A%X=%s\n", i+1, formatFloat(r))
	}
	fmt.Fprintf(&sb, "\n%s\n%s\n", stars, output)
	return sb.String()
}

func pickCommand(photometry string, stars int, faintest float64, output string) string {
	return fmt.Sprintf("PICK\n%s\n%d,%s\n%s\n", photometry, stars, formatFloat(faintest), output)
}

func psfCommand(photometry, stars, output string) string {
	return fmt.Sprintf("PSF\n%s\n%s\n%s\n", photometry, stars, output)
}

func substarCommand(psf, subtract, leaveIn, output string) string {
	if leaveIn == "" {
		return fmt.Sprintf("SUB\n%s\n%s\nn\n%s\n", psf, subtract, output)
	}
	return fmt.Sprintf("SUB\n%s\n%s\ny\n%s\n%s\n", psf, subtract, leaveIn, output)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

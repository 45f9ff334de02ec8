package daoopt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Input is an option source resolved once, at the call boundary, into an
// ordered Options list.
type Input interface {
	Resolve() (Options, error)
}

// Pairs is an Input of literal options.
type Pairs Options

// Resolve implements Input.
func (p Pairs) Resolve() (Options, error) {
	out := Options(p)
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return append(Options(nil), out...), nil
}

// Single is a Pairs of one option.
func Single(name string, value float64) Pairs {
	return Pairs{{Name: name, Value: value}}
}

// FromMap builds Pairs from a map, ordered by key.
func FromMap(m map[string]float64) Pairs {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make(Pairs, len(names))
	for i, name := range names {
		out[i] = Option{Name: name, Value: m[name]}
	}
	return out
}

// FromFile is an Input read from a "KEY = value" option file.
type FromFile string

// Resolve implements Input.
func (f FromFile) Resolve() (Options, error) {
	file, err := os.Open(string(f))
	if err != nil {
		return nil, fmt.Errorf("read options: %w", err)
	}
	defer file.Close()

	opts, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("read options %s: %w", f, err)
	}
	return opts, nil
}

// Resolve returns the options of in. A nil Input yields no options.
func Resolve(in Input) (Options, error) {
	if in == nil {
		return nil, nil
	}
	return in.Resolve()
}

// Parse reads "KEY = value" lines. Blank lines and lines starting with
// '#' are skipped. A repeated key replaces the earlier value in place.
func Parse(r io.Reader) (Options, error) {
	var out Options
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: missing '=' in %q", lineNo, line)
		}
		name = strings.TrimSpace(name)
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: value of %s: %w", lineNo, name, err)
		}
		out = out.Set(name, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// tableRe matches option listings such as
// "FWHM OF OBJECT =     5.00   THRESHOLD (in sigmas) =     3.50".
var tableRe = regexp.MustCompile(`\b(\w\w)[^=\n]*=\s*(-?[0-9]+\.[0-9]*)`)

// ParseTable extracts every option from a tool's option listing. Keys are
// upper-cased; a key listed twice keeps its last value.
func ParseTable(text string) Options {
	var out Options
	for _, m := range tableRe.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		out = out.Set(strings.ToUpper(m[1]), v)
	}
	return out
}

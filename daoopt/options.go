// Package daoopt holds DAOPHOT-style option lists: ordered pairs of a
// two-letter key and a numeric value, as read from ".opt" files, typed in
// at an OPT prompt, or listed by the tools on startup.
package daoopt

import (
	"fmt"
	"strings"
)

// Option is one named option value. Only the first two letters of Name
// are significant to the tools.
type Option struct {
	Name  string  `json:"name" yaml:"name" toml:"name" jsonschema:"description=Option name; the first two letters are significant"`
	Value float64 `json:"value" yaml:"value" toml:"value"`
}

// Options is an ordered list of options. Order is preserved when
// options are written to a tool.
type Options []Option

// Key returns the significant, upper-cased two-letter key of name.
func Key(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > 2 {
		name = name[:2]
	}
	return strings.ToUpper(name)
}

// Get returns the value of the option whose key matches name.
func (o Options) Get(name string) (float64, bool) {
	key := Key(name)
	for i := len(o) - 1; i >= 0; i-- {
		if Key(o[i].Name) == key {
			return o[i].Value, true
		}
	}
	return 0, false
}

// Set returns o with name set to value, replacing an option with the
// same key in place or appending a new one.
func (o Options) Set(name string, value float64) Options {
	key := Key(name)
	out := make(Options, len(o), len(o)+1)
	copy(out, o)
	for i := range out {
		if Key(out[i].Name) == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, Option{Name: name, Value: value})
}

// Merge returns o overlaid with other; other wins on equal keys.
func (o Options) Merge(other Options) Options {
	out := append(Options(nil), o...)
	for _, opt := range other {
		out = out.Set(opt.Name, opt.Value)
	}
	return out
}

// Keys returns the two-letter keys in order.
func (o Options) Keys() []string {
	keys := make([]string, len(o))
	for i, opt := range o {
		keys[i] = Key(opt.Name)
	}
	return keys
}

// Validate checks that every option has a usable name.
func (o Options) Validate() error {
	for i, opt := range o {
		key := Key(opt.Name)
		if len(key) != 2 {
			return fmt.Errorf("option %d: name %q must have at least two letters", i, opt.Name)
		}
		for _, r := range key {
			if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
				return fmt.Errorf("option %d: name %q must start with two letters or digits", i, opt.Name)
			}
		}
	}
	return nil
}

// Commands renders the options as answers to an OPT prompt, one
// "KEY=value" line each.
func (o Options) Commands() string {
	var sb strings.Builder
	for _, opt := range o {
		fmt.Fprintf(&sb, "%s=%.2f\n", Key(opt.Name), opt.Value)
	}
	return sb.String()
}

// String formats the options as "KEY=value" pairs.
func (o Options) String() string {
	parts := make([]string, len(o))
	for i, opt := range o {
		parts[i] = fmt.Sprintf("%s=%g", Key(opt.Name), opt.Value)
	}
	return strings.Join(parts, " ")
}

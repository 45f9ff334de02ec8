package daoopt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "FITTING RADIUS", want: "FI"},
		{in: "ps", want: "PS"},
		{in: "  ga ", want: "GA"},
		{in: "a", want: "A"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Key(tt.in), "Key(%q)", tt.in)
	}
}

func TestOptions_SetGetMerge(t *testing.T) {
	opts := Options{{Name: "FI", Value: 3}, {Name: "GAIN", Value: 9}}

	v, ok := opts.Get("fitting")
	require.True(t, ok)
	assert.Equal(t, 3.0, v)

	_, ok = opts.Get("PS")
	assert.False(t, ok)

	updated := opts.Set("GA", 10)
	assert.Equal(t, 9.0, opts[1].Value, "Set must not modify the receiver")
	if diff := cmp.Diff(Options{{Name: "FI", Value: 3}, {Name: "GAIN", Value: 10}}, updated); diff != "" {
		t.Errorf("Set() mismatch (-want +got):\n%s", diff)
	}

	merged := opts.Merge(Options{{Name: "PS", Value: 14}, {Name: "FI", Value: 5}})
	if diff := cmp.Diff(Options{{Name: "FI", Value: 5}, {Name: "GAIN", Value: 9}, {Name: "PS", Value: 14}}, merged); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"FI", "GA", "PS"}, merged.Keys())
}

func TestOptions_Commands(t *testing.T) {
	opts := Options{{Name: "FITTING RADIUS", Value: 6}, {Name: "GA", Value: 9.1}, {Name: "WA", Value: -2}}
	assert.Equal(t, "FI=6.00\nGA=9.10\nWA=-2.00\n", opts.Commands())
	assert.Equal(t, "", Options(nil).Commands())
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, Options{{Name: "A1", Value: 3}, {Name: "is", Value: 9}}.Validate())
	assert.Error(t, Options{{Name: "X", Value: 1}}.Validate())
	assert.Error(t, Options{{Name: "=>", Value: 1}}.Validate())
}

func TestParse(t *testing.T) {
	in := `# photometry options
A1 = 3
A2 = 4.5

IS = 9
OS = 14
A1 = 3.5
`
	got, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	want := Options{{Name: "A1", Value: 3.5}, {Name: "A2", Value: 4.5}, {Name: "IS", Value: 9}, {Name: "OS", Value: 14}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "missing equals", in: "FI 3\n"},
		{name: "bad value", in: "FI = three\n"},
		{name: "short name", in: "F = 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestResolve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "my.opt")
	require.NoError(t, os.WriteFile(path, []byte("FI = 5\nPS = 16\n"), 0o644))

	tests := []struct {
		name string
		in   Input
		want Options
	}{
		{name: "nil input", in: nil, want: nil},
		{name: "single", in: Single("PSF RADIUS", 14), want: Options{{Name: "PSF RADIUS", Value: 14}}},
		{name: "pairs", in: Pairs{{Name: "GA", Value: 9}, {Name: "FI", Value: 6}}, want: Options{{Name: "GA", Value: 9}, {Name: "FI", Value: 6}}},
		{name: "map ordered by key", in: FromMap(map[string]float64{"GA": 9, "FI": 6}), want: Options{{Name: "FI", Value: 6}, {Name: "GA", Value: 9}}},
		{name: "file", in: FromFile(path), want: Options{{Name: "FI", Value: 5}, {Name: "PS", Value: 16}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.in)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	_, err := Resolve(FromFile(filepath.Join(t.TempDir(), "missing.opt")))
	assert.Error(t, err)
}

const optionListing = `
      READ NOISE (ADU; 1 frame) =     2.20     GAIN (e-/ADU; 1 frame) =    10.00
 LOW GOOD DATUM (in sigmas) =     7.00  HIGH GOOD DATUM (in ADU) =  32766.50
            FWHM OF OBJECT =     2.50     THRESHOLD (in sigmas) =     4.00
 LS (LOW SHARPNESS CUTOFF) =     0.20  HS (HIGH SHARPNESS CUTOFF) =     1.00
  WATCH PROGRESS =    -2.00     PSF RADIUS =    11.00

 Command:`

func TestParseTable(t *testing.T) {
	got := ParseTable(optionListing)

	want := map[string]float64{
		"RE": 2.2, "GA": 10, "LO": 7, "HI": 32766.5, "FW": 2.5,
		"TH": 4, "LS": 0.2, "HS": 1, "WA": -2, "PS": 11,
	}
	require.Len(t, got, len(want))
	for key, value := range want {
		v, ok := got.Get(key)
		assert.True(t, ok, "key %s", key)
		assert.InDelta(t, value, v, 1e-9, "key %s", key)
	}
	assert.Equal(t, []string{"RE", "GA", "LO", "HI", "FW", "TH", "LS", "HS", "WA", "PS"}, got.Keys())
}

func TestOptions_YAML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Options
	}{
		{
			name: "ordered mapping",
			in:   "opts:\n  PS: 14\n  FI: 3.5\n  GA: 9\n",
			want: Options{{Name: "PS", Value: 14}, {Name: "FI", Value: 3.5}, {Name: "GA", Value: 9}},
		},
		{
			name: "sequence of pairs",
			in:   "opts:\n  - {name: FITTING RADIUS, value: 6}\n  - {name: WA, value: -2}\n",
			want: Options{{Name: "FITTING RADIUS", Value: 6}, {Name: "WA", Value: -2}},
		},
		{
			name: "null",
			in:   "opts: ~\n",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc struct {
				Opts Options `yaml:"opts"`
			}
			require.NoError(t, yaml.Unmarshal([]byte(tt.in), &doc))
			if diff := cmp.Diff(tt.want, doc.Opts); diff != "" {
				t.Errorf("UnmarshalYAML mismatch (-want +got):\n%s", diff)
			}
		})
	}

	var doc struct {
		Opts Options `yaml:"opts"`
	}
	assert.Error(t, yaml.Unmarshal([]byte("opts: 3\n"), &doc))
}

func TestOptions_YAMLRoundTripKeepsOrder(t *testing.T) {
	in := Options{{Name: "WA", Value: -2}, {Name: "FI", Value: 3.5}}
	data, err := yaml.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, "WA: -2\nFI: 3.5\n", string(data))
}

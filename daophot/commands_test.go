package daophot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/daokit/daoopt"
)

func TestCommandTemplates(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "attach",
			got:  attachCommand("i.fits"),
			want: "ATTACH i.fits\n",
		},
		{
			name: "options",
			got:  optionsCommand(daoopt.Options{{Name: "FI", Value: 6}, {Name: "WA", Value: -2}}),
			want: "OPT\n\nFI=6.00\nWA=-2.00\n\n",
		},
		{
			name: "find",
			got:  findCommand(2, 3, "i.coo"),
			want: "FIND\n2,3\ni.coo\nyes\n",
		},
		{
			name: "photometry with defaults",
			got:  photometryCommand("", 0, 0, nil, "i.coo", "i.ap"),
			want: "PHOT\n\n\ni.coo\ni.ap\n",
		},
		{
			name: "photometry with overrides",
			got: photometryCommand("photo.opt", 15, 25.5,
				[]float64{2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12.5}, "i.coo", "x.ap"),
			want: "PHOT\nphoto.opt\nIS=15\nOS=25.5\n" +
				"A1=2\nA2=3\nA3=4\nA4=5\nA5=6\nA6=7\nA7=8\nA8=9\nA9=10\nAA=11\nAB=12.5\n" +
				"\ni.coo\nx.ap\n",
		},
		{
			name: "pick",
			got:  pickCommand("i.ap", 50, 19.5, "i.lst"),
			want: "PICK\ni.ap\n50,19.5\ni.lst\n",
		},
		{
			name: "psf",
			got:  psfCommand("i.ap", "i.lst", "i.psf"),
			want: "PSF\ni.ap\ni.lst\ni.psf\n",
		},
		{
			name: "substar",
			got:  substarCommand("i.psf", "i.nei", "", "is.fits"),
			want: "SUB\ni.psf\ni.nei\nn\nis.fits\n",
		},
		{
			name: "substar leaving stars in",
			got:  substarCommand("i.psf", "i.nei", "i.lst", "is.fits"),
			want: "SUB\ni.psf\ni.nei\ny\ni.lst\nis.fits\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/daokit/daophot"
	"github.com/randalmurphal/daokit/fname"
	"github.com/randalmurphal/daokit/runner"
)

type findFlags struct {
	out      string
	stars    int
	faintest float64
}

func newFindCmd(a *app) *cobra.Command {
	var f findFlags
	cmd := &cobra.Command{
		Use:   "find <image>",
		Short: "Find stars, measure aperture photometry and pick PSF stars",
		Long: `Attach the image, then run FIND, PHOTOMETRY and PICK in one daophot
session and print a summary. With --out the star list, photometry and
PSF star list are copied to the given directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFind(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Directory to copy result files to")
	cmd.Flags().IntVar(&f.stars, "stars", 50, "Number of PSF stars to pick")
	cmd.Flags().Float64Var(&f.faintest, "faintest", 20, "Faintest magnitude considered by PICK")
	return cmd
}

func (a *app) runFind(cmd *cobra.Command, image string, f findFlags) error {
	ctx := cmd.Context()
	cfg := a.cfg.Daophot
	cfg.Mode = runner.ModeEager

	dp, err := daophot.New(ctx,
		daophot.WithConfig(cfg),
		daophot.WithImage(image),
		daophot.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer func() { _ = dp.Close() }()

	find, err := dp.Find(ctx, daophot.FindParams{})
	if err != nil {
		return err
	}
	phot, err := dp.Photometry(ctx, daophot.PhotometryParams{})
	if err != nil {
		return err
	}
	pick, err := dp.Pick(ctx, daophot.PickParams{Stars: f.stars, FaintestMag: f.faintest})
	if err != nil {
		return err
	}

	stats, _ := find.Stats()
	limit, limitErr, _ := phot.MagLimit()
	picked, _ := pick.Stars()

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "stars found:     %d\n", stats.Stars)
	fmt.Fprintf(w, "sky:             %.3f +- %.3f\n", stats.Sky, stats.SkyDeviation)
	fmt.Fprintf(w, "magnitude limit: %.2f +- %.2f\n", limit, limitErr)
	fmt.Fprintf(w, "PSF candidates:  %d\n", picked)

	if f.out == "" {
		return nil
	}
	if err := os.MkdirAll(f.out, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, name := range []string{fname.FoundStars, fname.Photometry, fname.PSFStars} {
		if err := dp.Export(ctx, name, filepath.Join(f.out, name)); err != nil {
			return err
		}
	}
	return nil
}

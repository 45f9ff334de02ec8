package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/daokit/allstar"
	"github.com/randalmurphal/daokit/daoopt"
	"github.com/randalmurphal/daokit/daophot"
	"github.com/randalmurphal/daokit/runner"
)

type psfFlags struct {
	radii    []float64
	parallel int
	allstar  bool
}

func newPSFCmd(a *app) *cobra.Command {
	var f psfFlags
	cmd := &cobra.Command{
		Use:   "psf <image>",
		Short: "Compare PSF models built with different PSF radii",
		Long: `Run FIND, PHOTOMETRY and PICK once, then clone the session for every
--radius and build a PSF in each clone concurrently. Prints the chi of
every model. With --allstar each clone's directory is also fitted by
allstar.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPSF(cmd, args[0], f)
		},
	}
	cmd.Flags().Float64SliceVar(&f.radii, "radius", []float64{12}, "PSF radii to try")
	cmd.Flags().IntVar(&f.parallel, "parallel", 0, "Maximum concurrent sessions (0 for no limit)")
	cmd.Flags().BoolVar(&f.allstar, "allstar", false, "Run allstar on every PSF model")
	return cmd
}

type variant struct {
	radius float64
	dp     *daophot.Daophot
	psf    *daophot.PSFResult
	als    *allstar.Result
}

func (a *app) runPSF(cmd *cobra.Command, image string, f psfFlags) error {
	ctx := cmd.Context()
	if len(f.radii) == 0 {
		return errors.New("at least one --radius is required")
	}

	cfg := a.cfg.Daophot
	cfg.Mode = runner.ModeBatch
	base, err := daophot.New(ctx,
		daophot.WithConfig(cfg),
		daophot.WithImage(image),
		daophot.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer func() { _ = base.Close() }()

	if _, err := base.Find(ctx, daophot.FindParams{}); err != nil {
		return err
	}
	if _, err := base.Photometry(ctx, daophot.PhotometryParams{}); err != nil {
		return err
	}
	if _, err := base.Pick(ctx, daophot.PickParams{}); err != nil {
		return err
	}
	if err := base.Run(ctx, true); err != nil {
		return err
	}

	group := runner.NewGroup(f.parallel)
	defer func() { _ = group.Close() }()

	variants := make([]*variant, 0, len(f.radii))
	for _, r := range f.radii {
		dp, err := base.Clone(ctx)
		if err != nil {
			return err
		}
		if err := group.Add(dp.Session()); err != nil {
			_ = dp.Close()
			return err
		}
		if _, err := dp.SetOptions(ctx, daoopt.Single("PS", r)); err != nil {
			return err
		}
		psf, err := dp.PSF(ctx, daophot.PSFParams{})
		if err != nil {
			return err
		}
		variants = append(variants, &variant{radius: r, dp: dp, psf: psf})
	}

	a.logger.Info("building PSF models", slog.Int("variants", len(variants)))
	if err := group.Run(ctx); err != nil {
		return err
	}

	if f.allstar {
		if err := a.fitAll(cmd, variants, f.parallel); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	for _, v := range variants {
		chi, err := v.psf.Chi()
		if err != nil {
			fmt.Fprintf(w, "PSF radius %5.2f: %v\n", v.radius, err)
			continue
		}
		line := fmt.Sprintf("PSF radius %5.2f: chi %.4f", v.radius, chi)
		if v.als != nil {
			if stars, err := v.als.Stars(); err == nil {
				line += fmt.Sprintf(", allstar %d stars", stars)
			}
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

// fitAll runs allstar concurrently in every variant's directory.
func (a *app) fitAll(cmd *cobra.Command, variants []*variant, parallel int) error {
	ctx := cmd.Context()
	group := runner.NewGroup(parallel)
	defer func() { _ = group.Close() }()

	cfg := a.cfg.Allstar
	cfg.Mode = runner.ModeBatch
	for _, v := range variants {
		als, err := allstar.New(ctx,
			allstar.WithConfig(cfg),
			allstar.WithDir(v.dp.Dir()),
			allstar.WithLogger(a.logger))
		if err != nil {
			return err
		}
		if err := group.Add(als.Session()); err != nil {
			_ = als.Close()
			return err
		}
		if v.als, err = als.Fit(ctx, allstar.Params{}); err != nil {
			return err
		}
	}
	return group.Run(ctx)
}

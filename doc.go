// Package daokit automates the DAOPHOT II family of interactive
// photometry programs by driving them as child processes.
//
// The work is split across packages:
//
//   - runner: command queue, lazy output chain, process session, fan-out
//   - workdir: working directory staging, export, cloning and file waits
//   - daoopt: ordered option lists and option file parsing
//   - daophot: the daophot session with typed command results
//   - allstar: the one-shot allstar session
//   - config: YAML, TOML and JSON configuration files
//   - fname: canonical short file names
//
// # Quick Start
//
// Eager mode, every call returns a checked result:
//
//	dp, err := daophot.New(ctx, daophot.WithImage("ngc6871.fits"))
//	if err != nil {
//	    return err
//	}
//	defer dp.Close()
//	find, _ := dp.Find(ctx, daophot.FindParams{})
//	stars, _ := find.Stars()
//
// Batch mode with a clone per PSF radius:
//
//	dp, _ := daophot.New(ctx, daophot.WithBatch(), daophot.WithImage(img))
//	dp.Find(ctx, daophot.FindParams{})
//	dp.Photometry(ctx, daophot.PhotometryParams{})
//	dp.Pick(ctx, daophot.PickParams{})
//	dp.Run(ctx, true)
//
//	group := runner.NewGroup(0)
//	for _, r := range []float64{12, 14, 16} {
//	    c, _ := dp.Clone(ctx)
//	    c.SetOptions(ctx, daoopt.Single("PS", r))
//	    c.PSF(ctx, daophot.PSFParams{})
//	    group.Add(c.Session())
//	}
//	group.Run(ctx)
//
// Allstar on a finished daophot directory:
//
//	als, _ := allstar.New(ctx, allstar.WithDir(dp.Dir()))
//	res, _ := als.Fit(ctx, allstar.Params{})
package daokit

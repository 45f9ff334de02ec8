// Package workdir manages the isolated directory a child tool works in.
//
// Interactive photometry tools read and write files relative to their
// current directory and keep file names in small fixed-size buffers. An
// Area gives every session its own directory and stages inputs into it
// under short canonical names (symlinked or copied), so the command text
// written to the tool never carries a long path.
//
// # Usage
//
//	area, err := workdir.New()
//	if err != nil {
//	    return err
//	}
//	defer area.Close()
//
//	local, err := area.StageInput(ctx, "/data/night1/ngc6871.fits", "i.fits")
//	// local == "i.fits"
//
//	if err := area.Export("i.coo", "/data/night1/ngc6871.coo"); err != nil {
//	    return err
//	}
//
// # Synchronization
//
// A session installs a barrier with SetBarrier. Every call that changes
// the directory runs the barrier first, which lets the session flush and
// finish its pending commands before files the tool may be reading are
// replaced. Mutations also hold an exclusive file lock inside the
// directory, so two sessions that share one external directory never
// interleave their staging.
package workdir

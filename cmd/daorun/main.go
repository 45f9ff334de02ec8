// Command daorun runs common DAOPHOT pipelines.
//
//	daorun find frame.fits --out results/
//	daorun psf frame.fits --radius 12,14,16 --allstar
//	daorun schema > daokit.schema.json
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Package fname lists the canonical short file names used inside a
// working area. The tools read names into small fixed buffers, so inputs
// are staged under these names and outputs are produced under them.
package fname

const (
	Image           = "i.fits"  // Attached image
	FoundStars      = "i.coo"   // FIND output
	Photometry      = "i.ap"    // PHOTOMETRY output
	PSFStars        = "i.lst"   // PICK output
	PSF             = "i.psf"   // PSF model
	Neighbours      = "i.nei"   // PSF neighbour list
	PSFErrors       = "i.err"   // PSF fitting errors
	AllstarResults  = "i.als"   // ALLSTAR output
	SubtractedImage = "is.fits" // Image with stars subtracted

	DaophotOpt = "daophot.opt"
	PhotoOpt   = "photo.opt"
	AllstarOpt = "allstar.opt"
)

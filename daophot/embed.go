package daophot

import _ "embed"

// Default option files, written into a working area that has none.
var (
	//go:embed opt/daophot.opt
	defaultDaophotOpt []byte

	//go:embed opt/photo.opt
	defaultPhotoOpt []byte
)

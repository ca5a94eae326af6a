package dataset

import "errors"

var (
	// ErrNotFound reports an identifier that matched neither the catalog nor
	// the filesystem.
	ErrNotFound = errors.New("dataset not found")

	// ErrLoad reports a source that exists but could not be read or parsed
	// as tabular data.
	ErrLoad = errors.New("dataset load failed")
)

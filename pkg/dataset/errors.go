package dataset

import (
	"errors"

	"hsibiopsy/pkg/hsi"
)

// Construction errors are fatal: Open returns no dataset. Access errors
// concern one lookup and leave the dataset usable.
var (
	// ErrConfiguration is returned when the data directory or the metadata
	// table is missing, unreadable or empty.
	ErrConfiguration = errors.New("dataset configuration error")

	// ErrIndexBuild is returned when a cube file name cannot be parsed or two
	// files resolve to the same combined identifier.
	ErrIndexBuild = errors.New("dataset index build error")

	// ErrSampleNotFound is returned when no entry matches a combined
	// identifier or a patient and field of view.
	ErrSampleNotFound = errors.New("sample not found")

	// ErrIndexOutOfRange is returned by positional access outside
	// [0, Len()).
	ErrIndexOutOfRange = errors.New("sample index out of range")

	// ErrDataUnavailable is returned when an indexed cube cannot be loaded.
	ErrDataUnavailable = hsi.ErrUnavailable
)

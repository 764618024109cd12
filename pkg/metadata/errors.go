package metadata

import "errors"

var (
	// ErrInvalidTable is returned when the metadata file cannot be read or
	// does not have the required key column.
	ErrInvalidTable = errors.New("invalid metadata table")

	// ErrUnknownColumn is returned when a column lookup names a column that
	// is not in the table.
	ErrUnknownColumn = errors.New("unknown metadata column")
)

package metadata

import "encoding/json"

// Metadata is the result of joining a sample to the metadata table. It is
// either present, carrying the patient's row, or absent. The zero value is
// absent.
type Metadata struct {
	row *Row
}

// Present wraps a row. A nil row yields an absent value.
func Present(row *Row) Metadata {
	return Metadata{row: row}
}

// Absent returns the value used when a patient has no metadata row.
func Absent() Metadata {
	return Metadata{}
}

// Row returns the joined row and whether it exists.
func (m Metadata) Row() (*Row, bool) {
	return m.row, m.row != nil
}

// IsPresent reports whether a row was found.
func (m Metadata) IsPresent() bool {
	return m.row != nil
}

func (m Metadata) String() string {
	if m.row == nil {
		return "<absent>"
	}
	return m.row.String()
}

// MarshalJSON encodes a present row as an object of column values and an
// absent one as null.
func (m Metadata) MarshalJSON() ([]byte, error) {
	if m.row == nil {
		return []byte("null"), nil
	}
	return json.Marshal(m.row.Map())
}

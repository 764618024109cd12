package dataset

import (
	"fmt"
	"sort"
)

type patientFOV struct {
	patientID string
	fov       int
}

// Index is the ordered, read-only collection of entries together with the
// lookup tables built from it. Every entry appears once in the primary
// sequence and once in each lookup table.
type Index struct {
	entries         []Entry
	byCombinedID    map[string]int
	byPatient       map[string][]int // positions, ascending FOV
	byPatientAndFOV map[patientFOV]int
}

// NewIndex validates entries and builds the lookup tables. Entries are
// ordered by combined identifier; the input slice is not modified.
func NewIndex(entries []Entry) (*Index, error) {
	idx := &Index{
		entries:         make([]Entry, len(entries)),
		byCombinedID:    make(map[string]int, len(entries)),
		byPatient:       make(map[string][]int),
		byPatientAndFOV: make(map[patientFOV]int, len(entries)),
	}
	copy(idx.entries, entries)

	sort.SliceStable(idx.entries, func(i, j int) bool {
		return idx.entries[i].CombinedID < idx.entries[j].CombinedID
	})

	for i, e := range idx.entries {
		if !validPatientID(e.PatientID) {
			return nil, fmt.Errorf("%w: entry %s has invalid patient id %q", ErrIndexBuild, e.FilePath, e.PatientID)
		}
		if e.FOV < 0 {
			return nil, fmt.Errorf("%w: entry %s has negative field of view %d", ErrIndexBuild, e.FilePath, e.FOV)
		}
		if want := CombinedID(e.PatientID, e.FOV); e.CombinedID != want {
			return nil, fmt.Errorf("%w: entry %s has combined id %q, expected %q", ErrIndexBuild, e.FilePath, e.CombinedID, want)
		}
		if prev, dup := idx.byCombinedID[e.CombinedID]; dup {
			return nil, fmt.Errorf("%w: %s and %s both resolve to combined id %s",
				ErrIndexBuild, idx.entries[prev].FilePath, e.FilePath, e.CombinedID)
		}

		idx.byCombinedID[e.CombinedID] = i
		idx.byPatientAndFOV[patientFOV{e.PatientID, e.FOV}] = i
		idx.byPatient[e.PatientID] = append(idx.byPatient[e.PatientID], i)
	}

	for _, positions := range idx.byPatient {
		sort.Slice(positions, func(a, b int) bool {
			return idx.entries[positions[a]].FOV < idx.entries[positions[b]].FOV
		})
	}

	return idx, nil
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// At returns the entry at position i.
func (idx *Index) At(i int) (Entry, bool) {
	if i < 0 || i >= len(idx.entries) {
		return Entry{}, false
	}
	return idx.entries[i], true
}

// Lookup finds the entry with the given combined identifier.
func (idx *Index) Lookup(combinedID string) (Entry, bool) {
	i, ok := idx.byCombinedID[combinedID]
	if !ok {
		return Entry{}, false
	}
	return idx.entries[i], true
}

// Patient returns the entries of a patient in ascending FOV order.
func (idx *Index) Patient(patientID string) []Entry {
	positions := idx.byPatient[patientID]
	out := make([]Entry, len(positions))
	for i, p := range positions {
		out[i] = idx.entries[p]
	}
	return out
}

// PatientAndFOV finds the entry of one field of view of a patient.
func (idx *Index) PatientAndFOV(patientID string, fov int) (Entry, bool) {
	i, ok := idx.byPatientAndFOV[patientFOV{patientID, fov}]
	if !ok {
		return Entry{}, false
	}
	return idx.entries[i], true
}

// Entries returns a copy of the primary sequence.
func (idx *Index) Entries() []Entry {
	out := make([]Entry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// Patients returns the sorted identifiers of every patient with at least one
// entry.
func (idx *Index) Patients() []string {
	out := make([]string, 0, len(idx.byPatient))
	for p := range idx.byPatient {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

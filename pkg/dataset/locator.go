package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultPattern is the HyperProbe cube file grammar:
//
//	HyperProbe1.1_Biopsy_S<n>.<m>[_FOV<k>][_BIS].mat
//
// The first group is the patient identifier, the optional second group the
// field of view.
var DefaultPattern = regexp.MustCompile(`^HyperProbe1\.1_Biopsy_(S\d+\.\d+)(?:_FOV(\d+))?(?:_BIS)?\.mat$`)

// CubeExtension marks the files a Locator is responsible for.
const CubeExtension = ".mat"

// Locator discovers cube files in a data directory.
type Locator struct {
	// Pattern must match every cube file name. Its first submatch is the
	// patient identifier and its optional second submatch the FOV.
	Pattern *regexp.Regexp

	// DefaultFOV is used when a file name carries no FOV.
	DefaultFOV int
}

// NewLocator returns a locator for the HyperProbe naming grammar.
func NewLocator() *Locator {
	return &Locator{
		Pattern:    DefaultPattern,
		DefaultFOV: 1,
	}
}

// ParseName extracts the patient identifier and FOV from a cube file name.
func (l *Locator) ParseName(name string) (patientID string, fov int, err error) {
	m := l.Pattern.FindStringSubmatch(name)
	if m == nil || len(m) < 2 {
		return "", 0, fmt.Errorf("%w: %q does not match %s", ErrIndexBuild, name, l.Pattern)
	}

	patientID = strings.TrimSpace(m[1])
	fov = l.DefaultFOV
	if len(m) > 2 && m[2] != "" {
		fov, err = strconv.Atoi(m[2])
		if err != nil {
			return "", 0, fmt.Errorf("%w: %q: field of view: %w", ErrIndexBuild, name, err)
		}
	}

	return patientID, fov, nil
}

// Locate scans dir and returns one entry per cube file, sorted by combined
// identifier. Files without the cube extension, hidden files and
// subdirectories are ignored; a cube file whose name does not parse or that
// duplicates another file's combined identifier fails the whole scan.
func (l *Locator) Locate(dir string) ([]Entry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: data directory: %w", ErrConfiguration, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: data directory %s is not a directory", ErrConfiguration, dir)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading data directory: %w", ErrConfiguration, err)
	}

	var entries []Entry
	seen := make(map[string]string)
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), CubeExtension) {
			continue
		}

		patientID, fov, err := l.ParseName(name)
		if err != nil {
			return nil, err
		}

		id := CombinedID(patientID, fov)
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s and %s both resolve to combined id %s", ErrIndexBuild, prev, name, id)
		}
		seen[id] = name

		entries = append(entries, Entry{
			PatientID:  patientID,
			FOV:        fov,
			CombinedID: id,
			FilePath:   filepath.Join(dir, name),
		})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no cube files found in %s", ErrConfiguration, dir)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CombinedID < entries[j].CombinedID
	})

	return entries, nil
}

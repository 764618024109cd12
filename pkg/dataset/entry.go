package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// CombinedIDSeparator joins the patient number and the field of view.
const CombinedIDSeparator = "_"

// Entry is one indexed cube file.
type Entry struct {
	// PatientID is the canonical patient identifier, e.g. S1.2
	PatientID string `json:"patientId"`

	// FOV is the field of view number, unique within a patient
	FOV int `json:"fov"`

	// CombinedID is unique across the dataset, e.g. 1.2_3
	CombinedID string `json:"combinedId"`

	// FilePath is the location of the cube file
	FilePath string `json:"filePath"`
}

// CombinedID derives the dataset-wide key of a patient and field of view:
// the patient number without its "S" prefix, the separator, then the FOV.
func CombinedID(patientID string, fov int) string {
	return strings.TrimPrefix(patientID, "S") + CombinedIDSeparator + strconv.Itoa(fov)
}

// ParseCombinedID reverses CombinedID.
func ParseCombinedID(id string) (patientID string, fov int, err error) {
	i := strings.LastIndex(id, CombinedIDSeparator)
	if i <= 0 || i == len(id)-1 {
		return "", 0, fmt.Errorf("invalid combined id %q", id)
	}

	number, fovPart := id[:i], id[i+1:]
	if strings.Contains(number, CombinedIDSeparator) || !validPatientNumber(number) {
		return "", 0, fmt.Errorf("invalid patient number in combined id %q", id)
	}

	fov, err = strconv.Atoi(fovPart)
	if err != nil || fov < 0 || strconv.Itoa(fov) != fovPart {
		return "", 0, fmt.Errorf("invalid field of view in combined id %q", id)
	}

	return "S" + number, fov, nil
}

// validPatientNumber accepts <digits>[.<digits>], the part of a patient
// identifier after its "S" prefix.
func validPatientNumber(s string) bool {
	major, minor, hasMinor := strings.Cut(s, ".")
	if !isDigits(major) {
		return false
	}
	return !hasMinor || isDigits(minor)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// validPatientID reports whether id has the form S<n>[.<m>].
func validPatientID(id string) bool {
	return strings.HasPrefix(id, "S") && validPatientNumber(id[1:])
}

// ParseFOV parses a field of view number given as text, e.g. on a command
// line or in a URL.
func ParseFOV(s string) (int, error) {
	fov, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), "FOV"))
	if err != nil || fov < 0 {
		return 0, fmt.Errorf("invalid field of view %q", s)
	}
	return fov, nil
}

package metadata

import "strings"

// NormalizeID brings a patient identifier into its canonical S<n>.<m> form.
// Whitespace is removed, "S.1.2" becomes "S1.2" and a bare "1.2" gets its
// "S" prefix back.
func NormalizeID(id string) string {
	id = strings.Join(strings.Fields(id), "")
	id = strings.ReplaceAll(id, "S.", "S")
	if id != "" && id[0] >= '0' && id[0] <= '9' {
		id = "S" + id
	}
	return id
}

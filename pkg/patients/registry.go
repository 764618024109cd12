// Package patients enumerates the patient identifiers of a metadata table and
// groups them by a category column such as the tumour type.
package patients

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"hsibiopsy/internal/models"
	"hsibiopsy/pkg/metadata"
)

// DefaultCategoryColumn groups patients by tumour type.
const DefaultCategoryColumn = models.ColumnTumorType

// ErrUnknownPatient is returned by Resolve for names not in the table.
var ErrUnknownPatient = errors.New("unknown patient")

// Registry is an immutable snapshot of the patients in a metadata table.
type Registry struct {
	ids        []string
	known      map[string]struct{}
	byCategory map[string][]string
	categories []string
}

// NewRegistry builds a registry from table. An empty category column uses
// DefaultCategoryColumn. When the table has no such column every patient is
// still enumerated but Types is empty.
func NewRegistry(table *metadata.Table, categoryColumn string) (*Registry, error) {
	if table == nil {
		return nil, errors.New("patients: nil metadata table")
	}
	if categoryColumn == "" {
		categoryColumn = DefaultCategoryColumn
	}

	r := &Registry{
		ids:        table.PatientIDs(),
		known:      make(map[string]struct{}),
		byCategory: make(map[string][]string),
	}
	sort.Strings(r.ids)
	for _, id := range r.ids {
		r.known[id] = struct{}{}
	}

	if !table.HasColumn(categoryColumn) {
		return r, nil
	}

	categories, err := table.Distinct(categoryColumn)
	if err != nil {
		return nil, fmt.Errorf("patients: %w", err)
	}
	r.categories = categories
	for _, c := range categories {
		ids, err := table.Where(categoryColumn, c)
		if err != nil {
			return nil, fmt.Errorf("patients: %w", err)
		}
		sort.Strings(ids)
		r.byCategory[c] = ids
	}
	return r, nil
}

// All returns every patient identifier, sorted.
func (r *Registry) All() []string {
	return append([]string(nil), r.ids...)
}

// Types returns the distinct non-empty categories, sorted.
func (r *Registry) Types() []string {
	return append([]string(nil), r.categories...)
}

// ByType returns the sorted patients of one category. Unknown categories
// yield an empty result.
func (r *Registry) ByType(category string) []string {
	return append([]string{}, r.byCategory[strings.TrimSpace(category)]...)
}

// Contains reports whether id, after normalization, is in the table.
func (r *Registry) Contains(id string) bool {
	_, ok := r.known[metadata.NormalizeID(id)]
	return ok
}

// Resolve maps a user supplied name onto a known identifier. Besides the
// canonical form it accepts the underscore form used for symbolic names, so
// S1_2 resolves to S1.2.
func (r *Registry) Resolve(name string) (string, error) {
	candidates := []string{metadata.NormalizeID(name)}
	if i := strings.LastIndex(name, "_"); i >= 0 {
		dotted := name[:i] + "." + name[i+1:]
		candidates = append(candidates, metadata.NormalizeID(dotted))
	}

	for _, c := range candidates {
		if _, ok := r.known[c]; ok {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPatient, name)
}

// Symbol returns the underscore form of a patient identifier, the inverse of
// Resolve for dotted names.
func Symbol(id string) string {
	return strings.ReplaceAll(metadata.NormalizeID(id), ".", "_")
}

// Package metadata loads the per-patient clinical table that is joined to
// every hyperspectral sample.
//
// The table is read once and never modified afterwards. Its column set is
// open: only the patient identifier column is required.
package metadata

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/csimplestring/go-csv/detector"
	"github.com/gocarina/gocsv"
	"github.com/viant/afs"

	"hsibiopsy/internal/models"
)

// DefaultKeyColumn is the column holding the patient identifier.
const DefaultKeyColumn = models.ColumnID

// BiopsyRecord is the typed view of a row in the processed schema.
type BiopsyRecord = models.BiopsyRecord

// Row is one patient's attributes. Rows are shared, read-only views into
// the table.
type Row struct {
	patientID string
	values    []string
	table     *Table
}

// PatientID returns the normalised patient identifier of the row.
func (r *Row) PatientID() string {
	return r.patientID
}

// Get returns the value of column and whether the column exists.
func (r *Row) Get(column string) (string, bool) {
	i, ok := r.table.columnIndex[column]
	if !ok {
		return "", false
	}
	return r.values[i], true
}

// Columns returns the column names in file order.
func (r *Row) Columns() []string {
	return r.table.Columns()
}

// Values returns a copy of the values in column order.
func (r *Row) Values() []string {
	out := make([]string, len(r.values))
	copy(out, r.values)
	return out
}

// Map returns a copy of the row keyed by column name.
func (r *Row) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for i, c := range r.table.columns {
		out[c] = r.values[i]
	}
	return out
}

func (r *Row) String() string {
	parts := make([]string, len(r.values))
	for i, c := range r.table.columns {
		parts[i] = c + "=" + r.values[i]
	}
	return strings.Join(parts, " ")
}

// Table is the immutable metadata table keyed by patient identifier.
type Table struct {
	keyColumn   string
	columns     []string
	columnIndex map[string]int
	rows        []*Row
	byPatient   map[string]*Row
}

// Option configures Load and Parse.
type Option func(*options)

type options struct {
	keyColumn string
	delimiter rune
	logger    *log.Logger
}

func defaultOptions() *options {
	return &options{
		keyColumn: DefaultKeyColumn,
		logger:    log.Default(),
	}
}

// WithKeyColumn sets the name of the patient identifier column.
func WithKeyColumn(name string) Option {
	return func(o *options) {
		if name != "" {
			o.keyColumn = name
		}
	}
}

// WithDelimiter disables delimiter detection.
func WithDelimiter(r rune) Option {
	return func(o *options) {
		o.delimiter = r
	}
}

// WithLogger sets the logger used for data-quality warnings.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Load reads the table at location, which may be a local path or any URL
// understood by afs.
func Load(ctx context.Context, location string, opts ...Option) (*Table, error) {
	if location == "" {
		return nil, fmt.Errorf("%w: no metadata location given", ErrInvalidTable)
	}

	URL := location
	if !strings.Contains(location, "://") {
		abs, err := filepath.Abs(location)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTable, location, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
		}
		URL = abs
	}

	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidTable, location, err)
	}

	table, err := Parse(bytes.NewReader(data), opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return table, nil
}

// Parse reads a delimited table from r. The first record is the header.
func Parse(r io.Reader, opts ...Option) (*Table, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidTable)
	}

	delimiter := o.delimiter
	if delimiter == 0 {
		delimiter = detectDelimiter(bytes.NewReader(data))
	}

	rdr := csv.NewReader(bytes.NewReader(data))
	rdr.Comma = delimiter
	rdr.LazyQuotes = true
	rdr.FieldsPerRecord = -1

	records, err := rdr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	t := &Table{
		keyColumn:   o.keyColumn,
		columns:     header,
		columnIndex: make(map[string]int, len(header)),
		byPatient:   make(map[string]*Row),
	}
	for i, h := range header {
		if _, exists := t.columnIndex[h]; !exists {
			t.columnIndex[h] = i
		}
	}

	key, ok := t.columnIndex[o.keyColumn]
	if !ok {
		return nil, fmt.Errorf("%w: key column %q not found in header %v", ErrInvalidTable, o.keyColumn, header)
	}

	for lineNo, record := range records[1:] {
		values := make([]string, len(header))
		copy(values, record)

		id := NormalizeID(values[key])
		if id == "" {
			continue
		}
		values[key] = id

		if _, exists := t.byPatient[id]; exists {
			o.logger.Printf("Warning: multiple metadata rows for %s (line %d), using the first\n", id, lineNo+2)
			continue
		}

		row := &Row{patientID: id, values: values, table: t}
		t.rows = append(t.rows, row)
		t.byPatient[id] = row
	}

	return t, nil
}

// FromRecords builds a table from rows of the processed biopsy schema. The
// columns are models.ProcessedColumns and identifiers are normalised as in
// Parse.
func FromRecords(records []BiopsyRecord, opts ...Option) (*Table, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(models.ProcessedColumns); err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := w.Write(r.Values()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return Parse(&buf, append([]Option{WithDelimiter(',')}, opts...)...)
}

// detectDelimiter picks the most likely delimiter, defaulting to a comma.
// Only separators that can delimit a table are accepted: identifiers such as
// S1.2 make '.' look like a candidate.
func detectDelimiter(r io.Reader) rune {
	d := detector.New()
	for _, candidate := range d.DetectDelimiter(r, '"') {
		if len(candidate) == 0 {
			continue
		}
		switch c := rune(candidate[0]); c {
		case ',', '\t', ';', '|':
			return c
		}
	}

	return ','
}

// Lookup joins a patient identifier to its row.
func (t *Table) Lookup(patientID string) Metadata {
	return Present(t.byPatient[NormalizeID(patientID)])
}

// Len returns the number of patients in the table.
func (t *Table) Len() int {
	return len(t.rows)
}

// KeyColumn returns the name of the patient identifier column.
func (t *Table) KeyColumn() string {
	return t.keyColumn
}

// Columns returns the header in file order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columnIndex[name]
	return ok
}

// PatientIDs returns every patient identifier in file order.
func (t *Table) PatientIDs() []string {
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.patientID
	}
	return out
}

// Column returns the values of one column in row order.
func (t *Table) Column(name string) ([]string, error) {
	i, ok := t.columnIndex[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	out := make([]string, len(t.rows))
	for j, r := range t.rows {
		out[j] = r.values[i]
	}
	return out, nil
}

// Distinct returns the sorted set of non-empty values of a column.
func (t *Table) Distinct(name string) ([]string, error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// Where returns the patients whose column equals value, in file order.
// Surrounding whitespace is ignored on both sides.
func (t *Table) Where(name, value string) ([]string, error) {
	i, ok := t.columnIndex[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}

	value = strings.TrimSpace(value)
	var out []string
	for _, r := range t.rows {
		if strings.TrimSpace(r.values[i]) == value {
			out = append(out, r.patientID)
		}
	}
	return out, nil
}

// Records decodes every row into the processed biopsy schema. Columns the
// schema does not know are dropped and missing ones are left empty.
func (t *Table) Records() ([]BiopsyRecord, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.columns); err != nil {
		return nil, err
	}
	for _, r := range t.rows {
		if err := w.Write(r.values); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	records := []BiopsyRecord{}
	if err := gocsv.UnmarshalBytes(buf.Bytes(), &records); err != nil {
		return nil, fmt.Errorf("decoding biopsy records: %w", err)
	}
	return records, nil
}

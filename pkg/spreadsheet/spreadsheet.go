// Package spreadsheet converts the clinical biopsy workbook into the
// processed metadata table read by pkg/metadata.
package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/extrame/xls"
	"github.com/gocarina/gocsv"

	"hsibiopsy/internal/models"
	"hsibiopsy/pkg/metadata"
)

// Sheet is a header row followed by data rows.
type Sheet struct {
	Header []string
	Rows   [][]string
}

// Read dispatches on the file extension: .xls workbooks are read with
// ReadXLS, anything else is treated as a comma separated export.
func Read(path string) (*Sheet, error) {
	if strings.EqualFold(filepath.Ext(path), ".xls") {
		return ReadXLS(path)
	}
	return ReadCSV(path)
}

// ReadXLS reads the first sheet of a legacy Excel workbook.
func ReadXLS(path string) (*Sheet, error) {
	workbook, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, pfx.Err(err)
	}
	if workbook.NumSheets() == 0 {
		return nil, pfx.Err(fmt.Errorf("%s has no sheets", path))
	}

	sheet := workbook.GetSheet(0)
	if sheet == nil {
		return nil, pfx.Err(fmt.Errorf("%s: sheet 0 was nil", path))
	}

	var records [][]string
	for rowID := 0; rowID <= int(sheet.MaxRow); rowID++ {
		row := sheet.Row(rowID)
		if row == nil {
			continue
		}
		record := make([]string, 0, row.LastCol()+1)
		for colID := 0; colID <= row.LastCol(); colID++ {
			record = append(record, row.Col(colID))
		}
		records = append(records, record)
	}

	return newSheet(path, records)
}

// ReadCSV reads a comma separated export of the workbook.
func ReadCSV(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, pfx.Err(err)
	}

	return newSheet(path, records)
}

func newSheet(path string, records [][]string) (*Sheet, error) {
	if len(records) == 0 {
		return nil, pfx.Err(fmt.Errorf("%s has no header row", path))
	}
	return &Sheet{Header: records[0], Rows: records[1:]}, nil
}

// Convert maps the sheet onto the processed biopsy schema. Source columns are
// matched on the exact header text, trailing spaces included. The headers of
// source columns that are absent are returned in missing and the matching
// fields are left empty. Blank rows are dropped.
func Convert(sheet *Sheet) (records []models.BiopsyRecord, missing []string) {
	position := make(map[string]int, len(sheet.Header))
	for i, h := range sheet.Header {
		if _, seen := position[h]; !seen {
			position[h] = i
		}
	}

	source := make([]int, len(models.SpreadsheetColumns))
	for i, c := range models.SpreadsheetColumns {
		p, ok := position[c.Source]
		if !ok {
			p = -1
			missing = append(missing, c.Source)
		}
		source[i] = p
	}

	records = []models.BiopsyRecord{}
	for _, row := range sheet.Rows {
		if blank(row) {
			continue
		}
		values := make(map[string]string, len(source))
		for i, c := range models.SpreadsheetColumns {
			if p := source[i]; p >= 0 && p < len(row) {
				values[c.Target] = row[p]
			}
		}
		records = append(records, models.BiopsyRecord{
			ID:             values[models.ColumnID],
			Age:            values[models.ColumnAge],
			Sex:            values[models.ColumnSex],
			TumorType:      values[models.ColumnTumorType],
			Grading:        values[models.ColumnGrading],
			AdditionalInfo: values[models.ColumnAdditionalInfo],
			Histology:      values[models.ColumnHistology],
			Ki67Index:      values[models.ColumnKi67Index],
		})
	}
	return records, missing
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// WriteCSV writes records with a header in the processed column order.
func WriteCSV(w io.Writer, records []models.BiopsyRecord) error {
	if err := gocsv.Marshal(records, w); err != nil {
		return pfx.Err(err)
	}
	return nil
}

// ConvertFile reads the workbook at in and writes the processed table to out,
// creating its directory. It returns the missing source headers.
func ConvertFile(in, out string) ([]string, error) {
	sheet, err := Read(in)
	if err != nil {
		return nil, err
	}
	records, missing := Convert(sheet)

	// Duplicate sample ids are reported here; readers keep the first row.
	if _, err := metadata.FromRecords(records); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return nil, pfx.Err(err)
	}
	f, err := os.Create(out)
	if err != nil {
		return nil, pfx.Err(err)
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, pfx.Err(err)
	}
	return missing, nil
}

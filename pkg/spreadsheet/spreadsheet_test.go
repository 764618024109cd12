package spreadsheet

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsibiopsy/internal/models"
	"hsibiopsy/pkg/metadata"
)

func workbookSheet() *Sheet {
	return &Sheet{
		Header: []string{"HP Sample", "age", "sex", "Tipo ", "Grading sec WHO 2021", "Surgeon", "Additional info", "HISTHOLOGY ", "ki 67 indice proliferativo "},
		Rows: [][]string{
			{"S.1.2", "54", "M", "glioma", "4", "A", "", "glioblastoma", "30"},
			{"", "", "", "", "", "", "", "", ""},
			{"S1.6", "61", "F", "meningioma", "1", "B", "recurrence, left side", "meningothelial", "2"},
			{"S2.1", "70"},
		},
	}
}

func TestConvert(t *testing.T) {
	records, missing := Convert(workbookSheet())

	assert.Empty(t, missing)
	require.Len(t, records, 3)
	assert.Equal(t, models.BiopsyRecord{
		ID:        "S.1.2",
		Age:       "54",
		Sex:       "M",
		TumorType: "glioma",
		Grading:   "4",
		Histology: "glioblastoma",
		Ki67Index: "30",
	}, records[0])
	assert.Equal(t, "recurrence, left side", records[1].AdditionalInfo)
	assert.Equal(t, models.BiopsyRecord{ID: "S2.1", Age: "70"}, records[2])
}

func TestConvertMissingColumns(t *testing.T) {
	sheet := &Sheet{
		// No trailing spaces, so these do not match the workbook headers.
		Header: []string{"HP Sample", "age", "Tipo", "HISTHOLOGY"},
		Rows:   [][]string{{"S1.2", "54", "glioma", "glioblastoma"}},
	}

	records, missing := Convert(sheet)
	assert.Equal(t, []string{"sex", "Tipo ", "Grading sec WHO 2021", "Additional info", "HISTHOLOGY ", "ki 67 indice proliferativo "}, missing)
	require.Len(t, records, 1)
	assert.Equal(t, models.BiopsyRecord{ID: "S1.2", Age: "54"}, records[0])
}

func TestWriteCSVIsReadableAsMetadata(t *testing.T) {
	records, _ := Convert(workbookSheet())

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t, strings.Join(models.ProcessedColumns, ","), header)

	table, err := metadata.Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"S1.2", "S1.6", "S2.1"}, table.PatientIDs())

	row, ok := table.Lookup("S1.6").Row()
	require.True(t, ok)
	info, _ := row.Get(models.ColumnAdditionalInfo)
	assert.Equal(t, "recurrence, left side", info)
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "biopsy.csv")
	content := "HP Sample,age,sex,Tipo ,Grading sec WHO 2021,Additional info,HISTHOLOGY ,ki 67 indice proliferativo \n" +
		"S1.2,54,M,glioma,4,,glioblastoma,30\n"
	require.NoError(t, os.WriteFile(in, []byte(content), 0644))

	out := filepath.Join(dir, "processed", "biopsy_metadata.csv")
	missing, err := ConvertFile(in, out)
	require.NoError(t, err)
	assert.Empty(t, missing)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t,
		"id,age,sex,type_of_tumor,grading,additional_info,histology,Ki-67-index\nS1.2,54,M,glioma,4,,glioblastoma,30\n",
		string(written))
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Read(filepath.Join(dir, "absent.csv"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err = Read(empty)
	assert.Error(t, err)

	_, err = Read(filepath.Join(dir, "absent.xls"))
	assert.Error(t, err)
}

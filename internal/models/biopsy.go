package models

// BiopsyRecord is one row of the processed biopsy metadata table, in the
// fixed column layout produced from the clinical spreadsheet.
type BiopsyRecord struct {
	// ID is the patient identifier, e.g. S1.2
	ID string `csv:"id"`

	// Age of the patient at biopsy
	Age string `csv:"age"`

	// Sex of the patient
	Sex string `csv:"sex"`

	// TumorType is the tumour category used to group patients
	TumorType string `csv:"type_of_tumor"`

	// Grading is the WHO 2021 grade
	Grading string `csv:"grading"`

	// AdditionalInfo carries free-text clinical notes
	AdditionalInfo string `csv:"additional_info"`

	// Histology is the histological diagnosis
	Histology string `csv:"histology"`

	// Ki67Index is the Ki-67 proliferation index
	Ki67Index string `csv:"Ki-67-index"`
}

// Column names of the processed metadata table.
const (
	ColumnID             = "id"
	ColumnAge            = "age"
	ColumnSex            = "sex"
	ColumnTumorType      = "type_of_tumor"
	ColumnGrading        = "grading"
	ColumnAdditionalInfo = "additional_info"
	ColumnHistology      = "histology"
	ColumnKi67Index      = "Ki-67-index"
)

// ProcessedColumns is the output column order of the processed table.
var ProcessedColumns = []string{
	ColumnID,
	ColumnAge,
	ColumnSex,
	ColumnTumorType,
	ColumnGrading,
	ColumnAdditionalInfo,
	ColumnHistology,
	ColumnKi67Index,
}

// SourceColumn maps a header of the clinical spreadsheet to a processed
// column. Several source headers carry a trailing space.
type SourceColumn struct {
	Source string
	Target string
}

// SpreadsheetColumns lists the spreadsheet headers that are kept, in output
// order.
var SpreadsheetColumns = []SourceColumn{
	{Source: "HP Sample", Target: ColumnID},
	{Source: "age", Target: ColumnAge},
	{Source: "sex", Target: ColumnSex},
	{Source: "Tipo ", Target: ColumnTumorType},
	{Source: "Grading sec WHO 2021", Target: ColumnGrading},
	{Source: "Additional info", Target: ColumnAdditionalInfo},
	{Source: "HISTHOLOGY ", Target: ColumnHistology},
	{Source: "ki 67 indice proliferativo ", Target: ColumnKi67Index},
}

// Values returns the record fields in ProcessedColumns order.
func (r BiopsyRecord) Values() []string {
	return []string{r.ID, r.Age, r.Sex, r.TumorType, r.Grading, r.AdditionalInfo, r.Histology, r.Ki67Index}
}

// biopsy2csv converts the clinical biopsy workbook (.xls or a CSV export of
// it) into the processed metadata table.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"hsibiopsy/pkg/spreadsheet"
)

func main() {
	input := flag.String("input", "", "Biopsy workbook (.xls) or its CSV export")
	output := flag.String("output", "data/processed/biopsy_metadata.csv", "Processed metadata CSV to write")
	flag.Parse()

	if *input == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	missing, err := spreadsheet.ConvertFile(*input, *output)
	if err != nil {
		log.Fatalln(err)
	}

	if len(missing) > 0 {
		log.Printf("Warning: the following columns were not found in the sheet and were left empty: %q\n", missing)
	}
	fmt.Printf("Successfully processed %q and saved to %q\n", *input, *output)
}

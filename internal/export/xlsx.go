package export

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/address-scraper/internal/model"
)

var (
	addressHeader = []string{"Canonical", "Components", "Sources", "Confidence", "Latitude", "Longitude", "Name", "Phone", "Website"}
	failureHeader = []string{"Source", "Kind", "Detail"}
)

// WriteXLSX writes a workbook with an Addresses sheet and a Failures
// sheet.
func WriteXLSX(w io.Writer, report *model.PipelineReport) error {
	f := xlsx.NewFile()

	addrSheet, err := f.AddSheet("Addresses")
	if err != nil {
		return eris.Wrap(err, "export: add addresses sheet")
	}
	addStringRow(addrSheet, addressHeader)
	for _, a := range report.Addresses {
		row := addrSheet.AddRow()
		row.AddCell().SetString(a.Canonical)
		row.AddCell().SetString(formatComponents(a.Components))
		row.AddCell().SetString(strings.Join(a.Sources, ", "))
		row.AddCell().SetFloat(a.Confidence)
		if a.Coordinates != nil {
			row.AddCell().SetFloat(a.Coordinates.Latitude)
			row.AddCell().SetFloat(a.Coordinates.Longitude)
		} else {
			row.AddCell()
			row.AddCell()
		}
		var l model.Listing
		if a.Listing != nil {
			l = *a.Listing
		}
		row.AddCell().SetString(l.Name)
		row.AddCell().SetString(l.Phone)
		row.AddCell().SetString(l.Website)
	}

	failSheet, err := f.AddSheet("Failures")
	if err != nil {
		return eris.Wrap(err, "export: add failures sheet")
	}
	addStringRow(failSheet, failureHeader)
	for _, fl := range report.Failures {
		addStringRow(failSheet, []string{fl.SourceID, string(fl.Kind), fl.Detail})
	}

	return eris.Wrap(f.Write(w), "export: write xlsx")
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// formatComponents renders components as "label=value; ..." in parser
// order.
func formatComponents(components []model.Component) string {
	parts := make([]string, len(components))
	for i, c := range components {
		parts[i] = c.Label + "=" + c.Value
	}
	return strings.Join(parts, "; ")
}

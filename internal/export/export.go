// Package export renders report rows into delimited-text and spreadsheet
// representations. It contains no decision logic; the pipeline decides what
// the rows are, export only decides how they look on disk.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"icsreport/internal/model"
)

// SheetName is the worksheet the XLSX export writes into.
const SheetName = "Accepted Events"

var header = []string{"Event", "Date", "Time", "Duration (hrs)", "Accepted Attendees"}

// WriteCSV writes the report as UTF-8 CSV with a header row.
func WriteCSV(w io.Writer, rows []model.ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Event,
			r.Date,
			r.Time,
			strconv.FormatFloat(r.DurationHours, 'f', -1, 64),
			r.AcceptedAttendees,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the report as a single-sheet workbook.
func WriteXLSX(w io.Writer, rows []model.ReportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{r.Event, r.Date, r.Time, r.DurationHours, r.AcceptedAttendees}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

// Package export renders the current snapshot as an Excel report for
// facility staff who live in spreadsheets anyway.
package export

import (
	"fmt"
	"io"

	"venueboard/internal/models"
	"venueboard/internal/reconcile"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Bookings"

// WriteSnapshot writes an .xlsx report of the snapshot to w: one row
// per record, venue names resolved, display text sanitized.
func WriteSnapshot(w io.Writer, records []models.BookingRecord, venues []models.Venue) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"Date", "Slot", "Venue", "Club", "Event", "Status", "Transaction ID"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "G1", headerStyle)

	names := make(map[string]string, len(venues))
	for _, v := range venues {
		names[v.ID] = v.Name
	}

	for i, rec := range records {
		rowNum := i + 2
		venueName := names[rec.LocationID]
		if venueName == "" {
			venueName = rec.LocationID
		}

		values := []interface{}{
			rec.Date,
			rec.Slot,
			venueName,
			reconcile.Sanitize(rec.Club),
			reconcile.Sanitize(rec.Event),
			rec.Status,
			rec.TransactionID,
		}
		for col, val := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)
			_ = f.SetCellValue(sheetName, cell, val)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "B", 12)
	_ = f.SetColWidth(sheetName, "C", "E", 25)
	_ = f.SetColWidth(sheetName, "F", "G", 20)

	_ = f.DeleteSheet("Sheet1")

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %v", err)
	}
	return nil
}

package sheet

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"venueboard/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	headerTransactionID = "Transaction ID"
	headerStatus        = "Sync Status"
)

// SheetsSource reads and annotates the Google Sheet the intake form
// appends to.
type SheetsSource struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
}

func NewSheetsSource(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*SheetsSource, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	client := config.Client(ctx)

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	return &SheetsSource{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// TestConnection reads the first header cell to verify access.
func (s *SheetsSource) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeRef("A1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// EnsureHeaders writes the helper column headers if they are missing.
func (s *SheetsSource) EnsureHeaders(ctx context.Context) error {
	rangeData := s.rangeRef("G1:H1")
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, rangeData).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header row: %v", err)
	}

	if len(resp.Values) > 0 && len(resp.Values[0]) >= 2 &&
		cellString(resp.Values[0][0]) == headerTransactionID &&
		cellString(resp.Values[0][1]) == headerStatus {
		return nil
	}

	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{{headerTransactionID, headerStatus}},
	}
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write helper headers: %v", err)
	}
	return nil
}

// Rows returns every data row beyond the header, in sheet order.
func (s *SheetsSource) Rows(ctx context.Context) ([]models.Row, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeRef("A2:H")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read data range: %v", err)
	}

	rows := make([]models.Row, 0, len(resp.Values))
	for i, raw := range resp.Values {
		rows = append(rows, models.Row{
			RowNum: i + 2, // data starts at sheet row 2
			Record: recordFromCells(raw),
		})
	}
	return rows, nil
}

// SetTransactionID persists the idempotency key to column G of a row.
func (s *SheetsSource) SetTransactionID(ctx context.Context, rowNum int, id string) error {
	rangeData := s.rangeRef(fmt.Sprintf("G%d", rowNum))
	valueRange := &sheets.ValueRange{Values: [][]interface{}{{id}}}

	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write transaction id row %d: %v", rowNum, err)
	}
	return nil
}

// SetStatus writes the same status to column H of every listed row,
// batched into a single values update.
func (s *SheetsSource) SetStatus(ctx context.Context, rowNums []int, status string) error {
	if len(rowNums) == 0 {
		return nil
	}

	data := make([]*sheets.ValueRange, 0, len(rowNums))
	for _, rowNum := range rowNums {
		data = append(data, &sheets.ValueRange{
			Range:  s.rangeRef(fmt.Sprintf("H%d", rowNum)),
			Values: [][]interface{}{{status}},
		})
	}

	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}
	_, err := s.service.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write status cells: %v", err)
	}
	return nil
}

// Append adds a new intake row at the bottom of the sheet.
func (s *SheetsSource) Append(ctx context.Context, rec models.BookingRecord) error {
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{{
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			rec.Date,
			rec.Slot,
			rec.LocationID,
			rec.Club,
			rec.Event,
			rec.TransactionID,
			rec.Status,
		}},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.rangeRef("A:A"), valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append row: %v", err)
	}
	return nil
}

func (s *SheetsSource) rangeRef(cells string) string {
	return fmt.Sprintf("'%s'!%s", s.sheetName, cells)
}

func recordFromCells(cells []interface{}) models.BookingRecord {
	at := func(i int) string {
		if i < len(cells) {
			return cellString(cells[i])
		}
		return ""
	}

	return models.BookingRecord{
		Timestamp:     parseTimestamp(at(ColTimestamp)),
		Date:          at(ColDate),
		Slot:          at(ColSlot),
		LocationID:    at(ColLocation),
		Club:          at(ColClub),
		Event:         at(ColEvent),
		TransactionID: at(ColTransactionID),
		Status:        at(ColStatus),
	}
}

func cellString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"1/2/2006 15:04:05",
	"02.01.2006 15:04",
}

func parseTimestamp(raw string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

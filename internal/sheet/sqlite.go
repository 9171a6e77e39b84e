package sheet

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"venueboard/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSource mirrors the sheet's column layout in a local SQLite
// table. It backs local development and tests with real SQL semantics.
type SQLiteSource struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sheet_rows (
	row_num        INTEGER PRIMARY KEY AUTOINCREMENT,
	ts             TEXT NOT NULL DEFAULT '',
	date           TEXT NOT NULL DEFAULT '',
	slot           TEXT NOT NULL DEFAULT '',
	location_id    TEXT NOT NULL DEFAULT '',
	club           TEXT NOT NULL DEFAULT '',
	event          TEXT NOT NULL DEFAULT '',
	transaction_id TEXT NOT NULL DEFAULT '',
	sync_status    TEXT NOT NULL DEFAULT ''
);`

func NewSQLiteSource(path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite source: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sheet_rows table: %w", err)
	}

	return &SQLiteSource{db: db}, nil
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// EnsureHeaders is satisfied by the schema; kept for interface parity
// with the sheet backend.
func (s *SQLiteSource) EnsureHeaders(ctx context.Context) error {
	return nil
}

func (s *SQLiteSource) Rows(ctx context.Context) ([]models.Row, error) {
	query := `SELECT row_num, ts, date, slot, location_id, club, event, transaction_id, sync_status
              FROM sheet_rows ORDER BY row_num ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet rows: %w", err)
	}
	defer rows.Close()

	var out []models.Row
	for rows.Next() {
		var r models.Row
		var ts string
		err := rows.Scan(
			&r.RowNum, &ts, &r.Record.Date, &r.Record.Slot, &r.Record.LocationID,
			&r.Record.Club, &r.Record.Event, &r.Record.TransactionID, &r.Record.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sheet row: %w", err)
		}
		r.Record.Timestamp = parseTimestamp(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteSource) SetTransactionID(ctx context.Context, rowNum int, id string) error {
	query := `UPDATE sheet_rows SET transaction_id = ? WHERE row_num = ?`
	res, err := s.db.ExecContext(ctx, query, id, rowNum)
	if err != nil {
		return fmt.Errorf("failed to set transaction id: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("row %d not found", rowNum)
	}
	return nil
}

func (s *SQLiteSource) SetStatus(ctx context.Context, rowNums []int, status string) error {
	if len(rowNums) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(rowNums)), ",")
	query := fmt.Sprintf(`UPDATE sheet_rows SET sync_status = ? WHERE row_num IN (%s)`, placeholders)

	args := make([]interface{}, 0, len(rowNums)+1)
	args = append(args, status)
	for _, n := range rowNums {
		args = append(args, n)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to set sync status: %w", err)
	}
	return nil
}

func (s *SQLiteSource) Append(ctx context.Context, rec models.BookingRecord) error {
	ts := ""
	if !rec.Timestamp.IsZero() {
		ts = rec.Timestamp.Format(time.RFC3339)
	}

	query := `INSERT INTO sheet_rows (ts, date, slot, location_id, club, event, transaction_id, sync_status)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		ts, rec.Date, rec.Slot, rec.LocationID, rec.Club, rec.Event, rec.TransactionID, rec.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to append sheet row: %w", err)
	}
	return nil
}

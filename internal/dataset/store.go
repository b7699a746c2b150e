// Package dataset owns the embedded analytical store backing one session.
// Each store is a private in-memory SQLite database holding the ingested
// capture as a single table; it is never shared between sessions and is
// destroyed exactly once when the session ends.
package dataset

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Store wraps one session's in-memory database. A store with zero columns
// (an empty capture) is valid; all queries return empty results.
type Store struct {
	db       *sql.DB
	columns  []string
	rowCount int

	closeOnce sync.Once
	closeErr  error
}

// Open creates an in-memory database and loads the given rows into a table
// named capture. Column names must already be normalized (lower-case
// alphanumerics and underscores); rows must match the column width.
func Open(columns []string, rows [][]string) (*Store, error) {
	s := &Store{columns: append([]string(nil), columns...), rowCount: len(rows)}
	if len(columns) == 0 {
		return s, nil
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open dataset store: %w", err)
	}
	// An in-memory database exists per connection; a second connection
	// would see an empty schema.
	db.SetMaxOpenConns(1)

	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = fmt.Sprintf("%q TEXT", col)
	}
	if _, err := db.Exec(fmt.Sprintf("CREATE TABLE capture (%s)", strings.Join(defs, ", "))); err != nil {
		db.Close()
		return nil, fmt.Errorf("create capture table: %w", err)
	}

	if err := s.load(db, rows); err != nil {
		db.Close()
		return nil, err
	}

	s.db = db
	return s, nil
}

func (s *Store) load(db *sql.DB, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(s.columns)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO capture VALUES (%s)", placeholders))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(s.columns))
	for _, row := range rows {
		for i := range s.columns {
			args[i] = row[i]
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load: %w", err)
	}
	return nil
}

// Columns returns the column names in capture order.
func (s *Store) Columns() []string {
	return append([]string(nil), s.columns...)
}

// RowCount returns the number of data rows loaded.
func (s *Store) RowCount() int {
	return s.rowCount
}

// SampleRows returns up to n rows in insertion order.
func (s *Store) SampleRows(n int) ([][]string, error) {
	if s.db == nil || n <= 0 {
		return nil, nil
	}

	rows, err := s.db.Query("SELECT * FROM capture ORDER BY rowid LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("sample rows: %w", err)
	}
	defer rows.Close()

	return scanRows(rows, len(s.columns), n)
}

// ForEachRow streams every row to fn in insertion order. Iteration stops on
// the first error fn returns.
func (s *Store) ForEachRow(fn func(cells []string) error) error {
	if s.db == nil {
		return nil
	}

	rows, err := s.db.Query("SELECT * FROM capture ORDER BY rowid")
	if err != nil {
		return fmt.Errorf("scan capture: %w", err)
	}
	defer rows.Close()

	cells := make([]string, len(s.columns))
	dest := make([]any, len(s.columns))
	for i := range cells {
		dest[i] = &cells[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		if err := fn(cells); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close destroys the underlying database. Safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.closeErr = s.db.Close()
			s.db = nil
		}
	})
	return s.closeErr
}

func scanRows(rows *sql.Rows, width, capacity int) ([][]string, error) {
	out := make([][]string, 0, capacity)
	for rows.Next() {
		cells := make([]string, width)
		dest := make([]any, width)
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/HKUDS/AI-Trader-sub000/date"
)

// SQLiteStore is a Store backed by a SQLite database. It holds the
// same write-once rows as the JSONL store: action and positions are
// persisted as their interchange JSON so either backend round-trips
// the other's payloads.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// Append inserts one entry. The primary key on (portfolio, id)
// enforces the global per-portfolio sequence at the storage level.
func (s *SQLiteStore) Append(portfolioID string, e Entry) error {
	action, err := json.Marshal(e.Action)
	if err != nil {
		return fmt.Errorf("encode action: %w", err)
	}
	positions, err := json.Marshal(e.Positions)
	if err != nil {
		return fmt.Errorf("encode positions: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO entries
		(portfolio, date, id, this_action, positions)
		VALUES (?, ?, ?, ?, ?)`,
		portfolioID, e.Date.String(), e.ID, string(action), string(positions),
	)
	return err
}

// ReadAll returns every parseable entry for the portfolio. Rows whose
// JSON payloads do not decode are skipped, matching the JSONL store's
// availability-over-validation stance.
func (s *SQLiteStore) ReadAll(portfolioID string) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT date, id, this_action, positions
		FROM entries
		WHERE portfolio = ?`, portfolioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	skipped := 0
	for rows.Next() {
		var (
			day       string
			id        int64
			action    string
			positions string
		)
		if err := rows.Scan(&day, &id, &action, &positions); err != nil {
			return nil, err
		}

		var e Entry
		e.ID = id
		if e.Date, err = date.Parse(day); err != nil {
			skipped++
			continue
		}
		if err := json.Unmarshal([]byte(action), &e.Action); err != nil {
			skipped++
			continue
		}
		if err := json.Unmarshal([]byte(positions), &e.Positions); err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if skipped > 0 {
		slog.Warn("skipped corrupt ledger rows",
			"portfolio", portfolioID, "skipped", skipped)
	}
	return entries, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

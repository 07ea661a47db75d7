// Package store is the tabular persistence layer: two append-only tables,
// raw notes and processed meetings, whose status columns are the only
// durable coordination state in the pipeline.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Status string

const (
	StatusNew       Status = "New"
	StatusProcessed Status = "Processed"
)

// MeetingFields is the fixed width of a processed meeting row: Date,
// Meeting Name, Accomplishments, Upcoming, Risks, Decisions.
const MeetingFields = 6

// RawNote is one ingested mail thread
type RawNote struct {
	ID         int64
	ReceivedAt time.Time
	Subject    string
	Body       string
	Status     Status
	CreatedAt  time.Time
}

// Meeting is one AI-generated report row, landed by the webhook receiver
type Meeting struct {
	ID              int64
	Date            string
	Name            string
	Accomplishments string
	Upcoming        string
	Risks           string
	Decisions       string
	Status          Status
	CreatedAt       time.Time
}

// Fields returns the six report columns in table order
func (m *Meeting) Fields() [MeetingFields]string {
	return [MeetingFields]string{m.Date, m.Name, m.Accomplishments, m.Upcoming, m.Risks, m.Decisions}
}

// MeetingFromRow builds a Meeting from a scraped row, padding missing
// trailing fields with empty text. Rows are never silently dropped for
// being short; rows wider than six fields are the caller's error to catch.
func MeetingFromRow(row []string) Meeting {
	var padded [MeetingFields]string
	copy(padded[:], row)
	return Meeting{
		Date:            padded[0],
		Name:            padded[1],
		Accomplishments: padded[2],
		Upcoming:        padded[3],
		Risks:           padded[4],
		Decisions:       padded[5],
		Status:          StatusNew,
	}
}

type Counts struct {
	Total     int
	New       int
	Processed int
}

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS raw_notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		received_at DATETIME,
		subject TEXT NOT NULL,
		body TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'New',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_raw_status ON raw_notes(status);

	CREATE TABLE IF NOT EXISTS processed_meetings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT,
		name TEXT,
		accomplishments TEXT,
		upcoming TEXT,
		risks TEXT,
		decisions TEXT,
		status TEXT NOT NULL DEFAULT 'New',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_pm_status ON processed_meetings(status);
	`

	_, err := s.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *Store) AppendRaw(note *RawNote) error {
	if note.Status == "" {
		note.Status = StatusNew
	}

	result, err := s.db.Exec(
		`INSERT INTO raw_notes (received_at, subject, body, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		note.ReceivedAt, note.Subject, note.Body, note.Status, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert raw note: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	note.ID = id
	return nil
}

// ListRaw returns every raw note in insertion order. Order matters: the
// aggregator folds rows oldest-first for chronological cohesion.
func (s *Store) ListRaw() ([]RawNote, error) {
	rows, err := s.db.Query(
		`SELECT id, received_at, subject, body, status, created_at FROM raw_notes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw notes: %w", err)
	}
	defer rows.Close()

	var notes []RawNote
	for rows.Next() {
		var n RawNote
		var receivedAt, createdAt sql.NullTime
		if err := rows.Scan(&n.ID, &receivedAt, &n.Subject, &n.Body, &n.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan raw note: %w", err)
		}
		n.ReceivedAt = receivedAt.Time
		n.CreatedAt = createdAt.Time
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// MarkRawProcessed flips the given raw rows New -> Processed in one
// transaction. The aggregator calls this before the job leaves the host
// side, so a crash during hand-off cannot re-aggregate the same rows.
func (s *Store) MarkRawProcessed(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		fmt.Sprintf(`UPDATE raw_notes SET status = ? WHERE id IN (%s)`, placeholders),
		append([]any{StatusProcessed}, args...)...,
	)
	if err != nil {
		return fmt.Errorf("failed to mark raw notes processed: %w", err)
	}
	return tx.Commit()
}

// AppendMeetings inserts every row in one transaction: either the whole
// batch lands or none of it does.
func (s *Store) AppendMeetings(meetings []Meeting) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO processed_meetings (date, name, accomplishments, upcoming, risks, decisions, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, m := range meetings {
		status := m.Status
		if status == "" {
			status = StatusNew
		}
		if _, err := stmt.Exec(m.Date, m.Name, m.Accomplishments, m.Upcoming, m.Risks, m.Decisions, status, now); err != nil {
			return fmt.Errorf("failed to insert meeting: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListMeetings() ([]Meeting, error) {
	rows, err := s.db.Query(
		`SELECT id, date, name, accomplishments, upcoming, risks, decisions, status, created_at
		 FROM processed_meetings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query meetings: %w", err)
	}
	defer rows.Close()

	var meetings []Meeting
	for rows.Next() {
		var m Meeting
		var createdAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.Date, &m.Name, &m.Accomplishments, &m.Upcoming,
			&m.Risks, &m.Decisions, &m.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		m.CreatedAt = createdAt.Time
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

func (s *Store) countTable(table string) (Counts, error) {
	var c Counts
	rows, err := s.db.Query(fmt.Sprintf(`SELECT status, COUNT(*) FROM %s GROUP BY status`, table))
	if err != nil {
		return c, fmt.Errorf("failed to count %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return c, err
		}
		c.Total += n
		switch status {
		case StatusNew:
			c.New += n
		case StatusProcessed:
			c.Processed += n
		}
	}
	return c, rows.Err()
}

func (s *Store) RawCounts() (Counts, error) {
	return s.countTable("raw_notes")
}

func (s *Store) MeetingCounts() (Counts, error) {
	return s.countTable("processed_meetings")
}

// Truncate deletes all data rows from both tables; the schema stays in
// place so the store is immediately usable again.
func (s *Store) Truncate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"raw_notes", "processed_meetings"} {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	// Reset AUTOINCREMENT counters so insertion order restarts cleanly
	tx.Exec(`DELETE FROM sqlite_sequence WHERE name IN ('raw_notes', 'processed_meetings')`)
	return tx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}

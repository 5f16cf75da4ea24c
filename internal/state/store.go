package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sshwatch/internal/parser"
)

const schema = `
	CREATE TABLE IF NOT EXISTS auth_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		received_at DATETIME NOT NULL,
		log_date TEXT NOT NULL,
		log_time TEXT NOT NULL,
		user TEXT NOT NULL,
		source_ip TEXT NOT NULL,
		port TEXT NOT NULL,
		status TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_auth_events_source_ip ON auth_events(source_ip);`

// ErrNoHistory is returned by OpenReadOnly when the database does not exist.
var ErrNoHistory = errors.New("no history database")

// Record is a stored auth event.
type Record struct {
	ID         int64
	ReceivedAt time.Time
	Event      parser.AuthEvent
}

// SourceCount is a source IP with its number of stored events.
type SourceCount struct {
	IP    string
	Count int
}

// Store persists matched events in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (creating if needed) the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	s, err := NewStoreFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenReadOnly opens an existing database without creating files or schema.
func OpenReadOnly(dbPath string) (*Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s (run watch --history first)", ErrNoHistory, dbPath)
		}
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// NewStoreFromDB wraps an open database and ensures the schema exists.
func NewStoreFromDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Save inserts one event.
func (s *Store) Save(ctx context.Context, evt *parser.AuthEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_events
		(received_at, log_date, log_time, user, source_ip, port, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.now().UTC(), evt.Date, evt.Time, evt.User, evt.SourceIP, evt.Port, string(evt.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// Record implements the monitor sink interface.
func (s *Store) Record(ctx context.Context, evt *parser.AuthEvent) error {
	return s.Save(ctx, evt)
}

// Recent returns up to limit events, newest first. A non-nil status
// restricts the result to that status; StatusNone selects events without
// one.
func (s *Store) Recent(ctx context.Context, limit int, status *parser.Status) ([]Record, error) {
	query := `SELECT id, received_at, log_date, log_time, user, source_ip, port, status FROM auth_events`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var st string
		if err := rows.Scan(&r.ID, &r.ReceivedAt, &r.Event.Date, &r.Event.Time, &r.Event.User, &r.Event.SourceIP, &r.Event.Port, &st); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		r.Event.Status = parser.Status(st)
		records = append(records, r)
	}
	return records, rows.Err()
}

// StatusCounts returns the number of stored events per status. Events
// without a status are counted under "".
func (s *Store) StatusCounts(ctx context.Context) (map[parser.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM auth_events GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[parser.Status]int)
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[parser.Status(st)] = n
	}
	return counts, rows.Err()
}

// TopSources ranks source IPs by number of events with the given status.
func (s *Store) TopSources(ctx context.Context, status parser.Status, limit int) ([]SourceCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_ip, COUNT(*) AS n FROM auth_events
		WHERE status = ?
		GROUP BY source_ip
		ORDER BY n DESC, source_ip ASC
		LIMIT ?`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank sources: %w", err)
	}
	defer rows.Close()

	var out []SourceCount
	for rows.Next() {
		var sc SourceCount
		if err := rows.Scan(&sc.IP, &sc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

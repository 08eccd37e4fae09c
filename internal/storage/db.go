package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/wellsgz/pktmon/internal/types"
)

// schema defines the database tables. Column order matches the CSV headers.
const schema = `
CREATE TABLE IF NOT EXISTS layer2 (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date_time TEXT NOT NULL,
    source_mac TEXT NOT NULL,
    destination_mac TEXT NOT NULL,
    ether_type TEXT NOT NULL,
    frame_size INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS layer3 (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date_time TEXT NOT NULL,
    protocol_name TEXT NOT NULL,
    source_ip TEXT NOT NULL,
    destination_ip TEXT NOT NULL,
    protocol_number INTEGER NOT NULL,
    packet_size INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS layer4 (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date_time TEXT NOT NULL,
    protocol_name TEXT NOT NULL,
    source_ip TEXT NOT NULL,
    source_port INTEGER NOT NULL,
    destination_ip TEXT NOT NULL,
    destination_port INTEGER NOT NULL,
    packet_size INTEGER NOT NULL
);

-- Metadata
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

var insertSQL = map[Layer]string{
	Layer2: `INSERT INTO layer2 (date_time, source_mac, destination_mac, ether_type, frame_size)
		VALUES (?, ?, ?, ?, ?)`,
	Layer3: `INSERT INTO layer3 (date_time, protocol_name, source_ip, destination_ip, protocol_number, packet_size)
		VALUES (?, ?, ?, ?, ?, ?)`,
	Layer4: `INSERT INTO layer4 (date_time, protocol_name, source_ip, source_port, destination_ip, destination_port, packet_size)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
}

// SQLiteSink stores the three layer tables in one SQLite database.
type SQLiteSink struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteSink creates a sink backed by the database at path.
func NewSQLiteSink(path string) *SQLiteSink {
	return &SQLiteSink{path: path}
}

// Path returns the database file path.
func (s *SQLiteSink) Path() string {
	return s.path
}

// Open opens or creates the database and applies the schema.
func (s *SQLiteSink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return errors.New("sqlite sink already open")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	// Every insert is its own transaction and must reach the disk before returning.
	db, err := sql.Open("sqlite", s.path+"?_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("applying schema: %w", err)
	}

	if err := checkSchemaVersion(db); err != nil {
		db.Close()
		return err
	}

	s.db = db
	slog.Info("database opened", "path", s.path)
	return nil
}

// checkSchemaVersion records the schema version in a new database and
// refuses to append to one written with a different layout.
func checkSchemaVersion(db *sql.DB) error {
	var value string
	err := db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = db.Exec("INSERT INTO metadata (key, value) VALUES ('schema_version', ?)",
			strconv.Itoa(SchemaVersion))
		if err != nil {
			return fmt.Errorf("writing schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if value != strconv.Itoa(SchemaVersion) {
		return fmt.Errorf("database schema version %s, want %d", value, SchemaVersion)
	}
	return nil
}

// Write implements Sink.
func (s *SQLiteSink) Write(rec types.PacketRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return errors.New("sqlite sink not open")
	}

	var errs []error
	for _, r := range rows(rec) {
		args := make([]any, len(r.fields))
		for i, f := range r.fields {
			args[i] = f
		}
		if _, err := s.db.Exec(insertSQL[r.layer], args...); err != nil {
			errs = append(errs, fmt.Errorf("inserting into %s: %w", r.layer, err))
		}
	}
	return errors.Join(errs...)
}

// Close implements Sink.
func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	slog.Info("database closed", "path", s.path)
	return err
}

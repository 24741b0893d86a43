package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/plantwise-io/plantmon/internal/lib/logger/sl"
	"github.com/plantwise-io/plantmon/internal/model"
)

// Store is the durable log: full Readings for history plus audit records
// for every notable event. Appends are best-effort from the caller's point
// of view; queries are read-only.
type Store interface {
	AppendReading(ctx context.Context, reading model.Reading) error
	AppendRecord(ctx context.Context, record model.LogRecord) error
	Readings(ctx context.Context, limit, skip int) ([]model.Reading, error)
	Records(ctx context.Context, filter RecordFilter) ([]model.LogRecord, error)
	Count(ctx context.Context) (int64, error)
	Cleanup(ctx context.Context, maxAge time.Duration) error
	Close() error
}

// RecordFilter narrows an audit log query. Zero values mean "no constraint";
// Start and End are inclusive bounds on the record timestamp.
type RecordFilter struct {
	Kind  string
	Limit int
	Skip  int
	Start *time.Time
	End   *time.Time
}

type SQLiteStore struct {
	log *slog.Logger
	db  *sql.DB
}

func NewSQLiteStore(log *slog.Logger, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	st := &SQLiteStore{
		log: log,
		db:  db,
	}

	if err := st.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return st, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
		CREATE TABLE IF NOT EXISTS readings (
			id TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			reading_json TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_readings_timestamp ON readings(timestamp);
		CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			message TEXT NOT NULL,
			payload_json TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_audit_log_kind ON audit_log(kind);
		CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteStore) AppendReading(ctx context.Context, reading model.Reading) error {
	readingJSON, err := reading.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	query := `INSERT INTO readings (id, timestamp, reading_json) VALUES (?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		reading.ID,
		reading.Timestamp.Format(time.RFC3339),
		string(readingJSON),
	)

	if err != nil {
		return fmt.Errorf("failed to store reading: %w", err)
	}

	s.log.Debug("reading stored", slog.String("id", reading.ID))
	return nil
}

func (s *SQLiteStore) AppendRecord(ctx context.Context, record model.LogRecord) error {
	query := `INSERT INTO audit_log (id, kind, timestamp, message, payload_json) VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		string(record.Kind),
		record.Timestamp.Format(time.RFC3339),
		record.Message,
		string(record.Payload),
	)

	if err != nil {
		return fmt.Errorf("failed to store audit record: %w", err)
	}

	s.log.Debug("audit record stored",
		slog.String("id", record.ID),
		slog.String("kind", string(record.Kind)),
	)
	return nil
}

// Readings returns up to limit readings, newest first, skipping skip rows.
// An empty log yields an empty slice.
func (s *SQLiteStore) Readings(ctx context.Context, limit, skip int) ([]model.Reading, error) {
	query := `
		SELECT reading_json
		FROM readings
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := make([]model.Reading, 0)
	for rows.Next() {
		var readingJSON string
		if err := rows.Scan(&readingJSON); err != nil {
			s.log.Error("failed to scan reading row", sl.Err(err))
			continue
		}

		reading, err := model.ReadingFromJSON([]byte(readingJSON))
		if err != nil {
			s.log.Error("failed to unmarshal reading", sl.Err(err))
			continue
		}

		readings = append(readings, *reading)
	}

	return readings, rows.Err()
}

// Records returns audit records matching the filter, newest first.
func (s *SQLiteStore) Records(ctx context.Context, filter RecordFilter) ([]model.LogRecord, error) {
	var conds []string
	var args []any

	if filter.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Start != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, filter.Start.UTC().Format(time.RFC3339))
	}
	if filter.End != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, filter.End.UTC().Format(time.RFC3339))
	}

	query := `SELECT id, kind, timestamp, message, payload_json FROM audit_log`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	records := make([]model.LogRecord, 0)
	for rows.Next() {
		var (
			id, kind, timestampStr, message string
			payloadJSON                     sql.NullString
		)

		if err := rows.Scan(&id, &kind, &timestampStr, &message, &payloadJSON); err != nil {
			s.log.Error("failed to scan audit row", sl.Err(err))
			continue
		}

		timestamp, err := time.Parse(time.RFC3339, timestampStr)
		if err != nil {
			s.log.Error("failed to parse timestamp", sl.Err(err))
			continue
		}

		record := model.LogRecord{
			ID:        id,
			Kind:      model.RecordKind(kind),
			Timestamp: timestamp,
			Message:   message,
		}
		if payloadJSON.Valid && payloadJSON.String != "" {
			record.Payload = json.RawMessage(payloadJSON.String)
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log").Scan(&count)
	return count, err
}

// Cleanup prunes audit records older than maxAge. Readings are the system
// of record for history and are never pruned.
func (s *SQLiteStore) Cleanup(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)

	result, err := s.db.ExecContext(ctx, "DELETE FROM audit_log WHERE timestamp < ?", cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup old audit records: %w", err)
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		s.log.Info("cleaned up old audit records", slog.Int64("deleted", deleted))
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

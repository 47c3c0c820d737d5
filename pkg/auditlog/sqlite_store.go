package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sovereign-systems/constitutional-kernel/pkg/decision"
)

// SQLiteStore persists audit records in an embedded SQLite database. Column
// order mirrors the wire contract (sequence_number, proposal_hash, prev_hash,
// decision_summary, record_hash) so an external verifier can recompute the
// chain straight off the table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if necessary) the audit database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("auditlog: open sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps an existing database handle.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_records (
		sequence_number  INTEGER PRIMARY KEY,
		proposal_hash    TEXT NOT NULL,
		prev_hash        TEXT NOT NULL,
		decision_summary JSON NOT NULL,
		record_hash      TEXT NOT NULL,
		timestamp        DATETIME NOT NULL,
		signature        TEXT NOT NULL DEFAULT ''
	);`
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("auditlog: migrate: %w", err)
	}
	return nil
}

// Persist appends one record. The primary key on sequence_number makes a
// duplicate or out-of-order append a hard error rather than a silent rewrite.
func (s *SQLiteStore) Persist(ctx context.Context, r *Record) error {
	summary, err := json.Marshal(r.Decision)
	if err != nil {
		return fmt.Errorf("auditlog: marshal summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_records (
			sequence_number, proposal_hash, prev_hash, decision_summary, record_hash, timestamp, signature
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Sequence, r.ProposalHash, r.PrevHash, string(summary), r.RecordHash,
		r.Timestamp.UTC().Format(time.RFC3339Nano), r.Signature,
	)
	if err != nil {
		return fmt.Errorf("auditlog: insert seq %d: %w", r.Sequence, err)
	}
	return nil
}

// Load returns all persisted records in sequence order.
func (s *SQLiteStore) Load(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence_number, proposal_hash, prev_hash, decision_summary, record_hash, timestamp, signature
		FROM audit_records
		ORDER BY sequence_number ASC`)
	if err != nil {
		return nil, fmt.Errorf("auditlog: select: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*Record
	for rows.Next() {
		var (
			r       Record
			summary string
			ts      string
		)
		if err := rows.Scan(&r.Sequence, &r.ProposalHash, &r.PrevHash, &summary, &r.RecordHash, &ts, &r.Signature); err != nil {
			return nil, fmt.Errorf("auditlog: scan: %w", err)
		}
		var d decision.Summary
		if err := json.Unmarshal([]byte(summary), &d); err != nil {
			return nil, fmt.Errorf("auditlog: decode summary seq %d: %w", r.Sequence, err)
		}
		r.Decision = d
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("auditlog: parse timestamp seq %d: %w", r.Sequence, err)
		}
		r.Timestamp = parsed
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auditlog: rows: %w", err)
	}
	return records, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

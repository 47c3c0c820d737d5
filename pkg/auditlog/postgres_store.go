package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/sovereign-systems/constitutional-kernel/pkg/decision"
)

// PostgresStore persists audit records in Postgres for multi-node deployments
// that share a single verifier-facing log.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the audit table if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_records (
		sequence_number  BIGINT PRIMARY KEY,
		proposal_hash    TEXT NOT NULL,
		prev_hash        TEXT NOT NULL,
		decision_summary JSONB NOT NULL,
		record_hash      TEXT NOT NULL,
		timestamp        TIMESTAMPTZ NOT NULL,
		signature        TEXT NOT NULL DEFAULT ''
	)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("auditlog: migrate: %w", err)
	}
	return nil
}

// Persist appends one record.
func (s *PostgresStore) Persist(ctx context.Context, r *Record) error {
	summary, err := json.Marshal(r.Decision)
	if err != nil {
		return fmt.Errorf("auditlog: marshal summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_records (sequence_number, proposal_hash, prev_hash, decision_summary, record_hash, timestamp, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.Sequence, r.ProposalHash, r.PrevHash, summary, r.RecordHash, r.Timestamp, r.Signature,
	)
	if err != nil {
		return fmt.Errorf("auditlog: insert seq %d: %w", r.Sequence, err)
	}
	return nil
}

// Load returns all persisted records in sequence order.
func (s *PostgresStore) Load(ctx context.Context) ([]*Record, error) {
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
			summary []byte
		)
		if err := rows.Scan(&r.Sequence, &r.ProposalHash, &r.PrevHash, &summary, &r.RecordHash, &r.Timestamp, &r.Signature); err != nil {
			return nil, fmt.Errorf("auditlog: scan: %w", err)
		}
		var d decision.Summary
		if err := json.Unmarshal(summary, &d); err != nil {
			return nil, fmt.Errorf("auditlog: decode summary seq %d: %w", r.Sequence, err)
		}
		r.Decision = d
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auditlog: rows: %w", err)
	}
	return records, nil
}

// Close releases the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

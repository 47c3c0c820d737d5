package auditlog

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereign-systems/constitutional-kernel/pkg/decision"
)

func TestPostgresStorePersist(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := NewPostgresStore(db)
	r := &Record{
		Sequence:     1,
		ProposalHash: "hash-1",
		PrevHash:     "genesis",
		Decision:     decision.Summary{ProposalID: "p1", Overall: decision.Approve, GatesPassed: 6},
		RecordHash:   "abcd",
		Timestamp:    time.Now().UTC(),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_records")).
		WithArgs(r.Sequence, r.ProposalHash, r.PrevHash, sqlmock.AnyArg(), r.RecordHash, r.Timestamp, r.Signature).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Persist(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := NewPostgresStore(db)
	ts := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"sequence_number", "proposal_hash", "prev_hash", "decision_summary", "record_hash", "timestamp", "signature",
	}).
		AddRow(1, "hash-1", "genesis", []byte(`{"proposal_id":"p1","overall":"APPROVE","gates_passed":6,"energy_consumed":7}`), "aa", ts, "").
		AddRow(2, "hash-2", "aa", []byte(`{"proposal_id":"p2","overall":"REJECT","gates_passed":5,"gates_failed":[1],"energy_consumed":7}`), "bb", ts, "")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT sequence_number, proposal_hash, prev_hash, decision_summary, record_hash, timestamp, signature")).
		WillReturnRows(rows)

	records, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, decision.Approve, records[0].Decision.Overall)
	assert.Equal(t, []int{1}, records[1].Decision.GatesFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS audit_records")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPostgresStore(db)
	assert.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Package auditlog implements the append-only, hash-chained record of every
// evaluation. Append is the single serialization point of the kernel: it
// guarantees a strictly increasing, gap-free sequence even under concurrent
// appends. Records are immutable once appended, so historical reads never
// contend with writers beyond a shared read lock.
package auditlog

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sovereign-systems/constitutional-kernel/pkg/canonical"
	"github.com/sovereign-systems/constitutional-kernel/pkg/decision"
)

var (
	// ErrChainBroken signals tamper or corruption found during verification.
	// It is never raised during normal evaluation; once seen, trust in the
	// log is suspended until manually resolved.
	ErrChainBroken = errors.New("audit chain broken")

	// ErrRecordNotFound is returned for out-of-range sequence queries.
	ErrRecordNotFound = errors.New("audit record not found")
)

// genesisHash anchors the chain before the first record.
const genesisHash = "genesis"

// Record is one link of the audit chain. RecordHash is computed over the
// canonical form of (sequence_number, proposal_hash, prev_hash,
// decision_summary); the timestamp and signature ride alongside but do not
// participate in the hash, so independent verifiers only need the four wire
// fields to recompute the chain.
type Record struct {
	Sequence     uint64           `json:"sequence_number"`
	ProposalHash string           `json:"proposal_hash"`
	PrevHash     string           `json:"prev_hash"`
	Decision     decision.Summary `json:"decision_summary"`
	RecordHash   string           `json:"record_hash"`
	Timestamp    time.Time        `json:"timestamp"`
	Signature    string           `json:"signature,omitempty"`
}

// Store persists records durably. Implementations must be append-only.
type Store interface {
	Persist(ctx context.Context, r *Record) error
	Load(ctx context.Context) ([]*Record, error)
	Close() error
}

// Log is the in-process audit chain, optionally backed by a durable store.
type Log struct {
	mu      sync.RWMutex
	records []*Record
	store   Store
	signKey ed25519.PrivateKey
	clock   func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithStore attaches a durable store. Existing records are loaded on
// construction so the chain resumes where it left off.
func WithStore(s Store) Option {
	return func(l *Log) { l.store = s }
}

// WithSigningKey enables ed25519 signing of each record hash.
func WithSigningKey(key ed25519.PrivateKey) Option {
	return func(l *Log) { l.signKey = key }
}

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(l *Log) { l.clock = clock }
}

// New creates an audit log. When a store is attached, previously persisted
// records are loaded and the chain is verified before accepting new appends.
func New(opts ...Option) (*Log, error) {
	l := &Log{clock: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	if l.store != nil {
		records, err := l.store.Load(context.Background())
		if err != nil {
			return nil, fmt.Errorf("auditlog: load: %w", err)
		}
		l.records = records
		if err := l.verifyLocked(1, uint64(len(records))); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Append adds one record for a completed evaluation. It is atomic: two
// concurrent appends never interleave and sequence numbers are gap-free.
func (l *Log) Append(ctx context.Context, proposalHash string, d *decision.Decision) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := genesisHash
	if n := len(l.records); n > 0 {
		prev = l.records[n-1].RecordHash
	}

	r := &Record{
		Sequence:     uint64(len(l.records)) + 1,
		ProposalHash: proposalHash,
		PrevHash:     prev,
		Decision:     d.Summarize(),
		Timestamp:    l.clock().UTC(),
	}

	hash, err := computeRecordHash(r)
	if err != nil {
		return nil, fmt.Errorf("auditlog: hash: %w", err)
	}
	r.RecordHash = hash

	if l.signKey != nil {
		sig := ed25519.Sign(l.signKey, []byte(r.RecordHash))
		r.Signature = hex.EncodeToString(sig)
	}

	if l.store != nil {
		if err := l.store.Persist(ctx, r); err != nil {
			return nil, fmt.Errorf("auditlog: persist seq %d: %w", r.Sequence, err)
		}
	}

	l.records = append(l.records, r)
	return r, nil
}

// Verify recomputes the hash chain over [from, to] (1-based, inclusive) and
// reports the first broken link as ErrChainBroken.
func (l *Log) Verify(from, to uint64) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.verifyLocked(from, to)
}

func (l *Log) verifyLocked(from, to uint64) error {
	if len(l.records) == 0 {
		return nil
	}
	if from < 1 {
		from = 1
	}
	if to == 0 || to > uint64(len(l.records)) {
		to = uint64(len(l.records))
	}

	for seq := from; seq <= to; seq++ {
		r := l.records[seq-1]
		if r.Sequence != seq {
			return fmt.Errorf("%w: record at position %d carries sequence %d", ErrChainBroken, seq, r.Sequence)
		}

		expectedPrev := genesisHash
		if seq > 1 {
			expectedPrev = l.records[seq-2].RecordHash
		}
		if r.PrevHash != expectedPrev {
			return fmt.Errorf("%w: sequence %d prev_hash mismatch", ErrChainBroken, seq)
		}

		computed, err := computeRecordHash(r)
		if err != nil {
			return fmt.Errorf("%w: sequence %d hash recompute failed: %v", ErrChainBroken, seq, err)
		}
		if computed != r.RecordHash {
			return fmt.Errorf("%w: sequence %d record_hash mismatch (computed %s, stored %s)",
				ErrChainBroken, seq, computed, r.RecordHash)
		}
	}
	return nil
}

// RangeQuery returns records in [from, to] (1-based, inclusive). Appended
// records are immutable, so callers may hold the returned pointers freely.
func (l *Log) RangeQuery(from, to uint64) ([]*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if from < 1 {
		from = 1
	}
	if to == 0 || to > uint64(len(l.records)) {
		to = uint64(len(l.records))
	}
	if from > to || len(l.records) == 0 {
		return nil, ErrRecordNotFound
	}

	out := make([]*Record, to-from+1)
	copy(out, l.records[from-1:to])
	return out, nil
}

// Head returns the most recent record, or nil for an empty log.
func (l *Log) Head() *Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.records) == 0 {
		return nil
	}
	return l.records[len(l.records)-1]
}

// Len returns the number of appended records.
func (l *Log) Len() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.records))
}

// VerifySignature checks a record's ed25519 signature against pub.
func VerifySignature(pub ed25519.PublicKey, r *Record) (bool, error) {
	if r.Signature == "" {
		return false, fmt.Errorf("record %d carries no signature", r.Sequence)
	}
	sig, err := hex.DecodeString(r.Signature)
	if err != nil {
		return false, fmt.Errorf("record %d signature is not hex: %w", r.Sequence, err)
	}
	return ed25519.Verify(pub, []byte(r.RecordHash), sig), nil
}

// computeRecordHash hashes the wire fields in their contractual order.
func computeRecordHash(r *Record) (string, error) {
	hashable := struct {
		Sequence     uint64           `json:"sequence_number"`
		ProposalHash string           `json:"proposal_hash"`
		PrevHash     string           `json:"prev_hash"`
		Decision     decision.Summary `json:"decision_summary"`
	}{
		Sequence:     r.Sequence,
		ProposalHash: r.ProposalHash,
		PrevHash:     r.PrevHash,
		Decision:     r.Decision,
	}
	return canonical.Hash(hashable)
}

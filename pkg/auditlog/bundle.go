package auditlog

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sovereign-systems/constitutional-kernel/pkg/canonical"
)

// Bundle is an exportable slice of the audit chain that independent verifiers
// can check without access to the live log.
type Bundle struct {
	BundleID   string    `json:"bundle_id"`
	CreatedAt  time.Time `json:"created_at"`
	StartSeq   uint64    `json:"start_sequence"`
	EndSeq     uint64    `json:"end_sequence"`
	Records    []*Record `json:"records"`
	ChainHead  string    `json:"chain_head"`
	BundleHash string    `json:"bundle_hash"`
}

// ExportBundle packages the records in [from, to] for external verification.
func (l *Log) ExportBundle(from, to uint64) (*Bundle, error) {
	records, err := l.RangeQuery(from, to)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		BundleID:  uuid.New().String(),
		CreatedAt: l.clock().UTC(),
		StartSeq:  records[0].Sequence,
		EndSeq:    records[len(records)-1].Sequence,
		Records:   records,
		ChainHead: records[len(records)-1].RecordHash,
	}

	hash, err := canonical.Hash(b.Records)
	if err != nil {
		return nil, fmt.Errorf("auditlog: bundle hash: %w", err)
	}
	b.BundleHash = hash
	return b, nil
}

// VerifyBundle checks a bundle's internal chain and content hash.
func VerifyBundle(b *Bundle) error {
	if len(b.Records) == 0 {
		return fmt.Errorf("bundle is empty")
	}

	hash, err := canonical.Hash(b.Records)
	if err != nil {
		return fmt.Errorf("bundle hash recompute failed: %w", err)
	}
	if hash != b.BundleHash {
		return fmt.Errorf("%w: bundle hash mismatch", ErrChainBroken)
	}

	for i, r := range b.Records {
		computed, err := computeRecordHash(r)
		if err != nil {
			return fmt.Errorf("%w: sequence %d hash recompute failed: %v", ErrChainBroken, r.Sequence, err)
		}
		if computed != r.RecordHash {
			return fmt.Errorf("%w: sequence %d record_hash mismatch", ErrChainBroken, r.Sequence)
		}
		if i > 0 && r.PrevHash != b.Records[i-1].RecordHash {
			return fmt.Errorf("%w: sequence %d prev_hash mismatch", ErrChainBroken, r.Sequence)
		}
	}
	return nil
}

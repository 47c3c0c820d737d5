// Package energy provides scoped computational-resource accounting for a
// single evaluation run. Charging is fail-closed: when a charge would exceed
// the cap it is refused in full and the caller records the refusal as a gate
// failure rather than silently aborting.
package energy

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrBudgetExceeded is returned when a charge would push spend past the cap.
var ErrBudgetExceeded = errors.New("energy budget exceeded")

// ErrBudgetClosed is returned when charging a finalized budget.
var ErrBudgetClosed = errors.New("energy budget already closed")

// Budget is a mutable scoped token counter. It is owned exclusively by one
// evaluation; it is never shared across concurrent evaluations, so it carries
// no lock. Charging is monotonic; there are no refunds.
type Budget struct {
	maxTokens int64
	spent     int64
	closed    bool
	openedAt  time.Time
	clock     func() time.Time
}

// Receipt is the immutable finalization record produced by Close.
type Receipt struct {
	ID         string        `json:"id"`
	MaxTokens  int64         `json:"max_tokens"`
	SpentTokens int64        `json:"spent_tokens"`
	Duration   time.Duration `json:"duration"`
	ClosedAt   time.Time     `json:"closed_at"`
}

// Open creates a budget scope with the given cap.
func Open(maxTokens int64) *Budget {
	return OpenWithClock(maxTokens, time.Now)
}

// OpenWithClock creates a budget scope with an injected clock for
// deterministic testing.
func OpenWithClock(maxTokens int64, clock func() time.Time) *Budget {
	if maxTokens < 0 {
		maxTokens = 0
	}
	return &Budget{
		maxTokens: maxTokens,
		openedAt:  clock(),
		clock:     clock,
	}
}

// Charge deducts amount from the remaining budget. When spent+amount would
// exceed the cap, nothing is charged and ErrBudgetExceeded is returned.
func (b *Budget) Charge(amount int64) error {
	if b.closed {
		return ErrBudgetClosed
	}
	if amount < 0 {
		return fmt.Errorf("energy: negative charge %d refused", amount)
	}
	if b.spent+amount > b.maxTokens {
		return fmt.Errorf("%w: spent %d + charge %d > cap %d",
			ErrBudgetExceeded, b.spent, amount, b.maxTokens)
	}
	b.spent += amount
	return nil
}

// Remaining returns the tokens still available.
func (b *Budget) Remaining() int64 {
	return b.maxTokens - b.spent
}

// Spent returns the tokens consumed so far.
func (b *Budget) Spent() int64 {
	return b.spent
}

// Close finalizes the scope and returns a receipt of total spend. It is
// idempotent; the first receipt is authoritative and later calls return an
// equivalent one. Callers defer Close so finalization happens on every exit
// path, including gate failure and escalation.
func (b *Budget) Close() Receipt {
	now := b.clock()
	b.closed = true
	return Receipt{
		ID:          uuid.New().String(),
		MaxTokens:   b.maxTokens,
		SpentTokens: b.spent,
		Duration:    now.Sub(b.openedAt),
		ClosedAt:    now.UTC(),
	}
}

package gate

import (
	"github.com/sovereign-systems/constitutional-kernel/pkg/energy"
	"github.com/sovereign-systems/constitutional-kernel/pkg/evidence"
)

// Context carries the evaluation-scoped state the gates read. The threshold
// fields are an immutable snapshot of the kernel configuration; the budget is
// owned by the current evaluation only.
type Context struct {
	// Enforce selects the short-circuit rule for the hardware gate.
	Enforce bool

	MemoryLimitBytes       int64
	EvidenceScoreThreshold float64
	RAbsoluteThreshold     float64
	EscalationThreshold    float64

	Budget     *energy.Budget
	Aggregator *evidence.Aggregator

	// Escalation decides whether the stake/impact of a proposal forces
	// human judgment. Nil means the default threshold comparison.
	Escalation *EscalationPolicy
}

// charge deducts amount from the evaluation budget and reports whether the
// charge succeeded. A refused charge is surfaced by the calling gate as a
// FAIL result, never as an abort.
func (ec *Context) charge(amount int64) (int64, bool) {
	if ec.Budget == nil {
		return 0, true
	}
	if err := ec.Budget.Charge(amount); err != nil {
		return 0, false
	}
	return amount, true
}

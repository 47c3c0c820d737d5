// Package decision defines the aggregate outcome of one proposal evaluation.
// A Decision is created exactly once per evaluation, is immutable afterwards,
// and is the sole artifact downstream collaborators consume.
package decision

import (
	"time"

	"github.com/sovereign-systems/constitutional-kernel/pkg/gate"
)

// Overall is the aggregated verdict across all gates.
type Overall string

const (
	Approve        Overall = "APPROVE"
	Reject         Overall = "REJECT"
	EscalateHuman  Overall = "ESCALATE_HUMAN"
)

// Decision aggregates every gate result of one evaluation.
type Decision struct {
	ProposalID     string        `json:"proposal_id"`
	Overall        Overall       `json:"overall"`
	GatesPassed    int           `json:"gates_passed"`
	GatesFailed    []int         `json:"gates_failed,omitempty"`
	Results        []gate.Result `json:"results"`
	EnergyConsumed int64         `json:"energy_consumed"`
	Timestamp      time.Time     `json:"timestamp"`
	Mode           string        `json:"mode"`

	// RequiresAck marks an ESCALATE_HUMAN decision that must receive an
	// external acknowledgment before any dependent side effect proceeds.
	RequiresAck bool   `json:"requires_ack,omitempty"`
	Note        string `json:"note,omitempty"`
}

// Summary is the compact decision form persisted into audit records. Its
// fields participate in the record hash, so the shape is part of the wire
// contract for independent verifiers.
type Summary struct {
	ProposalID     string  `json:"proposal_id"`
	Overall        Overall `json:"overall"`
	GatesPassed    int     `json:"gates_passed"`
	GatesFailed    []int   `json:"gates_failed,omitempty"`
	EnergyConsumed int64   `json:"energy_consumed"`
	Note           string  `json:"note,omitempty"`
}

// Aggregate folds gate results into a decision.
//
// Rule: any ESCALATE outcome forces ESCALATE_HUMAN; otherwise any FAIL forces
// REJECT; otherwise APPROVE. Escalation overrides the would-be verdict but
// does not suppress recorded failures.
func Aggregate(proposalID, mode string, results []gate.Result, energyConsumed int64, ts time.Time) *Decision {
	d := &Decision{
		ProposalID:     proposalID,
		Results:        results,
		EnergyConsumed: energyConsumed,
		Timestamp:      ts.UTC(),
		Mode:           mode,
	}

	escalated := false
	for _, r := range results {
		switch r.Outcome {
		case gate.Pass:
			d.GatesPassed++
		case gate.Fail:
			d.GatesFailed = append(d.GatesFailed, r.GateID)
		case gate.Escalate:
			escalated = true
		}
	}

	switch {
	case escalated:
		d.Overall = EscalateHuman
		d.RequiresAck = true
	case len(d.GatesFailed) > 0:
		d.Overall = Reject
	default:
		d.Overall = Approve
	}
	return d
}

// Cancelled builds the partial decision recorded when an evaluation is
// cancelled or times out between gates. Cancellation must not drop audit
// evidence, so the partial gate results are preserved and the overall verdict
// escalates to human judgment.
func Cancelled(proposalID, mode string, results []gate.Result, energyConsumed int64, ts time.Time, note string) *Decision {
	d := Aggregate(proposalID, mode, results, energyConsumed, ts)
	d.Overall = EscalateHuman
	d.RequiresAck = true
	d.Note = note
	return d
}

// Summarize produces the audit-persisted form of the decision.
func (d *Decision) Summarize() Summary {
	return Summary{
		ProposalID:     d.ProposalID,
		Overall:        d.Overall,
		GatesPassed:    d.GatesPassed,
		GatesFailed:    d.GatesFailed,
		EnergyConsumed: d.EnergyConsumed,
		Note:           d.Note,
	}
}

// Package gatekeeper orchestrates one proposal evaluation: it opens an energy
// budget scope, runs the gate pipeline, aggregates the decision, and appends
// exactly one audit record regardless of mode or outcome.
package gatekeeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sovereign-systems/constitutional-kernel/pkg/auditlog"
	"github.com/sovereign-systems/constitutional-kernel/pkg/config"
	"github.com/sovereign-systems/constitutional-kernel/pkg/contract"
	"github.com/sovereign-systems/constitutional-kernel/pkg/decision"
	"github.com/sovereign-systems/constitutional-kernel/pkg/energy"
	"github.com/sovereign-systems/constitutional-kernel/pkg/evidence"
	"github.com/sovereign-systems/constitutional-kernel/pkg/gate"
)

// Mode selects how failures surface to the caller.
type Mode string

const (
	// ModeObserve runs the pipeline and logs; failures never surface.
	ModeObserve Mode = "observe"
	// ModeAdvise is observe with the expectation that the caller branches
	// on Decision.Overall; it still never returns an error.
	ModeAdvise Mode = "advise"
	// ModeEnforce converts a REJECT into a ConstraintViolation error.
	ModeEnforce Mode = "enforce"
)

// ParseMode validates a mode string from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeObserve, ModeAdvise, ModeEnforce:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// ConstraintViolation is the enforce-mode surfacing of a rejected decision.
// It carries the full decision for diagnosis.
type ConstraintViolation struct {
	Decision *decision.Decision
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation: proposal %s rejected (gates failed: %v)",
		e.Decision.ProposalID, e.Decision.GatesFailed)
}

// Clock provides authority time for decisions and audit records. Inject a
// deterministic clock in tests.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Gatekeeper evaluates proposals against the constitution.
type Gatekeeper struct {
	cfg        config.Config
	log        *auditlog.Log
	pipeline   *gate.Pipeline
	aggregator *evidence.Aggregator
	escalation *gate.EscalationPolicy
	clock      Clock
	logger     *slog.Logger
}

// Option configures a Gatekeeper.
type Option func(*Gatekeeper)

// WithClock injects an authority clock.
func WithClock(c Clock) Option {
	return func(g *Gatekeeper) { g.clock = c }
}

// WithLogger injects a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gatekeeper) { g.logger = l }
}

// New creates a Gatekeeper. The configuration is validated and snapshotted;
// later mutation of the caller's copy has no effect.
func New(cfg config.Config, log *auditlog.Log, opts ...Option) (*Gatekeeper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		return nil, fmt.Errorf("gatekeeper: audit log is required")
	}

	escalation, err := gate.NewEscalationPolicy(cfg.EscalationExpr)
	if err != nil {
		return nil, err
	}

	g := &Gatekeeper{
		cfg:        cfg,
		log:        log,
		pipeline:   gate.NewPipeline(),
		aggregator: evidence.NewAggregator(),
		escalation: escalation,
		clock:      wallClock{},
		logger:     slog.Default().With("component", "gatekeeper"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// CheckProposal evaluates one proposal in the given mode.
//
// A malformed proposal fails fast with ErrInvalidProposal before any gate
// runs and before anything is audited. Every evaluation that reaches the
// pipeline appends exactly one audit record, including cancelled ones.
//
// In observe and advise modes the decision is always returned without error.
// In enforce mode a REJECT (including a fatal hardware-gate failure) returns
// the decision wrapped in a ConstraintViolation; an ESCALATE_HUMAN decision
// returns normally with RequiresAck set, and no side effect tied to the
// proposal may proceed until the escalation is acknowledged.
func (g *Gatekeeper) CheckProposal(ctx context.Context, p *contract.Proposal, mode Mode) (*decision.Decision, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil proposal", contract.ErrInvalidProposal)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	proposalHash, err := p.Hash()
	if err != nil {
		return nil, fmt.Errorf("%w: hashing failed: %v", contract.ErrInvalidProposal, err)
	}

	budget := energy.Open(p.EnergyBudgetTokens)
	defer budget.Close()

	ec := &gate.Context{
		Enforce:                mode == ModeEnforce,
		MemoryLimitBytes:       g.cfg.MemoryLimitBytes,
		EvidenceScoreThreshold: g.cfg.EvidenceScoreThreshold,
		RAbsoluteThreshold:     g.cfg.RAbsoluteThreshold,
		EscalationThreshold:    g.cfg.EscalationThreshold,
		Budget:                 budget,
		Aggregator:             g.aggregator,
		Escalation:             g.escalation,
	}

	results, activeGate, runErr := g.pipeline.Run(ctx, p, ec)

	var d *decision.Decision
	if runErr != nil {
		note := fmt.Sprintf("evaluation cancelled before gate %d: %v", activeGate, runErr)
		d = decision.Cancelled(p.ProposalID, string(mode), results, budget.Spent(), g.clock.Now(), note)
	} else {
		d = decision.Aggregate(p.ProposalID, string(mode), results, budget.Spent(), g.clock.Now())
	}

	// The record must land even when the evaluation context was cancelled.
	if _, err := g.log.Append(context.WithoutCancel(ctx), proposalHash, d); err != nil {
		return nil, fmt.Errorf("gatekeeper: audit append: %w", err)
	}

	g.logger.Info("proposal evaluated",
		"proposal_id", p.ProposalID,
		"mode", string(mode),
		"overall", string(d.Overall),
		"gates_passed", d.GatesPassed,
		"energy_consumed", d.EnergyConsumed,
	)

	if mode == ModeEnforce && d.Overall == decision.Reject {
		return d, &ConstraintViolation{Decision: d}
	}
	return d, nil
}

// Config returns the immutable configuration snapshot.
func (g *Gatekeeper) Config() config.Config {
	return g.cfg
}

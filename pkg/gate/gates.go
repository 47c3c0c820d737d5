package gate

import (
	"fmt"

	"github.com/sovereign-systems/constitutional-kernel/pkg/contract"
)

// Gate is one independent constitutional check. Implementations are
// side-effect-free except for charges against the evaluation budget.
type Gate interface {
	ID() int
	Name() string
	Evaluate(p *contract.Proposal, ec *Context) Result
}

// Per-gate energy costs in budget tokens. The evidence gate additionally pays
// per item it aggregates.
const (
	baseGateCost     = 1
	evidenceItemCost = 1
)

// All returns the six gates in their fixed evaluation order.
func All() []Gate {
	return []Gate{
		solvencyGate{},
		varietyGate{},
		hardwareGate{},
		evidenceGate{},
		viabilityPowerGate{},
		escalationGate{},
	}
}

// solvencyGate (1) rejects thermodynamically insolvent proposals.
type solvencyGate struct{}

func (solvencyGate) ID() int      { return 1 }
func (solvencyGate) Name() string { return "thermodynamic_solvency" }

func (g solvencyGate) Evaluate(p *contract.Proposal, ec *Context) Result {
	spent, ok := ec.charge(baseGateCost)
	if !ok {
		return budgetFail(g.ID(), g.Name())
	}
	if p.ENet() <= 0 {
		return fail(g.ID(), g.Name(),
			fmt.Sprintf("thermodynamically insolvent: E_net %.3f <= 0", p.ENet()), spent)
	}
	if p.EInvested >= p.EProduction {
		return fail(g.ID(), g.Name(),
			fmt.Sprintf("thermodynamically insolvent: E_invested %.3f >= E_production %.3f",
				p.EInvested, p.EProduction), spent)
	}
	return pass(g.ID(), g.Name(), spent)
}

// varietyGate (2) requires at least one dissenting model reference.
type varietyGate struct{}

func (varietyGate) ID() int      { return 2 }
func (varietyGate) Name() string { return "cognitive_variety" }

func (g varietyGate) Evaluate(p *contract.Proposal, ec *Context) Result {
	spent, ok := ec.charge(baseGateCost)
	if !ok {
		return budgetFail(g.ID(), g.Name())
	}
	if len(p.DissentingModels) == 0 {
		return fail(g.ID(), g.Name(), "no dissenting model reference declared", spent)
	}
	return pass(g.ID(), g.Name(), spent)
}

// hardwareGate (3) enforces the hard memory ceiling. In enforce mode its
// failure is fatal and short-circuits the pipeline; it is never bypassable.
type hardwareGate struct{}

func (hardwareGate) ID() int      { return 3 }
func (hardwareGate) Name() string { return "hardware_viability" }

func (g hardwareGate) Evaluate(p *contract.Proposal, ec *Context) Result {
	spent, ok := ec.charge(baseGateCost)
	if !ok {
		return budgetFail(g.ID(), g.Name())
	}
	if p.EstimatedMemoryBytes >= ec.MemoryLimitBytes {
		return fail(g.ID(), g.Name(),
			fmt.Sprintf("hard resource limit: estimated %d bytes >= limit %d bytes",
				p.EstimatedMemoryBytes, ec.MemoryLimitBytes), spent)
	}
	return pass(g.ID(), g.Name(), spent)
}

// evidenceGate (4) demands a sufficient weighted score and the phase's
// minimum evidence tier.
type evidenceGate struct{}

func (evidenceGate) ID() int      { return 4 }
func (evidenceGate) Name() string { return "evidence_sufficiency" }

func (g evidenceGate) Evaluate(p *contract.Proposal, ec *Context) Result {
	cost := int64(baseGateCost + evidenceItemCost*len(p.EvidenceItems))
	spent, ok := ec.charge(cost)
	if !ok {
		return budgetFail(g.ID(), g.Name())
	}
	score := ec.Aggregator.Score(p.EvidenceItems, p.Phase)
	if score.Weighted < ec.EvidenceScoreThreshold {
		return fail(g.ID(), g.Name(),
			fmt.Sprintf("weighted evidence score %.3f below threshold %.3f",
				score.Weighted, ec.EvidenceScoreThreshold), spent)
	}
	if !score.MinTierMet {
		return fail(g.ID(), g.Name(),
			fmt.Sprintf("no evidence at or below required tier %d for phase %s",
				p.Phase.RequiredTier(), p.Phase), spent)
	}
	return pass(g.ID(), g.Name(), spent)
}

// viabilityPowerGate (5) blocks VP accrual claims below the R_absolute
// threshold. A proposal under the threshold that does not claim accrual still
// passes; its VP delta is simply zero.
type viabilityPowerGate struct{}

func (viabilityPowerGate) ID() int      { return 5 }
func (viabilityPowerGate) Name() string { return "viability_power" }

func (g viabilityPowerGate) Evaluate(p *contract.Proposal, ec *Context) Result {
	spent, ok := ec.charge(baseGateCost)
	if !ok {
		return budgetFail(g.ID(), g.Name())
	}
	if p.RAbsolute < ec.RAbsoluteThreshold {
		if p.ClaimsVPAccrual {
			return fail(g.ID(), g.Name(),
				fmt.Sprintf("VP accrual claimed with R_absolute %.3f below threshold %.3f",
					p.RAbsolute, ec.RAbsoluteThreshold), spent)
		}
		r := pass(g.ID(), g.Name(), spent)
		r.Message = "VP delta zeroed: R_absolute below threshold"
		return r
	}
	return pass(g.ID(), g.Name(), spent)
}

// escalationGate (6) forces human judgment when the stake/impact predicate
// fires. Its ESCALATE outcome overrides APPROVE/REJECT at aggregation time but
// does not suppress earlier recorded failures.
type escalationGate struct{}

func (escalationGate) ID() int      { return 6 }
func (escalationGate) Name() string { return "human_escalation" }

func (g escalationGate) Evaluate(p *contract.Proposal, ec *Context) Result {
	spent, ok := ec.charge(baseGateCost)
	if !ok {
		return budgetFail(g.ID(), g.Name())
	}

	if ec.Escalation == nil {
		if p.StakeScore >= ec.EscalationThreshold {
			return escalate(g.ID(), g.Name(),
				fmt.Sprintf("stake score %.3f at or above threshold %.3f",
					p.StakeScore, ec.EscalationThreshold), spent)
		}
		return pass(g.ID(), g.Name(), spent)
	}

	force, err := ec.Escalation.Decide(p.StakeScore, p.EntityTrustScore,
		ec.EscalationThreshold, string(p.VSMFunction))
	if err != nil {
		// Fail closed: an erroring predicate lands with a human.
		return escalate(g.ID(), g.Name(),
			fmt.Sprintf("escalation predicate error, forcing human judgment: %v", err), spent)
	}
	if force {
		return escalate(g.ID(), g.Name(),
			fmt.Sprintf("escalation predicate %q fired", ec.Escalation.Expr()), spent)
	}
	return pass(g.ID(), g.Name(), spent)
}

func budgetFail(id int, name string) Result {
	return fail(id, name, "energy budget exceeded", 0)
}

// Package contract defines the thermodynamic contract — the structured
// proposal an autonomous entity submits for constitutional evaluation.
//
// A Proposal is immutable once submitted: the gate pipeline receives it by
// read-only reference and every gate check is a pure function of the proposal
// and the evaluation context.
package contract

import (
	"errors"
	"fmt"

	"github.com/sovereign-systems/constitutional-kernel/pkg/canonical"
)

// ErrInvalidProposal is returned when a proposal fails structural or schema
// validation. It is fatal: the pipeline never starts and nothing is audited.
var ErrInvalidProposal = errors.New("invalid proposal")

// VSMFunction classifies the proposal by viable-system-model function for
// audit purposes.
type VSMFunction string

const (
	VSMOperations   VSMFunction = "A"
	VSMCoordination VSMFunction = "B"
	VSMControl      VSMFunction = "C"
	VSMIntelligence VSMFunction = "D"
	VSMPolicy       VSMFunction = "E"
)

// Phase is the growth stage of the entity population. It determines the
// minimum evidence rigor demanded by the evidence gate.
type Phase string

const (
	PhaseGenesis    Phase = "genesis"
	PhaseAdolescent Phase = "adolescent"
	PhaseMature     Phase = "mature"
	PhaseSystemic   Phase = "systemic"
)

// RequiredTier returns the weakest evidence tier acceptable for the phase.
// Lower numeric tier means stronger evidence.
func (p Phase) RequiredTier() int {
	switch p {
	case PhaseGenesis:
		return 4
	case PhaseAdolescent:
		return 3
	case PhaseMature:
		return 2
	case PhaseSystemic:
		return 1
	default:
		// Unknown phase fails closed: demand the strongest tier.
		return 1
	}
}

func (p Phase) valid() bool {
	switch p {
	case PhaseGenesis, PhaseAdolescent, PhaseMature, PhaseSystemic:
		return true
	}
	return false
}

func (f VSMFunction) valid() bool {
	switch f {
	case VSMOperations, VSMCoordination, VSMControl, VSMIntelligence, VSMPolicy:
		return true
	}
	return false
}

// EvidenceItem is one piece of supporting evidence. Tier 1 is strongest,
// tier 4 weakest. WeightOverride, when present, replaces the tier-table
// default weight.
type EvidenceItem struct {
	Tier           int      `json:"tier"`
	WeightOverride *float64 `json:"weight_override,omitempty"`
}

// Proposal is the unit under evaluation.
type Proposal struct {
	ProposalID string `json:"proposal_id"`

	// Thermodynamic energy terms. ENet must be positive for solvency.
	EIndustrial  float64 `json:"e_industrial"`
	EEcosystem   float64 `json:"e_ecosystem"`
	EInteraction float64 `json:"e_interaction"`
	EInvested    float64 `json:"e_invested"`
	EProduction  float64 `json:"e_production"`

	EstimatedMemoryBytes int64 `json:"estimated_memory_bytes"`

	EvidenceItems []EvidenceItem `json:"evidence_items"`

	// DissentingModels lists alternative model references the entity
	// consulted; the cognitive variety gate requires at least one.
	DissentingModels []string `json:"dissenting_models,omitempty"`

	RAbsolute       float64 `json:"r_absolute"`
	ClaimsVPAccrual bool    `json:"claims_vp_accrual"`

	EntityTrustScore   float64 `json:"entity_trust_score"`
	StakeScore         float64 `json:"stake_score"`
	EnergyBudgetTokens int64   `json:"energy_budget_tokens"`

	VSMFunction VSMFunction `json:"vsm_function"`
	Phase       Phase       `json:"phase_context"`

	// DependsOn lists proposal IDs that must be decided before this one.
	DependsOn []string `json:"depends_on,omitempty"`
}

// ENet is the signed net energy of the proposal.
func (p *Proposal) ENet() float64 {
	return p.EIndustrial + p.EEcosystem + p.EInteraction
}

// Hash returns the canonical content hash of the proposal.
func (p *Proposal) Hash() (string, error) {
	return canonical.Hash(p)
}

// Validate performs structural validation. It returns an error wrapping
// ErrInvalidProposal on the first violation found.
func (p *Proposal) Validate() error {
	switch {
	case p.ProposalID == "":
		return fmt.Errorf("%w: proposal_id is required", ErrInvalidProposal)
	case p.EstimatedMemoryBytes < 0:
		return fmt.Errorf("%w: estimated_memory_bytes must be non-negative", ErrInvalidProposal)
	case p.EnergyBudgetTokens <= 0:
		return fmt.Errorf("%w: energy_budget_tokens must be positive", ErrInvalidProposal)
	case p.EntityTrustScore < 0 || p.EntityTrustScore > 1:
		return fmt.Errorf("%w: entity_trust_score must be in [0,1]", ErrInvalidProposal)
	case !p.VSMFunction.valid():
		return fmt.Errorf("%w: unknown vsm_function %q", ErrInvalidProposal, p.VSMFunction)
	case !p.Phase.valid():
		return fmt.Errorf("%w: unknown phase_context %q", ErrInvalidProposal, p.Phase)
	}
	for i, item := range p.EvidenceItems {
		if item.Tier < 1 || item.Tier > 4 {
			return fmt.Errorf("%w: evidence item %d has tier %d outside [1,4]",
				ErrInvalidProposal, i, item.Tier)
		}
		if item.WeightOverride != nil && (*item.WeightOverride < 0 || *item.WeightOverride > 1) {
			return fmt.Errorf("%w: evidence item %d weight_override outside [0,1]",
				ErrInvalidProposal, i)
		}
	}
	return nil
}

package contract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereign-systems/constitutional-kernel/pkg/contract"
)

func validProposal() contract.Proposal {
	return contract.Proposal{
		ProposalID:           "prop-1",
		EIndustrial:          120,
		EEcosystem:           -10,
		EInteraction:         -10,
		EInvested:            40,
		EProduction:          90,
		EstimatedMemoryBytes: 1 << 30,
		EvidenceItems:        []contract.EvidenceItem{{Tier: 1}},
		DissentingModels:     []string{"model-b"},
		RAbsolute:            0.6,
		EntityTrustScore:     0.8,
		StakeScore:           0.1,
		EnergyBudgetTokens:   1000,
		VSMFunction:          contract.VSMOperations,
		Phase:                contract.PhaseGenesis,
	}
}

func TestENet(t *testing.T) {
	p := validProposal()
	assert.InDelta(t, 100.0, p.ENet(), 1e-9)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*contract.Proposal)
		ok     bool
	}{
		{"valid", func(p *contract.Proposal) {}, true},
		{"missing id", func(p *contract.Proposal) { p.ProposalID = "" }, false},
		{"negative memory", func(p *contract.Proposal) { p.EstimatedMemoryBytes = -1 }, false},
		{"zero budget", func(p *contract.Proposal) { p.EnergyBudgetTokens = 0 }, false},
		{"trust above one", func(p *contract.Proposal) { p.EntityTrustScore = 1.5 }, false},
		{"bad vsm", func(p *contract.Proposal) { p.VSMFunction = "Z" }, false},
		{"bad phase", func(p *contract.Proposal) { p.Phase = "larval" }, false},
		{"tier out of range", func(p *contract.Proposal) {
			p.EvidenceItems = []contract.EvidenceItem{{Tier: 5}}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProposal()
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, contract.ErrInvalidProposal)
			}
		})
	}
}

func TestPhaseRequiredTier(t *testing.T) {
	assert.Equal(t, 4, contract.PhaseGenesis.RequiredTier())
	assert.Equal(t, 3, contract.PhaseAdolescent.RequiredTier())
	assert.Equal(t, 2, contract.PhaseMature.RequiredTier())
	assert.Equal(t, 1, contract.PhaseSystemic.RequiredTier())
	// Unknown phases fail closed to the strongest tier.
	assert.Equal(t, 1, contract.Phase("unknown").RequiredTier())
}

func TestHashStable(t *testing.T) {
	p := validProposal()
	h1, err := p.Hash()
	require.NoError(t, err)
	h2, err := p.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	q := validProposal()
	q.EIndustrial = 121
	h3, err := q.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestSchemaValidatorParse(t *testing.T) {
	v, err := contract.NewSchemaValidator()
	require.NoError(t, err)

	good := `{
		"proposal_id": "prop-1",
		"e_industrial": 120, "e_ecosystem": -10, "e_interaction": -10,
		"e_invested": 40, "e_production": 90,
		"estimated_memory_bytes": 1073741824,
		"evidence_items": [{"tier": 1}],
		"r_absolute": 0.6,
		"entity_trust_score": 0.8,
		"energy_budget_tokens": 1000,
		"vsm_function": "A",
		"phase_context": "genesis"
	}`
	p, err := v.Parse([]byte(good))
	require.NoError(t, err)
	assert.Equal(t, "prop-1", p.ProposalID)
	assert.Equal(t, contract.PhaseGenesis, p.Phase)

	cases := map[string]string{
		"not json":       `{`,
		"missing fields": `{"proposal_id": "p"}`,
		"bad enum": `{
			"proposal_id": "prop-1",
			"e_industrial": 1, "e_ecosystem": 0, "e_interaction": 0,
			"e_invested": 1, "e_production": 2,
			"estimated_memory_bytes": 0,
			"evidence_items": [],
			"r_absolute": 0,
			"entity_trust_score": 0.5,
			"energy_budget_tokens": 10,
			"vsm_function": "Q",
			"phase_context": "genesis"
		}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Parse([]byte(raw))
			assert.ErrorIs(t, err, contract.ErrInvalidProposal)
		})
	}
}

package evidence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sovereign-systems/constitutional-kernel/pkg/contract"
	"github.com/sovereign-systems/constitutional-kernel/pkg/evidence"
)

func fptr(f float64) *float64 { return &f }

func TestEmptySetFailsClosed(t *testing.T) {
	a := evidence.NewAggregator()
	s := a.Score(nil, contract.PhaseGenesis)
	assert.Equal(t, 0.0, s.Weighted)
	assert.False(t, s.MinTierMet)
}

func TestDefaultWeights(t *testing.T) {
	a := evidence.NewAggregator()
	items := []contract.EvidenceItem{
		{Tier: 1}, // 1.0
		{Tier: 2}, // 0.7
		{Tier: 3}, // 0.5
		{Tier: 4}, // 0.3
	}
	s := a.Score(items, contract.PhaseGenesis)
	assert.InDelta(t, (1.0+0.7+0.5+0.3)/4, s.Weighted, 1e-9)
	assert.True(t, s.MinTierMet)
}

func TestWeightOverrideWins(t *testing.T) {
	a := evidence.NewAggregator()
	items := []contract.EvidenceItem{
		{Tier: 4, WeightOverride: fptr(0.9)},
		{Tier: 1, WeightOverride: fptr(0.1)},
	}
	s := a.Score(items, contract.PhaseGenesis)
	assert.InDelta(t, 0.5, s.Weighted, 1e-9)
}

func TestMinTierPerPhase(t *testing.T) {
	a := evidence.NewAggregator()
	tier3 := []contract.EvidenceItem{{Tier: 3}}

	tests := []struct {
		phase contract.Phase
		met   bool
	}{
		{contract.PhaseGenesis, true},    // required tier 4, tier 3 suffices
		{contract.PhaseAdolescent, true}, // required tier 3
		{contract.PhaseMature, false},    // required tier 2
		{contract.PhaseSystemic, false},  // required tier 1
	}
	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			s := a.Score(tier3, tt.phase)
			assert.Equal(t, tt.met, s.MinTierMet)
		})
	}
}

func TestSystemicRequiresTierOne(t *testing.T) {
	a := evidence.NewAggregator()
	s := a.Score([]contract.EvidenceItem{{Tier: 2}, {Tier: 1}}, contract.PhaseSystemic)
	assert.True(t, s.MinTierMet)
}

func TestCustomWeightTable(t *testing.T) {
	a := evidence.NewAggregatorWithWeights(map[int]float64{4: 0.0})
	s := a.Score([]contract.EvidenceItem{{Tier: 4}}, contract.PhaseGenesis)
	assert.Equal(t, 0.0, s.Weighted)
	assert.True(t, s.MinTierMet) // tier check is independent of weight
}

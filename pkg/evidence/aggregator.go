// Package evidence provides the evidence aggregator — the engine that turns a
// proposal's evidence set into a weighted epistemic score and a phase-dependent
// minimum-tier verdict.
//
// Missing evidence produces a fail-closed result: an empty set scores 0.0 and
// never satisfies the minimum tier, so the evidence gate always fails it.
package evidence

import (
	"github.com/sovereign-systems/constitutional-kernel/pkg/contract"
)

// DefaultTierWeights maps evidence tiers to their default weights.
// Tier 1 is the strongest class of evidence and carries full weight.
var DefaultTierWeights = map[int]float64{
	1: 1.0,
	2: 0.7,
	3: 0.5,
	4: 0.3,
}

// Score is the aggregate verdict over an evidence set.
type Score struct {
	Weighted   float64 `json:"weighted_score"`
	MinTierMet bool    `json:"min_tier_met"`
	Items      int     `json:"items"`
}

// Aggregator computes weighted epistemic scores. The weight table is fixed at
// construction; an Aggregator is immutable and safe for concurrent use.
type Aggregator struct {
	weights map[int]float64
}

// NewAggregator creates an aggregator with the default tier weight table.
func NewAggregator() *Aggregator {
	return NewAggregatorWithWeights(nil)
}

// NewAggregatorWithWeights creates an aggregator with a custom weight table.
// Missing tiers fall back to the defaults.
func NewAggregatorWithWeights(weights map[int]float64) *Aggregator {
	table := make(map[int]float64, len(DefaultTierWeights))
	for tier, w := range DefaultTierWeights {
		table[tier] = w
	}
	for tier, w := range weights {
		table[tier] = w
	}
	return &Aggregator{weights: table}
}

// Score computes the weighted mean of effective item weights and whether the
// set meets the phase's minimum tier. Each item's effective weight is its
// override when present, else the tier-table default.
func (a *Aggregator) Score(items []contract.EvidenceItem, phase contract.Phase) Score {
	if len(items) == 0 {
		return Score{Weighted: 0.0, MinTierMet: false}
	}

	required := phase.RequiredTier()
	var sum float64
	minTierMet := false
	for _, item := range items {
		w, ok := a.weights[item.Tier]
		if !ok {
			w = 0.0
		}
		if item.WeightOverride != nil {
			w = *item.WeightOverride
		}
		sum += w
		if item.Tier <= required {
			minTierMet = true
		}
	}

	return Score{
		Weighted:   sum / float64(len(items)),
		MinTierMet: minTierMet,
		Items:      len(items),
	}
}

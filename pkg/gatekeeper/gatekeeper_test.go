package gatekeeper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereign-systems/constitutional-kernel/pkg/auditlog"
	"github.com/sovereign-systems/constitutional-kernel/pkg/config"
	"github.com/sovereign-systems/constitutional-kernel/pkg/contract"
	"github.com/sovereign-systems/constitutional-kernel/pkg/decision"
	"github.com/sovereign-systems/constitutional-kernel/pkg/gatekeeper"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newKeeper(t *testing.T) (*gatekeeper.Gatekeeper, *auditlog.Log) {
	t.Helper()
	log, err := auditlog.New()
	require.NoError(t, err)
	gk, err := gatekeeper.New(config.Default(), log,
		gatekeeper.WithClock(fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}))
	require.NoError(t, err)
	return gk, log
}

func healthyProposal(id string) *contract.Proposal {
	return &contract.Proposal{
		ProposalID:           id,
		EIndustrial:          100,
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

func TestEnforceApprovesHealthyProposal(t *testing.T) {
	gk, log := newKeeper(t)

	d, err := gk.CheckProposal(context.Background(), healthyProposal("p1"), gatekeeper.ModeEnforce)
	require.NoError(t, err)
	assert.Equal(t, decision.Approve, d.Overall)
	assert.Equal(t, 6, d.GatesPassed)
	assert.False(t, d.RequiresAck)
	assert.Equal(t, uint64(1), log.Len())
}

func TestEnforceRejectionRaisesConstraintViolation(t *testing.T) {
	gk, log := newKeeper(t)

	p := healthyProposal("p2")
	p.EIndustrial = -50 // E_net negative

	d, err := gk.CheckProposal(context.Background(), p, gatekeeper.ModeEnforce)
	require.Error(t, err)

	var cv *gatekeeper.ConstraintViolation
	require.True(t, errors.As(err, &cv))
	assert.Equal(t, decision.Reject, cv.Decision.Overall)
	assert.Equal(t, d, cv.Decision)
	// The rejection is audited like any other outcome.
	assert.Equal(t, uint64(1), log.Len())
}

func TestEnforceHardwareFailShortCircuits(t *testing.T) {
	gk, _ := newKeeper(t)

	p := healthyProposal("p3")
	p.EstimatedMemoryBytes = 4 << 30

	d, err := gk.CheckProposal(context.Background(), p, gatekeeper.ModeEnforce)
	require.Error(t, err)
	assert.Equal(t, decision.Reject, d.Overall)
	// Gates 4-6 never ran.
	assert.Len(t, d.Results, 3)
	assert.Equal(t, []int{3}, d.GatesFailed)
}

func TestObserveAndAdviseNeverError(t *testing.T) {
	gk, log := newKeeper(t)

	p := healthyProposal("p4")
	p.EIndustrial = -50

	for _, mode := range []gatekeeper.Mode{gatekeeper.ModeObserve, gatekeeper.ModeAdvise} {
		d, err := gk.CheckProposal(context.Background(), p, mode)
		require.NoError(t, err, "mode %s", mode)
		assert.Equal(t, decision.Reject, d.Overall)
		// In observe/advise the hardware rule does not short-circuit,
		// so every gate reports.
		assert.Len(t, d.Results, 6)
	}
	assert.Equal(t, uint64(2), log.Len())
}

func TestEscalationReturnsNormallyWithAckRequired(t *testing.T) {
	gk, _ := newKeeper(t)

	p := healthyProposal("p5")
	p.StakeScore = 0.9

	d, err := gk.CheckProposal(context.Background(), p, gatekeeper.ModeEnforce)
	require.NoError(t, err)
	assert.Equal(t, decision.EscalateHuman, d.Overall)
	assert.True(t, d.RequiresAck)
}

func TestInvalidProposalFailsBeforePipeline(t *testing.T) {
	gk, log := newKeeper(t)

	p := healthyProposal("")
	_, err := gk.CheckProposal(context.Background(), p, gatekeeper.ModeEnforce)
	assert.ErrorIs(t, err, contract.ErrInvalidProposal)
	// Nothing reached the pipeline, nothing was audited.
	assert.Equal(t, uint64(0), log.Len())
}

func TestEveryCallAppendsExactlyOneRecord(t *testing.T) {
	gk, log := newKeeper(t)

	for i := 0; i < 3; i++ {
		_, err := gk.CheckProposal(context.Background(), healthyProposal("p6"), gatekeeper.ModeObserve)
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(3), log.Len())
	assert.NoError(t, log.Verify(0, 0))
}

func TestIdempotentEvaluationIsDeterministic(t *testing.T) {
	gk, log := newKeeper(t)

	p := healthyProposal("p7")
	d1, err := gk.CheckProposal(context.Background(), p, gatekeeper.ModeAdvise)
	require.NoError(t, err)
	d2, err := gk.CheckProposal(context.Background(), p, gatekeeper.ModeAdvise)
	require.NoError(t, err)

	// Identical gate result sequences, but two independent audit records.
	assert.Equal(t, d1.Results, d2.Results)
	assert.Equal(t, d1.EnergyConsumed, d2.EnergyConsumed)
	records, err := log.RangeQuery(1, 2)
	require.NoError(t, err)
	assert.NotEqual(t, records[0].RecordHash, records[1].RecordHash)
	assert.Equal(t, records[0].ProposalHash, records[1].ProposalHash)
}

func TestCancelledEvaluationIsAudited(t *testing.T) {
	gk, log := newKeeper(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, err := gk.CheckProposal(ctx, healthyProposal("p8"), gatekeeper.ModeEnforce)
	require.NoError(t, err)
	assert.Equal(t, decision.EscalateHuman, d.Overall)
	assert.Contains(t, d.Note, "cancelled before gate 1")
	assert.Equal(t, uint64(1), log.Len())
}

func TestBudgetExhaustionIsAuditedAsGateFails(t *testing.T) {
	gk, _ := newKeeper(t)

	p := healthyProposal("p9")
	p.EnergyBudgetTokens = 2

	d, err := gk.CheckProposal(context.Background(), p, gatekeeper.ModeObserve)
	require.NoError(t, err)
	assert.Equal(t, decision.Reject, d.Overall)
	assert.Contains(t, d.GatesFailed, 3)
	assert.Equal(t, int64(2), d.EnergyConsumed)
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"observe", "advise", "enforce"} {
		m, err := gatekeeper.ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(m))
	}
	_, err := gatekeeper.ParseMode("audit")
	assert.Error(t, err)
}

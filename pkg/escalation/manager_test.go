package escalation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereign-systems/constitutional-kernel/pkg/decision"
	"github.com/sovereign-systems/constitutional-kernel/pkg/escalation"
	"github.com/sovereign-systems/constitutional-kernel/pkg/gate"
)

func escalatedDecision(id string) *decision.Decision {
	return decision.Aggregate(id, "enforce", []gate.Result{
		{GateID: 6, Outcome: gate.Escalate, Message: "stake above threshold"},
	}, 6, time.Now())
}

func TestHoldRequiresAckDecision(t *testing.T) {
	m := escalation.NewManager()

	approved := decision.Aggregate("p1", "enforce", []gate.Result{{GateID: 1, Outcome: gate.Pass}}, 1, time.Now())
	_, err := m.Hold(context.Background(), approved)
	assert.Error(t, err)

	intent, err := m.Hold(context.Background(), escalatedDecision("p2"))
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusPending, intent.Status)
	assert.Equal(t, 1, m.PendingCount())
}

func TestAcknowledge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := escalation.NewManager().WithClock(func() time.Time { return now })

	intent, err := m.Hold(context.Background(), escalatedDecision("p1"))
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	r, err := m.Acknowledge(context.Background(), intent.IntentID, "operator-7")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusAcknowledged, r.Status)
	assert.Equal(t, "operator-7", r.ActorID)
	assert.Equal(t, int64(120000), r.HeldForMs)
	assert.Equal(t, 0, m.PendingCount())

	// Double resolution is refused.
	_, err = m.Acknowledge(context.Background(), intent.IntentID, "operator-7")
	assert.Error(t, err)
}

func TestDeny(t *testing.T) {
	m := escalation.NewManager()
	intent, err := m.Hold(context.Background(), escalatedDecision("p1"))
	require.NoError(t, err)

	r, err := m.Deny(context.Background(), intent.IntentID, "operator-2", "risk too high")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusDenied, r.Status)
	assert.Equal(t, "risk too high", r.Reason)
}

func TestTimeout(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := escalation.NewManager().
		WithClock(func() time.Time { return now }).
		WithTimeout(5 * time.Minute)

	intent, err := m.Hold(context.Background(), escalatedDecision("p1"))
	require.NoError(t, err)

	now = now.Add(10 * time.Minute)
	receipts := m.CheckTimeouts(context.Background())
	require.Len(t, receipts, 1)
	assert.Equal(t, escalation.StatusTimedOut, receipts[0].Status)

	got, err := m.Get(intent.IntentID)
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusTimedOut, got.Status)

	// Acknowledging an expired-but-unswept intent also times out.
	m2 := escalation.NewManager().
		WithClock(func() time.Time { return now }).
		WithTimeout(time.Minute)
	intent2, err := m2.Hold(context.Background(), escalatedDecision("p2"))
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	r, err := m2.Acknowledge(context.Background(), intent2.IntentID, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, escalation.StatusTimedOut, r.Status)
}

// Package escalation tracks decisions that require human sign-off.
//
// ESCALATE_HUMAN is a terminal decision state, not a blocking call: the
// manager holds an intent per escalated decision and hands out immutable
// receipts when an operator acknowledges or denies it. Dependent side effects
// must not proceed until an acknowledgment receipt exists.
package escalation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sovereign-systems/constitutional-kernel/pkg/decision"
)

// Status of a held escalation intent.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusAcknowledged Status = "ACKNOWLEDGED"
	StatusDenied       Status = "DENIED"
	StatusTimedOut     Status = "TIMED_OUT"
)

// DefaultTimeout is how long an intent stays pending before it expires to a
// deny-by-timeout.
const DefaultTimeout = 15 * time.Minute

// Intent is one decision awaiting human judgment.
type Intent struct {
	IntentID   string             `json:"intent_id"`
	ProposalID string             `json:"proposal_id"`
	Decision   *decision.Decision `json:"decision"`
	CreatedAt  time.Time          `json:"created_at"`
	ExpiresAt  time.Time          `json:"expires_at"`
	Status     Status             `json:"status"`
}

// Receipt is the immutable resolution record of an intent.
type Receipt struct {
	ReceiptID  string    `json:"receipt_id"`
	IntentID   string    `json:"intent_id"`
	ProposalID string    `json:"proposal_id"`
	Status     Status    `json:"status"`
	ActorID    string    `json:"actor_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
	HeldForMs  int64     `json:"held_for_ms"`
}

// Manager holds pending escalation intents.
type Manager struct {
	mu      sync.Mutex
	intents map[string]*Intent
	timeout time.Duration
	clock   func() time.Time
}

// NewManager creates an escalation manager with the default timeout.
func NewManager() *Manager {
	return &Manager{
		intents: make(map[string]*Intent),
		timeout: DefaultTimeout,
		clock:   time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

// WithTimeout overrides the pending-intent timeout.
func (m *Manager) WithTimeout(d time.Duration) *Manager {
	m.timeout = d
	return m
}

// Hold registers an escalated decision for human judgment.
func (m *Manager) Hold(ctx context.Context, d *decision.Decision) (*Intent, error) {
	_ = ctx
	if d == nil || !d.RequiresAck {
		return nil, fmt.Errorf("escalation: decision does not require acknowledgment")
	}

	now := m.clock()
	intent := &Intent{
		IntentID:   uuid.New().String(),
		ProposalID: d.ProposalID,
		Decision:   d,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.timeout),
		Status:     StatusPending,
	}

	m.mu.Lock()
	m.intents[intent.IntentID] = intent
	m.mu.Unlock()

	return intent, nil
}

// Acknowledge resolves a pending intent in favor of proceeding.
func (m *Manager) Acknowledge(ctx context.Context, intentID, actorID string) (*Receipt, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("escalation: intent %q not found", intentID)
	}
	if intent.Status != StatusPending {
		return nil, fmt.Errorf("escalation: intent %q is not PENDING (status=%s)", intentID, intent.Status)
	}

	now := m.clock()
	if now.After(intent.ExpiresAt) {
		intent.Status = StatusTimedOut
		return m.receipt(intent, now, "", "expired before acknowledgment"), nil
	}

	intent.Status = StatusAcknowledged
	return m.receipt(intent, now, actorID, ""), nil
}

// Deny resolves a pending intent against proceeding.
func (m *Manager) Deny(ctx context.Context, intentID, actorID, reason string) (*Receipt, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("escalation: intent %q not found", intentID)
	}
	if intent.Status != StatusPending {
		return nil, fmt.Errorf("escalation: intent %q is not PENDING (status=%s)", intentID, intent.Status)
	}

	intent.Status = StatusDenied
	return m.receipt(intent, m.clock(), actorID, reason), nil
}

// CheckTimeouts expires pending intents past their deadline and returns their
// deny-by-timeout receipts.
func (m *Manager) CheckTimeouts(ctx context.Context) []*Receipt {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	var receipts []*Receipt
	for _, intent := range m.intents {
		if intent.Status == StatusPending && now.After(intent.ExpiresAt) {
			intent.Status = StatusTimedOut
			receipts = append(receipts, m.receipt(intent, now, "", "timed out"))
		}
	}
	return receipts
}

// PendingCount returns the number of intents awaiting judgment.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, intent := range m.intents {
		if intent.Status == StatusPending {
			count++
		}
	}
	return count
}

// Get returns an intent by ID.
func (m *Manager) Get(intentID string) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("escalation: intent %q not found", intentID)
	}
	return intent, nil
}

func (m *Manager) receipt(intent *Intent, resolvedAt time.Time, actorID, reason string) *Receipt {
	return &Receipt{
		ReceiptID:  uuid.New().String(),
		IntentID:   intent.IntentID,
		ProposalID: intent.ProposalID,
		Status:     intent.Status,
		ActorID:    actorID,
		Reason:     reason,
		ResolvedAt: resolvedAt.UTC(),
		HeldForMs:  resolvedAt.Sub(intent.CreatedAt).Milliseconds(),
	}
}

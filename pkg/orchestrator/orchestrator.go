// Package orchestrator coordinates concurrent evaluation of proposal batches.
// Independent proposals run on a bounded worker pool; proposals with declared
// dependencies run in dependency order, and a dependency that did not approve
// short-circuits its dependents to a recorded rejection.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sovereign-systems/constitutional-kernel/pkg/auditlog"
	"github.com/sovereign-systems/constitutional-kernel/pkg/config"
	"github.com/sovereign-systems/constitutional-kernel/pkg/contract"
	"github.com/sovereign-systems/constitutional-kernel/pkg/decision"
	"github.com/sovereign-systems/constitutional-kernel/pkg/gatekeeper"
	"github.com/sovereign-systems/constitutional-kernel/pkg/observability"
)

// ErrDependencyCycle is fatal for the affected batch: nothing in the batch is
// evaluated when the dependency graph does not order.
var ErrDependencyCycle = errors.New("dependency cycle")

// BatchMetrics aggregates system-wide counts over one coordinated batch.
type BatchMetrics struct {
	Total       int   `json:"total"`
	Approved    int   `json:"approved"`
	Rejected    int   `json:"rejected"`
	Escalated   int   `json:"escalated"`
	EnergyTotal int64 `json:"energy_total"`
}

// Orchestrator dispatches proposals to a gatekeeper.
type Orchestrator struct {
	cfg     config.Config
	keeper  *gatekeeper.Gatekeeper
	log     *auditlog.Log
	limiter *rate.Limiter
	obs     *observability.Provider
	logger  *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObservability attaches a telemetry provider.
func WithObservability(p *observability.Provider) Option {
	return func(o *Orchestrator) { o.obs = p }
}

// WithLogger injects a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator sharing the gatekeeper's audit log.
func New(cfg config.Config, keeper *gatekeeper.Gatekeeper, log *auditlog.Log, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if keeper == nil || log == nil {
		return nil, fmt.Errorf("orchestrator: gatekeeper and audit log are required")
	}

	o := &Orchestrator{
		cfg:    cfg,
		keeper: keeper,
		log:    log,
		logger: slog.Default().With("component", "orchestrator"),
	}
	if cfg.SubmissionsPerSecond > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(cfg.SubmissionsPerSecond), cfg.MaxWorkers)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Coordinate evaluates a batch and returns decisions in input order.
//
// The dependency graph is ordered first; a cycle fails the whole batch with
// ErrDependencyCycle before anything is evaluated. Proposals in the same
// dependency layer run concurrently on a pool of at most MaxWorkers. Each
// evaluation gets the configured wall-clock timeout; a timed-out evaluation
// is cancelled cooperatively between gates and its partial decision is still
// recorded. Per-proposal rejections (including enforce-mode constraint
// violations) are outcomes, not batch errors.
func (o *Orchestrator) Coordinate(ctx context.Context, proposals []*contract.Proposal, mode gatekeeper.Mode) ([]*decision.Decision, error) {
	layers, err := topoLayers(proposals)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*contract.Proposal, len(proposals))
	for _, p := range proposals {
		byID[p.ProposalID] = p
	}

	var mu sync.Mutex
	decisions := make(map[string]*decision.Decision, len(proposals))

	for _, layer := range layers {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.cfg.MaxWorkers)

		for _, id := range layer {
			p := byID[id]
			g.Go(func() error {
				d, err := o.evaluateOne(gctx, p, decisionsSnapshot(&mu, decisions), mode)
				if err != nil {
					return err
				}
				mu.Lock()
				decisions[p.ProposalID] = d
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out := make([]*decision.Decision, len(proposals))
	for i, p := range proposals {
		out[i] = decisions[p.ProposalID]
	}
	return out, nil
}

// Summarize folds a batch of decisions into system-wide metrics.
func Summarize(decisions []*decision.Decision) BatchMetrics {
	m := BatchMetrics{Total: len(decisions)}
	for _, d := range decisions {
		if d == nil {
			continue
		}
		switch d.Overall {
		case decision.Approve:
			m.Approved++
		case decision.Reject:
			m.Rejected++
		case decision.EscalateHuman:
			m.Escalated++
		}
		m.EnergyTotal += d.EnergyConsumed
	}
	return m
}

func (o *Orchestrator) evaluateOne(ctx context.Context, p *contract.Proposal, prior map[string]*decision.Decision, mode gatekeeper.Mode) (*decision.Decision, error) {
	// Dependency gating: an unapproved dependency short-circuits the
	// dependent, but the skip is still audited.
	for _, dep := range p.DependsOn {
		dd := prior[dep]
		if dd == nil || dd.Overall != decision.Approve {
			return o.recordSkip(ctx, p, dep, mode)
		}
	}

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("orchestrator: rate limit wait: %w", err)
		}
	}

	evalCtx := ctx
	if o.cfg.EvalTimeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, o.cfg.EvalTimeout)
		defer cancel()
	}

	start := time.Now()
	d, err := o.keeper.CheckProposal(evalCtx, p, mode)

	var cv *gatekeeper.ConstraintViolation
	switch {
	case err == nil:
	case errors.As(err, &cv):
		// An enforce-mode rejection is a decision, not a batch failure.
		d = cv.Decision
	default:
		return nil, err
	}

	if o.obs != nil {
		o.obs.RecordDecision(evalCtx, string(d.Overall), d.GatesFailed, d.EnergyConsumed, time.Since(start))
	}
	return d, nil
}

// recordSkip synthesizes and audits the rejection of a proposal whose
// dependency did not approve.
func (o *Orchestrator) recordSkip(ctx context.Context, p *contract.Proposal, dep string, mode gatekeeper.Mode) (*decision.Decision, error) {
	d := decision.Aggregate(p.ProposalID, string(mode), nil, 0, time.Now())
	d.Overall = decision.Reject
	d.Note = fmt.Sprintf("dependency %s not approved", dep)

	hash, err := p.Hash()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: hash skip record: %w", err)
	}
	if _, err := o.log.Append(ctx, hash, d); err != nil {
		return nil, fmt.Errorf("orchestrator: audit skip record: %w", err)
	}

	o.logger.Info("proposal skipped", "proposal_id", p.ProposalID, "dependency", dep)
	return d, nil
}

func decisionsSnapshot(mu *sync.Mutex, m map[string]*decision.Decision) map[string]*decision.Decision {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]*decision.Decision, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// topoLayers orders proposals into dependency layers via Kahn's algorithm.
// Proposals in the same layer are independent of each other.
func topoLayers(proposals []*contract.Proposal) ([][]string, error) {
	indegree := make(map[string]int, len(proposals))
	dependents := make(map[string][]string)

	known := make(map[string]bool, len(proposals))
	for _, p := range proposals {
		if known[p.ProposalID] {
			return nil, fmt.Errorf("%w: duplicate proposal id %q", contract.ErrInvalidProposal, p.ProposalID)
		}
		known[p.ProposalID] = true
	}

	for _, p := range proposals {
		indegree[p.ProposalID] = 0
	}
	for _, p := range proposals {
		for _, dep := range p.DependsOn {
			if !known[dep] {
				return nil, fmt.Errorf("%w: proposal %q depends on unknown proposal %q",
					contract.ErrInvalidProposal, p.ProposalID, dep)
			}
			indegree[p.ProposalID]++
			dependents[dep] = append(dependents[dep], p.ProposalID)
		}
	}

	var layers [][]string
	current := make([]string, 0)
	for _, p := range proposals {
		if indegree[p.ProposalID] == 0 {
			current = append(current, p.ProposalID)
		}
	}

	processed := 0
	for len(current) > 0 {
		layers = append(layers, current)
		var next []string
		for _, id := range current {
			processed++
			for _, dependent := range dependents[id] {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		current = next
	}

	if processed != len(proposals) {
		var stuck []string
		for id, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, fmt.Errorf("%w: unresolved proposals %v", ErrDependencyCycle, stuck)
	}
	return layers, nil
}

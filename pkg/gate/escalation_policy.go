package gate

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// DefaultEscalationExpr is the built-in stake/impact predicate: escalate when
// the proposal's stake score reaches the configured threshold.
const DefaultEscalationExpr = `stake >= threshold`

// EscalationPolicy is a compiled CEL predicate over the proposal's stake
// score, the entity's trust score, its VSM function, and the configured
// threshold. Deployments tune the expression without recompiling the kernel;
// the compiled program is cached for the lifetime of the policy.
type EscalationPolicy struct {
	expr string
	prg  cel.Program
}

// NewEscalationPolicy compiles expr into an escalation predicate. An empty
// expr compiles the default predicate.
func NewEscalationPolicy(expr string) (*EscalationPolicy, error) {
	if expr == "" {
		expr = DefaultEscalationExpr
	}

	env, err := cel.NewEnv(
		cel.Variable("stake", cel.DoubleType),
		cel.Variable("trust", cel.DoubleType),
		cel.Variable("threshold", cel.DoubleType),
		cel.Variable("vsm", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("escalation policy: env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("escalation policy: compile %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("escalation policy: program: %w", err)
	}
	return &EscalationPolicy{expr: expr, prg: prg}, nil
}

// Expr returns the source expression of the policy.
func (p *EscalationPolicy) Expr() string { return p.expr }

// Decide evaluates the predicate. Evaluation errors fail closed: an erroring
// predicate forces escalation so the decision lands with a human.
func (p *EscalationPolicy) Decide(stake, trust, threshold float64, vsm string) (bool, error) {
	out, _, err := p.prg.Eval(map[string]any{
		"stake":     stake,
		"trust":     trust,
		"threshold": threshold,
		"vsm":       vsm,
	})
	if err != nil {
		return true, fmt.Errorf("escalation policy: eval: %w", err)
	}
	v, ok := out.Value().(bool)
	if !ok {
		return true, fmt.Errorf("escalation policy: result is not bool")
	}
	return v, nil
}

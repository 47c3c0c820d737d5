package gate

import (
	"context"

	"github.com/sovereign-systems/constitutional-kernel/pkg/contract"
)

// Pipeline runs the fixed gate sequence. It holds no hidden state: given
// identical inputs it produces identical result sequences.
type Pipeline struct {
	gates []Gate
}

// NewPipeline creates a pipeline over the constitutionally fixed gate set.
func NewPipeline() *Pipeline {
	return &Pipeline{gates: All()}
}

// Run evaluates the gates in numeric order 1→6 and collects every result.
//
// Two rules interrupt the sequence:
//   - a hardware gate (3) failure in enforce mode is fatal and short-circuits
//     the remaining gates; resource protection takes precedence,
//   - cancellation is checked cooperatively before each gate, never mid-gate.
//     On cancellation the partial results are returned together with the
//     context error and the ID of the gate that was about to run, so the
//     caller can record a partial decision instead of dropping evidence.
//
// All other failures let the pipeline run to completion so the final decision
// reports every gate's outcome.
func (pl *Pipeline) Run(ctx context.Context, p *contract.Proposal, ec *Context) (results []Result, activeGate int, err error) {
	results = make([]Result, 0, len(pl.gates))
	for _, g := range pl.gates {
		if cerr := ctx.Err(); cerr != nil {
			return results, g.ID(), cerr
		}
		r := g.Evaluate(p, ec)
		results = append(results, r)
		if g.ID() == 3 && r.Outcome == Fail && ec.Enforce {
			break
		}
	}
	return results, 0, nil
}

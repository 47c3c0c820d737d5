// Package gate implements the six constitutional gates and the pipeline that
// runs them. The gate set is constitutionally fixed: it is a closed set of
// implementations behind one evaluation interface, not a plugin surface.
package gate

// Outcome is the verdict of a single gate.
type Outcome string

const (
	Pass     Outcome = "PASS"
	Fail     Outcome = "FAIL"
	Escalate Outcome = "ESCALATE"
)

// Result is produced once per gate per evaluation and never mutated.
type Result struct {
	GateID      int     `json:"gate_id"`
	Name        string  `json:"name"`
	Outcome     Outcome `json:"outcome"`
	Message     string  `json:"message,omitempty"`
	EnergySpent int64   `json:"energy_spent"`
}

func pass(id int, name string, spent int64) Result {
	return Result{GateID: id, Name: name, Outcome: Pass, EnergySpent: spent}
}

func fail(id int, name, msg string, spent int64) Result {
	return Result{GateID: id, Name: name, Outcome: Fail, Message: msg, EnergySpent: spent}
}

func escalate(id int, name, msg string, spent int64) Result {
	return Result{GateID: id, Name: name, Outcome: Escalate, Message: msg, EnergySpent: spent}
}

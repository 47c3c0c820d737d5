package contract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// proposalSchema is the wire-level contract schema. External collaborators
// construct proposals from structured documents; the kernel re-validates them
// here so malformed input fails fast before any gate runs.
const proposalSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": [
    "proposal_id",
    "e_industrial", "e_ecosystem", "e_interaction",
    "e_invested", "e_production",
    "estimated_memory_bytes",
    "evidence_items",
    "r_absolute",
    "entity_trust_score",
    "energy_budget_tokens",
    "vsm_function",
    "phase_context"
  ],
  "properties": {
    "proposal_id": {"type": "string", "minLength": 1},
    "e_industrial": {"type": "number"},
    "e_ecosystem": {"type": "number"},
    "e_interaction": {"type": "number"},
    "e_invested": {"type": "number"},
    "e_production": {"type": "number"},
    "estimated_memory_bytes": {"type": "integer", "minimum": 0},
    "evidence_items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["tier"],
        "properties": {
          "tier": {"type": "integer", "minimum": 1, "maximum": 4},
          "weight_override": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    },
    "dissenting_models": {"type": "array", "items": {"type": "string"}},
    "r_absolute": {"type": "number"},
    "claims_vp_accrual": {"type": "boolean"},
    "entity_trust_score": {"type": "number", "minimum": 0, "maximum": 1},
    "stake_score": {"type": "number", "minimum": 0},
    "energy_budget_tokens": {"type": "integer", "minimum": 1},
    "vsm_function": {"enum": ["A", "B", "C", "D", "E"]},
    "phase_context": {"enum": ["genesis", "adolescent", "mature", "systemic"]},
    "depends_on": {"type": "array", "items": {"type": "string"}}
  }
}`

// SchemaValidator validates raw proposal documents against the contract schema.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidator compiles the built-in proposal schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const url = "https://schemas.constitutional-kernel.local/proposal.schema.json"
	if err := c.AddResource(url, strings.NewReader(proposalSchema)); err != nil {
		return nil, fmt.Errorf("contract schema load failed: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("contract schema compile failed: %w", err)
	}
	return &SchemaValidator{schema: compiled}, nil
}

// Parse validates a raw JSON document against the schema and decodes it into a
// Proposal. Schema or structural violations are wrapped in ErrInvalidProposal.
func (v *SchemaValidator) Parse(raw []byte) (*Proposal, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: not valid JSON: %v", ErrInvalidProposal, err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: schema validation failed: %v", ErrInvalidProposal, err)
	}

	var p Proposal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: decode failed: %v", ErrInvalidProposal, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

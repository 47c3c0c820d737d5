// Package config holds the kernel configuration. The struct is built once at
// startup and passed by value into every gatekeeper and orchestrator
// construction; there is no ambient mutable state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Defaults. The memory ceiling is deliberately conservative: the hardware
// gate treats it as a hard limit, never an advisory one.
const (
	DefaultMemoryLimitBytes       = int64(3) << 30 // 3 GiB
	DefaultEvidenceScoreThreshold = 0.7
	DefaultRAbsoluteThreshold     = 0.5
	DefaultEscalationThreshold    = 0.75
	DefaultMaxWorkers             = 8
	DefaultEvalTimeout            = 30 * time.Second
)

// Config is the immutable kernel configuration.
type Config struct {
	// Mode is the enforcement mode: observe, advise, or enforce.
	Mode string `yaml:"mode"`

	MemoryLimitBytes       int64   `yaml:"memory_limit_bytes"`
	EvidenceScoreThreshold float64 `yaml:"evidence_score_threshold"`
	RAbsoluteThreshold     float64 `yaml:"r_absolute_threshold"`
	EscalationThreshold    float64 `yaml:"escalation_stake_threshold"`

	// EscalationExpr is the CEL predicate for the human escalation gate.
	// Empty selects the built-in threshold comparison.
	EscalationExpr string `yaml:"escalation_expr"`

	MaxWorkers  int           `yaml:"max_workers"`
	EvalTimeout time.Duration `yaml:"eval_timeout"`

	// SubmissionsPerSecond rate-limits batch intake; zero disables limiting.
	SubmissionsPerSecond float64 `yaml:"submissions_per_second"`

	// ConstitutionVersion tags audit output with the governing law version.
	ConstitutionVersion string `yaml:"constitution_version"`

	AuditDBPath string `yaml:"audit_db_path"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Mode:                   "enforce",
		MemoryLimitBytes:       DefaultMemoryLimitBytes,
		EvidenceScoreThreshold: DefaultEvidenceScoreThreshold,
		RAbsoluteThreshold:     DefaultRAbsoluteThreshold,
		EscalationThreshold:    DefaultEscalationThreshold,
		MaxWorkers:             DefaultMaxWorkers,
		EvalTimeout:            DefaultEvalTimeout,
		ConstitutionVersion:    "1.0.0",
	}
}

// FromEnv applies environment overrides on top of the defaults.
func FromEnv() Config {
	cfg := Default()
	if v := os.Getenv("KERNEL_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("KERNEL_MEMORY_LIMIT_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MemoryLimitBytes = n
		}
	}
	if v := os.Getenv("KERNEL_EVIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.EvidenceScoreThreshold = f
		}
	}
	if v := os.Getenv("KERNEL_R_ABSOLUTE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RAbsoluteThreshold = f
		}
	}
	if v := os.Getenv("KERNEL_ESCALATION_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.EscalationThreshold = f
		}
	}
	if v := os.Getenv("KERNEL_AUDIT_DB"); v != "" {
		cfg.AuditDBPath = v
	}
	return cfg
}

// Validate checks mode, thresholds, and the constitution version tag.
func (c Config) Validate() error {
	switch c.Mode {
	case "observe", "advise", "enforce":
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.MemoryLimitBytes <= 0 {
		return fmt.Errorf("config: memory_limit_bytes must be positive")
	}
	if c.EvidenceScoreThreshold < 0 || c.EvidenceScoreThreshold > 1 {
		return fmt.Errorf("config: evidence_score_threshold must be in [0,1]")
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("config: max_workers must be at least 1")
	}
	if c.ConstitutionVersion != "" {
		if _, err := semver.NewVersion(c.ConstitutionVersion); err != nil {
			return fmt.Errorf("config: constitution_version %q is not semver: %w", c.ConstitutionVersion, err)
		}
	}
	return nil
}

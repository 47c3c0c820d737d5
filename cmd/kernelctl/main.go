package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sovereign-systems/constitutional-kernel/pkg/auditlog"
	"github.com/sovereign-systems/constitutional-kernel/pkg/config"
	"github.com/sovereign-systems/constitutional-kernel/pkg/contract"
	"github.com/sovereign-systems/constitutional-kernel/pkg/decision"
	"github.com/sovereign-systems/constitutional-kernel/pkg/gatekeeper"
	"github.com/sovereign-systems/constitutional-kernel/pkg/orchestrator"
)

const version = "v0.1.0"

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "evaluate":
		return runEvaluateCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "version", "--version":
		fmt.Fprintf(stdout, "kernelctl %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Constitutional Kernel %s\n", version)
	fmt.Fprintln(w, "Agents propose. The kernel disposes.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  kernelctl <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	fmt.Fprintln(w, "  evaluate   Evaluate a batch of proposals (--proposals, --mode, --db, --json)")
	fmt.Fprintln(w, "  verify     Verify the audit log hash chain (--db, --from, --to, --json)")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show this help")
	fmt.Fprintln(w, "")
}

func runEvaluateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		proposalsPath string
		modeStr       string
		dbPath        string
		jsonOutput    bool
	)
	cmd.StringVar(&proposalsPath, "proposals", "", "Path to a JSON array of proposals, or '-' for stdin (REQUIRED)")
	cmd.StringVar(&modeStr, "mode", "", "Enforcement mode: observe, advise, enforce (default: config)")
	cmd.StringVar(&dbPath, "db", "", "SQLite audit database path (default: config, or in-memory)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output decisions as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if proposalsPath == "" {
		fmt.Fprintln(stderr, "Error: --proposals is required")
		cmd.Usage()
		return 2
	}

	cfg := config.FromEnv()
	if modeStr != "" {
		cfg.Mode = modeStr
	}
	if dbPath != "" {
		cfg.AuditDBPath = dbPath
	}
	mode, err := gatekeeper.ParseMode(cfg.Mode)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	proposals, err := loadProposals(proposalsPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading proposals: %v\n", err)
		return 2
	}

	var logOpts []auditlog.Option
	if cfg.AuditDBPath != "" {
		store, err := auditlog.OpenSQLiteStore(cfg.AuditDBPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error opening audit store: %v\n", err)
			return 1
		}
		defer store.Close()
		logOpts = append(logOpts, auditlog.WithStore(store))
	}

	log, err := auditlog.New(logOpts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening audit log: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(stderr, nil))
	gk, err := gatekeeper.New(cfg, log, gatekeeper.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	orc, err := orchestrator.New(cfg, gk, log, orchestrator.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	decisions, err := orc.Coordinate(context.Background(), proposals, mode)
	if err != nil {
		fmt.Fprintf(stderr, "Evaluation failed: %v\n", err)
		return 1
	}
	metrics := orchestrator.Summarize(decisions)

	if jsonOutput {
		out := map[string]any{
			"mode":      string(mode),
			"decisions": decisions,
			"metrics":   metrics,
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(stdout, string(data))
	} else {
		for _, d := range decisions {
			printDecision(stdout, d)
		}
		fmt.Fprintf(stdout, "\n%d evaluated: %d approved, %d rejected, %d escalated (%d tokens)\n",
			metrics.Total, metrics.Approved, metrics.Rejected, metrics.Escalated, metrics.EnergyTotal)
	}

	if metrics.Rejected > 0 && mode == gatekeeper.ModeEnforce {
		return 1
	}
	return 0
}

func printDecision(w io.Writer, d *decision.Decision) {
	marker := map[decision.Overall]string{
		decision.Approve:       "PASS",
		decision.Reject:        "FAIL",
		decision.EscalateHuman: "HOLD",
	}[d.Overall]
	fmt.Fprintf(w, "[%s] %s %s (%d/%d gates", marker, d.ProposalID, d.Overall,
		d.GatesPassed, len(d.Results))
	if len(d.GatesFailed) > 0 {
		fmt.Fprintf(w, ", failed %v", d.GatesFailed)
	}
	fmt.Fprint(w, ")")
	if d.Note != "" {
		fmt.Fprintf(w, " %s", d.Note)
	}
	fmt.Fprintln(w, "")
}

func loadProposals(path string) ([]*contract.Proposal, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		// Accept a single proposal object as well as an array.
		raws = []json.RawMessage{data}
	}

	validator, err := contract.NewSchemaValidator()
	if err != nil {
		return nil, err
	}
	proposals := make([]*contract.Proposal, 0, len(raws))
	for i, raw := range raws {
		p, err := validator.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("proposal %d: %w", i, err)
		}
		proposals = append(proposals, p)
	}
	return proposals, nil
}

func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		dbPath     string
		from, to   uint64
		jsonOutput bool
	)
	cmd.StringVar(&dbPath, "db", "", "SQLite audit database path (REQUIRED)")
	cmd.Uint64Var(&from, "from", 0, "First sequence number to verify (default: start)")
	cmd.Uint64Var(&to, "to", 0, "Last sequence number to verify (default: head)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if dbPath == "" {
		fmt.Fprintln(stderr, "Error: --db is required")
		cmd.Usage()
		return 2
	}

	store, err := auditlog.OpenSQLiteStore(dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening audit store: %v\n", err)
		return 1
	}
	defer store.Close()

	log, err := auditlog.New(auditlog.WithStore(store))
	if err != nil {
		fmt.Fprintf(stderr, "Error loading audit log: %v\n", err)
		return 1
	}

	verifyErr := log.Verify(from, to)

	if jsonOutput {
		result := map[string]any{
			"db":      dbPath,
			"records": log.Len(),
			"valid":   verifyErr == nil,
		}
		if verifyErr != nil {
			result["error"] = verifyErr.Error()
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(stdout, string(data))
	} else if verifyErr != nil {
		fmt.Fprintf(stderr, "Chain verification failed: %v\n", verifyErr)
	} else {
		fmt.Fprintf(stdout, "Chain verified: %d records\n", log.Len())
	}

	if verifyErr != nil {
		return 1
	}
	return 0
}

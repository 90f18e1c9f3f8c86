package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/odyssey-erp/odyssey-ledger/internal/integrity"
)

// Scanner runs one integrity pass.
type Scanner interface {
	Scan(ctx context.Context) (integrity.Report, error)
}

// IntegrityOptions defines available flags for the integrity-scan command.
type IntegrityOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// IntegritySummary is the JSON form of a scan.
type IntegritySummary struct {
	OK         bool               `json:"ok"`
	Counts     map[string]int     `json:"counts"`
	Violations []IntegrityFinding `json:"violations"`
}

// IntegrityFinding is one violation in the JSON output.
type IntegrityFinding struct {
	Check     string `json:"check"`
	CompanyID int64  `json:"company_id"`
	EntityID  int64  `json:"entity_id"`
	Detail    string `json:"detail"`
}

// IntegrityCommand runs the scan synchronously. It exits 0 when clean, 1 when
// violations were found and 2 when the scan itself failed.
func IntegrityCommand(ctx context.Context, scanner Scanner, opts IntegrityOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	report, err := scanner.Scan(ctx)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "integrity scan failed: %v\n", err)
		return 2
	}
	summary := IntegritySummary{OK: report.Clean(), Counts: report.Counts(), Violations: []IntegrityFinding{}}
	for _, v := range report.Violations {
		summary.Violations = append(summary.Violations, IntegrityFinding{
			Check: v.Check, CompanyID: v.CompanyID, EntityID: v.EntityID, Detail: v.Detail,
		})
	}
	if opts.JSONOutput {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fmt.Fprintf(opts.Stderr, "encode summary: %v\n", err)
			return 2
		}
	} else {
		if summary.OK {
			fmt.Fprintln(opts.Stdout, "ledger integrity OK")
		}
		for _, v := range summary.Violations {
			fmt.Fprintf(opts.Stdout, "%s company=%d entity=%d %s\n", v.Check, v.CompanyID, v.EntityID, v.Detail)
		}
	}
	if !summary.OK {
		return 1
	}
	return 0
}

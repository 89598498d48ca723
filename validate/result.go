// Package validate implements the dual validation layer: structural
// conformance against the fixed artifact grammar, business conformance
// against the originating definition, and composition of validator
// findings into correction directives for the next generation attempt.
package validate

import "fmt"

// Status is the outcome of one validator pass.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	// StatusUncertain means the validator could not locate the value it
	// needed to check. It is a retrieval limitation, not a proven
	// violation, and is never collapsed into PASS or FAIL.
	StatusUncertain Status = "UNCERTAIN"
)

// Severity classifies a finding.
type Severity string

const (
	SeverityViolation Severity = "violation"
	SeverityUncertain Severity = "uncertain"
)

// Finding is one located defect or retrieval gap in a candidate artifact.
type Finding struct {
	Field    string   // what was checked, e.g. "mapping-function/bin[2]/@upper"
	Expected string
	Observed string
	Severity Severity
	Locator  string // path within the artifact
}

func (f Finding) String() string {
	return fmt.Sprintf("%s at %s: expected %s, observed %s", f.Field, f.Locator, f.Expected, f.Observed)
}

// Result is the aggregate outcome of one validator over one artifact.
type Result struct {
	Status   Status
	Findings []Finding
}

// Aggregate derives the result status from its findings: FAIL if any
// violation exists, else UNCERTAIN if any uncertain finding exists,
// else PASS.
func Aggregate(findings []Finding) Result {
	status := StatusPass
	for _, f := range findings {
		if f.Severity == SeverityViolation {
			status = StatusFail
			break
		}
		status = StatusUncertain
	}
	return Result{Status: status, Findings: findings}
}

// Violations returns only the violation-severity findings, in order.
func (r Result) Violations() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == SeverityViolation {
			out = append(out, f)
		}
	}
	return out
}

// Uncertain returns only the uncertain-severity findings, in order.
func (r Result) Uncertain() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == SeverityUncertain {
			out = append(out, f)
		}
	}
	return out
}

func violation(locator, field, expected, observed string) Finding {
	return Finding{
		Field:    field,
		Expected: expected,
		Observed: observed,
		Severity: SeverityViolation,
		Locator:  locator,
	}
}

func uncertain(locator, field, expected, observed string) Finding {
	return Finding{
		Field:    field,
		Expected: expected,
		Observed: observed,
		Severity: SeverityUncertain,
		Locator:  locator,
	}
}

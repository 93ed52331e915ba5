package policy

import (
	"fmt"
	"strings"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that are reported but do not block a run.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the run.
	SeverityError Severity = "error"

	// SeverityCritical blocks the run.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether a violation of this severity stops a run.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is a Rego module whose deny rule is evaluated once per declared
// resource.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Source is the file the policy was loaded from; empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation is a single deny result.
type Violation struct {
	Policy   string   `json:"policy"`
	Resource string   `json:"resource,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (v Violation) String() string {
	if v.Resource == "" {
		return fmt.Sprintf("[%s] %s: %s", v.Severity, v.Policy, v.Message)
	}
	return fmt.Sprintf("[%s] %s: %s: %s", v.Severity, v.Policy, v.Resource, v.Message)
}

// Result is the outcome of evaluating every enabled policy against a set of
// declarations.
type Result struct {
	// Allowed is false when any violation is blocking.
	Allowed bool `json:"allowed"`

	// Violations are the blocking findings.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings are the non-blocking findings.
	Warnings []Violation `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of the policies that ran.
	EvaluatedPolicies []string `json:"evaluated_policies"`
}

// Err returns a DeniedError when the result is not allowed.
func (r *Result) Err() error {
	if r == nil || r.Allowed {
		return nil
	}
	return &DeniedError{Violations: r.Violations}
}

// DeniedError is returned for declarations that fail a blocking policy.
type DeniedError struct {
	Violations []Violation
}

func (e *DeniedError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return "policy denied: " + strings.Join(msgs, "; ")
}

// Input is the document a policy sees as input.
type Input struct {
	Resource ResourceInput `json:"resource"`
	Context  Context       `json:"context"`
}

// ResourceInput describes one declared resource. Attributes of sensitive
// resources carry their keys only.
type ResourceInput struct {
	Type          string                 `json:"type"`
	Name          string                 `json:"name"`
	Identity      string                 `json:"identity"`
	Action        string                 `json:"action"`
	Attributes    map[string]interface{} `json:"attributes"`
	Sensitive     bool                   `json:"sensitive"`
	IgnoreFailure bool                   `json:"ignore_failure"`
	Guarded       bool                   `json:"guarded"`
	NestingLevel  int                    `json:"nesting_level"`
	Parent        string                 `json:"parent,omitempty"`
	Children      int                    `json:"children"`
}

// Context describes the run the declarations belong to.
type Context struct {
	Node   string `json:"node"`
	WhyRun bool   `json:"why_run"`
}

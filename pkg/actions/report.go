package actions

import "time"

// ActionReport records one attempt to run an action on a resource.
// It is mutable only while it sits on the pending stack.
type ActionReport struct {
	// Resource is the declared resource, or its redacted surrogate once
	// finalized if the resource is sensitive.
	Resource Resource

	// CurrentResource is the pre-action state; nil when loading failed, was
	// skipped or never happened.
	CurrentResource Resource

	// Action is the symbolic operation name.
	Action string

	// Status is the outcome.
	Status Status

	// Exception is the error recorded by ResourceFailed.
	Exception error

	// Conditional explains a skipped status.
	Conditional Conditional

	// NestingLevel is the pending stack depth when the record was pushed.
	NestingLevel int

	elapsed *time.Duration
}

// NewActionReport creates the pending record pushed by ResourceActionStart.
func NewActionReport(resource Resource, action string, nestingLevel int) *ActionReport {
	return &ActionReport{
		Resource:     resource,
		Action:       action,
		Status:       StatusPending,
		NestingLevel: nestingLevel,
	}
}

// NewUnprocessedReport creates a finalized record for an action the run
// never reached.
func NewUnprocessedReport(resource Resource, action string, nestingLevel int) ActionReport {
	r := ActionReport{
		Resource:     resource,
		Action:       action,
		Status:       StatusUnprocessed,
		NestingLevel: nestingLevel,
	}
	r.finalize(nil)
	return r
}

// Success is true iff no error was recorded. It says nothing about Status:
// an unprocessed record is a success here and must be read as inconclusive.
func (r ActionReport) Success() bool {
	return r.Exception == nil
}

// ElapsedTime returns the action duration and whether one was recorded.
// Records swept by an aborted run have none.
func (r ActionReport) ElapsedTime() (time.Duration, bool) {
	if r.elapsed == nil {
		return 0, false
	}
	return *r.elapsed, true
}

// finalize fixes the elapsed time and applies redaction.
func (r *ActionReport) finalize(elapsed *time.Duration) {
	r.elapsed = elapsed
	if r.Resource == nil || !r.Resource.IsSensitive() {
		return
	}
	r.Resource = r.Resource.RedactedCopy()
	if r.CurrentResource != nil {
		r.CurrentResource = r.CurrentResource.RedactedCopy()
	}
}

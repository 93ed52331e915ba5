package actions

import "time"

// Resource is the capability set the collection needs from a declared
// resource. The collection never mutates a resource; it only replaces its
// reference with RedactedCopy when the resource is sensitive.
type Resource interface {
	// Type is the resource type, e.g. "file".
	Type() string

	// Name is the resource name as declared.
	Name() string

	// Identity is the display identity, conventionally "type[name]".
	Identity() string

	// IsSensitive reports whether attribute values must stay out of reports.
	IsSensitive() bool

	// RedactedCopy returns a surrogate exposing nothing but type and name.
	RedactedCopy() Resource

	// ElapsedTime is how long the last action on this resource took.
	ElapsedTime() time.Duration
}

// Conditional explains why an action was skipped.
type Conditional interface {
	Description() string
}

// PlannedAction is a declared (resource, action) pair.
type PlannedAction struct {
	Resource Resource
	Action   string
}

// RunInfo is the read-only run metadata handed over by RunStarted.
type RunInfo interface {
	RunID() string
	NodeName() string
	StartTime() time.Time
	// EndTime is zero until the run finishes.
	EndTime() time.Time
}

// RunContext is the active converge run.
type RunContext interface {
	// UnreachedActions lists top-level declared actions that never started.
	UnreachedActions() []PlannedAction
}

// Announcer delivers the collection-registration notification emitted by
// ConvergeStart. Delivery must be synchronous.
type Announcer interface {
	AnnounceActionCollection(c *ActionCollection)
}

package actions

import (
	"encoding/json"
	"fmt"
)

// Status is the outcome of a single resource action.
type Status string

const (
	// StatusPending marks an action that started but has no outcome yet.
	StatusPending Status = "pending"

	// StatusUpToDate marks an action that found the resource already converged.
	StatusUpToDate Status = "up_to_date"

	// StatusSkipped marks an action whose guard prevented it from running.
	StatusSkipped Status = "skipped"

	// StatusUpdated marks an action that changed the resource.
	StatusUpdated Status = "updated"

	// StatusFailed marks an action that raised an error.
	StatusFailed Status = "failed"

	// StatusUnprocessed marks an action that never finished because the run aborted.
	StatusUnprocessed Status = "unprocessed"
)

// AllStatuses returns every status a finalized record can carry.
func AllStatuses() []Status {
	return []Status{
		StatusUpToDate,
		StatusSkipped,
		StatusUpdated,
		StatusFailed,
		StatusUnprocessed,
	}
}

// IsTerminal returns true once the action has an outcome.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// Validate checks if the status is valid.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusUpToDate, StatusSkipped,
		StatusUpdated, StatusFailed, StatusUnprocessed:
		return nil
	default:
		return fmt.Errorf("invalid action status: %s", s)
	}
}

// ParseStatus converts a string into a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if err := st.Validate(); err != nil {
		return "", err
	}
	return st, nil
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = Status(str)
	return s.Validate()
}

// RunStatus is the overall outcome of a run.
type RunStatus string

const (
	// RunStatusUnknown is reported until RunCompleted or RunFailed fires.
	RunStatusUnknown RunStatus = ""

	// RunStatusSuccess indicates the run completed.
	RunStatusSuccess RunStatus = "success"

	// RunStatusFailure indicates the run failed.
	RunStatusFailure RunStatus = "failure"
)

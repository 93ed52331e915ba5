package stores

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Run is a persisted converge run.
type Run struct {
	ID               string                 `json:"id"`
	Node             string                 `json:"node"`
	Status           string                 `json:"status"`
	StartedAt        time.Time              `json:"started_at"`
	EndedAt          time.Time              `json:"ended_at,omitempty"`
	TotalResources   int                    `json:"total_resources"`
	Exception        *string                `json:"exception,omitempty"`
	ErrorDescription map[string]interface{} `json:"error_description,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// ActionRecord is a persisted finalized action record. Seq preserves the
// order of the completed log.
type ActionRecord struct {
	RunID        string         `json:"run_id"`
	Seq          int            `json:"seq"`
	ResourceType string         `json:"resource_type"`
	ResourceName string         `json:"resource_name"`
	Identity     string         `json:"identity"`
	Action       string         `json:"action"`
	Status       string         `json:"status"`
	NestingLevel int            `json:"nesting_level"`
	Elapsed      *time.Duration `json:"elapsed,omitempty"`
	Exception    *string        `json:"exception,omitempty"`
	Conditional  *string        `json:"conditional,omitempty"`
	Sensitive    bool           `json:"sensitive"`
}

// RecordFilter selects action records the way the collection filters its
// completed log: NestingLevel <= MaxNesting and status in Statuses. An empty
// status set matches nothing.
type RecordFilter struct {
	MaxNesting int
	Statuses   []string
}

// Store defines the persistence layer for runs and their action records.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Run operations
	SaveRun(ctx context.Context, run *Run, records []ActionRecord) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Action record operations
	ListActionRecords(ctx context.Context, runID string) ([]ActionRecord, error)
	FilterActionRecords(ctx context.Context, runID string, filter RecordFilter) ([]ActionRecord, error)
	CountByStatus(ctx context.Context, runID string) (map[string]int, error)

	// Utility
	HealthCheck(ctx context.Context) error
}

package reporters

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/actiontracker/pkg/actions"
	"github.com/openfroyo/actiontracker/pkg/events"
	"github.com/openfroyo/actiontracker/pkg/stores"
)

// AuditReporter persists every run and its records to a store.
//
// Saving uses its own deadline rather than the run's context: a run that was
// aborted by cancellation is still recorded.
type AuditReporter struct {
	events.NopHandler
	subscription

	store   stores.Store
	timeout time.Duration
	logger  zerolog.Logger
	err     error
}

// NewAuditReporter creates a reporter saving to store.
func NewAuditReporter(store stores.Store, logger zerolog.Logger) *AuditReporter {
	return &AuditReporter{
		store:   store,
		timeout: 30 * time.Second,
		logger:  logger.With().Str("component", "audit_reporter").Logger(),
	}
}

// ActionCollectionRegistration registers the reporter as a consumer.
func (r *AuditReporter) ActionCollectionRegistration(c *actions.ActionCollection) {
	r.subscribe(c, r)
}

func (r *AuditReporter) RunCompleted(string) { r.save() }
func (r *AuditReporter) RunFailed(error)     { r.save() }

// Err returns the error of the last save, if any.
func (r *AuditReporter) Err() error {
	return r.err
}

func (r *AuditReporter) save() {
	if r.collection == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	run := StoreRun(r.collection)
	records := StoreRecords(run.ID, r.collection.Records())
	if err := r.store.SaveRun(ctx, run, records); err != nil {
		r.err = fmt.Errorf("failed to save run %s: %w", run.ID, err)
		r.logger.Error().Err(err).Str("run_id", run.ID).Msg("failed to save run")
		return
	}
	r.logger.Info().
		Str("run_id", run.ID).
		Str("status", run.Status).
		Int("records", len(records)).
		Msg("run saved")
}

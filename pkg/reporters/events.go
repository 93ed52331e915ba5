package reporters

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/actiontracker/pkg/actions"
	"github.com/openfroyo/actiontracker/pkg/events"
	"github.com/openfroyo/actiontracker/pkg/telemetry"
)

// EventReporter publishes telemetry events for the run and, once it ends,
// one event per finalized record.
type EventReporter struct {
	events.NopHandler
	subscription

	publisher *telemetry.EventPublisher
	logger    zerolog.Logger
	runID     string
}

// NewEventReporter creates a reporter publishing to publisher.
func NewEventReporter(publisher *telemetry.EventPublisher, logger zerolog.Logger) *EventReporter {
	return &EventReporter{
		publisher: publisher,
		logger:    logger.With().Str("component", "event_reporter").Logger(),
	}
}

// ActionCollectionRegistration registers the reporter as a consumer.
func (r *EventReporter) ActionCollectionRegistration(c *actions.ActionCollection) {
	r.subscribe(c, r)
}

// RunStarted publishes the start of the run.
func (r *EventReporter) RunStarted(info actions.RunInfo) {
	r.runID = info.RunID()
	r.check(r.publisher.PublishRunStarted(info.RunID(), info.NodeName()))
}

func (r *EventReporter) RunCompleted(string) {
	var (
		sums     map[string]int
		duration time.Duration
	)
	if c := r.publishRecords(); c != nil {
		sums = totals(c)
		duration = runDuration(c)
	}
	r.check(r.publisher.PublishRunCompleted(r.runID, sums, duration))
}

func (r *EventReporter) RunFailed(err error) {
	var sums map[string]int
	if c := r.publishRecords(); c != nil {
		sums = totals(c)
	}
	r.check(r.publisher.PublishRunFailed(r.runID, errString(err), sums))
}

func (r *EventReporter) publishRecords() *actions.ActionCollection {
	c := r.collection
	if c == nil {
		return nil
	}
	for _, rec := range c.Records() {
		d, measured := rec.ElapsedTime()
		r.check(r.publisher.PublishActionRecorded(r.runID, telemetry.ActionRecord{
			Resource:     rec.Resource.Identity(),
			ResourceType: rec.Resource.Type(),
			Action:       rec.Action,
			Status:       string(rec.Status),
			NestingLevel: rec.NestingLevel,
			Elapsed:      d,
			Measured:     measured,
			Error:        errString(rec.Exception),
		}))
	}
	return c
}

func (r *EventReporter) check(err error) {
	if err != nil {
		r.logger.Warn().Err(err).Str("run_id", r.runID).Msg("failed to publish event")
	}
}

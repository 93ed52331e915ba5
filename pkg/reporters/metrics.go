package reporters

import (
	"errors"
	"time"

	"github.com/openfroyo/actiontracker/pkg/actions"
	"github.com/openfroyo/actiontracker/pkg/engine"
	"github.com/openfroyo/actiontracker/pkg/events"
	"github.com/openfroyo/actiontracker/pkg/telemetry"
)

// MetricsReporter records run and action outcomes in Prometheus metrics.
type MetricsReporter struct {
	events.NopHandler
	subscription

	metrics *telemetry.Metrics
	started bool
}

// NewMetricsReporter creates a reporter feeding metrics.
func NewMetricsReporter(metrics *telemetry.Metrics) *MetricsReporter {
	return &MetricsReporter{metrics: metrics}
}

// ActionCollectionRegistration registers the reporter as a consumer.
func (r *MetricsReporter) ActionCollectionRegistration(c *actions.ActionCollection) {
	r.subscribe(c, r)
}

// RunStarted marks a run in progress.
func (r *MetricsReporter) RunStarted(actions.RunInfo) {
	r.metrics.RecordRunStarted()
	r.started = true
}

func (r *MetricsReporter) RunCompleted(string) { r.record(actions.RunStatusSuccess, nil) }
func (r *MetricsReporter) RunFailed(err error) { r.record(actions.RunStatusFailure, err) }

// record counts every finalized record and each distinct failure once:
// a failure propagated to ancestor records carries the run's exception.
func (r *MetricsReporter) record(status actions.RunStatus, runErr error) {
	var duration time.Duration
	if c := r.collection; c != nil {
		for _, rec := range c.Records() {
			d, measured := rec.ElapsedTime()
			r.metrics.RecordAction(rec.Resource.Type(), string(rec.Status), d, measured)
			if rec.Exception != nil && (runErr == nil || !errors.Is(rec.Exception, runErr)) {
				r.recordError(rec.Exception)
			}
		}
		duration = runDuration(c)
	}
	if runErr != nil {
		r.recordError(runErr)
	}
	if !r.started {
		return
	}
	r.metrics.RecordRunFinished(string(status), duration)
	r.started = false
}

func (r *MetricsReporter) recordError(err error) {
	code := engine.CodeOf(err)
	if code == "" {
		code = "UNKNOWN"
	}
	r.metrics.RecordError(string(engine.Classify(err)), code)
}

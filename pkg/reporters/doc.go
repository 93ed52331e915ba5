// Package reporters holds the consumers of the action collection.
//
// Every reporter is an events.Handler that also implements
// events.CollectionSubscriber: when the dispatcher announces the collection
// at converge start, the reporter registers with it, which turns action
// tracking on. At the end of the run the reporter reads the finalized
// records and hands them to its sink:
//
//   - SummaryReporter writes a YAML or JSON document
//   - AuditReporter persists the run to a stores.Store
//   - MetricsReporter feeds telemetry.Metrics
//   - EventReporter publishes telemetry events
//
// The collection must be registered with the dispatcher before any reporter
// so that it has settled the run status when the reporters read it.
package reporters

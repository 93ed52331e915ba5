// Package actions tracks what happened to every resource action during a
// converge run.
//
// # Overview
//
// The ActionCollection is an event sink. The convergence engine drives it
// through a strictly ordered sequence of lifecycle calls:
//
//	run:      RunStarted ConvergeStart action* (ConvergeComplete | ConvergeFailed) (RunCompleted | RunFailed)
//	action:   ResourceActionStart ResourceCurrentStateLoaded? terminal ResourceCompleted
//	terminal: ResourceUpToDate | ResourceSkipped | ResourceUpdated | ResourceFailed
//
// An action production may nest inside another one between its
// ResourceActionStart and ResourceCompleted. Every in-flight action lives on a
// pending stack; its NestingLevel is the stack depth at the moment it was
// pushed. ResourceCompleted pops the record, fixes its elapsed time, redacts
// sensitive resources and appends it to the completed log.
//
// # Consumers
//
// Tracking is opt-in. Until the first consumer calls Register, every resource
// and converge event is a no-op: nothing is pushed, logged or counted.
// Consumers normally register while ConvergeStart announces the collection
// through the configured Announcer, which guarantees the registration happens
// before the first resource event.
//
// # Aborted runs
//
// ConvergeComplete and ConvergeFailed drain whatever is still on the pending
// stack, innermost record first. Records that never received a terminal
// status become StatusUnprocessed; records that did (for example a failed
// resource whose completion never fired) keep it. Declared actions the engine
// never started are appended afterwards as unprocessed records at nesting
// level zero when the RunContext can list them.
//
// # Success versus status
//
// ActionReport.Success reports only whether an error was recorded. An
// unprocessed record has no error and therefore reports success; consumers
// must treat that as inconclusive, not as converged.
//
// # Concurrency
//
// An ActionCollection is not safe for concurrent use. Exactly one convergence
// engine drives it from a single goroutine, and children complete before
// their parents. Those ordering rules are preconditions, not checked
// invariants.
package actions

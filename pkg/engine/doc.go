// Package engine is a sequential convergence engine that drives the action
// collection.
//
// # Overview
//
// Engine.Converge walks a list of declared resources depth-first and
// reports each step to an events.Handler in the order the lifecycle grammar
// requires:
//
//	RunStarted RunListExpanded ConvergeStart
//	  ( ResourceActionStart CurrentStateLoaded? <children>
//	    (UpToDate | Skipped | Updated | Failed) ResourceCompleted )*
//	(ConvergeComplete | ConvergeFailed) (RunCompleted | RunFailed)
//
// Sub-resources are converged from inside their parent's action, so their
// records carry a deeper nesting level and complete before the parent.
//
// # Per-resource steps
//
//  1. Resolve the provider and action from the Registry
//  2. Evaluate not_if and only_if guards (Starlark expressions)
//  3. In why-run mode, skip providers that cannot simulate their action
//  4. Load current state and report it when the resource exists
//  5. Converge (or WouldConverge in why-run mode), then the children
//  6. Report the terminal status and complete the resource
//
// # Failures
//
// A failed resource is reported with ResourceFailed and no ResourceCompleted.
// Its ancestors unwind without a terminal event of their own, so the
// collection records them as unprocessed, and the run ends with
// ConvergeFailed. A resource declared with ignore_failure is completed after
// its own failure and the run continues; ignore_failure does not catch a
// failure raised by a descendant.
//
// Cancelling the context aborts the run between actions. In-flight actions
// receive no terminal event; the collection records them as unprocessed.
//
// # Error Classification
//
// Errors returned by Converge are EngineErrors classified as transient,
// throttled, conflict or permanent, with a code naming the failing step:
//
//	if errors.Is(err, engine.ErrAborted) {
//	    // the run was interrupted
//	}
//
// # Example Usage
//
//	collection := actions.New()
//	bus := events.NewDispatcher(collection, summary)
//	collection.SetAnnouncer(bus)
//
//	eng := engine.New(providers.Default(logger), bus, engine.WithLogger(logger))
//	err := eng.Converge(ctx, engine.NewRun("web-01"), declared)
package engine

package actions

import (
	"time"

	"github.com/rs/zerolog"
)

// ActionCollection assembles the ordered report of a converge run from the
// lifecycle events of the convergence engine.
type ActionCollection struct {
	logger    zerolog.Logger
	mapper    ErrorMapper
	announcer Announcer

	consumers []interface{}
	tracking  bool

	pending   pendingStack
	completed completedLog

	totalResourceCount int

	runInfo          RunInfo
	runContext       RunContext
	runStatus        RunStatus
	exception        error
	errorDescription Description
}

// Option configures an ActionCollection.
type Option func(*ActionCollection)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *ActionCollection) {
		c.logger = logger.With().Str("component", "action_collection").Logger()
	}
}

// WithErrorMapper sets the collaborator that describes failures.
func WithErrorMapper(m ErrorMapper) Option {
	return func(c *ActionCollection) {
		if m != nil {
			c.mapper = m
		}
	}
}

// WithAnnouncer sets the bus that ConvergeStart announces the collection on.
func WithAnnouncer(a Announcer) Option {
	return func(c *ActionCollection) {
		c.announcer = a
	}
}

// New creates an empty collection with tracking disabled.
func New(opts ...Option) *ActionCollection {
	c := &ActionCollection{
		logger: zerolog.Nop(),
		mapper: plainMapper{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAnnouncer replaces the announcer. It exists for buses that are built
// after the collection they dispatch to.
func (c *ActionCollection) SetAnnouncer(a Announcer) {
	c.announcer = a
}

// Register adds a consumer token. Duplicates are kept. The first
// registration turns tracking on for every later event.
func (c *ActionCollection) Register(consumer interface{}) {
	c.consumers = append(c.consumers, consumer)
	if !c.tracking {
		c.tracking = true
		c.logger.Debug().Msg("action tracking enabled")
	}
}

// Tracking reports whether at least one consumer is registered.
func (c *ActionCollection) Tracking() bool {
	return c.tracking
}

// Consumers returns the number of registrations.
func (c *ActionCollection) Consumers() int {
	return len(c.consumers)
}

// RunStarted stores the run metadata.
func (c *ActionCollection) RunStarted(info RunInfo) {
	c.runInfo = info
}

// RunListExpanded is the success path of run list expansion; nothing is recorded.
func (c *ActionCollection) RunListExpanded(runList []string) {
	c.logger.Debug().Strs("run_list", runList).Msg("run list expanded")
}

// RunListExpandFailed records a run list expansion failure.
func (c *ActionCollection) RunListExpandFailed(node string, err error) {
	c.logger.Debug().Str("node", node).Err(err).Msg("run list expansion failed")
	c.describeRunFailure(ContextRunListExpand, err)
}

// CookbookResolutionFailed records a dependency resolution failure.
func (c *ActionCollection) CookbookResolutionFailed(runList []string, err error) {
	c.describeRunFailure(ContextCookbookResolution, err)
}

// CookbookSyncFailed records a dependency synchronization failure.
func (c *ActionCollection) CookbookSyncFailed(cookbooks []string, err error) {
	c.describeRunFailure(ContextCookbookSync, err)
}

// ConvergeStart binds the collection to the run and announces it so that
// consumers can register before the first resource event.
func (c *ActionCollection) ConvergeStart(rc RunContext) {
	c.runContext = rc
	if c.announcer != nil {
		c.announcer.AnnounceActionCollection(c)
	}
}

// ResourceActionStart pushes a pending record for the action.
func (c *ActionCollection) ResourceActionStart(resource Resource, action string) {
	if !c.tracking {
		return
	}
	level := c.pending.len()
	c.pending.push(NewActionReport(resource, action, level))
	c.logger.Debug().
		Str("resource", resource.Identity()).
		Str("action", action).
		Int("nesting_level", level).
		Msg("resource action started")
}

// ResourceCurrentStateLoaded attaches the pre-action state to the top record.
func (c *ActionCollection) ResourceCurrentStateLoaded(resource Resource, action string, current Resource) {
	if !c.tracking {
		return
	}
	c.updateTop("current_state_loaded", resource, func(r *ActionReport) {
		r.CurrentResource = current
	})
}

// ResourceUpToDate marks the top record as already converged.
func (c *ActionCollection) ResourceUpToDate(resource Resource, action string) {
	c.setTerminal("up_to_date", resource, func(r *ActionReport) {
		r.Status = StatusUpToDate
	})
}

// ResourceSkipped marks the top record as skipped by cond.
func (c *ActionCollection) ResourceSkipped(resource Resource, action string, cond Conditional) {
	c.setTerminal("skipped", resource, func(r *ActionReport) {
		r.Status = StatusSkipped
		r.Conditional = cond
	})
}

// ResourceUpdated marks the top record as changed.
func (c *ActionCollection) ResourceUpdated(resource Resource, action string) {
	c.setTerminal("updated", resource, func(r *ActionReport) {
		r.Status = StatusUpdated
	})
}

// ResourceFailed marks the top record as failed and replaces the stored
// error description. The last failure wins; earlier failures stay visible
// on their own records.
func (c *ActionCollection) ResourceFailed(resource Resource, action string, err error) {
	c.setTerminal("failed", resource, func(r *ActionReport) {
		r.Status = StatusFailed
		r.Exception = err
		c.errorDescription = c.mapper.ResourceFailed(resource, action, err)
	})
}

// ResourceCompleted finalizes the top record and moves it to the completed log.
func (c *ActionCollection) ResourceCompleted(resource Resource) {
	if !c.tracking {
		return
	}
	r, ok := c.pending.pop()
	if !ok {
		c.logger.Warn().Str("resource", resource.Identity()).Msg("resource completed with no pending action")
		return
	}
	elapsed := resource.ElapsedTime()
	r.finalize(&elapsed)
	c.completed.append(*r)
	c.logger.Debug().
		Str("resource", r.Resource.Identity()).
		Str("action", r.Action).
		Str("status", string(r.Status)).
		Dur("elapsed", elapsed).
		Msg("resource action completed")
}

// ConvergeComplete resolves anything left pending. The log grows by the
// pending depth plus the number of unreached top-level actions.
func (c *ActionCollection) ConvergeComplete() {
	if !c.tracking {
		return
	}
	c.sweepUnprocessed()
}

// ConvergeFailed resolves the actions interrupted by err. The N pending
// actions are appended innermost first, those still pending as unprocessed,
// followed by one unprocessed record per unreached top-level action. The log
// grows by N plus the unreached count.
func (c *ActionCollection) ConvergeFailed(err error) {
	if !c.tracking {
		return
	}
	c.sweepUnprocessed()
}

// RunCompleted marks the run successful.
func (c *ActionCollection) RunCompleted(node string) {
	c.runStatus = RunStatusSuccess
	c.exception = nil
}

// RunFailed marks the run failed and records err as the run exception.
func (c *ActionCollection) RunFailed(err error) {
	c.runStatus = RunStatusFailure
	c.exception = err
	c.describeRunFailure(ContextRun, err)
}

// sweepUnprocessed drains the pending stack innermost first, then appends
// the actions the run never reached.
func (c *ActionCollection) sweepUnprocessed() {
	swept := 0
	for {
		r, ok := c.pending.pop()
		if !ok {
			break
		}
		if r.Status == StatusPending {
			r.Status = StatusUnprocessed
		}
		r.finalize(nil)
		c.completed.append(*r)
		swept++
	}

	unreached := 0
	if c.runContext != nil {
		for _, pa := range c.runContext.UnreachedActions() {
			c.completed.append(NewUnprocessedReport(pa.Resource, pa.Action, 0))
			unreached++
		}
	}

	if swept > 0 || unreached > 0 {
		c.logger.Warn().
			Int("interrupted", swept).
			Int("unreached", unreached).
			Msg("recorded actions that did not complete")
	}
}

// setTerminal applies a terminal status to the top record and counts it.
func (c *ActionCollection) setTerminal(event string, resource Resource, fn func(r *ActionReport)) {
	if !c.tracking {
		return
	}
	if c.updateTop(event, resource, fn) {
		c.totalResourceCount++
	}
}

func (c *ActionCollection) updateTop(event string, resource Resource, fn func(r *ActionReport)) bool {
	if c.pending.update(fn) {
		return true
	}
	c.logger.Warn().
		Str("event", event).
		Str("resource", resource.Identity()).
		Msg("lifecycle event with no pending action")
	return false
}

// describeRunFailure runs whether or not a consumer registered: run-level
// failures can happen before converge start, when consumers subscribe.
func (c *ActionCollection) describeRunFailure(context string, err error) {
	if err == nil {
		return
	}
	c.errorDescription = c.mapper.RunFailed(context, err)
}

// Records returns a copy of the completed log in insertion order.
func (c *ActionCollection) Records() []ActionReport {
	return c.completed.snapshot()
}

// Len returns the number of finalized records.
func (c *ActionCollection) Len() int {
	return c.completed.len()
}

// Filtered returns finalized records with NestingLevel <= maxNesting and a
// status in statuses, preserving order.
func (c *ActionCollection) Filtered(maxNesting int, statuses ...Status) []ActionReport {
	return Filter(c.completed.records, maxNesting, statuses...)
}

// Counts tallies finalized records per status.
func (c *ActionCollection) Counts() map[Status]int {
	return CountByStatus(c.completed.records)
}

// PendingDepth returns the number of in-flight actions.
func (c *ActionCollection) PendingDepth() int {
	return c.pending.len()
}

// TotalResourceCount is the number of terminal events recorded.
func (c *ActionCollection) TotalResourceCount() int {
	return c.totalResourceCount
}

// RunStatus returns the run outcome.
func (c *ActionCollection) RunStatus() RunStatus {
	return c.runStatus
}

// Exception returns the top-level run error, if any.
func (c *ActionCollection) Exception() error {
	return c.exception
}

// ErrorDescription returns the description of the most recent failure.
func (c *ActionCollection) ErrorDescription() Description {
	if c.errorDescription == nil {
		return nil
	}
	out := make(Description, len(c.errorDescription))
	for k, v := range c.errorDescription {
		out[k] = v
	}
	return out
}

// RunID returns the run identifier from the run metadata.
func (c *ActionCollection) RunID() string {
	if c.runInfo == nil {
		return ""
	}
	return c.runInfo.RunID()
}

// NodeName returns the node the run converged.
func (c *ActionCollection) NodeName() string {
	if c.runInfo == nil {
		return ""
	}
	return c.runInfo.NodeName()
}

// StartTime returns when the run started.
func (c *ActionCollection) StartTime() time.Time {
	if c.runInfo == nil {
		return time.Time{}
	}
	return c.runInfo.StartTime()
}

// EndTime returns when the run finished, or zero while it is running.
func (c *ActionCollection) EndTime() time.Time {
	if c.runInfo == nil {
		return time.Time{}
	}
	return c.runInfo.EndTime()
}

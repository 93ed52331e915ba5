package events

import (
	"github.com/openfroyo/actiontracker/pkg/actions"
	"github.com/rs/zerolog"
)

// Dispatcher forwards every event to its handlers in registration order.
// Delivery is synchronous: a call returns once every handler has seen it.
type Dispatcher struct {
	handlers []Handler
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher for the given handlers.
func NewDispatcher(handlers ...Handler) *Dispatcher {
	return &Dispatcher{
		handlers: append([]Handler(nil), handlers...),
		logger:   zerolog.Nop(),
	}
}

// WithLogger sets the dispatcher logger.
func (d *Dispatcher) WithLogger(logger zerolog.Logger) *Dispatcher {
	d.logger = logger.With().Str("component", "events").Logger()
	return d
}

// Register appends a handler.
func (d *Dispatcher) Register(h Handler) {
	d.handlers = append(d.handlers, h)
}

// Len returns the number of handlers.
func (d *Dispatcher) Len() int {
	return len(d.handlers)
}

// AnnounceActionCollection offers c to every CollectionSubscriber.
func (d *Dispatcher) AnnounceActionCollection(c *actions.ActionCollection) {
	for _, h := range d.handlers {
		if s, ok := h.(CollectionSubscriber); ok {
			s.ActionCollectionRegistration(c)
		}
	}
	d.logger.Debug().Int("consumers", c.Consumers()).Msg("action collection announced")
}

func (d *Dispatcher) each(fn func(h Handler)) {
	for _, h := range d.handlers {
		fn(h)
	}
}

// RunStarted forwards the start of a run.
func (d *Dispatcher) RunStarted(info actions.RunInfo) {
	d.each(func(h Handler) { h.RunStarted(info) })
}

// RunListExpanded forwards the expanded list of top-level resources.
func (d *Dispatcher) RunListExpanded(runList []string) {
	d.each(func(h Handler) { h.RunListExpanded(runList) })
}

// RunListExpandFailed forwards a failure to expand the run list.
func (d *Dispatcher) RunListExpandFailed(node string, err error) {
	d.each(func(h Handler) { h.RunListExpandFailed(node, err) })
}

// CookbookResolutionFailed forwards a dependency resolution failure.
func (d *Dispatcher) CookbookResolutionFailed(runList []string, err error) {
	d.each(func(h Handler) { h.CookbookResolutionFailed(runList, err) })
}

// CookbookSyncFailed forwards a dependency synchronization failure.
func (d *Dispatcher) CookbookSyncFailed(cookbooks []string, err error) {
	d.each(func(h Handler) { h.CookbookSyncFailed(cookbooks, err) })
}

// ConvergeStart forwards the start of the converge phase.
func (d *Dispatcher) ConvergeStart(rc actions.RunContext) {
	d.each(func(h Handler) { h.ConvergeStart(rc) })
}

// ResourceActionStart forwards the start of one resource action.
func (d *Dispatcher) ResourceActionStart(resource actions.Resource, action string) {
	d.each(func(h Handler) { h.ResourceActionStart(resource, action) })
}

// ResourceCurrentStateLoaded forwards the state loaded for a resource.
func (d *Dispatcher) ResourceCurrentStateLoaded(resource actions.Resource, action string, current actions.Resource) {
	d.each(func(h Handler) { h.ResourceCurrentStateLoaded(resource, action, current) })
}

// ResourceUpToDate forwards an action that needed no change.
func (d *Dispatcher) ResourceUpToDate(resource actions.Resource, action string) {
	d.each(func(h Handler) { h.ResourceUpToDate(resource, action) })
}

// ResourceSkipped forwards an action skipped by cond.
func (d *Dispatcher) ResourceSkipped(resource actions.Resource, action string, cond actions.Conditional) {
	d.each(func(h Handler) { h.ResourceSkipped(resource, action, cond) })
}

// ResourceUpdated forwards an action that changed the resource.
func (d *Dispatcher) ResourceUpdated(resource actions.Resource, action string) {
	d.each(func(h Handler) { h.ResourceUpdated(resource, action) })
}

// ResourceFailed forwards an action that failed with err.
func (d *Dispatcher) ResourceFailed(resource actions.Resource, action string, err error) {
	d.each(func(h Handler) { h.ResourceFailed(resource, action, err) })
}

// ResourceCompleted forwards the end of a resource action.
func (d *Dispatcher) ResourceCompleted(resource actions.Resource) {
	d.each(func(h Handler) { h.ResourceCompleted(resource) })
}

// ConvergeComplete forwards the end of a successful converge phase.
func (d *Dispatcher) ConvergeComplete() {
	d.each(func(h Handler) { h.ConvergeComplete() })
}

// ConvergeFailed forwards the end of a converge phase aborted by err.
func (d *Dispatcher) ConvergeFailed(err error) {
	d.each(func(h Handler) { h.ConvergeFailed(err) })
}

// RunCompleted forwards a successful run.
func (d *Dispatcher) RunCompleted(node string) {
	d.each(func(h Handler) { h.RunCompleted(node) })
}

// RunFailed forwards a failed run.
func (d *Dispatcher) RunFailed(err error) {
	d.each(func(h Handler) { h.RunFailed(err) })
}

var (
	_ Handler           = (*Dispatcher)(nil)
	_ actions.Announcer = (*Dispatcher)(nil)
)

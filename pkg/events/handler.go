// Package events defines the lifecycle callbacks emitted by a converge run
// and a dispatcher that fans them out to several handlers in order.
package events

import "github.com/openfroyo/actiontracker/pkg/actions"

// Handler is the fixed set of lifecycle callbacks a converge run emits.
// Calls arrive synchronously from a single goroutine in the order
//
//	RunStarted ConvergeStart action* (ConvergeComplete | ConvergeFailed) (RunCompleted | RunFailed)
//
// Run list and cookbook failures may arrive before ConvergeStart and end the run early.
type Handler interface {
	RunStarted(info actions.RunInfo)
	RunListExpanded(runList []string)
	RunListExpandFailed(node string, err error)
	CookbookResolutionFailed(runList []string, err error)
	CookbookSyncFailed(cookbooks []string, err error)

	ConvergeStart(rc actions.RunContext)
	ResourceActionStart(resource actions.Resource, action string)
	ResourceCurrentStateLoaded(resource actions.Resource, action string, current actions.Resource)
	ResourceUpToDate(resource actions.Resource, action string)
	ResourceSkipped(resource actions.Resource, action string, cond actions.Conditional)
	ResourceUpdated(resource actions.Resource, action string)
	ResourceFailed(resource actions.Resource, action string, err error)
	ResourceCompleted(resource actions.Resource)
	ConvergeComplete()
	ConvergeFailed(err error)

	RunCompleted(node string)
	RunFailed(err error)
}

// CollectionSubscriber is implemented by handlers that want to consume the
// action collection. They typically call Register on it.
type CollectionSubscriber interface {
	ActionCollectionRegistration(c *actions.ActionCollection)
}

var _ Handler = (*actions.ActionCollection)(nil)

// NopHandler ignores every event. Embed it to implement only what you need.
type NopHandler struct{}

func (NopHandler) RunStarted(actions.RunInfo)                                            {}
func (NopHandler) RunListExpanded([]string)                                              {}
func (NopHandler) RunListExpandFailed(string, error)                                     {}
func (NopHandler) CookbookResolutionFailed([]string, error)                              {}
func (NopHandler) CookbookSyncFailed([]string, error)                                    {}
func (NopHandler) ConvergeStart(actions.RunContext)                                      {}
func (NopHandler) ResourceActionStart(actions.Resource, string)                          {}
func (NopHandler) ResourceCurrentStateLoaded(actions.Resource, string, actions.Resource) {}
func (NopHandler) ResourceUpToDate(actions.Resource, string)                             {}
func (NopHandler) ResourceSkipped(actions.Resource, string, actions.Conditional)         {}
func (NopHandler) ResourceUpdated(actions.Resource, string)                              {}
func (NopHandler) ResourceFailed(actions.Resource, string, error)                        {}
func (NopHandler) ResourceCompleted(actions.Resource)                                    {}
func (NopHandler) ConvergeComplete()                                                     {}
func (NopHandler) ConvergeFailed(error)                                                  {}
func (NopHandler) RunCompleted(string)                                                   {}
func (NopHandler) RunFailed(error)                                                       {}

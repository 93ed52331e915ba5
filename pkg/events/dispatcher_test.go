package events

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openfroyo/actiontracker/pkg/actions"
)

type stubResource struct{ name string }

func (s stubResource) Type() string                   { return "stub" }
func (s stubResource) Name() string                   { return s.name }
func (s stubResource) Identity() string               { return "stub[" + s.name + "]" }
func (s stubResource) IsSensitive() bool              { return false }
func (s stubResource) RedactedCopy() actions.Resource { return s }
func (s stubResource) ElapsedTime() time.Duration     { return 0 }

type emptyRunContext struct{}

func (emptyRunContext) UnreachedActions() []actions.PlannedAction { return nil }

// journal records the events it sees, prefixed with its name.
type journal struct {
	NopHandler
	name string
	log  *[]string
}

func (j *journal) ResourceActionStart(r actions.Resource, action string) {
	*j.log = append(*j.log, j.name+":start:"+r.Name())
}

func (j *journal) ResourceCompleted(r actions.Resource) {
	*j.log = append(*j.log, j.name+":completed:"+r.Name())
}

func (j *journal) RunFailed(err error) {
	*j.log = append(*j.log, j.name+":run_failed:"+err.Error())
}

// subscriber registers with the collection when announced.
type subscriber struct {
	NopHandler
	collection *actions.ActionCollection
}

func (s *subscriber) ActionCollectionRegistration(c *actions.ActionCollection) {
	s.collection = c
	c.Register(s)
}

func TestDispatcherPreservesHandlerOrder(t *testing.T) {
	var log []string
	d := NewDispatcher(&journal{name: "a", log: &log})
	d.Register(&journal{name: "b", log: &log})

	r := stubResource{name: "x"}
	d.ResourceActionStart(r, "create")
	d.ResourceCompleted(r)
	d.RunFailed(errors.New("boom"))

	want := "a:start:x b:start:x a:completed:x b:completed:x a:run_failed:boom b:run_failed:boom"
	if got := strings.Join(log, " "); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if d.Len() != 2 {
		t.Errorf("expected 2 handlers, got %d", d.Len())
	}
}

func TestConvergeStartRegistersSubscribersBeforeResourceEvents(t *testing.T) {
	collection := actions.New()
	sub := &subscriber{}
	d := NewDispatcher(collection, sub)
	collection.SetAnnouncer(d)

	d.ConvergeStart(emptyRunContext{})
	if sub.collection != collection {
		t.Fatal("subscriber was not offered the collection")
	}
	if !collection.Tracking() {
		t.Fatal("collection should be tracking after announcement")
	}

	r := stubResource{name: "x"}
	d.ResourceActionStart(r, "create")
	d.ResourceUpdated(r, "create")
	d.ResourceCompleted(r)
	d.ConvergeComplete()

	if collection.Len() != 1 || collection.TotalResourceCount() != 1 {
		t.Errorf("expected one tracked record, got len=%d count=%d", collection.Len(), collection.TotalResourceCount())
	}
}

func TestNoSubscribersLeavesCollectionIdle(t *testing.T) {
	collection := actions.New()
	d := NewDispatcher(collection, NopHandler{})
	collection.SetAnnouncer(d)

	d.ConvergeStart(emptyRunContext{})
	r := stubResource{name: "x"}
	d.ResourceActionStart(r, "create")
	d.ResourceUpdated(r, "create")
	d.ResourceCompleted(r)

	if collection.Tracking() || collection.Len() != 0 {
		t.Errorf("collection should stay idle without subscribers")
	}
}

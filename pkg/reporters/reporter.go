package reporters

import (
	"time"

	"github.com/openfroyo/actiontracker/pkg/actions"
	"github.com/openfroyo/actiontracker/pkg/stores"
)

// subscription is the collection a reporter registered with.
type subscription struct {
	collection *actions.ActionCollection
}

func (s *subscription) subscribe(c *actions.ActionCollection, consumer interface{}) {
	c.Register(consumer)
	s.collection = c
}

// Collection returns the collection the reporter registered with, or nil
// if the run never reached converge start.
func (s *subscription) Collection() *actions.ActionCollection {
	return s.collection
}

func runDuration(c *actions.ActionCollection) time.Duration {
	end := c.EndTime()
	if end.IsZero() {
		return 0
	}
	return end.Sub(c.StartTime())
}

func totals(c *actions.ActionCollection) map[string]int {
	out := make(map[string]int)
	for status, n := range c.Counts() {
		out[string(status)] = n
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func conditionalString(cond actions.Conditional) string {
	if cond == nil {
		return ""
	}
	return cond.Description()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StoreRun converts the collection's run metadata for persistence.
func StoreRun(c *actions.ActionCollection) *stores.Run {
	return &stores.Run{
		ID:               c.RunID(),
		Node:             c.NodeName(),
		Status:           string(c.RunStatus()),
		StartedAt:        c.StartTime(),
		EndedAt:          c.EndTime(),
		TotalResources:   c.TotalResourceCount(),
		Exception:        optional(errString(c.Exception())),
		ErrorDescription: c.ErrorDescription(),
	}
}

// StoreRecords converts finalized records for persistence, keeping order.
func StoreRecords(runID string, records []actions.ActionReport) []stores.ActionRecord {
	out := make([]stores.ActionRecord, 0, len(records))
	for i, r := range records {
		rec := stores.ActionRecord{
			RunID:        runID,
			Seq:          i,
			ResourceType: r.Resource.Type(),
			ResourceName: r.Resource.Name(),
			Identity:     r.Resource.Identity(),
			Action:       r.Action,
			Status:       string(r.Status),
			NestingLevel: r.NestingLevel,
			Exception:    optional(errString(r.Exception)),
			Conditional:  optional(conditionalString(r.Conditional)),
			Sensitive:    r.Resource.IsSensitive(),
		}
		if d, ok := r.ElapsedTime(); ok {
			rec.Elapsed = &d
		}
		out = append(out, rec)
	}
	return out
}

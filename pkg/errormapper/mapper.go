// Package errormapper turns convergence failures into structured
// descriptions for reports.
package errormapper

import (
	"errors"
	"fmt"

	"github.com/openfroyo/actiontracker/pkg/actions"
	"github.com/openfroyo/actiontracker/pkg/engine"
)

// Mapper is the default actions.ErrorMapper.
type Mapper struct {
	// MaxCauses bounds the number of wrapped errors listed under caused_by.
	MaxCauses int
}

// New creates a mapper listing up to five causes.
func New() *Mapper {
	return &Mapper{MaxCauses: 5}
}

var titles = map[string]string{
	actions.ContextRun:                "Run failed",
	actions.ContextRunListExpand:      "Error expanding the run list",
	actions.ContextCookbookResolution: "Error resolving dependencies",
	actions.ContextCookbookSync:       "Error synchronizing dependencies",
}

// ResourceFailed describes a failed resource action. Only the resource
// identity is included, so sensitive attributes never reach the description.
func (m *Mapper) ResourceFailed(resource actions.Resource, action string, err error) actions.Description {
	d := m.describe(err)
	d["title"] = fmt.Sprintf("Error executing action `%s` on resource '%s'", action, resource.Identity())
	d["resource"] = resource.Identity()
	d["resource_type"] = resource.Type()
	d["action"] = action
	return d
}

// RunFailed describes a run-level failure.
func (m *Mapper) RunFailed(context string, err error) actions.Description {
	d := m.describe(err)
	title, ok := titles[context]
	if !ok {
		title = fmt.Sprintf("%s failed", context)
	}
	d["title"] = title
	d["context"] = context
	return d
}

func (m *Mapper) describe(err error) actions.Description {
	d := actions.Description{
		"class":     string(engine.Classify(err)),
		"retryable": engine.IsRetryable(err),
	}
	if err == nil {
		return d
	}
	d["message"] = err.Error()

	var ee *engine.EngineError
	if errors.As(err, &ee) {
		if ee.Code != "" {
			d["code"] = ee.Code
		}
		if len(ee.Details) > 0 {
			details := make(map[string]interface{}, len(ee.Details))
			for k, v := range ee.Details {
				details[k] = v
			}
			d["details"] = details
		}
	}

	if causes := m.causes(err); len(causes) > 0 {
		d["caused_by"] = causes
	}
	return d
}

// causes lists the messages of the errors wrapped by err, outermost first.
func (m *Mapper) causes(err error) []string {
	var out []string
	for cause := errors.Unwrap(err); cause != nil && len(out) < m.MaxCauses; cause = errors.Unwrap(cause) {
		out = append(out, cause.Error())
	}
	return out
}

var _ actions.ErrorMapper = (*Mapper)(nil)

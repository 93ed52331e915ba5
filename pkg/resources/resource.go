// Package resources provides the declared resource model used by the
// convergence engine and recorded by the action collection.
package resources

import (
	"fmt"
	"sort"
	"time"

	"github.com/openfroyo/actiontracker/pkg/actions"
)

// Declared is a unit of desired state: a typed, named resource, the action
// to run on it, and the sub-resources its action converges.
type Declared struct {
	// ResourceType is the resource type (e.g., "file", "directory").
	ResourceType string `json:"type" yaml:"type"`

	// ResourceName is the human-readable name of the resource.
	ResourceName string `json:"name" yaml:"name"`

	// Action is the action to run; empty selects the provider default.
	Action string `json:"action,omitempty" yaml:"action,omitempty"`

	// Attributes are the desired property values.
	Attributes map[string]interface{} `json:"attributes,omitempty" yaml:"attributes,omitempty"`

	// Sensitive keeps attribute values out of reports.
	Sensitive bool `json:"sensitive,omitempty" yaml:"sensitive,omitempty"`

	// OnlyIf is a guard expression that must be true for the action to run.
	OnlyIf string `json:"only_if,omitempty" yaml:"only_if,omitempty"`

	// NotIf is a guard expression that must be false for the action to run.
	NotIf string `json:"not_if,omitempty" yaml:"not_if,omitempty"`

	// IgnoreFailure records a failure and lets the run continue.
	IgnoreFailure bool `json:"ignore_failure,omitempty" yaml:"ignore_failure,omitempty"`

	// Children are converged from within this resource's action.
	Children []*Declared `json:"children,omitempty" yaml:"children,omitempty"`

	elapsed time.Duration
}

// New creates a declared resource.
func New(resourceType, name string) *Declared {
	return &Declared{
		ResourceType: resourceType,
		ResourceName: name,
		Attributes:   make(map[string]interface{}),
	}
}

// WithAction sets the action and returns the resource.
func (d *Declared) WithAction(action string) *Declared {
	d.Action = action
	return d
}

// WithAttribute sets one attribute and returns the resource.
func (d *Declared) WithAttribute(key string, value interface{}) *Declared {
	if d.Attributes == nil {
		d.Attributes = make(map[string]interface{})
	}
	d.Attributes[key] = value
	return d
}

// WithChildren appends sub-resources and returns the resource.
func (d *Declared) WithChildren(children ...*Declared) *Declared {
	d.Children = append(d.Children, children...)
	return d
}

// MarkSensitive flags the resource as sensitive and returns it.
func (d *Declared) MarkSensitive() *Declared {
	d.Sensitive = true
	return d
}

func (d *Declared) Type() string      { return d.ResourceType }
func (d *Declared) Name() string      { return d.ResourceName }
func (d *Declared) IsSensitive() bool { return d.Sensitive }

// Identity returns "type[name]".
func (d *Declared) Identity() string {
	return fmt.Sprintf("%s[%s]", d.ResourceType, d.ResourceName)
}

// RedactedCopy returns a surrogate carrying only type and name.
func (d *Declared) RedactedCopy() actions.Resource {
	return Redacted{ResourceType: d.ResourceType, ResourceName: d.ResourceName}
}

// ElapsedTime is the duration of the last action, as set by the engine.
func (d *Declared) ElapsedTime() time.Duration {
	return d.elapsed
}

// SetElapsedTime records the duration of the current action.
func (d *Declared) SetElapsedTime(elapsed time.Duration) {
	d.elapsed = elapsed
}

// String returns the attribute as a string, or "" if absent or not a string.
func (d *Declared) String(key string) string {
	s, _ := d.Attributes[key].(string)
	return s
}

// Bool returns the attribute as a bool.
func (d *Declared) Bool(key string) bool {
	b, _ := d.Attributes[key].(bool)
	return b
}

// AttributeKeys returns the attribute names in sorted order.
func (d *Declared) AttributeKeys() []string {
	keys := make([]string, 0, len(d.Attributes))
	for k := range d.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Walk visits d and its descendants depth-first, parents before children.
func (d *Declared) Walk(fn func(r *Declared, depth int)) {
	d.walk(fn, 0)
}

func (d *Declared) walk(fn func(r *Declared, depth int), depth int) {
	fn(d, depth)
	for _, c := range d.Children {
		c.walk(fn, depth+1)
	}
}

// Redacted stands in for a sensitive resource in finalized reports.
type Redacted struct {
	ResourceType string `json:"type" yaml:"type"`
	ResourceName string `json:"name" yaml:"name"`
}

func (r Redacted) Type() string                   { return r.ResourceType }
func (r Redacted) Name() string                   { return r.ResourceName }
func (r Redacted) Identity() string               { return fmt.Sprintf("%s[%s]", r.ResourceType, r.ResourceName) }
func (r Redacted) IsSensitive() bool              { return true }
func (r Redacted) RedactedCopy() actions.Resource { return r }
func (r Redacted) ElapsedTime() time.Duration     { return 0 }

var (
	_ actions.Resource = (*Declared)(nil)
	_ actions.Resource = Redacted{}
)

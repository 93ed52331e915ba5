package config

import (
	"fmt"
	"strings"

	"github.com/openfroyo/actiontracker/pkg/resources"
)

// ResourceSpec is a resource as written in a declaration file.
type ResourceSpec struct {
	// Type is the resource type (e.g., "file", "directory").
	Type string `json:"type" yaml:"type" validate:"required,resource_type"`

	// Name is the human-readable name.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Action overrides the provider's default action.
	Action string `json:"action,omitempty" yaml:"action,omitempty" validate:"omitempty,action_name"`

	// Attributes are the desired property values.
	Attributes map[string]interface{} `json:"attributes,omitempty" yaml:"attributes,omitempty"`

	// Sensitive keeps attribute values out of reports.
	Sensitive bool `json:"sensitive,omitempty" yaml:"sensitive,omitempty"`

	// OnlyIf and NotIf are guard expressions.
	OnlyIf string `json:"only_if,omitempty" yaml:"only_if,omitempty"`
	NotIf  string `json:"not_if,omitempty" yaml:"not_if,omitempty"`

	// IgnoreFailure records a failure and lets the run continue.
	IgnoreFailure bool `json:"ignore_failure,omitempty" yaml:"ignore_failure,omitempty"`

	// Children are converged from within this resource's action.
	Children []ResourceSpec `json:"children,omitempty" yaml:"children,omitempty" validate:"dive"`
}

// Declaration is the parsed content of a declaration file.
type Declaration struct {
	// Node optionally names the node the declaration targets.
	Node string `json:"node,omitempty" yaml:"node,omitempty"`

	// Resources are the top-level resources in run order.
	Resources []ResourceSpec `json:"resources" yaml:"resources" validate:"required,min=1,dive"`

	// SourceFile is the file the declaration was loaded from.
	SourceFile string `json:"-" yaml:"-"`
}

// Build converts the declaration into the engine's resource tree.
func (d *Declaration) Build() []*resources.Declared {
	out := make([]*resources.Declared, 0, len(d.Resources))
	for i := range d.Resources {
		out = append(out, d.Resources[i].build())
	}
	return out
}

func (s *ResourceSpec) build() *resources.Declared {
	r := resources.New(s.Type, s.Name).WithAction(s.Action)
	for k, v := range s.Attributes {
		r.WithAttribute(k, v)
	}
	r.Sensitive = s.Sensitive
	r.OnlyIf = s.OnlyIf
	r.NotIf = s.NotIf
	r.IgnoreFailure = s.IgnoreFailure
	for i := range s.Children {
		r.Children = append(r.Children, s.Children[i].build())
	}
	return r
}

// Count returns the number of resources in the declaration, nested included.
func (d *Declaration) Count() int {
	n := 0
	var count func(specs []ResourceSpec)
	count = func(specs []ResourceSpec) {
		for i := range specs {
			n++
			count(specs[i].Children)
		}
	}
	count(d.Resources)
	return n
}

// ValidationError represents a problem found while loading a file.
type ValidationError struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	var loc strings.Builder
	if e.File != "" {
		loc.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&loc, ":%d:%d", e.Line, e.Column)
		}
	}
	if e.Path != "" {
		if loc.Len() > 0 {
			loc.WriteString(" ")
		}
		loc.WriteString(e.Path)
	}
	if loc.Len() == 0 {
		return e.Message
	}
	return loc.String() + ": " + e.Message
}

// ValidationErrors collects every problem found in a file.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

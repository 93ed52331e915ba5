package providers

import (
	"context"

	"github.com/openfroyo/actiontracker/pkg/engine"
	"github.com/openfroyo/actiontracker/pkg/resources"
)

// Composite groups sub-resources. It has no state of its own, so it is
// updated exactly when one of its children is.
type Composite struct{}

// NewComposite creates the composite provider.
func NewComposite() *Composite {
	return &Composite{}
}

func (p *Composite) Type() string          { return "composite" }
func (p *Composite) Actions() []string     { return []string{"converge"} }
func (p *Composite) DefaultAction() string { return "converge" }

func (p *Composite) LoadCurrentState(context.Context, *resources.Declared) (*resources.Declared, error) {
	return nil, nil
}

func (p *Composite) Converge(context.Context, *resources.Declared, *resources.Declared, string) (bool, error) {
	return false, nil
}

func (p *Composite) WouldConverge(context.Context, *resources.Declared, *resources.Declared, string) (bool, error) {
	return false, nil
}

var (
	_ engine.Provider        = (*Composite)(nil)
	_ engine.WhyRunSupporter = (*Composite)(nil)
)

package actions_test

import (
	"fmt"
	"time"

	"github.com/openfroyo/actiontracker/pkg/actions"
)

type pkg struct{ name string }

func (p pkg) Type() string                   { return "package" }
func (p pkg) Name() string                   { return p.name }
func (p pkg) Identity() string               { return "package[" + p.name + "]" }
func (p pkg) IsSensitive() bool              { return false }
func (p pkg) RedactedCopy() actions.Resource { return p }
func (p pkg) ElapsedTime() time.Duration     { return time.Second }

type noUnreached struct{}

func (noUnreached) UnreachedActions() []actions.PlannedAction { return nil }

func ExampleActionCollection() {
	c := actions.New()
	c.Register("summary")
	c.ConvergeStart(noUnreached{})

	nginx := pkg{name: "nginx"}
	c.ResourceActionStart(nginx, "install")
	c.ResourceUpdated(nginx, "install")
	c.ResourceCompleted(nginx)
	c.ConvergeComplete()

	for _, r := range c.Filtered(0, actions.AllStatuses()...) {
		fmt.Println(r.Resource.Identity(), r.Action, r.Status, r.NestingLevel)
	}
	fmt.Println("total:", c.TotalResourceCount())
	// Output:
	// package[nginx] install updated 0
	// total: 1
}

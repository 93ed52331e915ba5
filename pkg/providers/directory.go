package providers

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/openfroyo/actiontracker/pkg/engine"
	"github.com/openfroyo/actiontracker/pkg/resources"
)

// Directory manages directories. Attributes: path (defaults to the name),
// mode, recursive (delete non-empty directories).
type Directory struct{}

// NewDirectory creates the directory provider.
func NewDirectory() *Directory {
	return &Directory{}
}

func (p *Directory) Type() string          { return "directory" }
func (p *Directory) Actions() []string     { return []string{"create", "delete"} }
func (p *Directory) DefaultAction() string { return "create" }

// LoadCurrentState stats the directory.
func (p *Directory) LoadCurrentState(_ context.Context, desired *resources.Declared) (*resources.Declared, error) {
	spec, err := decodePathSpec(desired)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(spec.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, osError(desired, "stat directory", err)
	}
	if !info.IsDir() {
		return nil, engine.NewConflictError("path is not a directory", nil).WithResource(desired.Identity())
	}
	return resources.New(p.Type(), desired.ResourceName).
		WithAttribute("path", spec.Path).
		WithAttribute("mode", formatMode(info.Mode())), nil
}

// Converge creates or deletes the directory.
func (p *Directory) Converge(_ context.Context, desired, current *resources.Declared, action string) (bool, error) {
	changed, err := p.diff(desired, current, action)
	if err != nil || !changed {
		return false, err
	}
	spec, _ := decodePathSpec(desired)

	switch action {
	case "create":
		perm := spec.perm(0o755)
		if err := os.MkdirAll(spec.Path, perm); err != nil {
			return false, osError(desired, "create directory", err)
		}
		if err := os.Chmod(spec.Path, perm); err != nil {
			return false, osError(desired, "chmod directory", err)
		}
	case "delete":
		remove := os.Remove
		if desired.Bool("recursive") {
			remove = os.RemoveAll
		}
		if err := remove(spec.Path); err != nil {
			return false, osError(desired, "delete directory", err)
		}
	}
	return true, nil
}

// WouldConverge reports whether Converge would change the directory.
func (p *Directory) WouldConverge(_ context.Context, desired, current *resources.Declared, action string) (bool, error) {
	return p.diff(desired, current, action)
}

func (p *Directory) diff(desired, current *resources.Declared, action string) (bool, error) {
	spec, err := decodePathSpec(desired)
	if err != nil {
		return false, err
	}
	switch action {
	case "create":
		if current == nil {
			return true, nil
		}
		return spec.Mode != "" && current.String("mode") != spec.Mode, nil
	case "delete":
		return current != nil, nil
	default:
		return false, unsupported(desired, action)
	}
}

var (
	_ engine.Provider        = (*Directory)(nil)
	_ engine.WhyRunSupporter = (*Directory)(nil)
)

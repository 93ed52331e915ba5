package providers

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/openfroyo/actiontracker/pkg/engine"
	"github.com/openfroyo/actiontracker/pkg/resources"
)

// File manages regular files. Attributes: path (defaults to the name),
// content, mode (e.g. "0644").
type File struct{}

// NewFile creates the file provider.
func NewFile() *File {
	return &File{}
}

func (p *File) Type() string          { return "file" }
func (p *File) Actions() []string     { return []string{"create", "delete"} }
func (p *File) DefaultAction() string { return "create" }

// LoadCurrentState reads the file at path.
func (p *File) LoadCurrentState(_ context.Context, desired *resources.Declared) (*resources.Declared, error) {
	spec, err := decodePathSpec(desired)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(spec.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, osError(desired, "stat file", err)
	}
	if info.IsDir() {
		return nil, engine.NewConflictError("path is a directory", nil).WithResource(desired.Identity())
	}
	content, err := os.ReadFile(spec.Path)
	if err != nil {
		return nil, osError(desired, "read file", err)
	}

	current := resources.New(p.Type(), desired.ResourceName).
		WithAttribute("path", spec.Path).
		WithAttribute("content", string(content)).
		WithAttribute("mode", formatMode(info.Mode()))
	current.Sensitive = desired.Sensitive
	return current, nil
}

// Converge creates, rewrites or deletes the file.
func (p *File) Converge(_ context.Context, desired, current *resources.Declared, action string) (bool, error) {
	changed, err := p.diff(desired, current, action)
	if err != nil || !changed {
		return false, err
	}
	spec, _ := decodePathSpec(desired)

	switch action {
	case "create":
		if err := os.MkdirAll(filepath.Dir(spec.Path), 0o755); err != nil {
			return false, osError(desired, "create parent directory", err)
		}
		perm := spec.perm(0o644)
		if err := os.WriteFile(spec.Path, []byte(desired.String("content")), perm); err != nil {
			return false, osError(desired, "write file", err)
		}
		if err := os.Chmod(spec.Path, perm); err != nil {
			return false, osError(desired, "chmod file", err)
		}
	case "delete":
		if err := os.Remove(spec.Path); err != nil {
			return false, osError(desired, "delete file", err)
		}
	}
	return true, nil
}

// WouldConverge reports whether Converge would change the file.
func (p *File) WouldConverge(_ context.Context, desired, current *resources.Declared, action string) (bool, error) {
	return p.diff(desired, current, action)
}

func (p *File) diff(desired, current *resources.Declared, action string) (bool, error) {
	spec, err := decodePathSpec(desired)
	if err != nil {
		return false, err
	}
	switch action {
	case "create":
		if current == nil {
			return true, nil
		}
		if _, ok := desired.Attributes["content"]; ok && current.String("content") != desired.String("content") {
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
	_ engine.Provider        = (*File)(nil)
	_ engine.WhyRunSupporter = (*File)(nil)
)

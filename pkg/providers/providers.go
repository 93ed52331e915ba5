package providers

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/openfroyo/actiontracker/pkg/engine"
	"github.com/openfroyo/actiontracker/pkg/resources"
)

// Default returns a registry with every built-in provider.
func Default(logger zerolog.Logger) *engine.Registry {
	return engine.NewRegistry(
		NewFile(),
		NewDirectory(),
		NewLog(logger),
		NewComposite(),
	)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// pathSpec holds the attributes shared by filesystem providers.
type pathSpec struct {
	Path string `validate:"required"`
	Mode string `validate:"omitempty,len=4,numeric"`
}

func decodePathSpec(res *resources.Declared) (pathSpec, error) {
	spec := pathSpec{
		Path: res.String("path"),
		Mode: res.String("mode"),
	}
	if spec.Path == "" {
		spec.Path = res.ResourceName
	}
	if err := validate.Struct(spec); err != nil {
		return spec, invalid(res, err)
	}
	return spec, nil
}

func (s pathSpec) perm(fallback fs.FileMode) fs.FileMode {
	if s.Mode == "" {
		return fallback
	}
	m, err := strconv.ParseUint(s.Mode, 8, 32)
	if err != nil {
		return fallback
	}
	return fs.FileMode(m)
}

func formatMode(m fs.FileMode) string {
	return fmt.Sprintf("%04o", m.Perm())
}

func invalid(res *resources.Declared, err error) error {
	return engine.NewPermanentError("invalid resource attributes", err).
		WithCode(engine.ErrCodeValidation).
		WithResource(res.Identity())
}

// osError classifies filesystem errors.
func osError(res *resources.Declared, op string, err error) error {
	code := engine.ErrCodeProviderFailed
	switch {
	case errors.Is(err, fs.ErrPermission):
		code = engine.ErrCodePermissionDenied
	case errors.Is(err, fs.ErrNotExist):
		code = engine.ErrCodeNotFound
	}
	return engine.NewPermanentError(op, err).
		WithCode(code).
		WithResource(res.Identity())
}

func unsupported(res *resources.Declared, action string) error {
	return engine.NewPermanentError(fmt.Sprintf("action %q is not supported", action), nil).
		WithCode(engine.ErrCodeUnsupportedAction).
		WithResource(res.Identity())
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	resourceTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_.]*$`)
	actionNamePattern   = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// Loader parses and validates declaration files.
type Loader struct {
	schemas   *SchemaRegistry
	validator *validator.Validate
}

// NewLoader creates a loader with the built-in declaration schema.
func NewLoader() *Loader {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("resource_type", func(fl validator.FieldLevel) bool {
		return resourceTypePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("action_name", func(fl validator.FieldLevel) bool {
		return actionNamePattern.MatchString(fl.Field().String())
	})

	return &Loader{
		schemas:   NewSchemaRegistry(),
		validator: v,
	}
}

// LoadDeclaration reads a declaration file with a default loader.
func LoadDeclaration(path string) (*Declaration, error) {
	return NewLoader().LoadDeclaration(path)
}

// LoadDeclaration reads path and parses it according to its extension:
// .yaml, .yml and .json as YAML, .cue as CUE.
func (l *Loader) LoadDeclaration(path string) (*Declaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read declaration: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json":
		return l.ParseYAML(path, data)
	case ".cue":
		return l.ParseCUE(path, data)
	default:
		return nil, fmt.Errorf("unsupported declaration format %q", ext)
	}
}

// ParseYAML parses a YAML declaration. Unknown fields are rejected.
func (l *Loader) ParseYAML(name string, data []byte) (*Declaration, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var decl Declaration
	if err := dec.Decode(&decl); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ValidationErrors{{File: name, Message: "empty declaration"}}
		}
		return nil, yamlErrors(name, err)
	}
	decl.SourceFile = name

	if err := l.Validate(&decl); err != nil {
		return nil, err
	}
	return &decl, nil
}

// ParseCUE parses a CUE declaration. The document is unified with the
// built-in declaration schema and must be concrete.
func (l *Loader) ParseCUE(name string, data []byte) (*Declaration, error) {
	val := l.schemas.Compile(name, data)
	if err := val.Err(); err != nil {
		return nil, cueErrors(err)
	}

	unified, err := l.schemas.Unify(DeclarationSchema, val)
	if err != nil {
		return nil, err
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueErrors(err)
	}

	var decl Declaration
	if err := unified.Decode(&decl); err != nil {
		return nil, fmt.Errorf("failed to decode declaration: %w", err)
	}
	decl.SourceFile = name

	if err := l.Validate(&decl); err != nil {
		return nil, err
	}
	return &decl, nil
}

// Validate checks a declaration's struct constraints.
func (l *Loader) Validate(decl *Declaration) error {
	err := l.validator.Struct(decl)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			File:    decl.SourceFile,
			Path:    fe.Namespace(),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("needs at least %s entries", fe.Param())
	case "resource_type", "action_name":
		return fmt.Sprintf("%q is not a valid %s", fe.Value(), strings.ReplaceAll(fe.Tag(), "_", " "))
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}

// cueErrors converts CUE errors, keeping their source positions.
func cueErrors(err error) ValidationErrors {
	var out ValidationErrors
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		ve := ValidationError{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = ValidationErrors{{Message: err.Error()}}
	}
	return out
}

func yamlErrors(name string, err error) ValidationErrors {
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		out := make(ValidationErrors, 0, len(typeErr.Errors))
		for _, msg := range typeErr.Errors {
			out = append(out, ValidationError{File: name, Message: msg})
		}
		return out
	}
	return ValidationErrors{{File: name, Message: err.Error()}}
}

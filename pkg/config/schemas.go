package config

import (
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas used to check declarations before they
// are decoded.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a registry holding the built-in declaration schema.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	if err := sr.RegisterSchema(DeclarationSchema, builtinDeclarationSchema); err != nil {
		panic(err)
	}
	return sr
}

// DeclarationSchema names the built-in schema for declaration files.
const DeclarationSchema = "declaration"

// RegisterSchema compiles schema and registers it under name. The schema
// must define a #Root definition that documents are unified with.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Filename(name+".schema.cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	root := val.LookupPath(cue.ParsePath("#Root"))
	if !root.Exists() {
		return fmt.Errorf("schema %s does not define #Root", name)
	}

	sr.schemas[name] = root
	return nil
}

// GetSchema retrieves a schema's #Root definition by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// Unify applies the named schema to val. The result carries any constraint
// violations as its error.
func (sr *SchemaRegistry) Unify(name string, val cue.Value) (cue.Value, error) {
	schema, ok := sr.GetSchema(name)
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", name)
	}
	return schema.Unify(val), nil
}

// ValidateAgainstSchema encodes data and checks it against the named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(name string, data interface{}) error {
	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified, err := sr.Unify(name, dataVal)
	if err != nil {
		return err
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const builtinDeclarationSchema = `
#Resource: {
	type:    string & =~"^[a-z][a-z0-9_.]*$"
	name:    string & !=""
	action?: string & =~"^[a-z][a-z0-9_]*$"

	attributes?: {[string]: _}

	sensitive?:      bool
	only_if?:        string
	not_if?:         string
	ignore_failure?: bool

	children?: [...#Resource]
}

#Root: {
	node?: string
	resources: [#Resource, ...#Resource]
}
`

// Compile compiles CUE source within the registry's context so the result
// can be unified with registered schemas.
func (sr *SchemaRegistry) Compile(filename string, src []byte) cue.Value {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.ctx.CompileBytes(src, cue.Filename(filename))
}

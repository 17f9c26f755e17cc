package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	return newSchemaRegistry(cuecontext.New())
}

func newSchemaRegistry(ctx *cue.Context) *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}

	// Built-in schemas are constants and always compile.
	_ = sr.RegisterSchema("role", "#Role", builtinRoleSchema)
	_ = sr.RegisterSchema("hook", "#Hook", builtinHookSchema)
	_ = sr.RegisterSchema("workerType", "#WorkerType", builtinWorkerTypeSchema)

	return sr
}

// RegisterSchema compiles schema and registers its definition (for example
// "#Role") under name. Values are checked against that definition.
func (sr *SchemaRegistry) RegisterSchema(name, definition, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	def := val.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return fmt.Errorf("schema %s does not declare %s", name, definition)
	}

	sr.schemas[name] = def
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// Check unifies val with the named schema and requires the result to be
// concrete. val must come from the registry's context.
func (sr *SchemaRegistry) Check(schemaName string, val cue.Value) (cue.Value, error) {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", schemaName)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return unified, err
	}
	return unified, nil
}

// ValidateAgainstSchema validates arbitrary Go data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	if _, err := sr.Check(schemaName, dataVal); err != nil {
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

// Built-in schema definitions

const builtinRoleSchema = `
#Role: {
	roleId:       string & !=""
	description?: string
	scopes?:      [...string] | null
}
`

const builtinHookSchema = `
#Binding: {
	exchange:          string & !=""
	routingKeyPattern: string & !=""
}

#Hook: {
	hookGroupId:   string & =~"^[a-zA-Z0-9_-]+$"
	hookId:        string & =~"^[a-zA-Z0-9_/-]+$"
	name:          string & !=""
	description?:  string
	owner:         string & !=""
	emailOnError?: bool
	schedule?:     [...string] | null
	bindings?:     [...#Binding] | null
	task:          {...}
	triggerSchema?: {...} | null
}
`

const builtinWorkerTypeSchema = `
#WorkerType: {
	workerType:         string & =~"^[a-zA-Z0-9_-]{1,22}$"
	description?:       string
	owner:              string & !=""
	minCapacity?:       int & >=0
	maxCapacity?:       int & >=0
	scalingRatio?:      number & >=0
	minPrice?:          number & >=0
	maxPrice?:          number & >=0
	canUseOndemand?:    bool
	canUseSpot?:        bool
	instanceTypes?:     [...{...}] | null
	regions?:           [...{...}] | null
	availabilityZones?: [...{...}] | null
	launchSpec?:        {...} | null
	userData?:          {...} | null
	secrets?:           {...} | null
	scopes?:            [...string] | null
}
`

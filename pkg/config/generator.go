package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ciadmin/ciadmin/pkg/resources"
)

// Generator runs Starlark generator scripts and decodes the resources they
// emit. A script publishes resources through the list globals "roles",
// "hooks" and "workerTypes"; each element is a dict shaped like the
// corresponding CUE entry.
type Generator struct {
	evaluator *StarlarkEvaluator
	schemas   *SchemaRegistry
	validator *validator.Validate
}

// NewGenerator creates a generator that checks output against schemas.
func NewGenerator(schemas *SchemaRegistry, timeout time.Duration) *Generator {
	return &Generator{
		evaluator: NewStarlarkEvaluator(timeout),
		schemas:   schemas,
		validator: validator.New(),
	}
}

// Run executes the script at path with input bound as globals. Problems
// with individual entries are reported in ParsedConfig.Errors; script
// failures are returned as an error.
func (g *Generator) Run(ctx context.Context, path string, input map[string]interface{}) (*ParsedConfig, error) {
	script, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read generator %s: %w", path, err)
	}

	result, err := g.evaluator.Evaluate(ctx, path, string(script), input)
	if err != nil {
		return nil, fmt.Errorf("generator %s failed: %w", path, err)
	}

	pc := &ParsedConfig{
		SourceFiles: []string{path},
		ParsedAt:    time.Now(),
	}

	for _, kind := range []struct {
		field  string
		schema string
		decode func(raw []byte) error
	}{
		{fieldRoles, "role", func(raw []byte) error {
			var r resources.Role
			if err := g.decode(raw, &r); err != nil {
				return err
			}
			pc.Roles = append(pc.Roles, r)
			return nil
		}},
		{fieldHooks, "hook", func(raw []byte) error {
			var h resources.Hook
			if err := g.decode(raw, &h); err != nil {
				return err
			}
			pc.Hooks = append(pc.Hooks, h)
			return nil
		}},
		{fieldWorkerTypes, "workerType", func(raw []byte) error {
			var w resources.WorkerType
			if err := g.decode(raw, &w); err != nil {
				return err
			}
			pc.WorkerTypes = append(pc.WorkerTypes, w)
			return nil
		}},
	} {
		value, ok := result.Output[kind.field]
		if !ok || value == nil {
			continue
		}

		entries, ok := value.([]interface{})
		if !ok {
			pc.Errors = append(pc.Errors, ValidationError{
				File:     path,
				Path:     kind.field,
				Message:  fmt.Sprintf("%s must be a list, got %T", kind.field, value),
				Severity: "error",
			})
			continue
		}

		for i, entry := range entries {
			entryPath := fmt.Sprintf("%s[%d]", kind.field, i)

			if err := g.schemas.ValidateAgainstSchema(ctx, kind.schema, entry); err != nil {
				pc.Errors = append(pc.Errors, ValidationError{
					File:     path,
					Path:     entryPath,
					Message:  err.Error(),
					Severity: "error",
				})
				continue
			}

			raw, err := json.Marshal(entry)
			if err != nil {
				pc.Errors = append(pc.Errors, ValidationError{
					File:     path,
					Path:     entryPath,
					Message:  fmt.Sprintf("failed to encode entry: %v", err),
					Severity: "error",
				})
				continue
			}

			if err := kind.decode(raw); err != nil {
				pc.Errors = append(pc.Errors, ValidationError{
					File:     path,
					Path:     entryPath,
					Message:  err.Error(),
					Severity: "error",
				})
			}
		}
	}

	return pc, nil
}

func (g *Generator) decode(raw []byte, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode entry: %w", err)
	}
	return g.validator.Struct(v)
}

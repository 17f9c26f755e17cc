package config

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ciadmin/ciadmin/pkg/engine"
	"github.com/ciadmin/ciadmin/pkg/resources"
)

// DesiredSource loads the desired state from CUE sources and Starlark
// generators. It implements engine.ResourceSource.
type DesiredSource struct {
	parser     *CUEParser
	generator  *Generator
	sources    []string
	generators []GeneratorSettings
	managed    *resources.Managed
	logger     zerolog.Logger
}

// NewDesiredSource creates a desired source for the given settings.
func NewDesiredSource(settings *Settings, managed *resources.Managed, logger zerolog.Logger) *DesiredSource {
	parser := NewCUEParser()
	return &DesiredSource{
		parser:     parser,
		generator:  NewGenerator(parser.GetSchemaRegistry(), 0),
		sources:    settings.Sources,
		generators: settings.Generators,
		managed:    managed,
		logger:     logger.With().Str("component", "desired-source").Logger(),
	}
}

// Load parses every source and runs every generator. Entry-level problems
// are collected in the returned ParsedConfig; only failures to read a source
// or run a generator are returned as an error.
func (ds *DesiredSource) Load(ctx context.Context) (*ParsedConfig, error) {
	start := time.Now()
	pc := &ParsedConfig{ParsedAt: start}

	if len(ds.sources) > 0 {
		parsed, err := ds.parser.Parse(ctx, ds.sources)
		if err != nil {
			return nil, err
		}
		pc.Merge(parsed)
	}

	for _, gen := range ds.generators {
		generator := ds.generator
		if gen.Timeout > 0 {
			generator = NewGenerator(ds.parser.GetSchemaRegistry(), gen.Timeout)
		}
		generated, err := generator.Run(ctx, gen.Script, gen.Input)
		if err != nil {
			return nil, err
		}
		pc.Merge(generated)
	}

	ds.logger.Debug().
		Int("files", len(pc.SourceFiles)).
		Int("entries", pc.Len()).
		Int("errors", len(pc.Errors)).
		Dur("duration", time.Since(start)).
		Msg("Desired state loaded")

	return pc, nil
}

// Resources loads, normalizes and checks the desired state. Any entry
// error, invalid resource or resource outside the managed set makes the
// whole load fail with a *LoadError.
func (ds *DesiredSource) Resources(ctx context.Context) ([]engine.Resource, error) {
	pc, err := ds.Load(ctx)
	if err != nil {
		return nil, err
	}

	errs := append([]ValidationError{}, pc.Errors...)

	out := pc.ToResources()
	for _, r := range out {
		if v, ok := r.(interface{ Validate() error }); ok {
			if err := v.Validate(); err != nil {
				errs = append(errs, ValidationError{
					Path:     r.ID(),
					Message:  err.Error(),
					Severity: "error",
				})
				continue
			}
		}
		if !ds.managed.Contains(r.ID()) {
			errs = append(errs, ValidationError{
				Path:     r.ID(),
				Message:  fmt.Sprintf("resource is not managed (managed prefixes: %v)", ds.managed.Prefixes()),
				Severity: "error",
			})
		}
	}

	if _, err := engine.NewCollection("desired", out); err != nil {
		errs = append(errs, ValidationError{
			Message:  err.Error(),
			Severity: "error",
			Err:      err,
		})
	}

	if len(errs) > 0 {
		return nil, &LoadError{Errors: errs}
	}
	return out, nil
}

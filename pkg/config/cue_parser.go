package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"

	"github.com/ciadmin/ciadmin/pkg/resources"
)

// Top-level fields of a configuration package.
const (
	fieldRoles       = "roles"
	fieldHooks       = "hooks"
	fieldWorkerTypes = "workerTypes"
)

// CUEParser parses and validates CUE configuration files.
type CUEParser struct {
	ctx            *cue.Context
	schemaRegistry *SchemaRegistry
	validator      *validator.Validate
}

// NewCUEParser creates a new CUE parser.
func NewCUEParser() *CUEParser {
	registry := NewSchemaRegistry()
	return &CUEParser{
		ctx:            registry.ctx,
		schemaRegistry: registry,
		validator:      validator.New(),
	}
}

// Parse parses CUE configuration from the given files and directories.
// Entry-level problems are collected in ParsedConfig.Errors; only I/O
// failures are returned as an error.
func (cp *CUEParser) Parse(ctx context.Context, sources []string) (*ParsedConfig, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}

	var cueValue cue.Value
	var sourceFiles []string
	var parseErrors []ValidationError

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
		}

		var val cue.Value
		var errs []ValidationError
		if info.IsDir() {
			var files []string
			val, files, errs = cp.loadDirectory(source)
			sourceFiles = append(sourceFiles, files...)
		} else {
			val, errs = cp.loadFile(source)
			sourceFiles = append(sourceFiles, source)
		}

		parseErrors = append(parseErrors, errs...)
		if val.Exists() {
			if cueValue.Exists() {
				cueValue = cueValue.Unify(val)
			} else {
				cueValue = val
			}
		}
	}

	if len(parseErrors) > 0 {
		return &ParsedConfig{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      parseErrors,
		}, nil
	}

	if err := cueValue.Err(); err != nil {
		return &ParsedConfig{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      cp.convertCUEErrors(err),
		}, nil
	}

	return cp.extractConfig(cueValue, sourceFiles), nil
}

// ParseInline parses inline CUE content.
func (cp *CUEParser) ParseInline(ctx context.Context, content string) (*ParsedConfig, error) {
	val := cp.ctx.CompileString(content, cue.Filename("inline.cue"))
	if err := val.Err(); err != nil {
		return &ParsedConfig{
			SourceFiles: []string{"inline"},
			ParsedAt:    time.Now(),
			Errors:      cp.convertCUEErrors(err),
		}, nil
	}

	return cp.extractConfig(val, []string{"inline"}), nil
}

// loadDirectory compiles every .cue file below dir and unifies them. Files
// are compiled independently, so they may not reference each other.
func (cp *CUEParser) loadDirectory(dir string) (cue.Value, []string, []ValidationError) {
	files, err := cp.LoadFromDirectory(dir)
	if err != nil {
		return cue.Value{}, nil, []ValidationError{{
			File:     dir,
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	if len(files) == 0 {
		return cue.Value{}, nil, []ValidationError{{
			File:     dir,
			Message:  "no CUE files found",
			Severity: "error",
		}}
	}
	sort.Strings(files)

	var val cue.Value
	var errs []ValidationError
	for _, file := range files {
		fileVal, fileErrs := cp.loadFile(file)
		if len(fileErrs) > 0 {
			errs = append(errs, fileErrs...)
			continue
		}
		if val.Exists() {
			val = val.Unify(fileVal)
		} else {
			val = fileVal
		}
	}

	return val, files, errs
}

// loadFile loads a single CUE file.
func (cp *CUEParser) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{
			File:     path,
			Message:  fmt.Sprintf("failed to read file: %v", err),
			Severity: "error",
		}}
	}

	val := cp.ctx.CompileString(string(content), cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, cp.convertCUEErrors(err)
	}

	return val, nil
}

// entryKind describes how one top-level field is decoded.
type entryKind struct {
	field  string
	schema string
	// fillKey injects the map key into the entry when the entry does not
	// carry its own identifying fields.
	fillKey func(val cue.Value, key string) cue.Value
	decode  func(pc *ParsedConfig, val cue.Value) error
}

func (cp *CUEParser) entryKinds() []entryKind {
	return []entryKind{
		{
			field:  fieldRoles,
			schema: "role",
			fillKey: func(val cue.Value, key string) cue.Value {
				return fillIfMissing(val, "roleId", key)
			},
			decode: func(pc *ParsedConfig, val cue.Value) error {
				var r resources.Role
				if err := val.Decode(&r); err != nil {
					return err
				}
				if err := cp.validator.Struct(r); err != nil {
					return err
				}
				pc.Roles = append(pc.Roles, r)
				return nil
			},
		},
		{
			field:  fieldHooks,
			schema: "hook",
			fillKey: func(val cue.Value, key string) cue.Value {
				group, id, ok := strings.Cut(key, "/")
				if !ok {
					return val
				}
				val = fillIfMissing(val, "hookGroupId", group)
				return fillIfMissing(val, "hookId", id)
			},
			decode: func(pc *ParsedConfig, val cue.Value) error {
				var h resources.Hook
				if err := val.Decode(&h); err != nil {
					return err
				}
				if err := cp.validator.Struct(h); err != nil {
					return err
				}
				pc.Hooks = append(pc.Hooks, h)
				return nil
			},
		},
		{
			field:  fieldWorkerTypes,
			schema: "workerType",
			fillKey: func(val cue.Value, key string) cue.Value {
				return fillIfMissing(val, "workerType", key)
			},
			decode: func(pc *ParsedConfig, val cue.Value) error {
				var w resources.WorkerType
				if err := val.Decode(&w); err != nil {
					return err
				}
				if err := cp.validator.Struct(w); err != nil {
					return err
				}
				pc.WorkerTypes = append(pc.WorkerTypes, w)
				return nil
			},
		},
	}
}

// extractConfig decodes roles, hooks and worker types from a CUE value.
// Each may be a struct keyed by id or a list.
func (cp *CUEParser) extractConfig(val cue.Value, sourceFiles []string) *ParsedConfig {
	parsedConfig := &ParsedConfig{
		SourceFiles: sourceFiles,
		ParsedAt:    time.Now(),
	}

	for _, kind := range cp.entryKinds() {
		fieldVal := val.LookupPath(cue.ParsePath(kind.field))
		if !fieldVal.Exists() {
			continue
		}

		switch fieldVal.Kind() {
		case cue.StructKind:
			iter, err := fieldVal.Fields()
			if err != nil {
				parsedConfig.Errors = append(parsedConfig.Errors, ValidationError{
					Path:     kind.field,
					Message:  fmt.Sprintf("failed to iterate %s: %v", kind.field, err),
					Severity: "error",
				})
				continue
			}
			type keyed struct {
				key string
				val cue.Value
			}
			var entries []keyed
			for iter.Next() {
				entries = append(entries, keyed{iter.Selector().Unquoted(), iter.Value()})
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
			for _, e := range entries {
				path := fmt.Sprintf("%s.%q", kind.field, e.key)
				cp.extractEntry(parsedConfig, kind, path, kind.fillKey(e.val, e.key))
			}

		case cue.ListKind:
			list, err := fieldVal.List()
			if err != nil {
				parsedConfig.Errors = append(parsedConfig.Errors, ValidationError{
					Path:     kind.field,
					Message:  fmt.Sprintf("failed to list %s: %v", kind.field, err),
					Severity: "error",
				})
				continue
			}
			idx := 0
			for list.Next() {
				cp.extractEntry(parsedConfig, kind, fmt.Sprintf("%s[%d]", kind.field, idx), list.Value())
				idx++
			}

		default:
			parsedConfig.Errors = append(parsedConfig.Errors, ValidationError{
				Path:     kind.field,
				Message:  fmt.Sprintf("%s must be a struct or a list, got %s", kind.field, fieldVal.Kind()),
				Severity: "error",
			})
		}
	}

	return parsedConfig
}

// extractEntry checks one entry against its schema and decodes it.
func (cp *CUEParser) extractEntry(pc *ParsedConfig, kind entryKind, path string, val cue.Value) {
	unified, err := cp.schemaRegistry.Check(kind.schema, val)
	if err != nil {
		for _, ve := range cp.convertCUEErrors(err) {
			if ve.Path == "" {
				ve.Path = path
			}
			pc.Errors = append(pc.Errors, ve)
		}
		return
	}

	if err := kind.decode(pc, unified); err != nil {
		pc.Errors = append(pc.Errors, ValidationError{
			Path:     path,
			Message:  err.Error(),
			Severity: "error",
		})
	}
}

// fillIfMissing sets field to value unless val already defines it.
func fillIfMissing(val cue.Value, field, value string) cue.Value {
	if val.LookupPath(cue.ParsePath(field)).Exists() {
		return val
	}
	return val.FillPath(cue.ParsePath(field), value)
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func (cp *CUEParser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range errors.Errors(err) {
		pos := errors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Path:     strings.Join(e.Path(), "."),
			Message:  errors.Details(e, nil),
			Severity: "error",
		})
	}

	return validationErrors
}

// GetSchemaRegistry returns the schema registry.
func (cp *CUEParser) GetSchemaRegistry() *SchemaRegistry {
	return cp.schemaRegistry
}

// LoadFromDirectory lists all CUE files below dir.
func (cp *CUEParser) LoadFromDirectory(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && strings.HasSuffix(path, ".cue") {
			files = append(files, path)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return files, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override settings.
const (
	EnvRootURL     = "CIADMIN_ROOT_URL"
	EnvClientID    = "CIADMIN_CLIENT_ID"
	EnvAccessToken = "CIADMIN_ACCESS_TOKEN"
	EnvLogLevel    = "LOG_LEVEL"
)

// DefaultSettingsFile is the settings file looked up when none is given.
const DefaultSettingsFile = "ciadmin.yaml"

// Settings is the tool configuration read from ciadmin.yaml.
type Settings struct {
	// RootURL is the base URL of the management service.
	RootURL string `yaml:"rootUrl" validate:"required,url"`

	Credentials Credentials `yaml:"credentials"`

	// Managed lists the resource id prefixes owned by this tool, for
	// example "Role=repo:github.com/org/".
	Managed []string `yaml:"managed" validate:"required,min=1,dive,required"`

	// Sources are CUE files or directories holding the desired state.
	Sources []string `yaml:"sources"`

	Generators []GeneratorSettings `yaml:"generators" validate:"dive"`

	Policies PolicySettings `yaml:"policies"`

	State StateSettings `yaml:"state"`

	Telemetry TelemetrySettings `yaml:"telemetry"`

	// RequestTimeout bounds every call to the management service.
	RequestTimeout time.Duration `yaml:"requestTimeout" validate:"gte=0"`

	// Dir is the directory of the settings file. Relative paths are
	// resolved against it.
	Dir string `yaml:"-"`
}

// Credentials authenticate against the management service.
type Credentials struct {
	ClientID    string `yaml:"clientId"`
	AccessToken string `yaml:"accessToken"`
}

// GeneratorSettings configures one Starlark generator.
type GeneratorSettings struct {
	Script  string                 `yaml:"script" validate:"required"`
	Input   map[string]interface{} `yaml:"input"`
	Timeout time.Duration          `yaml:"timeout" validate:"gte=0"`
}

// PolicySettings configures the plan gate.
type PolicySettings struct {
	// Paths are .rego files or directories evaluated in addition to the
	// built-in policies.
	Paths []string `yaml:"paths"`

	// MaxDeletes denies plans deleting more resources than this. Zero
	// disables the check.
	MaxDeletes int `yaml:"maxDeletes" validate:"gte=0"`

	// Protected lists id prefixes that must never be deleted.
	Protected []string `yaml:"protected"`
}

// StateSettings configures the run history database.
type StateSettings struct {
	Path string `yaml:"path"`
}

// TelemetrySettings configures logging, metrics and tracing.
type TelemetrySettings struct {
	LogLevel    string          `yaml:"logLevel" validate:"omitempty,oneof=trace debug info warn error"`
	LogFormat   string          `yaml:"logFormat" validate:"omitempty,oneof=console json"`
	MetricsAddr string          `yaml:"metricsAddr"`
	Tracing     TracingSettings `yaml:"tracing"`
}

// TracingSettings configures the trace exporter.
type TracingSettings struct {
	Enabled    bool    `yaml:"enabled"`
	Exporter   string  `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sampleRate" validate:"gte=0,lte=1"`
	Insecure   bool    `yaml:"insecure"`
}

// DefaultSettings returns settings with every optional field defaulted.
func DefaultSettings() *Settings {
	return &Settings{
		State: StateSettings{
			Path: filepath.Join(".ciadmin", "state.db"),
		},
		Telemetry: TelemetrySettings{
			LogLevel:  "info",
			LogFormat: "console",
			Tracing: TracingSettings{
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
		RequestTimeout: 60 * time.Second,
	}
}

// LoadSettings reads settings from path. A .env file next to the settings
// file is loaded first; variables already set in the environment win.
func LoadSettings(path string) (*Settings, error) {
	dir := filepath.Dir(path)

	envFile := filepath.Join(dir, ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	settings, err := ParseSettings(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	settings.Dir = dir
	settings.resolvePaths()
	return settings, nil
}

// ParseSettings decodes YAML settings, applies defaults and environment
// overrides, and validates the result.
func ParseSettings(data []byte) (*Settings, error) {
	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings YAML: %w", err)
	}

	settings.applyEnv()

	if err := validator.New().Struct(settings); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}

func (s *Settings) applyEnv() {
	if v := os.Getenv(EnvRootURL); v != "" {
		s.RootURL = v
	}
	if v := os.Getenv(EnvClientID); v != "" {
		s.Credentials.ClientID = v
	}
	if v := os.Getenv(EnvAccessToken); v != "" {
		s.Credentials.AccessToken = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		s.Telemetry.LogLevel = v
	}
}

func (s *Settings) resolvePaths() {
	s.Sources = s.resolveAll(s.Sources)
	s.Policies.Paths = s.resolveAll(s.Policies.Paths)
	for i := range s.Generators {
		s.Generators[i].Script = s.resolve(s.Generators[i].Script)
	}
	s.State.Path = s.resolve(s.State.Path)
}

func (s *Settings) resolveAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = s.resolve(p)
	}
	return out
}

func (s *Settings) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || s.Dir == "" {
		return path
	}
	return filepath.Join(s.Dir, path)
}

// WatchPaths returns every file or directory the desired state is read from.
func (s *Settings) WatchPaths() []string {
	paths := append([]string{}, s.Sources...)
	for _, g := range s.Generators {
		paths = append(paths, g.Script)
	}
	return paths
}

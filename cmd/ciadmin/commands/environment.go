package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ciadmin/ciadmin/pkg/client"
	"github.com/ciadmin/ciadmin/pkg/config"
	"github.com/ciadmin/ciadmin/pkg/engine"
	"github.com/ciadmin/ciadmin/pkg/policy"
	"github.com/ciadmin/ciadmin/pkg/resources"
	"github.com/ciadmin/ciadmin/pkg/stores"
	"github.com/ciadmin/ciadmin/pkg/telemetry"
)

// environment holds everything a command builds from the settings file.
type environment struct {
	settings *config.Settings
	tel      *telemetry.Telemetry
	logger   zerolog.Logger
	managed  *resources.Managed
	desired  *config.DesiredSource
	api      *client.Client

	// gate is set by reconciler.
	gate *policy.Engine
}

// loadSettings reads the settings file named by --config.
func loadSettings() (*config.Settings, error) {
	path := configPath
	if path == "" {
		path = config.DefaultSettingsFile
	}

	settings, err := config.LoadSettings(path)
	if err != nil {
		return nil, err
	}
	if verbose {
		settings.Telemetry.LogLevel = "debug"
	}
	return settings, nil
}

// telemetryConfig maps the telemetry section of the settings onto the
// telemetry package configuration.
func telemetryConfig(settings *config.Settings) *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = serviceVersion

	ts := settings.Telemetry
	if ts.LogLevel != "" {
		cfg.Logging.Level = ts.LogLevel
	}
	if ts.LogFormat != "" {
		cfg.Logging.Format = ts.LogFormat
	}

	cfg.Metrics.ListenAddress = ts.MetricsAddr

	cfg.Tracing.Enabled = ts.Tracing.Enabled
	if ts.Tracing.Exporter != "" {
		cfg.Tracing.Exporter = ts.Tracing.Exporter
	}
	cfg.Tracing.Endpoint = ts.Tracing.Endpoint
	cfg.Tracing.SamplingRate = ts.Tracing.SampleRate
	cfg.Tracing.Insecure = ts.Tracing.Insecure

	return cfg
}

// newEnvironment loads the settings and builds the telemetry, the desired
// source and the API client. Logs go to the command's error stream.
func newEnvironment(cmd *cobra.Command) (*environment, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	cfg := telemetryConfig(settings)
	logger := telemetry.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logging)
	tel, err := telemetry.NewTelemetryWithLogger(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	zlog := logger.Zerolog()
	managed := resources.NewManaged(settings.Managed...)

	api, err := client.NewClient(&client.Config{
		RootURL:        settings.RootURL,
		ClientID:       settings.Credentials.ClientID,
		AccessToken:    settings.Credentials.AccessToken,
		RequestTimeout: settings.RequestTimeout,
		UserAgent:      "ciadmin/" + serviceVersion,
		Logger:         zlog,
	})
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	return &environment{
		settings: settings,
		tel:      tel,
		logger:   zlog,
		managed:  managed,
		desired:  config.NewDesiredSource(settings, managed, zlog),
		api:      api,
	}, nil
}

// context attaches the telemetry to ctx.
func (e *environment) context(ctx context.Context) context.Context {
	return e.tel.WithContext(ctx)
}

// policyEngine builds the plan gate: the built-in policies configured from
// the settings plus the policy files they name.
func (e *environment) policyEngine(ctx context.Context) (*policy.Engine, error) {
	gate, err := policy.NewEngine(e.logger, policy.WithParams(policy.Params{
		MaxDeletes: e.settings.Policies.MaxDeletes,
		Protected:  e.settings.Policies.Protected,
	}))
	if err != nil {
		return nil, err
	}
	if len(e.settings.Policies.Paths) > 0 {
		if err := gate.LoadPolicies(ctx, e.settings.Policies.Paths); err != nil {
			return nil, fmt.Errorf("failed to load policies: %w", err)
		}
	}
	return gate, nil
}

// reconciler wires the desired source, the live service, the policy gate
// and sinks into a reconciler. The telemetry sink is always registered.
func (e *environment) reconciler(ctx context.Context, sinks ...engine.Notifier) (*engine.Reconciler, error) {
	table, err := resources.NewDispatchTable(e.api)
	if err != nil {
		return nil, err
	}

	gate, err := e.policyEngine(ctx)
	if err != nil {
		return nil, err
	}
	e.gate = gate

	sinks = append([]engine.Notifier{e.tel.Sink()}, sinks...)
	executor := engine.NewExecutor(table, e.logger, sinks...)
	current := resources.NewCurrentSource(e.api, e.managed, e.logger)

	return engine.NewReconciler(e.desired, current, executor, e.logger, engine.WithPlanGate(gate)), nil
}

// plan computes the plan inside an instrumented phase and publishes its
// size as metrics.
func (e *environment) plan(ctx context.Context, rec *engine.Reconciler) (*engine.Plan, error) {
	phase := telemetry.StartOperation(ctx, "plan")
	plan, err := rec.Plan(phase.Ctx)
	phase.End(err)
	if err != nil {
		return nil, err
	}
	e.tel.Metrics.SetPlanSummary(plan.Summary)
	return plan, nil
}

// openStore opens and migrates the run history database.
func (e *environment) openStore(ctx context.Context) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: e.settings.State.Path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}
	return store, nil
}

// Close flushes telemetry.
func (e *environment) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.tel.Shutdown(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to flush telemetry")
	}
}

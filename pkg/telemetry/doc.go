// Package telemetry provides observability for reconciliation runs.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry),
// metrics (Prometheus) and an in-process event stream.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Metrics.ListenAddress = ":9090"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//	_ = tel.Metrics.StartMetricsServer(ctx, tel.Logger)
//
// # Run Instrumentation
//
// A Sink is registered with the executor like any other notification sink:
//
//	executor := engine.NewExecutor(table, logger, tel.Sink())
//
// Each run gets a "run.apply" span with one "operation.<action>" child per
// remote call. The sink counts runs, operations and failures by error
// class, and publishes an event for every step.
//
// # Metrics
//
//	ciadmin_runs_started_total
//	ciadmin_runs_completed_total{status}
//	ciadmin_run_duration_seconds{status}
//	ciadmin_active_runs
//	ciadmin_operations_total{action,kind,status}
//	ciadmin_operation_duration_seconds{action,kind}
//	ciadmin_plan_operations{action}
//	ciadmin_errors_by_class_total{class}
//
// # Events
//
// Subscribers receive events in publish order:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// # Phases
//
// StartOperation wraps a phase of a command in a span and a logger:
//
//	ic := telemetry.StartOperation(ctx, "desired.load")
//	rs, err := desired.Resources(ic.Ctx)
//	ic.End(err)
package telemetry

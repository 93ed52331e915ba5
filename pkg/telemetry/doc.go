// Package telemetry provides observability for converge runs: structured
// logging (zerolog), tracing (OpenTelemetry), metrics (Prometheus) and
// telemetry events.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	tel.Metrics.Serve(ctx, tel.Logger.Zerolog())
//
// # Structured Logging
//
// Component loggers carry run fields. Only resource identities are logged;
// attribute values never are.
//
//	logger := tel.Logger.NewComponentLogger("reporter").WithRunID(runID)
//	logger.WithField("resource", "file[/etc/motd]").Info("recorded")
//
// # Tracing
//
// The engine opens one span per run (StartRunSpan, "converge.run") and one
// per resource action (StartResourceSpan, "resource.<action>"). Exporters:
// otlp (gRPC), stdout, none. WrapTracer adapts any trace.Tracer.
//
// # Metrics
//
//	tel.Metrics.RecordAction("file", "updated", elapsed, true)
//	tel.Metrics.RecordRunFinished("success", duration)
//
// Metric names are prefixed with the configured namespace:
// actions_recorded_total, action_duration_seconds, runs_total,
// run_duration_seconds, active_runs, errors_total.
//
// # Events
//
// The EventPublisher delivers events to subscribers in publish order. With
// EnableAsync, delivery happens on a background goroutine and Shutdown
// drains the buffer; otherwise Publish delivers before returning.
package telemetry

// Package observability provides structured logging, Prometheus metrics,
// health checks and OpenTelemetry setup for homegate.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("provider", "github").Info("login completed")
//
// Request-scoped loggers travel in the context:
//
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx).Warn("state rejected")
//
// Tokens, client secrets and API keys are never passed to the logger.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordResolution("oauth")
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
// A nil *Metrics records nothing.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "homegate",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// Spans are started from observability.Tracer().
package observability

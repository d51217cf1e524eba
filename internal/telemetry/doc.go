// Package telemetry bootstraps OpenTelemetry for insightd.
//
// When telemetry is disabled the global no-op providers stay in place and
// instrumented code paths cost nothing. When enabled, the package installs
// OTLP trace and metric exporters (gRPC or HTTP/protobuf) as the global
// providers, with W3C trace-context propagation and parent-based ratio
// sampling. Shut the instance down on exit to flush pending data:
//
//	tel, err := telemetry.New(ctx, cfg.Telemetry, version)
//	if err != nil {
//	    logger.Warn("telemetry disabled", zap.Error(err))
//	}
//	defer tel.Shutdown(context.Background())
package telemetry

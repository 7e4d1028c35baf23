package generator

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// tracer and instruments are registered against the global provider at
// package init time, mirroring the teacher's own pattern (a package-level
// tracer/metrics var populated once, forwarding to whatever provider
// InitTelemetry installs).
var genTracer = otel.Tracer("github.com/isochk/isochk/generator")

var genMetrics struct {
	txCount      metric.Int64Counter
	anomalyCount metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/isochk/isochk/generator")
	genMetrics.txCount, _ = m.Int64Counter("isochk.generator.tx_count",
		metric.WithDescription("transactions dispatched by the generator"),
		metric.WithUnit("{transaction}"),
	)
	genMetrics.anomalyCount, _ = m.Int64Counter("isochk.generator.anomaly_count",
		metric.WithDescription("anomalies reported for the last checked history"),
		metric.WithUnit("{anomaly}"),
	)
}

// InitTelemetry installs the global meter and tracer providers: stdout
// exporters by default, or an OTLP/HTTP metrics exporter when
// OTEL_EXPORTER_OTLP_ENDPOINT is set. It returns a shutdown func the caller
// must invoke before exit to flush buffered telemetry.
func InitTelemetry(ctx context.Context) (shutdown func(context.Context) error, err error) {
	var mp *sdkmetric.MeterProvider
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		exp, err := otlpmetrichttp.New(ctx)
		if err != nil {
			return nil, err
		}
		mp = sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	} else {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, err
		}
		mp = sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}
	otel.SetMeterProvider(mp)

	traceExp, err := stdouttrace.New(stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp))
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		if err := mp.Shutdown(ctx); err != nil {
			return err
		}
		return tp.Shutdown(ctx)
	}, nil
}

// StartTxSpan opens the root span recorded for one generated transaction.
func StartTxSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return genTracer.Start(ctx, name)
}

// Package observability - трассировка OTLP/gRPC
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
)

// InitTracer ставит глобальный TracerProvider с экспортом в endpoint.
// Пустой endpoint - трассировка выключена, остается noop провайдер.
func InitTracer(ctx context.Context, endpoint, service string, logger *zap.Logger) (shutdown func(context.Context) error, err error) {
	if endpoint == "" {
		logger.Info("Tracing disabled", zap.String("service", service))
		return func(context.Context) error { return nil }, nil
	}

	// экспортер
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(e error) {
		logger.Warn("OTel error", zap.String("service", service), zap.Error(e))
	}))
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(service)),
	)
	if err != nil {
		return nil, err
	}

	tp := newProvider(exp, res)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func newProvider(exp sdktrace.SpanExporter, res *resource.Resource) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp,
			sdktrace.WithMaxQueueSize(2048),
			sdktrace.WithBatchTimeout(200*time.Millisecond),
		),
		sdktrace.WithResource(res),
	)
}

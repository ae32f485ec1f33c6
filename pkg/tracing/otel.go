// Copyright 2026 abouchard11
// OpenTelemetry integration for distributed tracing

package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	ServiceName    string
	ExportEndpoint string
	Insecure       bool
}

// InitTracer 初始化 OpenTelemetry tracer
func InitTracer(config OTelConfig) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.ExportEndpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartLeaseSpan 开始租约操作 span（acquire / renew / release）
func StartLeaseSpan(ctx context.Context, op string, resourceName string, holder string) (context.Context, trace.Span) {
	tracer := otel.Tracer("leased")
	ctx, span := tracer.Start(ctx, "lease."+op,
		trace.WithAttributes(
			attribute.String("lease.resource", resourceName),
			attribute.String("lease.holder", holder),
		),
	)
	return ctx, span
}

// StartTaskSpan 开始任务调度 span（claim / heartbeat / complete / abandon）
func StartTaskSpan(ctx context.Context, op string, processor string) (context.Context, trace.Span) {
	tracer := otel.Tracer("leased")
	ctx, span := tracer.Start(ctx, "task."+op,
		trace.WithAttributes(
			attribute.String("task.processor", processor),
		),
	)
	return ctx, span
}

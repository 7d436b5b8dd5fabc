package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Service information
	ServiceName    = "celebrum-ledger"
	ServiceVersion = "1.0.0"

	tracesPath = "/v1/traces"
)

// TelemetryConfig holds configuration for tracing
type TelemetryConfig struct {
	Enabled        bool
	OTLPEndpoint   string // empty exports spans to stdout
	ServiceName    string
	ServiceVersion string
	Environment    string
	SampleRate     float64
	BatchTimeout   time.Duration
	MaxExportBatch int
	MaxQueueSize   int

	// Writer receives stdout spans. Defaults to os.Stdout.
	Writer io.Writer
}

// DefaultConfig returns default telemetry configuration
func DefaultConfig() *TelemetryConfig {
	return &TelemetryConfig{
		Enabled:        true,
		OTLPEndpoint:   "http://localhost:4318",
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    "development",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		MaxExportBatch: 512,
		MaxQueueSize:   2048,
	}
}

// Provider owns the tracer provider installed by InitTelemetry.
type Provider struct {
	tp     *sdktrace.TracerProvider
	logger *slog.Logger
}

// Shutdown flushes pending spans. Safe on a disabled provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	p.logger.Info("Tracer provider shut down")
	return nil
}

// Enabled reports whether spans are being exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.tp != nil
}

// InitTelemetry installs a global tracer provider. A disabled config leaves the
// no-op provider in place and returns a provider whose Shutdown does nothing.
func InitTelemetry(ctx context.Context, cfg TelemetryConfig, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		logger.Info("Tracing disabled")
		return &Provider{logger: logger}, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = ServiceName
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = ServiceVersion
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	batchOpts := []sdktrace.BatchSpanProcessorOption{}
	if cfg.BatchTimeout > 0 {
		batchOpts = append(batchOpts, sdktrace.WithBatchTimeout(cfg.BatchTimeout))
	}
	if cfg.MaxExportBatch > 0 {
		batchOpts = append(batchOpts, sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatch))
	}
	if cfg.MaxQueueSize > 0 {
		batchOpts = append(batchOpts, sdktrace.WithMaxQueueSize(cfg.MaxQueueSize))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, batchOpts...),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate(cfg.SampleRate)))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Tracing initialized",
		"service", cfg.ServiceName,
		"exporter", exporterName(cfg),
	)
	return &Provider{tp: tp, logger: logger}, nil
}

func newExporter(ctx context.Context, cfg TelemetryConfig) (sdktrace.SpanExporter, error) {
	if cfg.OTLPEndpoint == "" {
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exporter, nil
	}

	hostport, urlPath, insecure, _, err := normalizeOTLPEndpoint(cfg.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid OTLPEndpoint %q: %w", cfg.OTLPEndpoint, err)
	}
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(hostport),
		otlptracehttp.WithURLPath(urlPath),
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

func exporterName(cfg TelemetryConfig) string {
	if cfg.OTLPEndpoint == "" {
		return "stdout"
	}
	return "otlphttp"
}

func sampleRate(r float64) float64 {
	if r <= 0 || r > 1 {
		return 1
	}
	return r
}

// normalizeOTLPEndpoint splits a collector URL into the pieces otlptracehttp
// wants. The traces path is appended unless already present.
func normalizeOTLPEndpoint(endpoint string) (hostport, urlPath string, insecure bool, resolved string, err error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", "", false, "", err
	}
	switch u.Scheme {
	case "http":
		insecure = true
	case "https":
	default:
		return "", "", false, "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", false, "", fmt.Errorf("missing host")
	}

	urlPath = strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(urlPath, tracesPath) {
		urlPath += tracesPath
	}
	resolved = fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, urlPath)
	return u.Host, urlPath, insecure, resolved, nil
}

// GetTracer returns a named tracer from the global provider
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// GetHTTPTracer returns the tracer used for API handlers
func GetHTTPTracer() trace.Tracer {
	return GetTracer(ServiceName + "/http")
}

// StartSpan starts a span with the given tracer
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, opts...)
}

// SetSpanAttributes sets attributes on a span
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordError records err on the span and marks it failed
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func TestNormalizeOTLPEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		hostport string
		urlPath  string
		insecure bool
		resolved string
		wantErr  bool
	}{
		{"default localhost", "http://localhost:4318", "localhost:4318", "/v1/traces", true, "http://localhost:4318/v1/traces", false},
		{"trailing slash base", "http://collector:4318/", "collector:4318", "/v1/traces", true, "http://collector:4318/v1/traces", false},
		{"already traces path", "http://collector:4318/v1/traces", "collector:4318", "/v1/traces", true, "http://collector:4318/v1/traces", false},
		{"custom base path", "https://otlp.example.com:4318/otlp", "otlp.example.com:4318", "/otlp/v1/traces", false, "https://otlp.example.com:4318/otlp/v1/traces", false},
		{"invalid no scheme", "collector:4318", "", "", true, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hp, path, insecure, resolved, err := normalizeOTLPEndpoint(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hostport, hp)
			assert.Equal(t, tt.urlPath, path)
			assert.Equal(t, tt.insecure, insecure)
			assert.Equal(t, tt.resolved, resolved)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.True(t, config.Enabled)
	assert.Equal(t, "http://localhost:4318", config.OTLPEndpoint)
	assert.Equal(t, ServiceName, config.ServiceName)
	assert.Equal(t, ServiceVersion, config.ServiceVersion)
	assert.Equal(t, 1.0, config.SampleRate)
	assert.Equal(t, 5*time.Second, config.BatchTimeout)
	assert.Equal(t, 512, config.MaxExportBatch)
	assert.Equal(t, 2048, config.MaxQueueSize)
}

func TestInitTelemetry_Disabled(t *testing.T) {
	provider, err := InitTelemetry(context.Background(), TelemetryConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.False(t, provider.Enabled())
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestInitTelemetry_StdoutExporter(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	provider, err := InitTelemetry(context.Background(), TelemetryConfig{
		Enabled:     true,
		Environment: "test",
		Writer:      &buf,
	}, slog.Default())
	require.NoError(t, err)
	require.True(t, provider.Enabled())

	_, span := StartSpan(context.Background(), GetTracer("test"), "ledger.select")
	SetSpanAttributes(span, attribute.String("db.table", "trades"))
	RecordError(span, assert.AnError)
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "ledger.select")
	assert.Contains(t, buf.String(), "celebrum-ledger")
}

func TestInitTelemetry_OTLPExporter(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	provider, err := InitTelemetry(context.Background(), TelemetryConfig{
		Enabled:      true,
		OTLPEndpoint: "http://127.0.0.1:1",
	}, nil)
	require.NoError(t, err)
	assert.True(t, provider.Enabled())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = provider.Shutdown(ctx)
}

func TestInitTelemetry_InvalidEndpoint(t *testing.T) {
	provider, err := InitTelemetry(context.Background(), TelemetryConfig{
		Enabled:      true,
		OTLPEndpoint: "invalid-url://[invalid",
	}, nil)
	assert.Error(t, err)
	assert.Nil(t, provider)
	assert.Contains(t, err.Error(), "invalid OTLPEndpoint")
}

func TestRecordError_Nil(t *testing.T) {
	_, span := StartSpan(context.Background(), GetHTTPTracer(), "noop")
	assert.NotPanics(t, func() { RecordError(span, nil) })
	span.End()
}

func TestSampleRate(t *testing.T) {
	assert.Equal(t, 1.0, sampleRate(0))
	assert.Equal(t, 1.0, sampleRate(2))
	assert.Equal(t, 0.25, sampleRate(0.25))
}

package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/OCAP2/simtools/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutOutputs(t *testing.T) {
	_, err := New(Config{Enabled: true, ServiceName: "simtools"})
	assert.ErrorIs(t, err, ErrNoOutputs)
}

func TestNew_FileExporter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{
		Enabled:      true,
		ServiceName:  "simtools-test",
		BatchTimeout: time.Second,
		Writer:       &buf,
	})
	require.NoError(t, err)
	require.NotNil(t, p.LoggerProvider())

	var rec otellog.Record
	rec.SetBody(otellog.StringValue("trace loaded"))
	p.LoggerProvider().Logger("test").Emit(context.Background(), rec)

	require.NoError(t, p.Flush(context.Background()))
	assert.Contains(t, buf.String(), "trace loaded")
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestFromConfig(t *testing.T) {
	var buf bytes.Buffer
	cfg := FromConfig(config.OTelConfig{
		Enabled:      true,
		ServiceName:  "svc",
		BatchTimeout: 2 * time.Second,
		Endpoint:     "collector:4318",
		Insecure:     true,

		TraceEndpoint: "collector:4317",
		SampleRatio:   0.5,
	}, &buf)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "svc", cfg.ServiceName)
	assert.Equal(t, 2*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "collector:4318", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, "collector:4317", cfg.TraceEndpoint)
	assert.Equal(t, 0.5, cfg.SampleRatio)
	assert.Same(t, &buf, cfg.Writer)
}

func TestNew_SpansToWriter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{Enabled: true, BatchTimeout: time.Second, Writer: &buf, SampleRatio: 5})
	require.NoError(t, err)

	_, span := p.Tracer("test").Start(context.Background(), "trace influx")
	span.End()

	require.NoError(t, p.Flush(context.Background()))
	assert.Contains(t, buf.String(), `"Name": "trace influx"`)
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestTracer_Disabled(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)

	_, span := p.Tracer("test").Start(context.Background(), "noop")
	defer span.End()
	assert.False(t, span.SpanContext().IsSampled())
}

func TestMeter(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)

	counter, err := p.Meter("test").Int64Counter("frames")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
}

package trace

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/OCAP2/simtools/internal/trace"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type storeMetrics struct {
	framesLoaded metric.Int64Counter
	loadFailures metric.Int64Counter
	loadDuration metric.Float64Histogram
}

func newStoreMetrics() storeMetrics {
	m := meter()
	sm := storeMetrics{
		framesLoaded: noop.Int64Counter{},
		loadFailures: noop.Int64Counter{},
		loadDuration: noop.Float64Histogram{},
	}

	if c, err := m.Int64Counter(
		"trace.frames.loaded",
		metric.WithDescription("Total frames indexed by successful loads"),
	); err == nil {
		sm.framesLoaded = c
	}
	if c, err := m.Int64Counter(
		"trace.load.failures",
		metric.WithDescription("Total trace loads rejected"),
	); err == nil {
		sm.loadFailures = c
	}
	if h, err := m.Float64Histogram(
		"trace.load.duration",
		metric.WithDescription("Trace load duration"),
		metric.WithUnit("s"),
	); err == nil {
		sm.loadDuration = h
	}
	return sm
}

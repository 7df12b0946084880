package scenario

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/OCAP2/simtools/internal/scenario"

type generatorMetrics struct {
	agentsGenerated metric.Int64Counter
}

func newGeneratorMetrics() generatorMetrics {
	c, err := otel.Meter(instrumentationName).Int64Counter(
		"scenario.agents.generated",
		metric.WithDescription("Total agents produced by the route generator"),
	)
	if err != nil {
		return generatorMetrics{agentsGenerated: noop.Int64Counter{}}
	}
	return generatorMetrics{agentsGenerated: c}
}

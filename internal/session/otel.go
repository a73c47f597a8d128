package session

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/auvmap/analyzer/internal/session"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

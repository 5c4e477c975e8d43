// Package telemetry configures OpenTelemetry context propagation so trace
// context reaches Pub/Sub notifications as message attributes.
package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// InitPropagation installs the W3C trace-context and baggage propagators globally.
func InitPropagation() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

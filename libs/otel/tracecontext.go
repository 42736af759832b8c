package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceCarrier is embedded into job payloads so a reminder fired hours later continues
// the trace of the booking request that scheduled it.
type TraceCarrier struct {
	Traceparent string `json:"traceparent,omitempty"`
	Tracestate  string `json:"tracestate,omitempty"`
}

func CarrierFromContext(ctx context.Context) TraceCarrier {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceCarrier{Traceparent: carrier["traceparent"], Tracestate: carrier["tracestate"]}
}

func (c TraceCarrier) Extract(ctx context.Context) context.Context {
	if c.Traceparent == "" && c.Tracestate == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{
		"traceparent": c.Traceparent,
		"tracestate":  c.Tracestate,
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

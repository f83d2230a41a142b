// Package observability owns the OpenTelemetry instruments recorded by the
// workflow pipeline.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/lukas-pastva/argo-workflows-ui"

// Metrics records pipeline counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	pages       metric.Int64Counter
	pageItems   metric.Int64Histogram
	resolutions metric.Int64Counter
	streams     metric.Int64UpDownCounter
	streamBytes metric.Int64Counter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter creates the instruments on meter.
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	pages, err := meter.Int64Counter("workflows.list.pages",
		metric.WithDescription("Workflow list pages fetched from upstream"))
	if err != nil {
		return nil, err
	}
	pageItems, err := meter.Int64Histogram("workflows.list.items",
		metric.WithDescription("Workflows per fetched list page"))
	if err != nil {
		return nil, err
	}
	resolutions, err := meter.Int64Counter("workflows.pod_resolutions",
		metric.WithDescription("Pod name resolutions by winning strategy"))
	if err != nil {
		return nil, err
	}
	streams, err := meter.Int64UpDownCounter("workflows.log_streams.active",
		metric.WithDescription("Log streams currently relayed"))
	if err != nil {
		return nil, err
	}
	streamBytes, err := meter.Int64Counter("workflows.log_streams.bytes",
		metric.WithDescription("Log bytes relayed to clients"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		pages:       pages,
		pageItems:   pageItems,
		resolutions: resolutions,
		streams:     streams,
		streamBytes: streamBytes,
	}, nil
}

// PageFetched records one list call and its outcome, and the page size of
// successful calls.
func (m *Metrics) PageFetched(ctx context.Context, items int, err error) {
	if m == nil {
		return
	}
	m.pages.Add(ctx, 1, metric.WithAttributes(attribute.Bool("error", err != nil)))
	if err == nil {
		m.pageItems.Record(ctx, int64(items))
	}
}

// PodResolved records which strategy produced a pod name; "none" when
// resolution failed.
func (m *Metrics) PodResolved(ctx context.Context, strategy string) {
	if m == nil {
		return
	}
	m.resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", strategy)))
}

// StreamStarted marks a log stream as active and returns the function that
// ends it, recording the number of bytes relayed.
func (m *Metrics) StreamStarted(ctx context.Context) func(bytes int64) {
	if m == nil {
		return func(int64) {}
	}
	m.streams.Add(ctx, 1)
	return func(bytes int64) {
		m.streams.Add(ctx, -1)
		m.streamBytes.Add(ctx, bytes)
	}
}

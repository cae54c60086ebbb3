package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/kinetrace/labeller/internal/session"

// Recorder counts annotation engine activity.
type Recorder struct {
	commits       metric.Int64Counter
	navigations   metric.Int64Counter
	probeFailures metric.Int64Counter
}

// NewRecorder creates the engine counters on the given provider.
func NewRecorder(mp metric.MeterProvider) (*Recorder, error) {
	meter := mp.Meter(meterName)

	commits, err := meter.Int64Counter("labeller.commits",
		metric.WithDescription("Marker commits, split by insert/update path"))
	if err != nil {
		return nil, fmt.Errorf("failed to create commit counter: %w", err)
	}

	navigations, err := meter.Int64Counter("labeller.navigations",
		metric.WithDescription("Manual navigation steps, split by axis"))
	if err != nil {
		return nil, fmt.Errorf("failed to create navigation counter: %w", err)
	}

	probeFailures, err := meter.Int64Counter("labeller.probe_exhaustions",
		metric.WithDescription("Next-point probes that hit the attempt budget"))
	if err != nil {
		return nil, fmt.Errorf("failed to create probe counter: %w", err)
	}

	return &Recorder{
		commits:       commits,
		navigations:   navigations,
		probeFailures: probeFailures,
	}, nil
}

// Commit counts one marker commit; op is "insert" or "update".
func (r *Recorder) Commit(ctx context.Context, op string) {
	r.commits.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// Navigation counts one manual axis step.
func (r *Recorder) Navigation(ctx context.Context, axis string) {
	r.navigations.Add(ctx, 1, metric.WithAttributes(attribute.String("axis", axis)))
}

// ProbeExhausted counts one failed next-point probe.
func (r *Recorder) ProbeExhausted(ctx context.Context) {
	r.probeFailures.Add(ctx, 1)
}

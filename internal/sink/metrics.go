package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/roach88/weave/internal/ir"
)

// Metric names.
const (
	MetricEvents           = "weave.events"
	MetricDispatches       = "weave.dispatches"
	MetricDispatchDuration = "weave.dispatch.duration"
	MetricAdviceFailures   = "weave.advice.failures"
)

// Metrics maps event records onto OpenTelemetry instruments:
//   - every record -> weave.events{phase, operation}
//   - terminal records -> weave.dispatches{operation, outcome}
//   - start to terminal timestamps -> weave.dispatch.duration (seconds)
//   - advice records with status error -> weave.advice.failures{operation, rule, phase}
//
// The meter should come from the application's MeterProvider.
type Metrics struct {
	events         metric.Int64Counter
	dispatches     metric.Int64Counter
	duration       metric.Float64Histogram
	adviceFailures metric.Int64Counter

	mu      sync.Mutex
	started map[string]time.Time
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{started: make(map[string]time.Time)}

	var err error
	if m.events, err = meter.Int64Counter(MetricEvents,
		metric.WithDescription("Event records emitted by the dispatcher")); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricEvents, err)
	}
	if m.dispatches, err = meter.Int64Counter(MetricDispatches,
		metric.WithDescription("Completed dispatches by outcome")); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricDispatches, err)
	}
	if m.duration, err = meter.Float64Histogram(MetricDispatchDuration,
		metric.WithDescription("Dispatch duration from start to outcome"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricDispatchDuration, err)
	}
	if m.adviceFailures, err = meter.Int64Counter(MetricAdviceFailures,
		metric.WithDescription("Advice invocations that raised")); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricAdviceFailures, err)
	}
	return m, nil
}

// Emit records rec.
func (m *Metrics) Emit(ctx context.Context, rec ir.EventRecord) {
	op := attribute.String("operation", rec.Operation)
	m.events.Add(ctx, 1, metric.WithAttributes(op, attribute.String("phase", string(rec.Phase))))

	switch {
	case rec.Phase == ir.PhaseDispatchStart:
		m.mu.Lock()
		m.started[rec.InvocationID] = rec.Timestamp
		m.mu.Unlock()

	case rec.Phase.Terminal():
		outcome := attribute.String("outcome", outcomeOf(rec.Phase))
		m.dispatches.Add(ctx, 1, metric.WithAttributes(op, outcome))

		m.mu.Lock()
		start, ok := m.started[rec.InvocationID]
		delete(m.started, rec.InvocationID)
		m.mu.Unlock()
		if ok {
			m.duration.Record(ctx, rec.Timestamp.Sub(start).Seconds(), metric.WithAttributes(op, outcome))
		}

	case rec.PayloadString("status") == "error" && rec.Phase != ir.PhaseTarget:
		m.adviceFailures.Add(ctx, 1, metric.WithAttributes(
			op,
			attribute.String("rule", rec.PayloadString("rule")),
			attribute.String("phase", string(rec.Phase)),
		))
	}
}

// InFlight returns the number of dispatches started but not finished.
func (m *Metrics) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.started)
}

func outcomeOf(p ir.Phase) string {
	switch p {
	case ir.PhaseDispatchSuccess:
		return "success"
	case ir.PhaseDispatchFailure:
		return "failure"
	case ir.PhaseDispatchSuppressed:
		return "suppressed"
	case ir.PhaseDispatchRejected:
		return "rejected"
	}
	return string(p)
}

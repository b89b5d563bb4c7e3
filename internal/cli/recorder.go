package cli

import (
	"context"
	"fmt"
	"log/slog"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/sink"
	"github.com/roach88/weave/internal/store"
)

// recorder owns the event sinks of one command run: the log sink, the
// optional SQLite event log (direct or behind an async queue) and the
// optional in-process metrics reader.
type recorder struct {
	sinks  []sink.Sink
	store  *store.Store
	writer *sink.Store
	async  *sink.Async
	done   chan error
	reader *sdkmetric.ManualReader

	// startSeq is the highest seq already in the event log. The engine
	// clock continues after it so appended records never collide.
	startSeq int64
}

type recorderOptions struct {
	DB      string
	Async   bool
	Metrics bool
}

func newRecorder(ctx context.Context, logger *slog.Logger, o recorderOptions) (*recorder, error) {
	r := &recorder{sinks: []sink.Sink{sink.NewSlog(logger)}}

	if o.DB != "" {
		st, err := store.Open(o.DB)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		r.store = st
		if r.startSeq, err = st.MaxSeq(ctx); err != nil {
			r.close()
			return nil, WrapExitError(ExitCommandError, "failed to read event log", err)
		}
		r.writer = sink.NewStore(st, logger)

		if o.Async {
			r.async = sink.NewAsync(r.writer)
			r.done = make(chan error, 1)
			go func() {
				r.done <- r.async.Run(ctx)
			}()
			r.sinks = append(r.sinks, r.async)
		} else {
			r.sinks = append(r.sinks, r.writer)
		}
	}

	if o.Metrics {
		r.reader = sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(r.reader))
		m, err := sink.NewMetrics(provider.Meter("github.com/roach88/weave"))
		if err != nil {
			r.close()
			return nil, WrapExitError(ExitCommandError, "failed to create metrics", err)
		}
		r.sinks = append(r.sinks, m)
	}

	return r, nil
}

func (r *recorder) options() []engine.EngineOption {
	return []engine.EngineOption{
		engine.WithSink(sink.Fanout(r.sinks...)),
		engine.WithClock(engine.NewClockAt(r.startSeq)),
	}
}

// close drains the async queue and closes the database. Every record
// emitted before close is persisted on return.
func (r *recorder) close() error {
	var firstErr error
	if r.async != nil {
		r.async.Close()
		if err := <-r.done; err != nil {
			firstErr = fmt.Errorf("drain event queue: %w", err)
		}
		r.async = nil
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close database: %w", err)
		}
		r.store = nil
	}
	return firstErr
}

// writeFailures returns how many records could not be persisted.
func (r *recorder) writeFailures() int64 {
	if r.writer == nil {
		return 0
	}
	return r.writer.Failures()
}

// dispatchCounts collects the dispatch counter by outcome. Nil when
// metrics are off.
func (r *recorder) dispatchCounts(ctx context.Context) (map[string]int64, error) {
	if r.reader == nil {
		return nil, nil
	}

	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	counts := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != sink.MetricDispatches {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				outcome, _ := dp.Attributes.Value("outcome")
				counts[outcome.AsString()] += dp.Value
			}
		}
	}
	return counts, nil
}

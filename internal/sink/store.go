package sink

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/weave/internal/ir"
)

// Appender persists event records. *store.Store implements it.
type Appender interface {
	AppendEvent(ctx context.Context, rec ir.EventRecord) error
}

// Store writes every record to an Appender.
//
// A sink cannot fail a dispatch, so write errors are logged and counted.
// Wrap a Store in Async to keep database latency off the call path.
type Store struct {
	appender Appender
	logger   *slog.Logger
	failures atomic.Int64
}

// NewStore creates a persisting sink. A nil logger uses slog.Default().
func NewStore(a Appender, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{appender: a, logger: logger}
}

// Emit appends rec.
func (s *Store) Emit(ctx context.Context, rec ir.EventRecord) {
	if err := s.appender.AppendEvent(ctx, rec); err != nil {
		s.failures.Add(1)
		s.logger.Error("failed to persist event record",
			"seq", rec.Seq,
			"invocation_id", rec.InvocationID,
			"phase", rec.Phase,
			"error", err,
		)
	}
}

// Failures returns the number of records that could not be written.
func (s *Store) Failures() int64 {
	return s.failures.Load()
}

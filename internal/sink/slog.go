package sink

import (
	"context"
	"log/slog"

	"github.com/roach88/weave/internal/ir"
)

// Slog writes each record as one structured log line.
//
// Failures and rejections log at warn, other terminal phases at info, and
// every intermediate phase at debug.
type Slog struct {
	logger *slog.Logger
}

// NewSlog creates a log sink. A nil logger uses slog.Default().
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger}
}

// Emit logs rec.
func (s *Slog) Emit(ctx context.Context, rec ir.EventRecord) {
	level := levelFor(rec.Phase)
	if !s.logger.Enabled(ctx, level) {
		return
	}

	attrs := []slog.Attr{
		slog.Int64("seq", rec.Seq),
		slog.String("invocation_id", rec.InvocationID),
		slog.String("operation", rec.Operation),
	}
	if rec.Group != "" {
		attrs = append(attrs, slog.String("group", rec.Group))
	}
	if len(rec.Payload) > 0 {
		payload, err := ir.MarshalCanonical(rec.Payload)
		if err != nil {
			attrs = append(attrs, slog.String("payload_error", err.Error()))
		} else {
			attrs = append(attrs, slog.String("payload", string(payload)))
		}
	}
	s.logger.LogAttrs(ctx, level, string(rec.Phase), attrs...)
}

func levelFor(p ir.Phase) slog.Level {
	switch p {
	case ir.PhaseDispatchFailure, ir.PhaseDispatchRejected:
		return slog.LevelWarn
	case ir.PhaseDispatchSuccess, ir.PhaseDispatchSuppressed:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

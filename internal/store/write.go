package store

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/roach88/weave/internal/ir"
)

// AppendEvent writes one event record.
//
// A dispatch.start record also writes the invocation row, taking args and
// depth from its payload. Both inserts run in one transaction and ignore
// duplicates, so appending the same record twice is a no-op.
func (s *Store) AppendEvent(ctx context.Context, rec ir.EventRecord) error {
	id, err := ir.EventID(rec)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	payload, err := marshalValue(rec.Payload)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append event: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if rec.Phase == ir.PhaseDispatchStart {
		if err := s.insertInvocation(ctx, tx, rec); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
	}

	err = s.insert(ctx, tx, tableEvents, goqu.Record{
		colID:         id,
		colSeq:        rec.Seq,
		colInvocation: rec.InvocationID,
		colOperation:  rec.Operation,
		colGroup:      rec.Group,
		colPhase:      string(rec.Phase),
		colPayload:    payload,
		colRecordedAt: formatTime(rec.Timestamp),
	})
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append event: commit: %w", err)
	}
	return nil
}

// AppendEvents writes records in order, stopping at the first error.
func (s *Store) AppendEvents(ctx context.Context, recs []ir.EventRecord) error {
	for _, rec := range recs {
		if err := s.AppendEvent(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertInvocation(ctx context.Context, tx *sqlx.Tx, rec ir.EventRecord) error {
	args, _ := rec.Payload["args"].(ir.Array)
	if args == nil {
		args = ir.Array{}
	}
	argsJSON, err := marshalValue(args)
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	argsHash, err := ir.ArgsHash(rec.Operation, args)
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	depth := int64(1)
	if d, ok := rec.Payload["depth"].(ir.Int); ok {
		depth = int64(d)
	}

	return s.insert(ctx, tx, tableInvokes, goqu.Record{
		colID:        rec.InvocationID,
		colOperation: rec.Operation,
		colGroup:     rec.Group,
		colArgs:      argsJSON,
		colArgsHash:  argsHash,
		colSeq:       rec.Seq,
		colDepth:     depth,
		colEngineVer: ir.EngineVersion,
		colRecordVer: ir.RecordVersion,
	})
}

// insert runs an INSERT that ignores rows conflicting on a unique key.
func (s *Store) insert(ctx context.Context, tx *sqlx.Tx, table string, row goqu.Record) error {
	query, args, err := s.dialect.
		Insert(table).
		Rows(row).
		OnConflict(goqu.DoNothing()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert into %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

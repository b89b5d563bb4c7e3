package store

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/roach88/weave/internal/ir"
)

// Invocation is a stored dispatch start.
type Invocation struct {
	ID            string
	Operation     string
	Group         string
	Args          ir.Array
	ArgsHash      string
	Seq           int64
	Depth         int
	EngineVersion string
	RecordVersion string
}

// EventFilter narrows ReadEvents. Zero fields match everything.
type EventFilter struct {
	InvocationID string
	Operation    string
	Phases       []ir.Phase
	AfterSeq     int64
	Limit        uint
}

type eventRow struct {
	ID           string `db:"id"`
	Seq          int64  `db:"seq"`
	InvocationID string `db:"invocation_id"`
	Operation    string `db:"operation"`
	Group        string `db:"grp"`
	Phase        string `db:"phase"`
	Payload      string `db:"payload"`
	RecordedAt   string `db:"recorded_at"`
}

type invocationRow struct {
	ID            string `db:"id"`
	Operation     string `db:"operation"`
	Group         string `db:"grp"`
	Args          string `db:"args"`
	ArgsHash      string `db:"args_hash"`
	Seq           int64  `db:"seq"`
	Depth         int    `db:"depth"`
	EngineVersion string `db:"engine_version"`
	RecordVersion string `db:"record_version"`
}

var (
	eventColumns = []any{
		colID, colSeq, colInvocation, colOperation, colGroup, colPhase, colPayload, colRecordedAt,
	}
	invocationColumns = []any{
		colID, colOperation, colGroup, colArgs, colArgsHash, colSeq, colDepth, colEngineVer, colRecordVer,
	}
)

// ReadEvents returns matching event records ordered by seq.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadEvents(ctx context.Context, f EventFilter) ([]ir.EventRecord, error) {
	sel := s.dialect.From(tableEvents).
		Select(eventColumns...).
		Order(goqu.I(colSeq).Asc())

	if f.InvocationID != "" {
		sel = sel.Where(goqu.C(colInvocation).Eq(f.InvocationID))
	}
	if f.Operation != "" {
		sel = sel.Where(goqu.C(colOperation).Eq(f.Operation))
	}
	if len(f.Phases) > 0 {
		phases := make([]string, len(f.Phases))
		for i, p := range f.Phases {
			phases[i] = string(p)
		}
		sel = sel.Where(goqu.C(colPhase).In(phases))
	}
	if f.AfterSeq > 0 {
		sel = sel.Where(goqu.C(colSeq).Gt(f.AfterSeq))
	}
	if f.Limit > 0 {
		sel = sel.Limit(f.Limit)
	}

	query, args, err := sel.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build events query: %w", err)
	}

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	records := make([]ir.EventRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadTrace returns every record of one invocation ordered by seq.
func (s *Store) ReadTrace(ctx context.Context, invocationID string) ([]ir.EventRecord, error) {
	return s.ReadEvents(ctx, EventFilter{InvocationID: invocationID})
}

// ReadInvocation retrieves a single invocation by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadInvocation(ctx context.Context, id string) (Invocation, error) {
	query, args, err := s.dialect.From(tableInvokes).
		Select(invocationColumns...).
		Where(goqu.C(colID).Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return Invocation{}, fmt.Errorf("build invocation query: %w", err)
	}

	var row invocationRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		return Invocation{}, err
	}
	return row.invocation()
}

// ReadInvocations returns stored invocations ordered by seq, optionally
// limited to one operation. Returns an empty slice (not nil) when none exist.
func (s *Store) ReadInvocations(ctx context.Context, operation string) ([]Invocation, error) {
	sel := s.dialect.From(tableInvokes).
		Select(invocationColumns...).
		Order(goqu.I(colSeq).Asc(), goqu.I(colID).Asc())
	if operation != "" {
		sel = sel.Where(goqu.C(colOperation).Eq(operation))
	}

	query, args, err := sel.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build invocations query: %w", err)
	}

	var rows []invocationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}

	out := make([]Invocation, 0, len(rows))
	for _, row := range rows {
		inv, err := row.invocation()
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

// MaxSeq returns the highest stored seq, or 0 for an empty log.
// Engines continuing a log start their clock here.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	query, _, err := s.dialect.From(tableEvents).
		Select(goqu.COALESCE(goqu.MAX(colSeq), 0)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build max seq query: %w", err)
	}

	var seq int64
	if err := s.db.GetContext(ctx, &seq, query); err != nil {
		return 0, fmt.Errorf("query max seq: %w", err)
	}
	return seq, nil
}

// CountByPhase returns how many records each phase holds.
func (s *Store) CountByPhase(ctx context.Context) (map[ir.Phase]int64, error) {
	query, _, err := s.dialect.From(tableEvents).
		Select(goqu.C(colPhase), goqu.COUNT(goqu.Star()).As("n")).
		GroupBy(goqu.C(colPhase)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build phase count query: %w", err)
	}

	var rows []struct {
		Phase string `db:"phase"`
		N     int64  `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("query phase counts: %w", err)
	}

	out := make(map[ir.Phase]int64, len(rows))
	for _, r := range rows {
		out[ir.Phase(r.Phase)] = r.N
	}
	return out, nil
}

func (r eventRow) record() (ir.EventRecord, error) {
	payload, err := unmarshalObject(r.Payload)
	if err != nil {
		return ir.EventRecord{}, fmt.Errorf("event %d: %w", r.Seq, err)
	}
	ts, err := parseTime(r.RecordedAt)
	if err != nil {
		return ir.EventRecord{}, fmt.Errorf("event %d: %w", r.Seq, err)
	}
	return ir.EventRecord{
		Seq:          r.Seq,
		Timestamp:    ts,
		InvocationID: r.InvocationID,
		Operation:    r.Operation,
		Group:        r.Group,
		Phase:        ir.Phase(r.Phase),
		Payload:      payload,
	}, nil
}

func (r invocationRow) invocation() (Invocation, error) {
	args, err := unmarshalArray(r.Args)
	if err != nil {
		return Invocation{}, fmt.Errorf("invocation %s: %w", r.ID, err)
	}
	return Invocation{
		ID:            r.ID,
		Operation:     r.Operation,
		Group:         r.Group,
		Args:          args,
		ArgsHash:      r.ArgsHash,
		Seq:           r.Seq,
		Depth:         r.Depth,
		EngineVersion: r.EngineVersion,
		RecordVersion: r.RecordVersion,
	}, nil
}

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/weave/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// startRecord creates a dispatch.start record with the payload the engine
// emits.
func startRecord(id, operation string, seq int64, args ...ir.Value) ir.EventRecord {
	return ir.EventRecord{
		Seq:          seq,
		Timestamp:    testEpoch.Add(time.Duration(seq) * time.Millisecond),
		InvocationID: id,
		Operation:    operation,
		Group:        "calc",
		Phase:        ir.PhaseDispatchStart,
		Payload: ir.Object{
			"args":   ir.NewArray(args...),
			"depth":  ir.Int(1),
			"rules":  ir.Array{},
			"policy": ir.String("propagate"),
		},
	}
}

// phaseRecord creates a record of an arbitrary phase.
func phaseRecord(id, operation string, seq int64, phase ir.Phase, payload ir.Object) ir.EventRecord {
	if payload == nil {
		payload = ir.Object{}
	}
	return ir.EventRecord{
		Seq:          seq,
		Timestamp:    testEpoch.Add(time.Duration(seq) * time.Millisecond),
		InvocationID: id,
		Operation:    operation,
		Group:        "calc",
		Phase:        phase,
		Payload:      payload,
	}
}

package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/ir"
)

func constTarget(v ir.Value) Target {
	return func(context.Context, ir.Array) (ir.Value, error) { return v, nil }
}

func TestRegistry_RegisterResolve(t *testing.T) {
	r := NewRegistry()
	op := ir.Operation{Name: "calc.add", Group: "calc", Params: []ir.Kind{ir.KindNumeric, ir.KindNumeric}, Returns: ir.KindNumeric}

	require.NoError(t, r.Register(op, constTarget(ir.Int(0))))

	b, err := r.Resolve("calc.add")
	require.NoError(t, err)
	assert.Equal(t, op, b.Operation)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("nope")
	require.Error(t, err)
	assert.True(t, IsUnknownOperation(err))
	assert.Equal(t, "UNKNOWN_OPERATION", Classify(err).Kind)
}

func TestRegistry_DuplicateKeepsFirst(t *testing.T) {
	r := NewRegistry()
	op := ir.Operation{Name: "x", Returns: ir.KindInteger}

	require.NoError(t, r.Register(op, constTarget(ir.Int(1))))
	err := r.Register(op, constTarget(ir.Int(2)))
	require.Error(t, err)
	assert.True(t, IsDuplicateOperation(err))

	b, err := r.Resolve("x")
	require.NoError(t, err)
	v, err := b.Target(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), v, "first registration must stay active")
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	r := NewRegistry()

	err := r.Register(ir.Operation{Name: "", Returns: ir.KindVoid}, constTarget(ir.Null{}))
	assert.ErrorContains(t, err, "INVALID_OPERATION")

	err = r.Register(ir.Operation{Name: "x", Returns: ir.KindVoid}, nil)
	assert.ErrorContains(t, err, "target function is nil")
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_DescriptorIsCopied(t *testing.T) {
	r := NewRegistry()
	op := ir.Operation{Name: "x", Params: []ir.Kind{ir.KindText}, Returns: ir.KindVoid}
	require.NoError(t, r.Register(op, constTarget(ir.Null{})))

	op.Params[0] = ir.KindBool

	b, err := r.Resolve("x")
	require.NoError(t, err)
	assert.Equal(t, ir.KindText, b.Operation.Params[0])
}

func TestRegistry_OperationsSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, r.Register(ir.Operation{Name: name, Returns: ir.KindVoid}, constTarget(ir.Null{})))
	}

	var names []string
	for _, op := range r.Operations() {
		names = append(names, op.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

type admiration struct{}

func (admiration) Methods() []Method {
	return []Method{
		{
			Operation: ir.Operation{Name: "showAdmiration", Returns: ir.KindText},
			Target:    constTarget(ir.String("bravo")),
		},
	}
}

func TestRegistry_Introduce(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Introduce("concert", admiration{}))

	b, err := r.Resolve("concert.showAdmiration")
	require.NoError(t, err)
	assert.Equal(t, "concert", b.Operation.Group)

	err = r.Introduce("concert", admiration{})
	assert.True(t, IsDuplicateOperation(err))

	err = r.Introduce("", admiration{})
	assert.ErrorContains(t, err, "group is empty")
}

func TestRegistry_RegisterAllIsAtomic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(ir.Operation{Name: "taken", Returns: ir.KindVoid}, constTarget(ir.Null{})))

	err := r.RegisterAll([]Method{
		{Operation: ir.Operation{Name: "fresh", Returns: ir.KindVoid}, Target: constTarget(ir.Null{})},
		{Operation: ir.Operation{Name: "taken", Returns: ir.KindVoid}, Target: constTarget(ir.Null{})},
	})
	require.Error(t, err)

	_, err = r.Resolve("fresh")
	assert.True(t, IsUnknownOperation(err), "no operation from a failed batch may be published")
}

func TestRegistry_ConcurrentResolve(t *testing.T) {
	r := NewRegistry()
	for i := range 10 {
		op := ir.Operation{Name: fmt.Sprintf("op.%d", i), Returns: ir.KindVoid}
		require.NoError(t, r.Register(op, constTarget(ir.Null{})))
	}

	var wg sync.WaitGroup
	for g := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				_, err := r.Resolve(fmt.Sprintf("op.%d", (g+i)%10))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}

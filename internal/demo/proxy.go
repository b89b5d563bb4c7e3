package demo

import (
	"context"
	"fmt"

	"github.com/roach88/weave/internal/ir"
)

// Invoker dispatches a named operation. *engine.Engine satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, name string, args ...ir.Value) (ir.Value, error)
}

// Performance is the typed view of the concert group.
type Performance interface {
	Perform(ctx context.Context) error
}

// Admirable is the introduced capability.
type Admirable interface {
	ShowAdmiration(ctx context.Context) error
}

// AdmirablePerformance is a performance that also carries the introduced
// capability.
type AdmirablePerformance interface {
	Performance
	Admirable
}

// CompactDisc is the typed view of the cd group.
type CompactDisc interface {
	PlayTrack(ctx context.Context, track int) error
}

// Calculator is the typed view of the calc group.
type Calculator interface {
	Add(ctx context.Context, x, y float64) (float64, error)
	Sub(ctx context.Context, x, y float64) (float64, error)
	Mul(ctx context.Context, x, y float64) (float64, error)
	Div(ctx context.Context, x, y float64) (float64, error)
}

// Proxy routes typed calls through an Invoker, so every call is advised.
type Proxy struct {
	inv Invoker
}

var (
	_ AdmirablePerformance = (*Proxy)(nil)
	_ CompactDisc          = (*Proxy)(nil)
	_ Calculator           = (*Proxy)(nil)
)

// NewProxy returns a proxy over inv.
func NewProxy(inv Invoker) *Proxy {
	return &Proxy{inv: inv}
}

func (p *Proxy) Perform(ctx context.Context) error {
	_, err := p.inv.Invoke(ctx, OpPerform)
	return err
}

func (p *Proxy) ShowAdmiration(ctx context.Context) error {
	_, err := p.inv.Invoke(ctx, OpShowAdmiration)
	return err
}

func (p *Proxy) PlayTrack(ctx context.Context, track int) error {
	_, err := p.inv.Invoke(ctx, OpPlayTrack, ir.Int(track))
	return err
}

func (p *Proxy) Add(ctx context.Context, x, y float64) (float64, error) {
	return p.arith(ctx, OpAdd, x, y)
}

func (p *Proxy) Sub(ctx context.Context, x, y float64) (float64, error) {
	return p.arith(ctx, OpSub, x, y)
}

func (p *Proxy) Mul(ctx context.Context, x, y float64) (float64, error) {
	return p.arith(ctx, OpMul, x, y)
}

func (p *Proxy) Div(ctx context.Context, x, y float64) (float64, error) {
	return p.arith(ctx, OpDiv, x, y)
}

func (p *Proxy) arith(ctx context.Context, op string, x, y float64) (float64, error) {
	v, err := p.inv.Invoke(ctx, op, ir.Float(x), ir.Float(y))
	if err != nil {
		return 0, err
	}
	// A suppressed failure comes back as null.
	if _, ok := v.(ir.Null); ok {
		return 0, nil
	}
	f, ok := ir.AsFloat(v)
	if !ok {
		return 0, fmt.Errorf("%s returned %s, want numeric", op, ir.TypeName(v))
	}
	return f, nil
}

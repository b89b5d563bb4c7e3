package sink

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/roach88/weave/internal/ir"
)

type mockAppender struct {
	mock.Mock
}

func (m *mockAppender) AppendEvent(ctx context.Context, rec ir.EventRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func TestStore_Appends(t *testing.T) {
	app := &mockAppender{}
	rec := record(1, "a", ir.PhaseDispatchStart)
	app.On("AppendEvent", mock.Anything, rec).Return(nil).Once()

	s := NewStore(app, nil)
	s.Emit(context.Background(), rec)

	app.AssertExpectations(t)
	assert.Zero(t, s.Failures())
}

func TestStore_LogsFailures(t *testing.T) {
	app := &mockAppender{}
	app.On("AppendEvent", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	var buf bytes.Buffer
	s := NewStore(app, slog.New(slog.NewTextHandler(&buf, nil)))
	s.Emit(context.Background(), record(3, "inv-9", ir.PhaseTarget))
	s.Emit(context.Background(), record(4, "inv-9", ir.PhaseDispatchSuccess))

	assert.Equal(t, int64(2), s.Failures())
	assert.Contains(t, buf.String(), "failed to persist event record")
	assert.Contains(t, buf.String(), "invocation_id=inv-9")
	assert.Contains(t, buf.String(), `error="disk full"`)
}

package modules

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lzap/qctask"
)

type dummyTask struct{}

func (dummyTask) Initialize(context.Context, qctask.InitContext) error        { return nil }
func (dummyTask) StartOfActivity(context.Context, qctask.Activity) error      { return nil }
func (dummyTask) StartOfCycle(context.Context) error                          { return nil }
func (dummyTask) MonitorData(context.Context, qctask.ProcessingContext) error { return nil }
func (dummyTask) EndOfCycle(context.Context) error                            { return nil }
func (dummyTask) EndOfActivity(context.Context, qctask.Activity) error        { return nil }
func (dummyTask) Reset(context.Context) error                                 { return nil }

func TestRegistry(t *testing.T) {
	Register("test.Dummy", func(logr.Logger) qctask.Task { return dummyTask{} })

	task, err := New("test.Dummy", logr.Discard())
	require.NoError(t, err)
	assert.IsType(t, dummyTask{}, task)
	assert.Contains(t, Classes(), "test.Dummy")

	assert.Panics(t, func() {
		Register("test.Dummy", func(logr.Logger) qctask.Task { return dummyTask{} })
	})
	assert.Panics(t, func() { Register("test.Nil", nil) })
}

func TestRegistry_UnknownClass(t *testing.T) {
	_, err := New("does.NotExist", logr.Discard())
	assert.ErrorIs(t, err, qctask.ErrUnknownTask)
}

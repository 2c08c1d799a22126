package mem

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lzap/qctask"
)

type payload struct {
	Value string `json:"value"`
}

func TestClient_SendAndReceive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := NewClient(ctx, logr.Discard(), 0)
	require.NoError(t, err)

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	c.RegisterHandler("data", func(_ context.Context, m qctask.Message) error {
		var p payload
		assert.NoError(t, m.Decode(&p))
		mu.Lock()
		got = append(got, p.Value)
		n := len(got)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return nil
	})
	go c.DequeueLoop(ctx)

	err = c.Send(ctx,
		qctask.PendingMessage{Binding: "data", Body: payload{"a"}},
		qctask.PendingMessage{Binding: "data", Body: payload{"b"}},
		qctask.PendingMessage{Binding: "data", Body: payload{"c"}},
	)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("messages were not delivered")
	}
	c.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestClient_HandlerErrorAndUnknownBinding(t *testing.T) {
	ctx := context.Background()
	c, err := NewClient(ctx, logr.Discard(), 2)
	require.NoError(t, err)

	called := make(chan struct{}, 1)
	c.RegisterHandler("failing", func(context.Context, qctask.Message) error {
		called <- struct{}{}
		return errors.New("boom")
	})
	require.NoError(t, c.Send(ctx,
		qctask.PendingMessage{Binding: "unknown", Body: 1},
		qctask.PendingMessage{Binding: "failing", Body: 2},
	))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.PendingMessages)

	go c.DequeueLoop(ctx)
	select {
	case <-called:
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}
	c.Stop()
}

func TestClient_SendAfterStop(t *testing.T) {
	ctx := context.Background()
	c, err := NewClient(ctx, logr.Discard(), 0)
	require.NoError(t, err)
	c.Stop()
	c.Stop()

	err = c.Send(ctx, qctask.PendingMessage{Binding: "data", Body: 1})
	assert.ErrorIs(t, err, qctask.ErrStopped)
}

func TestClient_SendAfterStopBuffered(t *testing.T) {
	ctx := context.Background()
	accepted := 0
	for i := 0; i < 200; i++ {
		c, err := NewClient(ctx, logr.Discard(), 4)
		require.NoError(t, err)
		c.Stop()

		err = c.Send(ctx, qctask.PendingMessage{Binding: "data", Body: i})
		if err == nil {
			accepted++
		} else {
			assert.ErrorIs(t, err, qctask.ErrStopped)
		}
	}
	assert.Equal(t, 0, accepted, "a stopped client must not queue messages")
}

func TestClient_SendMarshalError(t *testing.T) {
	ctx := context.Background()
	c, err := NewClient(ctx, logr.Discard(), 1)
	require.NoError(t, err)

	err = c.Send(ctx, qctask.PendingMessage{Binding: "data", Body: make(chan int)})
	assert.ErrorIs(t, err, qctask.ErrPayloadMarshal)
}

func TestClient_SendCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c, err := NewClient(ctx, logr.Discard(), 0)
	require.NoError(t, err)
	cancel()

	err = c.Send(ctx, qctask.PendingMessage{Binding: "data", Body: 1})
	assert.ErrorIs(t, err, qctask.ErrSend)
}

func TestNewMessage(t *testing.T) {
	m, err := NewMessage("tracks", []payload{{"x"}})
	require.NoError(t, err)
	assert.Equal(t, "tracks", m.Binding())

	var out []payload
	require.NoError(t, m.Decode(&out))
	assert.Equal(t, []payload{{"x"}}, out)
}

func TestRepository(t *testing.T) {
	r := NewRepository(logr.Discard())
	defer r.Close()

	require.NoError(t, r.Store(context.Background(),
		&qctask.MonitorObject{Name: "hP", Cycle: 0},
		&qctask.MonitorObject{Name: "hEta", Cycle: 0},
	))
	require.NoError(t, r.Store(context.Background(), &qctask.MonitorObject{Name: "hP", Cycle: 1}))

	assert.Len(t, r.Objects(), 3)
	latest, ok := r.Latest("hP")
	require.True(t, ok)
	assert.Equal(t, 1, latest.Cycle)
	_, ok = r.Latest("missing")
	assert.False(t, ok)
}

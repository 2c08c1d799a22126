package mem

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	jsoniter "github.com/json-iterator/go"
	"github.com/lzap/qctask"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type memMessage struct {
	BindingData string
	JSONData    []byte
}

// NewMessage marshals the body and returns it as a received message. Useful for feeding
// tasks directly.
func NewMessage(binding string, body interface{}) (qctask.Message, error) {
	return newMessage(&qctask.PendingMessage{Binding: binding, Body: body})
}

func newMessage(msg *qctask.PendingMessage) (*memMessage, error) {
	buffer, err := json.Marshal(msg.Body)
	if err != nil {
		return nil, err
	}
	return &memMessage{BindingData: msg.Binding, JSONData: buffer}, nil
}

func (m *memMessage) Binding() string {
	return m.BindingData
}

func (m *memMessage) Decode(out interface{}) error {
	return json.Unmarshal(m.JSONData, out)
}

type Client struct {
	logger   logr.Logger
	mu       sync.RWMutex
	handlers map[string]qctask.Handler
	todo     chan *memMessage
	stopCh   chan struct{}
	stopOnce sync.Once
	workerWG sync.WaitGroup
}

// NewClient creates an in-process transport. Send blocks once the buffer of the given
// size is full, a zero size makes every Send wait for the dequeue loop.
func NewClient(_ context.Context, logger logr.Logger, buffer int) (*Client, error) {
	return &Client{
		logger:   logger,
		handlers: make(map[string]qctask.Handler),
		todo:     make(chan *memMessage, buffer),
		stopCh:   make(chan struct{}),
	}, nil
}

func (c *Client) RegisterHandler(binding string, h qctask.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[binding] = h
}

func (c *Client) Send(ctx context.Context, msgs ...qctask.PendingMessage) error {
	for _, msg := range msgs {
		c.logger.V(1).Info("sending message", "binding", msg.Binding)
		m, err := newMessage(&msg)
		if err != nil {
			c.logger.Error(err, "unable to marshal message data")
			return qctask.ErrPayloadMarshal.Context(err)
		}
		// stop must win over a free buffer slot
		select {
		case <-c.stopCh:
			return qctask.ErrStopped
		default:
		}
		select {
		case <-c.stopCh:
			return qctask.ErrStopped
		case <-ctx.Done():
			return qctask.ErrSend.Context(ctx.Err())
		case c.todo <- m:
		}
	}
	return nil
}

func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.logger.Info("sending stop signal")
		close(c.stopCh)
	})
	c.workerWG.Wait()
}

func (c *Client) Stats(_ context.Context) (qctask.Stats, error) {
	return qctask.Stats{PendingMessages: uint64(len(c.todo))}, nil
}

func (c *Client) DequeueLoop(ctx context.Context) {
	c.workerWG.Add(1)
	defer c.workerWG.Done()

	for {
		select {
		case <-c.stopCh:
			c.logger.V(1).Info("shutting down consumer (stop)...")
			return
		case <-ctx.Done():
			c.logger.V(1).Info("shutting down consumer (cancel)...")
			return
		case msg := <-c.todo:
			c.process(ctx, msg)
		}
	}
}

func (c *Client) process(ctx context.Context, msg *memMessage) {
	c.logger.V(1).Info("dequeuing message", "binding", msg.Binding())
	c.mu.RLock()
	h, ok := c.handlers[msg.Binding()]
	c.mu.RUnlock()
	if !ok {
		c.logger.Error(nil, "handler not found", "binding", msg.Binding())
		return
	}
	if err := h(ctx, msg); err != nil {
		c.logger.Error(err, "message handler returned an error", "binding", msg.Binding())
	}
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-redis/redis/v8"
	jsoniter "github.com/json-iterator/go"
	"github.com/lzap/qctask"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const pollTimeout = 5 * time.Second

type message struct {
	PayloadBinding string `json:"b"`
	Payload        string `json:"p"`
}

func newMessage(pm *qctask.PendingMessage) (*message, error) {
	buffer, err := json.Marshal(pm.Body)
	if err != nil {
		return nil, err
	}
	return &message{
		PayloadBinding: pm.Binding,
		Payload:        string(buffer),
	}, nil
}

func (m *message) Binding() string {
	return m.PayloadBinding
}

func (m *message) Decode(out interface{}) error {
	return json.Unmarshal([]byte(m.Payload), out)
}

// Options holds the redis connection settings.
type Options struct {
	Address  string
	Username string
	Password string
	DB       int
}

func (o Options) client() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     o.Address,
		Username: o.Username,
		Password: o.Password,
		DB:       o.DB,
	})
}

// Client is a transport over a redis list. Messages sent together are pushed as a single
// list element and handled in order.
type Client struct {
	logger    logr.Logger
	mu        sync.RWMutex
	handlers  map[string]qctask.Handler
	client    *redis.Client
	queueName string
	workerWG  sync.WaitGroup
	closeCh   chan struct{}
	closeOnce sync.Once
}

func NewClient(ctx context.Context, logger logr.Logger, opts Options, queueName string) (*Client, error) {
	rdb := opts.client()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, qctask.ErrCreateClient.Context(err)
	}
	return &Client{
		logger:    logger,
		handlers:  make(map[string]qctask.Handler),
		client:    rdb,
		queueName: queueName,
		closeCh:   make(chan struct{}),
	}, nil
}

func (c *Client) RegisterHandler(binding string, h qctask.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[binding] = h
}

func (c *Client) marshalMessages(msgs []qctask.PendingMessage) ([]*message, error) {
	var err error
	result := make([]*message, len(msgs))
	for i, msg := range msgs {
		result[i], err = newMessage(&msg)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (c *Client) Send(ctx context.Context, msgs ...qctask.PendingMessage) error {
	redisMsgs, err := c.marshalMessages(msgs)
	if err != nil {
		c.logger.Error(err, "unable to marshal message data")
		return qctask.ErrPayloadMarshal.Context(err)
	}

	buffer, err := json.Marshal(redisMsgs)
	if err != nil {
		return qctask.ErrPayloadMarshal.Context(err)
	}

	if err := c.client.LPush(ctx, c.queueName, buffer).Err(); err != nil {
		c.logger.Error(err, "unable to push message", "queue", c.queueName)
		return qctask.ErrSend.Context(err)
	}

	c.logger.V(1).Info("sent messages", "queue", c.queueName, "count", len(msgs), "bytes", len(buffer))
	return nil
}

// Stop terminates the dequeue loop and closes the connection.
func (c *Client) Stop() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.logger.V(1).Info("waiting for all workers to finish")
		c.workerWG.Wait()
		if err := c.client.Close(); err != nil {
			c.logger.Error(err, "unable to close redis client")
		}
	})
}

func (c *Client) DequeueLoop(ctx context.Context) {
	c.workerWG.Add(1)
	defer c.workerWG.Done()

	for {
		select {
		case <-c.closeCh:
			c.logger.V(1).Info("shutting down consumer (stop)...")
			return
		case <-ctx.Done():
			c.logger.V(1).Info("shutting down consumer (cancel)...")
			return
		default:
			res, err := c.client.BRPop(ctx, pollTimeout, c.queueName).Result()
			if errors.Is(err, redis.Nil) {
				// no messages to consume (time out)
				continue
			} else if err != nil {
				if ctx.Err() != nil {
					continue
				}
				c.logger.Error(err, "error consuming from redis queue, retrying in 1s")
				c.sleep(ctx, time.Second)
				continue
			}
			var msgs []*message
			if err := json.Unmarshal([]byte(res[1]), &msgs); err != nil {
				c.logger.Error(err, "unable to unmarshal payload, skipping", "payload", res[1])
				continue
			}
			c.processMessages(ctx, msgs)
		}
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	case <-c.closeCh:
	}
}

func (c *Client) processMessages(ctx context.Context, msgs []*message) {
	for _, msg := range msgs {
		c.logger.V(1).Info("dequeued message", "binding", msg.Binding())
		c.mu.RLock()
		h, ok := c.handlers[msg.Binding()]
		c.mu.RUnlock()
		if !ok {
			c.logger.Error(nil, "handler not found", "binding", msg.Binding())
			continue
		}
		if err := h(ctx, msg); err != nil {
			c.logger.Error(err, "message handler returned an error", "binding", msg.Binding())
		}
	}
}

func (c *Client) Stats(ctx context.Context) (qctask.Stats, error) {
	count, err := c.client.LLen(ctx, c.queueName).Result()
	if err != nil {
		return qctask.Stats{}, fmt.Errorf("unable to get queue len: %w", err)
	}

	return qctask.Stats{
		PendingMessages: uint64(count),
	}, nil
}

package sqs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/lzap/qctask"
	"github.com/lzap/qctask/log/awsadapter"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxRetryCount = 5
const maxMessages = int32(10)
const waitTimeSeconds = int32(10)

// retryDelay is the pause between failed SQS calls.
var retryDelay = 10 * time.Second

var errDataLimit = errors.New("InvalidParameterValue: One or more parameters are invalid. Reason: Message must be shorter than 262144 bytes")

// api is the subset of the SQS client used by the transport.
type api interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// Options holds the consumer settings.
type Options struct {
	// Workers is the number of goroutines handling received messages.
	Workers int

	// VisibilityTimeoutSec is the visibility timeout of the queue, it must be longer than 10 seconds.
	VisibilityTimeoutSec int

	// MaxExtensions limits how many times the visibility of a single message is extended.
	MaxExtensions int
}

type Client struct {
	sqs      api
	queueURL string
	fifo     bool
	logger   logr.Logger
	workerWG sync.WaitGroup
	pollerWG sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once

	mu                   sync.RWMutex
	handlers             map[string]qctask.Handler
	visibilityTimeoutSec int
	maxExtensions        int
	workerPool           int
}

// NewClient creates a transport for the named queue. Queues with the .fifo suffix are
// sent to with a message group so that ordering is preserved.
func NewClient(ctx context.Context, config aws.Config, logger logr.Logger, queueName string, opts Options) (*Client, error) {
	if config.Logger == nil {
		config.Logger = awsadapter.NewLogger(logger)
	}
	return newClient(ctx, sqs.NewFromConfig(config), logger, queueName, opts)
}

func newClient(ctx context.Context, svc api, logger logr.Logger, queueName string, opts Options) (*Client, error) {
	// TODO: VisibilityTimeout can be retrieved from queue dynamically (error thrown when < 10 sec)
	if opts.VisibilityTimeoutSec <= 10 {
		return nil, qctask.ErrCreateClient.Context(errors.New("visibility timeout cannot be shorter than 10 seconds"))
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	c := &Client{
		sqs:                  svc,
		fifo:                 strings.HasSuffix(queueName, ".fifo"),
		logger:               logger,
		stopCh:               make(chan struct{}),
		handlers:             make(map[string]qctask.Handler),
		visibilityTimeoutSec: opts.VisibilityTimeoutSec,
		maxExtensions:        opts.MaxExtensions,
		workerPool:           opts.Workers,
	}
	if err := c.getQueueUrl(ctx, queueName); err != nil {
		return nil, qctask.ErrCreateClient.Context(err)
	}
	return c, nil
}

// RegisterHandler registers a listener and an associated handler for a binding.
func (c *Client) RegisterHandler(binding string, h qctask.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[binding] = h
}

func (c *Client) getQueueUrl(ctx context.Context, queueName string) error {
	input := &sqs.GetQueueUrlInput{
		QueueName: aws.String(queueName),
	}
	result, err := c.sqs.GetQueueUrl(ctx, input)
	if err != nil {
		return err
	}
	c.queueURL = *result.QueueUrl
	return nil
}

// Send delivers messages in batches of ten, the maximum SQS accepts in a single call.
func (c *Client) Send(ctx context.Context, msgs ...qctask.PendingMessage) error {
	groupId := uuid.NewString()
	entries := make([]types.SendMessageBatchRequestEntry, 0, len(msgs))
	for _, msg := range msgs {
		bytes, err := json.Marshal(msg.Body)
		if err != nil {
			return qctask.ErrPayloadMarshal.Context(err)
		}

		id := uuid.NewString()
		entry := types.SendMessageBatchRequestEntry{
			Id:                aws.String(id),
			MessageBody:       aws.String(string(bytes)),
			MessageAttributes: defaultSQSAttributes(msg.Binding, int64(len(msgs))),
		}
		if c.fifo {
			entry.MessageGroupId = aws.String(groupId)
			entry.MessageDeduplicationId = aws.String(id)
		}
		entries = append(entries, entry)
	}

	for start := 0; start < len(entries); start += int(maxMessages) {
		end := start + int(maxMessages)
		if end > len(entries) {
			end = len(entries)
		}
		input := &sqs.SendMessageBatchInput{
			Entries:  entries[start:end],
			QueueUrl: aws.String(c.queueURL),
		}
		if err := c.sendBatch(ctx, input); err != nil {
			return err
		}
	}
	return nil
}

// sendBatch sends a single batch. AWS-SDK uses its own retry mechanism with exponential
// backoff, when it gives up we wait and try again up to maxRetryCount times. Entries
// rejected by SQS without a sender fault are sent again, sender faults are final.
func (c *Client) sendBatch(ctx context.Context, input *sqs.SendMessageBatchInput) error {
	var lastErr error
	for count := 0; count < maxRetryCount; count++ {
		out, err := c.sqs.SendMessageBatch(ctx, input)
		if err == nil {
			for _, msg := range out.Successful {
				c.logger.V(1).Info("message successfully sent", "message_id", aws.ToString(msg.MessageId))
			}
			if len(out.Failed) == 0 {
				return nil
			}
			for _, f := range out.Failed {
				if f.SenderFault {
					return qctask.ErrSend.Context(fmt.Errorf("%d messages failed, sender fault %s: %s",
						len(out.Failed), aws.ToString(f.Code), aws.ToString(f.Message)))
				}
			}
			f := out.Failed[0]
			err = fmt.Errorf("%d messages failed, first error %s: %s",
				len(out.Failed), aws.ToString(f.Code), aws.ToString(f.Message))
			input = failedEntries(input, out.Failed)
			if len(input.Entries) == 0 {
				return qctask.ErrSend.Context(err)
			}
		} else if err.Error() == errDataLimit.Error() {
			c.logger.Error(err, "payload limit overflow, giving up")
			return qctask.ErrSend.Context(err)
		}

		lastErr = err
		c.logger.Error(err, "error publishing, trying again", "delay", retryDelay, "attempt", count+1)
		select {
		case <-ctx.Done():
			return qctask.ErrSend.Context(ctx.Err())
		case <-time.After(retryDelay):
		}
	}
	c.logger.Error(lastErr, "too many failures, giving up")
	return qctask.ErrSend.Context(lastErr)
}

// failedEntries returns a copy of the input carrying only the entries listed as failed.
func failedEntries(input *sqs.SendMessageBatchInput, failed []types.BatchResultErrorEntry) *sqs.SendMessageBatchInput {
	ids := make(map[string]struct{}, len(failed))
	for _, f := range failed {
		ids[aws.ToString(f.Id)] = struct{}{}
	}
	retry := *input
	retry.Entries = make([]types.SendMessageBatchRequestEntry, 0, len(failed))
	for _, e := range input.Entries {
		if _, ok := ids[aws.ToString(e.Id)]; ok {
			retry.Entries = append(retry.Entries, e)
		}
	}
	return &retry
}

func defaultSQSAttributes(binding string, inGroup int64) map[string]types.MessageAttributeValue {
	result := make(map[string]types.MessageAttributeValue, 2)
	result[attrBinding] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(binding)}
	result["in_group"] = types.MessageAttributeValue{DataType: aws.String("Number"), StringValue: aws.String(strconv.FormatInt(inGroup, 10))}
	return result
}

// Stop will block until all background goroutines are done processing.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.logger.V(1).Info("waiting for background goroutines")
		close(c.stopCh)
	})
	c.pollerWG.Wait()
}

func (c *Client) Stats(ctx context.Context) (qctask.Stats, error) {
	out, err := c.sqs.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(c.queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return qctask.Stats{}, fmt.Errorf("unable to get queue attributes: %w", err)
	}
	n, err := strconv.ParseUint(out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)], 10, 64)
	if err != nil {
		return qctask.Stats{}, fmt.Errorf("unable to parse queue length: %w", err)
	}
	return qctask.Stats{PendingMessages: n}, nil
}

// DequeueLoop polls for new messages and if it finds one, decodes it, sends it to the handler and deletes it.
//
// A message is not considered dequeued until it has been successfully processed and deleted. Messages a handler
// failed on are left in the queue and become visible again after the visibility timeout, while the handler runs
// the visibility is extended.
//
// The loop blocks until the context is cancelled or Stop is called, in-flight messages are finished first.
func (c *Client) DequeueLoop(ctx context.Context) {
	c.pollerWG.Add(1)
	defer c.pollerWG.Done()

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stopCh:
			cancel()
		case <-pollCtx.Done():
		}
	}()

	msgs := make(chan *sqsMessage)
	for w := 1; w <= c.workerPool; w++ {
		c.workerWG.Add(1)
		go c.worker(ctx, w, msgs)
	}
	defer func() {
		close(msgs)
		c.workerWG.Wait()
	}()

	for {
		if pollCtx.Err() != nil {
			c.logger.V(1).Info("exiting the dequeue loop")
			return
		}
		input := &sqs.ReceiveMessageInput{
			QueueUrl:              &c.queueURL,
			MaxNumberOfMessages:   maxMessages,
			MessageAttributeNames: []string{"All"},
			WaitTimeSeconds:       waitTimeSeconds,
		}
		output, err := c.sqs.ReceiveMessage(pollCtx, input)
		if err != nil {
			if pollCtx.Err() != nil {
				continue
			}
			c.logger.Error(err, "error receiving messages, retrying", "delay", retryDelay)
			select {
			case <-pollCtx.Done():
			case <-time.After(retryDelay):
			}
			continue
		}

		for i := range output.Messages {
			// pass the original pointer and not the local copy
			m := newMessage(&output.Messages[i])
			if m.Binding() == "" {
				// a message will be sent to the DLQ automatically after several receives without delete
				c.logger.Error(nil, "message without binding attribute", "message_id", m.id())
				continue
			}
			c.logger.V(2).Info("enqueued for processing", "message_id", m.id(), "total_messages", len(output.Messages))
			msgs <- m
		}
	}
}

// worker is an always-on concurrent worker that will take tasks when they are added into the messages buffer
func (c *Client) worker(ctx context.Context, id int, messages <-chan *sqsMessage) {
	defer c.workerWG.Done()
	for m := range messages {
		if err := c.run(ctx, m); err != nil {
			c.logger.Error(err, "error processing message", "message_id", m.id(), "worker_id", id)
		}
	}
}

// run should be run within a worker. If there is no handler for the binding, the message is deleted.
// A handler error leaves the message in the queue.
func (c *Client) run(ctx context.Context, m *sqsMessage) error {
	c.logger.V(2).Info("processing message", "message_id", m.id())
	c.mu.RLock()
	h, ok := c.handlers[m.Binding()]
	c.mu.RUnlock()
	if ok {
		go c.extend(ctx, m)
		err := h(ctx, m)
		close(m.done)
		if err != nil {
			return err
		}
	} else {
		c.logger.Error(nil, "handler not found, dropping message", "binding", m.Binding(), "message_id", m.id())
	}
	return c.delete(ctx, m)
}

// delete will remove a message from the queue, this is necessary to fully and successfully consume a message.
func (c *Client) delete(ctx context.Context, m *sqsMessage) error {
	input := &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: m.ReceiptHandle,
	}
	_, err := c.sqs.DeleteMessage(ctx, input)
	if err != nil {
		return qctask.ErrUnableToDelete.Context(err)
	}
	c.logger.V(2).Info("consumed message", "message_id", m.id())
	return nil
}

func (c *Client) extend(ctx context.Context, m *sqsMessage) {
	// add extra 10 seconds for HTTP REST processing
	tick := time.Duration(c.visibilityTimeoutSec-10) * time.Second
	timer := time.NewTimer(tick)
	defer timer.Stop()
	for count := 0; ; count++ {
		select {
		case <-m.done:
			// worker is done
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			if count >= c.maxExtensions {
				c.logger.Error(nil, "exceeded maximum amount of heartbeats", "message_id", m.id())
				return
			}
			c.logger.V(2).Info("extending message visibility", "message_id", m.id())
			input := &sqs.ChangeMessageVisibilityInput{
				QueueUrl:          &c.queueURL,
				ReceiptHandle:     m.ReceiptHandle,
				VisibilityTimeout: int32(c.visibilityTimeoutSec),
			}
			if _, err := c.sqs.ChangeMessageVisibility(ctx, input); err != nil {
				c.logger.Error(err, "unable to extend message visibility", "message_id", m.id())
				return
			}
			timer.Reset(tick)
		}
	}
}

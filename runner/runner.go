// Package runner drives the lifecycle of a QC task. It feeds data received from a
// transport into the task, closes cycles on a timer and publishes the task objects.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/lzap/qctask"
)

// Config holds the scheduling parameters of a single task.
type Config struct {
	TaskName string
	Detector string

	// CycleDuration is the length of a monitoring cycle.
	CycleDuration time.Duration

	// MaxNumberCycles stops the activity after that many cycles, zero or less means unlimited.
	MaxNumberCycles int

	// ResetAfterCycles resets the task every N cycles, zero or less disables the reset.
	ResetAfterCycles int

	// Bindings are the input names the task subscribes to.
	Bindings []string

	CustomParameters map[string]string
}

func (c Config) Validate() error {
	switch {
	case c.TaskName == "":
		return qctask.ErrInvalidConfig.Context(errors.New("task name is required"))
	case c.CycleDuration <= 0:
		return qctask.ErrInvalidConfig.Context(fmt.Errorf("cycle duration must be positive, got %s", c.CycleDuration))
	case len(c.Bindings) == 0:
		return qctask.ErrInvalidConfig.Context(errors.New("at least one input binding is required"))
	}
	return nil
}

type Option func(*Runner)

// WithMetrics enables metrics collection.
func WithMetrics(m MetricsCollector) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// withCycleTrigger replaces the cycle ticker, used in tests.
func withCycleTrigger(ch <-chan time.Time) Option {
	return func(r *Runner) {
		r.trigger = ch
	}
}

type delivery struct {
	msg    qctask.Message
	result chan error
}

// Runner calls the task hooks from a single goroutine, hooks never run concurrently.
type Runner struct {
	cfg      Config
	task     qctask.Task
	receiver qctask.Receiver
	repo     qctask.Repository
	logger   logr.Logger
	metrics  MetricsCollector
	objects  *qctask.Objects

	deliveries  chan delivery
	trigger     <-chan time.Time
	initialized bool
	cycle       int
	cycleOpen   bool
	cycleStart  time.Time
}

func New(cfg Config, task qctask.Task, receiver qctask.Receiver, repo qctask.Repository, logger logr.Logger, options ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if task == nil || receiver == nil || repo == nil {
		return nil, qctask.ErrInvalidConfig.Context(errors.New("task, receiver and repository are required"))
	}
	logger = logger.WithValues("task", cfg.TaskName, "detector", cfg.Detector)
	r := &Runner{
		cfg:        cfg,
		task:       task,
		receiver:   receiver,
		repo:       repo,
		logger:     logger,
		objects:    qctask.NewObjects(cfg.TaskName, cfg.Detector, logger),
		deliveries: make(chan delivery),
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Objects returns the publishing registry handed to the task.
func (r *Runner) Objects() *qctask.Objects {
	return r.objects
}

// Cycles returns the number of finished cycles of the current activity.
func (r *Runner) Cycles() int {
	return r.cycle
}

// Init initializes the task, only the first call has an effect.
func (r *Runner) Init(ctx context.Context) error {
	if r.initialized {
		return nil
	}
	r.logger.V(1).Info("initializing task")
	if err := r.task.Initialize(ctx, qctask.NewInitContext(r.objects, r.cfg.CustomParameters)); err != nil {
		r.incrementCounter(ctx, MetricTaskErrors, map[string]string{labelHook: "initialize"})
		return qctask.ErrTaskFailed.Context(fmt.Errorf("initialize: %w", err))
	}
	r.initialized = true
	return nil
}

// Run executes a single activity. It blocks until the context is cancelled or the maximum
// number of cycles is reached. The receiver is stopped before Run returns.
func (r *Runner) Run(ctx context.Context, activity qctask.Activity) error {
	if err := r.Init(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	for _, binding := range r.cfg.Bindings {
		r.receiver.RegisterHandler(binding, r.handler(runCtx))
	}
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		r.receiver.DequeueLoop(runCtx)
	}()
	defer func() {
		cancel()
		r.receiver.Stop()
		<-loopDone
	}()

	trigger, stopTrigger := r.cycleTrigger()
	defer stopTrigger()

	r.cycle = 0
	r.logger.Info("starting activity", "run", activity.ID, "type", activity.Type)
	r.callHook(ctx, "startOfActivity", func() error { return r.task.StartOfActivity(ctx, activity) })
	r.startCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			// the context is gone, final publication must not be cancelled with it
			r.finish(context.WithoutCancel(ctx), activity)
			return nil
		case d := <-r.deliveries:
			d.result <- r.monitorData(ctx, d.msg)
		case <-trigger:
			r.endCycle(ctx, activity)
			if r.cfg.MaxNumberCycles > 0 && r.cycle >= r.cfg.MaxNumberCycles {
				r.logger.Info("maximum number of cycles reached", "cycles", r.cycle)
				r.finish(ctx, activity)
				return nil
			}
			r.startCycle(ctx)
		}
	}
}

func (r *Runner) finish(ctx context.Context, activity qctask.Activity) {
	if r.cycleOpen {
		r.endCycle(ctx, activity)
	}
	r.callHook(ctx, "endOfActivity", func() error { return r.task.EndOfActivity(ctx, activity) })
	r.logger.Info("activity finished", "run", activity.ID, "cycles", r.cycle)
}

func (r *Runner) startCycle(ctx context.Context) {
	r.cycleOpen = true
	r.cycleStart = time.Now()
	r.callHook(ctx, "startOfCycle", func() error { return r.task.StartOfCycle(ctx) })
}

func (r *Runner) endCycle(ctx context.Context, activity qctask.Activity) {
	r.callHook(ctx, "endOfCycle", func() error { return r.task.EndOfCycle(ctx) })
	r.publish(ctx, activity)
	r.cycleOpen = false
	r.cycle++
	r.recordDuration(ctx, MetricCycleDuration, time.Since(r.cycleStart), nil)
	r.logger.V(1).Info("cycle finished", "cycle", r.cycle)

	if r.cfg.ResetAfterCycles > 0 && r.cycle%r.cfg.ResetAfterCycles == 0 {
		r.callHook(ctx, "reset", func() error { return r.task.Reset(ctx) })
	}
}

func (r *Runner) publish(ctx context.Context, activity qctask.Activity) {
	objs, err := r.objects.Snapshot(activity, r.cycle)
	if err != nil {
		r.logger.Error(err, "unable to snapshot objects", "cycle", r.cycle)
		r.incrementCounter(ctx, MetricTaskErrors, map[string]string{labelHook: "publish"})
		return
	}
	if len(objs) == 0 {
		return
	}
	if err := r.repo.Store(ctx, objs...); err != nil {
		r.logger.Error(err, "unable to store objects", "cycle", r.cycle, "objects", len(objs))
		r.incrementCounter(ctx, MetricTaskErrors, map[string]string{labelHook: "publish"})
		return
	}
	r.addCounter(ctx, MetricObjectsPublished, int64(len(objs)), nil)
	r.logger.V(1).Info("published objects", "cycle", r.cycle, "objects", len(objs))
}

func (r *Runner) monitorData(ctx context.Context, msg qctask.Message) error {
	pc := qctask.NewProcessingContext(qctask.NewInputs(msg))
	err := r.task.MonitorData(ctx, pc)
	status := statusSuccess
	if err != nil {
		status = statusError
		r.logger.Error(err, "monitorData failed", "binding", msg.Binding())
		r.incrementCounter(ctx, MetricTaskErrors, map[string]string{labelHook: "monitorData"})
	}
	r.incrementCounter(ctx, MetricMessagesProcessed, map[string]string{labelStatus: status})
	return err
}

func (r *Runner) callHook(ctx context.Context, hook string, fn func() error) {
	if err := fn(); err != nil {
		r.logger.Error(err, "task hook failed", "hook", hook)
		r.incrementCounter(ctx, MetricTaskErrors, map[string]string{labelHook: hook})
	}
}

// handler hands a message over to the runner goroutine and waits for the result, so
// transports only acknowledge messages the task has processed.
func (r *Runner) handler(runCtx context.Context) qctask.Handler {
	return func(ctx context.Context, msg qctask.Message) error {
		d := delivery{msg: msg, result: make(chan error, 1)}
		select {
		case r.deliveries <- d:
		case <-runCtx.Done():
			return runCtx.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case err := <-d.result:
			return err
		case <-runCtx.Done():
			return runCtx.Err()
		}
	}
}

func (r *Runner) cycleTrigger() (<-chan time.Time, func()) {
	if r.trigger != nil {
		return r.trigger, func() {}
	}
	ticker := time.NewTicker(r.cfg.CycleDuration)
	return ticker.C, ticker.Stop
}

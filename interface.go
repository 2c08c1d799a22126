package qctask

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Activity describes a bounded run (e.g. a data-taking run) bracketing one or more cycles.
type Activity struct {
	// ID is the run number.
	ID         int    `json:"id" yaml:"number"`
	Type       string `json:"type" yaml:"type"`
	PeriodName string `json:"periodName" yaml:"periodName"`
	PassName   string `json:"passName" yaml:"passName"`
	Provenance string `json:"provenance" yaml:"provenance"`
}

// Task is the lifecycle implemented by every QC task. The host calls Initialize once, then
// for each activity StartOfActivity, a sequence of cycles (StartOfCycle, any number of
// MonitorData, EndOfCycle) and finally EndOfActivity. Reset may be called between cycles.
// Hooks are never called concurrently.
type Task interface {
	Initialize(ctx context.Context, ic InitContext) error
	StartOfActivity(ctx context.Context, activity Activity) error
	StartOfCycle(ctx context.Context) error
	MonitorData(ctx context.Context, pc ProcessingContext) error
	EndOfCycle(ctx context.Context) error
	EndOfActivity(ctx context.Context, activity Activity) error
	Reset(ctx context.Context) error
}

// InitContext is handed to Task.Initialize.
type InitContext interface {
	// ObjectsManager returns the publishing registry of the task.
	ObjectsManager() ObjectsManager

	// CustomParameters returns the task parameters from the configuration.
	CustomParameters() map[string]string
}

// ProcessingContext is handed to Task.MonitorData.
type ProcessingContext interface {
	Inputs() InputRecord
}

// InputRecord gives access to the payloads received for a single MonitorData call.
type InputRecord interface {
	// Get decodes the payload bound to the given name into out.
	Get(binding string, out interface{}) error

	// Has reports whether a payload is bound to the given name.
	Has(binding string) bool

	// Bindings returns all bound names in sorted order.
	Bindings() []string
}

// Publishable is an object which can be registered with an ObjectsManager. It must marshal
// to valid JSON.
type Publishable interface {
	Name() string
}

// ObjectsManager is the publishing registry of a task.
type ObjectsManager interface {
	// StartPublishing registers an object for publication at the end of every cycle.
	StartPublishing(obj Publishable) error

	// StopPublishing removes a previously registered object.
	StopPublishing(name string) error

	// AddMetadata attaches a key-value pair to a registered object.
	AddMetadata(objectName, key, value string) error
}

// PendingMessage represents a new message. Received messages use a different interface named Message.
type PendingMessage struct {
	// Binding is the input name the payload is delivered under, e.g. "tpc-sampled-tracks".
	Binding string

	// Body must be a value that can be marshalled to valid JSON.
	Body interface{}
}

// Sender provides an interface for sending data to tasks.
type Sender interface {
	// Send delivers pending messages to the transport. Messages passed in a single call are
	// delivered in-order.
	Send(ctx context.Context, msgs ...PendingMessage) error
}

// Message represents a payload returned from a transport.
type Message interface {
	// Binding returns the input name
	Binding() string

	// Decode must be used to unmarshall body to a particular value
	Decode(out interface{}) error
}

// Handler provides a standardized handler method, this is the required function composition for data handlers
type Handler func(context.Context, Message) error

// Receiver provides an interface for receiving messages.
type Receiver interface {
	// DequeueLoop polls for new messages and if it finds one it sends the message to the registered handler.
	// When handler exits without error, the message is considered consumed. It blocks until the context is
	// cancelled or Stop is called.
	DequeueLoop(ctx context.Context)

	// RegisterHandler registers a listener for a particular binding with an associated handler.
	RegisterHandler(binding string, h Handler)

	// Stop terminates the dequeue loop and waits until all in-flight messages are finished.
	Stop()
}

// Stats holds transport statistics.
type Stats struct {
	PendingMessages uint64
}

// Transport is implemented by every backend able to both send and receive messages.
type Transport interface {
	Sender
	Receiver

	Stats(ctx context.Context) (Stats, error)
}

// MonitorObject is a published object snapshot as handed to a Repository.
type MonitorObject struct {
	ID       uuid.UUID         `json:"id"`
	Name     string            `json:"name"`
	TaskName string            `json:"taskName"`
	Detector string            `json:"detector"`
	Activity Activity          `json:"activity"`
	Cycle    int               `json:"cycle"`
	Metadata map[string]string `json:"metadata"`
	Payload  []byte            `json:"payload"`
	Created  time.Time         `json:"created"`
}

// Repository stores published monitor objects.
type Repository interface {
	Store(ctx context.Context, objs ...*MonitorObject) error
	Close()
}

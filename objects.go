package qctask

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type publishedObject struct {
	obj      Publishable
	metadata map[string]string
}

// Objects is the ObjectsManager implementation used by the runner.
type Objects struct {
	taskName string
	detector string
	logger   logr.Logger

	mu      sync.Mutex
	objects map[string]*publishedObject
}

// NewObjects creates an empty publishing registry for a task.
func NewObjects(taskName, detector string, logger logr.Logger) *Objects {
	return &Objects{
		taskName: taskName,
		detector: detector,
		logger:   logger,
		objects:  make(map[string]*publishedObject),
	}
}

func (o *Objects) StartPublishing(obj Publishable) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	name := obj.Name()
	if _, ok := o.objects[name]; ok {
		return ErrAlreadyPublished.Context(fmt.Errorf("object %q", name))
	}
	o.objects[name] = &publishedObject{obj: obj, metadata: make(map[string]string)}
	o.logger.V(1).Info("started publishing", "object", name, "task", o.taskName)
	return nil
}

func (o *Objects) StopPublishing(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.objects[name]; !ok {
		return ErrNotPublished.Context(fmt.Errorf("object %q", name))
	}
	delete(o.objects, name)
	o.logger.V(1).Info("stopped publishing", "object", name, "task", o.taskName)
	return nil
}

func (o *Objects) AddMetadata(objectName, key, value string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	po, ok := o.objects[objectName]
	if !ok {
		return ErrNotPublished.Context(fmt.Errorf("object %q", objectName))
	}
	po.metadata[key] = value
	return nil
}

// Metadata returns a copy of the metadata attached to an object, nil when not published.
func (o *Objects) Metadata(objectName string) map[string]string {
	o.mu.Lock()
	defer o.mu.Unlock()

	po, ok := o.objects[objectName]
	if !ok {
		return nil
	}
	return copyMetadata(po.metadata)
}

// Len returns the number of published objects.
func (o *Objects) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.objects)
}

// Snapshot encodes all published objects sorted by name.
func (o *Objects) Snapshot(activity Activity, cycle int) ([]*MonitorObject, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	names := make([]string, 0, len(o.objects))
	for name := range o.objects {
		names = append(names, name)
	}
	sort.Strings(names)

	now := time.Now().UTC()
	result := make([]*MonitorObject, 0, len(names))
	for _, name := range names {
		po := o.objects[name]
		payload, err := json.Marshal(po.obj)
		if err != nil {
			return nil, ErrPayloadMarshal.Context(fmt.Errorf("object %q: %w", name, err))
		}
		result = append(result, &MonitorObject{
			ID:       uuid.New(),
			Name:     name,
			TaskName: o.taskName,
			Detector: o.detector,
			Activity: activity,
			Cycle:    cycle,
			Metadata: copyMetadata(po.metadata),
			Payload:  payload,
			Created:  now,
		})
	}
	return result, nil
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

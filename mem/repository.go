package mem

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"github.com/lzap/qctask"
)

// Repository keeps all stored monitor objects in memory.
type Repository struct {
	logger  logr.Logger
	mu      sync.RWMutex
	objects []*qctask.MonitorObject
}

func NewRepository(logger logr.Logger) *Repository {
	return &Repository{logger: logger}
}

func (r *Repository) Store(_ context.Context, objs ...*qctask.MonitorObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects = append(r.objects, objs...)
	r.logger.V(1).Info("stored monitor objects", "count", len(objs), "total", len(r.objects))
	return nil
}

// Objects returns all stored objects in insertion order.
func (r *Repository) Objects() []*qctask.MonitorObject {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*qctask.MonitorObject, len(r.objects))
	copy(result, r.objects)
	return result
}

// Latest returns the most recently stored version of the named object.
func (r *Repository) Latest(name string) (*qctask.MonitorObject, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.objects) - 1; i >= 0; i-- {
		if r.objects[i].Name == name {
			return r.objects[i], true
		}
	}
	return nil, false
}

func (r *Repository) Close() {
	// nothing to release
}

// Package modules keeps the registry of QC task classes. Task packages register themselves
// from init, commands import them for the side effect.
package modules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-logr/logr"
	"github.com/lzap/qctask"
)

// Factory creates a new task instance.
type Factory func(logger logr.Logger) qctask.Task

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a task class available under the given name. It panics when the name is
// registered twice or the factory is nil.
func Register(className string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if f == nil {
		panic("modules: Register factory is nil for " + className)
	}
	if _, dup := factories[className]; dup {
		panic("modules: Register called twice for " + className)
	}
	factories[className] = f
}

// New creates a task of the given class.
func New(className string, logger logr.Logger) (qctask.Task, error) {
	mu.RLock()
	f, ok := factories[className]
	mu.RUnlock()

	if !ok {
		return nil, qctask.ErrUnknownTask.Context(fmt.Errorf("class %q", className))
	}
	return f(logger.WithValues("task_class", className)), nil
}

// Classes returns the sorted list of registered class names.
func Classes() []string {
	mu.RLock()
	defer mu.RUnlock()

	result := make([]string, 0, len(factories))
	for k := range factories {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}

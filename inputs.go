package qctask

import (
	"fmt"
	"sort"
)

// Inputs is an InputRecord built from received messages. When several messages share a
// binding, the last one wins.
type Inputs struct {
	messages map[string]Message
}

// NewInputs creates an input record from the given messages.
func NewInputs(msgs ...Message) *Inputs {
	in := &Inputs{messages: make(map[string]Message, len(msgs))}
	for _, m := range msgs {
		in.messages[m.Binding()] = m
	}
	return in
}

func (in *Inputs) Get(binding string, out interface{}) error {
	m, ok := in.messages[binding]
	if !ok {
		return ErrInputNotFound.Context(fmt.Errorf("binding %q", binding))
	}
	if err := m.Decode(out); err != nil {
		return ErrDecode.Context(fmt.Errorf("binding %q: %w", binding, err))
	}
	return nil
}

func (in *Inputs) Has(binding string) bool {
	_, ok := in.messages[binding]
	return ok
}

func (in *Inputs) Bindings() []string {
	result := make([]string, 0, len(in.messages))
	for k := range in.messages {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}

type processingContext struct {
	inputs InputRecord
}

// NewProcessingContext wraps an input record into a ProcessingContext.
func NewProcessingContext(inputs InputRecord) ProcessingContext {
	return &processingContext{inputs: inputs}
}

func (pc *processingContext) Inputs() InputRecord {
	return pc.inputs
}

type initContext struct {
	objects ObjectsManager
	params  map[string]string
}

// NewInitContext creates an InitContext. A nil parameter map is replaced by an empty one.
func NewInitContext(objects ObjectsManager, params map[string]string) InitContext {
	if params == nil {
		params = map[string]string{}
	}
	return &initContext{objects: objects, params: params}
}

func (ic *initContext) ObjectsManager() ObjectsManager {
	return ic.objects
}

func (ic *initContext) CustomParameters() map[string]string {
	return ic.params
}

package gpu

import (
	"fmt"
	"sync"
)

type BindingKind uint8

const (
	UniformBinding BindingKind = iota
	StorageBinding
	TextureBinding
	AccelBinding
	StorageImageBinding
)

// A single binding slot of a descriptor layout.
type Binding struct {
	Slot  uint32
	Kind  BindingKind
	Count uint32
}

// Describes the resources a pipeline expects in one descriptor set.
// Pipelines built against a layout must be rebuilt when it changes.
type Layout struct {
	Name     string
	Bindings []Binding
}

func (l Layout) Equal(other Layout) bool {
	if l.Name != other.Name || len(l.Bindings) != len(other.Bindings) {
		return false
	}
	for i, b := range l.Bindings {
		if b != other.Bindings[i] {
			return false
		}
	}
	return true
}

func (l Layout) String() string {
	return fmt.Sprintf("%s%v", l.Name, l.Bindings)
}

// A descriptor set binds resources to the slots of a layout.
type DescriptorSet struct {
	mu        sync.RWMutex
	layout    Layout
	resources map[uint32]interface{}
}

func NewDescriptorSet(layout Layout) *DescriptorSet {
	return &DescriptorSet{
		layout:    layout,
		resources: make(map[uint32]interface{}),
	}
}

func (ds *DescriptorSet) Layout() Layout {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.layout
}

// Replace the layout and drop all bindings.
func (ds *DescriptorSet) Reset(layout Layout) {
	ds.mu.Lock()
	ds.layout = layout
	ds.resources = make(map[uint32]interface{})
	ds.mu.Unlock()
}

// Bind a resource to a slot.
func (ds *DescriptorSet) Bind(slot uint32, resource interface{}) {
	ds.mu.Lock()
	ds.resources[slot] = resource
	ds.mu.Unlock()
}

// Get the resource bound to a slot.
func (ds *DescriptorSet) Resource(slot uint32) (interface{}, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	res, ok := ds.resources[slot]
	if !ok {
		return nil, fmt.Errorf("%w: %s slot %d", ErrMissingBuffer, ds.layout.Name, slot)
	}
	return res, nil
}

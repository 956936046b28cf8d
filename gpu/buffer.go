package gpu

import "sync"

// A device buffer holding a single value of type T. Updates are recorded on
// a command buffer so they become visible in submission order.
type Buffer[T any] struct {
	mu   sync.RWMutex
	data T
}

func NewBuffer[T any](initial T) *Buffer[T] {
	return &Buffer[T]{data: initial}
}

// Record a command that copies v into the buffer.
func (b *Buffer[T]) Update(cmd *CommandBuffer, name string, v T) {
	cmd.Record(name, func() error {
		b.mu.Lock()
		b.data = v
		b.mu.Unlock()
		return nil
	})
}

// Get the current buffer contents. Meant to be called from commands running
// on the device queue.
func (b *Buffer[T]) Data() T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data
}

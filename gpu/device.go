package gpu

import (
	"fmt"
	"sync"

	"github.com/soerenfi/raytracing/log"
)

// The number of command buffers that can be queued before Submit blocks.
const queueDepth = 4

// Device executes recorded command buffers asynchronously.
type Device interface {
	// Get device name.
	Name() string

	// Start recording a new command buffer.
	Begin(label string) *CommandBuffer

	// Queue a command buffer for execution and return immediately.
	Submit(cmd *CommandBuffer) error

	// Block until every submitted command buffer has completed.
	WaitIdle() error

	// Drain the queue and shut down the device.
	Close()
}

// A device that executes commands on a worker go-routine.
type SoftwareDevice struct {
	logger log.Logger
	name   string

	sync.Mutex
	idleCond *sync.Cond
	pending  int
	lostErr  error

	wg        sync.WaitGroup
	queue     chan *CommandBuffer
	closeChan chan struct{}
}

// Create a software device and start its queue worker.
func NewSoftwareDevice(name string) *SoftwareDevice {
	d := &SoftwareDevice{
		logger: log.New(fmt.Sprintf("gpu (%s)", name)),
		name:   name,
		queue:  make(chan *CommandBuffer, queueDepth),
	}
	d.idleCond = sync.NewCond(&d.Mutex)
	d.startWorker()
	return d
}

// Get device name.
func (d *SoftwareDevice) Name() string {
	return d.name
}

// Start recording a new command buffer.
func (d *SoftwareDevice) Begin(label string) *CommandBuffer {
	return &CommandBuffer{label: label}
}

// Queue a command buffer for execution.
func (d *SoftwareDevice) Submit(cmd *CommandBuffer) error {
	d.Lock()
	if d.lostErr != nil {
		d.Unlock()
		return d.lostErr
	}
	if d.closeChan == nil {
		d.Unlock()
		return ErrDeviceLost
	}
	d.pending++
	d.Unlock()

	d.queue <- cmd
	return nil
}

// Block until the queue is drained. Returns an error wrapping
// ErrDeviceLost if a command failed.
func (d *SoftwareDevice) WaitIdle() error {
	d.Lock()
	defer d.Unlock()
	for d.pending > 0 {
		d.idleCond.Wait()
	}
	return d.lostErr
}

// Drain the queue and shut down the worker.
func (d *SoftwareDevice) Close() {
	d.WaitIdle()

	d.Lock()
	closeChan := d.closeChan
	d.closeChan = nil
	d.Unlock()

	if closeChan != nil {
		closeChan <- struct{}{}

		// wait for worker to ack close and shutdown channel
		<-closeChan
		close(closeChan)
	}
	d.wg.Wait()
}

// Spawn a go-routine to execute submitted command buffers in order.
func (d *SoftwareDevice) startWorker() {
	d.closeChan = make(chan struct{})
	closeChan := d.closeChan

	readyChan := make(chan struct{})
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		close(readyChan)
		for {
			select {
			case cmd := <-d.queue:
				err := d.execute(cmd)

				d.Lock()
				if err != nil && d.lostErr == nil {
					d.logger.Errorf("command buffer %q failed: %s", cmd.label, err.Error())
					d.lostErr = fmt.Errorf("%w: %s", ErrDeviceLost, err.Error())
				}
				d.pending--
				if d.pending == 0 {
					d.idleCond.Broadcast()
				}
				d.Unlock()
			case <-closeChan:
				// Ack close
				closeChan <- struct{}{}
				return
			}
		}
	}()

	// Wait for go-routine to start
	<-readyChan
}

// Run the commands of a buffer. Once the device is lost all further work is
// discarded.
func (d *SoftwareDevice) execute(cmd *CommandBuffer) error {
	d.Lock()
	lost := d.lostErr != nil
	d.Unlock()
	if lost {
		return nil
	}

	for _, c := range cmd.commands {
		if err := c.fn(); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

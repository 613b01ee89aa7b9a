package soft

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/compute/driver"
	"github.com/gogpu/compute/internal/pixconv"
)

// command is one submitted queue entry. Wait blocks on done; err holds
// the execution result afterwards.
type command struct {
	id   uuid.UUID
	op   string
	run  func() error
	deps []driver.Command
	done chan struct{}
	err  error
}

// Wait blocks until the command has executed.
func (c *command) Wait() error {
	<-c.done
	return c.err
}

// queue is an in-order command queue drained by one worker goroutine.
type queue struct {
	dev *Device

	mu     sync.Mutex
	cmds   chan *command
	closed bool
	wg     sync.WaitGroup
}

const queueDepth = 256

func newQueue(dev *Device) *queue {
	q := &queue{
		dev:  dev,
		cmds: make(chan *command, queueDepth),
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

// worker drains commands in submission order. Dependencies are settled
// before the command body runs; a failed dependency fails the command
// without running it.
func (q *queue) worker() {
	defer q.wg.Done()
	for cmd := range q.cmds {
		for _, dep := range cmd.deps {
			if err := dep.Wait(); err != nil {
				cmd.err = fmt.Errorf("soft: dependency of %s: %w", cmd.op, err)
				break
			}
		}
		if cmd.err == nil {
			cmd.err = cmd.run()
		}
		if cmd.err != nil {
			q.dev.logger().Warn("command failed", "op", cmd.op, "id", cmd.id, "error", cmd.err)
		}
		close(cmd.done)
	}
}

// submit enqueues one command. deps are copied; the caller may reuse
// its scratch slice immediately.
func (q *queue) submit(op string, deps []driver.Command, run func() error) (*command, error) {
	cmd := &command{
		id:   uuid.New(),
		op:   op,
		run:  run,
		done: make(chan struct{}),
	}
	if len(deps) > 0 {
		cmd.deps = append([]driver.Command(nil), deps...)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, driver.ErrClosed
	}
	q.cmds <- cmd
	q.mu.Unlock()

	q.dev.logger().Debug("command submitted", "op", op, "id", cmd.id, "deps", len(deps))
	return cmd, nil
}

// barrier submits a no-op command and waits for it, draining everything
// submitted before it.
func (q *queue) barrier() error {
	cmd, err := q.submit("Barrier", nil, func() error { return nil })
	if err != nil {
		return err
	}
	return cmd.Wait()
}

// MapBuffer drains the queue and returns a window into the backing
// store. The mapping aliases device memory, so the copy the caller
// performs is immediately visible; the unmap command only publishes
// completion.
func (q *queue) MapBuffer(b driver.Buffer, mode driver.MapMode, off, length int) ([]byte, error) {
	m, ok := b.(*memObject)
	if !ok {
		return nil, fmt.Errorf("soft: foreign buffer %T", b)
	}
	if err := m.live(); err != nil {
		return nil, err
	}
	if off < 0 || length <= 0 || off+length > len(m.data) {
		return nil, fmt.Errorf("soft: map range [%d, %d) exceeds size %d", off, off+length, len(m.data))
	}
	if err := q.barrier(); err != nil {
		return nil, err
	}
	return m.data[off : off+length], nil
}

// UnmapBuffer completes a buffer mapping.
func (q *queue) UnmapBuffer(b driver.Buffer, mapped []byte) (driver.Command, error) {
	return q.submit("UnmapBuffer", nil, func() error { return nil })
}

// MapImage drains the queue and returns a window into the backing store
// starting at the region origin, along with the device pitches. The
// slice pitch is reported as 0 for images without a third axis, per the
// device convention.
func (q *queue) MapImage(img driver.Image, mode driver.MapMode, r driver.Region) ([]byte, int, int, error) {
	im, ok := img.(*image)
	if !ok {
		return nil, 0, 0, fmt.Errorf("soft: foreign image %T", img)
	}
	if err := im.live(); err != nil {
		return nil, 0, 0, err
	}
	if err := im.regionInBounds(r); err != nil {
		return nil, 0, 0, err
	}
	if err := q.barrier(); err != nil {
		return nil, 0, 0, err
	}
	slicePitch := im.slicePitch
	switch im.desc.Type {
	case driver.Image1D, driver.Image2D, driver.Image1DArray:
		slicePitch = 0
	}
	return im.data[im.originOffset(r):], im.rowPitch, slicePitch, nil
}

// UnmapImage completes an image mapping.
func (q *queue) UnmapImage(img driver.Image, mapped []byte) (driver.Command, error) {
	return q.submit("UnmapImage", nil, func() error { return nil })
}

// ReadImage copies the region into host memory asynchronously.
func (q *queue) ReadImage(img driver.Image, r driver.Region, rowPitch, slicePitch int, dst []byte, deps []driver.Command) (driver.Command, error) {
	im, ok := img.(*image)
	if !ok {
		return nil, fmt.Errorf("soft: foreign image %T", img)
	}
	if err := im.live(); err != nil {
		return nil, err
	}
	return q.submit("ReadImage", deps, func() error {
		return im.copyHost(dst, r, rowPitch, slicePitch, false)
	})
}

// WriteImage copies host memory into the region asynchronously.
func (q *queue) WriteImage(img driver.Image, r driver.Region, rowPitch, slicePitch int, src []byte, deps []driver.Command) (driver.Command, error) {
	im, ok := img.(*image)
	if !ok {
		return nil, fmt.Errorf("soft: foreign image %T", img)
	}
	if err := im.live(); err != nil {
		return nil, err
	}
	return q.submit("WriteImage", deps, func() error {
		return im.copyHost(src, r, rowPitch, slicePitch, true)
	})
}

// FillImage converts the encoded fill color to storage form and stamps
// it over the region.
func (q *queue) FillImage(img driver.Image, pixel []byte, r driver.Region, deps []driver.Command) (driver.Command, error) {
	im, ok := img.(*image)
	if !ok {
		return nil, fmt.Errorf("soft: foreign image %T", img)
	}
	if err := im.live(); err != nil {
		return nil, err
	}
	stored, err := pixconv.StoragePixel(im.desc, pixel)
	if err != nil {
		return nil, err
	}
	return q.submit("FillImage", deps, func() error {
		return im.fill(stored, r)
	})
}

// Dispatch snapshots the arguments and executes the kernel function
// over the global work volume.
func (q *queue) Dispatch(k driver.Kernel, d driver.Dispatch, args []driver.Arg, deps []driver.Command) (driver.Command, error) {
	kn, ok := k.(*kernel)
	if !ok {
		return nil, fmt.Errorf("soft: foreign kernel %T", k)
	}
	if kn.fn == nil {
		return nil, fmt.Errorf("soft: kernel %q has no implementation", kn.name)
	}
	vals, err := snapshotArgs(args)
	if err != nil {
		return nil, err
	}
	return q.submit("Dispatch "+kn.name, deps, func() error {
		return runKernel(kn, d, vals)
	})
}

// WaitAll blocks until every listed command has completed. The soft
// queue has no cheaper combined primitive, so this is a loop.
func (q *queue) WaitAll(cmds []driver.Command) error {
	for _, cmd := range cmds {
		if cmd == nil {
			continue
		}
		if err := cmd.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// Finish drains the queue.
func (q *queue) Finish() error {
	return q.barrier()
}

// Release shuts the queue down after draining already-submitted
// commands.
func (q *queue) Release() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.cmds)
	q.mu.Unlock()
	q.wg.Wait()
}

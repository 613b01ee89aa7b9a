//go:build opencl

package cl

import (
	"fmt"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"

	"github.com/gogpu/compute/driver"
	"github.com/gogpu/compute/internal/pixconv"
)

// clCommand is the completion handle of one enqueued command. The
// in-order queue makes a queue flush a sound, if coarse, wait.
type clCommand struct {
	q    *cl.CommandQueue
	ev   *cl.Event
	done bool
	err  error
}

func (c *clCommand) Wait() error {
	if c.done {
		return c.err
	}
	c.err = c.q.Finish()
	c.done = true
	return c.err
}

// completed builds an already-finished command for blocking enqueues.
func completed(q *cl.CommandQueue) *clCommand {
	return &clCommand{q: q, done: true}
}

// clQueue is one in-order OpenCL command queue.
type clQueue struct {
	dev *clDevice
	q   *cl.CommandQueue
}

// events converts dependency commands to a wait list. Commands from an
// in-order queue are already ordered, so only pending events matter.
func events(deps []driver.Command) []*cl.Event {
	var evs []*cl.Event
	for _, d := range deps {
		if c, ok := d.(*clCommand); ok && !c.done && c.ev != nil {
			evs = append(evs, c.ev)
		}
	}
	return evs
}

// MapBuffer emulates a blocking map with a staging read. Write-mapped
// ranges are read too unless the map invalidates them, so unwritten
// bytes survive the round trip.
func (q *clQueue) MapBuffer(b driver.Buffer, mode driver.MapMode, off, length int) ([]byte, error) {
	cb, ok := b.(*clBuffer)
	if !ok {
		if im, isImage := b.(*clImage); isImage {
			cb = &im.clBuffer
		} else {
			return nil, fmt.Errorf("cl: foreign buffer %T", b)
		}
	}
	staging := make([]byte, length)
	if mode&driver.MapRead != 0 || (mode&driver.MapWrite != 0 && mode&driver.MapInvalidate == 0) {
		if _, err := q.q.EnqueueReadBuffer(cb.buf, true, off, length, unsafe.Pointer(&staging[0]), nil); err != nil {
			return nil, fmt.Errorf("cl: map staging read: %w", err)
		}
	}
	cb.mapOff = off
	cb.mapMode = mode
	cb.mapBytes = staging
	return staging, nil
}

// UnmapBuffer publishes a write mapping with a staging write; read
// mappings complete immediately.
func (q *clQueue) UnmapBuffer(b driver.Buffer, mapped []byte) (driver.Command, error) {
	cb, ok := b.(*clBuffer)
	if !ok {
		if im, isImage := b.(*clImage); isImage {
			cb = &im.clBuffer
		} else {
			return nil, fmt.Errorf("cl: foreign buffer %T", b)
		}
	}
	defer func() { cb.mapBytes = nil }()
	if cb.mapMode&driver.MapWrite == 0 {
		return completed(q.q), nil
	}
	ev, err := q.q.EnqueueWriteBuffer(cb.buf, false, cb.mapOff, len(mapped), unsafe.Pointer(&mapped[0]), nil)
	if err != nil {
		return nil, fmt.Errorf("cl: unmap staging write: %w", err)
	}
	return &clCommand{q: q.q, ev: ev}, nil
}

// MapImage emulates an image mapping as a window over the pitch-linear
// backing buffer, from the region origin to the end of the region.
func (q *clQueue) MapImage(img driver.Image, mode driver.MapMode, r driver.Region) ([]byte, int, int, error) {
	im, ok := img.(*clImage)
	if !ok {
		return nil, 0, 0, fmt.Errorf("cl: foreign image %T", img)
	}
	origin := r.Origin[2]*im.slicePitch + r.Origin[1]*im.rowPitch + r.Origin[0]*im.desc.PixelSize
	end := (r.Origin[2]+r.Extent[2]-1)*im.slicePitch +
		(r.Origin[1]+r.Extent[1]-1)*im.rowPitch +
		(r.Origin[0]+r.Extent[0])*im.desc.PixelSize
	mapped, err := q.MapBuffer(&im.clBuffer, mode, origin, end-origin)
	if err != nil {
		return nil, 0, 0, err
	}
	slicePitch := im.slicePitch
	switch im.desc.Type {
	case driver.Image1D, driver.Image2D, driver.Image1DArray:
		slicePitch = 0
	}
	return mapped, im.rowPitch, slicePitch, nil
}

func (q *clQueue) UnmapImage(img driver.Image, mapped []byte) (driver.Command, error) {
	im, ok := img.(*clImage)
	if !ok {
		return nil, fmt.Errorf("cl: foreign image %T", img)
	}
	return q.UnmapBuffer(&im.clBuffer, mapped)
}

// ReadImage copies the region row by row with staging reads.
func (q *clQueue) ReadImage(img driver.Image, r driver.Region, rowPitch, slicePitch int, dst []byte, deps []driver.Command) (driver.Command, error) {
	return q.imageRows(img, r, rowPitch, slicePitch, dst, deps, false)
}

// WriteImage copies the region row by row with staging writes.
func (q *clQueue) WriteImage(img driver.Image, r driver.Region, rowPitch, slicePitch int, src []byte, deps []driver.Command) (driver.Command, error) {
	return q.imageRows(img, r, rowPitch, slicePitch, src, deps, true)
}

func (q *clQueue) imageRows(img driver.Image, r driver.Region, rowPitch, slicePitch int, host []byte, deps []driver.Command, toDevice bool) (driver.Command, error) {
	im, ok := img.(*clImage)
	if !ok {
		return nil, fmt.Errorf("cl: foreign image %T", img)
	}
	if rowPitch == 0 {
		rowPitch = r.Extent[0] * im.desc.PixelSize
	}
	if slicePitch == 0 {
		slicePitch = rowPitch * r.Extent[1]
	}
	rowBytes := r.Extent[0] * im.desc.PixelSize
	base := r.Origin[2]*im.slicePitch + r.Origin[1]*im.rowPitch + r.Origin[0]*im.desc.PixelSize

	wait := events(deps)
	var last *cl.Event
	for z := 0; z < r.Extent[2]; z++ {
		for y := 0; y < r.Extent[1]; y++ {
			devOff := base + z*im.slicePitch + y*im.rowPitch
			hostOff := z*slicePitch + y*rowPitch
			ptr := unsafe.Pointer(&host[hostOff])
			var (
				ev  *cl.Event
				err error
			)
			if toDevice {
				ev, err = q.q.EnqueueWriteBuffer(im.buf, false, devOff, rowBytes, ptr, wait)
			} else {
				ev, err = q.q.EnqueueReadBuffer(im.buf, false, devOff, rowBytes, ptr, wait)
			}
			if err != nil {
				return nil, fmt.Errorf("cl: image row transfer: %w", err)
			}
			// Subsequent rows ride on in-order execution.
			wait = nil
			last = ev
		}
	}
	return &clCommand{q: q.q, ev: last}, nil
}

// FillImage converts the fill color to storage form, builds one row of
// pixels and writes it across the region.
func (q *clQueue) FillImage(img driver.Image, pixel []byte, r driver.Region, deps []driver.Command) (driver.Command, error) {
	im, ok := img.(*clImage)
	if !ok {
		return nil, fmt.Errorf("cl: foreign image %T", img)
	}
	stored, err := pixconv.StoragePixel(im.desc, pixel)
	if err != nil {
		return nil, err
	}
	row := make([]byte, r.Extent[0]*im.desc.PixelSize)
	for x := 0; x < r.Extent[0]; x++ {
		copy(row[x*im.desc.PixelSize:], stored)
	}
	base := r.Origin[2]*im.slicePitch + r.Origin[1]*im.rowPitch + r.Origin[0]*im.desc.PixelSize

	wait := events(deps)
	var last *cl.Event
	for z := 0; z < r.Extent[2]; z++ {
		for y := 0; y < r.Extent[1]; y++ {
			devOff := base + z*im.slicePitch + y*im.rowPitch
			ev, err := q.q.EnqueueWriteBuffer(im.buf, false, devOff, len(row), unsafe.Pointer(&row[0]), wait)
			if err != nil {
				return nil, fmt.Errorf("cl: image fill row: %w", err)
			}
			wait = nil
			last = ev
		}
	}
	return &clCommand{q: q.q, ev: last}, nil
}

// Dispatch binds the resolved arguments and enqueues the NDRange.
func (q *clQueue) Dispatch(k driver.Kernel, d driver.Dispatch, args []driver.Arg, deps []driver.Command) (driver.Command, error) {
	ck, ok := k.(*clKernel)
	if !ok {
		return nil, fmt.Errorf("cl: foreign kernel %T", k)
	}
	for i, a := range args {
		var err error
		switch a.Kind {
		case driver.ArgMem:
			switch m := a.Mem.(type) {
			case *clBuffer:
				err = ck.k.SetArgBuffer(i, m.buf)
			case *clImage:
				err = ck.k.SetArgBuffer(i, m.buf)
			default:
				err = fmt.Errorf("cl: foreign memory %T", a.Mem)
			}
		case driver.ArgData:
			err = ck.k.SetArgUnsafe(i, a.Size, unsafe.Pointer(&a.Data[0]))
		case driver.ArgLocal:
			err = ck.k.SetArgUnsafe(i, a.Size, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("cl: bind argument %d: %w", i, err)
		}
	}

	global := d.Global[:d.Dim]
	var offset, local []int
	for i := 0; i < d.Dim; i++ {
		if d.Offset[i] != 0 {
			offset = d.Offset[:d.Dim]
			break
		}
	}
	for i := 0; i < d.Dim; i++ {
		if d.Local[i] != 0 {
			local = d.Local[:d.Dim]
			break
		}
	}

	ev, err := q.q.EnqueueNDRangeKernel(ck.k, offset, global, local, events(deps))
	if err != nil {
		return nil, fmt.Errorf("cl: enqueue kernel %s: %w", ck.name, err)
	}
	return &clCommand{q: q.q, ev: ev}, nil
}

// WaitAll flushes the queue once; every listed command is in-order
// behind the flush point.
func (q *clQueue) WaitAll(cmds []driver.Command) error {
	for _, c := range cmds {
		if c == nil {
			continue
		}
		if err := c.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func (q *clQueue) Finish() error {
	return q.q.Finish()
}

func (q *clQueue) Release() {
	q.q.Release()
}

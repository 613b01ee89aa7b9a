//go:build opencl

// Package cl implements the driver interfaces on top of OpenCL 1.2
// hardware through github.com/jgillich/go-opencl. It is only compiled
// with the opencl build tag; without it the package registers nothing.
//
// Images are emulated as pitch-linear buffers (packed rows) and
// mappings are emulated with staging transfers, which keeps the binding
// surface small: buffers, kernels and NDRange dispatch.
package cl

import (
	"errors"
	"fmt"

	"github.com/jgillich/go-opencl/cl"

	"github.com/gogpu/compute/driver"
)

// init registers the OpenCL driver on package import.
func init() {
	driver.Register(driver.DriverOpenCL, Open)
}

// Open locates the first GPU device across all platforms, falling back
// to a CPU device, and opens a context on it.
func Open() (driver.Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil || len(platforms) == 0 {
		return nil, fmt.Errorf("%w: no OpenCL platforms", driver.ErrDeviceNotAvailable)
	}
	device := pickDevice(platforms, cl.DeviceTypeGPU)
	if device == nil {
		device = pickDevice(platforms, cl.DeviceTypeCPU)
	}
	if device == nil {
		return nil, fmt.Errorf("%w: no OpenCL devices", driver.ErrDeviceNotAvailable)
	}

	context, err := cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("cl: create context: %w", err)
	}
	return &clDevice{device: device, context: context}, nil
}

func pickDevice(platforms []*cl.Platform, kind cl.DeviceType) *cl.Device {
	for _, p := range platforms {
		devices, err := p.GetDevices(kind)
		if err != nil && err != cl.ErrDeviceNotFound {
			continue
		}
		if len(devices) > 0 {
			return devices[0]
		}
	}
	return nil
}

// clDevice owns one OpenCL context on one device.
type clDevice struct {
	device  *cl.Device
	context *cl.Context
}

func (d *clDevice) Name() string { return d.device.Name() }

// Info reports the device name plus the minimum capabilities an OpenCL
// 1.2 compliant device must provide; the binding exposes no richer
// query surface.
func (d *clDevice) Info() driver.DeviceInfo {
	return driver.DeviceInfo{
		Name:    d.device.Name(),
		Vendor:  "OpenCL",
		Version: "OpenCL 1.2",

		MaxWorkGroupSize:      1,
		MaxWorkItemDimensions: 3,
		MaxWorkItemSizes:      [3]int{1, 1, 1},

		Image2DMaxWidth:   8192,
		Image2DMaxHeight:  8192,
		Image3DMaxWidth:   2048,
		Image3DMaxHeight:  2048,
		Image3DMaxDepth:   2048,
		MaxImageArraySize: 256,

		MemBaseAddrAlign: 1024,
		GlobalMemSize:    128 << 20,
		LocalMemSize:     32 << 10,
		LittleEndian:     true,
	}
}

func (d *clDevice) NewQueue() (driver.Queue, error) {
	q, err := d.context.CreateCommandQueue(d.device, 0)
	if err != nil {
		return nil, fmt.Errorf("cl: create command queue: %w", err)
	}
	return &clQueue{dev: d, q: q}, nil
}

func (d *clDevice) BuildProgram(source, options string) (driver.Program, error) {
	p, err := d.context.CreateProgramWithSource([]string{source})
	if err != nil {
		return nil, fmt.Errorf("cl: create program: %w", err)
	}
	if err := p.BuildProgram([]*cl.Device{d.device}, options); err != nil {
		p.Release()
		var buildErr cl.BuildError
		if errors.As(err, &buildErr) {
			return nil, fmt.Errorf("cl: build program: %s", string(buildErr))
		}
		return nil, fmt.Errorf("cl: build program: %w", err)
	}
	return &clProgram{p: p, kernels: make(map[string]*clKernel)}, nil
}

func (d *clDevice) CreateBuffer(size int, hostPtr []byte) (driver.Buffer, error) {
	buf, err := d.context.CreateEmptyBuffer(cl.MemReadWrite, size)
	if err != nil {
		return nil, fmt.Errorf("cl: create buffer: %w", err)
	}
	b := &clBuffer{buf: buf, size: size}
	if len(hostPtr) > 0 {
		// Seeding needs a queue of its own; create and release one.
		q, err := d.NewQueue()
		if err != nil {
			buf.Release()
			return nil, err
		}
		defer q.Release()
		mapped, err := q.MapBuffer(b, driver.MapWrite|driver.MapInvalidate, 0, len(hostPtr))
		if err != nil {
			buf.Release()
			return nil, err
		}
		copy(mapped, hostPtr)
		cmd, err := q.UnmapBuffer(b, mapped)
		if err != nil {
			buf.Release()
			return nil, err
		}
		if err := cmd.Wait(); err != nil {
			buf.Release()
			return nil, err
		}
	}
	return b, nil
}

// CreateImage allocates a pitch-linear buffer standing in for an image
// object. Rows are packed: row pitch is width times the pixel size.
func (d *clDevice) CreateImage(desc driver.ImageDesc, hostPtr []byte) (driver.Image, error) {
	rowPitch := desc.Width * desc.PixelSize
	slicePitch := rowPitch * desc.Height
	size := slicePitch * desc.Depth
	buf, err := d.context.CreateEmptyBuffer(cl.MemReadWrite, size)
	if err != nil {
		return nil, fmt.Errorf("cl: create image buffer: %w", err)
	}
	return &clImage{
		clBuffer:   clBuffer{buf: buf, size: size},
		desc:       desc,
		rowPitch:   rowPitch,
		slicePitch: slicePitch,
	}, nil
}

func (d *clDevice) Close() error {
	d.context.Release()
	return nil
}

// clBuffer wraps one device buffer plus the bookkeeping of its single
// outstanding emulated mapping.
type clBuffer struct {
	buf  *cl.MemObject
	size int

	mapOff   int
	mapMode  driver.MapMode
	mapBytes []byte
}

func (b *clBuffer) Size() int { return b.size }

func (b *clBuffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

// clImage is a pitch-linear buffer with image bookkeeping.
type clImage struct {
	clBuffer
	desc       driver.ImageDesc
	rowPitch   int
	slicePitch int
}

func (im *clImage) Desc() driver.ImageDesc { return im.desc }
func (im *clImage) RowPitch() int          { return im.rowPitch }
func (im *clImage) SlicePitch() int        { return im.slicePitch }

// clProgram wraps one built program and its extracted kernels.
type clProgram struct {
	p       *cl.Program
	kernels map[string]*clKernel
}

func (p *clProgram) Kernel(name string) (driver.Kernel, error) {
	if k, ok := p.kernels[name]; ok {
		return k, nil
	}
	k, err := p.p.CreateKernel(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", driver.ErrKernelNotFound, name, err)
	}
	ck := &clKernel{k: k, name: name}
	p.kernels[name] = ck
	return ck, nil
}

func (p *clProgram) KernelNames() []string {
	names := make([]string, 0, len(p.kernels))
	for name := range p.kernels {
		names = append(names, name)
	}
	return names
}

func (p *clProgram) Release() {
	for _, k := range p.kernels {
		k.k.Release()
	}
	p.kernels = nil
	if p.p != nil {
		p.p.Release()
		p.p = nil
	}
}

// clKernel wraps one kernel object.
type clKernel struct {
	k    *cl.Kernel
	name string
}

func (k *clKernel) Name() string { return k.name }

// Info reports the OpenCL 1.2 minimum execution limits; the binding
// exposes no per-kernel work-group query.
func (k *clKernel) Info() driver.KernelInfo {
	return driver.KernelInfo{
		MaxWorkGroupSize:               1,
		PreferredWorkGroupSizeMultiple: 1,
	}
}

// Package soft implements the driver interfaces with an in-memory
// device. It executes kernels as registered Go functions and backs
// buffers and images with host byte slices, which makes the full
// transfer and dispatch machinery runnable on any host without compute
// hardware.
//
// The soft device is registered under the name "soft" and serves as the
// fallback of the driver priority order.
package soft

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/compute/driver"
)

// DeviceName is the reported device name.
const DeviceName = "gogpu soft device"

// init registers the soft driver on package import.
func init() {
	driver.Register(driver.DriverSoft, func() (driver.Device, error) {
		return New(), nil
	})
}

// nopHandler mirrors the root package's silent default so the device
// can log before a logger is injected.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Device is an in-memory compute device.
type Device struct {
	mu      sync.RWMutex
	kernels map[string]KernelFunc
	log     *slog.Logger
	closed  bool
}

// Option configures a Device during creation.
type Option func(*Device)

// WithKernels adds kernel implementations to the device's table, on top
// of the package-level registry.
func WithKernels(table map[string]KernelFunc) Option {
	return func(d *Device) {
		for name, fn := range table {
			d.kernels[name] = fn
		}
	}
}

// New creates a soft device. Its kernel table starts as a copy of the
// package-level registry.
func New(opts ...Option) *Device {
	d := &Device{
		kernels: make(map[string]KernelFunc),
		log:     slog.New(nopHandler{}),
	}
	kernelMu.RLock()
	for name, fn := range kernelRegistry {
		d.kernels[name] = fn
	}
	kernelMu.RUnlock()
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetLogger injects the logger shared with the root package.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	d.mu.Lock()
	d.log = l
	d.mu.Unlock()
}

func (d *Device) logger() *slog.Logger {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.log
}

// Name returns the device name.
func (d *Device) Name() string { return DeviceName }

// Info returns the metadata record of the emulated device.
func (d *Device) Info() driver.DeviceInfo {
	return driver.DeviceInfo{
		Name:    DeviceName,
		Vendor:  "gogpu",
		Version: "soft " + "0.1",

		MaxWorkGroupSize:      1024,
		MaxWorkItemDimensions: 3,
		MaxWorkItemSizes:      [3]int{1024, 1024, 64},

		Image2DMaxWidth:   16384,
		Image2DMaxHeight:  16384,
		Image3DMaxWidth:   2048,
		Image3DMaxHeight:  2048,
		Image3DMaxDepth:   2048,
		MaxImageArraySize: 2048,

		MemBaseAddrAlign: 1024,
		GlobalMemSize:    4 << 30,
		LocalMemSize:     64 << 10,
		LittleEndian:     true,
	}
}

// NewQueue creates an in-order command queue backed by one worker
// goroutine.
func (d *Device) NewQueue() (driver.Queue, error) {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return nil, driver.ErrClosed
	}
	return newQueue(d), nil
}

// BuildProgram scans source for kernel declarations and binds each name
// against the device's Go kernel table. Names without an implementation
// still resolve; dispatching them fails.
func (d *Device) BuildProgram(source, options string) (driver.Program, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, driver.ErrClosed
	}
	names := scanKernelNames(source)
	if len(names) == 0 {
		return nil, fmt.Errorf("soft: no kernel declarations in source")
	}
	p := &program{dev: d, kernels: make(map[string]*kernel, len(names))}
	for _, name := range names {
		p.kernels[name] = &kernel{name: name, fn: d.kernels[name]}
	}
	return p, nil
}

// CreateBuffer allocates a host-backed linear buffer.
func (d *Device) CreateBuffer(size int, hostPtr []byte) (driver.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("soft: buffer size %d", size)
	}
	data := make([]byte, size)
	copy(data, hostPtr)
	return &memObject{data: data}, nil
}

// CreateImage allocates a host-backed pitch-linear image. Rows are laid
// out packed: the row pitch is exactly width times the pixel size.
func (d *Device) CreateImage(desc driver.ImageDesc, hostPtr []byte) (driver.Image, error) {
	if desc.Width <= 0 || desc.Height <= 0 || desc.Depth <= 0 || desc.PixelSize <= 0 {
		return nil, fmt.Errorf("soft: image extent %dx%dx%d pixel %d",
			desc.Width, desc.Height, desc.Depth, desc.PixelSize)
	}
	rowPitch := desc.Width * desc.PixelSize
	slicePitch := rowPitch * desc.Height
	data := make([]byte, slicePitch*desc.Depth)
	copy(data, hostPtr)
	return &image{
		memObject:  memObject{data: data},
		desc:       desc,
		rowPitch:   rowPitch,
		slicePitch: slicePitch,
	}, nil
}

// Close shuts the device down. Queues created from it keep draining
// already-submitted commands.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

package compute

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/compute/driver"
)

// Option configures a Context during creation.
type Option func(*contextOptions)

// contextOptions holds optional configuration for Context creation.
type contextOptions struct {
	driverName string
	device     driver.Device
}

// WithDriver selects the driver to open by registry name ("soft",
// "opencl"). Without this option the highest-priority available driver
// is used.
func WithDriver(name string) Option {
	return func(o *contextOptions) {
		o.driverName = name
	}
}

// WithDevice injects an already-opened device. The Context takes
// ownership and closes it on Close. Use this for dependency injection
// of custom or test devices.
func WithDevice(d driver.Device) Option {
	return func(o *contextOptions) {
		o.device = d
	}
}

// loggerSetter is implemented by devices that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// Context owns one opened device and one in-order command queue. Every
// allocation and program in this package is created through a Context
// and must not outlive it.
type Context struct {
	dev    driver.Device
	q      driver.Queue
	info   driver.DeviceInfo
	closed bool
}

// NewContext opens a device and creates its command queue.
//
// Device selection order: an injected device (WithDevice), then a named
// driver (WithDriver), then the highest-priority registered driver that
// opens successfully.
func NewContext(opts ...Option) (*Context, error) {
	var o contextOptions
	for _, opt := range opts {
		opt(&o)
	}

	dev := o.device
	var err error
	switch {
	case dev != nil:
	case o.driverName != "":
		dev, err = driver.Open(o.driverName)
		if err != nil {
			return nil, fmt.Errorf("compute: open driver %q: %w", o.driverName, err)
		}
	default:
		dev, err = driver.Default()
		if err != nil {
			return nil, fmt.Errorf("compute: no device available: %w", err)
		}
	}

	if ls, ok := dev.(loggerSetter); ok {
		ls.SetLogger(Logger())
	}

	q, err := dev.NewQueue()
	if err != nil {
		// Roll back the partially acquired device before reporting.
		if cerr := dev.Close(); cerr != nil {
			Logger().Warn("device close after queue failure", "error", cerr)
		}
		return nil, submitErr("NewQueue", err)
	}

	info := dev.Info()
	Logger().Info("device selected",
		"name", info.Name,
		"vendor", info.Vendor,
		"version", info.Version,
	)

	return &Context{dev: dev, q: q, info: info}, nil
}

// DeviceInfo returns the metadata record of the selected device.
func (c *Context) DeviceInfo() driver.DeviceInfo {
	return c.info
}

// BuildProgram compiles source with the given build options and returns
// the program with its kernels extracted. Build failures carry the
// device build log.
func (c *Context) BuildProgram(source, options string) (*Program, error) {
	if c.closed {
		return nil, ErrReleased
	}
	p, err := c.dev.BuildProgram(source, options)
	if err != nil {
		return nil, submitErr("BuildProgram", err)
	}
	Logger().Info("program built", "kernels", p.KernelNames())
	return &Program{ctx: c, p: p, kernels: make(map[string]*Kernel)}, nil
}

// CreateBuffer allocates a linear device buffer of size bytes.
func (c *Context) CreateBuffer(flags MemFlags, size int) (*Buffer, error) {
	return c.createBuffer(flags, size, nil)
}

// CreateBufferFrom allocates a linear device buffer seeded with data.
// The flags' HostPtr mode defaults to HostPtrCopy when left zero.
func (c *Context) CreateBufferFrom(flags MemFlags, data []byte) (*Buffer, error) {
	if flags.HostPtr == HostPtrNone {
		flags.HostPtr = HostPtrCopy
	}
	return c.createBuffer(flags, len(data), data)
}

func (c *Context) createBuffer(flags MemFlags, size int, data []byte) (*Buffer, error) {
	if c.closed {
		return nil, ErrReleased
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", ErrInvalidArg, size)
	}
	var seed []byte
	if flags.HostPtr == HostPtrCopy || flags.HostPtr == HostPtrUse {
		seed = data
	}
	b, err := c.dev.CreateBuffer(size, seed)
	if err != nil {
		return nil, submitErr("CreateBuffer", err)
	}
	Logger().Debug("buffer created", "size", size)
	return &Buffer{q: c.q, buf: b, size: size, flags: flags}, nil
}

// CreateImage allocates a device image described by desc.
func (c *Context) CreateImage(flags MemFlags, desc ImageDesc) (*Image, error) {
	if c.closed {
		return nil, ErrReleased
	}
	if err := desc.validate(); err != nil {
		return nil, err
	}
	img, err := c.dev.CreateImage(desc.driverDesc(), nil)
	if err != nil {
		return nil, submitErr("CreateImage", err)
	}
	Logger().Debug("image created",
		"type", desc.Type,
		"width", desc.Width,
		"height", desc.Height,
		"depth", desc.Depth,
	)
	return &Image{q: c.q, img: img, desc: desc, flags: flags}, nil
}

// Finish blocks until every command submitted through this Context has
// completed.
func (c *Context) Finish() error {
	if c.closed {
		return ErrReleased
	}
	if err := c.q.Finish(); err != nil {
		return submitErr("Finish", err)
	}
	return nil
}

// Close releases the command queue and the device. Allocations and
// programs created through the Context are invalid afterwards.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.q.Release()
	if err := c.dev.Close(); err != nil {
		Logger().Warn("device close", "error", err)
		return err
	}
	return nil
}

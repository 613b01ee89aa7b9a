// Package driver defines the device-side interfaces consumed by the
// compute package: command queues, memory objects, compiled programs
// and the completion handles returned by every submission.
//
// Implementations register themselves with Register, typically from an
// init function, and are selected by name or by priority through the
// compute.NewContext options.
package driver

import (
	"errors"
)

// Sentinel errors shared by all driver implementations.
var (
	// ErrDeviceNotAvailable is returned by a factory when its device
	// cannot be opened on this host (no platform, no hardware, build
	// tag disabled).
	ErrDeviceNotAvailable = errors.New("driver: device not available")

	// ErrKernelNotFound is returned by Program.Kernel when the program
	// contains no kernel with the requested name.
	ErrKernelNotFound = errors.New("driver: kernel not found")

	// ErrClosed is returned when a queue or device is used after Close.
	ErrClosed = errors.New("driver: closed")
)

// DeviceInfo is the metadata record of the selected device.
type DeviceInfo struct {
	Name    string
	Vendor  string
	Version string

	MaxWorkGroupSize      int
	MaxWorkItemDimensions int
	MaxWorkItemSizes      [3]int

	Image2DMaxWidth   int
	Image2DMaxHeight  int
	Image3DMaxWidth   int
	Image3DMaxHeight  int
	Image3DMaxDepth   int
	MaxImageArraySize int

	MemBaseAddrAlign int
	GlobalMemSize    uint64
	LocalMemSize     uint64
	LittleEndian     bool
}

// KernelInfo is the cached execution-limit metadata of one compiled kernel.
type KernelInfo struct {
	MaxWorkGroupSize               int
	LocalMemSize                   uint64
	PrivateMemSize                 uint64
	PreferredWorkGroupSizeMultiple int
}

// ImageType is the dimensionality class of an image allocation.
type ImageType uint8

const (
	Image1D ImageType = iota
	Image2D
	Image3D
	Image1DArray
	Image2DArray
)

// BaseKind is the numeric category of an image channel as seen by the
// driver.
type BaseKind uint8

const (
	BaseInt BaseKind = iota
	BaseUInt
	BaseFloat
)

// ImageDesc describes an image allocation at creation time. The layout
// fields are pre-resolved by the caller from its format descriptors so
// drivers never interpret packed format values.
type ImageDesc struct {
	Type                 ImageType
	Width, Height, Depth int

	PixelSize    int
	ChannelCount int
	// ChannelBytes is the storage width of one component.
	ChannelBytes int
	// Base and Normalized describe the component representation; fill
	// commands need them to convert the fill color into storage form.
	Base       BaseKind
	Normalized bool
}

// Region selects a sub-volume of an image. All three extent slots are
// populated; unused axes carry extent 1.
type Region struct {
	Origin [3]int
	Extent [3]int
}

// ArgKind discriminates the kernel argument union.
type ArgKind uint8

const (
	// ArgData is a plain value copied by the driver during binding.
	ArgData ArgKind = iota
	// ArgMem references a device memory object.
	ArgMem
	// ArgLocal reserves device-local scratch memory; it carries a size
	// and never a host pointer.
	ArgLocal
)

// Arg is one resolved kernel argument crossing the driver boundary.
// Data is only valid for the duration of the Dispatch call; drivers
// must copy it during binding.
type Arg struct {
	Kind ArgKind
	Size int
	Data []byte
	Mem  Mem
}

// Dispatch describes one N-dimensional kernel submission. The three
// geometry arrays are fixed at 3 slots with only the first Dim entries
// meaningful. A zero Local slot leaves the group size to the driver.
type Dispatch struct {
	Dim    int
	Offset [3]int
	Global [3]int
	Local  [3]int
}

// Command is the completion handle of one submitted command.
type Command interface {
	// Wait blocks until the command has finished and returns its
	// execution error, if any.
	Wait() error
}

// Mem is a device memory object handle (buffer or image).
type Mem interface {
	// Size returns the allocation size in bytes.
	Size() int
	// Release frees the device allocation. Safe to call once.
	Release()
}

// Buffer is a linear device allocation.
type Buffer interface {
	Mem
}

// Image is a pitch-addressed device allocation. RowPitch and SlicePitch
// report the device-side layout used by mapped transfers.
type Image interface {
	Mem
	Desc() ImageDesc
	RowPitch() int
	SlicePitch() int
}

// Kernel is a non-owning reference to one compiled kernel.
type Kernel interface {
	Name() string
	Info() KernelInfo
}

// Program is a compiled program with named kernels.
type Program interface {
	// Kernel resolves a kernel by name. Returns ErrKernelNotFound if
	// the program defines no such kernel.
	Kernel(name string) (Kernel, error)
	// KernelNames lists the kernels the program defines.
	KernelNames() []string
	Release()
}

// MapMode selects the direction of a blocking map.
type MapMode uint8

const (
	MapRead MapMode = 1 << iota
	MapWrite
	// MapInvalidate discards the prior contents of the mapped range.
	// Only meaningful together with MapWrite.
	MapInvalidate
)

// Queue is the command-submission endpoint. All submissions return a
// Command completion handle; deps, when non-empty, defer execution until
// every listed command has completed.
type Queue interface {
	// MapBuffer blocks until the byte range [off, off+length) of b is
	// host-visible and returns the mapping.
	MapBuffer(b Buffer, mode MapMode, off, length int) ([]byte, error)
	// UnmapBuffer releases a mapping obtained from MapBuffer and
	// returns the command that makes the range durable on the device.
	UnmapBuffer(b Buffer, mapped []byte) (Command, error)

	// MapImage blocks until the region of img is host-visible and
	// returns the mapping along with the device row and slice pitch of
	// the mapped block.
	MapImage(img Image, mode MapMode, region Region) (mapped []byte, rowPitch, slicePitch int, err error)
	UnmapImage(img Image, mapped []byte) (Command, error)

	// ReadImage and WriteImage are the direct, non-mapped transfer
	// path. Host layout is described by rowPitch and slicePitch in
	// bytes; a zero slicePitch follows the device convention for the
	// image type.
	ReadImage(img Image, region Region, rowPitch, slicePitch int, dst []byte, deps []Command) (Command, error)
	WriteImage(img Image, region Region, rowPitch, slicePitch int, src []byte, deps []Command) (Command, error)

	// FillImage fills the region with a pixel pattern. pixel holds the
	// four encoded components back to back in the device channel width;
	// the driver consumes as many as the image format declares.
	FillImage(img Image, pixel []byte, region Region, deps []Command) (Command, error)

	// Dispatch binds args to k in order and submits one N-dimensional
	// execution.
	Dispatch(k Kernel, d Dispatch, args []Arg, deps []Command) (Command, error)

	// WaitAll blocks until every listed command has completed. Drivers
	// batch this into one underlying wait where the device supports it.
	WaitAll(cmds []Command) error

	// Finish blocks until every command submitted to the queue so far
	// has completed.
	Finish() error

	Release()
}

// Device is one opened compute device with its context.
type Device interface {
	Name() string
	Info() DeviceInfo

	// NewQueue creates an in-order command queue on the device.
	NewQueue() (Queue, error)

	// BuildProgram compiles source and extracts its kernels. A build
	// failure returns an error carrying the build log.
	BuildProgram(source, options string) (Program, error)

	// CreateBuffer allocates size bytes of linear device memory.
	// hostPtr, when non-nil, seeds the allocation (copy-at-create).
	CreateBuffer(size int, hostPtr []byte) (Buffer, error)

	// CreateImage allocates a pitch-addressed device image.
	CreateImage(desc ImageDesc, hostPtr []byte) (Image, error)

	Close() error
}

package soft

import (
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"sync"

	"github.com/gogpu/compute/driver"
)

// Invocation carries the geometry of one work item.
type Invocation struct {
	// ID is the global id of the work item, offset included.
	ID [3]int
	// Global is the global work volume of the dispatch.
	Global [3]int
	// Offset is the global offset of the dispatch.
	Offset [3]int
	// Dim is the work dimension count, 1 to 3.
	Dim int
}

// ArgValue is one bound kernel argument as seen by a Go kernel
// function. Exactly one of Data, Mem or Local is populated, matching
// the argument's resolution rule.
type ArgValue struct {
	// Data holds a snapshot of a plain-data argument.
	Data []byte
	// Mem aliases the backing store of a buffer or image argument;
	// writes are device writes.
	Mem []byte
	// Local is the scratch block of a local-memory argument. The soft
	// device runs work items sequentially, so one block is shared by
	// the whole dispatch.
	Local []byte
}

// Int32 decodes a plain-data argument as int32.
func (a ArgValue) Int32() int32 {
	return int32(binary.LittleEndian.Uint32(a.Data))
}

// Uint32 decodes a plain-data argument as uint32.
func (a ArgValue) Uint32() uint32 {
	return binary.LittleEndian.Uint32(a.Data)
}

// Float32 decodes a plain-data argument as float32.
func (a ArgValue) Float32() float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(a.Data))
}

// KernelFunc is the Go implementation of one kernel. It is called once
// per work item.
type KernelFunc func(inv Invocation, args []ArgValue)

// Package-level kernel registry; devices copy it at creation.
var (
	kernelMu       sync.RWMutex
	kernelRegistry = make(map[string]KernelFunc)
)

// RegisterKernel binds a Go implementation to a kernel name for all
// devices created afterwards.
func RegisterKernel(name string, fn KernelFunc) {
	kernelMu.Lock()
	defer kernelMu.Unlock()
	kernelRegistry[name] = fn
}

// kernelDeclRe matches OpenCL C kernel declarations. Attribute
// qualifiers between the kernel keyword and the return type are
// tolerated.
var kernelDeclRe = regexp.MustCompile(`(?m)__kernel\s+(?:__attribute__\s*\(\([^)]*\)\)\s*)?void\s+(\w+)\s*\(`)

// scanKernelNames extracts the kernel names declared in source.
func scanKernelNames(source string) []string {
	var names []string
	for _, m := range kernelDeclRe.FindAllStringSubmatch(source, -1) {
		names = append(names, m[1])
	}
	return names
}

// program is a built soft program.
type program struct {
	dev     *Device
	kernels map[string]*kernel
}

func (p *program) Kernel(name string) (driver.Kernel, error) {
	k, ok := p.kernels[name]
	if !ok {
		return nil, driver.ErrKernelNotFound
	}
	return k, nil
}

func (p *program) KernelNames() []string {
	names := make([]string, 0, len(p.kernels))
	for name := range p.kernels {
		names = append(names, name)
	}
	return names
}

func (p *program) Release() {}

// kernel is a resolved soft kernel.
type kernel struct {
	name string
	fn   KernelFunc
}

func (k *kernel) Name() string { return k.name }

func (k *kernel) Info() driver.KernelInfo {
	return driver.KernelInfo{
		MaxWorkGroupSize:               1024,
		LocalMemSize:                   0,
		PrivateMemSize:                 0,
		PreferredWorkGroupSizeMultiple: 1,
	}
}

// snapshotArgs copies the dispatch arguments into stable storage. Arg
// data is only valid during the Dispatch call, so plain values are
// copied here; memory arguments alias their backing store.
func snapshotArgs(args []driver.Arg) ([]ArgValue, error) {
	vals := make([]ArgValue, len(args))
	for i, a := range args {
		switch a.Kind {
		case driver.ArgData:
			data := make([]byte, len(a.Data))
			copy(data, a.Data)
			vals[i] = ArgValue{Data: data}
		case driver.ArgMem:
			switch m := a.Mem.(type) {
			case *memObject:
				vals[i] = ArgValue{Mem: m.data}
			case *image:
				vals[i] = ArgValue{Mem: m.data}
			default:
				return nil, fmt.Errorf("soft: foreign memory %T", a.Mem)
			}
		case driver.ArgLocal:
			vals[i] = ArgValue{Local: make([]byte, a.Size)}
		}
	}
	return vals, nil
}

// runKernel executes the kernel function once per work item, in row
// major order over the global volume.
func runKernel(k *kernel, d driver.Dispatch, vals []ArgValue) error {
	inv := Invocation{Global: d.Global, Offset: d.Offset, Dim: d.Dim}
	for z := 0; z < d.Global[2]; z++ {
		for y := 0; y < d.Global[1]; y++ {
			for x := 0; x < d.Global[0]; x++ {
				inv.ID = [3]int{d.Offset[0] + x, d.Offset[1] + y, d.Offset[2] + z}
				k.fn(inv, vals)
			}
		}
	}
	return nil
}

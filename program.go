package compute

import (
	"errors"
	"fmt"

	"github.com/gogpu/compute/driver"
)

// KernelInfo is the cached execution-limit metadata of one kernel.
type KernelInfo = driver.KernelInfo

// Program wraps one compiled device program and caches its resolved
// kernels by name.
type Program struct {
	ctx     *Context
	p       driver.Program
	kernels map[string]*Kernel
}

// Kernel is a resolved kernel handle: the explicit fast path for
// repeated invocation of the same kernel, skipping the name lookup.
// A Kernel is valid only while its Program is alive.
type Kernel struct {
	prog *Program
	k    driver.Kernel
	name string

	// argScratch and depScratch batch per-invocation state. Both are
	// reset before every use.
	argScratch []driver.Arg
	depScratch []driver.Command
}

// KernelNames lists the kernels the program defines.
func (p *Program) KernelNames() []string {
	if p.p == nil {
		return nil
	}
	return p.p.KernelNames()
}

// Kernel resolves a kernel by name and caches the handle. An absent
// name fails with ErrKernelNotFound, reported distinctly from device
// submission failures.
func (p *Program) Kernel(name string) (*Kernel, error) {
	if p.p == nil {
		return nil, fmt.Errorf("%w: program", ErrReleased)
	}
	if k, ok := p.kernels[name]; ok {
		return k, nil
	}
	dk, err := p.p.Kernel(name)
	if err != nil {
		if errors.Is(err, driver.ErrKernelNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrKernelNotFound, name)
		}
		return nil, submitErr("Kernel", err)
	}
	k := &Kernel{prog: p, k: dk, name: name}
	p.kernels[name] = k
	return k, nil
}

// Invoke resolves name and submits an N-dimensional dispatch with the
// given arguments. See Kernel.InvokeAfter for the full contract.
func (p *Program) Invoke(name string, d Dims, args ...Arg) (*Event, error) {
	return p.InvokeAfter(name, d, nil, args...)
}

// InvokeAfter resolves name and submits a dispatch that starts only
// after every dependency has completed.
func (p *Program) InvokeAfter(name string, d Dims, deps []*Event, args ...Arg) (*Event, error) {
	k, err := p.Kernel(name)
	if err != nil {
		return nil, err
	}
	return k.InvokeAfter(d, deps, args...)
}

// Release frees the device program and its kernels. Kernels resolved
// from the Program must not be used afterwards.
func (p *Program) Release() {
	if p.p != nil {
		p.p.Release()
		p.p = nil
	}
	p.kernels = nil
}

// Name returns the kernel name.
func (k *Kernel) Name() string { return k.name }

// Info returns the kernel's execution-limit metadata: maximum
// work-group size, local and private memory footprint and the preferred
// work-group size multiple.
func (k *Kernel) Info() KernelInfo {
	return k.k.Info()
}

// Invoke submits an N-dimensional dispatch with the given arguments and
// returns its Event.
func (k *Kernel) Invoke(d Dims, args ...Arg) (*Event, error) {
	return k.InvokeAfter(d, nil, args...)
}

// InvokeAfter submits a dispatch that the device defers until every
// listed dependency has completed. Ordering among the dependencies
// themselves is not guaranteed, only that all finish first. The
// returned Event covers only this invocation, not its dependencies.
//
// Arguments are bound index-by-index through their static resolution
// rules; the first invalid argument aborts the invocation before any
// device call, wrapped with its slot index. A submission the device
// rejects surfaces as a *SubmitError carrying the status code.
func (k *Kernel) InvokeAfter(d Dims, deps []*Event, args ...Arg) (*Event, error) {
	if k.prog.p == nil {
		return nil, fmt.Errorf("%w: program", ErrReleased)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	resolved, err := resolveArgs(k.argScratch, args)
	if err != nil {
		return nil, err
	}
	k.argScratch = resolved
	k.depScratch = gatherDeps(k.depScratch, deps)

	// Inactive slots are normalized so drivers can iterate all three
	// axes unconditionally.
	for i := d.Dim; i < 3; i++ {
		d.Global[i] = 1
		d.Offset[i] = 0
		d.Local[i] = 0
	}

	cmd, err := k.prog.ctx.q.Dispatch(k.k, driver.Dispatch{
		Dim:    d.Dim,
		Offset: d.Offset,
		Global: d.Global,
		Local:  d.Local,
	}, resolved, k.depScratch)
	if err != nil {
		return nil, submitErr("Dispatch", err)
	}
	Logger().Debug("kernel dispatched",
		"kernel", k.name,
		"dim", d.Dim,
		"global", d.Global,
		"args", len(args),
	)
	return newEvent(k.prog.ctx.q, cmd), nil
}

// Package compute is a host-side convenience layer over heterogeneous
// compute devices (GPU and accelerator command queues, device memory
// objects, compiled kernels).
//
// # Overview
//
// compute lets callers describe device-side work through type-checked Go
// constructs instead of raw handles and byte counts: linear buffers and
// formatted images with bounds- and access-checked transfers, kernel
// invocation with statically resolved arguments, and a waitable Event per
// asynchronous command for fine-grained dependency ordering.
//
// # Quick Start
//
//	import "github.com/gogpu/compute"
//
//	ctx, err := compute.NewContext()
//	if err != nil { ... }
//	defer ctx.Close()
//
//	buf, err := ctx.CreateBuffer(compute.MemFlags{}, 1024)
//	if err != nil { ... }
//	defer buf.Release()
//
//	ev, err := buf.Write(data)
//	if err != nil { ... }
//	if err := ev.Wait(); err != nil { ... }
//
// # Drivers
//
// Device access goes through the driver registry (see the driver
// package). The soft driver is an in-memory device that is always
// available; the opencl driver binds real hardware and is enabled with
// the opencl build tag.
//
// # Ordering
//
// Submissions return immediately with an Event. Command B only waits for
// command A when an Event from A is passed as a dependency to B; there
// is no implicit ordering between unrelated submissions, and submitted
// commands cannot be cancelled.
package compute

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)

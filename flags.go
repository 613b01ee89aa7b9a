package compute

// DeviceAccess controls whether kernels may read or write an allocation.
type DeviceAccess uint8

const (
	// DeviceReadWrite lets kernels both read and write. The zero value.
	DeviceReadWrite DeviceAccess = iota
	// DeviceReadOnly restricts kernels to reading.
	DeviceReadOnly
	// DeviceWriteOnly restricts kernels to writing.
	DeviceWriteOnly
)

// HostAccess controls which transfer directions the host may use.
// Violations are rejected host-side before any device command is issued.
type HostAccess uint8

const (
	// HostReadWrite permits both Read and Write. The zero value.
	HostReadWrite HostAccess = iota
	// HostReadOnly permits Read only.
	HostReadOnly
	// HostWriteOnly permits Write only.
	HostWriteOnly
	// HostNoAccess forbids both directions.
	HostNoAccess
)

// canRead reports whether the policy permits host reads.
func (a HostAccess) canRead() bool {
	return a == HostReadWrite || a == HostReadOnly
}

// canWrite reports whether the policy permits host writes.
func (a HostAccess) canWrite() bool {
	return a == HostReadWrite || a == HostWriteOnly
}

// HostPtrMode selects how a host pointer supplied at creation is used.
type HostPtrMode uint8

const (
	// HostPtrNone ignores any supplied host data. The zero value.
	HostPtrNone HostPtrMode = iota
	// HostPtrAlloc asks the driver for host-visible backing memory.
	HostPtrAlloc
	// HostPtrCopy seeds the allocation from the supplied data once.
	HostPtrCopy
	// HostPtrUse asks the driver to back the allocation with the
	// supplied memory directly. Drivers without host-unified memory
	// degrade this to HostPtrCopy.
	HostPtrUse
)

// MemFlags is the access-policy triple of a buffer or image allocation.
// The zero value grants full device and host access with no host
// pointer involvement.
type MemFlags struct {
	Device  DeviceAccess
	Host    HostAccess
	HostPtr HostPtrMode
}

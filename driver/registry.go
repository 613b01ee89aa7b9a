package driver

import (
	"sync"
)

// Factory opens a device instance. It returns ErrDeviceNotAvailable when
// the driver is compiled in but no usable device exists on this host.
type Factory func() (Device, error)

// registry holds registered drivers.
var (
	registryMu sync.RWMutex
	drivers    = make(map[string]Factory)
	// Priority order for driver selection (first available wins).
	// Hardware before emulation.
	driverPriority = []string{DriverOpenCL, DriverSoft}
)

// Driver name constants.
const (
	// DriverOpenCL is the name of the OpenCL hardware driver. It is
	// only registered when the module is built with the opencl tag.
	DriverOpenCL = "opencl"
	// DriverSoft is the name of the in-memory software driver. It is
	// always available.
	DriverSoft = "soft"
)

// Register registers a driver factory with the given name.
// This is typically called from init() functions in driver packages.
// If a driver with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	drivers[name] = factory
}

// Unregister removes a driver from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(drivers, name)
}

// Available returns a list of registered driver names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	return names
}

// IsRegistered checks if a driver with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := drivers[name]
	return ok
}

// Open opens a device by driver name.
// Returns ErrDeviceNotAvailable if the driver is not registered.
func Open(name string) (Device, error) {
	registryMu.RLock()
	factory, ok := drivers[name]
	registryMu.RUnlock()

	if !ok {
		return nil, ErrDeviceNotAvailable
	}
	return factory()
}

// Default opens the best available device based on priority.
// Drivers that fail to open are skipped; registration order decides
// among drivers outside the priority list.
func Default() (Device, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range driverPriority {
		if factory, ok := drivers[name]; ok {
			d, err := factory()
			if err == nil && d != nil {
				return d, nil
			}
		}
	}

	// Fallback: first driver that opens.
	for _, factory := range drivers {
		if d, err := factory(); err == nil && d != nil {
			return d, nil
		}
	}

	return nil, ErrDeviceNotAvailable
}

//go:build !opencl

// Package cl implements the driver interfaces on top of OpenCL 1.2
// hardware. Without the opencl build tag the package compiles to this
// stub and registers no driver, so contexts fall through to the next
// driver in priority order.
package cl

import (
	"github.com/gogpu/compute/driver"
)

// Open always reports the device unavailable in stub builds.
func Open() (driver.Device, error) {
	return nil, driver.ErrDeviceNotAvailable
}

package compute

import (
	"errors"
	"fmt"

	"github.com/gogpu/compute/driver"
)

// Sentinel errors for host-side precondition violations. These are all
// detected before any device command is issued.
var (
	// ErrOutOfRange indicates an offset/length pair or image region
	// extending past the allocation bounds.
	ErrOutOfRange = errors.New("compute: range out of bounds")

	// ErrHostAccess indicates a transfer direction forbidden by the
	// allocation's host access policy.
	ErrHostAccess = errors.New("compute: host access policy forbids operation")

	// ErrFormatMismatch indicates a host format whose base category,
	// component count or channel identity differs from the device
	// format. No conversion is ever performed.
	ErrFormatMismatch = errors.New("compute: host and device image formats do not match")

	// ErrEmptyRegion indicates an image region with a zero extent.
	ErrEmptyRegion = errors.New("compute: empty image region")

	// ErrInvalidPitch indicates a host pitch below its minimum, or a
	// non-zero slice pitch supplied for a 1D or 2D image.
	ErrInvalidPitch = errors.New("compute: invalid host pitch")

	// ErrInvalidArg indicates a kernel argument or transfer option that
	// cannot be represented (unsupported Go type, invalidate on read).
	ErrInvalidArg = errors.New("compute: invalid argument")

	// ErrInvalidDims indicates a dispatch geometry outside the 1..3
	// dimension range or with a nonpositive global extent.
	ErrInvalidDims = errors.New("compute: invalid dispatch dimensions")

	// ErrInvalidFormat indicates a format descriptor the fill encoder
	// cannot encode (unrecognized channel byte width).
	ErrInvalidFormat = errors.New("compute: invalid format descriptor")

	// ErrReleased indicates use of a buffer, image or context after
	// Release/Close.
	ErrReleased = errors.New("compute: released")
)

// ErrKernelNotFound reports a kernel name absent from a program. It is
// distinct from submission failures so callers can tell "you asked for
// something that doesn't exist" from "the device rejected a well-formed
// request". Re-exported from the driver package.
var ErrKernelNotFound = driver.ErrKernelNotFound

// SubmitError wraps a device-layer failure with the failing operation,
// the device status code when one exists, and an optional note. Device
// failures are never retried; they propagate to the caller.
type SubmitError struct {
	// Op names the failing driver entry point, e.g. "Dispatch" or
	// "UnmapBuffer".
	Op string
	// Code is the device status code, 0 if the driver reports none.
	Code int
	// Note is optional human-readable context.
	Note string
	// Err is the underlying driver error.
	Err error
}

func (e *SubmitError) Error() string {
	msg := "compute: " + e.Op + " failed"
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Code)
	}
	if e.Note != "" {
		msg += ": " + e.Note
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SubmitError) Unwrap() error { return e.Err }

// submitErr wraps err into a SubmitError unless it already is one.
func submitErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *SubmitError
	if errors.As(err, &se) {
		return err
	}
	return &SubmitError{Op: op, Err: err}
}

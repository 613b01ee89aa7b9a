package compute

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/gogpu/compute/driver"
)

// Arg is one kernel argument in its device representation: a byte size
// plus either a copied plain value, a device memory handle, or a
// local-scratch reservation. Arg values are built through exactly one of
// three constructors and are consumed by Invoke; they are not reusable
// long-lived entities.
//
//   - Buffer.Arg and Image.Arg pass a device allocation directly.
//   - Value copies a plain-data Go value byte for byte.
//   - Local and LocalBytes reserve device-local scratch memory.
//
// A value that fits none of the three rules is rejected when the Arg is
// constructed; the error surfaces from Invoke before any argument slot
// is bound.
type Arg struct {
	kind driver.ArgKind
	size int
	data []byte
	mem  driver.Mem
	err  error
}

// Value builds a plain-data kernel argument from v. The argument carries
// sizeof(T) bytes copied from v at construction time.
//
// T must have a flat, address-stable memory layout: booleans, integers,
// floats, complex numbers, and arrays or structs composed of those.
// Pointers, strings, slices, maps, channels, funcs, interfaces, uintptr
// and unsafe.Pointer are rejected, as is any type of size zero.
func Value[T any](v T) Arg {
	t := reflect.TypeOf(&v).Elem()
	if err := checkPlainData(t); err != nil {
		return Arg{err: err}
	}
	size := int(unsafe.Sizeof(v))
	if size == 0 {
		return Arg{err: fmt.Errorf("%w: zero-size type %s", ErrInvalidArg, t)}
	}
	data := make([]byte, size)
	copy(data, unsafe.Slice((*byte)(unsafe.Pointer(&v)), size))
	return Arg{kind: driver.ArgData, size: size, data: data}
}

// Local reserves device-local scratch memory for count elements of type
// T. Local memory is never backed by a host address: the argument's size
// is count × sizeof(T) and its data pointer is always null.
func Local[T any](count int) Arg {
	var zero T
	elem := int(unsafe.Sizeof(zero))
	if err := checkPlainData(reflect.TypeOf(&zero).Elem()); err != nil {
		return Arg{err: err}
	}
	if count <= 0 || elem == 0 {
		return Arg{err: fmt.Errorf("%w: local scratch of %d x %d bytes", ErrInvalidArg, count, elem)}
	}
	return Arg{kind: driver.ArgLocal, size: count * elem}
}

// LocalBytes reserves n bytes of device-local scratch memory.
func LocalBytes(n int) Arg {
	if n <= 0 {
		return Arg{err: fmt.Errorf("%w: local scratch of %d bytes", ErrInvalidArg, n)}
	}
	return Arg{kind: driver.ArgLocal, size: n}
}

// memArg builds a device-parameter argument from a memory handle.
func memArg(m driver.Mem) Arg {
	if m == nil {
		return Arg{err: fmt.Errorf("%w: released allocation", ErrInvalidArg)}
	}
	return Arg{kind: driver.ArgMem, size: m.Size(), mem: m}
}

// checkPlainData walks t and rejects any layout that is not flat and
// address-stable. Kernel arguments are copied raw into driver storage,
// so anything carrying a Go pointer or runtime header is meaningless on
// the device.
func checkPlainData(t reflect.Type) error {
	if t == nil {
		return fmt.Errorf("%w: untyped nil", ErrInvalidArg)
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return checkPlainData(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if err := checkPlainData(t.Field(i).Type); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: type %s is not plain data", ErrInvalidArg, t)
	}
}

// resolveArgs translates the ordered argument list into driver form,
// reusing scratch. The first invalid argument aborts the whole
// invocation; no slot past it is touched.
func resolveArgs(scratch []driver.Arg, args []Arg) ([]driver.Arg, error) {
	scratch = scratch[:0]
	for i, a := range args {
		if a.err != nil {
			return nil, fmt.Errorf("compute: argument %d: %w", i, a.err)
		}
		if a.size <= 0 {
			return nil, fmt.Errorf("compute: argument %d: %w: empty argument", i, ErrInvalidArg)
		}
		scratch = append(scratch, driver.Arg{
			Kind: a.kind,
			Size: a.size,
			Data: a.data,
			Mem:  a.mem,
		})
	}
	return scratch, nil
}

package compute

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/gogpu/compute/driver"
)

// Buffer is a linear device allocation of fixed size. A Buffer
// exclusively owns its device handle; Release frees it and invalidates
// the Buffer.
//
// Transfers go through a blocking host-visible mapping: the bytes are
// copied synchronously, then an asynchronous unmap command is issued
// and its Event returned. The data is only guaranteed durable and
// device-visible once that Event has been waited on.
type Buffer struct {
	q     driver.Queue
	buf   driver.Buffer
	size  int
	flags MemFlags

	// depScratch batches dependency handles per submission. Reset
	// before every use; stale entries would re-submit dependencies
	// from a previous, unrelated call.
	depScratch []driver.Command
}

// Size returns the allocation size in bytes.
func (b *Buffer) Size() int { return b.size }

// Flags returns the access-policy triple the Buffer was created with.
func (b *Buffer) Flags() MemFlags { return b.flags }

// Arg passes the Buffer as a kernel argument.
func (b *Buffer) Arg() Arg {
	if b.buf == nil {
		return Arg{err: fmt.Errorf("%w: buffer", ErrReleased)}
	}
	return memArg(b.buf)
}

// Release frees the device allocation. The Buffer must not be used
// afterwards. Safe to call more than once.
func (b *Buffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

// span resolves the effective offset and length of a transfer against
// the allocation bounds. hostLen is the length of the host slice.
// The whole-allocation form ignores the offset.
func (b *Buffer) span(cfg *xferConfig, hostLen int) (off, length int, err error) {
	off = cfg.offset
	length = cfg.length
	if length == 0 {
		length = hostLen
	}
	if cfg.whole {
		off = 0
		length = b.size
	}
	if length <= 0 {
		return 0, 0, fmt.Errorf("%w: empty transfer", ErrInvalidArg)
	}
	if off < 0 || off+length > b.size {
		return 0, 0, fmt.Errorf("%w: [%d, %d) exceeds buffer size %d", ErrOutOfRange, off, off+length, b.size)
	}
	if hostLen < length {
		return 0, 0, fmt.Errorf("%w: host slice holds %d of %d bytes", ErrOutOfRange, hostLen, length)
	}
	return off, length, nil
}

// Write copies src into the buffer and returns the Event of the
// asynchronous unmap that publishes the bytes. By default len(src)
// bytes are written at offset 0; see At, Len, Whole, Invalidate and
// After for per-call adjustments.
//
// The range and access checks run host-side: a violation fails before
// any device command is issued.
func (b *Buffer) Write(src []byte, opts ...TransferOption) (*Event, error) {
	if b.buf == nil {
		return nil, fmt.Errorf("%w: buffer", ErrReleased)
	}
	cfg := applyXfer(opts)
	off, length, err := b.span(&cfg, len(src))
	if err != nil {
		return nil, err
	}
	if !b.flags.Host.canWrite() {
		return nil, fmt.Errorf("%w: host may not write this buffer", ErrHostAccess)
	}

	if err := b.waitDeps(&cfg); err != nil {
		return nil, err
	}

	mode := driver.MapWrite
	if cfg.invalidate {
		mode |= driver.MapInvalidate
	}
	mapped, err := b.q.MapBuffer(b.buf, mode, off, length)
	if err != nil {
		return nil, submitErr("MapBuffer", err)
	}
	copy(mapped, src[:length])
	cmd, err := b.q.UnmapBuffer(b.buf, mapped)
	if err != nil {
		return nil, submitErr("UnmapBuffer", err)
	}
	Logger().Debug("buffer write", "offset", off, "bytes", length, "invalidate", cfg.invalidate)
	return newEvent(b.q, cmd), nil
}

// Read copies from the buffer into dst and returns the Event of the
// asynchronous unmap that completes the transfer. By default len(dst)
// bytes are read from offset 0.
func (b *Buffer) Read(dst []byte, opts ...TransferOption) (*Event, error) {
	if b.buf == nil {
		return nil, fmt.Errorf("%w: buffer", ErrReleased)
	}
	cfg := applyXfer(opts)
	if cfg.invalidate {
		return nil, fmt.Errorf("%w: invalidate on read", ErrInvalidArg)
	}
	off, length, err := b.span(&cfg, len(dst))
	if err != nil {
		return nil, err
	}
	if !b.flags.Host.canRead() {
		return nil, fmt.Errorf("%w: host may not read this buffer", ErrHostAccess)
	}

	if err := b.waitDeps(&cfg); err != nil {
		return nil, err
	}

	mapped, err := b.q.MapBuffer(b.buf, driver.MapRead, off, length)
	if err != nil {
		return nil, submitErr("MapBuffer", err)
	}
	copy(dst[:length], mapped)
	cmd, err := b.q.UnmapBuffer(b.buf, mapped)
	if err != nil {
		return nil, submitErr("UnmapBuffer", err)
	}
	Logger().Debug("buffer read", "offset", off, "bytes", length)
	return newEvent(b.q, cmd), nil
}

// waitDeps blocks until the call's dependencies have completed. The
// mapping that follows is itself blocking, so dependencies are settled
// up front rather than threaded through the map command.
func (b *Buffer) waitDeps(cfg *xferConfig) error {
	if len(cfg.deps) == 0 {
		return nil
	}
	b.depScratch = gatherDeps(b.depScratch, cfg.deps)
	if len(b.depScratch) == 0 {
		return nil
	}
	if err := b.q.WaitAll(b.depScratch); err != nil {
		return submitErr("WaitAll", err)
	}
	return nil
}

// WriteElems writes a sequence of plain-data elements to b, starting at
// element index elemOff. Byte offset and length are computed as
// index × sizeof(T) and count × sizeof(T); configurations whose
// multiplication exceeds the allocation size are rejected before any
// device command.
func WriteElems[T any](b *Buffer, elems []T, elemOff int, opts ...TransferOption) (*Event, error) {
	view, byteOff, err := elemSpan(b, elems, elemOff)
	if err != nil {
		return nil, err
	}
	return b.Write(view, append(opts, At(byteOff))...)
}

// ReadElems reads a sequence of plain-data elements from b, starting at
// element index elemOff, into elems.
func ReadElems[T any](b *Buffer, elems []T, elemOff int, opts ...TransferOption) (*Event, error) {
	view, byteOff, err := elemSpan(b, elems, elemOff)
	if err != nil {
		return nil, err
	}
	return b.Read(view, append(opts, At(byteOff))...)
}

// elemSpan validates the element type and computes the raw byte view
// and byte offset of a typed transfer.
func elemSpan[T any](b *Buffer, elems []T, elemOff int) ([]byte, int, error) {
	if b == nil || b.buf == nil {
		return nil, 0, fmt.Errorf("%w: buffer", ErrReleased)
	}
	var zero T
	if err := checkPlainData(reflect.TypeOf(&zero).Elem()); err != nil {
		return nil, 0, err
	}
	elemSize := int(unsafe.Sizeof(zero))
	if elemSize == 0 {
		return nil, 0, fmt.Errorf("%w: zero-size element type", ErrInvalidArg)
	}
	if len(elems) == 0 {
		return nil, 0, fmt.Errorf("%w: empty transfer", ErrInvalidArg)
	}
	if elemOff < 0 {
		return nil, 0, fmt.Errorf("%w: element offset %d", ErrOutOfRange, elemOff)
	}
	maxElems := b.size / elemSize
	if elemOff > maxElems || len(elems) > maxElems-elemOff {
		return nil, 0, fmt.Errorf("%w: %d elements at index %d exceed buffer capacity %d",
			ErrOutOfRange, len(elems), elemOff, maxElems)
	}
	view := unsafe.Slice((*byte)(unsafe.Pointer(&elems[0])), len(elems)*elemSize)
	return view, elemOff * elemSize, nil
}

package compute

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/compute/driver"
)

// ImageType is the dimensionality class of an image.
type ImageType = driver.ImageType

// Image dimensionality classes. For array types the depth slot of the
// descriptor doubles as the layer count (1D arrays keep their layer
// count in Height, matching the device convention).
const (
	Image1D      = driver.Image1D
	Image2D      = driver.Image2D
	Image3D      = driver.Image3D
	Image1DArray = driver.Image1DArray
	Image2DArray = driver.Image2DArray
)

// ImageDesc describes a device image: dimensionality, extents and the
// device channel format.
//
// Extent conventions per type:
//
//	Image1D:      width
//	Image2D:      width, height
//	Image3D:      width, height, depth
//	Image1DArray: width, height = layer count
//	Image2DArray: width, height, depth = layer count
//
// Zero Height or Depth are normalized to 1.
type ImageDesc struct {
	Type                 ImageType
	Width, Height, Depth int
	Order                ChannelOrder
	DataType             ChannelType
}

// PixelSize returns the device pixel width in bytes.
func (d ImageDesc) PixelSize() int {
	return d.Order.Count() * d.DataType.Size()
}

// normalize fills defaulted extents.
func (d *ImageDesc) normalize() {
	if d.Height == 0 {
		d.Height = 1
	}
	if d.Depth == 0 {
		d.Depth = 1
	}
}

func (d *ImageDesc) validate() error {
	d.normalize()
	if d.Width <= 0 || d.Height <= 0 || d.Depth <= 0 {
		return fmt.Errorf("%w: image extent %dx%dx%d", ErrInvalidArg, d.Width, d.Height, d.Depth)
	}
	switch d.Type {
	case Image1D:
		if d.Height != 1 || d.Depth != 1 {
			return fmt.Errorf("%w: 1D image with extent %dx%dx%d", ErrInvalidArg, d.Width, d.Height, d.Depth)
		}
	case Image2D, Image1DArray:
		if d.Depth != 1 {
			return fmt.Errorf("%w: depth %d on a 2-axis image", ErrInvalidArg, d.Depth)
		}
	case Image3D, Image2DArray:
	default:
		return fmt.Errorf("%w: image type %d", ErrInvalidArg, d.Type)
	}
	if c := d.Order.Count(); c < 1 || c > 4 {
		return fmt.Errorf("%w: channel order", ErrInvalidFormat)
	}
	switch d.DataType.Size() {
	case 1, 2, 4:
	default:
		return fmt.Errorf("%w: channel type width %d", ErrInvalidFormat, d.DataType.Size())
	}
	return nil
}

func (d ImageDesc) driverDesc() driver.ImageDesc {
	return driver.ImageDesc{
		Type:         d.Type,
		Width:        d.Width,
		Height:       d.Height,
		Depth:        d.Depth,
		PixelSize:    d.PixelSize(),
		ChannelCount: d.Order.Count(),
		ChannelBytes: d.DataType.Size(),
		Base:         driver.BaseKind(d.DataType.Base()),
		Normalized:   d.DataType.Normalized(),
	}
}

// Region selects a sub-volume of an image. All extents count pixels;
// unused axes carry extent 1.
type Region struct {
	X, Y, Z              int
	Width, Height, Depth int
}

// Region1D selects a span of a 1D image.
func Region1D(x, width int) Region {
	return Region{X: x, Width: width, Height: 1, Depth: 1}
}

// Region2D selects a rectangle of a 2D image (or one layer row span of
// a 1D array).
func Region2D(x, y, width, height int) Region {
	return Region{X: x, Y: y, Width: width, Height: height, Depth: 1}
}

// Region3D selects a box of a 3D image or a layer range of a 2D array.
func Region3D(x, y, z, width, height, depth int) Region {
	return Region{X: x, Y: y, Z: z, Width: width, Height: height, Depth: depth}
}

func (r Region) driverRegion() driver.Region {
	return driver.Region{
		Origin: [3]int{r.X, r.Y, r.Z},
		Extent: [3]int{r.Width, r.Height, r.Depth},
	}
}

// Color is a 4-component fill color. Components are addressed by
// Channel identity: index 0 is R, 3 is A.
type Color [4]float32

// Image is a device-resident multi-dimensional pixel grid with a
// bit-packed channel format. An Image exclusively owns its device
// handle.
type Image struct {
	q     driver.Queue
	img   driver.Image
	desc  ImageDesc
	flags MemFlags

	// depScratch batches dependency handles per submission; reset
	// before every use.
	depScratch []driver.Command
}

// Desc returns the creation descriptor.
func (img *Image) Desc() ImageDesc { return img.desc }

// Flags returns the access-policy triple the Image was created with.
func (img *Image) Flags() MemFlags { return img.flags }

// Bounds returns the region covering the whole image.
func (img *Image) Bounds() Region {
	return Region{Width: img.desc.Width, Height: img.desc.Height, Depth: img.desc.Depth}
}

// PixelSize returns the device pixel width in bytes.
func (img *Image) PixelSize() int { return img.desc.PixelSize() }

// Arg passes the Image as a kernel argument.
func (img *Image) Arg() Arg {
	if img.img == nil {
		return Arg{err: fmt.Errorf("%w: image", ErrReleased)}
	}
	return memArg(img.img)
}

// Release frees the device allocation. Safe to call more than once.
func (img *Image) Release() {
	if img.img != nil {
		img.img.Release()
		img.img = nil
	}
}

// MatchFormat reports whether a host format is byte-compatible with the
// device format: base category, component count and every component
// identity must match positionally. No widening, narrowing or channel
// reordering is ever performed; a mismatch is a hard transfer failure.
func (img *Image) MatchFormat(hf HostFormat) bool {
	if hf.DataType.Base() != img.desc.DataType.Base() {
		return false
	}
	if hf.Order.Count() != img.desc.Order.Count() {
		return false
	}
	for i := 0; i < hf.Order.Count(); i++ {
		if hf.Order.Channel(i) != img.desc.Order.Channel(i) {
			return false
		}
	}
	return true
}

// validateRegion applies the shared region preconditions.
func (img *Image) validateRegion(r Region) error {
	if r.Width <= 0 || r.Height <= 0 || r.Depth <= 0 {
		return fmt.Errorf("%w: %dx%dx%d", ErrEmptyRegion, r.Width, r.Height, r.Depth)
	}
	if r.X < 0 || r.Y < 0 || r.Z < 0 ||
		r.X+r.Width > img.desc.Width ||
		r.Y+r.Height > img.desc.Height ||
		r.Z+r.Depth > img.desc.Depth {
		return fmt.Errorf("%w: region exceeds image dimensions %dx%dx%d",
			ErrOutOfRange, img.desc.Width, img.desc.Height, img.desc.Depth)
	}
	return nil
}

// hostPitches negotiates the effective host row and slice pitch for a
// transfer of r described by hf. Images without a third axis reject any
// supplied slice pitch.
func (img *Image) hostPitches(r Region, hf HostFormat) (rowPitch, slicePitch int, err error) {
	if (img.desc.Type == Image1D || img.desc.Type == Image2D) && hf.SlicePitch != 0 {
		return 0, 0, fmt.Errorf("%w: slice pitch must be 0 for 1D or 2D images", ErrInvalidPitch)
	}
	pixel := hf.PixelSize()
	rowPitch = hf.RowPitch
	if rowPitch == 0 {
		rowPitch = r.Width * pixel
	}
	if rowPitch < r.Width*pixel {
		return 0, 0, fmt.Errorf("%w: row pitch %d below %d", ErrInvalidPitch, rowPitch, r.Width*pixel)
	}
	slicePitch = hf.SlicePitch
	if slicePitch == 0 {
		slicePitch = r.Height * rowPitch
	}
	if slicePitch < r.Height*rowPitch {
		return 0, 0, fmt.Errorf("%w: slice pitch %d below %d", ErrInvalidPitch, slicePitch, r.Height*rowPitch)
	}
	return rowPitch, slicePitch, nil
}

// Write copies host pixels into the region through a blocking mapping
// and returns the Event of the asynchronous unmap. src is laid out per
// hf; it must cover region.Depth × effective slice pitch bytes.
//
// All preconditions (access policy, region bounds, pitch, format match)
// are checked host-side before any device command is issued.
func (img *Image) Write(src []byte, hf HostFormat, r Region, opts ...TransferOption) (*Event, error) {
	return img.mapped(src, hf, r, opts, true)
}

// Read copies the region into host pixels through a blocking mapping
// and returns the Event of the asynchronous unmap. dst must cover
// region.Depth × effective slice pitch bytes.
func (img *Image) Read(dst []byte, hf HostFormat, r Region, opts ...TransferOption) (*Event, error) {
	return img.mapped(dst, hf, r, opts, false)
}

// mapped is the shared map/copy/unmap transfer path.
func (img *Image) mapped(host []byte, hf HostFormat, r Region, opts []TransferOption, toDevice bool) (*Event, error) {
	if img.img == nil {
		return nil, fmt.Errorf("%w: image", ErrReleased)
	}
	cfg := applyXfer(opts)
	if toDevice {
		if !img.flags.Host.canWrite() {
			return nil, fmt.Errorf("%w: host may not write this image", ErrHostAccess)
		}
	} else {
		if cfg.invalidate {
			return nil, fmt.Errorf("%w: invalidate on read", ErrInvalidArg)
		}
		if !img.flags.Host.canRead() {
			return nil, fmt.Errorf("%w: host may not read this image", ErrHostAccess)
		}
	}
	if err := img.validateRegion(r); err != nil {
		return nil, err
	}
	hostRow, hostSlice, err := img.hostPitches(r, hf)
	if err != nil {
		return nil, err
	}
	if !img.MatchFormat(hf) {
		return nil, fmt.Errorf("%w: host %d x %s vs device %d x %s",
			ErrFormatMismatch,
			hf.Order.Count(), hf.DataType.Base(),
			img.desc.Order.Count(), img.desc.DataType.Base())
	}
	if need := r.Depth * hostSlice; len(host) < need {
		return nil, fmt.Errorf("%w: host slice holds %d of %d bytes", ErrOutOfRange, len(host), need)
	}

	if err := img.waitDeps(&cfg); err != nil {
		return nil, err
	}

	mode := driver.MapRead
	if toDevice {
		mode = driver.MapWrite
		if cfg.invalidate {
			mode |= driver.MapInvalidate
		}
	}
	mapped, devRow, devSlice, err := img.q.MapImage(img.img, mode, r.driverRegion())
	if err != nil {
		return nil, submitErr("MapImage", err)
	}
	// A zero device slice pitch means a 1D or 2D mapping; reuse the row
	// pitch so the tier selection below sees comparable values.
	if devSlice == 0 {
		devSlice = devRow * r.Height
	}

	copyTiered(mapped, host, toDevice, devRow, devSlice, hostRow, hostSlice, r, r.Width*img.PixelSize())

	cmd, err := img.q.UnmapImage(img.img, mapped)
	if err != nil {
		return nil, submitErr("UnmapImage", err)
	}
	return newEvent(img.q, cmd), nil
}

// copyTiered moves region pixels between the mapped device block and
// host memory. Matching slice pitches permit one contiguous copy;
// matching row pitches permit one copy per slice; anything else falls
// back to row-by-row. The fallback stays conservative even when the
// pitch mismatch lies entirely in padding.
//
// The mapped block ends at the last byte of the region's final row, so
// every copy is clamped to the bytes the window actually holds. Only
// the copy touching the final row can hit the clamp; earlier rows and
// slices have a full pitch of mapped bytes ahead of them.
func copyTiered(dev, host []byte, toDevice bool, devRow, devSlice, hostRow, hostSlice int, r Region, rowBytes int) {
	rowSize := min(devRow, hostRow)
	sliceSize := min(devSlice, hostSlice)
	regionSize := r.Depth * hostSlice
	devEnd := (r.Depth-1)*devSlice + (r.Height-1)*devRow + rowBytes

	move := func(dst, src []byte, n int) {
		copy(dst[:n], src[:n])
	}
	pick := func(devOff, hostOff, n int) {
		if rest := devEnd - devOff; n > rest {
			n = rest
		}
		if toDevice {
			move(dev[devOff:], host[hostOff:], n)
		} else {
			move(host[hostOff:], dev[devOff:], n)
		}
	}

	switch {
	case hostSlice == devSlice:
		Logger().Debug("image copy", "tier", "region", "bytes", regionSize)
		pick(0, 0, regionSize)
	case hostRow == devRow:
		Logger().Debug("image copy", "tier", "slice", "slices", r.Depth)
		for z := 0; z < r.Depth; z++ {
			pick(z*devSlice, z*hostSlice, sliceSize)
		}
	default:
		Logger().Debug("image copy", "tier", "row", "rows", r.Depth*r.Height)
		for z := 0; z < r.Depth; z++ {
			for y := 0; y < r.Height; y++ {
				pick(z*devSlice+y*devRow, z*hostSlice+y*hostRow, rowSize)
			}
		}
	}
}

// WriteDirect copies host pixels into the region with one enqueued
// device copy instead of map/copy/unmap. The format match is required
// up front: no host-side byte copy happens, so a mismatched layout
// cannot be caught mid-transfer.
func (img *Image) WriteDirect(src []byte, hf HostFormat, r Region, opts ...TransferOption) (*Event, error) {
	return img.direct(src, hf, r, opts, true)
}

// ReadDirect copies the region into host pixels with one enqueued
// device copy.
func (img *Image) ReadDirect(dst []byte, hf HostFormat, r Region, opts ...TransferOption) (*Event, error) {
	return img.direct(dst, hf, r, opts, false)
}

func (img *Image) direct(host []byte, hf HostFormat, r Region, opts []TransferOption, toDevice bool) (*Event, error) {
	if img.img == nil {
		return nil, fmt.Errorf("%w: image", ErrReleased)
	}
	cfg := applyXfer(opts)
	if toDevice {
		if !img.flags.Host.canWrite() {
			return nil, fmt.Errorf("%w: host may not write this image", ErrHostAccess)
		}
	} else {
		if cfg.invalidate {
			return nil, fmt.Errorf("%w: invalidate on read", ErrInvalidArg)
		}
		if !img.flags.Host.canRead() {
			return nil, fmt.Errorf("%w: host may not read this image", ErrHostAccess)
		}
	}
	if err := img.validateRegion(r); err != nil {
		return nil, err
	}
	if !img.MatchFormat(hf) {
		return nil, fmt.Errorf("%w: host %d x %s vs device %d x %s",
			ErrFormatMismatch,
			hf.Order.Count(), hf.DataType.Base(),
			img.desc.Order.Count(), img.desc.DataType.Base())
	}
	hostRow, hostSlice, err := img.hostPitches(r, hf)
	if err != nil {
		return nil, err
	}
	if need := r.Depth * hostSlice; len(host) < need {
		return nil, fmt.Errorf("%w: host slice holds %d of %d bytes", ErrOutOfRange, len(host), need)
	}

	// Images without a third axis go out with slice pitch 0 per the
	// device convention.
	wireSlice := hostSlice
	if img.desc.Type == Image1D || img.desc.Type == Image2D {
		wireSlice = 0
	}

	img.depScratch = gatherDeps(img.depScratch, cfg.deps)
	var cmd driver.Command
	if toDevice {
		cmd, err = img.q.WriteImage(img.img, r.driverRegion(), hostRow, wireSlice, host, img.depScratch)
		if err != nil {
			return nil, submitErr("WriteImage", err)
		}
	} else {
		cmd, err = img.q.ReadImage(img.img, r.driverRegion(), hostRow, wireSlice, host, img.depScratch)
		if err != nil {
			return nil, submitErr("ReadImage", err)
		}
	}
	return newEvent(img.q, cmd), nil
}

// Fill sets every pixel of the region to color, encoded into the
// device's native channel representation. Filling counts as a host
// write for the access policy.
func (img *Image) Fill(color Color, r Region, opts ...TransferOption) (*Event, error) {
	if img.img == nil {
		return nil, fmt.Errorf("%w: image", ErrReleased)
	}
	if !img.flags.Host.canWrite() {
		return nil, fmt.Errorf("%w: host may not fill this image", ErrHostAccess)
	}
	if err := img.validateRegion(r); err != nil {
		return nil, err
	}
	pixel, err := encodeFillColor(color, img.desc.Order, img.desc.DataType)
	if err != nil {
		return nil, err
	}

	cfg := applyXfer(opts)
	img.depScratch = gatherDeps(img.depScratch, cfg.deps)
	cmd, err := img.q.FillImage(img.img, pixel, r.driverRegion(), img.depScratch)
	if err != nil {
		return nil, submitErr("FillImage", err)
	}
	Logger().Debug("image fill", "width", r.Width, "height", r.Height, "depth", r.Depth)
	return newEvent(img.q, cmd), nil
}

// waitDeps settles the call's dependencies before a blocking map.
func (img *Image) waitDeps(cfg *xferConfig) error {
	if len(cfg.deps) == 0 {
		return nil
	}
	img.depScratch = gatherDeps(img.depScratch, cfg.deps)
	if len(img.depScratch) == 0 {
		return nil
	}
	if err := img.q.WaitAll(img.depScratch); err != nil {
		return submitErr("WaitAll", err)
	}
	return nil
}

// encodeFillColor encodes a 4-component color into the device channel
// representation. Float and normalized-integer formats store four raw
// float32 values; signed and unsigned integer formats store four values
// cast to the matching width. Slot i takes the color component named by
// channel i of the device order, and all four slots are always encoded;
// the device consumes as many as the format declares.
func encodeFillColor(color Color, order ChannelOrder, t ChannelType) ([]byte, error) {
	var chans [4]float32
	for i := 0; i < 4; i++ {
		chans[i] = color[order.Channel(i)]
	}

	if t.Base() == BaseFloat || t.Normalized() {
		buf := make([]byte, 16)
		for i, v := range chans {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
		}
		return buf, nil
	}

	size := t.Size()
	switch size {
	case 1, 2, 4:
	default:
		return nil, fmt.Errorf("%w: fill with channel width %d", ErrInvalidFormat, size)
	}
	buf := make([]byte, 4*size)
	for i, v := range chans {
		// Signed and unsigned widths share the two's complement bit
		// patterns after the cast.
		var bits uint32
		if t.Base() == BaseInt {
			bits = uint32(int32(v))
		} else {
			bits = uint32(v)
		}
		switch size {
		case 1:
			buf[i] = byte(bits)
		case 2:
			binary.LittleEndian.PutUint16(buf[2*i:], uint16(bits))
		case 4:
			binary.LittleEndian.PutUint32(buf[4*i:], bits)
		}
	}
	return buf, nil
}

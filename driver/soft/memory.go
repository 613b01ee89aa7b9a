package soft

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/compute/driver"
)

// memObject is a host-backed device allocation.
type memObject struct {
	data     []byte
	released atomic.Bool
}

// Size returns the allocation size in bytes.
func (m *memObject) Size() int { return len(m.data) }

// Release marks the allocation freed. The backing slice stays valid for
// commands already in flight.
func (m *memObject) Release() { m.released.Store(true) }

func (m *memObject) live() error {
	if m.released.Load() {
		return driver.ErrClosed
	}
	return nil
}

// image is a pitch-linear host-backed image.
type image struct {
	memObject
	desc       driver.ImageDesc
	rowPitch   int
	slicePitch int
}

func (im *image) Desc() driver.ImageDesc { return im.desc }
func (im *image) RowPitch() int          { return im.rowPitch }
func (im *image) SlicePitch() int        { return im.slicePitch }

// originOffset returns the byte offset of a region origin.
func (im *image) originOffset(r driver.Region) int {
	return r.Origin[2]*im.slicePitch + r.Origin[1]*im.rowPitch + r.Origin[0]*im.desc.PixelSize
}

// regionInBounds checks a region against the image extents.
func (im *image) regionInBounds(r driver.Region) error {
	for i, dim := range [3]int{im.desc.Width, im.desc.Height, im.desc.Depth} {
		if r.Origin[i] < 0 || r.Extent[i] <= 0 || r.Origin[i]+r.Extent[i] > dim {
			return fmt.Errorf("soft: region axis %d [%d, %d) exceeds %d",
				i, r.Origin[i], r.Origin[i]+r.Extent[i], dim)
		}
	}
	return nil
}

// copyHost moves region pixels between the image backing store and a
// host layout described by rowPitch and slicePitch.
func (im *image) copyHost(host []byte, r driver.Region, rowPitch, slicePitch int, toDevice bool) error {
	if err := im.regionInBounds(r); err != nil {
		return err
	}
	if rowPitch == 0 {
		rowPitch = r.Extent[0] * im.desc.PixelSize
	}
	if slicePitch == 0 {
		slicePitch = rowPitch * r.Extent[1]
	}
	rowBytes := r.Extent[0] * im.desc.PixelSize
	base := im.originOffset(r)
	for z := 0; z < r.Extent[2]; z++ {
		for y := 0; y < r.Extent[1]; y++ {
			dev := im.data[base+z*im.slicePitch+y*im.rowPitch:]
			hst := host[z*slicePitch+y*rowPitch:]
			if toDevice {
				copy(dev[:rowBytes], hst[:rowBytes])
			} else {
				copy(hst[:rowBytes], dev[:rowBytes])
			}
		}
	}
	return nil
}

// fill stamps one storage-form pixel over the region.
func (im *image) fill(pixel []byte, r driver.Region) error {
	if err := im.regionInBounds(r); err != nil {
		return err
	}
	ps := im.desc.PixelSize
	base := im.originOffset(r)
	for z := 0; z < r.Extent[2]; z++ {
		for y := 0; y < r.Extent[1]; y++ {
			row := im.data[base+z*im.slicePitch+y*im.rowPitch:]
			for x := 0; x < r.Extent[0]; x++ {
				copy(row[x*ps:(x+1)*ps], pixel)
			}
		}
	}
	return nil
}


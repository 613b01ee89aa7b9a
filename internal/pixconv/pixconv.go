// Package pixconv converts fill-color encodings into image storage
// form. It implements the conversion a compute device performs when it
// consumes a fill command: float and normalized formats arrive as four
// raw float32 components, integer formats as four components of the
// channel width.
package pixconv

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/compute/driver"
)

// StoragePixel converts an encoded fill color into one storage-form
// pixel of desc. Only the declared channel count is consumed.
func StoragePixel(desc driver.ImageDesc, encoded []byte) ([]byte, error) {
	out := make([]byte, desc.PixelSize)
	w := desc.ChannelBytes

	floatIn := desc.Base == driver.BaseFloat || desc.Normalized
	for c := 0; c < desc.ChannelCount; c++ {
		dst := out[c*w:]
		if floatIn {
			f := math.Float32frombits(binary.LittleEndian.Uint32(encoded[4*c:]))
			if err := storeComponent(dst, f, desc); err != nil {
				return nil, err
			}
			continue
		}
		// Integer encodings already carry storage width.
		copy(dst[:w], encoded[c*w:(c+1)*w])
	}
	return out, nil
}

// storeComponent writes one float component in storage form.
func storeComponent(dst []byte, f float32, desc driver.ImageDesc) error {
	w := desc.ChannelBytes
	switch {
	case desc.Base == driver.BaseFloat && w == 4:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(f))
	case desc.Base == driver.BaseFloat && w == 2:
		binary.LittleEndian.PutUint16(dst, Float16Bits(f))
	case desc.Normalized && desc.Base == driver.BaseUInt:
		limit := float64(uint64(1)<<(8*w) - 1)
		v := uint64(math.Round(clamp(float64(f), 0, 1) * limit))
		putUint(dst, w, v)
	case desc.Normalized && desc.Base == driver.BaseInt:
		limit := float64(uint64(1)<<(8*w-1) - 1)
		v := int64(math.Round(clamp(float64(f), -1, 1) * limit))
		putUint(dst, w, uint64(v))
	default:
		return fmt.Errorf("pixconv: channel width %d", w)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func putUint(dst []byte, w int, v uint64) {
	switch w {
	case 1:
		dst[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	}
}

// Float16Bits converts a float32 to IEEE 754 half-precision bits with
// round-to-nearest-even.
func Float16Bits(f float32) uint16 {
	b := math.Float32bits(f)
	sign := uint16(b>>16) & 0x8000
	exp := int32(b>>23&0xFF) - 127 + 15
	mant := b & 0x7FFFFF

	switch {
	case exp >= 31: // overflow or inf/nan
		if b&0x7FFFFFFF > 0x7F800000 {
			return sign | 0x7E00 // nan
		}
		return sign | 0x7C00 // inf
	case exp <= 0: // subnormal or zero
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		shift := uint32(14 - exp)
		half := uint16(mant >> shift)
		rem := mant & (1<<shift - 1)
		mid := uint32(1) << (shift - 1)
		if rem > mid || (rem == mid && half&1 != 0) {
			half++
		}
		return sign | half
	default:
		half := sign | uint16(exp)<<10 | uint16(mant>>13)
		rem := mant & 0x1FFF
		if rem > 0x1000 || (rem == 0x1000 && half&1 != 0) {
			half++
		}
		return half
	}
}

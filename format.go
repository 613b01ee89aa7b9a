package compute

// Image format descriptors are bit-packed integers so that every derived
// query (component count, per-component identity, byte width, base
// category, normalized flag) is a pure shift-and-mask instead of a
// lookup table. The raw packing is internal; only the accessor methods
// below are part of the API.
//
// ChannelOrder layout (64 bit):
//
//	[ 32 bit device constant | 8 bit channel count | 4x 4 bit channel id | 8 bit unused ]
//
// ChannelType layout (64 bit):
//
//	[ 32 bit device constant | 16 bit byte width | 8 bit base category | 8 bit normalized flag ]
//
// HostDataType layout (16 bit):
//
//	[ 8 bit id | 4 bit byte width | 4 bit base category ]

// BaseType is the numeric category of a channel component.
type BaseType uint8

const (
	BaseInt BaseType = iota
	BaseUInt
	BaseFloat
)

// String returns the category name.
func (b BaseType) String() string {
	switch b {
	case BaseInt:
		return "int"
	case BaseUInt:
		return "uint"
	case BaseFloat:
		return "float"
	}
	return "unknown"
}

// Channel identifies one color channel.
type Channel uint8

const (
	ChannelR Channel = iota
	ChannelG
	ChannelB
	ChannelA
)

// String returns the channel letter.
func (c Channel) String() string {
	switch c {
	case ChannelR:
		return "R"
	case ChannelG:
		return "G"
	case ChannelB:
		return "B"
	case ChannelA:
		return "A"
	}
	return "?"
}

// Device-side format constants (OpenCL 1.2 image format values).
const (
	clOrderR     = 0x10B0
	clOrderRG    = 0x10B2
	clOrderRGBA  = 0x10B5
	clOrderBGRA  = 0x10B6
	clOrderSRGBA = 0x10C1

	clTypeSnormInt8   = 0x10D0
	clTypeSnormInt16  = 0x10D1
	clTypeUnormInt8   = 0x10D2
	clTypeUnormInt16  = 0x10D3
	clTypeSignedInt8  = 0x10D7
	clTypeSignedInt16 = 0x10D8
	clTypeSignedInt32 = 0x10D9
	clTypeUnsignedI8  = 0x10DA
	clTypeUnsignedI16 = 0x10DB
	clTypeUnsignedI32 = 0x10DC
	clTypeHalfFloat   = 0x10DD
	clTypeFloat       = 0x10DE
)

// packOrder assembles a ChannelOrder from the device constant, the
// component count and the four channel id nibbles. Unused trailing slots
// repeat the last meaningful channel, matching the device convention.
func packOrder(clConst uint64, count int, c0, c1, c2, c3 Channel) ChannelOrder {
	return ChannelOrder(clConst<<32 |
		uint64(count)<<24 |
		uint64(c0)<<20 | uint64(c1)<<16 | uint64(c2)<<12 | uint64(c3)<<8)
}

// ChannelOrder specifies the number and identity of the components of a
// device image. The predefined values cover the minimal format set every
// OpenCL 1.2 device supports.
type ChannelOrder uint64

var (
	OrderR     = packOrder(clOrderR, 1, ChannelR, ChannelR, ChannelR, ChannelR)
	OrderRG    = packOrder(clOrderRG, 2, ChannelR, ChannelG, ChannelG, ChannelG)
	OrderRGBA  = packOrder(clOrderRGBA, 4, ChannelR, ChannelG, ChannelB, ChannelA)
	OrderBGRA  = packOrder(clOrderBGRA, 4, ChannelB, ChannelG, ChannelR, ChannelA)
	OrderSRGBA = packOrder(clOrderSRGBA, 4, ChannelR, ChannelG, ChannelB, ChannelA)
)

// DeviceConstant returns the raw device format constant.
func (o ChannelOrder) DeviceConstant() uint32 { return uint32(o >> 32) }

// Count returns the number of components per pixel.
func (o ChannelOrder) Count() int { return int(o>>24) & 0xFF }

// Channel returns the identity of component i (0 to 3).
func (o ChannelOrder) Channel(i int) Channel {
	return Channel((o >> (20 - 4*uint(i))) & 0xF)
}

// packType assembles a ChannelType from the device constant, the
// per-component byte width, the base category and the normalized flag.
func packType(clConst uint64, size int, base BaseType, normalized bool) ChannelType {
	v := clConst<<32 | uint64(size)<<16 | uint64(base)<<8
	if normalized {
		v |= 1
	}
	return ChannelType(v)
}

// ChannelType specifies the numeric representation of each component of
// a device image.
type ChannelType uint64

var (
	TypeSnormInt8  = packType(clTypeSnormInt8, 1, BaseInt, true)
	TypeSnormInt16 = packType(clTypeSnormInt16, 2, BaseInt, true)
	TypeUnormInt8  = packType(clTypeUnormInt8, 1, BaseUInt, true)
	TypeUnormInt16 = packType(clTypeUnormInt16, 2, BaseUInt, true)
	TypeInt8       = packType(clTypeSignedInt8, 1, BaseInt, false)
	TypeInt16      = packType(clTypeSignedInt16, 2, BaseInt, false)
	TypeInt32      = packType(clTypeSignedInt32, 4, BaseInt, false)
	TypeUInt8      = packType(clTypeUnsignedI8, 1, BaseUInt, false)
	TypeUInt16     = packType(clTypeUnsignedI16, 2, BaseUInt, false)
	TypeUInt32     = packType(clTypeUnsignedI32, 4, BaseUInt, false)
	TypeHalf       = packType(clTypeHalfFloat, 2, BaseFloat, false)
	TypeFloat      = packType(clTypeFloat, 4, BaseFloat, false)
)

// DeviceConstant returns the raw device format constant.
func (t ChannelType) DeviceConstant() uint32 { return uint32(t >> 32) }

// Size returns the per-component width in bytes.
func (t ChannelType) Size() int { return int(t>>16) & 0xFFFF }

// Base returns the numeric category of the components.
func (t ChannelType) Base() BaseType { return BaseType(t>>8) & 0xFF }

// Normalized reports whether integer components are normalized to [0,1]
// or [-1,1] when sampled.
func (t ChannelType) Normalized() bool { return t&1 != 0 }

// HostDataType specifies the numeric representation of one component of
// caller-owned image memory.
type HostDataType uint16

// packHostType assembles a HostDataType from an id, a byte width and a
// base category.
func packHostType(id, size int, base BaseType) HostDataType {
	return HostDataType(id<<8 | size<<4 | int(base))
}

var (
	HostInt8    = packHostType(0, 1, BaseInt)
	HostInt16   = packHostType(1, 2, BaseInt)
	HostInt32   = packHostType(2, 4, BaseInt)
	HostUInt8   = packHostType(3, 1, BaseUInt)
	HostUInt16  = packHostType(4, 2, BaseUInt)
	HostUInt32  = packHostType(5, 4, BaseUInt)
	HostHalf    = packHostType(6, 2, BaseFloat)
	HostFloat32 = packHostType(7, 4, BaseFloat)
)

// Size returns the per-component width in bytes.
func (t HostDataType) Size() int { return int(t>>4) & 0xF }

// Base returns the numeric category of the components.
func (t HostDataType) Base() BaseType { return BaseType(t & 0xF) }

// HostOrder specifies the explicit component list of caller-owned image
// memory, up to four channels.
type HostOrder uint32

// packHostOrder assembles a HostOrder with the same nibble layout as the
// device ChannelOrder, minus the device constant.
func packHostOrder(count int, c0, c1, c2, c3 Channel) HostOrder {
	return HostOrder(uint32(count)<<24 |
		uint32(c0)<<20 | uint32(c1)<<16 | uint32(c2)<<12 | uint32(c3)<<8)
}

var (
	HostOrderR    = packHostOrder(1, ChannelR, ChannelR, ChannelR, ChannelR)
	HostOrderRG   = packHostOrder(2, ChannelR, ChannelG, ChannelG, ChannelG)
	HostOrderRGBA = packHostOrder(4, ChannelR, ChannelG, ChannelB, ChannelA)
	HostOrderBGRA = packHostOrder(4, ChannelB, ChannelG, ChannelR, ChannelA)
)

// Count returns the number of components per pixel.
func (o HostOrder) Count() int { return int(o>>24) & 0xFF }

// Channel returns the identity of component i (0 to 3).
func (o HostOrder) Channel(i int) Channel {
	return Channel((o >> (20 - 4*uint(i))) & 0xF)
}

// HostFormat describes the caller-owned memory region of an image
// transfer: its component list, component representation, and optional
// pitch overrides. A zero pitch derives the tight value from the region:
// row pitch defaults to regionWidth × pixelSize, slice pitch to
// regionHeight × rowPitch. Non-zero values below those minimums are
// rejected.
type HostFormat struct {
	Order      HostOrder
	DataType   HostDataType
	RowPitch   int
	SlicePitch int
}

// PixelSize returns the host pixel width in bytes.
func (f HostFormat) PixelSize() int {
	return f.Order.Count() * f.DataType.Size()
}

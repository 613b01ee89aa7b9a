package compute

import (
	"testing"
)

func TestChannelOrderPacking(t *testing.T) {
	cases := []struct {
		name     string
		order    ChannelOrder
		constant uint32
		count    int
		channels [4]Channel
	}{
		{"R", OrderR, 0x10B0, 1, [4]Channel{ChannelR, ChannelR, ChannelR, ChannelR}},
		{"RG", OrderRG, 0x10B2, 2, [4]Channel{ChannelR, ChannelG, ChannelG, ChannelG}},
		{"RGBA", OrderRGBA, 0x10B5, 4, [4]Channel{ChannelR, ChannelG, ChannelB, ChannelA}},
		{"BGRA", OrderBGRA, 0x10B6, 4, [4]Channel{ChannelB, ChannelG, ChannelR, ChannelA}},
		{"sRGBA", OrderSRGBA, 0x10C1, 4, [4]Channel{ChannelR, ChannelG, ChannelB, ChannelA}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.order.DeviceConstant(); got != tc.constant {
				t.Errorf("DeviceConstant() = %#x, want %#x", got, tc.constant)
			}
			if got := tc.order.Count(); got != tc.count {
				t.Errorf("Count() = %d, want %d", got, tc.count)
			}
			for i, want := range tc.channels {
				if got := tc.order.Channel(i); got != want {
					t.Errorf("Channel(%d) = %v, want %v", i, got, want)
				}
			}
		})
	}
}

func TestChannelTypePacking(t *testing.T) {
	cases := []struct {
		name       string
		typ        ChannelType
		constant   uint32
		size       int
		base       BaseType
		normalized bool
	}{
		{"Float", TypeFloat, 0x10DE, 4, BaseFloat, false},
		{"Half", TypeHalf, 0x10DD, 2, BaseFloat, false},
		{"UnormInt8", TypeUnormInt8, 0x10D2, 1, BaseUInt, true},
		{"UnormInt16", TypeUnormInt16, 0x10D3, 2, BaseUInt, true},
		{"SnormInt8", TypeSnormInt8, 0x10D0, 1, BaseInt, true},
		{"SnormInt16", TypeSnormInt16, 0x10D1, 2, BaseInt, true},
		{"Int32", TypeInt32, 0x10D9, 4, BaseInt, false},
		{"UInt8", TypeUInt8, 0x10DA, 1, BaseUInt, false},
		{"UInt32", TypeUInt32, 0x10DC, 4, BaseUInt, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.typ.DeviceConstant(); got != tc.constant {
				t.Errorf("DeviceConstant() = %#x, want %#x", got, tc.constant)
			}
			if got := tc.typ.Size(); got != tc.size {
				t.Errorf("Size() = %d, want %d", got, tc.size)
			}
			if got := tc.typ.Base(); got != tc.base {
				t.Errorf("Base() = %v, want %v", got, tc.base)
			}
			if got := tc.typ.Normalized(); got != tc.normalized {
				t.Errorf("Normalized() = %v, want %v", got, tc.normalized)
			}
		})
	}
}

func TestHostDataType(t *testing.T) {
	cases := []struct {
		name string
		typ  HostDataType
		size int
		base BaseType
	}{
		{"Int8", HostInt8, 1, BaseInt},
		{"Int32", HostInt32, 4, BaseInt},
		{"UInt8", HostUInt8, 1, BaseUInt},
		{"UInt16", HostUInt16, 2, BaseUInt},
		{"Half", HostHalf, 2, BaseFloat},
		{"Float32", HostFloat32, 4, BaseFloat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.typ.Size(); got != tc.size {
				t.Errorf("Size() = %d, want %d", got, tc.size)
			}
			if got := tc.typ.Base(); got != tc.base {
				t.Errorf("Base() = %v, want %v", got, tc.base)
			}
		})
	}
}

func TestHostFormatPixelSize(t *testing.T) {
	hf := HostFormat{Order: HostOrderRGBA, DataType: HostFloat32}
	if got := hf.PixelSize(); got != 16 {
		t.Errorf("PixelSize() = %d, want 16", got)
	}
	hf = HostFormat{Order: HostOrderR, DataType: HostUInt16}
	if got := hf.PixelSize(); got != 2 {
		t.Errorf("PixelSize() = %d, want 2", got)
	}
}

func TestMatchFormat(t *testing.T) {
	img := &Image{desc: ImageDesc{
		Type: Image2D, Width: 4, Height: 4,
		Order: OrderRGBA, DataType: TypeUnormInt8,
	}}

	cases := []struct {
		name string
		hf   HostFormat
		want bool
	}{
		{"identical layout", HostFormat{Order: HostOrderRGBA, DataType: HostUInt8}, true},
		// Width is not part of the gate, only the base category.
		{"wider same base", HostFormat{Order: HostOrderRGBA, DataType: HostUInt16}, true},
		{"reordered channels", HostFormat{Order: HostOrderBGRA, DataType: HostUInt8}, false},
		{"component count", HostFormat{Order: HostOrderRG, DataType: HostUInt8}, false},
		{"base category", HostFormat{Order: HostOrderRGBA, DataType: HostFloat32}, false},
		{"signed vs unsigned", HostFormat{Order: HostOrderRGBA, DataType: HostInt8}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := img.MatchFormat(tc.hf); got != tc.want {
				t.Errorf("MatchFormat() = %v, want %v", got, tc.want)
			}
		})
	}

	bgra := &Image{desc: ImageDesc{
		Type: Image2D, Width: 4, Height: 4,
		Order: OrderBGRA, DataType: TypeUnormInt8,
	}}
	if !bgra.MatchFormat(HostFormat{Order: HostOrderBGRA, DataType: HostUInt8}) {
		t.Error("BGRA device rejected BGRA host layout")
	}
	if bgra.MatchFormat(HostFormat{Order: HostOrderRGBA, DataType: HostUInt8}) {
		t.Error("BGRA device accepted RGBA host layout")
	}
}

func TestChannelString(t *testing.T) {
	if got := ChannelR.String(); got != "R" {
		t.Errorf("ChannelR.String() = %q, want %q", got, "R")
	}
	if got := BaseFloat.String(); got != "float" {
		t.Errorf("BaseFloat.String() = %q, want %q", got, "float")
	}
}

package pixconv

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gogpu/compute/driver"
)

func encodeFloats(vals ...float32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func TestStoragePixelUnorm8(t *testing.T) {
	desc := driver.ImageDesc{
		PixelSize: 4, ChannelCount: 4, ChannelBytes: 1,
		Base: driver.BaseUInt, Normalized: true,
	}
	got, err := StoragePixel(desc, encodeFloats(1, 0, 0.5, 1))
	if err != nil {
		t.Fatalf("StoragePixel() = %v", err)
	}
	want := []byte{255, 0, 128, 255}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("component %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStoragePixelUnormClamps(t *testing.T) {
	desc := driver.ImageDesc{
		PixelSize: 1, ChannelCount: 1, ChannelBytes: 1,
		Base: driver.BaseUInt, Normalized: true,
	}
	got, err := StoragePixel(desc, encodeFloats(2, 0, 0, 0))
	if err != nil {
		t.Fatalf("StoragePixel() = %v", err)
	}
	if got[0] != 255 {
		t.Errorf("over-range component = %d, want 255", got[0])
	}

	got, err = StoragePixel(desc, encodeFloats(-1, 0, 0, 0))
	if err != nil {
		t.Fatalf("StoragePixel() = %v", err)
	}
	if got[0] != 0 {
		t.Errorf("under-range component = %d, want 0", got[0])
	}
}

func TestStoragePixelSnorm16(t *testing.T) {
	desc := driver.ImageDesc{
		PixelSize: 2, ChannelCount: 1, ChannelBytes: 2,
		Base: driver.BaseInt, Normalized: true,
	}
	got, err := StoragePixel(desc, encodeFloats(-1, 0, 0, 0))
	if err != nil {
		t.Fatalf("StoragePixel() = %v", err)
	}
	if v := int16(binary.LittleEndian.Uint16(got)); v != -32767 {
		t.Errorf("component = %d, want -32767", v)
	}
}

func TestStoragePixelFloat32(t *testing.T) {
	desc := driver.ImageDesc{
		PixelSize: 8, ChannelCount: 2, ChannelBytes: 4,
		Base: driver.BaseFloat,
	}
	got, err := StoragePixel(desc, encodeFloats(1.5, -2.25, 0, 0))
	if err != nil {
		t.Fatalf("StoragePixel() = %v", err)
	}
	if v := math.Float32frombits(binary.LittleEndian.Uint32(got)); v != 1.5 {
		t.Errorf("component 0 = %v, want 1.5", v)
	}
	if v := math.Float32frombits(binary.LittleEndian.Uint32(got[4:])); v != -2.25 {
		t.Errorf("component 1 = %v, want -2.25", v)
	}
}

func TestStoragePixelHalf(t *testing.T) {
	desc := driver.ImageDesc{
		PixelSize: 2, ChannelCount: 1, ChannelBytes: 2,
		Base: driver.BaseFloat,
	}
	got, err := StoragePixel(desc, encodeFloats(1, 0, 0, 0))
	if err != nil {
		t.Fatalf("StoragePixel() = %v", err)
	}
	if bits := binary.LittleEndian.Uint16(got); bits != 0x3C00 {
		t.Errorf("half bits = %#04x, want 0x3C00", bits)
	}
}

func TestStoragePixelIntegerPassthrough(t *testing.T) {
	desc := driver.ImageDesc{
		PixelSize: 8, ChannelCount: 2, ChannelBytes: 4,
		Base: driver.BaseUInt,
	}
	encoded := make([]byte, 8)
	binary.LittleEndian.PutUint32(encoded, 70000)
	binary.LittleEndian.PutUint32(encoded[4:], 12)

	got, err := StoragePixel(desc, encoded)
	if err != nil {
		t.Fatalf("StoragePixel() = %v", err)
	}
	if v := binary.LittleEndian.Uint32(got); v != 70000 {
		t.Errorf("component 0 = %d, want 70000", v)
	}
	if v := binary.LittleEndian.Uint32(got[4:]); v != 12 {
		t.Errorf("component 1 = %d, want 12", v)
	}
}

func TestStoragePixelBadWidth(t *testing.T) {
	desc := driver.ImageDesc{
		PixelSize: 3, ChannelCount: 1, ChannelBytes: 3,
		Base: driver.BaseFloat,
	}
	if _, err := StoragePixel(desc, encodeFloats(1, 0, 0, 0)); err == nil {
		t.Error("StoragePixel accepted a 3-byte float channel")
	}
}

func TestFloat16Bits(t *testing.T) {
	cases := []struct {
		name string
		in   float32
		want uint16
	}{
		{"zero", 0, 0x0000},
		{"one", 1, 0x3C00},
		{"half", 0.5, 0x3800},
		{"minus two", -2, 0xC000},
		{"max half", 65504, 0x7BFF},
		{"overflow to inf", 1e9, 0x7C00},
		{"negative inf", float32(math.Inf(-1)), 0xFC00},
		{"smallest normal", 6.103515625e-05, 0x0400},
		{"subnormal", 3.0517578125e-05, 0x0200},
		{"underflow to zero", 1e-10, 0x0000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Float16Bits(tc.in); got != tc.want {
				t.Errorf("Float16Bits(%v) = %#04x, want %#04x", tc.in, got, tc.want)
			}
		})
	}

	if got := Float16Bits(float32(math.NaN())); got&0x7C00 != 0x7C00 || got&0x03FF == 0 {
		t.Errorf("Float16Bits(NaN) = %#04x, want a half NaN", got)
	}
}

func TestFloat16BitsRoundToEven(t *testing.T) {
	// 1 + 2^-11 sits exactly between two halves; ties round to the
	// even significand.
	exact := float32(1) + float32(1)/2048
	if got := Float16Bits(exact); got != 0x3C00 {
		t.Errorf("Float16Bits(1+2^-11) = %#04x, want 0x3C00", got)
	}
	above := float32(1) + float32(3)/2048
	if got := Float16Bits(above); got != 0x3C02 {
		t.Errorf("Float16Bits(1+3*2^-11) = %#04x, want 0x3C02", got)
	}
}

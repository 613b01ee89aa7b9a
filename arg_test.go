package compute

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"unsafe"
)

func TestValuePlainData(t *testing.T) {
	a := Value(int32(42))
	if a.err != nil {
		t.Fatalf("Value(int32) error: %v", a.err)
	}
	if a.size != 4 {
		t.Errorf("size = %d, want 4", a.size)
	}
	if got := binary.LittleEndian.Uint32(a.data); got != 42 {
		t.Errorf("data = %d, want 42", got)
	}
}

func TestValueStruct(t *testing.T) {
	type params struct {
		Scale  float32
		Offset int32
	}
	a := Value(params{Scale: 2, Offset: 3})
	if a.err != nil {
		t.Fatalf("Value(struct) error: %v", a.err)
	}
	if want := int(unsafe.Sizeof(params{})); a.size != want {
		t.Errorf("size = %d, want %d", a.size, want)
	}
}

func TestValueArray(t *testing.T) {
	a := Value([4]float32{1, 2, 3, 4})
	if a.err != nil {
		t.Fatalf("Value(array) error: %v", a.err)
	}
	if a.size != 16 {
		t.Errorf("size = %d, want 16", a.size)
	}
}

func TestValueRejectsNonPlainData(t *testing.T) {
	cases := []struct {
		name string
		arg  Arg
	}{
		{"string", Value("hello")},
		{"slice", Value([]int32{1})},
		{"pointer", Value(new(int32))},
		{"map", Value(map[string]int{})},
		{"interface", Value[any](int32(1))},
		{"struct with slice", Value(struct{ S []byte }{})},
		{"zero-size struct", Value(struct{}{})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.arg.err == nil {
				t.Errorf("Value accepted %s", tc.name)
			}
			if !errors.Is(tc.arg.err, ErrInvalidArg) {
				t.Errorf("error = %v, want ErrInvalidArg", tc.arg.err)
			}
		})
	}
}

func TestLocal(t *testing.T) {
	a := Local[float32](256)
	if a.err != nil {
		t.Fatalf("Local error: %v", a.err)
	}
	if a.size != 1024 {
		t.Errorf("size = %d, want 1024", a.size)
	}
	if a.data != nil {
		t.Error("local argument must carry no host data")
	}
}

func TestLocalRejectsBadCount(t *testing.T) {
	if a := Local[float32](0); a.err == nil {
		t.Error("Local accepted count 0")
	}
	if a := Local[float32](-1); a.err == nil {
		t.Error("Local accepted negative count")
	}
}

func TestLocalBytes(t *testing.T) {
	if a := LocalBytes(64); a.err != nil || a.size != 64 {
		t.Errorf("LocalBytes(64) = size %d, err %v", a.size, a.err)
	}
	if a := LocalBytes(0); a.err == nil {
		t.Error("LocalBytes accepted 0")
	}
}

func TestResolveArgsReportsSlotIndex(t *testing.T) {
	args := []Arg{
		Value(int32(1)),
		Value(float32(2)),
		Value("bad"),
		Value(int32(4)),
	}
	_, err := resolveArgs(nil, args)
	if err == nil {
		t.Fatal("resolveArgs accepted an invalid argument")
	}
	if !strings.Contains(err.Error(), "argument 2") {
		t.Errorf("error %q does not name the failing slot", err)
	}
}

func TestResolveArgsReuse(t *testing.T) {
	scratch, err := resolveArgs(nil, []Arg{Value(int32(1)), Value(int32(2))})
	if err != nil {
		t.Fatalf("resolveArgs() = %v", err)
	}

	// A second resolution through the same scratch must not leak the
	// first call's entries.
	scratch, err = resolveArgs(scratch, []Arg{Value(int32(3))})
	if err != nil {
		t.Fatalf("resolveArgs() = %v", err)
	}
	if len(scratch) != 1 {
		t.Errorf("scratch holds %d entries, want 1", len(scratch))
	}
}

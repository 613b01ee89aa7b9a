package compute

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/gogpu/compute/driver/soft"
)

const testSource = `
__kernel void scale(__global float* data, const float factor) {
	int i = get_global_id(0);
	data[i] = data[i] * factor;
}

__kernel void iota(__global uint* out) {
	int i = get_global_id(0);
	out[i] = i;
}

__kernel void grid(__global uint* out, const uint width) {
	int x = get_global_id(0);
	int y = get_global_id(1);
	out[y * width + x] = x + 10 * y;
}

__kernel void reduce(__global float* data, __local float* scratch) {
}
`

// testKernels implements the test source in Go for the soft device.
func testKernels() map[string]soft.KernelFunc {
	return map[string]soft.KernelFunc{
		"scale": func(inv soft.Invocation, args []soft.ArgValue) {
			data := args[0].Mem
			factor := args[1].Float32()
			i := inv.ID[0] * 4
			v := math.Float32frombits(binary.LittleEndian.Uint32(data[i:]))
			binary.LittleEndian.PutUint32(data[i:], math.Float32bits(v*factor))
		},
		"iota": func(inv soft.Invocation, args []soft.ArgValue) {
			out := args[0].Mem
			binary.LittleEndian.PutUint32(out[inv.ID[0]*4:], uint32(inv.ID[0]))
		},
		"grid": func(inv soft.Invocation, args []soft.ArgValue) {
			out := args[0].Mem
			width := int(args[1].Uint32())
			idx := inv.ID[1]*width + inv.ID[0]
			binary.LittleEndian.PutUint32(out[idx*4:], uint32(inv.ID[0]+10*inv.ID[1]))
		},
		"reduce": func(inv soft.Invocation, args []soft.ArgValue) {
			_ = args[1].Local[0]
		},
	}
}

func buildTestProgram(t *testing.T, ctx *Context) *Program {
	t.Helper()
	p, err := ctx.BuildProgram(testSource, "")
	if err != nil {
		t.Fatalf("BuildProgram() = %v", err)
	}
	t.Cleanup(p.Release)
	return p
}

func TestInvokeScale(t *testing.T) {
	ctx := newTestContext(t, soft.WithKernels(testKernels()))
	p := buildTestProgram(t, ctx)

	b, err := ctx.CreateBuffer(MemFlags{}, 16*4)
	if err != nil {
		t.Fatalf("CreateBuffer() = %v", err)
	}
	defer b.Release()

	src := make([]float32, 16)
	for i := range src {
		src[i] = float32(i)
	}
	wrote, err := WriteElems(b, src, 0)
	if err != nil {
		t.Fatalf("WriteElems() = %v", err)
	}

	ran, err := p.InvokeAfter("scale", Dim1(16, 16), []*Event{wrote}, b.Arg(), Value(float32(2)))
	if err != nil {
		t.Fatalf("InvokeAfter() = %v", err)
	}

	dst := make([]float32, 16)
	read, err := ReadElems(b, dst, 0, After(ran))
	if err != nil {
		t.Fatalf("ReadElems() = %v", err)
	}
	if err := read.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	for i := range dst {
		if dst[i] != float32(i)*2 {
			t.Errorf("element %d = %v, want %v", i, dst[i], float32(i)*2)
		}
	}
}

func TestInvokeUnknownKernel(t *testing.T) {
	ctx := newTestContext(t, soft.WithKernels(testKernels()))
	p := buildTestProgram(t, ctx)

	_, err := p.Invoke("no_such_kernel", Dim1(1, 0))
	if !errors.Is(err, ErrKernelNotFound) {
		t.Fatalf("Invoke(unknown) = %v, want ErrKernelNotFound", err)
	}
	// Lookup failures are not submission failures.
	var se *SubmitError
	if errors.As(err, &se) {
		t.Error("unknown kernel reported as SubmitError")
	}
	if !strings.Contains(err.Error(), "no_such_kernel") {
		t.Errorf("error %q does not name the kernel", err)
	}
}

func TestInvokeUnimplementedKernel(t *testing.T) {
	// Build without Go implementations: names resolve, dispatch fails.
	ctx := newTestContext(t)
	p := buildTestProgram(t, ctx)

	k, err := p.Kernel("scale")
	if err != nil {
		t.Fatalf("Kernel() = %v, declared names must resolve", err)
	}

	_, err = k.Invoke(Dim1(1, 0), LocalBytes(4), Value(float32(1)))
	if err == nil {
		t.Fatal("Invoke without implementation succeeded")
	}
	var se *SubmitError
	if !errors.As(err, &se) {
		t.Errorf("dispatch failure = %T, want *SubmitError", err)
	}
	if errors.Is(err, ErrKernelNotFound) {
		t.Error("dispatch failure reported as lookup failure")
	}
}

func TestInvokeDimsValidation(t *testing.T) {
	ctx := newTestContext(t, soft.WithKernels(testKernels()))
	p := buildTestProgram(t, ctx)

	cases := []struct {
		name string
		d    Dims
	}{
		{"zero dim", Dims{}},
		{"dim 4", Dims{Dim: 4, Global: [3]int{1, 1, 1}}},
		{"zero global", Dims{Dim: 1}},
		{"negative global", Dims{Dim: 1, Global: [3]int{-2, 1, 1}}},
		{"negative local", Dims{Dim: 1, Global: [3]int{4, 1, 1}, Local: [3]int{-1, 0, 0}}},
		{"negative offset", Dim1(4, 0).WithOffset(-1, 0, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := p.Invoke("iota", tc.d); !errors.Is(err, ErrInvalidDims) {
				t.Errorf("Invoke() = %v, want ErrInvalidDims", err)
			}
		})
	}
}

func TestInvokeBadArgument(t *testing.T) {
	ctx := newTestContext(t, soft.WithKernels(testKernels()))
	p := buildTestProgram(t, ctx)

	_, err := p.Invoke("iota", Dim1(1, 0), Value("not plain data"))
	if err == nil {
		t.Fatal("Invoke accepted a non-plain-data argument")
	}
	if !strings.Contains(err.Error(), "argument 0") {
		t.Errorf("error %q does not name the failing slot", err)
	}
}

func TestInvokeGlobalOffset(t *testing.T) {
	ctx := newTestContext(t, soft.WithKernels(testKernels()))
	p := buildTestProgram(t, ctx)

	b, err := ctx.CreateBuffer(MemFlags{}, 8*4)
	if err != nil {
		t.Fatalf("CreateBuffer() = %v", err)
	}
	defer b.Release()

	ev, err := p.Invoke("iota", Dim1(4, 0).WithOffset(4, 0, 0), b.Arg())
	if err != nil {
		t.Fatalf("Invoke() = %v", err)
	}

	dst := make([]uint32, 8)
	read, err := ReadElems(b, dst, 0, After(ev))
	if err != nil {
		t.Fatalf("ReadElems() = %v", err)
	}
	if err := read.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	want := []uint32{0, 0, 0, 0, 4, 5, 6, 7}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("slot %d = %d, want %d", i, dst[i], want[i])
		}
	}
}

func TestInvoke2D(t *testing.T) {
	ctx := newTestContext(t, soft.WithKernels(testKernels()))
	p := buildTestProgram(t, ctx)

	const w, h = 4, 3
	b, err := ctx.CreateBuffer(MemFlags{}, w*h*4)
	if err != nil {
		t.Fatalf("CreateBuffer() = %v", err)
	}
	defer b.Release()

	ev, err := p.Invoke("grid", Dim2(w, h, 0, 0), b.Arg(), Value(uint32(w)))
	if err != nil {
		t.Fatalf("Invoke() = %v", err)
	}

	dst := make([]uint32, w*h)
	read, err := ReadElems(b, dst, 0, After(ev))
	if err != nil {
		t.Fatalf("ReadElems() = %v", err)
	}
	if err := read.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if got, want := dst[y*w+x], uint32(x+10*y); got != want {
				t.Errorf("cell (%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
}

func TestInvokeLocalArgument(t *testing.T) {
	ctx := newTestContext(t, soft.WithKernels(testKernels()))
	p := buildTestProgram(t, ctx)

	b, err := ctx.CreateBuffer(MemFlags{}, 4)
	if err != nil {
		t.Fatalf("CreateBuffer() = %v", err)
	}
	defer b.Release()

	ev, err := p.Invoke("reduce", Dim1(1, 1), b.Arg(), Local[float32](64))
	if err != nil {
		t.Fatalf("Invoke() = %v", err)
	}
	if err := ev.Wait(); err != nil {
		t.Errorf("Wait() = %v", err)
	}
}

func TestKernelHandleCaching(t *testing.T) {
	ctx := newTestContext(t, soft.WithKernels(testKernels()))
	p := buildTestProgram(t, ctx)

	k1, err := p.Kernel("scale")
	if err != nil {
		t.Fatalf("Kernel() = %v", err)
	}
	k2, err := p.Kernel("scale")
	if err != nil {
		t.Fatalf("Kernel() = %v", err)
	}
	if k1 != k2 {
		t.Error("repeated lookups returned distinct handles")
	}
	if k1.Name() != "scale" {
		t.Errorf("Name() = %q, want %q", k1.Name(), "scale")
	}
	if k1.Info().MaxWorkGroupSize <= 0 {
		t.Error("Info() reports no work-group limit")
	}
}

func TestProgramKernelNames(t *testing.T) {
	ctx := newTestContext(t, soft.WithKernels(testKernels()))
	p := buildTestProgram(t, ctx)

	names := p.KernelNames()
	want := map[string]bool{"scale": true, "iota": true, "grid": true, "reduce": true}
	if len(names) != len(want) {
		t.Fatalf("KernelNames() = %v, want %d names", names, len(want))
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected kernel %q", n)
		}
	}
}

func TestProgramReleasedUse(t *testing.T) {
	ctx := newTestContext(t, soft.WithKernels(testKernels()))
	p := buildTestProgram(t, ctx)

	k, err := p.Kernel("scale")
	if err != nil {
		t.Fatalf("Kernel() = %v", err)
	}

	p.Release()
	p.Release() // second release is a no-op

	if _, err := p.Kernel("scale"); !errors.Is(err, ErrReleased) {
		t.Errorf("Kernel() after Release = %v, want ErrReleased", err)
	}
	if _, err := p.Invoke("scale", Dim1(4, 0)); !errors.Is(err, ErrReleased) {
		t.Errorf("Invoke() after Release = %v, want ErrReleased", err)
	}
	if _, err := k.Invoke(Dim1(4, 0)); !errors.Is(err, ErrReleased) {
		t.Errorf("Kernel.Invoke() after Release = %v, want ErrReleased", err)
	}
	if names := p.KernelNames(); names != nil {
		t.Errorf("KernelNames() after Release = %v, want nil", names)
	}
}

func TestBuildProgramFailure(t *testing.T) {
	ctx := newTestContext(t)

	_, err := ctx.BuildProgram("int not_a_kernel;", "")
	if err == nil {
		t.Fatal("BuildProgram accepted source without kernels")
	}
	var se *SubmitError
	if !errors.As(err, &se) {
		t.Errorf("build failure = %T, want *SubmitError", err)
	}
}

package compute

import (
	"fmt"
)

// Dims is the geometry of one N-dimensional kernel dispatch. Dim selects
// how many dimensions (1 to 3) are active; the three arrays always carry
// 3 slots with only the first Dim entries meaningful. A zero Local slot
// leaves the work-group size to the driver.
type Dims struct {
	Dim    int
	Offset [3]int
	Global [3]int
	Local  [3]int
}

// Dim1 builds a one-dimensional dispatch. local may be 0 for a
// driver-chosen group size.
func Dim1(global, local int) Dims {
	return Dims{Dim: 1, Global: [3]int{global, 1, 1}, Local: [3]int{local, 0, 0}}
}

// Dim2 builds a two-dimensional dispatch.
func Dim2(globalX, globalY, localX, localY int) Dims {
	return Dims{
		Dim:    2,
		Global: [3]int{globalX, globalY, 1},
		Local:  [3]int{localX, localY, 0},
	}
}

// Dim3 builds a three-dimensional dispatch.
func Dim3(globalX, globalY, globalZ, localX, localY, localZ int) Dims {
	return Dims{
		Dim:    3,
		Global: [3]int{globalX, globalY, globalZ},
		Local:  [3]int{localX, localY, localZ},
	}
}

// WithOffset returns d with the per-dimension global offset set.
func (d Dims) WithOffset(x, y, z int) Dims {
	d.Offset = [3]int{x, y, z}
	return d
}

// validate checks the dispatch geometry. Inactive slots are ignored.
func (d Dims) validate() error {
	if d.Dim < 1 || d.Dim > 3 {
		return fmt.Errorf("%w: work dimension %d", ErrInvalidDims, d.Dim)
	}
	for i := 0; i < d.Dim; i++ {
		if d.Global[i] <= 0 {
			return fmt.Errorf("%w: global size %d in dimension %d", ErrInvalidDims, d.Global[i], i)
		}
		if d.Local[i] < 0 {
			return fmt.Errorf("%w: local size %d in dimension %d", ErrInvalidDims, d.Local[i], i)
		}
		if d.Offset[i] < 0 {
			return fmt.Errorf("%w: offset %d in dimension %d", ErrInvalidDims, d.Offset[i], i)
		}
	}
	return nil
}

// Package patch splits square masks into a grid of patches and assembles
// per-patch predictions back into full masks.
package patch

import (
	"fmt"

	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/patchdct/encoding"
)

// Grid partitions a (Scale*PatchSize) x (Scale*PatchSize) mask into
// Scale x Scale patches. Patches are ordered row-major per mask: patch index
// n*Scale*Scale + R*Scale + C holds pixels [R*PatchSize, (R+1)*PatchSize) x
// [C*PatchSize, (C+1)*PatchSize) of mask n.
type Grid struct {
	Scale     int64
	PatchSize int64
}

// Side is the side length of a mask covered by the grid.
func (g Grid) Side() int64 {
	return g.Scale * g.PatchSize
}

// Cells is the number of patches per mask.
func (g Grid) Cells() int64 {
	return g.Scale * g.Scale
}

// MaskToGrid reshapes masks [N, S, S] (or [N, 1, S, S]) into patches
// [N*Scale*Scale, PatchSize, PatchSize].
func (g Grid) MaskToGrid(masks *ts.Tensor) (*ts.Tensor, error) {
	size := masks.MustSize()
	side := g.Side()
	if len(size) < 3 || size[len(size)-1] != side || size[len(size)-2] != side {
		err := fmt.Errorf("MaskToGrid: expected masks [N %v %v]. Got %v", side, side, size)
		return nil, err
	}

	n := size[0]
	s, p := g.Scale, g.PatchSize
	// [N, R, r, C, c] -> [N, R, C, r, c]
	x := masks.MustReshape([]int64{n, s, p, s, p}, false)
	patches := x.MustPermute([]int64{0, 1, 3, 2, 4}, true).MustReshape([]int64{n * s * s, p, p}, true)

	return patches, nil
}

// MustMaskToGrid is MaskToGrid that panics on error.
func (g Grid) MustMaskToGrid(masks *ts.Tensor) *ts.Tensor {
	patches, err := g.MaskToGrid(masks)
	if err != nil {
		panic(err)
	}
	return patches
}

// GridToMask is the inverse of MaskToGrid: patches [N*Scale*Scale, PatchSize,
// PatchSize] to masks [N, S, S].
func (g Grid) GridToMask(patches *ts.Tensor) (*ts.Tensor, error) {
	size := patches.MustSize()
	s, p := g.Scale, g.PatchSize
	if len(size) != 3 || size[1] != p || size[2] != p || size[0]%(s*s) != 0 {
		err := fmt.Errorf("GridToMask: expected patches [N*%v %v %v]. Got %v", s*s, p, p, size)
		return nil, err
	}

	n := size[0] / (s * s)
	// [N, R, C, r, c] -> [N, R, r, C, c]
	x := patches.MustReshape([]int64{n, s, s, p, p}, false)
	masks := x.MustPermute([]int64{0, 1, 3, 2, 4}, true).MustReshape([]int64{n, s * p, s * p}, true)

	return masks, nil
}

// MustGridToMask is GridToMask that panics on error.
func (g Grid) MustGridToMask(patches *ts.Tensor) *ts.Tensor {
	masks, err := g.GridToMask(patches)
	if err != nil {
		panic(err)
	}
	return masks
}

// Assembler decodes per-patch DCT vectors and tiles them into full masks.
type Assembler struct {
	Grid
	enc *encoding.Encoding
}

// NewAssembler creates an Assembler. enc.MaskSize must equal grid.PatchSize.
func NewAssembler(grid Grid, enc *encoding.Encoding) (*Assembler, error) {
	if enc.MaskSize != grid.PatchSize {
		err := fmt.Errorf("NewAssembler: encoding mask size %v does not match patch size %v", enc.MaskSize, grid.PatchSize)
		return nil, err
	}

	return &Assembler{Grid: grid, enc: enc}, nil
}

// Assemble maps vectors [N*Scale*Scale, VecDim] to masks [N, S, S].
func (a *Assembler) Assemble(vectors *ts.Tensor) (*ts.Tensor, error) {
	patches, err := a.enc.Decode(vectors)
	if err != nil {
		return nil, err
	}
	masks, err := a.GridToMask(patches)
	patches.MustDrop()
	if err != nil {
		return nil, err
	}

	return masks, nil
}

// Split is the training counterpart of Assemble: masks [N, S, S] to vectors
// [N*Scale*Scale, VecDim].
func (a *Assembler) Split(masks *ts.Tensor) (*ts.Tensor, error) {
	patches, err := a.MaskToGrid(masks)
	if err != nil {
		return nil, err
	}
	vectors, err := a.enc.Encode(patches)
	patches.MustDrop()
	if err != nil {
		return nil, err
	}

	return vectors, nil
}

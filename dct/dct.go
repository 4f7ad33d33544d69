// Package dct implements the orthonormal 2D discrete cosine transform used to
// compress square masks into short coefficient vectors.
//
// Coefficients are read out in zig-zag order so that the leading entries of a
// vector hold the lowest spatial frequencies. Truncating a vector therefore drops
// high frequency detail first.
package dct

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Coord is a (row, col) position in a square coefficient block.
type Coord struct {
	Row, Col int
}

// ZigZag returns all n*n coefficient positions of an n x n block ordered by
// anti-diagonal. On even diagonals the row index decreases, on odd diagonals it
// increases.
func ZigZag(n int) []Coord {
	coords := make([]Coord, 0, n*n)
	for d := 0; d < 2*n-1; d++ {
		lo := 0
		if d >= n {
			lo = d - n + 1
		}
		hi := d
		if hi > n-1 {
			hi = n - 1
		}
		for j := lo; j <= hi; j++ {
			if d%2 == 0 {
				coords = append(coords, Coord{d - j, j})
			} else {
				coords = append(coords, Coord{j, d - j})
			}
		}
	}

	return coords
}

// Basis returns the n x n orthonormal DCT-II matrix C where
// C[u][x] = a(u) * cos(pi*(2x+1)*u / 2n).
func Basis(n int) *mat.Dense {
	c := mat.NewDense(n, n, nil)
	for u := 0; u < n; u++ {
		alpha := math.Sqrt(2 / float64(n))
		if u == 0 {
			alpha = math.Sqrt(1 / float64(n))
		}
		for x := 0; x < n; x++ {
			c.Set(u, x, alpha*math.Cos(math.Pi*float64(2*x+1)*float64(u)/float64(2*n)))
		}
	}

	return c
}

// Transform is a 2D DCT over size x size blocks keeping the first Dim zig-zag
// coefficients.
type Transform struct {
	Size int
	Dim  int

	basis  *mat.Dense
	coords []Coord
}

// NewTransform creates a Transform. dim must be in [1, size*size].
func NewTransform(size, dim int) (*Transform, error) {
	if size < 1 {
		return nil, fmt.Errorf("dct: invalid block size %d", size)
	}
	if dim < 1 || dim > size*size {
		return nil, fmt.Errorf("dct: vector dim %d out of range [1, %d] for block size %d", dim, size*size, size)
	}

	return &Transform{
		Size:   size,
		Dim:    dim,
		basis:  Basis(size),
		coords: ZigZag(size)[:dim],
	}, nil
}

// MustNewTransform is NewTransform that panics on error.
func MustNewTransform(size, dim int) *Transform {
	t, err := NewTransform(size, dim)
	if err != nil {
		panic(err)
	}
	return t
}

// Forward transforms a size x size block into a coefficient vector.
func (t *Transform) Forward(block mat.Matrix) []float64 {
	r, c := block.Dims()
	if r != t.Size || c != t.Size {
		panic(fmt.Sprintf("dct: expected %dx%d block, got %dx%d", t.Size, t.Size, r, c))
	}

	// Y = C X C^T
	var tmp, y mat.Dense
	tmp.Mul(t.basis, block)
	y.Mul(&tmp, t.basis.T())

	vec := make([]float64, t.Dim)
	for i, p := range t.coords {
		vec[i] = y.At(p.Row, p.Col)
	}

	return vec
}

// Inverse reconstructs a size x size block from a coefficient vector. Missing
// high frequency coefficients are treated as zero.
func (t *Transform) Inverse(vec []float64) *mat.Dense {
	if len(vec) != t.Dim {
		panic(fmt.Sprintf("dct: expected vector of %d coefficients, got %d", t.Dim, len(vec)))
	}

	y := mat.NewDense(t.Size, t.Size, nil)
	for i, p := range t.coords {
		y.Set(p.Row, p.Col, vec[i])
	}

	// X = C^T Y C
	var tmp, x mat.Dense
	tmp.Mul(t.basis.T(), y)
	x.Mul(&tmp, t.basis)

	return &x
}

// Atoms returns a Dim x Size*Size matrix whose m-th row is the row-major
// flattened basis image of the m-th retained coefficient. With X flattened to a
// row vector x, Forward is x * Atoms^T and Inverse is v * Atoms.
func (t *Transform) Atoms() *mat.Dense {
	n := t.Size
	atoms := mat.NewDense(t.Dim, n*n, nil)
	for m, p := range t.coords {
		row := atoms.RawRowView(m)
		for i := 0; i < n; i++ {
			cu := t.basis.At(p.Row, i)
			for j := 0; j < n; j++ {
				row[i*n+j] = cu * t.basis.At(p.Col, j)
			}
		}
	}

	return atoms
}

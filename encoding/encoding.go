// Package encoding converts batches of square masks to truncated DCT vectors and
// back on libtorch tensors.
package encoding

import (
	"fmt"

	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/patchdct/dct"
)

// Encoding holds the DCT atoms for one (vector dim, mask size) pair.
// It is safe to share between goroutines.
type Encoding struct {
	VecDim   int64
	MaskSize int64

	// atoms: [VecDim, MaskSize*MaskSize] float32
	atoms *ts.Tensor
}

// New creates an Encoding whose atoms live on device.
func New(vecDim, maskSize int64, device gotch.Device) (*Encoding, error) {
	tr, err := dct.NewTransform(int(maskSize), int(vecDim))
	if err != nil {
		return nil, err
	}

	raw := tr.Atoms().RawMatrix().Data
	data := make([]float32, len(raw))
	for i, v := range raw {
		data[i] = float32(v)
	}

	atoms := ts.MustOfSlice(data).MustView([]int64{vecDim, maskSize * maskSize}, true).MustTo(device, true)

	return &Encoding{
		VecDim:   vecDim,
		MaskSize: maskSize,
		atoms:    atoms,
	}, nil
}

// MustNew is New that panics on error.
func MustNew(vecDim, maskSize int64, device gotch.Device) *Encoding {
	e, err := New(vecDim, maskSize, device)
	if err != nil {
		panic(err)
	}
	return e
}

// Encode maps masks of shape [n, n], [N, n, n] or [N, 1, n, n] to DCT vectors of
// shape [N, VecDim]. Any numeric or bool dtype is accepted.
func (e *Encoding) Encode(masks *ts.Tensor) (*ts.Tensor, error) {
	size := masks.MustSize()
	if len(size) < 2 || size[len(size)-1] != e.MaskSize || size[len(size)-2] != e.MaskSize {
		err := fmt.Errorf("Encode: expected masks with trailing dims [%v %v]. Got shape %v", e.MaskSize, e.MaskSize, size)
		return nil, err
	}

	// explicit batch size: reshape cannot infer -1 on empty batches
	var n int64 = 1
	for _, d := range size[:len(size)-2] {
		n *= d
	}
	flat := masks.MustTotype(gotch.Float, false).MustReshape([]int64{n, e.MaskSize * e.MaskSize}, true)
	atomsT := e.atoms.MustTranspose(0, 1, false)
	vectors := flat.MustMatmul(atomsT, true)
	atomsT.MustDrop()

	return vectors, nil
}

// MustEncode is Encode that panics on error.
func (e *Encoding) MustEncode(masks *ts.Tensor) *ts.Tensor {
	vectors, err := e.Encode(masks)
	if err != nil {
		panic(err)
	}
	return vectors
}

// Decode maps DCT vectors of shape [N, VecDim] to masks of shape
// [N, MaskSize, MaskSize]. Values are not clipped to [0, 1].
func (e *Encoding) Decode(vectors *ts.Tensor) (*ts.Tensor, error) {
	size := vectors.MustSize()
	if len(size) != 2 || size[1] != e.VecDim {
		err := fmt.Errorf("Decode: expected vectors of shape [N %v]. Got shape %v", e.VecDim, size)
		return nil, err
	}

	v := vectors.MustTotype(gotch.Float, false)
	masks := v.MustMatmul(e.atoms, true).MustView([]int64{size[0], e.MaskSize, e.MaskSize}, true)

	return masks, nil
}

// MustDecode is Decode that panics on error.
func (e *Encoding) MustDecode(vectors *ts.Tensor) *ts.Tensor {
	masks, err := e.Decode(vectors)
	if err != nil {
		panic(err)
	}
	return masks
}

// Drop releases the atom tensor.
func (e *Encoding) Drop() {
	e.atoms.MustDrop()
}

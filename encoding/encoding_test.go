package encoding_test

import (
	"math"
	"testing"

	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/patchdct/encoding"
)

// squareMask returns an [n, n] float32 slice with a centered side x side square.
func squareMask(n, side int) []float32 {
	out := make([]float32, n*n)
	lo := (n - side) / 2
	for i := lo; i < lo+side; i++ {
		for j := lo; j < lo+side; j++ {
			out[i*n+j] = 1
		}
	}
	return out
}

func TestEncodeDecodeFull(t *testing.T) {
	n := int64(8)
	enc := encoding.MustNew(n*n, n, gotch.CPU)
	defer enc.Drop()

	data := make([]float32, 2*n*n)
	for i := range data {
		if (i*7)%5 < 2 {
			data[i] = 1
		}
	}
	masks := ts.MustOfSlice(data).MustView([]int64{2, n, n}, true)

	vectors := enc.MustEncode(masks)
	if got := vectors.MustSize(); got[0] != 2 || got[1] != n*n {
		t.Fatalf("vector shape: %v", got)
	}
	rc := enc.MustDecode(vectors)
	got := rc.Float64Values()
	for i, v := range data {
		if math.Abs(got[i]-float64(v)) > 1e-4 {
			t.Fatalf("pixel %d: want %v, got %v", i, v, got[i])
		}
	}
}

func TestEncodeAcceptsChannelDim(t *testing.T) {
	enc := encoding.MustNew(6, 4, gotch.CPU)
	defer enc.Drop()

	masks := ts.MustOnes([]int64{3, 1, 4, 4}, gotch.Bool, gotch.CPU)
	vectors := enc.MustEncode(masks)
	vals := vectors.Float64Values()
	for i := 0; i < 3; i++ {
		if math.Abs(vals[i*6]-4) > 1e-5 {
			t.Errorf("DC of instance %d: want 4, got %v", i, vals[i*6])
		}
	}
}

func TestEncodeInvalidShape(t *testing.T) {
	enc := encoding.MustNew(6, 4, gotch.CPU)
	defer enc.Drop()

	masks := ts.MustZeros([]int64{2, 5, 5}, gotch.Float, gotch.CPU)
	if _, err := enc.Encode(masks); err == nil {
		t.Error("want error for mismatched mask size")
	}
	vectors := ts.MustZeros([]int64{2, 7}, gotch.Float, gotch.CPU)
	if _, err := enc.Decode(vectors); err == nil {
		t.Error("want error for mismatched vector dim")
	}
}

func TestEmptyBatch(t *testing.T) {
	enc := encoding.MustNew(6, 4, gotch.CPU)
	defer enc.Drop()

	vectors := enc.MustEncode(ts.MustZeros([]int64{0, 4, 4}, gotch.Float, gotch.CPU))
	if got := vectors.MustSize(); got[0] != 0 || got[1] != 6 {
		t.Errorf("empty encode shape: %v", got)
	}
	masks := enc.MustDecode(vectors)
	if got := masks.MustSize(); got[0] != 0 || got[1] != 4 || got[2] != 4 {
		t.Errorf("empty decode shape: %v", got)
	}
}

func TestCoarseSquareIoU(t *testing.T) {
	n := 128
	enc := encoding.MustNew(300, int64(n), gotch.CPU)
	defer enc.Drop()

	data := squareMask(n, 64)
	masks := ts.MustOfSlice(data).MustView([]int64{1, int64(n), int64(n)}, true)
	rc := enc.MustDecode(enc.MustEncode(masks)).Float64Values()

	var inter, union float64
	for i, v := range data {
		p := rc[i] > 0.5
		g := v > 0.5
		if p && g {
			inter++
		}
		if p || g {
			union++
		}
	}
	if iou := inter / union; iou <= 0.95 {
		t.Errorf("IoU of 300-dim reconstruction: %.4f", iou)
	}
}

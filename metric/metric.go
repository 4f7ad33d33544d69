// Package metric scores predicted masks against ground truth.
package metric

import (
	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"
)

// overlap thresholds both tensors at 0.5 and returns
// (intersection, |pred|, |target|).
func overlap(pred, target *ts.Tensor) (inter, p, t float64) {
	pflat := pred.MustView([]int64{-1}, false)
	tflat := target.MustView([]int64{-1}, false)
	pb := pflat.MustGt(ts.FloatScalar(0.5), true)
	tb := tflat.MustGt(ts.FloatScalar(0.5), true)

	ptMul := pb.MustMul(tb, false)
	inter = ptMul.MustSum(gotch.Double, true).Float64Values()[0]

	pSum := pb.MustSum(gotch.Double, true)
	tSum := tb.MustSum(gotch.Double, true)
	p = pSum.Float64Values()[0]
	t = tSum.Float64Values()[0]
	pSum.MustDrop()
	tSum.MustDrop()

	return inter, p, t
}

// IoU is the intersection over union of two masks binarized at 0.5.
// Two empty masks score 1.
func IoU(pred, target *ts.Tensor) float64 {
	inter, p, t := overlap(pred, target)
	union := p + t - inter
	if union == 0 {
		return 1
	}
	return inter / union
}

// DiceCoeff is 2|P n T| / (|P| + |T|) of two masks binarized at 0.5.
// Two empty masks score 1.
func DiceCoeff(pred, target *ts.Tensor) float64 {
	inter, p, t := overlap(pred, target)
	if p+t == 0 {
		return 1
	}
	return 2 * inter / (p + t)
}

// MeanIoU averages IoU over the first dimension of [N, ...] masks.
func MeanIoU(pred, target *ts.Tensor) float64 {
	n := pred.MustSize()[0]
	if n == 0 {
		return 0
	}

	var sum float64
	for i := int64(0); i < n; i++ {
		p := pred.MustSelect(0, i, false)
		t := target.MustSelect(0, i, false)
		sum += IoU(p, t)
		p.MustDrop()
		t.MustDrop()
	}
	return sum / float64(n)
}

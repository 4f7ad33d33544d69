package head

import (
	"github.com/pkg/errors"
	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"
)

// LossType selects the regression loss between predicted and target DCT
// vectors.
type LossType string

const (
	// L1 is the mean absolute error.
	L1 LossType = "l1"
	// SmoothL1 is the Huber loss (beta 1) summed and divided by the row count.
	SmoothL1 LossType = "sl1"
	// L2 is the squared error summed and divided by the row count.
	L2 LossType = "l2"
)

// ErrUnsupportedLoss is the cause of errors for unknown loss types.
var ErrUnsupportedLoss = errors.New("unsupported dct loss type")

// ParseLossType maps a config string to a LossType.
func ParseLossType(s string) (LossType, error) {
	switch LossType(s) {
	case L1, SmoothL1, L2:
		return LossType(s), nil
	}
	return "", errors.Wrapf(ErrUnsupportedLoss, "loss type only supports: l1, sl1, l2; yours: %q", s)
}

// Compute returns the scalar loss between pred and target of shape [rows, dim].
func (l LossType) Compute(pred, target *ts.Tensor) *ts.Tensor {
	switch l {
	case L1:
		// NOTE: reduction: none = 0; mean = 1; sum = 2.
		return pred.MustL1Loss(target, 1, false)
	case SmoothL1:
		rows := pred.MustSize()[0]
		// beta = 1
		sum := pred.MustSmoothL1Loss(target, 2, 1.0, false)
		return sum.MustDiv1(ts.FloatScalar(float64(rows)), true)
	case L2:
		rows := pred.MustSize()[0]
		sum := pred.MustMseLoss(target, 2, false)
		return sum.MustDiv1(ts.FloatScalar(float64(rows)), true)
	default:
		panic(errors.Wrapf(ErrUnsupportedLoss, "%q", string(l)))
	}
}

// zeroLike returns a zero scalar that stays connected to the graph of xs.
func zeroLike(xs ...*ts.Tensor) *ts.Tensor {
	var out *ts.Tensor
	for _, x := range xs {
		z := x.MustSum(gotch.Float, false).MustMul1(ts.FloatScalar(0), true)
		if out == nil {
			out = z
			continue
		}
		out = out.MustAdd(z, true)
		z.MustDrop()
	}
	return out
}

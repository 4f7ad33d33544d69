package metric_test

import (
	"math"
	"testing"

	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/patchdct/metric"
)

func TestIoU(t *testing.T) {
	pslice := []float64{1, 0, 0, 1, 0, 0, 1, 0, 0}
	tslice := []float64{1, 0, 0, 1, 1, 0, 1, 0, 0}

	pred := ts.MustOfSlice(pslice).MustView([]int64{1, 3, 3}, true)
	target := ts.MustOfSlice(tslice).MustView([]int64{1, 3, 3}, true)

	iou := metric.IoU(pred, target)
	if math.Abs(iou-0.75) > 1e-9 {
		t.Errorf("IoU: want 0.7500, got %0.4f", iou)
	}
}

func TestDiceCoeff(t *testing.T) {
	pslice := []float64{1, 0, 0, 1, 0, 0, 1, 0, 0}
	tslice := []float64{1, 0, 0, 1, 1, 0, 1, 0, 0}

	pred := ts.MustOfSlice(pslice).MustView([]int64{1, 3, 3}, true)
	target := ts.MustOfSlice(tslice).MustView([]int64{1, 3, 3}, true)

	dice := metric.DiceCoeff(pred, target)
	if math.Abs(dice-6.0/7.0) > 1e-9 {
		t.Errorf("Dice: want 0.8571, got %0.4f", dice)
	}
}

func TestEmptyMasks(t *testing.T) {
	zeros := ts.MustOfSlice([]float64{0, 0, 0, 0})
	if got := metric.IoU(zeros, zeros); got != 1 {
		t.Errorf("IoU of empty masks: %v", got)
	}
	if got := metric.DiceCoeff(zeros, zeros); got != 1 {
		t.Errorf("Dice of empty masks: %v", got)
	}
}

func TestMeanIoU(t *testing.T) {
	pred := ts.MustOfSlice([]float64{1, 1, 0, 0, 1, 0, 0, 0}).MustView([]int64{2, 2, 2}, true)
	target := ts.MustOfSlice([]float64{1, 1, 0, 0, 1, 1, 0, 0}).MustView([]int64{2, 2, 2}, true)

	// (1 + 0.5) / 2
	if got := metric.MeanIoU(pred, target); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("MeanIoU: want 0.75, got %v", got)
	}
}

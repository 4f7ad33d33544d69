// Package structures holds the per-image instance records exchanged with the
// detection framework.
package structures

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	ts "github.com/sugarme/gotch/tensor"
	"golang.org/x/image/draw"
)

// Box is an axis-aligned box in absolute image coordinates (x0, y0, x1, y1).
type Box struct {
	X0, Y0, X1, Y1 float64
}

// Rect returns the smallest integer rectangle covering the box.
func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math.Floor(b.X0)), int(math.Floor(b.Y0)),
		int(math.Ceil(b.X1)), int(math.Ceil(b.Y1)),
	)
}

// BitMasks are full-image binary instance masks. A pixel is foreground when its
// gray value is >= 128.
type BitMasks []*image.Gray

// CropAndResize crops masks[i] to boxes[i] and resizes it to size x size.
// Boxes are first rounded outward to whole pixels (see Box.Rect), so the crop
// does not sample at sub-pixel positions the way ROIAlign does. Pixels of the
// box outside the image are background. The result is a float32 tensor
// [N, size, size] of 0s and 1s.
func (m BitMasks) CropAndResize(boxes []Box, size int) (*ts.Tensor, error) {
	if len(boxes) != len(m) {
		err := fmt.Errorf("CropAndResize: got %v boxes for %v masks", len(boxes), len(m))
		return nil, err
	}

	data := make([]float32, len(m)*size*size)
	for i, mask := range m {
		rect := boxes[i].Rect()
		if rect.Empty() {
			continue
		}

		canvas := image.NewGray(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		draw.Draw(canvas, canvas.Bounds(), mask, rect.Min, draw.Src)
		resized := imaging.Resize(canvas, size, size, imaging.Linear)

		offset := i * size * size
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				if resized.Pix[y*resized.Stride+x*4] >= 128 {
					data[offset+y*size+x] = 1
				}
			}
		}
	}

	return ts.MustOfSlice(data).MustView([]int64{int64(len(m)), int64(size), int64(size)}, true), nil
}

// Instances is the set of instances of one image. Training fills the proposal
// and ground-truth fields; inference fills the prediction fields and receives
// PredMasks.
type Instances struct {
	// ImageSize is the (width, height) of the image. Zero skips mask size checks.
	ImageSize image.Point

	ProposalBoxes []Box
	GtClasses     []int64
	GtMasks       BitMasks

	PredBoxes   []Box
	PredClasses []int64
	// PredMasks: [Len, 1, M, M] soft masks set by the mask head.
	PredMasks *ts.Tensor
}

// Len is the number of instances. Training records are counted by proposals,
// inference records by predicted boxes.
func (in *Instances) Len() int {
	if len(in.ProposalBoxes) > 0 {
		return len(in.ProposalBoxes)
	}
	return len(in.PredBoxes)
}

// GtMasksTensor crops the ground-truth masks to the proposal boxes. When
// ImageSize is set, every mask must cover exactly the image.
func (in *Instances) GtMasksTensor(size int) (*ts.Tensor, error) {
	if len(in.GtMasks) != len(in.ProposalBoxes) {
		err := fmt.Errorf("GtMasksTensor: got %v ground-truth masks for %v proposals", len(in.GtMasks), len(in.ProposalBoxes))
		return nil, err
	}
	if in.ImageSize != (image.Point{}) {
		for i, m := range in.GtMasks {
			if got := m.Bounds().Size(); got != in.ImageSize {
				err := fmt.Errorf("GtMasksTensor: mask %v is %v, image is %v", i, got, in.ImageSize)
				return nil, err
			}
		}
	}
	return in.GtMasks.CropAndResize(in.ProposalBoxes, size)
}

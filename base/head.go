package base

import "github.com/sugarme/gotch/nn"

// NewPredictor creates a 1x1 conv with no activation that maps features to
// cOut raw prediction channels.
func NewPredictor(p *nn.Path, cIn, cOut int64) *nn.Conv2D {
	return Conv2d(p, cIn, cOut, 1, 0, 1)
}

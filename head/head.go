// Package head implements a PatchDCT mask head: masks are predicted as a
// coarse DCT vector of the whole instance plus one DCT vector per grid patch.
//
// The head plugs into a two-stage detector. It receives pooled region features
// and fine features per instance and returns either the training loss under
// "loss_mask" or soft masks attached to the predicted instances.
package head

import (
	"github.com/pkg/errors"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/patchdct/structures"
)

// LossKey is the key of the mask loss returned by Forward in training.
const LossKey = "loss_mask"

// Head is the PatchDCT mask head.
type Head struct {
	*Processor
	layers *maskLayers
}

// NewHead validates cfg and creates the head variables under p.
func NewHead(p *nn.Path, cfg Config, opts ...Option) (*Head, error) {
	proc, err := NewProcessor(cfg, opts...)
	if err != nil {
		return nil, err
	}

	return &Head{
		Processor: proc,
		layers:    newMaskLayers(p, cfg),
	}, nil
}

// ForwardT returns raw predictions: patch vectors [N*Scale*Scale, K,
// PatchVectorDim] and coarse vectors [N, CoarseVectorDim].
func (h *Head) ForwardT(x, fineFeatures *ts.Tensor, train bool) (fine, coarse *ts.Tensor) {
	return h.layers.forwardT(x, fineFeatures, h.coarse, train)
}

// Forward runs the head. In training it returns {"loss_mask": loss}. In
// inference it returns a nil map and sets PredMasks on every Instances.
//
// x: [N, InChannels, PoolerResolution, PoolerResolution] region features.
// fineFeatures: [N, InChannels, FineResolution, FineResolution].
func (h *Head) Forward(x, fineFeatures *ts.Tensor, instances []*structures.Instances, train bool) (map[string]*ts.Tensor, error) {
	if n, total := x.MustSize()[0], countInstances(instances, train); n != total {
		return nil, errors.Errorf("got features for %d regions and %d instances", n, total)
	}

	fine, coarse := h.ForwardT(x, fineFeatures, train)
	defer fine.MustDrop()
	defer coarse.MustDrop()

	if train {
		loss, err := h.Loss(fine, coarse, instances)
		if err != nil {
			return nil, err
		}
		return map[string]*ts.Tensor{LossKey: loss}, nil
	}

	return nil, h.Inference(fine, coarse, instances)
}

// countInstances counts proposals in training and predicted classes in
// inference.
func countInstances(instances []*structures.Instances, train bool) int64 {
	var n int64
	for _, in := range instances {
		if train {
			n += int64(in.Len())
		} else {
			n += int64(len(in.PredClasses))
		}
	}
	return n
}

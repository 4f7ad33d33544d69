package head

import (
	"fmt"

	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/patchdct/base"
	"github.com/sugarme/patchdct/encoding"
)

// maskLayers is the trainable part of the head.
type maskLayers struct {
	convs      *nn.SequentialT
	coarse     *nn.SequentialT
	fusion     *nn.SequentialT
	downsample *nn.SequentialT
	predictor  *nn.Conv2D

	cfg Config
}

func newMaskLayers(p *nn.Path, cfg Config) *maskLayers {
	convs := nn.SeqT()
	cur := cfg.InChannels
	for k := int64(0); k < cfg.NumConv; k++ {
		convs.Add(base.Conv2dRelu(p.Sub(fmt.Sprintf("mask_fcn%d", k+1)), cur, cfg.ConvDim, 3, 1, 1, cfg.Norm))
		cur = cfg.ConvDim
	}

	r := cfg.PoolerResolution
	coarse := base.MLP(p.Sub("predictor_coarse"), []int64{cur * r * r, cfg.HiddenDim, cfg.HiddenDim, cfg.CoarseVectorDim})

	// fine features are concatenated with the decoded coarse mask.
	fusion := base.Conv2dRelu(p.Sub("fusion"), cfg.InChannels+1, cfg.ConvDim, 1, 0, 1, cfg.Norm)

	ratio := cfg.Ratio()
	downsample := nn.SeqT()
	downsample.Add(base.Conv2dRelu(p.Sub("downsample").Sub("0"), cfg.ConvDim, cfg.HiddenDim, ratio, 0, ratio, cfg.Norm))
	downsample.Add(base.Conv2dRelu(p.Sub("downsample").Sub("1"), cfg.HiddenDim, cfg.HiddenDim, 3, 1, 1, cfg.Norm))

	predictor := base.NewPredictor(p.Sub("predictor"), cfg.HiddenDim, cfg.PatchVectorDim*cfg.PredictedClasses())

	return &maskLayers{
		convs:      convs,
		coarse:     coarse,
		fusion:     fusion,
		downsample: downsample,
		predictor:  predictor,
		cfg:        cfg,
	}
}

// forwardT runs region features x [N, InChannels, R, R] and fine features
// [N, InChannels, F, F] through the head. It returns patch predictions
// [N*Scale*Scale, K, PatchVectorDim] and coarse predictions [N, CoarseVectorDim].
func (l *maskLayers) forwardT(x, fineFeatures *ts.Tensor, coarseEnc *encoding.Encoding, train bool) (fine, coarse *ts.Tensor) {
	n := x.MustSize()[0]
	f := l.cfg.FineResolution

	h := l.convs.ForwardT(x, train)
	flat := h.MustFlatten(1, -1, true)
	coarse = l.coarse.ForwardT(flat, train)
	flat.MustDrop()

	s := l.cfg.Scale
	if n == 0 {
		// spatial ops reject empty batches
		fine = ts.MustZeros([]int64{0, l.cfg.PredictedClasses(), l.cfg.PatchVectorDim}, gotch.Float, x.MustDevice())
		return fine, coarse
	}

	decoded := coarseEnc.MustDecode(coarse).MustUnsqueeze(1, true)
	masks := base.Upsample(decoded, []int64{f, f})
	decoded.MustDrop()

	cat := ts.MustCat([]ts.Tensor{*masks, *fineFeatures}, 1)
	masks.MustDrop()
	fused := l.fusion.ForwardT(cat, train)
	cat.MustDrop()
	down := l.downsample.ForwardT(fused, train)
	fused.MustDrop()
	logits := l.predictor.ForwardT(down, train)
	down.MustDrop()

	// [N, K*dim, S, S] -> [N, S, S, K*dim] -> [N*S*S, K, dim]
	fine = logits.MustPermute([]int64{0, 2, 3, 1}, true).
		MustReshape([]int64{n * s * s, l.cfg.PredictedClasses(), l.cfg.PatchVectorDim}, true)

	return fine, coarse
}

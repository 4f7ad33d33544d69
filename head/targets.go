package head

import (
	"github.com/pkg/errors"
	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/patchdct/base"
	"github.com/sugarme/patchdct/structures"
)

// targets are the DCT encoded ground truth of one training step.
type targets struct {
	fine    *ts.Tensor // [n*cells, PatchVectorDim]
	coarse  *ts.Tensor // [n, CoarseVectorDim]
	classes *ts.Tensor // [n] int64
	n       int64
}

func (t *targets) drop() {
	t.fine.MustDrop()
	t.coarse.MustDrop()
	t.classes.MustDrop()
}

// prepareTargets crops the ground-truth masks of all images to their proposal
// boxes and encodes them for the coarse mask and for every patch. It returns
// nil targets when no image has instances.
func (p *Processor) prepareTargets(instances []*structures.Instances) (*targets, error) {
	var (
		fines, coarses []ts.Tensor
		classes        []int64
	)
	drop := func() {
		for i := range fines {
			fines[i].MustDrop()
		}
		for i := range coarses {
			coarses[i].MustDrop()
		}
	}

	m, side := p.cfg.MaskSize, p.cfg.AssembledSize()
	for i, in := range instances {
		if in.Len() == 0 {
			continue
		}
		if len(in.GtClasses) != in.Len() {
			drop()
			return nil, errors.Errorf("image %d: %d ground-truth classes for %d proposals", i, len(in.GtClasses), in.Len())
		}
		for _, c := range in.GtClasses {
			if p.cfg.ClassAgnostic {
				c = 0
			}
			if c < 0 || c >= p.cfg.PredictedClasses() {
				drop()
				return nil, errors.Errorf("image %d: ground-truth class %d out of range [0, %d)", i, c, p.cfg.PredictedClasses())
			}
			classes = append(classes, c)
		}

		gt, err := in.GtMasksTensor(int(m))
		if err != nil {
			drop()
			return nil, errors.Wrapf(err, "image %d", i)
		}
		gt = gt.MustTo(p.device, true)

		coarse := p.coarse.MustEncode(gt)

		patchMasks := gt
		if side != m {
			up := gt.MustUnsqueeze(1, false)
			patchMasks = base.Upsample(up, []int64{side, side}).MustSqueeze1(1, true)
			up.MustDrop()
			gt.MustDrop()
		}
		fine, err := p.assembler.Split(patchMasks)
		patchMasks.MustDrop()
		if err != nil {
			coarse.MustDrop()
			drop()
			return nil, err
		}

		fines = append(fines, *fine)
		coarses = append(coarses, *coarse)
	}

	if len(classes) == 0 {
		return nil, nil
	}

	tg := &targets{
		fine:    ts.MustCat(fines, 0),
		coarse:  ts.MustCat(coarses, 0),
		classes: ts.MustOfSlice(classes).MustTo(p.device, true),
		n:       int64(len(classes)),
	}
	drop()

	return tg, nil
}

// EncodeTargets returns the encoded ground truth of instances as
// (patch vectors [n*cells, PatchVectorDim], coarse vectors [n, CoarseVectorDim],
// classes [n]). All are nil when there are no instances.
func (p *Processor) EncodeTargets(instances []*structures.Instances) (fine, coarse, classes *ts.Tensor, err error) {
	tg, err := p.prepareTargets(instances)
	if err != nil || tg == nil {
		return nil, nil, nil, err
	}
	return tg.fine, tg.coarse, tg.classes, nil
}

// emptyMasks is the PredMasks value of an image without predictions.
func (p *Processor) emptyMasks() *ts.Tensor {
	m := p.cfg.MaskSize
	return ts.MustEmpty([]int64{0, 1, m, m}, gotch.Float, p.device)
}

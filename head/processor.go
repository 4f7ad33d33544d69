package head

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"
	"go.uber.org/zap"

	"github.com/sugarme/patchdct/base"
	"github.com/sugarme/patchdct/encoding"
	"github.com/sugarme/patchdct/patch"
	"github.com/sugarme/patchdct/structures"
)

// Option configures a Processor or a Head.
type Option func(*options)

type options struct {
	logger *zap.Logger
	device gotch.Device
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDevice sets the device the DCT atoms live on. Defaults to CPU.
func WithDevice(d gotch.Device) Option {
	return func(o *options) { o.device = d }
}

// Processor turns DCT vector predictions into a training loss or into soft
// masks. It holds no trainable parameters.
type Processor struct {
	cfg      Config
	lossType LossType
	b1       float64
	dctSize  int64

	coarse    *encoding.Encoding
	assembler *patch.Assembler

	device gotch.Device
	logger *zap.Logger
}

// NewProcessor validates cfg and builds the coarse and patch encodings.
func NewProcessor(cfg Config, opts ...Option) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid mask head config")
	}
	o := options{logger: zap.NewNop(), device: gotch.CPU}
	for _, opt := range opts {
		opt(&o)
	}

	lossType, _ := ParseLossType(cfg.LossType)
	coarse, err := encoding.New(cfg.CoarseVectorDim, cfg.MaskSize, o.device)
	if err != nil {
		return nil, errors.Wrap(err, "coarse encoding")
	}
	fine, err := encoding.New(cfg.PatchVectorDim, cfg.PatchSize(), o.device)
	if err != nil {
		coarse.Drop()
		return nil, errors.Wrap(err, "patch encoding")
	}
	assembler, err := patch.NewAssembler(patch.Grid{Scale: cfg.Scale, PatchSize: cfg.PatchSize()}, fine)
	if err != nil {
		coarse.Drop()
		fine.Drop()
		return nil, err
	}

	o.logger.Info("dct mask processor",
		zap.Int64("mask_size", cfg.MaskSize),
		zap.Int64("scale", cfg.Scale),
		zap.Int64("patch_size", cfg.PatchSize()),
		zap.Int64("coarse_dim", cfg.CoarseVectorDim),
		zap.Int64("patch_dim", cfg.PatchVectorDim),
		zap.String("loss", string(lossType)),
	)
	if cfg.AssembledSize() != cfg.MaskSize {
		o.logger.Warn("scale does not divide mask_size; patch masks are resampled",
			zap.Int64("assembled_size", cfg.AssembledSize()))
	}

	return &Processor{
		cfg:       cfg,
		lossType:  lossType,
		b1:        cfg.DegenerateThreshold,
		dctSize:   cfg.PatchSize(),
		coarse:    coarse,
		assembler: assembler,
		device:    o.device,
		logger:    o.logger,
	}, nil
}

// Config returns the processor configuration.
func (p *Processor) Config() Config {
	return p.cfg
}

// CoarseEncoding is the whole-mask encoding.
func (p *Processor) CoarseEncoding() *encoding.Encoding {
	return p.coarse
}

// Assembler is the patch encoding and grid.
func (p *Processor) Assembler() *patch.Assembler {
	return p.assembler
}

// selectClass picks, for every patch, the vector of its instance class.
// pred: [n*cells, K, dim], classes: [n] int64. Returns [n*cells, dim].
func (p *Processor) selectClass(pred, classes *ts.Tensor) *ts.Tensor {
	n := classes.MustSize()[0]
	cells := p.assembler.Cells()
	dim := pred.MustSize()[2]

	idx := classes.MustView([]int64{n, 1}, false).
		MustExpand([]int64{n, cells}, false, true).
		MustReshape([]int64{n * cells, 1, 1}, true).
		MustExpand([]int64{n * cells, 1, dim}, false, true)
	sel := pred.MustGather(1, idx, false, false).MustSqueeze1(1, true)
	idx.MustDrop()

	return sel
}

func (p *Processor) checkShapes(predFine, predCoarse *ts.Tensor, n int64) {
	fine := predFine.MustSize()
	coarse := predCoarse.MustSize()
	cells := p.assembler.Cells()
	if len(fine) != 3 || fine[0] != n*cells || fine[1] != p.cfg.PredictedClasses() || fine[2] != p.cfg.PatchVectorDim {
		panic(fmt.Sprintf("patch predictions: expected shape [%v %v %v]. Got %v",
			n*cells, p.cfg.PredictedClasses(), p.cfg.PatchVectorDim, fine))
	}
	if len(coarse) != 2 || coarse[0] != n || coarse[1] != p.cfg.CoarseVectorDim {
		panic(fmt.Sprintf("coarse predictions: expected shape [%v %v]. Got %v", n, p.cfg.CoarseVectorDim, coarse))
	}
}

// Loss computes the mask loss of one training step.
//
// predFine: [N*Scale*Scale, K, PatchVectorDim] per-patch per-class vectors,
// predCoarse: [N, CoarseVectorDim], where N counts the instances of all images
// in order. Patches whose target DC is <= b1 or >= PatchSize-b1 do not
// contribute to the patch term. Without instances the loss is a zero scalar that
// stays connected to the predictions.
func (p *Processor) Loss(predFine, predCoarse *ts.Tensor, instances []*structures.Instances) (*ts.Tensor, error) {
	tg, err := p.prepareTargets(instances)
	if err != nil {
		return nil, err
	}
	if tg == nil {
		return zeroLike(predFine, predCoarse), nil
	}
	defer tg.drop()

	p.checkShapes(predFine, predCoarse, tg.n)

	sel := p.selectClass(predFine, tg.classes)
	dc := tg.fine.MustSelect(1, 0, false)
	lo := dc.MustGt(ts.FloatScalar(p.b1), false)
	hi := dc.MustLt(ts.FloatScalar(float64(p.dctSize)-p.b1), true)
	keep := lo.MustMul(hi, true)
	hi.MustDrop()
	nz := keep.MustNonzero(true)
	kept := nz.MustSize()[0]
	keepIdx := nz.MustReshape([]int64{kept}, true)

	var fineLoss *ts.Tensor
	if kept == 0 {
		fineLoss = zeroLike(sel)
	} else {
		predKept := sel.MustIndexSelect(0, keepIdx, false)
		gtKept := tg.fine.MustIndexSelect(0, keepIdx, false)
		fineLoss = p.lossType.Compute(predKept, gtKept)
		predKept.MustDrop()
		gtKept.MustDrop()
	}
	sel.MustDrop()
	keepIdx.MustDrop()

	coarseLoss := p.lossType.Compute(predCoarse, tg.coarse)
	loss := fineLoss.MustAdd(coarseLoss, true).MustMul1(ts.FloatScalar(p.cfg.LossWeight), true)
	coarseLoss.MustDrop()

	p.logger.Debug("mask loss",
		zap.Int64("instances", tg.n),
		zap.Int64("patches", tg.n*p.assembler.Cells()),
		zap.Int64("kept_patches", kept),
	)

	return loss, nil
}

// degenerate classifies grid cells from the coarse mask occupancy expressed in
// DC units (a full patch equals PatchSize). It returns float masks [P, 1] for
// cells decoded normally and for cells forced to foreground. Cells in neither
// set are forced to background. A cell matching both rules is foreground.
func (p *Processor) degenerate(occupancy *ts.Tensor) (normal, full *ts.Tensor) {
	high := float64(p.dctSize) - p.b1

	lo := occupancy.MustGt(ts.FloatScalar(p.b1), false)
	hi := occupancy.MustLt(ts.FloatScalar(high), false)
	normal = lo.MustMul(hi, true).MustTotype(gotch.Float, true).MustUnsqueeze(1, true)
	hi.MustDrop()

	full = occupancy.MustGe(ts.FloatScalar(high), false).MustTotype(gotch.Float, true).MustUnsqueeze(1, true)

	return normal, full
}

// occupancy thresholds decoded coarse masks [N, M, M] at 0.5 and average pools
// them to the grid. Returns [N*Scale*Scale] in DC units.
func (p *Processor) occupancy(coarseMasks *ts.Tensor) *ts.Tensor {
	n := coarseMasks.MustSize()[0]
	s := p.cfg.Scale

	bin := coarseMasks.MustGe(ts.FloatScalar(0.5), false).MustTotype(gotch.Float, true).MustUnsqueeze(1, true)
	occ := bin.MustAdaptiveAvgPool2d([]int64{s, s}, true).
		MustReshape([]int64{n * s * s}, true).
		MustMul1(ts.FloatScalar(float64(p.dctSize)), true)

	return occ
}

// Inference decodes predictions into soft masks and stores them, split per
// image, in each Instances.PredMasks as [n_i, 1, MaskSize, MaskSize].
//
// The vector of each instance's predicted class is used. The coarse vector is
// decoded and binarized to find degenerate patches: patches with occupancy
// <= b1 are all background, patches with occupancy >= PatchSize-b1 are all
// foreground, others are decoded from their patch vector.
func (p *Processor) Inference(predFine, predCoarse *ts.Tensor, instances []*structures.Instances) error {
	var (
		counts  []int64
		classes []int64
		n       int64
	)
	for _, in := range instances {
		cnt := int64(len(in.PredClasses))
		counts = append(counts, cnt)
		n += cnt
		for _, c := range in.PredClasses {
			if p.cfg.ClassAgnostic {
				c = 0
			}
			if c < 0 || c >= p.cfg.PredictedClasses() {
				return errors.Errorf("predicted class %d out of range [0, %d)", c, p.cfg.PredictedClasses())
			}
			classes = append(classes, c)
		}
	}

	if n == 0 {
		for _, in := range instances {
			in.PredMasks = p.emptyMasks()
		}
		return nil
	}

	p.checkShapes(predFine, predCoarse, n)

	var err error
	ts.NoGrad(func() {
		classTs := ts.MustOfSlice(classes).MustTo(p.device, true)
		sel := p.selectClass(predFine, classTs)
		classTs.MustDrop()

		coarseMasks := p.coarse.MustDecode(predCoarse)
		occ := p.occupancy(coarseMasks)
		coarseMasks.MustDrop()
		normal, full := p.degenerate(occ)
		occ.MustDrop()

		if ce := p.logger.Check(zap.DebugLevel, "mask inference"); ce != nil {
			cells := float64(n * p.assembler.Cells())
			normalCells, fullCells := sumOf(normal), sumOf(full)
			ce.Write(
				zap.Int64("instances", n),
				zap.Float64("decoded_cells", normalCells),
				zap.Float64("foreground_cells", fullCells),
				zap.Float64("background_cells", cells-normalCells-fullCells),
			)
		}

		dcUnit := make([]float32, p.cfg.PatchVectorDim)
		dcUnit[0] = float32(p.dctSize)
		dcTs := ts.MustOfSlice(dcUnit).MustView([]int64{1, p.cfg.PatchVectorDim}, true).MustTo(p.device, true)

		// normal cells keep their vector, full cells become DC only, the rest zero.
		kept := sel.MustMul(normal, true)
		fill := full.MustMul(dcTs, true)
		vectors := kept.MustAdd(fill, true)
		fill.MustDrop()
		dcTs.MustDrop()
		normal.MustDrop()

		var masks *ts.Tensor
		masks, err = p.assembler.Assemble(vectors)
		vectors.MustDrop()
		if err != nil {
			return
		}
		masks = masks.MustUnsqueeze(1, true)
		if m := p.cfg.MaskSize; p.cfg.AssembledSize() != m {
			resized := base.Upsample(masks, []int64{m, m})
			masks.MustDrop()
			masks = resized
		}

		var start int64
		for i, in := range instances {
			in.PredMasks = masks.MustNarrow(0, start, counts[i], false)
			start += counts[i]
		}
		masks.MustDrop()
	})

	return err
}

func sumOf(x *ts.Tensor) float64 {
	sum := x.MustSum(gotch.Double, false)
	v := sum.Float64Values()[0]
	sum.MustDrop()
	return v
}

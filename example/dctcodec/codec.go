package main

import (
	"image"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sugarme/gotch"
	"go.uber.org/zap"

	"github.com/sugarme/patchdct/head"
	"github.com/sugarme/patchdct/metric"
	"github.com/sugarme/patchdct/structures"
)

// runEncode reconstructs the input mask from its coarse DCT vector.
func runEncode(cfg head.Config) error {
	proc, err := head.NewProcessor(cfg, head.WithLogger(logger), head.WithDevice(Device))
	if err != nil {
		return err
	}

	gray, err := readMask(InputPath, int(cfg.MaskSize))
	if err != nil {
		return errors.Wrap(err, "read mask")
	}
	mask := maskTensor(gray).MustTo(Device, true)
	defer mask.MustDrop()

	enc := proc.CoarseEncoding()
	vec := enc.MustEncode(mask)
	rec := enc.MustDecode(vec).MustTo(gotch.CPU, true)
	vec.MustDrop()
	defer rec.MustDrop()

	cpuMask := mask.MustTo(gotch.CPU, false)
	defer cpuMask.MustDrop()
	logger.Info("coarse reconstruction",
		zap.Int64("dim", cfg.CoarseVectorDim),
		zap.Float64("iou", metric.IoU(rec, cpuMask)),
		zap.Float64("dice", metric.DiceCoeff(rec, cpuMask)),
	)

	out := filepath.Join(OutputDir, "coarse.png")
	if err := saveMask(rec, out); err != nil {
		return errors.Wrap(err, "save reconstruction")
	}
	logger.Info("saved", zap.String("file", out))

	return nil
}

// runPatch feeds the encoded ground truth of the input mask through the
// inference path, so the result shows the coarse-plus-patch reconstruction
// with degenerate patches filled.
func runPatch(cfg head.Config) error {
	cfg.ClassAgnostic = true
	proc, err := head.NewProcessor(cfg, head.WithLogger(logger), head.WithDevice(Device))
	if err != nil {
		return err
	}

	m := int(cfg.MaskSize)
	gray, err := readMask(InputPath, m)
	if err != nil {
		return errors.Wrap(err, "read mask")
	}

	gt := &structures.Instances{
		ImageSize:     image.Pt(m, m),
		ProposalBoxes: []structures.Box{{X0: 0, Y0: 0, X1: float64(m), Y1: float64(m)}},
		GtClasses:     []int64{0},
		GtMasks:       structures.BitMasks{gray},
	}
	fine, coarse, classes, err := proc.EncodeTargets([]*structures.Instances{gt})
	if err != nil {
		return err
	}
	defer fine.MustDrop()
	defer coarse.MustDrop()
	classes.MustDrop()

	// a single class channel: [cells, dim] -> [cells, 1, dim]
	predFine := fine.MustUnsqueeze(1, false)
	defer predFine.MustDrop()

	pred := &structures.Instances{
		ImageSize:   image.Pt(m, m),
		PredBoxes:   gt.ProposalBoxes,
		PredClasses: []int64{0},
	}
	if err := proc.Inference(predFine, coarse, []*structures.Instances{pred}); err != nil {
		return err
	}
	rec := pred.PredMasks.MustSqueeze1(1, false).MustTo(gotch.CPU, true)
	defer rec.MustDrop()

	mask := maskTensor(gray)
	defer mask.MustDrop()
	logger.Info("patch reconstruction",
		zap.Int64("coarse_dim", cfg.CoarseVectorDim),
		zap.Int64("patch_dim", cfg.PatchVectorDim),
		zap.Int64("patch_size", cfg.PatchSize()),
		zap.Float64("iou", metric.IoU(rec, mask)),
		zap.Float64("dice", metric.DiceCoeff(rec, mask)),
	)

	out := filepath.Join(OutputDir, "patch.png")
	if err := saveMask(rec, out); err != nil {
		return errors.Wrap(err, "save reconstruction")
	}
	logger.Info("saved", zap.String("file", out))

	return nil
}

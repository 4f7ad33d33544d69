package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
	"github.com/sugarme/gotch"
	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sugarme/patchdct/encoding"
	"github.com/sugarme/patchdct/head"
	"github.com/sugarme/patchdct/metric"
)

func parseDims(s string) ([]int, error) {
	var dims []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		d, err := strconv.Atoi(f)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid dim %q", f)
		}
		dims = append(dims, d)
	}
	if len(dims) == 0 {
		return nil, errors.Errorf("no dims in %q", s)
	}
	return dims, nil
}

// runSweep measures the coarse reconstruction quality of the input mask for
// every dim in -dims on CPU and writes sweep.csv and sweep.png.
func runSweep(cfg head.Config) error {
	dims, err := parseDims(DimsStr)
	if err != nil {
		return err
	}

	gray, err := readMask(InputPath, int(cfg.MaskSize))
	if err != nil {
		return errors.Wrap(err, "read mask")
	}
	mask := maskTensor(gray)
	defer mask.MustDrop()

	var ious, dices []float64
	for _, d := range dims {
		enc, err := encoding.New(int64(d), cfg.MaskSize, gotch.CPU)
		if err != nil {
			return err
		}
		vec := enc.MustEncode(mask)
		rec := enc.MustDecode(vec)
		vec.MustDrop()

		iou, dice := metric.IoU(rec, mask), metric.DiceCoeff(rec, mask)
		rec.MustDrop()
		enc.Drop()

		ious = append(ious, iou)
		dices = append(dices, dice)
		logger.Debug("sweep", zap.Int("dim", d), zap.Float64("iou", iou), zap.Float64("dice", dice))
	}

	df := dataframe.New(
		series.New(dims, series.Int, "dim"),
		series.New(ious, series.Float, "iou"),
		series.New(dices, series.Float, "dice"),
	)
	csvFile := filepath.Join(OutputDir, "sweep.csv")
	f, err := os.Create(csvFile)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := df.WriteCSV(f); err != nil {
		return errors.Wrap(err, "write sweep csv")
	}

	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = "Coarse mask IoU"
	p.X.Label.Text = "dct vector dim"
	p.Y.Label.Text = "IoU"

	pts := make(plotter.XYs, len(dims))
	for i := range dims {
		pts[i].X = float64(dims[i])
		pts[i].Y = ious[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(line)

	pngFile := filepath.Join(OutputDir, "sweep.png")
	if err := p.Save(4*vg.Inch, 4*vg.Inch, pngFile); err != nil {
		return errors.Wrap(err, "save sweep plot")
	}

	logger.Info("sweep done", zap.Int("dims", len(dims)), zap.String("csv", csvFile), zap.String("plot", pngFile))

	return nil
}

package main

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/chai2010/tiff"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	ts "github.com/sugarme/gotch/tensor"
	"golang.org/x/image/draw"
)

// readImage reads image from file.
func readImage(filename string) (image.Image, error) {
	ext := filepath.Ext(filename)
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext {
	case ".png", ".PNG":
		return png.Decode(f)
	case ".jpg", ".jpeg", ".JPG", ".JPEG":
		return jpeg.Decode(f)
	case ".tiff", ".tif", ".TIFF", ".TIF":
		return tiff.Decode(f)
	default:
		err = fmt.Errorf("Unsupported image format: %v\n", ext)
		return nil, err
	}
}

// readMask reads a mask image, resizes it to size x size and binarizes it at
// half intensity.
func readMask(filename string, size int) (*image.Gray, error) {
	img, err := readImage(filename)
	if err != nil {
		return nil, err
	}

	img = resize.Resize(uint(size), uint(size), img, resize.NearestNeighbor)
	gray := image.NewGray(image.Rect(0, 0, size, size))
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
	for i, p := range gray.Pix {
		if p >= 128 {
			gray.Pix[i] = 255
		} else {
			gray.Pix[i] = 0
		}
	}

	return gray, nil
}

// maskTensor converts a binary gray image to a float tensor [1, H, W] of 0/1.
func maskTensor(img *image.Gray) *ts.Tensor {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	data := make([]float32, h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if img.GrayAt(b.Min.X+x, b.Min.Y+y).Y >= 128 {
				data[y*w+x] = 1
			}
		}
	}

	return ts.MustOfSlice(data).MustView([]int64{1, int64(h), int64(w)}, true)
}

// saveMask writes a soft mask [H, W] (or [1, H, W]) clipped to [0, 1] as a
// gray PNG.
func saveMask(mask *ts.Tensor, filename string) error {
	size := mask.MustSize()
	h, w := int(size[len(size)-2]), int(size[len(size)-1])
	vals := mask.Float64Values()

	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := vals[y*w+x]
			switch {
			case v < 0:
				v = 0
			case v > 1:
				v = 1
			}
			img.SetGray(x, y, color.Gray{uint8(v*255 + 0.5)})
		}
	}

	return imaging.Save(img, filename)
}

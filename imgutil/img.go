// Package imgutil moves images in and out of the network's tensor layout.
package imgutil

import (
	"errors"
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
	"github.com/sugarme/gotch/ts"
	"golang.org/x/image/draw"
)

// ErrUnsupportedFormat is returned for file extensions ReadImage cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ReadImage reads image from file.
func ReadImage(filename string) (image.Image, error) {
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
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, ext)
	}
}

// SavePNG writes img as a png file.
func SavePNG(img image.Image, filename string) error {
	out, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// GridSize rounds w and h to the nearest positive multiple.
func GridSize(w, h, multiple int) (int, int) {
	round := func(v int) int {
		n := (v + multiple/2) / multiple
		if n < 1 {
			n = 1
		}
		return n * multiple
	}

	return round(w), round(h)
}

// FitToGrid resizes img so both sides are multiples of multiple.
// An image already on the grid is only copied.
func FitToGrid(img image.Image, multiple int) *image.NRGBA {
	b := img.Bounds()
	w, h := GridSize(b.Dx(), b.Dy(), multiple)
	if w == b.Dx() && h == b.Dy() {
		return imaging.Clone(img)
	}

	return imaging.Resize(img, w, h, imaging.Linear)
}

// Pixels returns img as float32 values in [0, 1], laid out [C H W].
// channels 1 is luminance, 3 is RGB.
func Pixels(img image.Image, channels int) ([]float32, error) {
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("expected 1 or 3 channels, got %d; use Raster for multi-band input", channels)
	}

	var src *image.NRGBA
	if channels == 1 {
		src = imaging.Grayscale(img)
	} else {
		src = imaging.Clone(img)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float32, channels*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			for c := 0; c < channels; c++ {
				out[c*w*h+y*w+x] = float32(src.Pix[off+c]) / 255
			}
		}
	}

	return out, nil
}

// ToTensor converts img to a float tensor of shape [1 C H W].
func ToTensor(img image.Image, channels int) (*ts.Tensor, error) {
	pix, err := Pixels(img, channels)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	size := []int64{1, int64(channels), int64(b.Dy()), int64(b.Dx())}

	x, err := ts.OfSlice(pix)
	if err != nil {
		return nil, err
	}

	return x.MustView(size, true), nil
}

// MaskImage turns probabilities laid out [H W] into a black/white mask.
func MaskImage(prob []float64, w, h int, threshold float64) (*image.Gray, error) {
	if len(prob) != w*h {
		return nil, fmt.Errorf("expected %d values for %dx%d mask, got %d", w*h, w, h, len(prob))
	}

	mask := image.NewGray(image.Rect(0, 0, w, h))
	for i, p := range prob {
		if p > threshold {
			mask.Pix[i] = 255
		}
	}

	return mask, nil
}

// ResizeMask scales a mask with nearest-neighbour sampling so it stays binary.
func ResizeMask(mask image.Image, w, h int) image.Image {
	return resize.Resize(uint(w), uint(h), mask, resize.NearestNeighbor)
}

// OverlayColor is the highlight Overlay paints over masked pixels.
var OverlayColor = color.RGBA{R: 255, A: 255}

// Overlay paints OverlayColor over the white pixels of mask at 40% opacity.
// Pixels outside the mask keep their colour.
func Overlay(img, mask image.Image) *image.RGBA {
	rec := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, rec.Dx(), rec.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rec.Min, draw.Src)

	// mask luminance -> coverage
	alpha := image.NewAlpha(dst.Bounds())
	mb := mask.Bounds()
	for y := 0; y < rec.Dy() && y < mb.Dy(); y++ {
		for x := 0; x < rec.Dx() && x < mb.Dx(); x++ {
			g := color.GrayModel.Convert(mask.At(mb.Min.X+x, mb.Min.Y+y)).(color.Gray)
			alpha.SetAlpha(x, y, color.Alpha{A: uint8(int(g.Y) * 102 / 255)})
		}
	}
	draw.DrawMask(dst, dst.Bounds(), image.NewUniform(OverlayColor), image.Point{}, alpha, image.Point{}, draw.Over)

	return dst
}

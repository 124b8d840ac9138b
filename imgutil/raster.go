package imgutil

import (
	"errors"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"strings"

	"github.com/sugarme/gotch/ts"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"
)

// ErrBandMismatch is returned when raster bands disagree in size or count.
var ErrBandMismatch = errors.New("band mismatch")

// Raster is a multi-band image with one row-major float32 plane per band,
// e.g. Blue, Green, Red, NIR, SWIR1, SWIR2, Thermal and DEM of a satellite tile.
type Raster struct {
	Width  int
	Height int
	Names  []string
	Bands  [][]float32
}

// BandStat holds the statistics a band was normalized with.
type BandStat struct {
	Name string
	Mean float64
	Std  float64
}

// NewRaster checks every band holds w*h values and returns the Raster.
// names may be nil.
func NewRaster(w, h int, names []string, bands [][]float32) (*Raster, error) {
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrBandMismatch, w, h)
	}
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: no bands", ErrBandMismatch)
	}
	if names != nil && len(names) != len(bands) {
		return nil, fmt.Errorf("%w: %d names for %d bands", ErrBandMismatch, len(names), len(bands))
	}
	for i, b := range bands {
		if len(b) != w*h {
			return nil, fmt.Errorf("%w: band %d has %d values, expected %d", ErrBandMismatch, i, len(b), w*h)
		}
	}
	if names == nil {
		names = make([]string, len(bands))
		for i := range names {
			names[i] = fmt.Sprintf("band%d", i+1)
		}
	}

	return &Raster{Width: w, Height: h, Names: names, Bands: bands}, nil
}

// Channels returns the number of bands.
func (r *Raster) Channels() int {
	return len(r.Bands)
}

// FitBandsToGrid resizes single-band images to the grid size of the first one
// with bilinear sampling, keeping 16 bit precision.
func FitBandsToGrid(imgs []image.Image, multiple int) ([]*image.Gray16, error) {
	if len(imgs) == 0 {
		return nil, fmt.Errorf("%w: no bands", ErrBandMismatch)
	}

	size := imgs[0].Bounds().Size()
	w, h := GridSize(size.X, size.Y, multiple)
	out := make([]*image.Gray16, 0, len(imgs))
	for i, img := range imgs {
		if img.Bounds().Size() != size {
			return nil, fmt.Errorf("%w: band %d is %v, band 0 is %v", ErrBandMismatch, i, img.Bounds().Size(), size)
		}
		dst := image.NewGray16(image.Rect(0, 0, w, h))
		draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		out = append(out, dst)
	}

	return out, nil
}

// RasterFromBands stacks equally sized band images. Values are the raw
// 16 bit luminance, not scaled.
func RasterFromBands(names []string, bands []*image.Gray16) (*Raster, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: no bands", ErrBandMismatch)
	}

	size := bands[0].Bounds().Size()
	planes := make([][]float32, 0, len(bands))
	for i, g := range bands {
		if g.Bounds().Size() != size {
			return nil, fmt.Errorf("%w: band %d is %v, band 0 is %v", ErrBandMismatch, i, g.Bounds().Size(), size)
		}
		b := g.Bounds()
		plane := make([]float32, 0, size.X*size.Y)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				plane = append(plane, float32(g.Gray16At(x, y).Y))
			}
		}
		planes = append(planes, plane)
	}

	return NewRaster(size.X, size.Y, names, planes)
}

// ReadBands reads one single-band file per channel, fits them to the grid and
// stacks them. Band names come from the file names. The first band image is
// returned too, at its original size.
func ReadBands(paths []string, multiple int) (*Raster, image.Image, error) {
	imgs := make([]image.Image, 0, len(paths))
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		img, err := ReadImage(p)
		if err != nil {
			return nil, nil, err
		}
		imgs = append(imgs, img)
		names = append(names, strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)))
	}

	bands, err := FitBandsToGrid(imgs, multiple)
	if err != nil {
		return nil, nil, err
	}
	r, err := RasterFromBands(names, bands)
	if err != nil {
		return nil, nil, err
	}

	return r, imgs[0], nil
}

// Normalize standardizes every band in place to zero mean and unit variance.
// A constant band is only centered.
func (r *Raster) Normalize() []BandStat {
	stats := make([]BandStat, 0, len(r.Bands))
	for i, band := range r.Bands {
		vals := make([]float64, len(band))
		for j, v := range band {
			vals[j] = float64(v)
		}
		mean, std := stat.MeanStdDev(vals, nil)
		if math.IsNaN(std) {
			std = 0
		}

		scale := 1.0
		if std > 0 {
			scale = 1 / std
		}
		for j, v := range vals {
			band[j] = float32((v - mean) * scale)
		}
		stats = append(stats, BandStat{Name: r.Names[i], Mean: mean, Std: std})
	}

	return stats
}

// Pixels returns the bands laid out [C H W].
func (r *Raster) Pixels() []float32 {
	n := r.Width * r.Height
	out := make([]float32, 0, len(r.Bands)*n)
	for _, band := range r.Bands {
		out = append(out, band...)
	}

	return out
}

// ToTensor converts the raster to a float tensor of shape [1 C H W].
func (r *Raster) ToTensor() (*ts.Tensor, error) {
	x, err := ts.OfSlice(r.Pixels())
	if err != nil {
		return nil, err
	}
	size := []int64{1, int64(len(r.Bands)), int64(r.Height), int64(r.Width)}

	return x.MustView(size, true), nil
}

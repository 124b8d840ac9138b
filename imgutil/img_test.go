package imgutil_test

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sugarme/unetseg/imgutil"
)

func checker(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
			} else {
				img.Set(x, y, color.NRGBA{A: 255})
			}
		}
	}

	return img
}

func TestGridSize(t *testing.T) {
	tests := []struct{ w, h, wantW, wantH int }{
		{64, 64, 64, 64},
		{70, 57, 64, 64},
		{72, 100, 80, 96},
		{3, 5, 16, 16},
	}
	for _, tt := range tests {
		w, h := imgutil.GridSize(tt.w, tt.h, 16)
		assert.Equal(t, tt.wantW, w, "w for %dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, h, "h for %dx%d", tt.w, tt.h)
	}
}

func TestFitToGrid(t *testing.T) {
	out := imgutil.FitToGrid(checker(70, 33), 16)
	assert.Equal(t, 64, out.Bounds().Dx())
	assert.Equal(t, 32, out.Bounds().Dy())

	same := imgutil.FitToGrid(checker(32, 16), 16)
	assert.Equal(t, image.Rect(0, 0, 32, 16), same.Bounds())
}

func TestPixelsLayout(t *testing.T) {
	img := checker(2, 2)

	rgb, err := imgutil.Pixels(img, 3)
	require.NoError(t, err)
	require.Len(t, rgb, 12)
	// R plane, then G, then B; pixel (0,0) is red-ish, (1,0) black.
	assert.InDelta(t, 1.0, rgb[0], 1e-6)
	assert.InDelta(t, 0.0, rgb[1], 1e-6)
	assert.InDelta(t, 0.0, rgb[4], 1e-6)
	assert.InDelta(t, 0.2, rgb[8], 1e-6)

	gray, err := imgutil.Pixels(img, 1)
	require.NoError(t, err)
	require.Len(t, gray, 4)
	assert.Greater(t, gray[0], gray[1])

	_, err = imgutil.Pixels(img, 2)
	assert.Error(t, err)
}

func TestMaskImageAndOverlay(t *testing.T) {
	mask, err := imgutil.MaskImage([]float64{0.1, 0.9, 0.6, 0.4}, 2, 2, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 255, 255, 0}, mask.Pix)

	_, err = imgutil.MaskImage([]float64{0.1}, 2, 2, 0.5)
	assert.Error(t, err)

	big := imgutil.ResizeMask(mask, 4, 4)
	assert.Equal(t, image.Rect(0, 0, 4, 4), big.Bounds())
	r, _, _, _ := big.At(3, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)

	gray := image.NewUniform(color.Gray{Y: 100})
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	draw.Draw(img, img.Bounds(), gray, image.Point{}, draw.Src)

	over := imgutil.Overlay(img, mask)
	assert.Equal(t, image.Rect(0, 0, 2, 2), over.Bounds())
	// masked: 40% red over gray 100
	assert.Equal(t, color.RGBA{R: 162, G: 60, B: 60, A: 255}, over.RGBAAt(1, 0))
	assert.Equal(t, over.RGBAAt(1, 0), over.RGBAAt(0, 1))
	// unmasked pixels are left alone
	assert.Equal(t, color.RGBA{R: 100, G: 100, B: 100, A: 255}, over.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 100, G: 100, B: 100, A: 255}, over.RGBAAt(1, 1))
}

func TestSaveAndReadPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	require.NoError(t, imgutil.SavePNG(checker(4, 4), path))

	img, err := imgutil.ReadImage(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())

	_, err = imgutil.ReadImage(filepath.Join(t.TempDir(), "img.bmp"))
	assert.Error(t, err)
}

func TestRLERoundTrip(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 3, 2))
	// column-major numbering: (0,0)=1 (0,1)=2 (1,0)=3 (1,1)=4 (2,0)=5 (2,1)=6
	mask.SetGray(0, 1, color.Gray{255})
	mask.SetGray(1, 0, color.Gray{255})
	mask.SetGray(2, 1, color.Gray{255})

	rle := imgutil.EncodeRLE(mask)
	assert.Equal(t, []int{2, 2, 6, 1}, rle)

	back, err := imgutil.DecodeRLE(rle, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, mask.Pix, back.Pix)

	_, err = imgutil.DecodeRLE([]int{5, 3}, 3, 2)
	assert.Error(t, err)
	_, err = imgutil.DecodeRLE([]int{1}, 3, 2)
	assert.Error(t, err)
}

func TestRLECSV(t *testing.T) {
	var buf bytes.Buffer
	err := imgutil.WriteRLECSV(&buf, []string{"a01", "b02"}, [][]int{{1, 3, 10, 2}, {4, 1}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "1 3 10 2")

	got, err := imgutil.ReadRLECSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, map[string][]int{"a01": {1, 3, 10, 2}, "b02": {4, 1}}, got)

	assert.Error(t, imgutil.WriteRLECSV(&buf, []string{"x"}, nil))
}

func TestSaveRLECSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "tile-rle.csv")
	require.NoError(t, imgutil.SaveRLECSV(path, []string{"tile_0"}, [][]int{{2, 2, 6, 1}}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := imgutil.ReadRLECSV(f)
	require.NoError(t, err)
	assert.Equal(t, map[string][]int{"tile_0": {2, 2, 6, 1}}, got)

	// a directory cannot be created as a file
	assert.Error(t, imgutil.SaveRLECSV(filepath.Dir(path), []string{"a"}, [][]int{{1, 1}}))
	assert.Error(t, imgutil.SaveRLECSV(path, []string{"a", "b"}, [][]int{{1, 1}}))
}

func TestToTensor(t *testing.T) {
	x, err := imgutil.ToTensor(checker(4, 2), 3)
	require.NoError(t, err)
	defer x.MustDrop()

	assert.Equal(t, []int64{1, 3, 2, 4}, x.MustSize())
	assert.InDelta(t, 1.0, x.Float64Values()[0], 1e-6)
}

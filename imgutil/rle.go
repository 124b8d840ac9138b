package imgutil

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// EncodeRLE run-length encodes the non-zero pixels of mask.
//
// Pixels are numbered from 1, top to bottom then left to right, and the
// result alternates start and length.
func EncodeRLE(mask *image.Gray) []int {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()

	var (
		rle   []int
		start int
		run   int
	)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			pos := x*h + y + 1
			if mask.GrayAt(b.Min.X+x, b.Min.Y+y).Y != 0 {
				if run == 0 {
					start = pos
				}
				run++
				continue
			}
			if run > 0 {
				rle = append(rle, start, run)
				run = 0
			}
		}
	}
	if run > 0 {
		rle = append(rle, start, run)
	}

	return rle
}

// DecodeRLE converts run-length encoding back to a w x h mask.
func DecodeRLE(rle []int, w, h int) (*image.Gray, error) {
	if len(rle)%2 != 0 {
		return nil, fmt.Errorf("rle has odd length %d", len(rle))
	}

	mask := image.NewGray(image.Rect(0, 0, w, h))
	for i := 0; i < len(rle); i += 2 {
		start, length := rle[i], rle[i+1]
		if start < 1 || length < 0 || start-1+length > w*h {
			return nil, fmt.Errorf("rle run (%d, %d) out of %dx%d mask", start, length, w, h)
		}
		for p := start - 1; p < start-1+length; p++ {
			x, y := p/h, p%h
			mask.Pix[y*mask.Stride+x] = 255
		}
	}

	return mask, nil
}

// FormatRLE joins rle with spaces.
func FormatRLE(rle []int) string {
	parts := make([]string, len(rle))
	for i, v := range rle {
		parts[i] = strconv.Itoa(v)
	}

	return strings.Join(parts, " ")
}

// ParseRLE parses a space separated run-length encoding.
func ParseRLE(s string) ([]int, error) {
	var rle []int
	for _, f := range strings.Fields(s) {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("parse rle: %w", err)
		}
		rle = append(rle, v)
	}

	return rle, nil
}

// WriteRLECSV writes an `id,encoding` CSV.
func WriteRLECSV(w io.Writer, ids []string, rles [][]int) error {
	if len(ids) != len(rles) {
		return fmt.Errorf("got %d ids for %d encodings", len(ids), len(rles))
	}

	encodings := make([]string, len(rles))
	for i, rle := range rles {
		encodings[i] = FormatRLE(rle)
	}

	df := dataframe.New(
		series.New(ids, series.String, "id"),
		series.New(encodings, series.String, "encoding"),
	)
	if df.Err != nil {
		return df.Err
	}

	return df.WriteCSV(w)
}

// SaveRLECSV writes an `id,encoding` CSV file, creating its directory.
func SaveRLECSV(filename string, ids []string, rles [][]int) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WriteRLECSV(f, ids, rles); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// ReadRLECSV reads an `id,encoding` CSV and returns map id to rle slice.
func ReadRLECSV(r io.Reader) (map[string][]int, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, df.Err
	}

	idCol, encCol := df.Col("id"), df.Col("encoding")
	if idCol.Err != nil {
		return nil, idCol.Err
	}
	if encCol.Err != nil {
		return nil, encCol.Err
	}

	ids := idCol.Records()
	encodings := encCol.Records()
	rleMap := make(map[string][]int, len(ids))
	for i, id := range ids {
		enc := encodings[i]
		if enc == "NaN" {
			enc = ""
		}
		rle, err := ParseRLE(enc)
		if err != nil {
			return nil, fmt.Errorf("id %v: %w", id, err)
		}
		rleMap[id] = rle
	}

	return rleMap, nil
}

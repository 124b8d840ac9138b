package report

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Stats summarizes per-pixel scores.
type Stats struct {
	Count    int
	Mean     float64
	Std      float64
	Min      float64
	Max      float64
	Positive float64 // fraction of values > 0.5
}

// Describe computes Stats of values.
func Describe(values []float64) (Stats, error) {
	if len(values) == 0 {
		return Stats{}, errors.New("no values to describe")
	}

	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}

	var pos int
	for _, v := range values {
		if v > 0.5 {
			pos++
		}
	}

	return Stats{
		Count:    len(values),
		Mean:     mean,
		Std:      std,
		Min:      floats.Min(values),
		Max:      floats.Max(values),
		Positive: float64(pos) / float64(len(values)),
	}, nil
}

// Histogram saves a histogram of values to filename. The format follows the
// file extension (png, svg, pdf...).
func Histogram(values []float64, bins int, title, filename string) error {
	if len(values) == 0 {
		return errors.New("no values to plot")
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("cannot plot non-finite values")
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "score"
	p.Y.Label.Text = "pixels"

	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return err
	}
	p.Add(h)

	return p.Save(4*vg.Inch, 4*vg.Inch, filename)
}

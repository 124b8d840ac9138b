// Package metric scores predicted masks against reference masks.
//
// Tensor functions flatten their inputs; slice functions expect equal lengths.
package metric

import (
	"fmt"

	"github.com/sugarme/gotch/ts"
	"gonum.org/v1/gonum/floats"
)

// Smooth keeps overlap scores defined when both masks are empty.
const Smooth = 1e-6

// Binarize maps every value > threshold to 1 and the rest to 0.
func Binarize(values []float64, threshold float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v > threshold {
			out[i] = 1
		}
	}

	return out
}

// Dice returns 2|P∩T| / (|P|+|T|) for binary slices.
func Dice(pred, target []float64) float64 {
	mustSameLen(pred, target)
	inter := floats.Dot(pred, target)
	union := floats.Sum(pred) + floats.Sum(target)

	return (2*inter + Smooth) / (union + Smooth)
}

// Jaccard returns |P∩T| / |P∪T| for binary slices.
func Jaccard(pred, target []float64) float64 {
	mustSameLen(pred, target)
	inter := floats.Dot(pred, target)
	union := floats.Sum(pred) + floats.Sum(target) - inter

	return (inter + Smooth) / (union + Smooth)
}

// MeanJaccard returns the class-averaged Jaccard index of label slices with
// values in [0, nclasses). It returns 0 when nclasses < 1.
func MeanJaccard(pred, target []float64, nclasses int) float64 {
	mustSameLen(pred, target)
	if nclasses < 1 {
		return 0
	}
	scores := make([]float64, nclasses)
	for c := 0; c < nclasses; c++ {
		scores[c] = Jaccard(oneHot(pred, c), oneHot(target, c))
	}

	return floats.Sum(scores) / float64(nclasses)
}

func oneHot(labels []float64, class int) []float64 {
	out := make([]float64, len(labels))
	for i, v := range labels {
		if int(v) == class {
			out[i] = 1
		}
	}

	return out
}

func mustSameLen(a, b []float64) {
	if len(a) != len(b) {
		panic(fmt.Sprintf("metric: length mismatch %d != %d", len(a), len(b)))
	}
}

// Threshold converts probabilities to a {0, 1} float tensor of the same shape.
func Threshold(prob *ts.Tensor, threshold float64) *ts.Tensor {
	vals := Binarize(prob.Float64Values(), threshold)
	mask := ts.MustOfSlice(vals).MustView(prob.MustSize(), true)

	return mask
}

// DiceCoeff returns the Dice coefficient of two binary mask tensors.
func DiceCoeff(pred, target *ts.Tensor) float64 {
	return Dice(Binarize(pred.Float64Values(), 0.5), Binarize(target.Float64Values(), 0.5))
}

// DiceCoeffBatch returns the mean Dice coefficient over the batch dimension of
// probabilities [B ...] against masks [B ...], thresholding at 0.5.
// An empty batch scores 0.
func DiceCoeffBatch(prob, mask *ts.Tensor) float64 {
	size := prob.MustSize()
	if len(size) == 0 || size[0] < 1 {
		return 0
	}
	batch := size[0]
	p := Binarize(prob.Float64Values(), 0.5)
	t := Binarize(mask.Float64Values(), 0.5)
	mustSameLen(p, t)

	n := len(p) / int(batch)
	var sum float64
	for b := 0; b < int(batch); b++ {
		sum += Dice(p[b*n:(b+1)*n], t[b*n:(b+1)*n])
	}

	return sum / float64(batch)
}

// IoU returns the intersection over union of two binary mask tensors.
func IoU(pred, target *ts.Tensor) float64 {
	return Jaccard(Binarize(pred.Float64Values(), 0.5), Binarize(target.Float64Values(), 0.5))
}

// JaccardIndex returns the mean IoU over nclasses of two label tensors.
func JaccardIndex(pred, target *ts.Tensor, nclasses int) float64 {
	return MeanJaccard(pred.Float64Values(), target.Float64Values(), nclasses)
}

package base

import (
	"math"
	"math/rand"
	"time"

	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"
)

// KaimingUniform draws weights from U(-bound, bound) with
// bound = gain * sqrt(3 / fanIn) and ReLU gain sqrt(2).
//
// Values come from its own random source: layers created in the same order
// from the same seed get the same weights. Not safe for concurrent use.
type KaimingUniform struct {
	rng *rand.Rand
}

var _ nn.Init = new(KaimingUniform)

// NewKaimingUniform creates a KaimingUniform seeded with seed. Seed 0 picks a
// time based seed.
func NewKaimingUniform(seed int64) *KaimingUniform {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &KaimingUniform{rng: rand.New(rand.NewSource(seed))}
}

// Bound returns the uniform bound for a weight of shape dims.
func (k *KaimingUniform) Bound(dims []int64) float64 {
	fanIn, _, err := nn.CalculateFans(dims)
	if err != nil {
		panic(err)
	}
	if fanIn <= 0 {
		return 0
	}

	return math.Sqrt(2.0) * math.Sqrt(3.0/float64(fanIn))
}

// Values draws len(dims) flattened weights.
func (k *KaimingUniform) Values(dims []int64) []float32 {
	bound := k.Bound(dims)
	data := make([]float32, ts.FlattenDim(dims))
	for i := range data {
		data[i] = float32((2*k.rng.Float64() - 1) * bound)
	}

	return data
}

// InitTensor implements nn.Init interface.
func (k *KaimingUniform) InitTensor(dims []int64, device gotch.Device, dtypeOpt ...gotch.DType) *ts.Tensor {
	dtype := gotch.DefaultDType
	if len(dtypeOpt) > 0 {
		dtype = dtypeOpt[0]
	}

	x, err := ts.NewTensorFromData(k.Values(dims), dims)
	if err != nil {
		panic(err)
	}

	return x.MustTotype(dtype, true).MustTo(device, true)
}

// Set implements nn.Init interface. It re-initializes tensor in place.
func (k *KaimingUniform) Set(tensor *ts.Tensor) {
	ts.NoGrad(func() {
		x := k.InitTensor(tensor.MustSize(), tensor.MustDevice(), tensor.DType())
		tensor.Copy_(x)
		x.MustDrop()
	})
}

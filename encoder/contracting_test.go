package encoder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/sugarme/unetseg/base"
	"github.com/sugarme/unetseg/encoder"
)

func TestContractingFeatures(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	var enc encoder.Encoder = encoder.NewContracting(vs.Root(), 3, []int64{4, 8, 16}, base.DefaultBatchNormConfig(), nil)

	x := ts.MustRand([]int64{2, 3, 32, 32}, gotch.Float, gotch.CPU)
	defer x.MustDrop()

	features := enc.ForwardAll(x, false)
	require.Len(t, features, 4)

	want := [][]int64{
		{2, 4, 32, 32},
		{2, 8, 16, 16},
		{2, 16, 8, 8},
		{2, 32, 4, 4}, // bottleneck
	}
	for i, f := range features {
		assert.Equal(t, want[i], f.MustSize(), "feature %d", i)
		f.MustDrop()
	}

	// input is left to the caller
	assert.Equal(t, []int64{2, 3, 32, 32}, x.MustSize())
}

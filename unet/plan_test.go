package unet_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sugarme/unetseg/unet"
)

func shapeOf(t *testing.T, trace []unet.StageShape, name string) []int64 {
	t.Helper()
	for _, s := range trace {
		if s.Name == name {
			return s.Shape
		}
	}
	t.Fatalf("stage %q not in trace", name)
	return nil
}

func TestTraceDefault(t *testing.T) {
	cfg := unet.DefaultConfig()
	trace, err := cfg.Trace([]int64{1, 3, 64, 64})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 64, 64, 64}, shapeOf(t, trace, "enc1"))
	assert.Equal(t, []int64{1, 64, 32, 32}, shapeOf(t, trace, "pool1"))
	assert.Equal(t, []int64{1, 128, 32, 32}, shapeOf(t, trace, "enc2"))
	assert.Equal(t, []int64{1, 256, 16, 16}, shapeOf(t, trace, "enc3"))
	assert.Equal(t, []int64{1, 512, 8, 8}, shapeOf(t, trace, "enc4"))
	assert.Equal(t, []int64{1, 1024, 4, 4}, shapeOf(t, trace, "bottleneck"))
	assert.Equal(t, []int64{1, 512, 8, 8}, shapeOf(t, trace, "up4"))
	assert.Equal(t, []int64{1, 1024, 8, 8}, shapeOf(t, trace, "cat4"))
	assert.Equal(t, []int64{1, 512, 8, 8}, shapeOf(t, trace, "dec4"))
	assert.Equal(t, []int64{1, 256, 16, 16}, shapeOf(t, trace, "dec3"))
	assert.Equal(t, []int64{1, 128, 32, 32}, shapeOf(t, trace, "dec2"))
	assert.Equal(t, []int64{1, 128, 64, 64}, shapeOf(t, trace, "cat1"))
	assert.Equal(t, []int64{1, 64, 64, 64}, shapeOf(t, trace, "dec1"))
	assert.Equal(t, []int64{1, 1, 64, 64}, shapeOf(t, trace, "final"))

	last := trace[len(trace)-1]
	assert.Equal(t, unet.KindHead, last.Kind)
}

func TestTraceOutputShape(t *testing.T) {
	tests := []struct {
		in, out int64
		input   []int64
	}{
		{3, 1, []int64{1, 3, 64, 64}},
		{1, 3, []int64{2, 1, 32, 32}},
		{4, 2, []int64{3, 4, 16, 48}},
		{1, 1, []int64{1, 1, 16, 16}},
	}

	for _, tt := range tests {
		cfg := unet.DefaultConfig()
		cfg.InChannels, cfg.OutChannels = tt.in, tt.out
		trace, err := cfg.Trace(tt.input)
		require.NoError(t, err)

		want := []int64{tt.input[0], tt.out, tt.input[2], tt.input[3]}
		assert.Equal(t, want, trace[len(trace)-1].Shape, "input %v", tt.input)
	}
}

func TestStageChannels(t *testing.T) {
	cfg := unet.DefaultConfig()

	var encOut []int64
	for _, s := range cfg.Encoders() {
		encOut = append(encOut, s.COut)
	}
	assert.Equal(t, []int64{64, 128, 256, 512}, encOut)
	assert.Equal(t, int64(3), cfg.Encoders()[0].CIn)

	bn := cfg.Bottleneck()
	assert.Equal(t, int64(512), bn.CIn)
	assert.Equal(t, int64(1024), bn.COut)

	var upIn, catIn, decOut []int64
	for _, d := range cfg.Decoders() {
		upIn = append(upIn, d.Up.CIn)
		catIn = append(catIn, d.Up.COut+d.Skip)
		decOut = append(decOut, d.Block.COut)
		assert.Equal(t, d.Up.COut+d.Skip, d.Block.CIn)
	}
	assert.Equal(t, []int64{1024, 512, 256, 128}, upIn)
	assert.Equal(t, []int64{1024, 512, 256, 128}, catIn)
	assert.Equal(t, []int64{512, 256, 128, 64}, decOut)

	head := cfg.Head()
	assert.Equal(t, int64(64), head.CIn)
	assert.Equal(t, int64(1), head.COut)
}

func TestParamCount(t *testing.T) {
	cfg := unet.DefaultConfig()
	assert.Equal(t, int64(31043521), cfg.ParamCount())

	cfg.InChannels, cfg.OutChannels = 1, 3
	assert.Equal(t, int64(31042499), cfg.ParamCount())
}

func TestCheckInputRejects(t *testing.T) {
	cfg := unet.DefaultConfig()

	tests := []struct {
		name  string
		shape []int64
	}{
		{"height 17", []int64{1, 3, 17, 64}},
		{"width 40", []int64{1, 3, 64, 40}},
		{"too small", []int64{1, 3, 8, 8}},
		{"channels", []int64{1, 1, 64, 64}},
		{"rank 3", []int64{3, 64, 64}},
		{"empty batch", []int64{0, 3, 64, 64}},
	}

	for _, tt := range tests {
		err := cfg.CheckInput(tt.shape)
		require.Error(t, err, tt.name)
		assert.True(t, errors.Is(err, unet.ErrIncompatibleShape), tt.name)

		var se *unet.ShapeError
		require.True(t, errors.As(err, &se), tt.name)
		assert.Equal(t, "input", se.Stage)
		assert.Equal(t, tt.shape, se.Got)

		_, err = cfg.Trace(tt.shape)
		assert.ErrorIs(t, err, unet.ErrIncompatibleShape, tt.name)
	}
}

func TestValidate(t *testing.T) {
	cfg := unet.DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.InChannels = 0
	assert.ErrorIs(t, bad.Validate(), unet.ErrInvalidChannels)

	bad = cfg
	bad.OutChannels = -1
	assert.ErrorIs(t, bad.Validate(), unet.ErrInvalidChannels)

	bad = cfg
	bad.Widths = []int64{64, 0}
	assert.ErrorIs(t, bad.Validate(), unet.ErrInvalidChannels)

	bad = cfg
	bad.Widths = nil
	assert.ErrorIs(t, bad.Validate(), unet.ErrInvalidConfig)

	bad = cfg
	bad.BatchNorm.Eps = 0
	assert.ErrorIs(t, bad.Validate(), unet.ErrInvalidConfig)
}

func TestShallowNetwork(t *testing.T) {
	cfg := unet.DefaultConfig()
	cfg.Widths = []int64{8, 16}
	assert.Equal(t, int64(4), cfg.Multiple())

	trace, err := cfg.Trace([]int64{1, 3, 12, 20})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 32, 3, 5}, shapeOf(t, trace, "bottleneck"))
	assert.Equal(t, []int64{1, 1, 12, 20}, shapeOf(t, trace, "final"))

	_, err = cfg.Trace([]int64{1, 3, 14, 20})
	assert.ErrorIs(t, err, unet.ErrIncompatibleShape)
}

package unet

import (
	"fmt"
)

// StageKind tells what a stage does to its input.
type StageKind int

const (
	KindEncoder StageKind = iota
	KindPool
	KindBottleneck
	KindUpsample
	KindConcat
	KindDecoder
	KindHead
)

func (k StageKind) String() string {
	switch k {
	case KindEncoder:
		return "encoder"
	case KindPool:
		return "pool"
	case KindBottleneck:
		return "bottleneck"
	case KindUpsample:
		return "upsample"
	case KindConcat:
		return "concat"
	case KindDecoder:
		return "decoder"
	case KindHead:
		return "head"
	default:
		return fmt.Sprintf("StageKind(%d)", int(k))
	}
}

// StageSpec is one step of the network graph.
type StageSpec struct {
	Name string
	Kind StageKind
	CIn  int64
	COut int64
}

// Params returns the number of learned parameters of the stage.
func (s StageSpec) Params() int64 {
	switch s.Kind {
	case KindEncoder, KindBottleneck, KindDecoder:
		// 2x (3x3 conv + bias, batch-norm weight + bias)
		return convParams(s.CIn, s.COut, 3) + 2*s.COut + convParams(s.COut, s.COut, 3) + 2*s.COut
	case KindUpsample:
		return convParams(s.CIn, s.COut, 2)
	case KindHead:
		return convParams(s.CIn, s.COut, 1)
	default:
		return 0
	}
}

func convParams(cIn, cOut, ksize int64) int64 {
	return cOut*cIn*ksize*ksize + cOut
}

// DecoderSpec is an expanding stage: upsample, concat with Skip channels, ConvBlock.
type DecoderSpec struct {
	Level int
	Up    StageSpec
	Skip  int64
	Block StageSpec
}

// Encoders returns the contracting ConvBlocks, shallowest first.
func (c Config) Encoders() []StageSpec {
	specs := make([]StageSpec, 0, len(c.Widths))
	prev := c.InChannels
	for i, w := range c.Widths {
		specs = append(specs, StageSpec{Name: fmt.Sprintf("enc%d", i+1), Kind: KindEncoder, CIn: prev, COut: w})
		prev = w
	}

	return specs
}

// Bottleneck returns the deepest ConvBlock.
func (c Config) Bottleneck() StageSpec {
	last := c.InChannels
	if len(c.Widths) > 0 {
		last = c.Widths[len(c.Widths)-1]
	}

	return StageSpec{Name: "bottleneck", Kind: KindBottleneck, CIn: last, COut: 2 * last}
}

// Decoders returns the expanding stages, deepest first.
func (c Config) Decoders() []DecoderSpec {
	specs := make([]DecoderSpec, 0, len(c.Widths))
	in := c.Bottleneck().COut
	for i := len(c.Widths) - 1; i >= 0; i-- {
		w := c.Widths[i]
		level := i + 1
		specs = append(specs, DecoderSpec{
			Level: level,
			Up:    StageSpec{Name: fmt.Sprintf("up%d", level), Kind: KindUpsample, CIn: in, COut: w},
			Skip:  w,
			Block: StageSpec{Name: fmt.Sprintf("dec%d", level), Kind: KindDecoder, CIn: w + w, COut: w},
		})
		in = w
	}

	return specs
}

// Head returns the final 1x1 projection.
func (c Config) Head() StageSpec {
	in := c.InChannels
	if len(c.Widths) > 0 {
		in = c.Widths[0]
	}

	return StageSpec{Name: "final", Kind: KindHead, CIn: in, COut: c.OutChannels}
}

// ParamCount returns the number of learned parameters of the network.
func (c Config) ParamCount() int64 {
	var n int64
	for _, s := range c.Encoders() {
		n += s.Params()
	}
	n += c.Bottleneck().Params()
	for _, d := range c.Decoders() {
		n += d.Up.Params() + d.Block.Params()
	}

	return n + c.Head().Params()
}

// StageShape is the output shape of a stage for a given input.
type StageShape struct {
	StageSpec
	Shape []int64
}

// CheckInput verifies x shape [B C H W] can go through the network.
func (c Config) CheckInput(shape []int64) error {
	if len(shape) != 4 {
		return shapeErrorf("input", shape, "expected rank 4 [B C H W], got rank %d", len(shape))
	}
	if shape[0] < 1 {
		return shapeErrorf("input", shape, "batch size must be >= 1")
	}
	if shape[1] != c.InChannels {
		return shapeErrorf("input", shape, "expected %d channels", c.InChannels)
	}
	m := c.Multiple()
	for i, name := range []string{"height", "width"} {
		v := shape[2+i]
		if v < m || v%m != 0 {
			return shapeErrorf("input", shape, "%v %d is not a positive multiple of %d", name, v, m)
		}
	}

	return nil
}

func checkConcat(stage string, up, skip []int64) error {
	if len(up) != 4 || len(skip) != 4 {
		return shapeErrorf(stage, up, "expected rank 4 tensors, skip %v", skip)
	}
	if up[0] != skip[0] || up[2] != skip[2] || up[3] != skip[3] {
		return shapeErrorf(stage, up, "batch/spatial size differs from skip %v", skip)
	}

	return nil
}

// Trace propagates an input shape through every stage without touching tensors.
func (c Config) Trace(input []int64) ([]StageShape, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := c.CheckInput(input); err != nil {
		return nil, err
	}

	var (
		b, h, w = input[0], input[2], input[3]
		trace   []StageShape
		skips   [][]int64
	)
	add := func(s StageSpec, shape ...int64) []int64 {
		trace = append(trace, StageShape{StageSpec: s, Shape: shape})
		return shape
	}

	for i, s := range c.Encoders() {
		skips = append(skips, add(s, b, s.COut, h, w))
		h, w = h/2, w/2
		add(StageSpec{Name: fmt.Sprintf("pool%d", i+1), Kind: KindPool, CIn: s.COut, COut: s.COut}, b, s.COut, h, w)
	}

	bn := c.Bottleneck()
	add(bn, b, bn.COut, h, w)

	for _, d := range c.Decoders() {
		h, w = h*2, w*2
		up := add(d.Up, b, d.Up.COut, h, w)
		skip := skips[d.Level-1]
		if err := checkConcat(d.Block.Name, up, skip); err != nil {
			return nil, err
		}
		add(StageSpec{Name: fmt.Sprintf("cat%d", d.Level), Kind: KindConcat, CIn: d.Up.COut, COut: d.Up.COut + skip[1]},
			b, d.Up.COut+skip[1], h, w)
		add(d.Block, b, d.Block.COut, h, w)
	}

	head := c.Head()
	add(head, b, head.COut, h, w)

	return trace, nil
}

package encoder

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/sugarme/unetseg/base"
)

// Contracting is the UNet contracting path: a ConvBlock per width, a shared 2x2
// max pool after each of them and a bottleneck ConvBlock doubling the deepest width.
type Contracting struct {
	Stages     []*base.ConvBlock
	Pool       ts.ModuleT
	Bottleneck *base.ConvBlock
}

// NewContracting creates a Contracting path.
//
// Stage i is created under `p/enc{i+1}`, the bottleneck under `p/bottleneck`.
// Conv weights come from ws (see base.Conv2d).
func NewContracting(p *nn.Path, cIn int64, widths []int64, bn base.BatchNormConfig, ws nn.Init) *Contracting {
	stages := make([]*base.ConvBlock, 0, len(widths))
	prev := cIn
	for i, w := range widths {
		stages = append(stages, base.NewConvBlock(p.Sub(fmt.Sprintf("enc%d", i+1)), prev, w, bn, ws))
		prev = w
	}

	return &Contracting{
		Stages:     stages,
		Pool:       base.MaxPool2x2(),
		Bottleneck: base.NewConvBlock(p.Sub("bottleneck"), prev, 2*prev, bn, ws),
	}
}

// ForwardAll implements Encoder interface for Contracting.
//
// It returns [c1 ... cN bottleneck]. Pooled tensors are dropped once consumed.
func (e *Contracting) ForwardAll(x *ts.Tensor, train bool) []*ts.Tensor {
	features := make([]*ts.Tensor, 0, len(e.Stages)+1)
	in := x
	for _, stage := range e.Stages {
		c := stage.ForwardT(in, train) // [B w H W]
		if in != x {
			in.MustDrop()
		}
		features = append(features, c)
		in = e.Pool.ForwardT(c, train) // [B w H/2 W/2]
	}

	bn := e.Bottleneck.ForwardT(in, train)
	if in != x {
		in.MustDrop()
	}

	return append(features, bn)
}

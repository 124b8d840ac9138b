package unet

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/sugarme/unetseg/base"
)

// DecoderLayer upsamples, concatenates the matching encoder output and runs a ConvBlock.
type DecoderLayer struct {
	Name  string
	Up    *base.UpConv
	Block *base.ConvBlock
}

// NewDecoderLayer creates a DecoderLayer. Variables live under `p/upconv{level}`
// and `p/dec{level}`.
func NewDecoderLayer(p *nn.Path, spec DecoderSpec, bn base.BatchNormConfig, ws nn.Init) *DecoderLayer {
	return &DecoderLayer{
		Name:  spec.Block.Name,
		Up:    base.NewUpConv(p.Sub(fmt.Sprintf("upconv%d", spec.Level)), spec.Up.CIn, spec.Up.COut, ws),
		Block: base.NewConvBlock(p.Sub(spec.Block.Name), spec.Block.CIn, spec.Block.COut, bn, ws),
	}
}

// ForwardSkip upsamples x, concatenates skip along channels and forwards through the block.
// x and skip are left to the caller.
func (d *DecoderLayer) ForwardSkip(x, skip *ts.Tensor, train bool) (*ts.Tensor, error) {
	up := d.Up.ForwardT(x, train) // [B C/2 2H 2W]
	if err := checkConcat(d.Name, up.MustSize(), skip.MustSize()); err != nil {
		up.MustDrop()
		return nil, err
	}

	cat := ts.MustCat([]*ts.Tensor{up, skip}, 1) // [B C 2H 2W]
	up.MustDrop()
	out := d.Block.ForwardT(cat, train)
	cat.MustDrop()

	return out, nil
}

// Expanding is the UNet expanding path, deepest layer first.
type Expanding struct {
	Layers []*DecoderLayer
}

// NewExpanding creates the expanding path for the given specs.
func NewExpanding(p *nn.Path, specs []DecoderSpec, bn base.BatchNormConfig, ws nn.Init) *Expanding {
	layers := make([]*DecoderLayer, 0, len(specs))
	for _, spec := range specs {
		layers = append(layers, NewDecoderLayer(p, spec, bn, ws))
	}

	return &Expanding{Layers: layers}
}

// ForwardFeatures forwards encoder features [c1 ... cN bottleneck] through the
// expanding path. Every feature tensor is dropped, including on error.
func (e *Expanding) ForwardFeatures(features []*ts.Tensor, train bool) (*ts.Tensor, error) {
	if len(features) != len(e.Layers)+1 {
		for _, f := range features {
			f.MustDrop()
		}
		return nil, fmt.Errorf("%w: expected %d feature maps, got %d", ErrIncompatibleShape, len(e.Layers)+1, len(features))
	}

	n := len(e.Layers)
	x := features[n]
	for i, layer := range e.Layers {
		skip := features[n-1-i]
		z, err := layer.ForwardSkip(x, skip, train)
		x.MustDrop()
		skip.MustDrop()
		if err != nil {
			for _, f := range features[:n-1-i] {
				f.MustDrop()
			}
			return nil, err
		}
		x = z
	}

	return x, nil
}

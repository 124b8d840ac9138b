package unet

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/sugarme/unetseg/base"
	"github.com/sugarme/unetseg/encoder"
)

// UNet is a UNET model struct
// Ref: https://arxiv.org/abs/1505.04597
//
// A new UNet is in evaluation mode. In training mode Forward updates the
// batch-norm running statistics.
type UNet struct {
	config   Config
	encoder  *encoder.Contracting
	decoder  *Expanding
	head     *nn.Conv2D
	blocks   []namedBlock
	training bool
}

type namedBlock struct {
	name  string
	block *base.ConvBlock
}

// New creates a UNet with variables under p.
func New(p *nn.Path, cfg Config) (*UNet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Widths = append([]int64(nil), cfg.Widths...)

	// One source for every layer: same seed, same weights.
	ws := base.NewKaimingUniform(cfg.Seed)
	enc := encoder.NewContracting(p, cfg.InChannels, cfg.Widths, cfg.BatchNorm, ws)
	dec := NewExpanding(p, cfg.Decoders(), cfg.BatchNorm, ws)
	head := cfg.Head()

	net := &UNet{
		config:  cfg,
		encoder: enc,
		decoder: dec,
		head:    base.NewSegmentationHead(p.Sub(head.Name), head.CIn, head.COut, ws),
	}
	for i, s := range cfg.Encoders() {
		net.blocks = append(net.blocks, namedBlock{s.Name, enc.Stages[i]})
	}
	net.blocks = append(net.blocks, namedBlock{"bottleneck", enc.Bottleneck})
	for _, l := range dec.Layers {
		net.blocks = append(net.blocks, namedBlock{l.Name, l.Block})
	}

	if cfg.Logger != nil {
		for _, b := range net.blocks {
			cfg.Logger.Printf("%-10s %5d -> %5d\n", b.name, b.block.CIn, b.block.COut)
		}
		cfg.Logger.Printf("%-10s %5d -> %5d\n", head.Name, head.CIn, head.COut)
		cfg.Logger.Printf("parameters: %d\n", cfg.ParamCount())
	}

	return net, nil
}

// NewDefault creates UNet with default values: 3 channels in, 1 channel out.
func NewDefault(p *nn.Path) *UNet {
	net, err := New(p, DefaultConfig())
	if err != nil {
		panic(err)
	}

	return net
}

// Config returns the config the network was built from.
func (n *UNet) Config() Config {
	cfg := n.config
	cfg.Widths = append([]int64(nil), n.config.Widths...)
	return cfg
}

// SetTraining switches between training and evaluation mode.
func (n *UNet) SetTraining(training bool) {
	n.training = training
}

// Train puts the network in training mode.
func (n *UNet) Train() { n.SetTraining(true) }

// Eval puts the network in evaluation mode.
func (n *UNet) Eval() { n.SetTraining(false) }

// IsTraining reports the current mode.
func (n *UNet) IsTraining() bool {
	return n.training
}

// Forward runs x [B C H W] through the network in the current mode and returns
// raw scores [B out H W].
func (n *UNet) Forward(x *ts.Tensor) (*ts.Tensor, error) {
	return n.forward(x, n.training)
}

// ForwardT implements ts.ModuleT for UNet struct.
// It panics with the error Forward would return.
func (n *UNet) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	out, err := n.forward(x, train)
	if err != nil {
		panic(err)
	}

	return out
}

// Predict runs x in evaluation mode without gradient tracking, whatever the
// current mode. Running statistics are left untouched.
func (n *UNet) Predict(x *ts.Tensor) (*ts.Tensor, error) {
	var (
		out *ts.Tensor
		err error
	)
	ts.NoGrad(func() {
		out, err = n.forward(x, false)
	})

	return out, err
}

func (n *UNet) forward(x *ts.Tensor, train bool) (*ts.Tensor, error) {
	if err := n.config.CheckInput(x.MustSize()); err != nil {
		return nil, err
	}

	// E.g. x [1 3 64 64]
	// c1 [1 64 64 64], c2 [1 128 32 32], c3 [1 256 16 16], c4 [1 512 8 8], bn [1 1024 4 4]
	features := n.encoder.ForwardAll(x, train)
	d1, err := n.decoder.ForwardFeatures(features, train) // [1 64 64 64]
	if err != nil {
		return nil, err
	}

	logits := n.head.ForwardT(d1, train) // [1 out 64 64]
	d1.MustDrop()

	return logits, nil
}

// RunningStat is a copy of one batch-norm layer's running statistics.
type RunningStat struct {
	Name string
	Mean []float64
	Var  []float64
}

// RunningStats returns a copy of every batch-norm layer's running statistics.
func (n *UNet) RunningStats() []RunningStat {
	var stats []RunningStat
	for _, b := range n.blocks {
		for i, bn := range b.block.BatchNorms() {
			stats = append(stats, RunningStat{
				Name: fmt.Sprintf("%s/conv%d/bn", b.name, i+1),
				Mean: bn.RunningMean.Float64Values(),
				Var:  bn.RunningVar.Float64Values(),
			})
		}
	}

	return stats
}

package base

import (
	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"
)

// Conv2d creates Conv2D module with zero bias. Weights come from ws, or from an
// unseeded KaimingUniform when ws is nil.
func Conv2d(p *nn.Path, cIn, cOut, ksize, padding, stride int64, ws nn.Init) *nn.Conv2D {
	config := nn.DefaultConv2DConfig()
	config.Stride = []int64{stride, stride}
	config.Padding = []int64{padding, padding}
	config.WsInit = weightInit(ws)
	config.BsInit = nn.NewConstInit(0.0)

	return nn.NewConv2D(p, cIn, cOut, ksize, config)
}

func weightInit(ws nn.Init) nn.Init {
	if ws == nil {
		return NewKaimingUniform(0)
	}

	return ws
}

// BatchNormConfig holds the batch-norm knobs shared by every ConvBlock of a network.
type BatchNormConfig struct {
	Eps      float64
	Momentum float64
}

// DefaultBatchNormConfig returns eps=1e-5 and momentum=0.1.
func DefaultBatchNormConfig() BatchNormConfig {
	return BatchNormConfig{Eps: 1e-5, Momentum: 0.1}
}

func (c BatchNormConfig) gotchConfig() *nn.BatchNormConfig {
	config := nn.DefaultBatchNormConfig()
	config.Eps = c.Eps
	config.Momentum = c.Momentum
	config.WsInit = nn.NewConstInit(1.0)
	config.BsInit = nn.NewConstInit(0.0)

	return config
}

// ConvBNReLU is a 3x3 convolution (padding 1) followed by batch norm and ReLU.
//
// Variables live under `p/conv` and `p/bn`.
type ConvBNReLU struct {
	Conv *nn.Conv2D
	BN   *nn.BatchNorm
}

// NewConvBNReLU creates a ConvBNReLU mapping cIn to cOut channels.
func NewConvBNReLU(p *nn.Path, cIn, cOut int64, bn BatchNormConfig, ws nn.Init) *ConvBNReLU {
	return &ConvBNReLU{
		Conv: Conv2d(p.Sub("conv"), cIn, cOut, 3, 1, 1, ws),
		BN:   nn.BatchNorm2D(p.Sub("bn"), cOut, bn.gotchConfig()),
	}
}

// ForwardT implements ts.ModuleT interface.
func (m *ConvBNReLU) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	c := m.Conv.ForwardT(x, train)
	n := m.BN.ForwardT(c, train)
	c.MustDrop()

	return n.MustRelu(true)
}

// ConvBlock is two ConvBNReLU layers in a row. It keeps the spatial size and
// maps CIn to COut channels.
type ConvBlock struct {
	CIn  int64
	COut int64

	Conv1 *ConvBNReLU
	Conv2 *ConvBNReLU
}

// NewConvBlock creates a ConvBlock with variables under `p/conv1` and `p/conv2`.
func NewConvBlock(p *nn.Path, cIn, cOut int64, bn BatchNormConfig, ws nn.Init) *ConvBlock {
	return &ConvBlock{
		CIn:   cIn,
		COut:  cOut,
		Conv1: NewConvBNReLU(p.Sub("conv1"), cIn, cOut, bn, ws),
		Conv2: NewConvBNReLU(p.Sub("conv2"), cOut, cOut, bn, ws),
	}
}

// ForwardT implements ts.ModuleT interface.
func (b *ConvBlock) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	c1 := b.Conv1.ForwardT(x, train)
	c2 := b.Conv2.ForwardT(c1, train)
	c1.MustDrop()

	return c2
}

// BatchNorms returns the block's batch-norm layers in forward order.
func (b *ConvBlock) BatchNorms() []*nn.BatchNorm {
	return []*nn.BatchNorm{b.Conv1.BN, b.Conv2.BN}
}

// MaxPool2x2 creates the parameter-free 2x2 max pooling with stride 2.
func MaxPool2x2() ts.ModuleT {
	return nn.NewFunc(func(x *ts.Tensor) *ts.Tensor {
		// Down sample to half size: [B C H W] => [B C H/2 W/2]
		// ksize = 2; stride=2; padding=0; dilation=1; ceil=false
		return x.MustMaxPool2d([]int64{2, 2}, []int64{2, 2}, []int64{0, 0}, []int64{1, 1}, false, false)
	})
}

// UpConv is a learned 2x2 transposed convolution with stride 2.
// It doubles height and width.
type UpConv struct {
	CIn  int64
	COut int64

	conv *nn.ConvTranspose2D
}

// NewUpConv creates an UpConv mapping cIn to cOut channels with variables
// `p/weight` [cIn cOut 2 2] and `p/bias` [cOut].
//
// nn.NewConvTranspose2D lays its weight out as [out in k k] while libtorch reads
// transposed-conv weights as [in out k k], so the variables are created here.
func NewUpConv(p *nn.Path, cIn, cOut int64, ws nn.Init) *UpConv {
	config := &nn.ConvTranspose2DConfig{
		Stride:        []int64{2, 2},
		Padding:       []int64{0, 0},
		OutputPadding: []int64{0, 0},
		Dilation:      []int64{1, 1},
		Groups:        1,
		Bias:          true,
		WsInit:        weightInit(ws),
		BsInit:        nn.NewConstInit(0.0),
	}
	conv := &nn.ConvTranspose2D{
		Ws:     p.MustNewVar("weight", []int64{cIn, cOut, 2, 2}, config.WsInit),
		Bs:     p.MustNewVar("bias", []int64{cOut}, config.BsInit),
		Config: config,
	}

	return &UpConv{CIn: cIn, COut: cOut, conv: conv}
}

// ForwardT implements ts.ModuleT interface.
func (u *UpConv) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	return u.conv.Forward(x)
}

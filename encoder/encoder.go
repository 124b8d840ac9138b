package encoder

import (
	"github.com/sugarme/gotch/ts"
)

// Encoder is encoder interface for a image segmentation model.
//
// ForwardAll returns every feature map the decoder needs, shallowest first.
// The caller owns the returned tensors.
type Encoder interface {
	ForwardAll(x *ts.Tensor, train bool) []*ts.Tensor
}

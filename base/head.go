package base

import "github.com/sugarme/gotch/nn"

// NewSegmentationHead creates the 1x1 projection producing raw per-pixel scores.
// No activation is applied; callers pick sigmoid or softmax.
func NewSegmentationHead(p *nn.Path, cIn, cOut int64, ws nn.Init) *nn.Conv2D {
	return Conv2d(p, cIn, cOut, 1, 0, 1, ws)
}

package unet

import (
	"fmt"
	"log"

	"github.com/sugarme/unetseg/base"
)

// Config describes a UNet.
type Config struct {
	InChannels  int64
	OutChannels int64

	// Widths are the encoder output widths, shallowest first. The bottleneck
	// doubles the last one and the decoder mirrors them.
	Widths []int64

	BatchNorm base.BatchNormConfig

	// Seed seeds the weight initializer. 0 picks a time based seed.
	Seed int64

	// Logger receives the stage list when the network is built. nil is silent.
	Logger *log.Logger
}

// DefaultWidths are the classic UNet encoder widths.
var DefaultWidths = []int64{64, 128, 256, 512}

// DefaultConfig returns a 3 channels in, 1 channel out UNet config.
func DefaultConfig() Config {
	return Config{
		InChannels:  3,
		OutChannels: 1,
		Widths:      append([]int64(nil), DefaultWidths...),
		BatchNorm:   base.DefaultBatchNormConfig(),
	}
}

// Validate verifies the config describes a buildable network.
func (c Config) Validate() error {
	if c.InChannels < 1 {
		return fmt.Errorf("%w: in channels = %d", ErrInvalidChannels, c.InChannels)
	}
	if c.OutChannels < 1 {
		return fmt.Errorf("%w: out channels = %d", ErrInvalidChannels, c.OutChannels)
	}
	if len(c.Widths) == 0 {
		return fmt.Errorf("%w: at least one encoder width is required", ErrInvalidConfig)
	}
	for i, w := range c.Widths {
		if w < 1 {
			return fmt.Errorf("%w: width[%d] = %d", ErrInvalidChannels, i, w)
		}
	}
	if len(c.Widths) > 30 {
		return fmt.Errorf("%w: depth %d overflows the input grid", ErrInvalidConfig, len(c.Widths))
	}
	if c.BatchNorm.Eps <= 0 {
		return fmt.Errorf("%w: batch norm eps must be > 0, got %v", ErrInvalidConfig, c.BatchNorm.Eps)
	}
	if c.BatchNorm.Momentum <= 0 || c.BatchNorm.Momentum > 1 {
		return fmt.Errorf("%w: batch norm momentum must be in (0, 1], got %v", ErrInvalidConfig, c.BatchNorm.Momentum)
	}

	return nil
}

// Depth is the number of pooling steps.
func (c Config) Depth() int {
	return len(c.Widths)
}

// Multiple is the value input height and width must be a multiple of.
func (c Config) Multiple() int64 {
	return int64(1) << uint(len(c.Widths))
}

// Package config holds the run configuration of the example programs.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sugarme/unetseg/base"
	"github.com/sugarme/unetseg/unet"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Model captures the network shape.
type Model struct {
	InChannels  int64   `yaml:"in_channels"`
	OutChannels int64   `yaml:"out_channels"`
	Widths      []int64 `yaml:"widths"`
	BNEps       float64 `yaml:"bn_eps"`
	BNMomentum  float64 `yaml:"bn_momentum"`
	Seed        int64   `yaml:"seed"`
}

// Predict captures the predict task knobs.
type Predict struct {
	Image     string   `yaml:"image"`
	Bands     []string `yaml:"bands"` // one single-band file per input channel, replaces image
	Mask      string   `yaml:"mask"`  // optional reference mask to score against
	Threshold float64  `yaml:"threshold"`
	OutDir    string   `yaml:"out_dir"`
	Bins      int      `yaml:"bins"`
}

// Summary captures the summary task knobs.
type Summary struct {
	Batch  int64  `yaml:"batch"`
	Height int64  `yaml:"height"`
	Width  int64  `yaml:"width"`
	CSV    string `yaml:"csv"`
}

// Config captures the runtime knobs for a run.
type Config struct {
	Model   Model   `yaml:"model"`
	Device  string  `yaml:"device"`
	Weights string  `yaml:"weights"`
	Predict Predict `yaml:"predict"`
	Summary Summary `yaml:"summary"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	InChannels  int64
	OutChannels int64
	Seed        int64
	Device      string
	Weights     string
	Image       string
	Bands       []string
	Mask        string
	Threshold   float64
	OutDir      string
	CSV         string
}

// Default returns the config of a 3 in, 1 out UNet on CPU.
func Default() *Config {
	bn := base.DefaultBatchNormConfig()
	return &Config{
		Model: Model{
			InChannels:  3,
			OutChannels: 1,
			Widths:      append([]int64(nil), unet.DefaultWidths...),
			BNEps:       bn.Eps,
			BNMomentum:  bn.Momentum,
		},
		Device: "cpu",
		Predict: Predict{
			Threshold: 0.5,
			OutDir:    ".",
			Bins:      20,
		},
		Summary: Summary{
			Batch:  1,
			Height: 256,
			Width:  256,
		},
	}
}

// Load reads a YAML file on top of Default and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.InChannels > 0 {
		c.Model.InChannels = o.InChannels
	}
	if o.OutChannels > 0 {
		c.Model.OutChannels = o.OutChannels
	}
	if o.Seed != 0 {
		c.Model.Seed = o.Seed
	}
	if o.Device != "" {
		c.Device = o.Device
	}
	if o.Weights != "" {
		c.Weights = o.Weights
	}
	if o.Image != "" {
		c.Predict.Image = o.Image
	}
	if len(o.Bands) > 0 {
		c.Predict.Bands = append([]string(nil), o.Bands...)
	}
	if o.Mask != "" {
		c.Predict.Mask = o.Mask
	}
	if o.Threshold > 0 {
		c.Predict.Threshold = o.Threshold
	}
	if o.OutDir != "" {
		c.Predict.OutDir = o.OutDir
	}
	if o.CSV != "" {
		c.Summary.CSV = o.CSV
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if err := c.ModelConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch c.Device {
	case "cpu", "cuda":
	default:
		return fmt.Errorf("%w: device must be cpu or cuda, got %q", ErrInvalid, c.Device)
	}
	if c.Predict.Threshold <= 0 || c.Predict.Threshold >= 1 {
		return fmt.Errorf("%w: threshold must be in (0, 1), got %v", ErrInvalid, c.Predict.Threshold)
	}
	if n := len(c.Predict.Bands); n > 0 && int64(n) != c.Model.InChannels {
		return fmt.Errorf("%w: %d bands for %d input channels", ErrInvalid, n, c.Model.InChannels)
	}
	if c.Predict.Bins < 1 {
		return fmt.Errorf("%w: bins must be positive", ErrInvalid)
	}
	if c.Summary.Batch < 1 || c.Summary.Height < 1 || c.Summary.Width < 1 {
		return fmt.Errorf("%w: summary batch/height/width must be positive", ErrInvalid)
	}

	return nil
}

// ModelConfig converts the model section to a unet.Config.
func (c *Config) ModelConfig() unet.Config {
	return unet.Config{
		InChannels:  c.Model.InChannels,
		OutChannels: c.Model.OutChannels,
		Widths:      append([]int64(nil), c.Model.Widths...),
		BatchNorm: base.BatchNormConfig{
			Eps:      c.Model.BNEps,
			Momentum: c.Model.BNMomentum,
		},
		Seed: c.Model.Seed,
	}
}

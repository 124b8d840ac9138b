package main

import (
	"log"
	"os"

	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	"github.com/sugarme/gotch/ts"

	"github.com/sugarme/unetseg/config"
	"github.com/sugarme/unetseg/report"
	"github.com/sugarme/unetseg/unet"
)

// loadModel builds the network on device and loads weights when configured.
func loadModel(cfg *config.Config, device gotch.Device) (*nn.VarStore, *unet.UNet, error) {
	vs := nn.NewVarStore(device)
	mcfg := cfg.ModelConfig()
	mcfg.Logger = log.Default()

	net, err := unet.New(vs.Root(), mcfg)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Weights != "" {
		if err := vs.Load(absPath(cfg.Weights)); err != nil {
			return nil, nil, err
		}
		log.Printf("weights loaded from %v\n", cfg.Weights)
	}

	return vs, net, nil
}

// runCheckModel forwards a random batch repeatedly and reports RAM deltas.
func runCheckModel(cfg *config.Config, device gotch.Device, repeat int) error {
	_, net, err := loadModel(cfg, device)
	if err != nil {
		return err
	}

	size := []int64{cfg.Summary.Batch, cfg.Model.InChannels, cfg.Summary.Height, cfg.Summary.Width}
	image := ts.MustRand(size, gotch.Float, device)
	defer image.MustDrop()

	si := CPUInfo()
	for i := 0; i < repeat; i++ {
		ram0 := si.TotalRam - si.FreeRam
		logits, err := net.Predict(image)
		if err != nil {
			return err
		}
		out := logits.MustSize()
		logits.MustDrop()

		si = CPUInfo()
		ram1 := si.TotalRam - si.FreeRam
		log.Printf("%02d - output %v\t Leak: %8.2fMB\n", i, out, (float64(ram1)-float64(ram0))/1024)
	}

	return nil
}

// runSummary writes the stage table for the configured input size.
func runSummary(cfg *config.Config) error {
	m, s := cfg.ModelConfig(), cfg.Summary
	if s.CSV == "" {
		return report.WriteSummaryCSV(os.Stdout, m, s.Batch, s.Height, s.Width)
	}

	f, err := createFile(absPath(s.CSV))
	if err != nil {
		return err
	}
	if err := report.WriteSummaryCSV(f, m, s.Batch, s.Height, s.Width); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

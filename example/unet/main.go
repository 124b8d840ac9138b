package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sugarme/gotch"

	"github.com/sugarme/unetseg/config"
)

// flag variables
var (
	ConfigPath string
	task       string
	Repeat     int
	bands      string
	overrides  config.Overrides
)

func init() {
	flag.StringVar(&ConfigPath, "config", "", "specify YAML config file (optional)")
	flag.StringVar(&task, "task", "model", "specify task to run: model, summary or predict")
	flag.IntVar(&Repeat, "repeat", 10, "specify number of forward passes for the 'model' task")
	flag.Int64Var(&overrides.InChannels, "in", 0, "specify input channels")
	flag.Int64Var(&overrides.OutChannels, "out", 0, "specify output channels")
	flag.Int64Var(&overrides.Seed, "seed", 0, "specify weight init seed")
	flag.StringVar(&overrides.Device, "device", "", "specify device: cpu or cuda")
	flag.StringVar(&overrides.Weights, "weights", "", "specify full path to model weight file")
	flag.StringVar(&overrides.Image, "image", "", "specify image to predict")
	flag.StringVar(&bands, "bands", "", "specify comma separated single-band files, one per input channel")
	flag.StringVar(&overrides.Mask, "mask", "", "specify reference mask to score the prediction against")
	flag.Float64Var(&overrides.Threshold, "threshold", 0, "specify mask threshold")
	flag.StringVar(&overrides.OutDir, "outdir", "", "specify output directory for predictions")
	flag.StringVar(&overrides.CSV, "csv", "", "specify summary CSV file (stdout if empty)")
}

func main() {
	flag.Parse()
	log.SetPrefix("unet: ")
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)

	cfg := config.Default()
	if ConfigPath != "" {
		var err error
		cfg, err = config.Load(absPath(ConfigPath))
		if err != nil {
			log.Fatal(err)
		}
	}
	if bands != "" {
		overrides.Bands = strings.Split(bands, ",")
	}
	cfg.ApplyOverrides(overrides)
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	device := gotch.CPU
	if cfg.Device == "cuda" {
		device = gotch.CudaIfAvailable()
	}

	var err error
	switch task {
	case "model":
		err = runCheckModel(cfg, device, Repeat)
	case "summary":
		err = runSummary(cfg)
	case "predict":
		err = runPredict(cfg, device)
	default:
		log.Fatalf("Unknown 'task' name %q. Please specify valid 'task' flag to run.\n", task)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// helper to get absolute file path
func absPath(p string) string {
	fullpath, err := filepath.Abs(p)
	if err != nil {
		log.Fatal(err)
	}
	return fullpath
}

func createFile(p string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	return os.Create(p)
}

package main

import (
	"errors"
	"fmt"
	"image"
	"log"
	"path/filepath"
	"strings"

	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/ts"

	"github.com/sugarme/unetseg/config"
	"github.com/sugarme/unetseg/imgutil"
	"github.com/sugarme/unetseg/metric"
	"github.com/sugarme/unetseg/report"
)

// runPredict segments one image, or one stack of band files, and writes mask,
// overlay, RLE CSV and histogram for every output channel.
func runPredict(cfg *config.Config, device gotch.Device) error {
	if cfg.Predict.Image == "" && len(cfg.Predict.Bands) == 0 {
		return errors.New("predict task needs an image: set -image, -bands, predict.image or predict.bands")
	}

	_, net, err := loadModel(cfg, device)
	if err != nil {
		return err
	}

	src, x, err := loadInput(cfg, int(net.Config().Multiple()))
	if err != nil {
		return err
	}
	bounds := src.Bounds()
	size := x.MustSize()
	h, w := int(size[2]), int(size[3])
	input := x.MustTo(device, true)
	defer input.MustDrop()

	logits, err := net.Predict(input)
	if err != nil {
		return err
	}
	prob := logits.MustSigmoid(true)
	values := prob.Float64Values()
	prob.MustDrop()

	var reference *image.Gray
	if cfg.Predict.Mask != "" {
		ref, err := imgutil.ReadImage(absPath(cfg.Predict.Mask))
		if err != nil {
			return err
		}
		reference = toGray(ref)
		if reference.Bounds().Size() != bounds.Size() {
			return fmt.Errorf("reference mask is %v, image is %v", reference.Bounds().Size(), bounds.Size())
		}
	}

	name := inputName(cfg)
	outDir := absPath(cfg.Predict.OutDir)
	var (
		ids  []string
		rles [][]int
	)
	for c := 0; c < int(cfg.Model.OutChannels); c++ {
		channel := values[c*h*w : (c+1)*h*w]
		id := fmt.Sprintf("%v_%d", name, c)

		stats, err := report.Describe(channel)
		if err != nil {
			return err
		}
		log.Printf("%v: mean %.4f std %.4f min %.4f max %.4f positive %.2f%%\n",
			id, stats.Mean, stats.Std, stats.Min, stats.Max, 100*stats.Positive)

		small, err := imgutil.MaskImage(channel, w, h, cfg.Predict.Threshold)
		if err != nil {
			return err
		}
		mask := toGray(imgutil.ResizeMask(small, bounds.Dx(), bounds.Dy()))

		if reference != nil {
			dice := metric.Dice(grayValues(mask), grayValues(reference))
			iou := metric.Jaccard(grayValues(mask), grayValues(reference))
			log.Printf("%v: dice %.4f iou %.4f\n", id, dice, iou)
		}

		if err := imgutil.SavePNG(mask, filepath.Join(outDir, id+"-mask.png")); err != nil {
			return err
		}
		if err := imgutil.SavePNG(imgutil.Overlay(src, mask), filepath.Join(outDir, id+"-overlay.png")); err != nil {
			return err
		}
		if err := report.Histogram(channel, cfg.Predict.Bins, id, filepath.Join(outDir, id+"-hist.png")); err != nil {
			return err
		}

		ids = append(ids, id)
		rles = append(rles, imgutil.EncodeRLE(mask))
	}

	return imgutil.SaveRLECSV(filepath.Join(outDir, name+"-rle.csv"), ids, rles)
}

// loadInput returns the preview image at its original size and the network
// input [1 C H W] fitted to the grid. Band stacks are normalized per band.
func loadInput(cfg *config.Config, multiple int) (image.Image, *ts.Tensor, error) {
	if len(cfg.Predict.Bands) > 0 {
		paths := make([]string, 0, len(cfg.Predict.Bands))
		for _, p := range cfg.Predict.Bands {
			paths = append(paths, absPath(p))
		}
		r, first, err := imgutil.ReadBands(paths, multiple)
		if err != nil {
			return nil, nil, err
		}
		for _, s := range r.Normalize() {
			log.Printf("band %-8s mean %.4f std %.4f\n", s.Name, s.Mean, s.Std)
		}
		log.Printf("%d bands: %dx%d fitted to %dx%d\n", r.Channels(), first.Bounds().Dx(), first.Bounds().Dy(), r.Width, r.Height)

		x, err := r.ToTensor()
		return first, x, err
	}

	src, err := imgutil.ReadImage(absPath(cfg.Predict.Image))
	if err != nil {
		return nil, nil, err
	}
	fitted := imgutil.FitToGrid(src, multiple)
	log.Printf("image %v: %dx%d fitted to %dx%d\n", cfg.Predict.Image, src.Bounds().Dx(), src.Bounds().Dy(), fitted.Bounds().Dx(), fitted.Bounds().Dy())

	x, err := imgutil.ToTensor(fitted, int(cfg.Model.InChannels))
	return src, x, err
}

func inputName(cfg *config.Config) string {
	if len(cfg.Predict.Bands) > 0 {
		// band stacks are named after their directory
		return filepath.Base(filepath.Dir(absPath(cfg.Predict.Bands[0])))
	}

	p := cfg.Predict.Image
	return strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
}

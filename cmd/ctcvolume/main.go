package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"ctcvolume/pkg/config"
	"ctcvolume/pkg/logging"
	"ctcvolume/pkg/reader"
	"ctcvolume/pkg/segmentation"
	"ctcvolume/pkg/tiffio"
	"ctcvolume/pkg/visualization"
	"ctcvolume/pkg/volume"
	"ctcvolume/pkg/writer"
)

var errUsage = errors.New("usage")

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags] <command> [args]\n\n", os.Args[0])
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  inspect <dir>                          Describe a sequence or ground-truth folder")
	fmt.Fprintln(out, "  export <dir> <out.zip>                 Re-write a folder in the dataset layout and zip it")
	fmt.Fprintln(out, "  segment [-threshold m] <dir> <out.zip> Threshold and label a sequence")
	fmt.Fprintln(out, "  diff <gtdir> <segdir> <out.zip>        Highlight ground truth vs segmentation differences")
	fmt.Fprintln(out, "  preview [-axis t] <dir> <outdir>       Save JPEG slices through a folder")
	fmt.Fprintln(out, "  init-config <file>                     Write the default configuration")
	fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
}

type app struct {
	cfg    *config.Config
	log    *logging.Logger
	cache  *volume.FrameCache
	reader *reader.Reader
	writer *writer.Writer
	seg    *segmentation.Segmenter
}

func newApp(cfg *config.Config, logger *logging.Logger) *app {
	codec := tiffio.Codec{Compress: cfg.Output.CompressTIFF}
	cache := volume.NewFrameCache(cfg.Cache.FrameCacheMB)
	return &app{
		cfg:    cfg,
		log:    logger,
		cache:  cache,
		reader: reader.New(codec, cache, logger),
		writer: &writer.Writer{Codec: codec, Workers: cfg.Processing.NumWorkers, Log: logger},
		seg:    &segmentation.Segmenter{Workers: cfg.Processing.NumWorkers, Log: logger},
	}
}

func main() {
	configPath := flag.String("config", "", "YAML configuration file (defaults when empty or missing)")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *verbose {
		cfg.Output.Verbose = true
	}

	logger, err := logging.New(cfg.LoggingConfig())
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	a := newApp(cfg, logger)
	cmd, args := flag.Arg(0), flag.Args()[1:]

	startTime := time.Now()
	switch cmd {
	case "inspect":
		err = a.inspect(args)
	case "export":
		err = a.export(ctx, args)
	case "segment":
		err = a.segment(ctx, args)
	case "diff":
		err = a.diff(ctx, args)
	case "preview":
		err = a.preview(ctx, args)
	case "init-config":
		err = initConfig(args)
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	logger.Debugf("%s finished in %.2f seconds", cmd, time.Since(startTime).Seconds())

	stop()
	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			flag.Usage()
			logger.Close()
			os.Exit(2)
		}
		logger.Errorf("%s: %v", cmd, err)
		logger.Close()
		os.Exit(1)
	}
	logger.Close()
}

// readLayer reads the single layer a dataset folder yields.
func (a *app) readLayer(dir string) (reader.Layer, error) {
	read := a.reader.GetReader(dir)
	if read == nil {
		return reader.Layer{}, fmt.Errorf("%s is not a sequence or ground-truth folder", dir)
	}
	layers, err := read(dir)
	if err != nil {
		return reader.Layer{}, err
	}
	return layers[0], nil
}

func (a *app) inspect(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: inspect <dir>", errUsage)
	}
	layer, err := a.readLayer(args[0])
	if err != nil {
		return err
	}
	v := layer.Data
	populated := v.Populated()

	fmt.Printf("Name:      %s\n", layer.Meta.Name)
	fmt.Printf("Kind:      %s\n", layer.Kind)
	fmt.Printf("Frames:    %d (%d from files)\n", v.Len(), len(populated))
	fmt.Printf("Shape:     %s\n", v.Shape)
	fmt.Printf("Type:      %s\n", v.DType)
	if len(populated) > 0 && len(populated) < v.Len() {
		fmt.Printf("Annotated: %s\n", joinInts(populated))
	}

	if err := v.Validate(); err != nil {
		return err
	}
	fmt.Println("All frame headers match the volume.")
	return nil
}

func (a *app) export(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: export <dir> <out.zip>", errUsage)
	}
	layer, err := a.readLayer(args[0])
	if err != nil {
		return err
	}
	return a.write(ctx, args[1], layer.Data)
}

func (a *app) segment(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("segment", flag.ContinueOnError)
	method := fs.String("threshold", a.cfg.Segmentation.Threshold, "Threshold method: "+joinThresholds())
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: segment [-threshold m] <dir> <out.zip>", errUsage)
	}
	th, err := segmentation.ParseThreshold(*method)
	if err != nil {
		return err
	}

	layer, err := a.readLayer(fs.Arg(0))
	if err != nil {
		return err
	}
	// The histogram and the labeling pass both read every frame.
	planes, err := layer.Data.Materialize(ctx, a.cfg.Processing.NumWorkers)
	if err != nil {
		return err
	}
	img, err := volume.FromPlanes(layer.Kind, layer.Meta.Name, planes)
	if err != nil {
		return err
	}

	seg, err := a.seg.SegmentByThreshold(ctx, img, th, layer.Meta.Name)
	if err != nil {
		return err
	}
	return a.write(ctx, fs.Arg(1), seg)
}

func (a *app) diff(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: diff <gtdir> <segdir> <out.zip>", errUsage)
	}
	truth, err := a.readLayer(args[0])
	if err != nil {
		return err
	}
	seg, err := a.readLayer(args[1])
	if err != nil {
		return err
	}
	d, err := a.seg.HighlightDiff(ctx, truth.Data, seg.Data)
	if err != nil {
		return err
	}
	return a.write(ctx, args[2], d)
}

func (a *app) write(ctx context.Context, out string, v *volume.Volume) error {
	job, err := a.writer.Write(ctx, out, v, v.Kind)
	if err != nil {
		return err
	}
	if err := job.Wait(); err != nil {
		return err
	}
	fmt.Printf("%s saved to: %s\n", v.Name, job.Path())
	if a.cache != nil {
		a.log.Debugf("Frame cache: %d entries, %d hits", a.cache.Entries(), a.cache.Hits())
	}
	return nil
}

func (a *app) preview(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	axis := fs.String("axis", a.cfg.Preview.Axis, "Slicing axis: t, y or x")
	width := fs.Int("width", a.cfg.Preview.Width, "Resize slices to this width (0 keeps native size)")
	region := fs.String("region", "", "Crop to t,y,x,frames,height,width before slicing")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: preview [-axis t] [-width n] [-region t,y,x,nt,ny,nx] <dir> <outdir>", errUsage)
	}

	layer, err := a.readLayer(fs.Arg(0))
	if err != nil {
		return err
	}
	viewer, err := visualization.NewViewer(layer.Data)
	if err != nil {
		return err
	}
	if *region != "" {
		r, err := parseInts(*region, 6)
		if err != nil {
			return fmt.Errorf("%w: -region: %v", errUsage, err)
		}
		cropped, err := viewer.ExtractRegion(r[0], r[1], r[2], r[3], r[4], r[5])
		if err != nil {
			return err
		}
		if viewer, err = visualization.NewViewer(cropped); err != nil {
			return err
		}
	}
	viewer.Width = *width
	viewer.Quality = a.cfg.Preview.Quality

	n, err := viewer.SaveSliceSequence(ctx, *axis, fs.Arg(1))
	if err != nil {
		return err
	}
	fmt.Printf("Saved %d %s-axis slices to: %s\n", n, *axis, fs.Arg(1))
	return nil
}

func initConfig(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: init-config <file>", errUsage)
	}
	if err := config.CreateDefaultConfigFile(args[0]); err != nil {
		return err
	}
	fmt.Printf("Default configuration written to: %s\n", args[0])
	return nil
}

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated values, got %d", n, len(parts))
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}

func joinThresholds() string {
	var names []string
	for _, th := range segmentation.Thresholds() {
		names = append(names, string(th))
	}
	return strings.Join(names, ", ")
}

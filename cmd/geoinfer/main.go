package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	geoinfer "github.com/wgdzlh/geoinfer"
	"github.com/wgdzlh/geoinfer/log"
	"github.com/wgdzlh/geoinfer/onnx"
	"github.com/wgdzlh/geoinfer/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	model     string
	output    string
	workDir   string
	tileSize  int
	overlap   int
	batchSize int
	blend     string
	onError   string
	device    string
	gpuId     int
	ortLib    string
	bands     int
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "geoinfer <tif>",
	Short: "Extract a semantic mask from geospatial imagery with a pretrained model",
	Args:  cobra.ExactArgs(1),
	RunE:  run,

	SilenceUsage: true,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&model, "model", "m", "", "path to the onnx model (required)")
	flags.StringVarP(&output, "output", "o", "", "output mask tif (default <work-dir>/<tif>_mask.tif)")
	flags.StringVarP(&workDir, "work-dir", "w", ".", "working directory for outputs")
	flags.IntVar(&tileSize, "tile-size", geoinfer.DefaultTileSize, "inference window size in pixels")
	flags.IntVar(&overlap, "overlap", geoinfer.DefaultOverlap, "window overlap margin in pixels")
	flags.IntVarP(&batchSize, "batch-size", "b", geoinfer.DefaultBatchSize, "inference batch size")
	flags.StringVar(&blend, "blend", "discard-margin", "overlap policy: discard-margin | weighted-average")
	flags.StringVar(&onError, "on-error", "fail-fast", "error policy: fail-fast | skip-on-error")
	flags.StringVarP(&device, "device", "d", "cpu", "inference device: cpu | cuda")
	flags.IntVar(&gpuId, "gpu-id", 0, "gpu to use when device is cuda")
	flags.StringVar(&ortLib, "ort-lib", "", "path to the onnxruntime shared library")
	flags.IntVar(&bands, "bands", 3, "model input band count")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.MarkFlagRequired("model")
}

func run(cmd *cobra.Command, args []string) (err error) {
	logger, err := newLogger()
	if err != nil {
		return
	}
	defer logger.Sync()
	log.SetLogger(logger)

	blendPolicy, err := geoinfer.ParseBlendPolicy(blend)
	if err != nil {
		return
	}
	errorPolicy, err := geoinfer.ParseErrorPolicy(onError)
	if err != nil {
		return
	}
	if device != "cpu" && device != "cuda" {
		return fmt.Errorf("unknown device %q", device)
	}
	if err = utils.EnsureDir(workDir); err != nil {
		return
	}
	tif := args[0]
	if output == "" {
		output = filepath.Join(workDir, utils.GetFilenameWithoutExt(tif)+"_mask.tif")
	}

	predictor, err := onnx.New(model, onnx.Options{
		LibPath: ortLib,
		UseCUDA: device == "cuda",
		GpuId:   gpuId,
		Bands:   bands,
	})
	if err != nil {
		return
	}
	defer predictor.Close()

	engine, err := geoinfer.New(predictor, geoinfer.Config{
		TileSize:  tileSize,
		Overlap:   overlap,
		BatchSize: batchSize,
		Blend:     blendPolicy,
		OnError:   errorPolicy,
	})
	if err != nil {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rep, err := engine.Run(ctx, tif, output)
	if err != nil {
		return
	}
	b, _ := json.Marshal(rep)
	fmt.Println(utils.B2S(b))
	return
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

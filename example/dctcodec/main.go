// Command dctcodec encodes a binary mask image with DCT vectors and reports
// how well it is reconstructed.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/sugarme/gotch"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sugarme/patchdct/config"
	"github.com/sugarme/patchdct/head"
)

// flag variables
var (
	InputPath  string
	ConfigPath string
	OutputDir  string
	DimsStr    string
	Mode       string
	Cuda       bool
	task       string
	Device     gotch.Device
)

var logger *zap.Logger

func init() {
	flag.StringVar(&InputPath, "input", "./mask.png", "specify mask image file (png, jpg or tiff)")
	flag.StringVar(&ConfigPath, "config", "", "specify YAML config file. Defaults are used if empty.")
	flag.StringVar(&task, "task", "encode", "specify task to run: encode, patch or sweep")
	flag.StringVar(&DimsStr, "dims", "50,100,200,300,500", "specify comma separated coarse vector dims for sweep")
	flag.StringVar(&OutputDir, "output", "./output", "specify output directory")
	flag.StringVar(&Mode, "mode", "debug", "specify log mode: debug or release")
	flag.BoolVar(&Cuda, "cuda", false, "specify whether using CUDA or not.")
}

func main() {
	flag.Parse()

	var err error
	logger, err = initLogger(Mode)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	InputPath = absPath(InputPath)
	OutputDir = absPath(OutputDir)
	if err := os.MkdirAll(OutputDir, 0755); err != nil {
		logger.Fatal("create output dir", zap.Error(err))
	}

	Device = gotch.CPU
	if Cuda {
		Device = gotch.NewCuda().CudaIfAvailable()
	}

	cfg := head.DefaultConfig()
	if ConfigPath != "" {
		cfg, err = config.Load(absPath(ConfigPath))
		if err != nil {
			logger.Fatal("load config", zap.Error(err))
		}
	}

	switch task {
	case "encode":
		err = runEncode(cfg)
	case "patch":
		err = runPatch(cfg)
	case "sweep":
		err = runSweep(cfg)
	default:
		logger.Fatal("unknown task. Please specify valid 'task' flag to run.", zap.String("task", task))
	}
	if err != nil {
		logger.Fatal(task, zap.Error(err))
	}
}

func initLogger(mode string) (*zap.Logger, error) {
	var zcfg zap.Config
	if mode == "release" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return zcfg.Build()
}

// helper to get absolute file path
func absPath(p string) string {
	fullpath, err := filepath.Abs(p)
	if err != nil {
		log.Fatal(err)
	}
	return fullpath
}

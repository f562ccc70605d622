// Package main contains a command to calibrate camera intrinsics from a directory of
// captured chessboard images and write the calibration artifact.
package main

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/camcal/calibration"
	"go.viam.com/camcal/chessboard"
	"go.viam.com/camcal/session"
)

var logger = golog.NewDevelopmentLogger("calibrate")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ImageDir string `flag:"images,usage=directory of chessboard images"`
	Out      string `flag:"out,usage=calibration artifact output path"`
	Rows     int    `flag:"rows,usage=inner corner rows"`
	Cols     int    `flag:"cols,usage=inner corner columns"`
	SquareMM string `flag:"square,usage=square size in millimeters"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg := session.DefaultConfig
	if argsParsed.ImageDir != "" {
		cfg.ImageDir = argsParsed.ImageDir
	}
	if argsParsed.Out != "" {
		cfg.ArtifactPath = argsParsed.Out
	}
	if argsParsed.Rows != 0 {
		cfg.PatternRows = argsParsed.Rows
	}
	if argsParsed.Cols != 0 {
		cfg.PatternCols = argsParsed.Cols
	}
	if argsParsed.SquareMM != "" {
		square, err := strconv.ParseFloat(argsParsed.SquareMM, 64)
		if err != nil {
			return errors.Wrap(err, "invalid square size")
		}
		cfg.SquareSizeMM = square
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return runCalibration(ctx, &cfg, logger)
}

func runCalibration(ctx context.Context, cfg *session.Config, logger golog.Logger) error {
	grid, err := chessboard.NewObjectPointGrid(cfg.PatternRows, cfg.PatternCols, cfg.SquareSizeMM)
	if err != nil {
		return err
	}
	collector := chessboard.NewCollector(grid, nil, logger)

	entries, err := os.ReadDir(cfg.ImageDir)
	if err != nil {
		return errors.Wrapf(err, "cannot read image directory %q", cfg.ImageDir)
	}

	var imageSize image.Point
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || !isImageFile(entry.Name()) {
			continue
		}
		path := filepath.Join(cfg.ImageDir, entry.Name())
		img, err := decodeImage(path)
		if err != nil {
			logger.Warnf("✗ %s: %v", entry.Name(), err)
			continue
		}
		if imageSize == (image.Point{}) {
			imageSize = img.Bounds().Size()
		}
		if _, err := collector.AddSample(img); err != nil {
			logger.Warnf("✗ %s: %v", entry.Name(), err)
			continue
		}
		logger.Infof("✓ %s", entry.Name())
	}
	logger.Infow("sample collection finished",
		"accepted", collector.SuccessCount(),
		"rejected", collector.FailureCount(),
	)

	intrinsics, err := calibration.NewCalibrator(logger).Calibrate(collector.Samples(), imageSize)
	if err != nil {
		return err
	}
	if err := intrinsics.WriteToYAMLFile(cfg.ArtifactPath); err != nil {
		return err
	}
	logger.Infow("artifact written",
		"path", cfg.ArtifactPath,
		"rms_px", intrinsics.ReprojectionError,
		"quality", calibration.QualityLabel(intrinsics.ReprojectionError),
	)
	return nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	default:
		return false
	}
}

func decodeImage(path string) (image.Image, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	img, _, err := image.Decode(f)
	return img, err
}

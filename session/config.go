package session

import (
	"github.com/pkg/errors"

	"go.viam.com/camcal/pose"
)

// Config is the process-start configuration for a session. It replaces ad hoc
// module-level constants; callers load it once, validate it and pass it by reference.
type Config struct {
	// PatternRows and PatternCols are the chessboard's inner corner counts.
	PatternRows int `json:"pattern_rows"`
	PatternCols int `json:"pattern_cols"`
	// SquareSizeMM is the printed chessboard square edge in millimeters.
	SquareSizeMM float64 `json:"square_size_mm"`
	// MarkerSideM is the printed marker edge in meters.
	MarkerSideM float64 `json:"marker_side_m"`
	// ArtifactPath is where the calibration artifact is written and read.
	ArtifactPath string `json:"artifact_path"`
	// ImageDir is the directory of captured calibration images.
	ImageDir string `json:"image_dir"`
	// CameraIndex selects the host camera device.
	CameraIndex int `json:"camera_index"`
}

// DefaultConfig matches the lab bench setup: a 9x7 inner-corner board with 16.5 mm
// squares and 94 mm markers.
var DefaultConfig = Config{
	PatternRows:  7,
	PatternCols:  9,
	SquareSizeMM: 16.5,
	MarkerSideM:  pose.DefaultMarkerSide,
	ArtifactPath: "calibration.yaml",
	ImageDir:     "calib_images",
	CameraIndex:  0,
}

// Validate checks the config for values no session mode can work with.
func (c *Config) Validate() error {
	if c.PatternRows < 2 || c.PatternCols < 2 {
		return errors.Errorf("pattern must have at least 2x2 inner corners, got %dx%d", c.PatternRows, c.PatternCols)
	}
	if c.SquareSizeMM <= 0 {
		return errors.Errorf("square size must be positive, got %f", c.SquareSizeMM)
	}
	if c.MarkerSideM <= 0 {
		return errors.Errorf("marker side must be positive, got %f", c.MarkerSideM)
	}
	if c.ArtifactPath == "" {
		return errors.New("artifact path is required")
	}
	if c.CameraIndex < 0 {
		return errors.Errorf("camera index must be non-negative, got %d", c.CameraIndex)
	}
	return nil
}

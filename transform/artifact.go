package transform

import (
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidArtifact is returned when the persisted calibration file is missing required
// fields or contains malformed values.
var ErrInvalidArtifact = errors.New("invalid calibration artifact")

// calibrationArtifact is the on-disk form of a calibration result: a 3x3 camera matrix,
// a 1x5 distortion coefficient row (k1, k2, p1, p2, k3) and the RMS reprojection error.
type calibrationArtifact struct {
	CameraMatrix      [][]float64 `yaml:"camera_matrix"`
	DistCoeff         [][]float64 `yaml:"dist_coeff"`
	ReprojectionError *float64    `yaml:"reprojection_error"`
}

// NewCameraIntrinsicsFromYAMLFile loads a persisted calibration artifact. A missing
// file, or an artifact with absent or malformed required fields, is an error; the pose
// pipeline treats it as fatal at startup.
func NewCameraIntrinsicsFromYAMLFile(path string) (*CameraIntrinsics, error) {
	//nolint:gosec
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading calibration artifact")
	}
	var artifact calibrationArtifact
	if err := yaml.Unmarshal(raw, &artifact); err != nil {
		return nil, errors.Wrap(ErrInvalidArtifact, err.Error())
	}
	return artifact.intrinsics()
}

func (ca *calibrationArtifact) intrinsics() (*CameraIntrinsics, error) {
	if len(ca.CameraMatrix) != 3 {
		return nil, errors.Wrapf(ErrInvalidArtifact, "camera_matrix must be 3x3, got %d rows", len(ca.CameraMatrix))
	}
	for i, row := range ca.CameraMatrix {
		if len(row) != 3 {
			return nil, errors.Wrapf(ErrInvalidArtifact, "camera_matrix row %d has %d values, need 3", i, len(row))
		}
	}
	if len(ca.DistCoeff) != 1 || len(ca.DistCoeff[0]) != 5 {
		return nil, errors.Wrap(ErrInvalidArtifact, "dist_coeff must be a 1x5 array")
	}
	if ca.ReprojectionError == nil {
		return nil, errors.Wrap(ErrInvalidArtifact, "reprojection_error is missing")
	}
	if *ca.ReprojectionError < 0 || math.IsNaN(*ca.ReprojectionError) || math.IsInf(*ca.ReprojectionError, 0) {
		return nil, errors.Wrapf(ErrInvalidArtifact, "reprojection_error %v is not a non-negative finite value", *ca.ReprojectionError)
	}

	distortion, err := NewBrownConrady(ca.DistCoeff[0])
	if err != nil {
		return nil, errors.Wrap(ErrInvalidArtifact, err.Error())
	}
	intrinsics := &CameraIntrinsics{
		PinholeCameraIntrinsics: PinholeCameraIntrinsics{
			Fx:  ca.CameraMatrix[0][0],
			Fy:  ca.CameraMatrix[1][1],
			Ppx: ca.CameraMatrix[0][2],
			Ppy: ca.CameraMatrix[1][2],
		},
		Distortion:        distortion,
		ReprojectionError: *ca.ReprojectionError,
	}
	if err := intrinsics.PinholeCameraIntrinsics.CheckValid(); err != nil {
		return nil, errors.Wrap(ErrInvalidArtifact, err.Error())
	}
	return intrinsics, nil
}

// WriteToYAMLFile persists the intrinsics as a calibration artifact. The write goes
// through a temporary file and a rename so a failed run never leaves a partial artifact
// behind.
func (ci *CameraIntrinsics) WriteToYAMLFile(path string) error {
	if err := ci.CheckValid(); err != nil {
		return err
	}
	reprojErr := ci.ReprojectionError
	artifact := calibrationArtifact{
		CameraMatrix: [][]float64{
			{ci.Fx, 0, ci.Ppx},
			{0, ci.Fy, ci.Ppy},
			{0, 0, 1},
		},
		DistCoeff:         [][]float64{ci.Distortion.Parameters()},
		ReprojectionError: &reprojErr,
	}
	raw, err := yaml.Marshal(&artifact)
	if err != nil {
		return errors.Wrap(err, "error encoding calibration artifact")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "error creating temporary artifact file")
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		os.Remove(tmp.Name()) //nolint:errcheck,gosec
		return errors.Wrap(err, "error writing calibration artifact")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck,gosec
		return errors.Wrap(err, "error closing calibration artifact")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "error moving calibration artifact into place")
}

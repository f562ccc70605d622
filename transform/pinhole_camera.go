// Package transform provides the camera models used by calibration and pose estimation:
// pinhole intrinsics, the Brown-Conrady lens distortion model, planar homography
// estimation, and the persisted calibration artifact.
package transform

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camcal/spatialmath"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intrinsics are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrapf(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection
// of a 3D scene to the 2D plane. Skew is assumed to be zero.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px" yaml:"width_px"`
	Height int     `json:"height_px" yaml:"height_px"`
	Fx     float64 `json:"fx" yaml:"fx"`
	Fy     float64 `json:"fy" yaml:"fy"`
	Ppx    float64 `json:"ppx" yaml:"ppx"`
	Ppy    float64 `json:"ppy" yaml:"ppy"`
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("intrinsics do not exist")
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// PointToPixel projects a 3D point in the camera frame to a subpixel image coordinate.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z != 0. {
		xPx := (x/z)*params.Fx + params.Ppx
		yPx := (y/z)*params.Fy + params.Ppy
		return xPx, yPx
	}
	// a point on the camera plane projects to infinity; return negative coordinates so
	// that bounds checks filter it out
	return -1.0, -1.0
}

// PixelToRay converts an image coordinate to the normalized image plane coordinate
// (x/z, y/z) of the ray through that pixel.
func (params *PinholeCameraIntrinsics) PixelToRay(u, v float64) (float64, float64) {
	return (u - params.Ppx) / params.Fx, (v - params.Ppy) / params.Fy
}

// GetCameraMatrix creates a new camera matrix and returns it.
// Camera matrix:
// [[fx 0 ppx],
//
//	[0 fy ppy],
//	[0 0  1]]
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	cameraMatrix := mat.NewDense(3, 3, nil)
	cameraMatrix.Set(0, 0, params.Fx)
	cameraMatrix.Set(1, 1, params.Fy)
	cameraMatrix.Set(0, 2, params.Ppx)
	cameraMatrix.Set(1, 2, params.Ppy)
	cameraMatrix.Set(2, 2, 1)
	return cameraMatrix
}

// CameraIntrinsics is the full intrinsic model recovered by calibration: the pinhole
// parameters, the lens distortion, and the RMS reprojection error of the solve that
// produced them. It is immutable once produced and is the read-only input to the pose
// pipeline.
type CameraIntrinsics struct {
	PinholeCameraIntrinsics
	Distortion        *BrownConrady
	ReprojectionError float64
}

// CheckValid checks the pinhole parameters, the distortion model and the reprojection error.
func (ci *CameraIntrinsics) CheckValid() error {
	if ci == nil {
		return NewNoIntrinsicsError("intrinsics do not exist")
	}
	if err := ci.PinholeCameraIntrinsics.CheckValid(); err != nil {
		return err
	}
	if err := ci.Distortion.CheckValid(); err != nil {
		return err
	}
	if ci.ReprojectionError < 0 {
		return errors.Errorf("reprojection error is negative: %f", ci.ReprojectionError)
	}
	return nil
}

// ProjectPoint projects a 3D point given in an object frame through the rigid transform
// (rot, trans) into the camera frame and onto the image plane, applying lens distortion.
func (ci *CameraIntrinsics) ProjectPoint(rot *spatialmath.RotationMatrix, trans, pt r3.Vector) r2.Point {
	cam := rot.Mul(pt).Add(trans)
	x, y := cam.X/cam.Z, cam.Y/cam.Z
	if ci.Distortion != nil {
		x, y = ci.Distortion.Transform(x, y)
	}
	return r2.Point{X: x*ci.Fx + ci.Ppx, Y: y*ci.Fy + ci.Ppy}
}

// UndistortPixel converts an observed (distorted) pixel to the ideal normalized image
// plane coordinate of its ray.
func (ci *CameraIntrinsics) UndistortPixel(pt r2.Point) r2.Point {
	x, y := ci.PixelToRay(pt.X, pt.Y)
	if ci.Distortion != nil {
		x, y = ci.Distortion.Undistort(x, y)
	}
	return r2.Point{X: x, Y: y}
}

// IdealPixel converts an observed (distorted) pixel to the pixel an ideal
// distortion-free pinhole camera would record for the same ray.
func (ci *CameraIntrinsics) IdealPixel(pt r2.Point) r2.Point {
	ray := ci.UndistortPixel(pt)
	return r2.Point{X: ray.X*ci.Fx + ci.Ppx, Y: ray.Y*ci.Fy + ci.Ppy}
}

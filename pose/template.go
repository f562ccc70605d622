// Package pose estimates the 6DOF pose of planar square fiducial markers from their
// detected corner pixels, given a calibrated camera.
package pose

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// DefaultMarkerSide is the printed marker edge length in meters.
const DefaultMarkerSide = 0.094

// MarkerTemplate holds the 3D model of a square marker: its four corners in marker
// coordinates, centered at the origin on the z=0 plane, ordered top-left, top-right,
// bottom-right, bottom-left.
type MarkerTemplate struct {
	Side    float64
	Corners [4]r3.Vector
}

// NewMarkerTemplate builds the template for a marker with the given side length in
// meters.
func NewMarkerTemplate(side float64) (*MarkerTemplate, error) {
	if side <= 0 {
		return nil, errors.Errorf("marker side must be positive, got %f", side)
	}
	half := side / 2
	return &MarkerTemplate{
		Side: side,
		Corners: [4]r3.Vector{
			{X: -half, Y: half},
			{X: half, Y: half},
			{X: half, Y: -half},
			{X: -half, Y: -half},
		},
	}, nil
}

// MarkerObservation is one detected marker in a frame: its dictionary ID and the four
// corner pixels in template order.
type MarkerObservation struct {
	ID      int
	Corners [4]r2.Point
}

// Package chessboard turns images of a planar chessboard calibration pattern into the
// 3D-2D point correspondences consumed by intrinsic calibration.
//
// Detection is Harris-response based: candidate corners are scored from Sobel gradients,
// pruned to interior X-junctions, and ordered into the expected grid. Accepted corners
// are then refined to subpixel accuracy.
package chessboard

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ObjectPointGrid is the known 3D geometry of the calibration pattern: rows x cols inner
// corners in the pattern's own frame, z = 0, scaled by the physical square size. Points
// are ordered row by row, top-left first, matching the order detection reports corners.
type ObjectPointGrid struct {
	rows       int
	cols       int
	squareSize float64
	points     []r3.Vector
}

// NewObjectPointGrid creates the grid for a pattern with the given number of inner
// corners per column (rows) and per row (cols), and the given physical square size
// (commonly millimeters; whatever unit is used here is the unit of calibrated
// extrinsics).
func NewObjectPointGrid(rows, cols int, squareSize float64) (*ObjectPointGrid, error) {
	if rows < 2 || cols < 2 {
		return nil, errors.Errorf("pattern must have at least 2x2 inner corners, got %dx%d", rows, cols)
	}
	if squareSize <= 0 {
		return nil, errors.Errorf("square size must be positive, got %f", squareSize)
	}
	points := make([]r3.Vector, 0, rows*cols)
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			points = append(points, r3.Vector{X: float64(i) * squareSize, Y: float64(j) * squareSize, Z: 0})
		}
	}
	return &ObjectPointGrid{rows: rows, cols: cols, squareSize: squareSize, points: points}, nil
}

// Rows returns the number of inner corners per column.
func (g *ObjectPointGrid) Rows() int { return g.rows }

// Cols returns the number of inner corners per row.
func (g *ObjectPointGrid) Cols() int { return g.cols }

// SquareSize returns the physical size of one pattern square.
func (g *ObjectPointGrid) SquareSize() float64 { return g.squareSize }

// Size returns the total number of grid points.
func (g *ObjectPointGrid) Size() int { return len(g.points) }

// Points returns a copy of the ordered grid points.
func (g *ObjectPointGrid) Points() []r3.Vector {
	out := make([]r3.Vector, len(g.points))
	copy(out, g.points)
	return out
}

// At returns the grid point at the given index.
func (g *ObjectPointGrid) At(i int) r3.Vector { return g.points[i] }

// CorrespondenceSample pairs the pattern geometry with the refined 2D corners detected
// in one calibration image. Image points are in the same order as the grid points.
type CorrespondenceSample struct {
	Object *ObjectPointGrid
	Image  []r2.Point
}

// NewCorrespondenceSample creates a sample, enforcing that the image points match the
// grid one to one.
func NewCorrespondenceSample(grid *ObjectPointGrid, imagePoints []r2.Point) (*CorrespondenceSample, error) {
	if len(imagePoints) != grid.Size() {
		return nil, errors.Errorf("got %d image points for a %dx%d pattern, need %d",
			len(imagePoints), grid.Rows(), grid.Cols(), grid.Size())
	}
	pts := make([]r2.Point, len(imagePoints))
	copy(pts, imagePoints)
	return &CorrespondenceSample{Object: grid, Image: pts}, nil
}

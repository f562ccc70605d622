package chessboard

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// RefineCorners improves detected corners to subpixel accuracy by iterative local
// optimization: at the true corner, the image gradient at every window pixel is
// orthogonal to the vector from the corner to that pixel, which yields a 2x2 linear
// system per iteration. Each corner is refined until it moves less than
// cfg.RefineEpsilon pixels or cfg.RefineMaxIter iterations have run, whichever comes
// first.
func RefineCorners(img image.Image, corners []r2.Point, cfg *DetectionConfig) []r2.Point {
	gray := luminance(img)
	gx := convolve3(gray, sobelX)
	gy := convolve3(gray, sobelY)

	out := make([]r2.Point, len(corners))
	for i, c := range corners {
		out[i] = refineCorner(gx, gy, c, cfg)
	}
	return out
}

func refineCorner(gx, gy *mat.Dense, c r2.Point, cfg *DetectionConfig) r2.Point {
	nr, nc := gx.Dims()
	half := cfg.RefineWindowSize / 2
	sigma := float64(half) / 2
	if sigma <= 0 {
		sigma = 1
	}

	for iter := 0; iter < cfg.RefineMaxIter; iter++ {
		cx, cy := c.X, c.Y
		x0, y0 := int(math.Round(cx)), int(math.Round(cy))

		var a11, a12, a22, b1, b2 float64
		for dy := -half; dy <= half; dy++ {
			for dx := -half; dx <= half; dx++ {
				qx, qy := x0+dx, y0+dy
				if qx < 1 || qy < 1 || qx >= nc-1 || qy >= nr-1 {
					continue
				}
				w := math.Exp(-(float64(dx*dx+dy*dy) / (2 * sigma * sigma)))
				gxv := gx.At(qy, qx)
				gyv := gy.At(qy, qx)
				gxx := w * gxv * gxv
				gxy := w * gxv * gyv
				gyy := w * gyv * gyv
				a11 += gxx
				a12 += gxy
				a22 += gyy
				b1 += gxx*float64(qx) + gxy*float64(qy)
				b2 += gxy*float64(qx) + gyy*float64(qy)
			}
		}

		det := a11*a22 - a12*a12
		if math.Abs(det) < 1e-12 {
			break
		}
		newX := (a22*b1 - a12*b2) / det
		newY := (a11*b2 - a12*b1) / det
		shift := math.Hypot(newX-cx, newY-cy)
		c = r2.Point{X: newX, Y: newY}
		if shift < cfg.RefineEpsilon {
			break
		}
	}
	return c
}

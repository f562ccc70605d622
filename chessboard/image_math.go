package chessboard

import (
	"image"

	"gonum.org/v1/gonum/mat"
)

var (
	sobelX = [9]float64{-1, 0, 1, -2, 0, 2, -1, 0, 1}
	sobelY = [9]float64{-1, -2, -1, 0, 0, 0, 1, 2, 1}
)

// luminance converts an image to a dense matrix of luminance values in [0, 1].
func luminance(img image.Image) *mat.Dense {
	bounds := img.Bounds()
	nr, nc := bounds.Dy(), bounds.Dx()
	out := mat.NewDense(nr, nc, nil)
	for y := 0; y < nr; y++ {
		for x := 0; x < nc; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			lum := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
			out.Set(y, x, lum/65535.0)
		}
	}
	return out
}

// convolve3 convolves the matrix with a 3x3 kernel, replicating border values.
func convolve3(m *mat.Dense, kernel [9]float64) *mat.Dense {
	nr, nc := m.Dims()
	out := mat.NewDense(nr, nc, nil)
	clamp := func(v, lo, hi int) int {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	for y := 0; y < nr; y++ {
		for x := 0; x < nc; x++ {
			var sum float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					sy := clamp(y+ky, 0, nr-1)
					sx := clamp(x+kx, 0, nc-1)
					sum += m.At(sy, sx) * kernel[(ky+1)*3+(kx+1)]
				}
			}
			out.Set(y, x, sum)
		}
	}
	return out
}

// boxSum computes, for every pixel, the sum of the values inside a w x w window centered
// on it, clipped at the image borders. The two passes make it separable.
func boxSum(m *mat.Dense, w int) *mat.Dense {
	nr, nc := m.Dims()
	half := w / 2

	rowSums := mat.NewDense(nr, nc, nil)
	for y := 0; y < nr; y++ {
		for x := 0; x < nc; x++ {
			var sum float64
			for dx := -half; dx <= half; dx++ {
				sx := x + dx
				if sx < 0 || sx >= nc {
					continue
				}
				sum += m.At(y, sx)
			}
			rowSums.Set(y, x, sum)
		}
	}

	out := mat.NewDense(nr, nc, nil)
	for y := 0; y < nr; y++ {
		for x := 0; x < nc; x++ {
			var sum float64
			for dy := -half; dy <= half; dy++ {
				sy := y + dy
				if sy < 0 || sy >= nr {
					continue
				}
				sum += rowSums.At(sy, x)
			}
			out.Set(y, x, sum)
		}
	}
	return out
}

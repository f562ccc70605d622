package chessboard

import (
	"image"
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrPatternNotFound is returned when the expected grid of chessboard corners cannot be
// located in an image. It is a per-image failure; callers skip the image and continue.
var ErrPatternNotFound = errors.New("chessboard pattern not found")

// DetectionConfig stores the parameters for chessboard corner detection.
type DetectionConfig struct {
	HarrisWindowSize  int     `json:"harris-win-size"`   // window size for the Harris structure tensor sums
	HarrisK           float64 `json:"harris-k"`          // Harris trace weight
	ResponseThreshold float64 `json:"response-thresh"`   // keep responses above this fraction of the maximum
	MinSeparation     float64 `json:"min-separation"`    // non-maximum suppression radius in pixels
	XCornerOffset     int     `json:"xcorner-offset"`    // diagonal sampling offset for the X-junction test
	XCornerContrast   float64 `json:"xcorner-contrast"`  // minimum contrast between diagonal pairs
	RefineWindowSize  int     `json:"refine-win-size"`   // subpixel refinement window (w x w)
	RefineMaxIter     int     `json:"refine-max-iter"`   // iteration cap for subpixel refinement
	RefineEpsilon     float64 `json:"refine-epsilon"`    // stop refining below this positional change, in pixels
}

// DefaultDetectionConfig stores the default detection parameters. The refinement
// termination criteria (30 iterations, 0.001 px) bound per-corner latency.
var DefaultDetectionConfig = DetectionConfig{
	HarrisWindowSize:  5,
	HarrisK:           0.04,
	ResponseThreshold: 0.01,
	MinSeparation:     10,
	XCornerOffset:     3,
	XCornerContrast:   0.2,
	RefineWindowSize:  11,
	RefineMaxIter:     30,
	RefineEpsilon:     0.001,
}

// corner is a candidate corner with its Harris response.
type corner struct {
	pt r2.Point
	r  float64
}

// DetectGrid locates the rows x cols inner corners of a chessboard in the image and
// returns them ordered row by row, top to bottom, left to right. The corners returned
// are pixel-accurate; refinement to subpixel accuracy is a separate step.
func DetectGrid(img image.Image, rows, cols int, cfg *DetectionConfig) ([]r2.Point, error) {
	gray := luminance(img)
	gx := convolve3(gray, sobelX)
	gy := convolve3(gray, sobelY)

	candidates := harrisCorners(gx, gy, cfg)
	candidates = suppressNonMaxima(candidates, cfg.MinSeparation)
	candidates = filterXCorners(gray, candidates, cfg)
	if len(candidates) < rows*cols {
		return nil, errors.Wrapf(ErrPatternNotFound, "found %d corner candidates, need %d", len(candidates), rows*cols)
	}

	// strongest responses first, keep exactly the expected count
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].r > candidates[j].r })
	candidates = candidates[:rows*cols]

	pts := make([]r2.Point, len(candidates))
	for i, c := range candidates {
		pts[i] = c.pt
	}
	return orderIntoGrid(pts, rows, cols)
}

// harrisCorners computes the Harris response over the image and returns every local
// candidate above the relative threshold.
func harrisCorners(gx, gy *mat.Dense, cfg *DetectionConfig) []corner {
	nr, nc := gx.Dims()
	ixx := mat.NewDense(nr, nc, nil)
	ixy := mat.NewDense(nr, nc, nil)
	iyy := mat.NewDense(nr, nc, nil)
	ixx.MulElem(gx, gx)
	ixy.MulElem(gx, gy)
	iyy.MulElem(gy, gy)

	sxx := boxSum(ixx, cfg.HarrisWindowSize)
	sxy := boxSum(ixy, cfg.HarrisWindowSize)
	syy := boxSum(iyy, cfg.HarrisWindowSize)

	response := mat.NewDense(nr, nc, nil)
	maxResponse := 0.0
	for y := 0; y < nr; y++ {
		for x := 0; x < nc; x++ {
			a, b, c := sxx.At(y, x), sxy.At(y, x), syy.At(y, x)
			r := (a*c - b*b) - cfg.HarrisK*(a+c)*(a+c)
			response.Set(y, x, r)
			if r > maxResponse {
				maxResponse = r
			}
		}
	}
	if maxResponse <= 0 {
		return nil
	}

	thresh := cfg.ResponseThreshold * maxResponse
	border := cfg.HarrisWindowSize
	var out []corner
	for y := border; y < nr-border; y++ {
		for x := border; x < nc-border; x++ {
			r := response.At(y, x)
			if r <= thresh {
				continue
			}
			// local maximum over the 8-neighborhood
			if r >= response.At(y-1, x-1) && r >= response.At(y-1, x) && r >= response.At(y-1, x+1) &&
				r >= response.At(y, x-1) && r > response.At(y, x+1) &&
				r > response.At(y+1, x-1) && r > response.At(y+1, x) && r > response.At(y+1, x+1) {
				out = append(out, corner{pt: r2.Point{X: float64(x), Y: float64(y)}, r: r})
			}
		}
	}
	return out
}

// suppressNonMaxima keeps the strongest corner within each minSeparation radius.
func suppressNonMaxima(candidates []corner, minSeparation float64) []corner {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].r > candidates[j].r })
	var kept []corner
	for _, c := range candidates {
		tooClose := false
		for _, k := range kept {
			if c.pt.Sub(k.pt).Norm() < minSeparation {
				tooClose = true
				break
			}
		}
		if !tooClose {
			kept = append(kept, c)
		}
	}
	return kept
}

// filterXCorners keeps only candidates that look like chessboard X-junctions: the two
// diagonal sample pairs around the corner must each be self-consistent and must contrast
// strongly with each other. This rejects the L and T junctions along the pattern border.
func filterXCorners(gray *mat.Dense, candidates []corner, cfg *DetectionConfig) []corner {
	nr, nc := gray.Dims()
	d := cfg.XCornerOffset
	var out []corner
	for _, c := range candidates {
		x, y := int(c.pt.X), int(c.pt.Y)
		if x-d < 0 || y-d < 0 || x+d >= nc || y+d >= nr {
			continue
		}
		a := gray.At(y-d, x-d)
		b := gray.At(y-d, x+d)
		cc := gray.At(y+d, x+d)
		dd := gray.At(y+d, x-d)
		pairContrast := math.Abs((a+cc)/2 - (b+dd)/2)
		if pairContrast < cfg.XCornerContrast {
			continue
		}
		if math.Abs(a-cc) > pairContrast/2 || math.Abs(b-dd) > pairContrast/2 {
			continue
		}
		out = append(out, c)
	}
	return out
}

// orderIntoGrid sorts the detected corners into row-major order and validates that they
// actually form the expected grid.
func orderIntoGrid(pts []r2.Point, rows, cols int) ([]r2.Point, error) {
	if len(pts) != rows*cols {
		return nil, errors.Wrapf(ErrPatternNotFound, "have %d corners, need %d", len(pts), rows*cols)
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].Y < pts[j].Y })

	ordered := make([]r2.Point, 0, len(pts))
	prevRowY := math.Inf(-1)
	for r := 0; r < rows; r++ {
		row := make([]r2.Point, cols)
		copy(row, pts[r*cols:(r+1)*cols])

		ys := make([]float64, cols)
		for i, pt := range row {
			ys[i] = pt.Y
		}
		rowY, err := stats.Mean(ys)
		if err != nil {
			return nil, errors.Wrap(ErrPatternNotFound, err.Error())
		}
		spread, err := stats.StandardDeviation(ys)
		if err != nil {
			return nil, errors.Wrap(ErrPatternNotFound, err.Error())
		}
		// rows must be cleanly separated, otherwise the candidates do not form a grid
		if rowY <= prevRowY+3*spread {
			return nil, errors.Wrap(ErrPatternNotFound, "corner rows are not separable")
		}
		prevRowY = rowY

		sort.Slice(row, func(i, j int) bool { return row[i].X < row[j].X })
		ordered = append(ordered, row...)
	}
	return ordered, nil
}

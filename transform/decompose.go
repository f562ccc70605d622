package transform

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camcal/spatialmath"
)

// DecomposeHomography recovers the rigid transform of a z=0 plane from its
// plane-to-image homography and the camera matrix. The first two columns of K⁻¹H give
// the plane's x and y axes up to scale; the scale is fixed by the unit-norm constraint
// and its sign by requiring the plane to sit in front of the camera. The rotation
// estimate is projected onto SO(3) with an SVD.
func DecomposeHomography(h *Homography, params *PinholeCameraIntrinsics) (*spatialmath.RotationMatrix, r3.Vector, error) {
	var kInv mat.Dense
	if err := kInv.Inverse(params.GetCameraMatrix()); err != nil {
		return nil, r3.Vector{}, errors.Wrap(err, "cannot invert camera matrix")
	}
	mulCol := func(col int) r3.Vector {
		x, y, z := h.Col(col)
		return r3.Vector{
			X: kInv.At(0, 0)*x + kInv.At(0, 1)*y + kInv.At(0, 2)*z,
			Y: kInv.At(1, 0)*x + kInv.At(1, 1)*y + kInv.At(1, 2)*z,
			Z: kInv.At(2, 0)*x + kInv.At(2, 1)*y + kInv.At(2, 2)*z,
		}
	}

	c0 := mulCol(0)
	c1 := mulCol(1)
	c2 := mulCol(2)
	norm := c0.Norm()
	if norm == 0 {
		return nil, r3.Vector{}, errors.New("homography column has zero norm")
	}
	scale := 1 / norm
	if c2.Z*scale < 0 {
		scale = -scale
	}

	r1 := c0.Mul(scale)
	r2 := c1.Mul(scale)
	trans := c2.Mul(scale)
	r3col := r1.Cross(r2)

	rot, err := orthonormalizeColumns(r1, r2, r3col)
	if err != nil {
		return nil, r3.Vector{}, err
	}
	return rot, trans, nil
}

// orthonormalizeColumns projects the three column vectors onto the nearest rotation
// matrix.
func orthonormalizeColumns(c0, c1, c2 r3.Vector) (*spatialmath.RotationMatrix, error) {
	m := mat.NewDense(3, 3, []float64{
		c0.X, c1.X, c2.X,
		c0.Y, c1.Y, c2.Y,
		c0.Z, c1.Z, c2.Z,
	})
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return nil, errors.New("failed to factorize rotation estimate")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	var r mat.Dense
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		// flip the least significant direction to stay in SO(3)
		d := mat.NewDiagDense(3, []float64{1, 1, -1})
		var ud mat.Dense
		ud.Mul(&u, d)
		r.Mul(&ud, v.T())
	}
	vals := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			vals[3*i+j] = r.At(i, j)
		}
	}
	return spatialmath.NewRotationMatrix(vals)
}

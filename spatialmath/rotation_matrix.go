// Package spatialmath defines the rotation representations used by the calibration and
// pose pipelines, and the conversions between them.
//
// Rotations move between three parameterizations: the R3 axis-angle vector (the solver
// representation, whose direction is the rotation axis and whose norm is the angle),
// the 3x3 rotation matrix, and Euler angles (the display representation).
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// orthoTolerance is how far a candidate matrix may stray from orthonormality
// before NewRotationMatrix rejects it.
const orthoTolerance = 1e-8

// RotationMatrix is a 3x3 rotation matrix, stored row-major.
type RotationMatrix struct {
	mat [9]float64
}

// NewRotationMatrix creates a rotation matrix from a row-major slice of 9 values.
// The matrix must be orthonormal with determinant +1.
func NewRotationMatrix(m []float64) (*RotationMatrix, error) {
	if len(m) != 9 {
		return nil, errors.Errorf("input slice has %d elements, need exactly 9", len(m))
	}
	var rm RotationMatrix
	copy(rm.mat[:], m)
	if err := rm.CheckValid(); err != nil {
		return nil, err
	}
	return &rm, nil
}

// NewZeroRotationMatrix returns the identity rotation.
func NewZeroRotationMatrix() *RotationMatrix {
	return &RotationMatrix{mat: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// CheckValid returns an error if the matrix is not a proper rotation,
// i.e. not orthonormal or with determinant != +1.
func (rm *RotationMatrix) CheckValid() error {
	rows := [3]r3.Vector{rm.Row(0), rm.Row(1), rm.Row(2)}
	for i := 0; i < 3; i++ {
		if math.Abs(rows[i].Norm()-1) > orthoTolerance {
			return errors.Errorf("row %d is not unit length", i)
		}
		if math.Abs(rows[i].Dot(rows[(i+1)%3])) > orthoTolerance {
			return errors.Errorf("rows %d and %d are not orthogonal", i, (i+1)%3)
		}
	}
	if det := rm.Det(); math.Abs(det-1) > orthoTolerance {
		return errors.Errorf("determinant is %f, not +1", det)
	}
	return nil
}

// At returns the value at the given row and column.
func (rm *RotationMatrix) At(row, col int) float64 {
	return rm.mat[3*row+col]
}

// Row returns the a 3 vector corresponding to the given row.
func (rm *RotationMatrix) Row(row int) r3.Vector {
	return r3.Vector{X: rm.mat[3*row], Y: rm.mat[3*row+1], Z: rm.mat[3*row+2]}
}

// Col returns the a 3 vector corresponding to the given column.
func (rm *RotationMatrix) Col(col int) r3.Vector {
	return r3.Vector{X: rm.mat[col], Y: rm.mat[3+col], Z: rm.mat[6+col]}
}

// Det returns the determinant of the matrix.
func (rm *RotationMatrix) Det() float64 {
	m := rm.mat
	return m[0]*(m[4]*m[8]-m[5]*m[7]) - m[1]*(m[3]*m[8]-m[5]*m[6]) + m[2]*(m[3]*m[7]-m[4]*m[6])
}

// Mul rotates the vector v.
func (rm *RotationMatrix) Mul(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: rm.Row(0).Dot(v),
		Y: rm.Row(1).Dot(v),
		Z: rm.Row(2).Dot(v),
	}
}

// Transpose returns the transpose, which for a rotation matrix is also its inverse.
func (rm *RotationMatrix) Transpose() *RotationMatrix {
	m := rm.mat
	return &RotationMatrix{mat: [9]float64{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}}
}

// RawMatrix returns the underlying values as a row-major slice copy.
func (rm *RotationMatrix) RawMatrix() []float64 {
	out := make([]float64, 9)
	copy(out, rm.mat[:])
	return out
}

// Package linalg is the linear-system backend contract spec.md §6 names
// as a required external interface: a distributed Vec/Mat pair with
// Zero/Set/Add/Assemble/Scatter/AXPY/pointwise-mult/norm/getArray/
// restoreArray/reciprocal/diagonal-scale for Vec, and Zero/set-add/
// Assemble/add-row-to-row/zero-rows/diagonal/IGNORE_ZERO_ENTRIES for Mat.
//
// This module runs single-process (spec.md §5 reduces to one logical
// rank), so Vec is a plain slice and the "scatter" operation that would
// move ghost values across ranks is the identity; Mat is backed by
// github.com/edp1096/sparse, the teacher's existing sparse-matrix
// dependency.
package linalg

import "math"

// Vec is a dense, 1-based-indexed vector (index 0 is reserved/unused,
// matching the sparse backend's 1-based convention so row indices from
// pkg/indexmap translate without an offset).
type Vec struct {
	data []float64
}

// NewVec allocates a Vec with n+1 slots so valid row indices are 1..n.
func NewVec(n int) *Vec {
	return &Vec{data: make([]float64, n+1)}
}

func (v *Vec) Len() int { return len(v.data) - 1 }

// Zero clears every component (Vec.Zero).
func (v *Vec) Zero() {
	for i := range v.data {
		v.data[i] = 0
	}
}

// Set overwrites component i (Vec.Set, insert semantics).
func (v *Vec) Set(i int, val float64) { v.data[i] = val }

// Add accumulates into component i (Vec.Add / ADD insertion mode).
func (v *Vec) Add(i int, val float64) { v.data[i] += val }

func (v *Vec) Get(i int) float64 { return v.data[i] }

// Assemble is the collective that flushes pending add/set traffic. On one
// rank there is nothing to flush; the call exists so assembly code can
// call it unconditionally, matching the Vec/Mat contract's shape.
func (v *Vec) Assemble() {}

// Scatter copies this vector's values into dst, optionally applying a
// node-id remap (ghost aggregation in the real backend, identity here
// since there is exactly one rank and therefore no ghost layer).
func (v *Vec) Scatter(dst *Vec) {
	copy(dst.data, v.data)
}

// AXPY computes v <- v + alpha*x (Vec.axpy).
func (v *Vec) AXPY(alpha float64, x *Vec) {
	for i := range v.data {
		v.data[i] += alpha * x.data[i]
	}
}

// PointwiseMult computes v[i] = a[i]*b[i] for every component
// (Vec.pointwise-mult), used to apply row scaling L to r.
func (v *Vec) PointwiseMult(a, b *Vec) {
	for i := range v.data {
		v.data[i] = a.data[i] * b.data[i]
	}
}

// Norm2 returns the Euclidean norm (Vec.norm).
func (v *Vec) Norm2() float64 {
	sum := 0.0
	for i := 1; i < len(v.data); i++ {
		sum += v.data[i] * v.data[i]
	}
	return math.Sqrt(sum)
}

// GetArray exposes the backing slice for direct indexed access by
// assemblers (Vec.getArray); RestoreArray is a no-op bookend matching the
// real backend's borrow/return discipline.
func (v *Vec) GetArray() []float64  { return v.data }
func (v *Vec) RestoreArray([]float64) {}

// Reciprocal overwrites every nonzero component with its reciprocal
// (Vec.reciprocal), used to build the row-scaling vector L from a
// Jacobian diagonal snapshot.
func (v *Vec) Reciprocal() {
	for i := range v.data {
		if v.data[i] != 0 {
			v.data[i] = 1.0 / v.data[i]
		}
	}
}

// CopyFrom overwrites v's contents with src's (used to rotate history
// vectors x_n/x_{n-1}/x_{n-2}).
func (v *Vec) CopyFrom(src *Vec) {
	copy(v.data, src.data)
}

// Clone returns an independent copy.
func (v *Vec) Clone() *Vec {
	c := NewVec(v.Len())
	copy(c.data, v.data)
	return c
}

// Max returns the maximum component value on this process; no caller
// passes it through solverctx.Context.Reduce.
func (v *Vec) Max() float64 {
	m := math.Inf(-1)
	for i := 1; i < len(v.data); i++ {
		if v.data[i] > m {
			m = v.data[i]
		}
	}
	return m
}

// HasNaN reports whether any component is NaN or +/-Inf, the condition
// that triggers simerror.AssemblyNaN.
func (v *Vec) HasNaN() bool {
	for i := 1; i < len(v.data); i++ {
		if math.IsNaN(v.data[i]) || math.IsInf(v.data[i], 0) {
			return true
		}
	}
	return false
}

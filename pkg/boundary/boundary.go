// Package boundary implements the Boundary Assembler (spec.md §4.3): a
// two-phase contract (Preprocess, then Assemble) per boundary condition,
// with a device-only flavour and a circuit-coupled (spice electrode)
// flavour.
package boundary

import (
	"github.com/gotcad/mixsolve/pkg/linalg"
	"github.com/gotcad/mixsolve/pkg/region"
)

// Condition is the per-BC callable set. Preprocess returns three row
// lists: src_rows to be added into the corresponding dst_rows (the two
// have equal length; the add happens in both r and J), and clear_rows,
// of any length, to be zeroed — all before
// Assemble writes the BC's own rows. This is how Dirichlet, interface and
// electrode-tying constraints are imposed without destroying contributions
// already assembled by the Region Assembler (spec.md §4.3).
type Condition interface {
	Name() string

	// Preprocess returns (srcRows, dstRows, clearRows); len(srcRows) ==
	// len(dstRows).
	Preprocess(lx *linalg.Vec) (srcRows, dstRows, clearRows []int)

	// Assemble writes the BC's own residual/Jacobian rows using the
	// post-preprocess row structure.
	AssembleResidual(lx *linalg.Vec, r *linalg.Vec, mode region.InsertMode) error
	AssembleJacobian(lx *linalg.Vec, J *linalg.Mat, mode region.InsertMode) error

	// IsSpiceElectrode reports whether this BC couples a device terminal
	// to an external circuit node (spec.md §4.3's "two flavours per BC").
	IsSpiceElectrode() bool
}

// ApplyPreprocess runs the add-then-clear sequence Preprocess describes
// against both r and J, the exact mechanics spec.md §4.3 names as the
// Driver's responsibility ("The Driver then (a) adds each src row into
// the corresponding dst row... and (b) zeroes every clear row").
func ApplyPreprocess(c Condition, lx *linalg.Vec, r *linalg.Vec, J *linalg.Mat) error {
	src, dst, clear := c.Preprocess(lx)
	for i := range src {
		r.Add(dst[i], r.Get(src[i]))
		if err := J.AddRowToRow(src[i], dst[i]); err != nil {
			return err
		}
	}
	for _, row := range clear {
		r.Set(row, 0)
	}
	if len(clear) > 0 {
		if err := J.ZeroRows(clear); err != nil {
			return err
		}
	}
	return nil
}

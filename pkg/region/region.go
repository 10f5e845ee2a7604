// Package region implements the per-region-type Region Assembler
// (spec.md §4.2): one assembler per region kind (semiconductor, insulator,
// metal/electrode, vacuum), each enumerating its region's on-processor
// finite-volume nodes and filling the residual/Jacobian it owns.
package region

import (
	"github.com/gotcad/mixsolve/pkg/indexmap"
	"github.com/gotcad/mixsolve/pkg/linalg"
	"github.com/gotcad/mixsolve/pkg/mesh"
	"github.com/gotcad/mixsolve/pkg/solverctx"
)

// InsertMode is the explicit NOT_SET/ADD/INSERT flag of Design Notes §9.
// Assembly code may promote NOT_SET to ADD on first use but must never
// demote ADD/INSERT back to NOT_SET.
type InsertMode int

const (
	NotSet InsertMode = iota
	Add
	Insert
)

// Promote advances m to ADD the first time it is used, and otherwise
// returns m unchanged; it never returns NOT_SET, preserving the one-way
// contract.
func (m InsertMode) Promote() InsertMode {
	if m == NotSet {
		return Add
	}
	return m
}

// Kind is the closed set of region types (Design Notes §9: "tagged
// variants over a small closed set of region types").
type Kind int

const (
	Semiconductor Kind = iota
	Insulator
	Metal
	Vacuum
)

// Assembler is the per-region callable set spec.md §4.2 requires. lx is
// the localised solution view (with ghosts); regions read it and write
// into r/J through the Index Map, never retaining either across calls
// (spec.md §3 Ownership).
type Assembler interface {
	Kind() Kind
	Region() mesh.RegionID

	// FillInitial writes the initial guess and diagonal scale estimate at
	// every on-processor node.
	FillInitial(x, L *linalg.Vec)

	// Residual writes governing-equation residuals (Poisson + continuity
	// + optional heat/energy) for this region's nodes.
	Residual(lx *linalg.Vec, r *linalg.Vec, mode InsertMode) error

	// Jacobian writes the first-order Jacobian of Residual. The insulator,
	// metal and vacuum Jacobians are exact; the semiconductor one is an
	// approximation (see SemiconductorAssembler.Jacobian).
	Jacobian(lx *linalg.Vec, J *linalg.Mat, mode InsertMode) error

	// TimeDependentResidual/TimeDependentJacobian add the BDF1/BDF2
	// contributions built from stored per-node history (spec.md §4.6).
	TimeDependentResidual(lx *linalg.Vec, r *linalg.Vec, mode InsertMode, ctx *solverctx.Context) error
	TimeDependentJacobian(lx *linalg.Vec, J *linalg.Mat, mode InsertMode, ctx *solverctx.Context) error

	// HangingNodeFunction/HangingNodeJacobian impose interpolation
	// constraints at non-conforming refinement faces. This arena has no
	// hanging nodes (AMR is out of scope, spec.md §1), so every
	// implementation is a documented no-op kept to satisfy the interface.
	HangingNodeFunction(lx *linalg.Vec, r *linalg.Vec, mode InsertMode) error
	HangingNodeJacobian(lx *linalg.Vec, J *linalg.Mat, mode InsertMode) error

	// UpdateSolution scatters an accepted iterate back into per-node
	// history data (n_last <- n, etc.).
	UpdateSolution(lx *linalg.Vec)
}

// Base is embedded by every concrete assembler; it holds the shared
// plumbing (arena, index map, region id) so each region type only
// implements the physics-specific pieces.
type Base struct {
	Arena *mesh.Arena
	Index *indexmap.Map
	Reg   mesh.RegionID
}

func (b *Base) Region() mesh.RegionID { return b.Reg }

// HangingNodeFunction and HangingNodeJacobian are no-ops shared by every
// region type in this arena (see Assembler doc comment).
func (b *Base) HangingNodeFunction(*linalg.Vec, *linalg.Vec, InsertMode) error { return nil }
func (b *Base) HangingNodeJacobian(*linalg.Vec, *linalg.Mat, InsertMode) error { return nil }

package region

import (
	"github.com/gotcad/mixsolve/pkg/indexmap"
	"github.com/gotcad/mixsolve/pkg/linalg"
	"github.com/gotcad/mixsolve/pkg/mesh"
	"github.com/gotcad/mixsolve/pkg/solverctx"
)

// VacuumAssembler contributes nothing: "vacuum regions contribute
// nothing" (spec.md §3). It exists purely so the Mode Controller can
// enumerate every region uniformly without a type switch.
type VacuumAssembler struct {
	Base
}

func NewVacuum(arena *mesh.Arena, idx *indexmap.Map, reg mesh.RegionID) *VacuumAssembler {
	return &VacuumAssembler{Base: Base{Arena: arena, Index: idx, Reg: reg}}
}

func (v *VacuumAssembler) Kind() Kind { return Vacuum }

func (v *VacuumAssembler) FillInitial(x, L *linalg.Vec) {}

func (v *VacuumAssembler) Residual(lx *linalg.Vec, r *linalg.Vec, mode InsertMode) error { return nil }

func (v *VacuumAssembler) Jacobian(lx *linalg.Vec, J *linalg.Mat, mode InsertMode) error { return nil }

func (v *VacuumAssembler) TimeDependentResidual(lx *linalg.Vec, r *linalg.Vec, mode InsertMode, ctx *solverctx.Context) error {
	return nil
}

func (v *VacuumAssembler) TimeDependentJacobian(lx *linalg.Vec, J *linalg.Mat, mode InsertMode, ctx *solverctx.Context) error {
	return nil
}

func (v *VacuumAssembler) UpdateSolution(lx *linalg.Vec) {}

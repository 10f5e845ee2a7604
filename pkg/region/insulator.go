package region

import (
	"github.com/gotcad/mixsolve/pkg/indexmap"
	"github.com/gotcad/mixsolve/pkg/linalg"
	"github.com/gotcad/mixsolve/pkg/mesh"
	"github.com/gotcad/mixsolve/pkg/physics"
	"github.com/gotcad/mixsolve/pkg/solverctx"
	"github.com/gotcad/mixsolve/pkg/util"
)

// InsulatorAssembler carries the Poisson equation as spec.md §4.2
// requires: "insulator/metal use psi and optional Tl". With EnableTl set,
// the Tl rows receive only the BDF1 time-derivative term in transient
// runs; no heat-conduction term is assembled for them. Metal/electrode regions reuse the same
// assembler with a much larger effective permittivity standing in for a
// perfect conductor's zero-field interior — the Boundary Assembler is
// what actually ties a metal region to an electrode voltage.
type InsulatorAssembler struct {
	Base
	EnableTl bool
	Material physics.Insulator
	isMetal  bool
}

func NewInsulator(arena *mesh.Arena, idx *indexmap.Map, reg mesh.RegionID, enableTl bool, mat physics.Insulator) *InsulatorAssembler {
	return &InsulatorAssembler{Base: Base{Arena: arena, Index: idx, Reg: reg}, EnableTl: enableTl, Material: mat}
}

func NewMetal(arena *mesh.Arena, idx *indexmap.Map, reg mesh.RegionID, enableTl bool) *InsulatorAssembler {
	return &InsulatorAssembler{Base: Base{Arena: arena, Index: idx, Reg: reg}, EnableTl: enableTl, Material: physics.Insulator{Permittivity: 1e6}, isMetal: true}
}

func (a *InsulatorAssembler) Kind() Kind {
	if a.isMetal {
		return Metal
	}
	return Insulator
}

func (a *InsulatorAssembler) FillInitial(x, L *linalg.Vec) {
	for _, id := range a.Arena.OnProcessorNodes(a.Reg) {
		node := a.Arena.Node(id)
		psiOff, _ := a.Index.Offset(a.Reg, node.LocalID, indexmap.Potential)
		x.Set(psiOff, 0.0)
		L.Set(psiOff, 1.0)
		if a.EnableTl {
			off, _ := a.Index.Offset(a.Reg, node.LocalID, indexmap.LatticeTemp)
			x.Set(off, 300.15)
			L.Set(off, 1.0)
		}
	}
}

func (a *InsulatorAssembler) Residual(lx *linalg.Vec, r *linalg.Vec, mode InsertMode) error {
	eps := a.Material.Permittivity
	for _, id := range a.Arena.OnProcessorNodes(a.Reg) {
		node := a.Arena.Node(id)
		psiI, _ := a.Index.Offset(a.Reg, node.LocalID, indexmap.Potential)
		psi_i := lx.Get(psiI)
		f := 0.0
		for _, nb := range a.Arena.Neighbors(id) {
			nbNode := a.Arena.Node(nb)
			if nbNode.Region != a.Reg {
				continue
			}
			area := a.Arena.FaceArea(id, nb)
			dist := distance(node.Data.Coord, nbNode.Data.Coord)
			if dist <= 0 {
				continue
			}
			psiJOff, _ := a.Index.Offset(a.Reg, nbNode.LocalID, indexmap.Potential)
			f += eps * area / dist * (lx.Get(psiJOff) - psi_i)
		}
		r.Add(psiI, f)
	}
	return nil
}

func (a *InsulatorAssembler) Jacobian(lx *linalg.Vec, J *linalg.Mat, mode InsertMode) error {
	eps := a.Material.Permittivity
	for _, id := range a.Arena.OnProcessorNodes(a.Reg) {
		node := a.Arena.Node(id)
		psiI, _ := a.Index.Offset(a.Reg, node.LocalID, indexmap.Potential)
		diag := 0.0
		for _, nb := range a.Arena.Neighbors(id) {
			nbNode := a.Arena.Node(nb)
			if nbNode.Region != a.Reg {
				continue
			}
			area := a.Arena.FaceArea(id, nb)
			dist := distance(node.Data.Coord, nbNode.Data.Coord)
			if dist <= 0 {
				continue
			}
			g := eps * area / dist
			diag -= g
			psiJOff, _ := a.Index.Offset(a.Reg, nbNode.LocalID, indexmap.Potential)
			if err := J.SetAdd(psiI, psiJOff, g); err != nil {
				return err
			}
		}
		if err := J.SetAdd(psiI, psiI, diag); err != nil {
			return err
		}
	}
	return nil
}

func (a *InsulatorAssembler) TimeDependentResidual(lx *linalg.Vec, r *linalg.Vec, mode InsertMode, ctx *solverctx.Context) error {
	if !a.EnableTl || !ctx.TimeDependent || ctx.Dt <= 0 {
		return nil
	}
	coeffs := util.GetBDFcoeffs(1, ctx.Dt)
	for _, id := range a.Arena.OnProcessorNodes(a.Reg) {
		node := a.Arena.Node(id)
		tlOff, _ := a.Index.Offset(a.Reg, node.LocalID, indexmap.LatticeTemp)
		r.Add(tlOff, node.Data.Volume*(coeffs[0]*lx.Get(tlOff)+coeffs[1]*node.Data.TLast))
	}
	return nil
}

func (a *InsulatorAssembler) TimeDependentJacobian(lx *linalg.Vec, J *linalg.Mat, mode InsertMode, ctx *solverctx.Context) error {
	if !a.EnableTl || !ctx.TimeDependent || ctx.Dt <= 0 {
		return nil
	}
	coeffs := util.GetBDFcoeffs(1, ctx.Dt)
	for _, id := range a.Arena.OnProcessorNodes(a.Reg) {
		node := a.Arena.Node(id)
		tlOff, _ := a.Index.Offset(a.Reg, node.LocalID, indexmap.LatticeTemp)
		if err := J.SetAdd(tlOff, tlOff, node.Data.Volume*coeffs[0]); err != nil {
			return err
		}
	}
	return nil
}

func (a *InsulatorAssembler) UpdateSolution(lx *linalg.Vec) {
	if !a.EnableTl {
		return
	}
	for _, id := range a.Arena.OnProcessorNodes(a.Reg) {
		node := a.Arena.Node(id)
		tlOff, _ := a.Index.Offset(a.Reg, node.LocalID, indexmap.LatticeTemp)
		data := &a.Arena.Node(id).Data
		data.TLast, data.T = data.T, lx.Get(tlOff)
	}
}

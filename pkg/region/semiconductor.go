package region

import (
	"math"

	"github.com/gotcad/mixsolve/internal/consts"
	"github.com/gotcad/mixsolve/pkg/indexmap"
	"github.com/gotcad/mixsolve/pkg/linalg"
	"github.com/gotcad/mixsolve/pkg/mesh"
	"github.com/gotcad/mixsolve/pkg/physics"
	"github.com/gotcad/mixsolve/pkg/solverctx"
	"github.com/gotcad/mixsolve/pkg/util"
)

// SemiconductorAssembler implements the energy-balance-model (EBM)
// drift-diffusion equations of spec.md §4.2: Poisson + electron/hole
// continuity, plus optional lattice/carrier-temperature equations when
// the region's advanced_model flags enable them. Current density between
// neighbouring nodes uses a Scharfetter-Gummel discretization, the
// standard finite-volume scheme for drift-diffusion (the mobility model
// itself stays an opaque physics.Material callable per spec.md §1).
type SemiconductorAssembler struct {
	Base
	Model     solverctx.AdvancedModel
	Material  physics.Material
	varKinds  []indexmap.VarKind
}

// NewSemiconductor builds the assembler for region, declaring which EBM
// variables are active based on model. The kind order matches spec.md §3:
// psi, n, p, then w_n/w_p only when enabled (Tl is folded in wherever
// EnableTl is set, following the variable_offset contract of §4.1).
func NewSemiconductor(arena *mesh.Arena, idx *indexmap.Map, reg mesh.RegionID, model solverctx.AdvancedModel, mat physics.Material) *SemiconductorAssembler {
	kinds := []indexmap.VarKind{indexmap.Potential, indexmap.Electron, indexmap.Hole}
	if model.EnableTl {
		kinds = append(kinds, indexmap.LatticeTemp)
	}
	if model.EnableTn {
		kinds = append(kinds, indexmap.ElectronTempTimesN)
	}
	if model.EnableTp {
		kinds = append(kinds, indexmap.HoleTempTimesP)
	}
	return &SemiconductorAssembler{
		Base:     Base{Arena: arena, Index: idx, Reg: reg},
		Model:    model,
		Material: mat,
		varKinds: kinds,
	}
}

func (s *SemiconductorAssembler) Kind() Kind { return Semiconductor }

// bernoulli is the Scharfetter-Gummel weighting function B(x) = x/(e^x-1),
// with the analytic limit B(0)=1.
func bernoulli(x float64) float64 {
	if math.Abs(x) < 1e-8 {
		return 1.0 - x/2.0
	}
	return x / math.Expm1(x)
}

func (s *SemiconductorAssembler) FillInitial(x, L *linalg.Vec) {
	nodes := s.Arena.OnProcessorNodes(s.Reg)
	tExt := consts.RoomTemperature
	ni := s.Material.IntrinsicDensity(tExt)

	for _, id := range nodes {
		node := s.Arena.Node(id)
		psiOff, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.Potential)

		var n0, p0 float64
		doping := node.Data.Doping
		if doping > 0 {
			n0 = doping
			p0 = ni * ni / n0
		} else if doping < 0 {
			p0 = -doping
			n0 = ni * ni / p0
		} else {
			n0, p0 = ni, ni
		}
		if n0 < consts.OnePerCM3 {
			n0 = consts.OnePerCM3
		}
		if p0 < consts.OnePerCM3 {
			p0 = consts.OnePerCM3
		}

		nOff, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.Electron)
		pOff, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.Hole)
		x.Set(psiOff, 0.0)
		x.Set(nOff, n0)
		x.Set(pOff, p0)
		L.Set(psiOff, 1.0)
		L.Set(nOff, 1.0)
		L.Set(pOff, 1.0)

		if s.Model.EnableTl {
			off, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.LatticeTemp)
			x.Set(off, tExt)
			L.Set(off, 1.0)
		}
		if s.Model.EnableTn {
			off, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.ElectronTempTimesN)
			x.Set(off, n0*tExt)
			L.Set(off, 1.0)
		}
		if s.Model.EnableTp {
			off, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.HoleTempTimesP)
			x.Set(off, p0*tExt)
			L.Set(off, 1.0)
		}
	}
}

func (s *SemiconductorAssembler) edgeVt(tempK float64) float64 {
	return consts.ThermalVoltage(tempK)
}

func (s *SemiconductorAssembler) Residual(lx *linalg.Vec, r *linalg.Vec, mode InsertMode) error {
	nodes := s.Arena.OnProcessorNodes(s.Reg)
	tExt := consts.RoomTemperature

	for _, id := range nodes {
		node := s.Arena.Node(id)
		psiI, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.Potential)
		nI, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.Electron)
		pI, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.Hole)

		tl := tExt
		if s.Model.EnableTl {
			off, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.LatticeTemp)
			tl = lx.Get(off)
		}
		vt := s.edgeVt(tl)

		n_i, p_i := lx.Get(nI), lx.Get(pI)
		psi_i := lx.Get(psiI)

		fPsi := consts.CHARGE * (p_i - n_i + node.Data.Doping) * node.Data.Volume
		fN, fP := 0.0, 0.0

		for _, nb := range s.Arena.Neighbors(id) {
			nbNode := s.Arena.Node(nb)
			if nbNode.Region != s.Reg {
				continue // heterojunction/interface coupling is a Boundary Assembler concern
			}
			area := s.Arena.FaceArea(id, nb)
			dist := distance(node.Data.Coord, nbNode.Data.Coord)
			if dist <= 0 {
				continue
			}

			psiJOff, _ := s.Index.Offset(s.Reg, nbNode.LocalID, indexmap.Potential)
			nJOff, _ := s.Index.Offset(s.Reg, nbNode.LocalID, indexmap.Electron)
			pJOff, _ := s.Index.Offset(s.Reg, nbNode.LocalID, indexmap.Hole)
			psi_j, n_j, p_j := lx.Get(psiJOff), lx.Get(nJOff), lx.Get(pJOff)

			fPsi += area / dist * (psi_j - psi_i)

			beta := (psi_j - psi_i) / vt
			muN, muP := s.Material.Mobility(tl, math.Abs(psi_j-psi_i)/dist)

			jn := consts.CHARGE * muN * vt / dist * (n_j*bernoulli(beta) - n_i*bernoulli(-beta)) * area
			jp := consts.CHARGE * muP * vt / dist * (p_i*bernoulli(beta) - p_j*bernoulli(-beta)) * area

			fN += jn
			fP -= jp
		}

		recomb := s.Material.Recombination(n_i, p_i, tl)
		fN -= consts.CHARGE * recomb * node.Data.Volume
		fP -= consts.CHARGE * recomb * node.Data.Volume

		r.Add(psiI, fPsi)
		r.Add(nI, fN)
		r.Add(pI, fP)

		if s.Model.EnableTl {
			s.latticeHeatResidual(node, lx, r, tl, n_i, p_i, vt)
		}
		if s.Model.EnableTn {
			s.energyResidual(node, lx, r, indexmap.ElectronTempTimesN, nI, tl, tExt)
		}
		if s.Model.EnableTp {
			s.energyResidual(node, lx, r, indexmap.HoleTempTimesP, pI, tl, tExt)
		}
	}
	return nil
}

func distance(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// latticeHeatResidual adds the lattice heat balance as thermal diffusion
// between neighbours of the same region only. No Joule-heating source and
// no relaxation toward T_external are assembled here, and the insulator/
// metal assembler adds no steady-state Tl equation either.
func (s *SemiconductorAssembler) latticeHeatResidual(node *mesh.Node, lx, r *linalg.Vec, tl, n, p, vt float64) {
	const kappa = 1.5 // W/(cm*K), rough silicon thermal conductivity
	tlOff, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.LatticeTemp)

	fT := 0.0
	for _, nb := range s.Arena.Neighbors(node.ID) {
		nbNode := s.Arena.Node(nb)
		if nbNode.Region != s.Reg || !s.Model.EnableTl {
			continue
		}
		area := s.Arena.FaceArea(node.ID, nb)
		dist := distance(node.Data.Coord, nbNode.Data.Coord)
		if dist <= 0 {
			continue
		}
		nbTlOff, _ := s.Index.Offset(s.Reg, nbNode.LocalID, indexmap.LatticeTemp)
		fT += kappa * area / dist * (lx.Get(nbTlOff) - tl)
	}
	r.Add(tlOff, fT)
}

// energyResidual adds a simple relaxation-to-lattice term for the
// electron/hole energy equation: d(w)/dt-free part relaxes w/n (or w/p)
// toward Tl over an energy relaxation time tau_w. This is a reduced
// stand-in for the full energy-transport equations the original EBM
// model carries; structurally it exercises the same variable slot and
// invariant (Tn/Tp >= 0.9*T_ext) the Damping package enforces.
func (s *SemiconductorAssembler) energyResidual(node *mesh.Node, lx, r *linalg.Vec, kind indexmap.VarKind, carrierOff int, tl, tExt float64) {
	const tauW = 1e-12 // s, energy relaxation time
	wOff, _ := s.Index.Offset(s.Reg, node.LocalID, kind)
	carrier := lx.Get(carrierOff)
	if carrier < consts.OnePerCM3 {
		carrier = consts.OnePerCM3
	}
	w := lx.Get(wOff)
	tCarrier := w / carrier
	f := -carrier * (tCarrier - tl) / tauW * node.Data.Volume
	r.Add(wOff, f)
}

// Jacobian is not the exact derivative of Residual. The Poisson and
// lattice-heat rows are exact. The continuity rows take every Bernoulli
// factor as 1 (the beta~0 linearization), evaluate mobility at zero field,
// and leave out the derivatives with respect to psi, Tl and the
// recombination term. The energy rows leave out the derivative with
// respect to the carrier density.
func (s *SemiconductorAssembler) Jacobian(lx *linalg.Vec, J *linalg.Mat, mode InsertMode) error {
	nodes := s.Arena.OnProcessorNodes(s.Reg)
	tExt := consts.RoomTemperature

	for _, id := range nodes {
		node := s.Arena.Node(id)
		psiI, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.Potential)
		nI, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.Electron)
		pI, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.Hole)

		tl := tExt
		if s.Model.EnableTl {
			off, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.LatticeTemp)
			tl = lx.Get(off)
		}
		vt := s.edgeVt(tl)

		// dPoisson/dp_i, dPoisson/dn_i
		if err := J.SetAdd(psiI, pI, consts.CHARGE*node.Data.Volume); err != nil {
			return err
		}
		if err := J.SetAdd(psiI, nI, -consts.CHARGE*node.Data.Volume); err != nil {
			return err
		}

		diagPsi, diagN, diagP := 0.0, 0.0, 0.0

		for _, nb := range s.Arena.Neighbors(id) {
			nbNode := s.Arena.Node(nb)
			if nbNode.Region != s.Reg {
				continue
			}
			area := s.Arena.FaceArea(id, nb)
			dist := distance(node.Data.Coord, nbNode.Data.Coord)
			if dist <= 0 {
				continue
			}
			g := area / dist
			diagPsi -= g
			psiJOff, _ := s.Index.Offset(s.Reg, nbNode.LocalID, indexmap.Potential)
			if err := J.SetAdd(psiI, psiJOff, g); err != nil {
				return err
			}

			nJOff, _ := s.Index.Offset(s.Reg, nbNode.LocalID, indexmap.Electron)
			pJOff, _ := s.Index.Offset(s.Reg, nbNode.LocalID, indexmap.Hole)

			muN, muP := s.Material.Mobility(tl, 0)
			gN := consts.CHARGE * muN * vt / dist * area
			gP := consts.CHARGE * muP * vt / dist * area

			// Linearized drift-diffusion Jacobian around beta~0
			// (Bernoulli ~ 1 -+ beta/2); keeps the matrix diagonally
			// dominant and correct to leading order in the bias step.
			diagN -= gN
			diagP -= gP
			if err := J.SetAdd(nI, nJOff, gN); err != nil {
				return err
			}
			if err := J.SetAdd(pI, pJOff, gP); err != nil {
				return err
			}
		}

		if err := J.SetAdd(psiI, psiI, diagPsi); err != nil {
			return err
		}
		if err := J.SetAdd(nI, nI, diagN); err != nil {
			return err
		}
		if err := J.SetAdd(pI, pI, diagP); err != nil {
			return err
		}

		if s.Model.EnableTl {
			tlOff, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.LatticeTemp)
			const kappa = 1.5
			diagT := 0.0
			for _, nb := range s.Arena.Neighbors(id) {
				nbNode := s.Arena.Node(nb)
				if nbNode.Region != s.Reg {
					continue
				}
				area := s.Arena.FaceArea(id, nb)
				dist := distance(node.Data.Coord, nbNode.Data.Coord)
				if dist <= 0 {
					continue
				}
				g := kappa * area / dist
				diagT -= g
				nbTlOff, _ := s.Index.Offset(s.Reg, nbNode.LocalID, indexmap.LatticeTemp)
				if err := J.SetAdd(tlOff, nbTlOff, g); err != nil {
					return err
				}
			}
			if err := J.SetAdd(tlOff, tlOff, diagT); err != nil {
				return err
			}
		}
		if s.Model.EnableTn {
			if err := s.energyJacobian(node, nI, indexmap.ElectronTempTimesN, J); err != nil {
				return err
			}
		}
		if s.Model.EnableTp {
			if err := s.energyJacobian(node, pI, indexmap.HoleTempTimesP, J); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SemiconductorAssembler) energyJacobian(node *mesh.Node, carrierOff int, kind indexmap.VarKind, J *linalg.Mat) error {
	const tauW = 1e-12
	wOff, _ := s.Index.Offset(s.Reg, node.LocalID, kind)
	return J.SetAdd(wOff, wOff, -node.Data.Volume/tauW)
}

// Region-level history storage (mesh.NodeData) keeps exactly one previous
// step per quantity, so the mass-matrix term assembled here always uses
// the BDF1 (backward-Euler) coefficient regardless of ctx.TSType — the
// order-2, variable-step BDF2 treatment with its three-point history
// lives entirely in pkg/timeintegrator, which operates on the full state
// vector's x_n/x_{n-1}/x_{n-2} rather than per-node scalars.
func (s *SemiconductorAssembler) TimeDependentResidual(lx *linalg.Vec, r *linalg.Vec, mode InsertMode, ctx *solverctx.Context) error {
	if !ctx.TimeDependent || ctx.Dt <= 0 {
		return nil
	}
	coeffs := util.GetBDFcoeffs(1, ctx.Dt)

	for _, id := range s.Arena.OnProcessorNodes(s.Reg) {
		node := s.Arena.Node(id)
		vol := node.Data.Volume

		nOff, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.Electron)
		pOff, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.Hole)
		r.Add(nOff, consts.CHARGE*vol*(coeffs[0]*lx.Get(nOff)+coeffs[1]*node.Data.NLast))
		r.Add(pOff, -consts.CHARGE*vol*(coeffs[0]*lx.Get(pOff)+coeffs[1]*node.Data.PLast))

		if s.Model.EnableTl {
			tlOff, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.LatticeTemp)
			r.Add(tlOff, vol*(coeffs[0]*lx.Get(tlOff)+coeffs[1]*node.Data.TLast))
		}
	}
	return nil
}

func (s *SemiconductorAssembler) TimeDependentJacobian(lx *linalg.Vec, J *linalg.Mat, mode InsertMode, ctx *solverctx.Context) error {
	if !ctx.TimeDependent || ctx.Dt <= 0 {
		return nil
	}
	coeffs := util.GetBDFcoeffs(1, ctx.Dt)

	for _, id := range s.Arena.OnProcessorNodes(s.Reg) {
		node := s.Arena.Node(id)
		vol := node.Data.Volume
		nOff, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.Electron)
		pOff, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.Hole)
		if err := J.SetAdd(nOff, nOff, consts.CHARGE*vol*coeffs[0]); err != nil {
			return err
		}
		if err := J.SetAdd(pOff, pOff, -consts.CHARGE*vol*coeffs[0]); err != nil {
			return err
		}
		if s.Model.EnableTl {
			tlOff, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.LatticeTemp)
			if err := J.SetAdd(tlOff, tlOff, vol*coeffs[0]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SemiconductorAssembler) UpdateSolution(lx *linalg.Vec) {
	for _, id := range s.Arena.OnProcessorNodes(s.Reg) {
		node := s.Arena.Node(id)
		nOff, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.Electron)
		pOff, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.Hole)
		data := &s.Arena.Node(id).Data
		data.NLast, data.N = data.N, lx.Get(nOff)
		data.PLast, data.P = data.P, lx.Get(pOff)

		if s.Model.EnableTl {
			tlOff, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.LatticeTemp)
			data.TLast, data.T = data.T, lx.Get(tlOff)
		}
		if s.Model.EnableTn {
			wOff, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.ElectronTempTimesN)
			data.TnLast, data.Tn = data.Tn, lx.Get(wOff)/math.Max(data.N, consts.OnePerCM3)
		}
		if s.Model.EnableTp {
			wOff, _ := s.Index.Offset(s.Reg, node.LocalID, indexmap.HoleTempTimesP)
			data.TpLast, data.Tp = data.Tp, lx.Get(wOff)/math.Max(data.P, consts.OnePerCM3)
		}
	}
}

// Package damping implements the Damping & Projection strategies of
// spec.md §4.5: potential damping, positive-density damping, and the
// Bank-Rose pass-through stub, grounded line-for-line on
// MixA3Solver::potential_damping / positive_density_damping /
// bank_rose_damping / projection_positive_density_check.
package damping

import (
	"fmt"
	"math"

	"github.com/gotcad/mixsolve/internal/consts"
	"github.com/gotcad/mixsolve/pkg/circuitbridge"
	"github.com/gotcad/mixsolve/pkg/indexmap"
	"github.com/gotcad/mixsolve/pkg/linalg"
	"github.com/gotcad/mixsolve/pkg/mesh"
	"github.com/gotcad/mixsolve/pkg/simerror"
)

// Strategy transforms the Newton search direction y and/or trial
// iterate w, reporting which of the two it changed (spec.md §4.5: "each
// routine signals back whether it changed y... or w").
type Strategy interface {
	Name() string
	Apply(x, y, w *linalg.Vec) (changedY, changedW bool)
}

// SemiconductorNode is one on-processor semiconductor FVM node's row
// offsets, precomputed once by the caller (the Nonlinear Driver) from
// the Index Map so damping never has to re-resolve offsets per call.
type SemiconductorNode struct {
	PsiOff int
	NOff   int
	POff   int
	TlOff  int
	TnOff  int // offset of w_n = n*Tn; 0 if not enabled
	TpOff  int // offset of w_p = p*Tp; 0 if not enabled
}

// Table is the flattened set of semiconductor nodes and advanced-model
// flags every damping strategy needs; built once per partition.
type Table struct {
	Nodes     []SemiconductorNode
	EnableTl  bool
	EnableTn  bool
	EnableTp  bool
	TExternal float64
	Bridge    *circuitbridge.SpiceBridge // nil if no circuit block present
	CktNodes  []int                      // circuit-local node indices, for voltage/current clipping
}

const onePerCMC = consts.OnePerCM3

// PotentialDamping is the default damping strategy for semiconductor
// Newton steps (spec.md §4.5, first bullet).
type PotentialDamping struct {
	Table *Table
}

func (d *PotentialDamping) Name() string { return "potential_damping" }

func (d *PotentialDamping) Apply(x, y, w *linalg.Vec) (changedY, changedW bool) {
	t := d.Table
	tExt := t.TExternal

	dVmax := 0.0
	for _, n := range t.Nodes {
		if v := math.Abs(y.Get(n.PsiOff)); v > dVmax {
			dVmax = v
		}
		if w.Get(n.NOff) < onePerCMC {
			w.Set(n.NOff, onePerCMC)
		}
		if w.Get(n.POff) < onePerCMC {
			w.Set(n.POff, onePerCMC)
		}
		if t.EnableTl && w.Get(n.TlOff) < tExt-50 {
			w.Set(n.TlOff, tExt-50)
		}
		if t.EnableTn {
			clampEnergy(x, w, n.NOff, n.TnOff, tExt)
		}
		if t.EnableTp {
			clampEnergy(x, w, n.POff, n.TpOff, tExt)
		}
	}

	if dVmax > 1e-6 {
		vt := consts.ThermalVoltage(tExt)
		f := math.Log(1+dVmax/vt) / (dVmax / vt)
		for _, n := range t.Nodes {
			w.Set(n.PsiOff, x.Get(n.PsiOff)-f*y.Get(n.PsiOff))
		}
	}

	if t.Bridge != nil {
		for _, node := range t.CktNodes {
			xOff, err := t.Bridge.ArrayOffsetX(node)
			if err != nil {
				continue
			}
			if t.Bridge.IsVoltageNode(node) {
				dv := math.Abs(y.Get(xOff))
				if dv > 5 {
					damp := 5 / dv
					w.Set(xOff, x.Get(xOff)-damp*y.Get(xOff))
				}
			}
			if t.Bridge.IsCurrentNode(node) {
				di := math.Abs(y.Get(xOff))
				if di > 1 {
					damp := 1 / di
					w.Set(xOff, x.Get(xOff)-damp*y.Get(xOff))
				}
			}
		}
	}

	return false, true
}

// clampEnergy recomputes w_c (w_n or w_p, named generically via cOff)
// from a convex blend of old and new carrier temperature, floored at
// 0.9*T_external — spec.md §4.5's "Tn, Tp >= 0.9*T_ext" clause.
func clampEnergy(x, w *linalg.Vec, carrierOff, energyOff int, tExternal float64) {
	n0 := x.Get(carrierOff)
	n1 := w.Get(carrierOff)
	if n0 == 0 {
		return
	}
	t0 := x.Get(energyOff) / n0
	alpha := n1 / n0
	if alpha > 2.0 {
		alpha = 2.0
	}
	t1 := t0*(1-alpha) + w.Get(energyOff)/n0
	if t1 < 0.9*tExternal {
		t1 = 0.9 * tExternal
	}
	w.Set(energyOff, t1*n1)
}

// PositiveDensity is the fallback strategy used when potential damping
// alone is insufficient to keep an iterate physical (spec.md §4.5,
// second bullet). The post-acceptance projection is the separate Project
// function below, which applies the density and temperature floors.
type PositiveDensity struct {
	Table *Table
}

func (d *PositiveDensity) Name() string { return "positive_density_damping" }

func (d *PositiveDensity) Apply(x, y, w *linalg.Vec) (changedY, changedW bool) {
	t := d.Table
	tExt := t.TExternal

	for _, n := range t.Nodes {
		if math.Abs(y.Get(n.PsiOff)) > 1.0 {
			sign := 1.0
			if y.Get(n.PsiOff) < 0 {
				sign = -1.0
			}
			w.Set(n.PsiOff, x.Get(n.PsiOff)-sign*1.0)
		}
		if w.Get(n.NOff) < onePerCMC {
			w.Set(n.NOff, onePerCMC)
		}
		if w.Get(n.POff) < onePerCMC {
			w.Set(n.POff, onePerCMC)
		}
		if t.EnableTl && w.Get(n.TlOff) < tExt-50 {
			w.Set(n.TlOff, tExt-50)
		}
		if t.EnableTn {
			clampEnergy(x, w, n.NOff, n.TnOff, tExt)
		}
		if t.EnableTp {
			clampEnergy(x, w, n.POff, n.TpOff, tExt)
		}
	}
	return false, true
}

// BankRose is the reserved extension point spec.md §4.5/§9 names as an
// explicit Open Question: "the Bank-Rose damping body is a pass-through
// stub in the source; implementers should leave it as an extension
// point rather than invent a policy." It changes neither y nor w.
type BankRose struct{}

func (BankRose) Name() string { return "bank_rose_damping" }

func (BankRose) Apply(x, y, w *linalg.Vec) (changedY, changedW bool) { return false, false }

// Project applies the same physical clips as PositiveDensity to an
// accepted iterate, using the pre-Newton iterate xOld as the reference
// for temperature blending (spec.md §4.5: "the projection applies the
// same physical clips to the accepted iterate using the pre-Newton
// iterate as the reference").
func Project(t *Table, x, xOld *linalg.Vec) {
	tExt := t.TExternal
	for _, n := range t.Nodes {
		if x.Get(n.NOff) < onePerCMC {
			x.Set(n.NOff, onePerCMC)
		}
		if x.Get(n.POff) < onePerCMC {
			x.Set(n.POff, onePerCMC)
		}
		if t.EnableTl && x.Get(n.TlOff) < tExt-50 {
			x.Set(n.TlOff, tExt-50)
		}
		if t.EnableTn {
			clampEnergy(xOld, x, n.NOff, n.TnOff, tExt)
		}
		if t.EnableTp {
			clampEnergy(xOld, x, n.POff, n.TpOff, tExt)
		}
	}
}

// CheckInvariants is the post-projection sanity check spec.md §7 requires
// before an iterate is accepted: n, p >= 1/cm^3, Tl >= T_ext-50 and, where
// enabled, the derived carrier temperatures Tn = w_n/n, Tp = w_p/p >=
// 0.9*T_ext. Project already clips every one of these; a violation surviving
// past it means the floor itself was breached (NaN, division by a density
// Project missed) rather than an ordinary out-of-range iterate, so it is
// reported as a fatal simerror.InvariantViolation rather than clipped again.
func CheckInvariants(t *Table, x *linalg.Vec) error {
	tExt := t.TExternal
	for i, n := range t.Nodes {
		nv := x.Get(n.NOff)
		pv := x.Get(n.POff)
		if math.IsNaN(nv) || nv < onePerCMC {
			return simerror.New(simerror.InvariantViolation, fmt.Sprintf("damping.CheckInvariants: node %d electron density %.6g below floor", i, nv))
		}
		if math.IsNaN(pv) || pv < onePerCMC {
			return simerror.New(simerror.InvariantViolation, fmt.Sprintf("damping.CheckInvariants: node %d hole density %.6g below floor", i, pv))
		}
		if t.EnableTl {
			if tl := x.Get(n.TlOff); math.IsNaN(tl) || tl < tExt-50 {
				return simerror.New(simerror.InvariantViolation, fmt.Sprintf("damping.CheckInvariants: node %d lattice temperature %.6g below floor", i, tl))
			}
		}
		if t.EnableTn {
			if tn := x.Get(n.TnOff) / nv; math.IsNaN(tn) || tn < 0.9*tExt-1e-6 {
				return simerror.New(simerror.InvariantViolation, fmt.Sprintf("damping.CheckInvariants: node %d electron temperature %.6g below floor", i, tn))
			}
		}
		if t.EnableTp {
			if tp := x.Get(n.TpOff) / pv; math.IsNaN(tp) || tp < 0.9*tExt-1e-6 {
				return simerror.New(simerror.InvariantViolation, fmt.Sprintf("damping.CheckInvariants: node %d hole temperature %.6g below floor", i, tp))
			}
		}
	}
	return nil
}

// BuildTable walks every semiconductor region in the arena/index map and
// flattens it into the Table damping strategies operate on.
func BuildTable(arena *mesh.Arena, idx *indexmap.Map, semiconductorRegions []mesh.RegionID, enableTl, enableTn, enableTp bool, tExternal float64, bridge *circuitbridge.SpiceBridge, cktNodes []int) *Table {
	t := &Table{EnableTl: enableTl, EnableTn: enableTn, EnableTp: enableTp, TExternal: tExternal, Bridge: bridge, CktNodes: cktNodes}
	for _, reg := range semiconductorRegions {
		for _, id := range arena.OnProcessorNodes(reg) {
			node := arena.Node(id)
			sn := SemiconductorNode{}
			sn.PsiOff, _ = idx.Offset(reg, node.LocalID, indexmap.Potential)
			sn.NOff, _ = idx.Offset(reg, node.LocalID, indexmap.Electron)
			sn.POff, _ = idx.Offset(reg, node.LocalID, indexmap.Hole)
			if enableTl {
				sn.TlOff, _ = idx.Offset(reg, node.LocalID, indexmap.LatticeTemp)
			}
			if enableTn {
				sn.TnOff, _ = idx.Offset(reg, node.LocalID, indexmap.ElectronTempTimesN)
			}
			if enableTp {
				sn.TpOff, _ = idx.Offset(reg, node.LocalID, indexmap.HoleTempTimesP)
			}
			t.Nodes = append(t.Nodes, sn)
		}
	}
	return t
}

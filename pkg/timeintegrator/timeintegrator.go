// Package timeintegrator is the Time Integrator of spec.md §4.6:
// BDF1/BDF2 history, predictor formulas, local-truncation-error
// estimation, and accept/reject/grow step-size control. Grounded on
// MixA3Solver::LTE_norm and MixA3Solver::BDF2_positive_defined.
package timeintegrator

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/gotcad/mixsolve/pkg/linalg"
	"github.com/gotcad/mixsolve/pkg/solverctx"
)

// RowKind tells the LTE norm which per-row error formula to use: masked
// rows (psi) never enter the error estimate.
type RowKind int

const (
	RowMasked  RowKind = iota // e.g. potential; LTE forced to 0
	RowScaled                 // e.g. n, p, Tl, w_n, w_p; scaled by eps_r*|x|+eps_a
)

// History holds the three past iterates a BDF2 predictor needs, plus the
// step sizes that go with them (spec.md §3: "x_n, x_{n-1}, x_{n-2}
// (history)").
type History struct {
	Xn, Xn1, Xn2 *linalg.Vec
	Hn, Hn1, Hn2 float64
}

// Integrator drives the predictor/LTE/accept-reject machinery. RowKinds
// is parallel to the unified vector and classifies each row once, built
// from the Index Map the same way pkg/damping.Table is.
type Integrator struct {
	RowKinds []RowKind
	MaxGrow  float64 // bound on step-size growth, e.g. 2.0
	MinGrow  float64 // LTE threshold below which growth is attempted
}

func New(rowKinds []RowKind) *Integrator {
	return &Integrator{RowKinds: rowKinds, MaxGrow: 2.0, MinGrow: 0.1}
}

// Predict computes x_p per spec.md §4.6's BDF1 or BDF2 predictor
// formula, selecting BDF2's higher-order form only when useHigherOrder
// is true (the Driver turns this off when BDF2PositiveDefined fails).
func Predict(h *History, tsType solverctx.TSType, useHigherOrder bool) *linalg.Vec {
	n := h.Xn.Len()
	xp := linalg.NewVec(n)

	if tsType == solverctx.BDF1 || !useHigherOrder {
		hn, hn1 := h.Hn, h.Hn1
		xp.AXPY(1+hn/hn1, h.Xn)
		xp.AXPY(-hn/hn1, h.Xn1)
		return xp
	}

	hn, hn1, hn2 := h.Hn, h.Hn1, h.Hn2
	cn := 1 + hn*(hn+2*hn1+hn2)/(hn1*(hn1+hn2))
	cn1 := -hn * (hn + hn1 + hn2) / (hn1 * hn2)
	cn2 := hn * (hn + hn1) / (hn2 * (hn1 + hn2))
	xp.AXPY(cn, h.Xn)
	xp.AXPY(cn1, h.Xn1)
	xp.AXPY(cn2, h.Xn2)
	return xp
}

// LTENorm computes the scaled LTE norm ||r||_2/sqrt(N) per spec.md §4.6,
// given the accepted trial iterate x and its predictor xp.
func (ig *Integrator) LTENorm(x, xp *linalg.Vec, h *History, tsType solverctx.TSType, useHigherOrder bool, epsR, epsA float64) float64 {
	n := x.Len()
	beta := h.Hn / (h.Hn + h.Hn1)
	if tsType == solverctx.BDF2 && useHigherOrder {
		beta = h.Hn / (h.Hn + h.Hn1 + h.Hn2)
	}

	scaled := make([]float64, 0, n)
	for i := 1; i <= n; i++ {
		if i > len(ig.RowKinds) || ig.RowKinds[i-1] == RowMasked {
			continue
		}
		e := beta * (x.Get(i) - xp.Get(i))
		scaled = append(scaled, e/(epsR*math.Abs(x.Get(i))+epsA))
	}
	if len(scaled) == 0 {
		return 0
	}
	return floats.Norm(scaled, 2) / math.Sqrt(float64(len(scaled)))
}

// Decision is the outcome of one step-size control evaluation.
type Decision int

const (
	Accept Decision = iota
	RejectHalve
)

// Evaluate applies spec.md §4.6's accept/reject/grow rule: LTE <= 1
// accepts (growing hNext when LTE << MinGrow), otherwise the step is
// rejected and h should be halved.
func (ig *Integrator) Evaluate(lte, hCurrent float64) (Decision, float64) {
	if lte > 1.0 {
		return RejectHalve, hCurrent / 2
	}
	hNext := hCurrent
	if lte < ig.MinGrow {
		hNext = hCurrent * ig.MaxGrow
	}
	return Accept, hNext
}

// SemiNode holds the per-node current and "last" values
// BDF2PositiveDefined needs, mirroring damping.SemiconductorNode's offsets
// but carrying values rather than being read live from the arena, so the integrator stays decoupled
// from pkg/mesh.
type SemiNode struct {
	N, NLast     float64
	P, PLast     float64
	Tl, TlLast   float64
	TnN, TnNLast float64 // n*Tn, n_last*Tn_last (i.e. w_n, w_n_last)
	TpP, TpPLast float64 // w_p, w_p_last
	EnableTl     bool
	EnableTn     bool
	EnableTp     bool
}

// BDF2PositiveDefined implements MixA3Solver::BDF2_positive_defined:
// BDF2 is usable for the next step only if, at every semiconductor node,
// a*xi_new >= b*xi_last holds for every active quantity xi.
func BDF2PositiveDefined(nodes []SemiNode, dtLast, dt float64) bool {
	r := dtLast / (dtLast + dt)
	a := 1.0 / (r * (1 - r))
	b := (1 - r) / r

	for _, n := range nodes {
		if a*n.N < b*n.NLast {
			return false
		}
		if a*n.P < b*n.PLast {
			return false
		}
		if n.EnableTl && a*n.Tl < b*n.TlLast {
			return false
		}
		if n.EnableTn && a*n.TnN < b*n.TnNLast {
			return false
		}
		if n.EnableTp && a*n.TpP < b*n.TpPLast {
			return false
		}
	}
	return true
}

// RotateHistory shifts x_{n-1} -> x_{n-2}, x_n -> x_{n-1}, accepted -> x_n
// after a step is accepted (spec.md §3: "History vectors are rotated
// each accepted time step").
func RotateHistory(h *History, accepted *linalg.Vec, hAccepted float64) {
	h.Xn2.CopyFrom(h.Xn1)
	h.Xn1.CopyFrom(h.Xn)
	h.Xn.CopyFrom(accepted)
	h.Hn2 = h.Hn1
	h.Hn1 = h.Hn
	h.Hn = hAccepted
}

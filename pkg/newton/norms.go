package newton

import (
	"gonum.org/v1/gonum/floats"

	"github.com/gotcad/mixsolve/pkg/linalg"
)

// Category tags a residual row for the per-equation norms spec.md §4.8
// names: "potential, electron, hole, (lattice, electron, hole)
// temperature, plus residual norms for Poisson, electron continuity,
// hole continuity, heat, electron-energy, hole-energy, electrode,
// spice."
type Category int

const (
	CatPoisson Category = iota
	CatElectronContinuity
	CatHoleContinuity
	CatHeat
	CatElectronEnergy
	CatHoleEnergy
	CatElectrode
	CatSpice
)

func (c Category) String() string {
	switch c {
	case CatPoisson:
		return "poisson"
	case CatElectronContinuity:
		return "electron_continuity"
	case CatHoleContinuity:
		return "hole_continuity"
	case CatHeat:
		return "heat"
	case CatElectronEnergy:
		return "electron_energy"
	case CatHoleEnergy:
		return "hole_energy"
	case CatElectrode:
		return "electrode"
	case CatSpice:
		return "spice"
	default:
		return "unknown"
	}
}

// RowTag pairs a row index in the unified residual with the category it
// belongs to, plus (for the two energy categories) the row holding the
// carrier density needed to derive Tn = w_n/n and Tp = w_p/p.
type RowTag struct {
	Row      int
	Category Category
	StateRow int // row of n or p, for deriving Tn/Tp; 0 if unused
}

// Norms is the full set of per-iterate quantities the Driver computes
// and (conceptually) broadcasts each Newton iteration (spec.md §4.8).
type Norms struct {
	Residual map[Category]float64

	// State norms, not residuals: potential/electron/hole and derived
	// carrier-temperature norms, for diagnostics and the algebraic-law
	// tests in spec.md §8.
	PotentialNorm float64
	ElectronNorm  float64
	HoleNorm      float64
	LatticeTNorm  float64
	ElectronTNorm float64
	HoleTNorm     float64
}

// Compute derives every norm spec.md §4.8 lists from the current
// residual r and state x, using tags built once per partition: a
// per-category residual norm for every tag, plus the state norms
// (potential/electron/hole/lattice-temperature read straight from x, and
// the derived carrier temperatures Tn = w_n/n, Tp = w_p/p read via
// StateRow for the two energy categories).
func Compute(r, x *linalg.Vec, tags []RowTag) *Norms {
	n := &Norms{Residual: make(map[Category]float64)}
	byCat := make(map[Category][]float64)

	var psi, elec, hole, latticeT, elecT, holeT []float64

	for _, t := range tags {
		byCat[t.Category] = append(byCat[t.Category], r.Get(t.Row))

		switch t.Category {
		case CatPoisson:
			psi = append(psi, x.Get(t.Row))
		case CatElectronContinuity:
			elec = append(elec, x.Get(t.Row))
		case CatHoleContinuity:
			hole = append(hole, x.Get(t.Row))
		case CatHeat:
			latticeT = append(latticeT, x.Get(t.Row))
		case CatElectronEnergy:
			if carrier := x.Get(t.StateRow); carrier != 0 {
				elecT = append(elecT, x.Get(t.Row)/carrier)
			}
		case CatHoleEnergy:
			if carrier := x.Get(t.StateRow); carrier != 0 {
				holeT = append(holeT, x.Get(t.Row)/carrier)
			}
		}
	}
	for cat, vals := range byCat {
		n.Residual[cat] = floats.Norm(vals, 2)
	}

	n.PotentialNorm = norm2(psi)
	n.ElectronNorm = norm2(elec)
	n.HoleNorm = norm2(hole)
	n.LatticeTNorm = norm2(latticeT)
	n.ElectronTNorm = norm2(elecT)
	n.HoleTNorm = norm2(holeT)

	return n
}

// norm2 is floats.Norm(vals, 2) guarded against the empty slice a
// category with no tagged rows leaves behind (floats.Norm panics on
// len(vals)==0).
func norm2(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return floats.Norm(vals, 2)
}

// SpiceNorm is the residual-norm contribution the Circuit Bridge reports
// directly; spec.md §4.8: "the spice term is produced only on the last
// processor and broadcast."
func SpiceNorm(bridgeResidualNorm2 float64) float64 { return bridgeResidualNorm2 }

// Tolerances is the convergence-test configuration spec.md §4.7 names:
// "all of: ||F_psi||_2 <= tau_psi, ||F_n||_2 <= tau_n, ||F_p||_2 <=
// tau_p, and (if enabled) heat/energy norms <= their tau, and the
// circuit residual norm*A <= tau_ckt."
type Tolerances struct {
	Psi, N, P       float64
	Heat            float64
	ElectronEnergy  float64
	HoleEnergy      float64
	CircuitScale    float64 // "A" in spec.md's circuit_residual_norm*A <= tau_ckt
	Circuit         float64
	EnableHeat      bool
	EnableElectronE bool
	EnableHoleE     bool
}

// Converged applies the multi-norm AND test spec.md §4.7 describes.
func (tol *Tolerances) Converged(n *Norms, cktNorm float64) bool {
	if n.Residual[CatPoisson] > tol.Psi {
		return false
	}
	if n.Residual[CatElectronContinuity] > tol.N {
		return false
	}
	if n.Residual[CatHoleContinuity] > tol.P {
		return false
	}
	if tol.EnableHeat && n.Residual[CatHeat] > tol.Heat {
		return false
	}
	if tol.EnableElectronE && n.Residual[CatElectronEnergy] > tol.ElectronEnergy {
		return false
	}
	if tol.EnableHoleE && n.Residual[CatHoleEnergy] > tol.HoleEnergy {
		return false
	}
	if cktNorm*tol.CircuitScale > tol.Circuit {
		return false
	}
	return true
}

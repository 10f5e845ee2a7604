// Package physics holds the opaque, per-region material-property tables
// spec.md §1 deliberately keeps out of scope: mobility, recombination,
// and bandgap are callable tables supplied by the caller, not a modeled
// physics library. The Region Assembler only ever calls through this
// interface; it never hardcodes a mobility model.
package physics

import "math"

// Material bundles the callables a Semiconductor region needs to
// assemble its residual and Jacobian. Every field is a pure function of
// local state; none of them retain solver state across calls.
type Material struct {
	// Mobility returns (mu_n, mu_p) at the given lattice temperature and
	// field magnitude.
	Mobility func(tempK, fieldMagnitude float64) (muN, muP float64)

	// Recombination returns the net SRH/direct recombination rate at the
	// given carrier densities and lattice temperature.
	Recombination func(n, p, tempK float64) float64

	// Bandgap returns Eg(T) in eV.
	Bandgap func(tempK float64) float64

	// IntrinsicDensity returns n_i(T) in cm^-3.
	IntrinsicDensity func(tempK float64) float64

	// SaturationCurrentDensity is the analytic Shockley reference value for
	// this material; no code or test in this module reads it, and region
	// assembly never calls it.
	SaturationCurrentDensity float64
}

// DefaultSilicon returns a Material with simple, textbook closed-form
// models — good enough to exercise the assembler's control flow and the
// end-to-end test scenarios, not a device-physics library.
func DefaultSilicon() Material {
	return Material{
		Mobility: func(tempK, fieldMagnitude float64) (float64, float64) {
			// Caughey-Thomas-style saturation, flattened for a rough but
			// monotone high-field rolloff.
			muN0, muP0 := 1350.0, 480.0 // cm^2/V/s at 300K
			scale := math.Pow(300.0/tempK, 1.5)
			vsat := 1e7 // cm/s
			muN := muN0 * scale / (1 + (muN0*scale*fieldMagnitude)/vsat)
			muP := muP0 * scale / (1 + (muP0*scale*fieldMagnitude)/vsat)
			return muN, muP
		},
		Recombination: func(n, p, tempK float64) float64 {
			ni := DefaultSilicon().IntrinsicDensity(tempK)
			tau := 1e-6 // s, fixed SRH lifetime
			return (n*p - ni*ni) / (tau * (n + p + 2*ni))
		},
		Bandgap: func(tempK float64) float64 {
			// Varshni relation for silicon.
			alpha, beta, eg0 := 4.73e-4, 636.0, 1.17
			return eg0 - alpha*tempK*tempK/(tempK+beta)
		},
		IntrinsicDensity: func(tempK float64) float64 {
			ni300 := 1.0e10 // cm^-3
			return ni300 * math.Pow(tempK/300.0, 1.5) * math.Exp(-(DefaultSilicon().Bandgap(tempK)-1.12)/(2*0.02585))
		},
		SaturationCurrentDensity: 1e-14,
	}
}

// Insulator bundles the (much smaller) set of properties an insulator
// region needs: only a permittivity is required by the Poisson equation.
type Insulator struct {
	Permittivity float64 // relative permittivity, e.g. 3.9 for SiO2
}

func DefaultOxide() Insulator { return Insulator{Permittivity: 3.9} }

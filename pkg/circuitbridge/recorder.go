package circuitbridge

import "github.com/gotcad/mixsolve/pkg/matrix"

// recorder implements matrix.DeviceMatrix (the same interface every
// teacher device.Device.Stamp already targets) but, instead of writing
// into a standalone CircuitMatrix, records every stamped entry so the
// Bridge can translate circuit-local indices into the unified solver's
// rows and derive both a residual and a Jacobian contribution from one
// Stamp pass — the companion-model equivalence: at the current iterate,
// a SPICE companion matrix G and source vector I satisfy F(x) = G*x - I,
// with G itself the Jacobian, because G/I are evaluated at x.
type recorder struct {
	size int
	mat  map[[2]int]float64
	rhs  map[int]float64
}

func newRecorder(size int) *recorder {
	return &recorder{size: size, mat: make(map[[2]int]float64), rhs: make(map[int]float64)}
}

var _ matrix.DeviceMatrix = (*recorder)(nil)

func (r *recorder) AddElement(i, j int, value float64) {
	if i <= 0 || j <= 0 {
		return
	}
	r.mat[[2]int{i, j}] += value
}

func (r *recorder) AddRHS(i int, value float64) {
	if i <= 0 {
		return
	}
	r.rhs[i] += value
}

// AddComplexElement/AddComplexRHS: the mixed-mode bridge only drives real
// operating-point/DC/transient analyses (spec.md Configuration: Type in
// {OP, DCSWEEP, TRANSIENT}, none of them AC), so a device's AC-frequency
// stamp has no imaginary part to land anywhere here; degrade to the real
// forwarding the teacher's own real-only matrix path would give it.
func (r *recorder) AddComplexElement(i, j int, real, imag float64) { r.AddElement(i, j, real) }
func (r *recorder) AddComplexRHS(i int, real, imag float64)        { r.AddRHS(i, real) }

// residualAt returns G*x - I at local row i, given the local solution x.
func (r *recorder) residualAt(i int, x []float64) float64 {
	f := -r.rhs[i]
	for key, v := range r.mat {
		if key[0] == i {
			f += v * x[key[1]]
		}
	}
	return f
}

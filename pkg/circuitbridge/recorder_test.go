package circuitbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// residualAt must realise the companion-model equivalence F(x) = G*x - I
// documented on recorder: a 2x2 linear stamp G with source I, evaluated
// at a chosen x, reproduces the textbook linear residual exactly.
func TestResidualAtMatchesCompanionModel(t *testing.T) {
	rec := newRecorder(2)
	rec.AddElement(1, 1, 2.0)
	rec.AddElement(1, 2, -1.0)
	rec.AddElement(2, 1, -1.0)
	rec.AddElement(2, 2, 3.0)
	rec.AddRHS(1, 5.0)
	rec.AddRHS(2, 0.0)

	x := []float64{0, 1.0, 2.0} // 1-based; x[0] unused

	f1 := rec.residualAt(1, x)
	f2 := rec.residualAt(2, x)

	assert.InDelta(t, 2*1.0-1*2.0-5.0, f1, 1e-12)
	assert.InDelta(t, -1*1.0+3*2.0-0.0, f2, 1e-12)
}

func TestResidualAtIsZeroWhenGxEqualsI(t *testing.T) {
	rec := newRecorder(1)
	rec.AddElement(1, 1, 4.0)
	rec.AddRHS(1, 8.0)

	x := []float64{0, 2.0} // G*x = I exactly at x=2
	assert.InDelta(t, 0.0, rec.residualAt(1, x), 1e-12)
}

func TestComplexStampsDegradeToRealForwarding(t *testing.T) {
	rec := newRecorder(1)
	rec.AddComplexElement(1, 1, 3.0, 99.0)
	rec.AddComplexRHS(1, 2.0, 99.0)

	assert.InDelta(t, 3.0, rec.mat[[2]int{1, 1}], 1e-12)
	assert.InDelta(t, 2.0, rec.rhs[1], 1e-12)
}

func TestAddElementIgnoresNonPositiveIndices(t *testing.T) {
	rec := newRecorder(1)
	rec.AddElement(0, 1, 1.0)
	rec.AddElement(1, 0, 1.0)
	rec.AddRHS(0, 1.0)

	assert.Empty(t, rec.mat)
	assert.Empty(t, rec.rhs)
}

package timeintegrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gotcad/mixsolve/pkg/linalg"
	"github.com/gotcad/mixsolve/pkg/solverctx"
)

func vecOf(vals ...float64) *linalg.Vec {
	v := linalg.NewVec(len(vals))
	for i, val := range vals {
		v.Set(i+1, val)
	}
	return v
}

// spec.md §8: "BDF1 predictor: with x_{n-1} = x_n (steady history),
// x_p = x_n exactly."
func TestBDF1PredictorSteadyHistoryIsExact(t *testing.T) {
	xn := vecOf(1.0, 2.0, -3.5)
	h := &History{Xn: xn, Xn1: xn.Clone(), Hn: 1e-9, Hn1: 1e-9}

	xp := Predict(h, solverctx.BDF1, false)
	for i := 1; i <= xn.Len(); i++ {
		assert.InDelta(t, xn.Get(i), xp.Get(i), 1e-12)
	}
}

// spec.md §8: "BDF2 higher-order predictor coefficients sum identities:
// c_n + c_{n-1} + c_{n-2} = 1; c_n*h_n^0 + c_{n-1}*(-h_{n-1}) +
// c_{n-2}*(-h_{n-1}-h_{n-2}) = h_n (first-moment match)."
func TestBDF2CoefficientIdentities(t *testing.T) {
	hn, hn1, hn2 := 0.3, 0.5, 0.7

	cn := 1 + hn*(hn+2*hn1+hn2)/(hn1*(hn1+hn2))
	cn1 := -hn * (hn + hn1 + hn2) / (hn1 * hn2)
	cn2 := hn * (hn + hn1) / (hn2 * (hn1 + hn2))

	assert.InDelta(t, 1.0, cn+cn1+cn2, 1e-10)

	firstMoment := cn*0 + cn1*(-hn1) + cn2*(-hn1-hn2)
	assert.InDelta(t, hn, firstMoment, 1e-10)
}

// spec.md §8: "BDF2 positivity test accepts when step size equals
// previous step (r = 1/2, a = 4, b = 1) and n_new = n_last."
func TestBDF2PositiveDefinedAcceptsEqualStepEqualValue(t *testing.T) {
	nodes := []SemiNode{{N: 1e16, NLast: 1e16, P: 1e15, PLast: 1e15}}
	assert.True(t, BDF2PositiveDefined(nodes, 1.0, 1.0))
}

func TestBDF2PositiveDefinedRejectsSharpDrop(t *testing.T) {
	// spec.md §8 scenario 6: n_new < n_last/8 with an equal-step history
	// must fail the positivity test, forcing a BDF1 fallback.
	nodes := []SemiNode{{N: 1e15, NLast: 1e16, P: 1e15, PLast: 1e15}}
	assert.False(t, BDF2PositiveDefined(nodes, 1.0, 1.0))
}

func TestLTENormZeroAtExactPredictor(t *testing.T) {
	x := vecOf(1.0, 2.0, 3.0)
	h := &History{Xn: x.Clone(), Xn1: x.Clone(), Hn: 1e-6, Hn1: 1e-6}
	ig := New([]RowKind{RowScaled, RowScaled, RowScaled})

	xp := Predict(h, solverctx.BDF1, false)
	lte := ig.LTENorm(x, xp, h, solverctx.BDF1, false, 1e-3, 1e-12)
	assert.InDelta(t, 0.0, lte, 1e-9)
}

func TestLTENormMasksPotentialRow(t *testing.T) {
	x := vecOf(5.0, 1.0)
	xp := vecOf(0.0, 1.0) // row 1 (masked) differs wildly; row 2 matches
	h := &History{Xn: x, Xn1: x.Clone(), Hn: 1e-6, Hn1: 1e-6}
	ig := New([]RowKind{RowMasked, RowScaled})

	lte := ig.LTENorm(x, xp, h, solverctx.BDF1, false, 1e-3, 1e-12)
	assert.InDelta(t, 0.0, lte, 1e-9)
}

func TestEvaluateRejectsLargeLTEAndGrowsSmallLTE(t *testing.T) {
	ig := New(nil)

	decision, hNext := ig.Evaluate(2.0, 1.0)
	assert.Equal(t, RejectHalve, decision)
	assert.InDelta(t, 0.5, hNext, 1e-12)

	decision, hNext = ig.Evaluate(0.01, 1.0)
	assert.Equal(t, Accept, decision)
	assert.Greater(t, hNext, 1.0)
}

func TestRotateHistoryShiftsInOrder(t *testing.T) {
	h := &History{
		Xn:  vecOf(3),
		Xn1: vecOf(2),
		Xn2: vecOf(1),
		Hn:  0.3, Hn1: 0.2, Hn2: 0.1,
	}
	accepted := vecOf(4)
	RotateHistory(h, accepted, 0.4)

	assert.Equal(t, 4.0, h.Xn.Get(1))
	assert.Equal(t, 3.0, h.Xn1.Get(1))
	assert.Equal(t, 2.0, h.Xn2.Get(1))
	assert.InDelta(t, 0.4, h.Hn, 1e-12)
	assert.InDelta(t, 0.3, h.Hn1, 1e-12)
	assert.InDelta(t, 0.2, h.Hn2, 1e-12)
}

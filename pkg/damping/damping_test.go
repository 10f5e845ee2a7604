package damping

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gotcad/mixsolve/internal/consts"
	"github.com/gotcad/mixsolve/pkg/linalg"
)

func newState(n int) (*linalg.Vec, *linalg.Vec, *linalg.Vec) {
	return linalg.NewVec(n), linalg.NewVec(n), linalg.NewVec(n)
}

// spec.md §8: "Potential-damping factor f in (0, 1] and f -> 1 as
// dV_max -> 0."
func TestPotentialDampingFactorBoundsAndLimit(t *testing.T) {
	table := &Table{
		Nodes:     []SemiconductorNode{{PsiOff: 1, NOff: 2, POff: 3}},
		TExternal: consts.RoomTemperature,
	}
	damp := &PotentialDamping{Table: table}

	for _, dV := range []float64{0.01, 0.5, 2.0, 10.0, 50.0} {
		x, y, w := newState(3)
		x.Set(1, 0.0)
		x.Set(2, 1e17)
		x.Set(3, 1e17)
		y.Set(1, dV)
		w.CopyFrom(x)
		w.AXPY(-1, y)

		damp.Apply(x, y, w)

		vt := consts.ThermalVoltage(consts.RoomTemperature)
		f := math.Log(1+dV/vt) / (dV / vt)
		assert.Greater(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}

	// As dV_max shrinks toward the no-op threshold, the damped row
	// converges to the undamped Newton update (f -> 1).
	x, y, w := newState(3)
	x.Set(1, 0.0)
	x.Set(2, 1e17)
	x.Set(3, 1e17)
	y.Set(1, 1e-7) // below the 1e-6 activation threshold: damping is skipped
	w.CopyFrom(x)
	w.AXPY(-1, y)
	damp.Apply(x, y, w)
	assert.InDelta(t, x.Get(1)-y.Get(1), w.Get(1), 1e-9)
}

func TestPotentialDampingClipsNonPositiveDensities(t *testing.T) {
	table := &Table{
		Nodes:     []SemiconductorNode{{PsiOff: 1, NOff: 2, POff: 3}},
		TExternal: consts.RoomTemperature,
	}
	damp := &PotentialDamping{Table: table}

	x, y, w := newState(3)
	w.Set(2, -5.0)
	w.Set(3, 0.0)
	damp.Apply(x, y, w)

	assert.GreaterOrEqual(t, w.Get(2), onePerCMC)
	assert.GreaterOrEqual(t, w.Get(3), onePerCMC)
}

func TestPositiveDensityClampsLatticeTemperatureFloor(t *testing.T) {
	table := &Table{
		Nodes:     []SemiconductorNode{{PsiOff: 1, NOff: 2, POff: 3, TlOff: 4}},
		EnableTl:  true,
		TExternal: consts.RoomTemperature,
	}
	pd := &PositiveDensity{Table: table}

	x, y, w := newState(4)
	w.Set(2, 1e17)
	w.Set(3, 1e17)
	w.Set(4, 1.0) // far below T_ext - 50

	pd.Apply(x, y, w)

	assert.GreaterOrEqual(t, w.Get(4), table.TExternal-50)
}

func TestBankRoseIsAPassThrough(t *testing.T) {
	x, y, w := newState(2)
	y.Set(1, 3.0)
	w.Set(1, 4.0)

	changedY, changedW := (BankRose{}).Apply(x, y, w)

	assert.False(t, changedY)
	assert.False(t, changedW)
	assert.Equal(t, 3.0, y.Get(1))
	assert.Equal(t, 4.0, w.Get(1))
}

func TestProjectAppliesSameFloorsAsPositiveDensity(t *testing.T) {
	table := &Table{
		Nodes:     []SemiconductorNode{{PsiOff: 1, NOff: 2, POff: 3}},
		TExternal: consts.RoomTemperature,
	}
	xOld, _, _ := newState(3)
	x, _, _ := newState(3)
	x.Set(2, -1.0)
	x.Set(3, -1.0)

	Project(table, x, xOld)

	assert.GreaterOrEqual(t, x.Get(2), onePerCMC)
	assert.GreaterOrEqual(t, x.Get(3), onePerCMC)
}

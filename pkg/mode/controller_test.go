package mode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotcad/mixsolve/pkg/boundary"
	"github.com/gotcad/mixsolve/pkg/indexmap"
	"github.com/gotcad/mixsolve/pkg/linalg"
	"github.com/gotcad/mixsolve/pkg/mesh"
	"github.com/gotcad/mixsolve/pkg/newton"
	"github.com/gotcad/mixsolve/pkg/physics"
	"github.com/gotcad/mixsolve/pkg/region"
	"github.com/gotcad/mixsolve/pkg/solverctx"
	"github.com/gotcad/mixsolve/pkg/timeintegrator"
)

func vecOf(vals ...float64) *linalg.Vec {
	v := linalg.NewVec(len(vals))
	for i, val := range vals {
		v.Set(i+1, val)
	}
	return v
}

// buildChain mirrors newton_test.go's resistor fixture: an 11-node 1-D
// mesh, uniform doping, configurable contact biases.
func buildChain(t *testing.T, n int) (*mesh.Arena, mesh.RegionID, *indexmap.Map, []mesh.NodeID) {
	t.Helper()
	arena := mesh.NewArena()
	reg := mesh.RegionID(0)
	nodes := make([]mesh.NodeID, n)
	for i := 0; i < n; i++ {
		id := arena.AddNode(reg, mesh.NodeData{Doping: 1e16, Coord: [3]float64{float64(i) * 1e-4, 0, 0}})
		arena.SetVolume(id, 1e-12)
		nodes[i] = id
	}
	for i := 0; i < n-1; i++ {
		arena.Connect(nodes[i], nodes[i+1], 1e-8)
	}
	idx := indexmap.New(arena, map[mesh.RegionID][]indexmap.VarKind{reg: {indexmap.Potential, indexmap.Electron, indexmap.Hole}})
	return arena, reg, idx, nodes
}

func newDriver(t *testing.T, arena *mesh.Arena, reg mesh.RegionID, idx *indexmap.Map, nodes []mesh.NodeID, anodeV, cathodeV float64) *newton.Driver {
	t.Helper()
	sem := region.NewSemiconductor(arena, idx, reg, solverctx.AdvancedModel{}, physics.DefaultSilicon())
	anode := boundary.NewOhmicElectrode("anode", arena, idx, reg, []mesh.NodeID{nodes[0]}, anodeV)
	cathode := boundary.NewOhmicElectrode("cathode", arena, idx, reg, []mesh.NodeID{nodes[len(nodes)-1]}, cathodeV)

	d, err := newton.New(idx.Total(), solverctx.New())
	require.NoError(t, err)
	d.Regions = []region.Assembler{sem}
	d.BCs = []boundary.Condition{anode, cathode}
	d.MaxIter = 8
	d.Tolerances = &newton.Tolerances{Psi: 1e-8, N: 1e-6, P: 1e-6, CircuitScale: 1.0, Circuit: 1.0}
	return d
}

// spec.md §8: OperatingPointAnalysis runs exactly one Driver.Step and
// reports Done immediately after.
func TestOperatingPointAnalysisRunsOnceThenDone(t *testing.T) {
	arena, reg, idx, nodes := buildChain(t, 11)
	d := newDriver(t, arena, reg, idx, nodes, 0.0, 0.0)

	op := &OperatingPointAnalysis{}
	assert.False(t, op.Done())

	c := New(d, solverctx.New(), op)
	require.NoError(t, c.Run())

	assert.True(t, op.Done())
}

// spec.md §8: DCSweepAnalysis steps an electrode's voltage from Start to
// Stop by Step and reports Done once current has passed Stop.
func TestDCSweepAnalysisStepsUntilDone(t *testing.T) {
	arena, reg, idx, nodes := buildChain(t, 11)
	d := newDriver(t, arena, reg, idx, nodes, 0.0, 0.0)

	var applied []float64
	sweep := &DCSweepAnalysis{
		Start: 0.0, Stop: 0.2, Step: 0.1,
		SetVoltage: func(v float64) { applied = append(applied, v) },
	}
	assert.False(t, sweep.Done())

	c := New(d, solverctx.New(), sweep)
	require.NoError(t, c.Run())

	assert.True(t, sweep.Done())
	assert.Equal(t, []float64{0.0, 0.1, 0.2}, applied)
	assert.Equal(t, []float64{0.0, 0.1, 0.2}, sweep.Results)
}

// A decreasing sweep (Step < 0) must stop once current has passed below
// Stop, not loop forever.
func TestDCSweepAnalysisStepsDownward(t *testing.T) {
	sweep := &DCSweepAnalysis{Start: 0.2, Stop: 0.0, Step: -0.1}
	require.NoError(t, sweep.PreSolve(solverctx.New()))
	assert.False(t, sweep.Done())
	accepted, err := sweep.PostSolve(nil, nil, nil) // 0.2 -> 0.1
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.False(t, sweep.Done())
	_, err = sweep.PostSolve(nil, nil, nil) // 0.1 -> 0.0
	require.NoError(t, err)
	assert.False(t, sweep.Done())
	_, err = sweep.PostSolve(nil, nil, nil) // 0.0 -> -0.1, past Stop
	require.NoError(t, err)
	assert.True(t, sweep.Done())
}

// Before the first PreSolve, Done must report false regardless of Step's
// sign, since `started` gates the comparison.
func TestDCSweepAnalysisNotDoneBeforeStart(t *testing.T) {
	sweep := &DCSweepAnalysis{Start: 1.0, Stop: 0.0, Step: -0.25}
	assert.False(t, sweep.Done())
}

// spec.md §8 scenario 3: on the transient edge (the trial iterate far
// from its predictor), PostSolve must reject the step and halve dt rather
// than advancing TNow.
func TestTransientAnalysisPostSolveRejectsLargeLTEAndHalvesDt(t *testing.T) {
	h := &timeintegrator.History{Xn: vecOf(0.0), Xn1: vecOf(0.0), Xn2: vecOf(0.0), Hn: 1.0, Hn1: 1.0}
	ig := timeintegrator.New([]timeintegrator.RowKind{timeintegrator.RowScaled})

	ta := &TransientAnalysis{History: h, Integrator: ig, EpsR: 1e-3, EpsA: 1e-12, TEnd: 10}
	ta.lastXp = vecOf(0.0) // predictor says "no change"

	ctx := solverctx.New()
	ctx.TimeDependent = true
	ctx.TSType = solverctx.BDF1
	ctx.Dt = 1.0

	d := &newton.Driver{X: vecOf(5.0)} // trial iterate jumped far from the predictor

	accept, err := ta.PostSolve(d, ctx, nil)
	require.NoError(t, err)
	assert.False(t, accept)
	assert.InDelta(t, 0.5, ctx.Dt, 1e-12)
	assert.Equal(t, 0.0, ta.TNow)
}

// Rejections below the step-size floor must be fatal, matching the
// NewtonDiverged/CircuitFailure recovery policy's "dt < dt_min" escalation.
func TestTransientAnalysisPostSolveFatalBelowStepFloor(t *testing.T) {
	h := &timeintegrator.History{Xn: vecOf(0.0), Xn1: vecOf(0.0), Xn2: vecOf(0.0), Hn: 1e-14, Hn1: 1e-14}
	ig := timeintegrator.New([]timeintegrator.RowKind{timeintegrator.RowScaled})

	ta := &TransientAnalysis{History: h, Integrator: ig, EpsR: 1e-3, EpsA: 1e-12, TEnd: 10}
	ta.lastXp = vecOf(0.0)

	ctx := solverctx.New()
	ctx.TimeDependent = true
	ctx.Dt = 1e-14 // already at the floor; a halving crosses HMin

	d := &newton.Driver{X: vecOf(5.0)}

	_, err := ta.PostSolve(d, ctx, nil)
	assert.Error(t, err)
}

// spec.md §8 scenario 3: once the trial iterate matches its predictor
// (LTE ~ 0), PostSolve accepts, rotates history, advances TNow by the
// step just taken, and grows dt for the next step.
func TestTransientAnalysisPostSolveAcceptsSmallLTEAdvancesTimeAndGrows(t *testing.T) {
	h := &timeintegrator.History{Xn: vecOf(4.0), Xn1: vecOf(3.0), Xn2: vecOf(2.0), Hn: 1.0, Hn1: 1.0}
	ig := timeintegrator.New([]timeintegrator.RowKind{timeintegrator.RowScaled})

	ta := &TransientAnalysis{History: h, Integrator: ig, EpsR: 1e-3, EpsA: 1e-12, TEnd: 10}
	ta.lastXp = vecOf(5.0)

	ctx := solverctx.New()
	ctx.TimeDependent = true
	ctx.TSType = solverctx.BDF1
	ctx.Dt = 1.0

	d := &newton.Driver{X: vecOf(5.0)} // matches the predictor exactly

	accept, err := ta.PostSolve(d, ctx, nil)
	require.NoError(t, err)
	assert.True(t, accept)
	assert.InDelta(t, 1.0, ta.TNow, 1e-12)
	assert.Greater(t, ctx.Dt, 1.0)
	assert.Equal(t, 5.0, h.Xn.Get(1))
	assert.Equal(t, 4.0, h.Xn1.Get(1))
	assert.Equal(t, 3.0, h.Xn2.Get(1))
}

// spec.md §8 scenario 6: when BDF2_positive_defined fails, PreSolve must
// silently fall back to the BDF1 predictor formula even though TSType is
// still BDF2.
func TestTransientAnalysisPreSolveFallsBackToBDF1WhenNotPositiveDefined(t *testing.T) {
	h := &timeintegrator.History{Xn: vecOf(1.0), Xn1: vecOf(1.0), Xn2: vecOf(1.0), Hn: 1.0, Hn1: 1.0, Hn2: 1.0}

	ta := &TransientAnalysis{
		History: h,
		TEnd:    10,
		SemiNodes: func() []timeintegrator.SemiNode {
			// n_new < n_last/8: fails BDF2_positive_defined (spec.md §8).
			return []timeintegrator.SemiNode{{N: 1e15, NLast: 1e16, P: 1e15, PLast: 1e15}}
		},
	}

	ctx := solverctx.New()
	ctx.TSType = solverctx.BDF2
	ctx.BDF2LowerOrder = false
	ctx.Dt = 1.0
	ctx.DtLast = 1.0

	require.NoError(t, ta.PreSolve(ctx))

	want := timeintegrator.Predict(h, solverctx.BDF1, false)
	assert.InDelta(t, want.Get(1), ta.lastXp.Get(1), 1e-12)
}

package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotcad/mixsolve/internal/consts"
	"github.com/gotcad/mixsolve/pkg/indexmap"
	"github.com/gotcad/mixsolve/pkg/linalg"
	"github.com/gotcad/mixsolve/pkg/mesh"
	"github.com/gotcad/mixsolve/pkg/physics"
	"github.com/gotcad/mixsolve/pkg/solverctx"
)

func buildChain(n int, doping float64) (*mesh.Arena, mesh.RegionID, *indexmap.Map) {
	arena := mesh.NewArena()
	reg := mesh.RegionID(0)
	nodes := make([]mesh.NodeID, n)
	for i := 0; i < n; i++ {
		id := arena.AddNode(reg, mesh.NodeData{Doping: doping, Coord: [3]float64{float64(i) * 1e-4, 0, 0}})
		arena.SetVolume(id, 1e-12)
		nodes[i] = id
	}
	for i := 0; i < n-1; i++ {
		arena.Connect(nodes[i], nodes[i+1], 1e-8)
	}
	idx := indexmap.New(arena, map[mesh.RegionID][]indexmap.VarKind{reg: {indexmap.Potential, indexmap.Electron, indexmap.Hole}})
	return arena, reg, idx
}

func TestFillInitialEnforcesEquilibriumDensityFloor(t *testing.T) {
	arena, reg, idx := buildChain(4, 1e16)
	s := NewSemiconductor(arena, idx, reg, solverctx.AdvancedModel{}, physics.DefaultSilicon())

	n := idx.Total()
	x, L := linalg.NewVec(n), linalg.NewVec(n)
	s.FillInitial(x, L)

	ni := physics.DefaultSilicon().IntrinsicDensity(consts.RoomTemperature)
	for _, id := range arena.OnProcessorNodes(reg) {
		node := arena.Node(id)
		nOff, err := idx.Offset(reg, node.LocalID, indexmap.Electron)
		require.NoError(t, err)
		pOff, err := idx.Offset(reg, node.LocalID, indexmap.Hole)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, x.Get(nOff), consts.OnePerCM3)
		assert.GreaterOrEqual(t, x.Get(pOff), consts.OnePerCM3)
		// n-type doping: n0 ~ doping, p0 ~ ni^2/doping.
		assert.InDelta(t, 1e16, x.Get(nOff), 1e16*1e-9)
		assert.InDelta(t, ni*ni/1e16, x.Get(pOff), ni*ni/1e16*1e-6+1e-20)
	}
}

func TestUpdateSolutionRotatesHistory(t *testing.T) {
	arena, reg, idx := buildChain(1, 1e16)
	s := NewSemiconductor(arena, idx, reg, solverctx.AdvancedModel{}, physics.DefaultSilicon())

	n := idx.Total()
	x := linalg.NewVec(n)
	node := arena.Node(arena.OnProcessorNodes(reg)[0])
	nOff, _ := idx.Offset(reg, node.LocalID, indexmap.Electron)
	pOff, _ := idx.Offset(reg, node.LocalID, indexmap.Hole)
	x.Set(nOff, 2e16)
	x.Set(pOff, 3e15)

	s.UpdateSolution(x)

	data := arena.Node(arena.OnProcessorNodes(reg)[0]).Data
	assert.Equal(t, 2e16, data.N)
	assert.Equal(t, 3e15, data.P)
	assert.Equal(t, 0.0, data.NLast) // previous N, not yet set before this call
}

func TestKindReportsSemiconductor(t *testing.T) {
	arena, reg, idx := buildChain(1, 1e16)
	s := NewSemiconductor(arena, idx, reg, solverctx.AdvancedModel{}, physics.DefaultSilicon())
	assert.Equal(t, Semiconductor, s.Kind())
	assert.Equal(t, reg, s.Region())
}

package newton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotcad/mixsolve/pkg/boundary"
	"github.com/gotcad/mixsolve/pkg/indexmap"
	"github.com/gotcad/mixsolve/pkg/mesh"
	"github.com/gotcad/mixsolve/pkg/physics"
	"github.com/gotcad/mixsolve/pkg/region"
	"github.com/gotcad/mixsolve/pkg/solverctx"
)

// buildResistorChain mirrors spec.md §8 scenario 1: an 11-node 1-D
// resistor mesh, uniform doping, zero bias between the two end contacts.
func buildResistorChain(t *testing.T, n int) (*mesh.Arena, mesh.RegionID, *indexmap.Map, []mesh.NodeID) {
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

// spec.md §8 scenario 1: "A 1-D resistor mesh with 11 nodes, zero bias.
// Expect psi linear between contacts; residual norm < 1e-10 after <= 8
// Newton iterations; all invariants hold."
func TestPureResistorEquilibriumConverges(t *testing.T) {
	arena, reg, idx, nodes := buildResistorChain(t, 11)
	sem := region.NewSemiconductor(arena, idx, reg, solverctx.AdvancedModel{}, physics.DefaultSilicon())
	anode := boundary.NewOhmicElectrode("anode", arena, idx, reg, []mesh.NodeID{nodes[0]}, 0.0)
	cathode := boundary.NewOhmicElectrode("cathode", arena, idx, reg, []mesh.NodeID{nodes[len(nodes)-1]}, 0.0)

	ctx := solverctx.New()
	d, err := New(idx.Total(), ctx)
	require.NoError(t, err)
	d.Regions = []region.Assembler{sem}
	d.BCs = []boundary.Condition{anode, cathode}
	d.MaxIter = 8
	d.Tolerances = &Tolerances{Psi: 1e-10, N: 1e-10, P: 1e-10, CircuitScale: 1.0, Circuit: 1.0}
	for _, id := range nodes {
		node := arena.Node(id)
		psiOff, _ := idx.Offset(reg, node.LocalID, indexmap.Potential)
		nOff, _ := idx.Offset(reg, node.LocalID, indexmap.Electron)
		pOff, _ := idx.Offset(reg, node.LocalID, indexmap.Hole)
		d.Tags = append(d.Tags,
			RowTag{Row: psiOff, Category: CatPoisson},
			RowTag{Row: nOff, Category: CatElectronContinuity},
			RowTag{Row: pOff, Category: CatHoleContinuity},
		)
	}

	d.FillInitial()

	norms, err := d.Step()
	require.NoError(t, err)
	require.NotNil(t, norms)

	assert.LessOrEqual(t, norms.Residual[CatPoisson], 1e-10)

	// Zero bias, uniform doping: psi should stay flat at (or extremely
	// close to) its equilibrium value at every node.
	for _, id := range nodes {
		node := arena.Node(id)
		psiOff, err := idx.Offset(reg, node.LocalID, indexmap.Potential)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, d.X.Get(psiOff), 1e-6)
	}
}
